package encryption

import (
	"bytes"
	"fmt"
	"io"

	"turnkeep/internal/archive"
	"turnkeep/internal/turn"
)

// testHeader is prepended by TestEncryptor so ciphertext differs from the
// snapshot it wraps while staying deterministic.
var testHeader = []byte("TKENC\x00\x00\x00")

// TestEncryptor is a deterministic, reversible encryptor for tests. It
// accepts only the passphrase given to Setup (any passphrase before Setup).
type TestEncryptor struct {
	passphrase string
}

var _ archive.Encryptor = (*TestEncryptor)(nil)

func NewTestEncryptor() *TestEncryptor {
	return &TestEncryptor{}
}

func (e *TestEncryptor) Setup(passphrase string) error {
	e.passphrase = passphrase
	return nil
}

func (e *TestEncryptor) Encrypt(r io.Reader, w io.Writer) error {
	if _, err := w.Write(testHeader); err != nil {
		return fmt.Errorf("writing test header: %w", err)
	}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("copying data: %w", err)
	}
	return nil
}

func (e *TestEncryptor) Unlock(passphrase string) (archive.DecryptionContext, error) {
	if e.passphrase != "" && passphrase != e.passphrase {
		return nil, turn.NewError(turn.CodeValidation, "encryption.unlock", "passphrase rejected")
	}
	return &TestDecryptionContext{}, nil
}

func (e *TestEncryptor) IsConfigured() bool {
	return true
}

// TestDecryptionContext strips the header added by TestEncryptor.
type TestDecryptionContext struct{}

var _ archive.DecryptionContext = (*TestDecryptionContext)(nil)

func (c *TestDecryptionContext) Decrypt(r io.Reader, w io.Writer) error {
	header := make([]byte, len(testHeader))
	if _, err := io.ReadFull(r, header); err != nil {
		return fmt.Errorf("reading test header: %w", err)
	}
	if !bytes.Equal(header, testHeader) {
		return fmt.Errorf("invalid test encryption header")
	}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("copying data: %w", err)
	}
	return nil
}
