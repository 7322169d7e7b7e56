// Package archive copies published campaign snapshots off the machine.
// Each snapshot is encrypted, stored in a vault under the checksum of its
// ciphertext, and listed in a per-campaign manifest.
package archive

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned by a Vault when the requested object does not
// exist.
var ErrNotFound = errors.New("not found in vault")

// Vault provides an interface for archive storage backends.
// All operations use io.Reader/io.Writer for streaming.
type Vault interface {
	// PutContent stores content identified by its checksum.
	// The operation is idempotent: storing the same checksum multiple times is safe.
	// size is the number of bytes that will be read from r.
	PutContent(ctx context.Context, checksum string, r io.Reader, size int64) error

	// GetContent retrieves content by checksum and writes it to w.
	GetContent(ctx context.Context, checksum string, w io.Writer) error

	// PutManifest stores the manifest of a campaign. version is stored
	// alongside it for consistency checks.
	PutManifest(ctx context.Context, campaignID string, r io.Reader, size int64, version int64) error

	// GetManifest retrieves the manifest of a campaign and writes it to w.
	GetManifest(ctx context.Context, campaignID string, w io.Writer) error

	// GetManifestVersion returns the manifest version of a campaign, or 0 if
	// none has been stored.
	GetManifestVersion(ctx context.Context, campaignID string) (int64, error)

	// ValidateSetup verifies that the vault is accessible and properly configured.
	ValidateSetup(ctx context.Context) error
}

// Encryptor encrypts snapshots with a public key and unlocks the private key
// for decryption.
type Encryptor interface {
	// Setup generates a key pair, stores the public key in plaintext and
	// encrypts the private key with passphrase.
	Setup(passphrase string) error

	// Encrypt encrypts data read from r and writes ciphertext to w.
	// Uses the public key only; no passphrase required.
	Encrypt(r io.Reader, w io.Writer) error

	// Unlock decrypts the private key using the passphrase.
	// Returns an error if the passphrase is incorrect.
	Unlock(passphrase string) (DecryptionContext, error)

	// IsConfigured returns true if both key files exist at configured paths.
	IsConfigured() bool
}

// DecryptionContext holds an unlocked private key in memory for the
// duration of a verify session.
type DecryptionContext interface {
	Decrypt(r io.Reader, w io.Writer) error
}
