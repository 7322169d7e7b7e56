package vault

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"turnkeep/internal/archive"
	"turnkeep/internal/atomicfile"
)

// FileSystemVault is a filesystem-based implementation of archive.Vault.
// It stores content and manifests in a directory structure:
//
//	<root>/
//	  content/
//	    <checksum>          (encrypted snapshots, named by SHA-256)
//	  manifests/
//	    <campaign>.json     (per-campaign manifest)
//	    <campaign>.version
type FileSystemVault struct {
	name        string
	root        string
	contentDir  string
	manifestDir string
}

// NewFileSystemVault creates a new filesystem vault rooted at the given path.
func NewFileSystemVault(name, root string) (*FileSystemVault, error) {
	contentDir := filepath.Join(root, "content")
	manifestDir := filepath.Join(root, "manifests")

	if err := os.MkdirAll(contentDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create content directory: %w", err)
	}
	if err := os.MkdirAll(manifestDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create manifest directory: %w", err)
	}

	return &FileSystemVault{
		name:        name,
		root:        root,
		contentDir:  contentDir,
		manifestDir: manifestDir,
	}, nil
}

// Name returns the configured vault name.
func (v *FileSystemVault) Name() string { return v.name }

// PutContent stores content identified by its checksum.
// The operation is idempotent: storing the same checksum multiple times is safe.
func (v *FileSystemVault) PutContent(_ context.Context, checksum string, r io.Reader, size int64) error {
	destPath := filepath.Join(v.contentDir, checksum)

	if _, err := os.Stat(destPath); err == nil {
		// Consume the reader so callers see the same size check either way.
		written, err := io.Copy(io.Discard, r)
		if err != nil {
			return fmt.Errorf("failed to read content: %w", err)
		}
		if written != size {
			return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, written)
		}
		return nil
	}

	return writeFile(destPath, r, size)
}

// GetContent retrieves content by checksum and writes it to w.
func (v *FileSystemVault) GetContent(_ context.Context, checksum string, w io.Writer) error {
	return readFile(filepath.Join(v.contentDir, checksum), w)
}

// PutManifest stores a campaign manifest along with a version marker.
func (v *FileSystemVault) PutManifest(_ context.Context, campaignID string, r io.Reader, size int64, version int64) error {
	if err := writeFile(v.manifestPath(campaignID), r, size); err != nil {
		return err
	}
	versionData := strconv.FormatInt(version, 10)
	return atomicfile.WriteFile(v.versionPath(campaignID), []byte(versionData), atomicfile.Options{})
}

// GetManifest retrieves a campaign manifest and writes it to w.
func (v *FileSystemVault) GetManifest(_ context.Context, campaignID string, w io.Writer) error {
	return readFile(v.manifestPath(campaignID), w)
}

// GetManifestVersion returns 0 if no version file exists.
func (v *FileSystemVault) GetManifestVersion(_ context.Context, campaignID string) (int64, error) {
	data, err := os.ReadFile(v.versionPath(campaignID))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("reading version file: %w", err)
	}

	version, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing version: %w", err)
	}
	return version, nil
}

// ValidateSetup verifies that the vault directories are accessible.
func (v *FileSystemVault) ValidateSetup(context.Context) error {
	for _, dir := range []string{v.root, v.contentDir, v.manifestDir} {
		info, err := os.Stat(dir)
		if err != nil {
			return fmt.Errorf("vault directory not accessible: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("vault path is not a directory: %s", dir)
		}
	}
	return nil
}

func (v *FileSystemVault) manifestPath(campaignID string) string {
	return filepath.Join(v.manifestDir, campaignID+".json")
}

func (v *FileSystemVault) versionPath(campaignID string) string {
	return filepath.Join(v.manifestDir, campaignID+".version")
}

// writeFile atomically writes r to destPath, refusing to publish it unless
// exactly expectedSize bytes were read.
func writeFile(destPath string, r io.Reader, expectedSize int64) error {
	err := atomicfile.Write(destPath, r, atomicfile.Options{
		BeforeRename: func(tmpPath string) error {
			info, err := os.Stat(tmpPath)
			if err != nil {
				return err
			}
			if info.Size() != expectedSize {
				return fmt.Errorf("size mismatch: expected %d bytes, got %d", expectedSize, info.Size())
			}
			return nil
		},
	})
	if err != nil {
		return fmt.Errorf("writing %s: %w", filepath.Base(destPath), err)
	}
	return nil
}

// readFile copies srcPath to w.
func readFile(srcPath string, w io.Writer) error {
	f, err := os.Open(srcPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%s: %w", filepath.Base(srcPath), archive.ErrNotFound)
		}
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}
	return nil
}

var _ archive.Vault = (*FileSystemVault)(nil)
