package testutil

import (
	"fmt"
	"os"
)

// FlipByte inverts the middle byte of the file at path, making it writable
// first since checkpoints are stored read-only.
func FlipByte(path string) error {
	if err := os.Chmod(path, 0644); err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return fmt.Errorf("%s is empty", path)
	}
	data[len(data)/2] ^= 0xff
	return os.WriteFile(path, data, 0644)
}
