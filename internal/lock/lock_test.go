package lock

import (
	"errors"
	"testing"
)

func TestAcquire(t *testing.T) {
	t.Run("second acquire fails while held", func(t *testing.T) {
		dir := t.TempDir()

		first, err := Acquire(dir)
		if err != nil {
			t.Fatalf("Acquire() error = %v", err)
		}
		defer first.Release()

		_, err = Acquire(dir)
		if !errors.Is(err, ErrLocked) {
			t.Errorf("second Acquire() error = %v, want ErrLocked", err)
		}
	})

	t.Run("acquire succeeds after release", func(t *testing.T) {
		dir := t.TempDir()

		first, err := Acquire(dir)
		if err != nil {
			t.Fatalf("Acquire() error = %v", err)
		}
		if err := first.Release(); err != nil {
			t.Fatalf("Release() error = %v", err)
		}

		second, err := Acquire(dir)
		if err != nil {
			t.Fatalf("Acquire() after release error = %v", err)
		}
		second.Release()
	})

	t.Run("distinct directories are independent", func(t *testing.T) {
		a, err := Acquire(t.TempDir())
		if err != nil {
			t.Fatalf("Acquire(a) error = %v", err)
		}
		defer a.Release()

		b, err := Acquire(t.TempDir())
		if err != nil {
			t.Fatalf("Acquire(b) error = %v", err)
		}
		defer b.Release()
	})
}

func TestRelease_Twice(t *testing.T) {
	l, err := Acquire(t.TempDir())
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if err := l.Release(); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	if err := l.Release(); err != nil {
		t.Errorf("second Release() error = %v", err)
	}
}
