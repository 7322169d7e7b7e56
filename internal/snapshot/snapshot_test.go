package snapshot_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"turnkeep/internal/snapshot"
	"turnkeep/internal/state"
	"turnkeep/internal/testutil"
	"turnkeep/internal/turn"
)

func newSnapshot(t *testing.T, turnNumber int64, weather string) *turn.Snapshot {
	t.Helper()
	st := state.New()
	st.Put("world", "world", state.Entity{"weather": weather})
	data, err := state.Encode(st)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	return &turn.Snapshot{
		CampaignID:  "camp-1",
		TurnID:      "turn-1",
		TurnNumber:  turnNumber,
		PublishedAt: time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC),
		Checksum:    state.Checksum(data),
		State:       st,
	}
}

func TestWriter_PublishRead(t *testing.T) {
	writers := map[string]turn.SnapshotWriter{
		"file":   snapshot.NewFileWriter(t.TempDir()),
		"memory": snapshot.NewMemoryWriter(),
	}
	for name, w := range writers {
		t.Run(name, func(t *testing.T) {
			got, err := w.Read()
			if err != nil {
				t.Fatalf("Read() before publish error = %v", err)
			}
			if got != nil {
				t.Fatalf("Read() before publish = %+v, want nil", got)
			}

			ref, err := w.Publish(newSnapshot(t, 1, "rain"))
			if err != nil {
				t.Fatalf("Publish() error = %v", err)
			}
			if ref != snapshot.FileName {
				t.Errorf("Publish() ref = %q, want %q", ref, snapshot.FileName)
			}

			if _, err := w.Publish(newSnapshot(t, 2, "fog")); err != nil {
				t.Fatalf("second Publish() error = %v", err)
			}

			got, err = w.Read()
			if err != nil {
				t.Fatalf("Read() error = %v", err)
			}
			if got.TurnNumber != 2 {
				t.Errorf("TurnNumber = %d, want 2", got.TurnNumber)
			}
			e, _ := got.State.Get("world", "world")
			if e["weather"] != "fog" {
				t.Errorf("weather = %v, want fog", e["weather"])
			}
		})
	}
}

func TestFileWriter_ChecksumMismatch(t *testing.T) {
	w := snapshot.NewFileWriter(t.TempDir())

	snap := newSnapshot(t, 1, "rain")
	snap.Checksum = "xxh64:0000000000000000"
	if _, err := w.Publish(snap); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	_, err := w.Read()
	if !errors.Is(err, turn.ErrCorruption) {
		t.Fatalf("Read() error = %v, want corruption", err)
	}
	if turn.DetailsOf(err)["expected"] != "xxh64:0000000000000000" {
		t.Errorf("details = %v", turn.DetailsOf(err))
	}
}

func TestFileWriter_UnknownChecksumAlgorithm(t *testing.T) {
	w := snapshot.NewFileWriter(t.TempDir())

	snap := newSnapshot(t, 1, "rain")
	snap.Checksum = "crc32:1c291ca3"
	if _, err := w.Publish(snap); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	_, err := w.Read()
	if !errors.Is(err, turn.ErrCorruption) {
		t.Fatalf("Read() error = %v, want corruption", err)
	}
	if turn.DetailsOf(err)["algorithm"] != "unknown" {
		t.Errorf("details = %v", turn.DetailsOf(err))
	}
}

func TestFileWriter_Garbage(t *testing.T) {
	w := snapshot.NewFileWriter(t.TempDir())
	if err := os.WriteFile(w.Path(), []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := w.Read(); !errors.Is(err, turn.ErrCorruption) {
		t.Errorf("Read() error = %v, want corruption", err)
	}
}

func TestFileWriter_FlippedByte(t *testing.T) {
	w := snapshot.NewFileWriter(t.TempDir())
	if _, err := w.Publish(newSnapshot(t, 1, "rain")); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if err := testutil.FlipByte(w.Path()); err != nil {
		t.Fatalf("FlipByte() error = %v", err)
	}
	if _, err := w.Read(); !errors.Is(err, turn.ErrCorruption) {
		t.Errorf("Read() error = %v, want corruption", err)
	}
}

func TestFileWriter_CrashBeforeRename(t *testing.T) {
	dir := t.TempDir()
	crash := errors.New("simulated crash")

	var leftover string
	w := snapshot.NewFileWriter(dir, snapshot.WithRenameHook(func(tmpPath string) error {
		// Keep a copy of the durable temp file to stand in for what a killed
		// process would leave behind.
		leftover = tmpPath + "-kept"
		data, err := os.ReadFile(tmpPath)
		if err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(dir, filepath.Base(tmpPath)+"-kept"), data, 0644); err != nil {
			return err
		}
		return crash
	}))

	healthy := snapshot.NewFileWriter(dir)
	if _, err := healthy.Publish(newSnapshot(t, 1, "rain")); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	if _, err := w.Publish(newSnapshot(t, 2, "fog")); !errors.Is(err, crash) {
		t.Fatalf("Publish() error = %v, want simulated crash", err)
	}

	got, err := healthy.Read()
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if got.TurnNumber != 1 {
		t.Errorf("TurnNumber = %d, want 1 (previous snapshot intact)", got.TurnNumber)
	}

	removed, err := healthy.CleanTemp()
	if err != nil {
		t.Fatalf("CleanTemp() error = %v", err)
	}
	if len(removed) != 1 || removed[0] != leftover {
		t.Errorf("CleanTemp() = %v, want [%s]", removed, leftover)
	}
	if _, err := os.Stat(leftover); !os.IsNotExist(err) {
		t.Errorf("temp leftover still present: %v", err)
	}
}
