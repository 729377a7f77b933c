package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/luki/simtemp/internal/sample"
)

func TestDiskStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()

	ds, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	now := time.Date(2026, 2, 21, 14, 30, 0, 123e6, time.UTC)
	samples := []sample.Sample{
		{Timestamp: now, ValueMilli: 44123, Flags: sample.FlagNew},
		{Timestamp: now.Add(100 * time.Millisecond), ValueMilli: 45011, Flags: sample.FlagNew | sample.FlagThresholdCrossed},
	}

	if err := ds.Write(samples...); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := ds.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	loaded, err := LoadDay(dir, "2026-02-21")
	if err != nil {
		t.Fatalf("LoadDay: %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("expected 2 samples, got %d", len(loaded))
	}
	for i := range samples {
		if !loaded[i].Timestamp.Equal(samples[i].Timestamp) || loaded[i].ValueMilli != samples[i].ValueMilli || loaded[i].Flags != samples[i].Flags {
			t.Errorf("sample %d: got %+v want %+v", i, loaded[i], samples[i])
		}
	}
	if !loaded[1].Alert() {
		t.Error("second sample should carry the alert flag")
	}
}

func TestDiskStoreRotatesDaily(t *testing.T) {
	dir := t.TempDir()
	ds, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	late := time.Date(2026, 2, 21, 23, 59, 59, 900e6, time.UTC)
	if err := ds.Write(
		sample.Sample{Timestamp: late, ValueMilli: 1, Flags: sample.FlagNew},
		sample.Sample{Timestamp: late.Add(200 * time.Millisecond), ValueMilli: 2, Flags: sample.FlagNew},
	); err != nil {
		t.Fatalf("Write: %v", err)
	}
	// appending to an existing file must not repeat the header
	if err := ds.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := ds.Write(sample.Sample{Timestamp: late.Add(time.Second), ValueMilli: 3, Flags: sample.FlagNew}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := ds.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	days, err := ListDays(dir)
	if err != nil {
		t.Fatalf("ListDays: %v", err)
	}
	if len(days) != 2 || days[0] != "2026-02-22" || days[1] != "2026-02-21" {
		t.Fatalf("days = %v", days)
	}

	next, err := LoadFile(filepath.Join(dir, "2026-02-22.csv"))
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if len(next) != 2 || next[0].ValueMilli != 2 || next[1].ValueMilli != 3 {
		t.Errorf("2026-02-22: got %+v", next)
	}
}

func TestLoadFileSkipsMalformedRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.csv")
	data := "time,temp_mC,temp_C,flags,alert\n" +
		"2026-02-21T14:30:00.000Z,41000,41.000,1,0\n" +
		"yesterday,41000,41.000,1,0\n" +
		"2026-02-21T14:30:00.100Z,hot,41.000,1,0\n" +
		"2026-02-21T14:30:00.200Z,42000\n" +
		"2026-02-21T14:30:00.300Z,46000,46.000,3,1\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	loaded, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if len(loaded) != 2 || loaded[0].ValueMilli != 41000 || !loaded[1].Alert() {
		t.Errorf("got %+v", loaded)
	}
}

func TestCloseIdle(t *testing.T) {
	ds, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := ds.Write(); err != nil {
		t.Errorf("empty Write: %v", err)
	}
	if err := ds.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}
