// Package store keeps a CSV capture log of consumed samples with daily file
// rotation. Files are named YYYY-MM-DD.csv after the UTC date of the
// samples they hold.
package store

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/luki/simtemp/internal/sample"
)

const (
	fileLayout = "2006-01-02"
	timeLayout = "2006-01-02T15:04:05.000Z"
)

var header = []string{"time", "temp_mC", "temp_C", "flags", "alert"}

// DiskStore appends samples to per-day CSV files:
//
//	time,temp_mC,temp_C,flags,alert
type DiskStore struct {
	dir     string
	current *os.File
	writer  *csv.Writer
	curDate string
}

// New creates a store writing into dir, creating it if needed.
func New(dir string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create capture dir")
	}
	return &DiskStore{dir: dir}, nil
}

// Dir returns the directory the store writes into.
func (d *DiskStore) Dir() string { return d.dir }

// Write appends samples, switching files when the UTC date changes.
func (d *DiskStore) Write(samples ...sample.Sample) error {
	for _, s := range samples {
		if err := d.rotate(s.Timestamp.UTC().Format(fileLayout)); err != nil {
			return err
		}
		if err := d.writer.Write(record(s)); err != nil {
			return errors.Wrap(err, "write sample")
		}
	}
	if d.writer == nil {
		return nil
	}
	d.writer.Flush()
	return errors.Wrap(d.writer.Error(), "flush capture")
}

func (d *DiskStore) rotate(date string) error {
	if d.curDate == date && d.current != nil {
		return nil
	}
	if err := d.Close(); err != nil {
		return err
	}
	path := filepath.Join(d.dir, date+".csv")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return errors.Wrap(err, "open capture")
	}
	d.current = f
	d.writer = csv.NewWriter(f)
	d.curDate = date

	info, err := f.Stat()
	if err != nil {
		return errors.Wrap(err, "stat capture")
	}
	if info.Size() == 0 {
		return errors.Wrap(d.writer.Write(header), "write header")
	}
	return nil
}

func record(s sample.Sample) []string {
	alert := "0"
	if s.Alert() {
		alert = "1"
	}
	return []string{
		s.Timestamp.UTC().Format(timeLayout),
		strconv.FormatInt(int64(s.ValueMilli), 10),
		fmt.Sprintf("%.3f", s.Celsius()),
		strconv.FormatUint(uint64(s.Flags), 10),
		alert,
	}
}

// Close flushes and closes the current file.
func (d *DiskStore) Close() error {
	var err error
	if d.writer != nil {
		d.writer.Flush()
		err = multierr.Append(err, d.writer.Error())
		d.writer = nil
	}
	if d.current != nil {
		err = multierr.Append(err, d.current.Close())
		d.current = nil
	}
	d.curDate = ""
	return err
}

// ListDays returns the dates that have a capture file in dir, newest first.
func ListDays(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var days []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".csv") {
			continue
		}
		days = append(days, strings.TrimSuffix(name, ".csv"))
	}
	sort.Sort(sort.Reverse(sort.StringSlice(days)))
	return days, nil
}

// LoadDay reads every sample captured in dir on day (YYYY-MM-DD).
func LoadDay(dir, day string) ([]sample.Sample, error) {
	return LoadFile(filepath.Join(dir, day+".csv"))
}

// LoadFile reads every sample from a capture file. Malformed rows are
// skipped.
func LoadFile(path string) ([]sample.Sample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}

	var samples []sample.Sample
	for i, row := range records {
		if i == 0 && len(row) > 0 && row[0] == header[0] {
			continue
		}
		if len(row) < len(header) {
			continue
		}

		t, err := time.Parse(timeLayout, row[0])
		if err != nil {
			continue
		}
		value, err := strconv.ParseInt(row[1], 10, 32)
		if err != nil {
			continue
		}
		flags, err := strconv.ParseUint(row[3], 10, 16)
		if err != nil {
			continue
		}

		samples = append(samples, sample.Sample{
			Timestamp:  t,
			ValueMilli: int32(value),
			Flags:      sample.Flags(flags),
		})
	}
	return samples, nil
}
