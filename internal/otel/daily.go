package otel

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// dailyFile appends to dir/<prefix>-YYYY-MM-DD.jsonl and moves to a new
// file the first time it is written on a new day. Only the logger's drain
// goroutine writes to it.
type dailyFile struct {
	dir    string
	prefix string
	now    func() time.Time

	day string
	f   *os.File
}

func newDailyFile(dir, prefix string, now func() time.Time) (*dailyFile, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	d := &dailyFile{dir: dir, prefix: prefix, now: now}
	if err := d.rotate(now().Format(time.DateOnly)); err != nil {
		return nil, err
	}
	return d, nil
}

// Path returns the file currently being written.
func (d *dailyFile) Path() string {
	return d.pathFor(d.day)
}

func (d *dailyFile) pathFor(day string) string {
	return filepath.Join(d.dir, fmt.Sprintf("%s-%s.jsonl", d.prefix, day))
}

func (d *dailyFile) rotate(day string) error {
	f, err := os.OpenFile(d.pathFor(day), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	if d.f != nil {
		d.f.Close()
	}
	d.f, d.day = f, day
	return nil
}

func (d *dailyFile) Write(p []byte) (int, error) {
	if day := d.now().Format(time.DateOnly); day != d.day {
		if err := d.rotate(day); err != nil {
			return 0, err
		}
	}
	return d.f.Write(p)
}

func (d *dailyFile) Close() error {
	if d.f == nil {
		return nil
	}
	err := d.f.Close()
	d.f = nil
	return err
}
