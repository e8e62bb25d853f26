// Package status writes the fixed-width status file external `watch`
// processes tail, using the standard write-temp-then-rename idiom for
// atomic file replacement — the same guarantee bbolt gives pkg/restart for
// free, reproduced here by hand since a status file is not a database.
package status

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Snapshot is one point-in-time view of the dispatch core's counters.
type Snapshot struct {
	Pending, Running, Completed, Failed int
	FreeCores, FreeGPUs                 int
	UpdatedAt                           time.Time
}

const format = `UPDATED:   %s

JOBS:        Pending     Running   Completed     Failed
            %8d    %8d    %8d    %8d

RESOURCES:  Free Cores   Free GPUs
            %8d    %8d
`

// Render formats s into the fixed-column status text.
func Render(s Snapshot) string {
	return fmt.Sprintf(format,
		s.UpdatedAt.Format("2006-01-02 15:04:05"),
		s.Pending, s.Running, s.Completed, s.Failed,
		s.FreeCores, s.FreeGPUs,
	)
}

// Write atomically replaces path's contents with the rendered snapshot:
// write to a temp file in the same directory, then rename over path, so a
// concurrent reader never observes a partially-written file.
func Write(path string, s Snapshot) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".status-*.tmp")
	if err != nil {
		return fmt.Errorf("create status temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.WriteString(Render(s)); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write status temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close status temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename status file into place: %w", err)
	}
	return nil
}
