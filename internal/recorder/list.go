package recorder

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// RecordingInfo describes one file under a recorder's storage path.
type RecordingInfo struct {
	Name    string
	Size    int64
	ModTime time.Time
}

// ListRecordings lists the regular files directly under storagePath —
// raw IQ captures, their JSON sidecars, and spectrum CSV logs alike —
// newest first.
func ListRecordings(storagePath string) ([]RecordingInfo, error) {
	entries, err := os.ReadDir(storagePath)
	if err != nil {
		return nil, fmt.Errorf("recorder: listing %s: %w", storagePath, err)
	}
	out := make([]RecordingInfo, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, RecordingInfo{Name: e.Name(), Size: info.Size(), ModTime: info.ModTime()})
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].ModTime.After(out[j-1].ModTime); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out, nil
}

// DeleteRecording removes one file under storagePath by name. name is
// reduced to its base form, so it cannot escape storagePath.
func DeleteRecording(storagePath, name string) error {
	path := filepath.Join(storagePath, filepath.Base(name))
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("recorder: deleting %s: %w", name, err)
	}
	return nil
}
