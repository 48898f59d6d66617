package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const syncDataFile = "syncdata.json"

// ErrNoSyncData is returned by LoadSyncData when no sync has been saved.
var ErrNoSyncData = errors.New("no sync data; run sync first")

// SaveSyncData writes data into dir, replacing any previous file by rename.
func SaveSyncData(dir string, data PostQuerySyncData) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}
	b, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal sync data: %w", err)
	}
	p := filepath.Join(dir, syncDataFile)
	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return fmt.Errorf("write sync data: %w", err)
	}
	if err := os.Rename(tmp, p); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace sync data: %w", err)
	}
	return nil
}

// LoadSyncData reads what SaveSyncData wrote.
func LoadSyncData(dir string) (PostQuerySyncData, error) {
	var data PostQuerySyncData
	b, err := os.ReadFile(filepath.Join(dir, syncDataFile))
	if errors.Is(err, os.ErrNotExist) {
		return data, ErrNoSyncData
	}
	if err != nil {
		return data, fmt.Errorf("read sync data: %w", err)
	}
	if err := json.Unmarshal(b, &data); err != nil {
		return data, fmt.Errorf("parse sync data: %w", err)
	}
	return data, nil
}
