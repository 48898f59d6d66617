package errcheck

import "os"

func saveCache(path string, data []byte) {
	os.WriteFile(path, data, 0o644) // want "unchecked error"
}

func removeStale(path string) {
	_ = os.Remove(path)
}

func writeState(path string, data []byte) error {
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return err
	}
	return nil
}
