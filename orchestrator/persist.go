package orchestrator

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

func mkSessionDir(outputsRoot, sessionID string, at time.Time) (string, error) {
	dir := filepath.Join(outputsRoot, "session_"+at.Format("20060102-150405")+"_"+shortID(sessionID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writeBundle dumps the full report next to the other session outputs.
func writeBundle(outputsRoot string, r *Report) (string, error) {
	dir, err := mkSessionDir(outputsRoot, r.SessionID, r.CreatedAt)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, "report.json")
	if err := writeJSON(path, r); err != nil {
		return "", err
	}
	return path, nil
}
