package monitor

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"studykit/internal/errors"
)

// State is the persisted monitor state shared by every process that
// touches the data directory.
type State struct {
	AutoDeleteMinutes int        `json:"auto_delete_minutes"`
	DeleteDeadline    *time.Time `json:"delete_deadline"`
	AppStartTime      time.Time  `json:"app_start_time"`
	AutoQuitEnabled   bool       `json:"auto_quit_enabled"`
	AutoQuitMinutes   int        `json:"auto_quit_minutes"`
	LastUpdated       time.Time  `json:"last_updated"`
}

// QuitTime is when auto-quit fires.
func (s State) QuitTime() time.Time {
	return s.AppStartTime.Add(time.Duration(s.AutoQuitMinutes) * time.Minute)
}

func readState(path string) (*State, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NotFound("monitor state " + path)
		}
		return nil, errors.Wrap(err, "read monitor state")
	}
	var st State
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, errors.WithCode(errors.CodeConfigInvalid, errors.Wrapf(err, "parse %s", path))
	}
	return &st, nil
}

func writeState(path string, st *State) error {
	raw, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode monitor state")
	}
	return writeFileAtomic(path, raw)
}

func writeFileAtomic(path string, raw []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "create monitor directory")
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return errors.Wrap(err, "create temp file")
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return errors.Wrap(err, "write temp file")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return errors.Wrap(err, "close temp file")
	}
	return os.Rename(tmp.Name(), path)
}
