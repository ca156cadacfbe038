// Package monitor keeps downloaded participant data from outliving its
// use: it deletes the data directory once a deadline passes and ends the
// server after a maximum runtime.
package monitor

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"studykit/internal"
	"studykit/internal/config"
	"studykit/internal/errors"
)

const (
	// InternalDir holds monitor files inside the data root. It is not
	// considered data.
	InternalDir = ".internal"
	StateFile   = "monitor_state.json"
	SignalFile  = "action_signal"

	MaxAutoDeleteMinutes = 240
	MaxAutoQuitMinutes   = 1440
)

// Action is what a Check did.
type Action string

const (
	ActionNone    Action = ""
	ActionDeleted Action = "auto_delete_executed"
	ActionQuit    Action = "auto_quit"
)

// Monitor applies the retention rules stored in the state file.
type Monitor struct {
	dataRoot string
	interval time.Duration
	onQuit   func()
	now      func() time.Time
	logger   *internal.Logger

	mu   sync.Mutex
	cron *cron.Cron
}

// Status is the state plus what it means right now.
type Status struct {
	State
	DataExist       bool       `json:"data_exist"`
	DeleteInSeconds *float64   `json:"delete_in_seconds,omitempty"`
	QuitAt          *time.Time `json:"quit_at,omitempty"`
	QuitInSeconds   *float64   `json:"quit_in_seconds,omitempty"`
}

// New creates a monitor for dataRoot and writes a fresh state: no delete
// deadline, runtime clock starting now. onQuit runs when auto-quit fires
// or Quit is called.
func New(dataRoot string, cfg config.MonitorConfig, onQuit func()) (*Monitor, error) {
	m := Open(dataRoot, onQuit)
	if cfg.Interval > 0 {
		m.interval = cfg.Interval
	}
	now := m.now().UTC()
	st := &State{
		AutoDeleteMinutes: cfg.AutoDeleteMinutes,
		AppStartTime:      now,
		AutoQuitEnabled:   cfg.AutoQuitEnabled,
		AutoQuitMinutes:   cfg.AutoQuitMinutes,
	}
	if st.AutoDeleteMinutes <= 0 {
		st.AutoDeleteMinutes = 30
	}
	if st.AutoQuitMinutes <= 0 {
		st.AutoQuitMinutes = 720
	}
	if err := m.save(st); err != nil {
		return nil, err
	}
	return m, nil
}

// Open attaches to the state another process maintains without resetting it.
func Open(dataRoot string, onQuit func()) *Monitor {
	return &Monitor{
		dataRoot: dataRoot,
		interval: 30 * time.Second,
		onQuit:   onQuit,
		now:      time.Now,
		logger:   internal.DefaultLogger.Named("monitor"),
	}
}

func (m *Monitor) statePath() string  { return filepath.Join(m.dataRoot, InternalDir, StateFile) }
func (m *Monitor) signalPath() string { return filepath.Join(m.dataRoot, InternalDir, SignalFile) }

func (m *Monitor) load() (*State, error) {
	return readState(m.statePath())
}

func (m *Monitor) save(st *State) error {
	st.LastUpdated = m.now().UTC()
	return writeState(m.statePath(), st)
}

// update loads, mutates and saves the state under the lock.
func (m *Monitor) update(fn func(st *State, now time.Time) error) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, err := m.load()
	if err != nil {
		return State{}, err
	}
	if err := fn(st, m.now().UTC()); err != nil {
		return State{}, err
	}
	if err := m.save(st); err != nil {
		return State{}, err
	}
	return *st, nil
}

// Start schedules Check every interval.
func (m *Monitor) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cron != nil {
		return nil
	}
	c := cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger)))
	if _, err := c.AddFunc(fmt.Sprintf("@every %s", m.interval), m.tick); err != nil {
		return errors.WithCode(errors.CodeConfigInvalid, errors.Wrap(err, "schedule monitor"))
	}
	c.Start()
	m.cron = c
	m.logger.Info("checking %s every %s", m.dataRoot, m.interval)
	return nil
}

// Stop halts the schedule and waits for a running check.
func (m *Monitor) Stop() {
	m.mu.Lock()
	c := m.cron
	m.cron = nil
	m.mu.Unlock()
	if c != nil {
		<-c.Stop().Done()
	}
}

func (m *Monitor) tick() {
	action, err := m.Check(m.now())
	if err != nil {
		m.logger.Warn("check failed: %v", err)
		return
	}
	if action != ActionNone {
		m.logger.Info("%s", action)
	}
}

// Check deletes the data once the delete deadline has passed, and deletes
// it and quits once the runtime limit has passed. A missing state file
// means there is nothing to enforce.
func (m *Monitor) Check(now time.Time) (Action, error) {
	m.mu.Lock()
	st, err := m.load()
	if err != nil {
		m.mu.Unlock()
		if errors.HasCode(err, errors.CodeNotFound) {
			return ActionNone, nil
		}
		return ActionNone, err
	}

	if st.DeleteDeadline != nil && !now.Before(*st.DeleteDeadline) {
		err := m.deleteData()
		if err == nil {
			st.DeleteDeadline = nil
			err = m.save(st)
		}
		if err == nil {
			err = writeFileAtomic(m.signalPath(), []byte(ActionDeleted))
		}
		m.mu.Unlock()
		return ActionDeleted, err
	}

	if st.AutoQuitEnabled && !now.Before(st.QuitTime()) {
		err := m.deleteData()
		m.mu.Unlock()
		if err != nil {
			return ActionNone, err
		}
		m.logger.Warn("runtime limit of %d minutes reached, quitting", st.AutoQuitMinutes)
		if m.onQuit != nil {
			m.onQuit()
		}
		return ActionQuit, nil
	}
	m.mu.Unlock()
	return ActionNone, nil
}

// Arm starts the delete clock when data exists and no deadline is set.
// It reports whether a deadline is now running.
func (m *Monitor) Arm() (bool, error) {
	if !m.DataExist() {
		return false, nil
	}
	st, err := m.update(func(st *State, now time.Time) error {
		if st.DeleteDeadline == nil {
			deadline := now.Add(time.Duration(st.AutoDeleteMinutes) * time.Minute)
			st.DeleteDeadline = &deadline
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return st.DeleteDeadline != nil, nil
}

// ExtendDelete moves the delete deadline to now plus the configured minutes.
func (m *Monitor) ExtendDelete() (State, error) {
	return m.update(func(st *State, now time.Time) error {
		deadline := now.Add(time.Duration(st.AutoDeleteMinutes) * time.Minute)
		st.DeleteDeadline = &deadline
		return nil
	})
}

// ExtendQuit restarts the runtime clock.
func (m *Monitor) ExtendQuit() (State, error) {
	return m.update(func(st *State, now time.Time) error {
		st.AppStartTime = now
		return nil
	})
}

// DeleteNow removes the data immediately and clears the deadline.
func (m *Monitor) DeleteNow() (State, error) {
	m.mu.Lock()
	err := m.deleteData()
	m.mu.Unlock()
	if err != nil {
		return State{}, err
	}
	return m.update(func(st *State, now time.Time) error {
		st.DeleteDeadline = nil
		return nil
	})
}

// SetAutoDeleteMinutes changes the delete period; a running deadline is
// restarted with the new period.
func (m *Monitor) SetAutoDeleteMinutes(minutes int) (State, error) {
	if minutes < 1 || minutes > MaxAutoDeleteMinutes {
		return State{}, errors.InvalidInput(fmt.Sprintf("auto-delete minutes must be between 1 and %d", MaxAutoDeleteMinutes))
	}
	return m.update(func(st *State, now time.Time) error {
		st.AutoDeleteMinutes = minutes
		if st.DeleteDeadline != nil {
			deadline := now.Add(time.Duration(minutes) * time.Minute)
			st.DeleteDeadline = &deadline
		}
		return nil
	})
}

// SetAutoQuit enables or disables auto-quit and sets its limit.
func (m *Monitor) SetAutoQuit(enabled bool, minutes int) (State, error) {
	if minutes < 1 || minutes > MaxAutoQuitMinutes {
		return State{}, errors.InvalidInput(fmt.Sprintf("auto-quit minutes must be between 1 and %d", MaxAutoQuitMinutes))
	}
	return m.update(func(st *State, now time.Time) error {
		st.AutoQuitEnabled = enabled
		st.AutoQuitMinutes = minutes
		return nil
	})
}

// Quit ends the server, refusing while data is still on disk.
func (m *Monitor) Quit() error {
	if m.DataExist() {
		return errors.InvalidInput("delete data before quitting")
	}
	if m.onQuit != nil {
		m.onQuit()
	}
	return nil
}

// Status reports the state with remaining times relative to now.
func (m *Monitor) Status() (*Status, error) {
	m.mu.Lock()
	st, err := m.load()
	m.mu.Unlock()
	if err != nil {
		return nil, err
	}
	now := m.now().UTC()
	status := &Status{State: *st, DataExist: m.DataExist()}
	if st.DeleteDeadline != nil {
		left := st.DeleteDeadline.Sub(now).Seconds()
		status.DeleteInSeconds = &left
	}
	if st.AutoQuitEnabled {
		quitAt := st.QuitTime()
		left := quitAt.Sub(now).Seconds()
		status.QuitAt = &quitAt
		status.QuitInSeconds = &left
	}
	return status, nil
}

// ConsumeSignal returns and clears the last action written by a check.
func (m *Monitor) ConsumeSignal() (Action, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, err := os.ReadFile(m.signalPath())
	if err != nil {
		if os.IsNotExist(err) {
			return ActionNone, nil
		}
		return ActionNone, errors.Wrap(err, "read action signal")
	}
	if err := os.Remove(m.signalPath()); err != nil && !os.IsNotExist(err) {
		return ActionNone, errors.Wrap(err, "clear action signal")
	}
	return Action(strings.TrimSpace(string(raw))), nil
}

// DataExist reports whether any CSV exists under the data root outside
// the internal directory.
func (m *Monitor) DataExist() bool {
	found := false
	filepath.WalkDir(m.dataRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if d.Name() == InternalDir {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.EqualFold(filepath.Ext(d.Name()), ".csv") {
			found = true
			return filepath.SkipAll
		}
		return nil
	})
	return found
}

// deleteData removes everything under the data root except the monitor's
// own files. Callers hold the lock.
func (m *Monitor) deleteData() error {
	entries, err := os.ReadDir(m.dataRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrap(err, "list data root")
	}
	for _, e := range entries {
		if e.Name() == InternalDir {
			continue
		}
		if err := os.RemoveAll(filepath.Join(m.dataRoot, e.Name())); err != nil {
			return errors.Wrapf(err, "delete %s", e.Name())
		}
	}
	m.logger.Info("deleted data under %s", m.dataRoot)
	return nil
}
