package state

import (
	"encoding/json"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/crewkit/crewkit/internal/util"
)

// State is the global per-machine kit state.
type State struct {
	Enabled       bool      `json:"enabled"`
	Version       string    `json:"version"`
	MachineID     string    `json:"machine_id"`
	InstalledAt   time.Time `json:"installed_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	LastDoctorRun time.Time `json:"last_doctor_run,omitempty"`
}

// IsEnabled reports whether the kit is globally enabled.
// Priority: env override > state file > default (disabled).
func IsEnabled() bool {
	if os.Getenv("CREWKIT_DISABLED") == "1" {
		return false
	}
	if os.Getenv("CREWKIT_ENABLED") == "1" {
		return true
	}
	s, err := Load()
	if err != nil {
		return false
	}
	return s.Enabled
}

// Load reads the global state from disk.
func Load() (*State, error) {
	data, err := os.ReadFile(StatePath())
	if err != nil {
		return nil, err
	}
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Save writes the global state atomically with owner-only permissions.
func Save(s *State) error {
	if err := os.MkdirAll(KitDir(), 0755); err != nil {
		return err
	}
	s.UpdatedAt = time.Now()
	return util.AtomicWriteJSONWithPerm(StatePath(), s, 0600)
}

// Enable turns the kit on globally, creating state on first run.
func Enable(version string) error {
	s, err := Load()
	if err != nil {
		s = &State{
			InstalledAt: time.Now(),
			MachineID:   newMachineID(),
		}
	}
	s.Enabled = true
	s.Version = version
	return Save(s)
}

// Disable turns the kit off globally.
func Disable() error {
	s, err := Load()
	if err != nil {
		s = &State{
			InstalledAt: time.Now(),
			MachineID:   newMachineID(),
		}
	}
	s.Enabled = false
	return Save(s)
}

// MachineID returns the stable machine identifier, creating one if needed.
func MachineID() string {
	s, err := Load()
	if err != nil || s.MachineID == "" {
		return newMachineID()
	}
	return s.MachineID
}

// RecordDoctorRun stamps the last successful doctor run.
func RecordDoctorRun() error {
	s, err := Load()
	if err != nil {
		return err
	}
	s.LastDoctorRun = time.Now()
	return Save(s)
}

func newMachineID() string {
	return uuid.New().String()[:8]
}
