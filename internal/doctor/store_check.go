package doctor

import (
	"context"
	"fmt"
	"os"

	"github.com/crewkit/crewkit/internal/capsule"
	"github.com/crewkit/crewkit/internal/identity"
)

// StoreCheck verifies the global record store opens with a current
// schema. The fix creates and migrates a fresh store.
type StoreCheck struct {
	FixableCheck
}

// NewStoreCheck creates a new record store check.
func NewStoreCheck() *StoreCheck {
	return &StoreCheck{
		FixableCheck: FixableCheck{
			BaseCheck: BaseCheck{
				CheckName:        "record-store",
				CheckDescription: "Verify the record store opens and is migrated",
				CheckCategory:    CategoryStore,
			},
		},
	}
}

// Run opens the store read-style and collects headline counts.
func (c *StoreCheck) Run(ctx *CheckContext) *CheckResult {
	path := identity.StorePath()

	if _, err := os.Stat(path); err != nil {
		return &CheckResult{
			Name:    c.Name(),
			Status:  StatusWarning,
			Message: "no record store at " + path,
			FixHint: "Run 'ck install' (or 'ck doctor --fix') to create it",
		}
	}

	store, err := capsule.OpenExisting(context.Background(), path)
	if err != nil {
		return &CheckResult{
			Name:    c.Name(),
			Status:  StatusError,
			Message: fmt.Sprintf("store exists but cannot be opened: %v", err),
			Details: []string{path},
		}
	}
	defer store.Close()

	stats, err := store.CollectStats(context.Background(), "")
	if err != nil {
		return &CheckResult{
			Name:    c.Name(),
			Status:  StatusWarning,
			Message: fmt.Sprintf("store opened but stats failed: %v", err),
		}
	}

	return &CheckResult{
		Name:    c.Name(),
		Status:  StatusOK,
		Message: fmt.Sprintf("%d records in %d namespaces", stats.Total, stats.Namespaces),
		Details: []string{path},
	}
}

// Fix creates the store (and runs migrations) at the canonical path.
func (c *StoreCheck) Fix(ctx *CheckContext) error {
	store, err := capsule.Open(context.Background(), identity.StorePath())
	if err != nil {
		return err
	}
	return store.Close()
}
