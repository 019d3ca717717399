package checkpoint

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"jellyfin-migrator/core/migerr"
	"jellyfin-migrator/feature/ids"
)

// FormatVersion is the version of the snapshot layout.
const FormatVersion = 1

// State is the persisted progress record.
type State struct {
	RunID             string    `json:"run_id"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
	ConfigFingerprint string    `json:"config_fingerprint"`
	CurrentStage      Stage     `json:"current_stage"`
	CompletedStages   []Stage   `json:"completed_stages"`
	// CompletedItems is the sorted set of completed work item keys.
	CompletedItems []string `json:"completed_item_keys"`
	// Cursors holds the last committed rowid per table unit.
	Cursors map[string]int64 `json:"cursors"`
	// Registry is the identifier registry as of the last stage transition.
	Registry []ids.Pair `json:"id_registry_snapshot"`
}

type envelope struct {
	Version  int             `json:"version"`
	Checksum string          `json:"checksum"`
	State    json.RawMessage `json:"state"`
}

type journalRecord struct {
	Op    string `json:"op"`
	Key   string `json:"key"`
	Value int64  `json:"value,omitempty"`
}

const (
	opItem   = "item"
	opCursor = "cursor"
)

func newState(runID, fingerprint string, now time.Time) *State {
	return &State{
		RunID:             runID,
		CreatedAt:         now,
		UpdatedAt:         now,
		ConfigFingerprint: fingerprint,
		CurrentStage:      Stages[0],
		CompletedStages:   []Stage{},
		CompletedItems:    []string{},
		Cursors:           map[string]int64{},
		Registry:          []ids.Pair{},
	}
}

// validate checks the internal consistency of a loaded state.
func (s *State) validate() error {
	if s.CurrentStage.Index() < 0 {
		return fmt.Errorf("%w: unknown current stage %q", migerr.ErrCheckpointCorruption, s.CurrentStage)
	}
	if len(s.CompletedStages) != s.CurrentStage.Index() {
		return fmt.Errorf("%w: %d completed stages but current stage is %s",
			migerr.ErrCheckpointCorruption, len(s.CompletedStages), s.CurrentStage)
	}
	for i, st := range s.CompletedStages {
		if st != Stages[i] {
			return fmt.Errorf("%w: completed stage %d is %q, expected %q", migerr.ErrCheckpointCorruption, i, st, Stages[i])
		}
	}
	if !sort.StringsAreSorted(s.CompletedItems) {
		return fmt.Errorf("%w: completed item keys are not sorted", migerr.ErrCheckpointCorruption)
	}
	if s.ConfigFingerprint == "" {
		return fmt.Errorf("%w: missing config fingerprint", migerr.ErrCheckpointCorruption)
	}
	if s.Cursors == nil {
		s.Cursors = map[string]int64{}
	}
	return nil
}
