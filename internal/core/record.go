package core

import (
	"context"
	"fmt"
	"math"
	"time"
)

// RecordVersion is bumped whenever the record layout changes incompatibly.
const RecordVersion = 1

// Record is one persisted checkpoint. A gen or dis record carries one
// network; a combined record carries both.
type Record struct {
	Version int       `json:"version"`
	Role    Role      `json:"role"`
	RunID   string    `json:"runId"`
	SavedAt time.Time `json:"savedAt"`

	Resolution   float64 `json:"resolution"`
	Phase        Phase   `json:"phase"`
	GlobalTick   int64   `json:"globalTick"`
	GlobalIter   int64   `json:"globalIter"`
	KImgs        int64   `json:"kimgs"`
	Stack        int64   `json:"stack"`
	Epoch        int64   `json:"epoch"`
	LearningRate float64 `json:"learningRate"`

	Networks map[Role]*NetworkState `json:"networks"`
}

// NetworkState is the per network part of a record.
type NetworkState struct {
	Complete   float64 `json:"complete"`
	Flush      bool    `json:"flush"`
	ParamCount int     `json:"paramCount"`
	Params     []byte  `json:"params"`
	Optimizer  []byte  `json:"optimizer,omitempty"`
}

// Level returns floor(Resolution).
func (r *Record) Level() int {
	return int(math.Floor(r.Resolution))
}

// Network returns the state stored for role, if present.
func (r *Record) Network(role Role) (*NetworkState, bool) {
	ns, ok := r.Networks[role]
	return ns, ok && ns != nil
}

// Validate checks that a decoded record is usable.
func (r *Record) Validate() error {
	if r.Version != RecordVersion {
		return fmt.Errorf("%w: unsupported version %d", ErrInvalidRecord, r.Version)
	}
	roles := r.Role.Roles()
	if roles == nil {
		return fmt.Errorf("%w: unknown role %q", ErrInvalidRecord, r.Role)
	}
	if r.Resolution < MinLevel {
		return fmt.Errorf("%w: resolution %g below %d", ErrInvalidRecord, r.Resolution, MinLevel)
	}
	for _, role := range roles {
		if _, ok := r.Network(role); !ok {
			return fmt.Errorf("%w: missing %s network", ErrInvalidRecord, role)
		}
	}
	return nil
}

// CheckpointStore persists records.
type CheckpointStore interface {
	// Save writes rec and returns the path it was written to.
	Save(ctx context.Context, rec *Record) (string, error)
	// Exists reports whether a record for role at (level, tick) was written.
	Exists(ctx context.Context, role Role, level int, tick int64) (bool, error)
	// Load reads the record at path.
	Load(ctx context.Context, path string) (*Record, error)
	// Latest returns the path of the newest record for role.
	Latest(ctx context.Context, role Role) (string, error)
}
