package state

import (
	"context"
	"errors"
	"strings"
	"time"

	orderx "github.com/tanpawarit/drivethru-sim/agent/order"
)

var (
	ErrRunNotFound = errors.New("run record not found")
	ErrNilRun      = errors.New("run record is nil")
	ErrInvalidRun  = errors.New("run id is empty")
)

// RunRecord is the persisted outcome of one simulated conversation.
type RunRecord struct {
	RunID        string        `json:"run_id"`
	OrderID      string        `json:"order_id"`
	Level        string        `json:"level"`
	Goal         []orderx.Item `json:"goal"`
	FinalOrder   []orderx.Item `json:"final_order"`
	OrderedItems []orderx.Item `json:"ordered_items"`
	Transcript   []Message     `json:"transcript"`
	Match        bool          `json:"match"`
	Verdict      string        `json:"verdict"`
	FinalState   State         `json:"final_state"`
	Turns        int           `json:"turns"`
	Error        string        `json:"error,omitempty"`
	StartedAt    time.Time     `json:"started_at"`
	FinishedAt   time.Time     `json:"finished_at"`
}

func (r *RunRecord) Validate() error {
	if r == nil {
		return ErrNilRun
	}
	if strings.TrimSpace(r.RunID) == "" {
		return ErrInvalidRun
	}
	return nil
}

// Store is the persistence contract for run records.
type Store interface {
	Save(ctx context.Context, rec *RunRecord) error
	Load(ctx context.Context, runID string) (*RunRecord, error)
	Delete(ctx context.Context, runID string) error
}
