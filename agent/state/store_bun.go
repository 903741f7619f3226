package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	orderx "github.com/tanpawarit/drivethru-sim/agent/order"
)

var _ Store = (*PostgresRunStore)(nil)

type PostgresConfig struct {
	DSN     string        `envconfig:"DSN" required:"true"`
	Timeout time.Duration `envconfig:"TIMEOUT" default:"10s"`
}

type runRow struct {
	bun.BaseModel `bun:"table:simulation_runs,alias:r"`

	RunID        string        `bun:"run_id,pk"`
	OrderID      string        `bun:"order_id"`
	Level        string        `bun:"level"`
	Goal         []orderx.Item `bun:"goal,type:jsonb"`
	FinalOrder   []orderx.Item `bun:"final_order,type:jsonb"`
	OrderedItems []orderx.Item `bun:"ordered_items,type:jsonb"`
	Transcript   []Message     `bun:"transcript,type:jsonb"`
	Match        bool          `bun:"match,notnull"`
	Verdict      string        `bun:"verdict"`
	FinalState   string        `bun:"final_state"`
	Turns        int           `bun:"turns,notnull"`
	Error        string        `bun:"error"`
	StartedAt    time.Time     `bun:"started_at"`
	FinishedAt   time.Time     `bun:"finished_at"`
}

func toRow(rec *RunRecord) *runRow {
	return &runRow{
		RunID:        rec.RunID,
		OrderID:      rec.OrderID,
		Level:        rec.Level,
		Goal:         rec.Goal,
		FinalOrder:   rec.FinalOrder,
		OrderedItems: rec.OrderedItems,
		Transcript:   rec.Transcript,
		Match:        rec.Match,
		Verdict:      rec.Verdict,
		FinalState:   string(rec.FinalState),
		Turns:        rec.Turns,
		Error:        rec.Error,
		StartedAt:    rec.StartedAt.UTC(),
		FinishedAt:   rec.FinishedAt.UTC(),
	}
}

func (r *runRow) record() *RunRecord {
	return &RunRecord{
		RunID:        r.RunID,
		OrderID:      r.OrderID,
		Level:        r.Level,
		Goal:         r.Goal,
		FinalOrder:   r.FinalOrder,
		OrderedItems: r.OrderedItems,
		Transcript:   r.Transcript,
		Match:        r.Match,
		Verdict:      r.Verdict,
		FinalState:   State(r.FinalState),
		Turns:        r.Turns,
		Error:        r.Error,
		StartedAt:    r.StartedAt,
		FinishedAt:   r.FinishedAt,
	}
}

// PostgresRunStore keeps run records in the simulation_runs table.
type PostgresRunStore struct {
	db      *bun.DB
	timeout time.Duration
}

// NewPostgresRunStore connects, and creates the table when missing.
func NewPostgresRunStore(ctx context.Context, cfg PostgresConfig) (*PostgresRunStore, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, errors.New("postgres dsn is required")
	}

	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	store := NewPostgresRunStoreFromDB(bun.NewDB(sqldb, pgdialect.New()), cfg.Timeout)

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}

func NewPostgresRunStoreFromDB(db *bun.DB, timeout time.Duration) *PostgresRunStore {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &PostgresRunStore{db: db, timeout: timeout}
}

func (s *PostgresRunStore) Migrate(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if _, err := s.db.NewCreateTable().Model((*runRow)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("create simulation_runs: %w", err)
	}
	return nil
}

func (s *PostgresRunStore) Save(ctx context.Context, rec *RunRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	if rec.FinishedAt.IsZero() {
		rec.FinishedAt = time.Now().UTC()
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if _, err := s.upsert(toRow(rec)).Exec(ctx); err != nil {
		return fmt.Errorf("save run %s: %w", rec.RunID, err)
	}
	return nil
}

func (s *PostgresRunStore) upsert(row *runRow) *bun.InsertQuery {
	return s.db.NewInsert().
		Model(row).
		On("CONFLICT (run_id) DO UPDATE").
		Set("final_order = EXCLUDED.final_order").
		Set("ordered_items = EXCLUDED.ordered_items").
		Set("transcript = EXCLUDED.transcript").
		Set("match = EXCLUDED.match").
		Set("verdict = EXCLUDED.verdict").
		Set("final_state = EXCLUDED.final_state").
		Set("turns = EXCLUDED.turns").
		Set("error = EXCLUDED.error").
		Set("finished_at = EXCLUDED.finished_at")
}

func (s *PostgresRunStore) Load(ctx context.Context, runID string) (*RunRecord, error) {
	if strings.TrimSpace(runID) == "" {
		return nil, ErrInvalidRun
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	row := new(runRow)
	err := s.db.NewSelect().Model(row).Where("run_id = ?", runID).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load run %s: %w", runID, err)
	}
	return row.record(), nil
}

func (s *PostgresRunStore) Delete(ctx context.Context, runID string) error {
	if strings.TrimSpace(runID) == "" {
		return ErrInvalidRun
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	_, err := s.db.NewDelete().Model((*runRow)(nil)).Where("run_id = ?", runID).Exec(ctx)
	return err
}

func (s *PostgresRunStore) Close() error {
	return s.db.Close()
}
