package doer

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/solace-automations/intentflow/internal/domain"
)

// ExecutionModel is the bun-mapped row for one finished (or in-flight) run
// — the `executions` table the host store exposes (spec §6.3: "executions
// (run_id -> log + results)").
type ExecutionModel struct {
	bun.BaseModel `bun:"table:executions,alias:e"`

	RunID      string    `bun:"run_id,pk"`
	PipelineID string    `bun:"pipeline_id"`
	UserID     string    `bun:"user_id"`
	Status     string    `bun:"status"`
	Results    []byte    `bun:"results,type:jsonb"`
	Log        []byte    `bun:"log,type:jsonb"`
	CreatedAt  time.Time `bun:"created_at"`
	UpdatedAt  time.Time `bun:"updated_at"`
}

// ExecutionStore persists finished RunStates for `GET /executions` reads
// (§6.1) as a full log+results snapshot (adapted from the teacher's
// engine.go `persistEvents` pattern). It does not read or commit the
// RunState's uncommitted domain events: the RunState is read back whole via
// `GET /executions/{run_id}`, not replayed from an event log.
type ExecutionStore interface {
	Save(ctx context.Context, rs *domain.RunState) error
	Get(ctx context.Context, runID string) (*ExecutionModel, error)
}

// BunExecutionStore is the Postgres-backed ExecutionStore.
type BunExecutionStore struct {
	db *bun.DB
}

// NewBunExecutionStore opens a Postgres connection and wraps it in a bun.DB.
func NewBunExecutionStore(dsn string) *BunExecutionStore {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	return &BunExecutionStore{db: db}
}

// InitSchema creates the executions table if it doesn't already exist.
func (s *BunExecutionStore) InitSchema(ctx context.Context) error {
	_, err := s.db.NewCreateTable().Model((*ExecutionModel)(nil)).IfNotExists().Exec(ctx)
	return err
}

// Save upserts the run's current snapshot — called once per wave and once
// more at Finish, matching engine.go's "persist events after each wave"
// checkpointing so a crash mid-run still leaves a readable partial log.
func (s *BunExecutionStore) Save(ctx context.Context, rs *domain.RunState) error {
	resultsJSON, err := json.Marshal(rs.Results())
	if err != nil {
		return err
	}
	logJSON, err := json.Marshal(rs.Log())
	if err != nil {
		return err
	}
	model := &ExecutionModel{
		RunID:      rs.RunID,
		PipelineID: rs.PipelineID,
		UserID:     rs.UserID,
		Status:     rs.Status().String(),
		Results:    resultsJSON,
		Log:        logJSON,
		UpdatedAt:  time.Now(),
	}
	_, err = s.db.NewInsert().Model(model).On("CONFLICT (run_id) DO UPDATE").Exec(ctx)
	return err
}

// Get reads back one execution by run id.
func (s *BunExecutionStore) Get(ctx context.Context, runID string) (*ExecutionModel, error) {
	model := new(ExecutionModel)
	err := s.db.NewSelect().Model(model).Where("run_id = ?", runID).Scan(ctx)
	if err != nil {
		return nil, err
	}
	return model, nil
}
