package registry

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

// PipelineModel is the bun-mapped row for one wired PipelineDAG — the
// `pipelines` table the host store exposes (§6.4: "pipelines (id -> DAG)").
// The DAG is stored whole as jsonb rather than normalized into node/edge
// tables since nothing outside the Thinker/Doer ever queries into it.
type PipelineModel struct {
	bun.BaseModel `bun:"table:pipelines,alias:p"`

	ID        string    `bun:"id,pk"`
	Name      string    `bun:"name"`
	DAG       []byte    `bun:"dag,type:jsonb"`
	CreatedAt time.Time `bun:"created_at"`
	UpdatedAt time.Time `bun:"updated_at"`
}

// PipelineStore is the Postgres-backed pipeline store behind
// `GET|DELETE /pipelines[...]` (§6.1), grounded on the same bun/pgdriver
// shape as registry.Store and doer.BunExecutionStore.
type PipelineStore struct {
	db *bun.DB
}

// NewPipelineStore opens a Postgres connection and wraps it in a bun.DB.
func NewPipelineStore(dsn string) *PipelineStore {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	return &PipelineStore{db: db}
}

// InitSchema creates the pipelines table if it doesn't already exist.
func (s *PipelineStore) InitSchema(ctx context.Context) error {
	_, err := s.db.NewCreateTable().Model((*PipelineModel)(nil)).IfNotExists().Exec(ctx)
	return err
}

// Save upserts a wired pipeline, called once Wire produces a valid DAG.
func (s *PipelineStore) Save(ctx context.Context, dag *domain.PipelineDAG) error {
	dagJSON, err := json.Marshal(dag)
	if err != nil {
		return err
	}
	now := time.Now()
	model := &PipelineModel{
		ID:        dag.ID,
		Name:      dag.Name,
		DAG:       dagJSON,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err = s.db.NewInsert().Model(model).
		On("CONFLICT (id) DO UPDATE").
		Set("name = EXCLUDED.name, dag = EXCLUDED.dag, updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

// Get reads back one pipeline by id.
func (s *PipelineStore) Get(ctx context.Context, id string) (*domain.PipelineDAG, error) {
	model := new(PipelineModel)
	err := s.db.NewSelect().Model(model).Where("id = ?", id).Scan(ctx)
	if err != nil {
		return nil, domain.NewDomainError(domain.ErrCodeNotFound, "pipeline "+id+" not found", err)
	}
	var dag domain.PipelineDAG
	if err := json.Unmarshal(model.DAG, &dag); err != nil {
		return nil, domain.StoreError("failed to decode stored pipeline", err)
	}
	return &dag, nil
}

// List enumerates every stored pipeline.
func (s *PipelineStore) List(ctx context.Context) ([]*domain.PipelineDAG, error) {
	var models []PipelineModel
	if err := s.db.NewSelect().Model(&models).OrderExpr("created_at DESC").Scan(ctx); err != nil {
		return nil, domain.StoreError("failed to list pipelines", err)
	}
	out := make([]*domain.PipelineDAG, 0, len(models))
	for _, m := range models {
		var dag domain.PipelineDAG
		if err := json.Unmarshal(m.DAG, &dag); err != nil {
			return nil, domain.StoreError("failed to decode stored pipeline", err)
		}
		out = append(out, &dag)
	}
	return out, nil
}

// Delete removes a stored pipeline by id.
func (s *PipelineStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.NewDelete().Model((*PipelineModel)(nil)).Where("id = ?", id).Exec(ctx)
	return err
}
