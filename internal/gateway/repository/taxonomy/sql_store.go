package taxonomy

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	model "promptbuilder/internal/taxonomy"
)

// Dialect selects placeholder syntax and the database/sql driver name.
type Dialect string

const (
	DialectPostgres Dialect = "pgx"
	DialectSQLite   Dialect = "sqlite"
)

func (d Dialect) placeholder(n int) string {
	if d == DialectPostgres {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

// OpenDB opens a pool for the dialect. Connectivity is checked by the caller.
func OpenDB(d Dialect, dsn string) (*sql.DB, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("%s dsn is required", d)
	}
	db, err := sql.Open(string(d), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", d, err)
	}
	if d == DialectSQLite {
		db.SetMaxOpenConns(1)
	}
	return db, nil
}

// SQLStore keeps every item as a row; position preserves the flattened save
// order so loads are deterministic.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect

	// schemaMu guards schemaDone, which is only set once the DDL succeeds
	// so a cancelled first call does not poison later ones.
	schemaMu   sync.Mutex
	schemaDone bool
}

func NewSQLStore(db *sql.DB, d Dialect) *SQLStore {
	return &SQLStore{db: db, dialect: d}
}

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS taxonomy_items (
    position INTEGER NOT NULL,
    id TEXT NOT NULL,
    category TEXT NOT NULL,
    label TEXT NOT NULL,
    prompt_text TEXT NOT NULL,
    tags TEXT NOT NULL DEFAULT '',
    sort_order INTEGER NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_taxonomy_items_category ON taxonomy_items(category)`,
}

func (s *SQLStore) ensureSchema(ctx context.Context) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("db is nil")
	}
	s.schemaMu.Lock()
	defer s.schemaMu.Unlock()
	if s.schemaDone {
		return nil
	}
	for _, stmt := range schemaStatements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure taxonomy schema: %w", err)
		}
	}
	s.schemaDone = true
	return nil
}

func (s *SQLStore) Load(ctx context.Context) (model.Data, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, category, label, prompt_text, tags, sort_order FROM taxonomy_items ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("query taxonomy items: %w", err)
	}
	defer rows.Close()

	var items []model.Item
	for rows.Next() {
		var (
			it    model.Item
			tags  string
			order sql.NullInt64
		)
		if err := rows.Scan(&it.ID, &it.Category, &it.Label, &it.PromptText, &tags, &order); err != nil {
			return nil, fmt.Errorf("scan taxonomy item: %w", err)
		}
		it.Tags = model.SplitTags(tags)
		if order.Valid {
			it.Order = model.OrderOf(int(order.Int64))
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return model.Group(items), nil
}

// Save replaces all rows inside one transaction.
func (s *SQLStore) Save(ctx context.Context, items []model.Item) error {
	if err := s.ensureSchema(ctx); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin taxonomy save: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM taxonomy_items`); err != nil {
		return fmt.Errorf("clear taxonomy items: %w", err)
	}
	p := s.dialect.placeholder
	insert := fmt.Sprintf(`INSERT INTO taxonomy_items (position, id, category, label, prompt_text, tags, sort_order) VALUES (%s, %s, %s, %s, %s, %s, %s)`,
		p(1), p(2), p(3), p(4), p(5), p(6), p(7))
	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		return fmt.Errorf("prepare taxonomy insert: %w", err)
	}
	defer stmt.Close()

	for i, it := range items {
		var order sql.NullInt64
		if it.Order != nil {
			order = sql.NullInt64{Int64: int64(*it.Order), Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, i, it.ID, it.Category, it.Label, it.PromptText, model.JoinTags(it.Tags), order); err != nil {
			return fmt.Errorf("insert taxonomy item %s: %w", it.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit taxonomy save: %w", err)
	}
	return nil
}

// Ping verifies connectivity and creates the schema on first success.
func (s *SQLStore) Ping(ctx context.Context) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("db is nil")
	}
	if err := s.db.PingContext(ctx); err != nil {
		return err
	}
	return s.ensureSchema(ctx)
}
