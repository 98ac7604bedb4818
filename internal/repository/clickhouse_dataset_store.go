package repository

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
	"time"

	"FinForge/internal/frame"
	"FinForge/internal/registry"
	pkgch "FinForge/pkg/clickhouse"
	applogger "FinForge/pkg/logger"
)

var identifierRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// CHDatasetStore persists finished feature datasets into ClickHouse and
// records every persisted dataset in the metadata registry. The schema gate
// runs before any table is touched: a dataset that would demote a feature
// column below float64 precision is rejected outright.
type CHDatasetStore struct {
	db       *sql.DB
	database string
	reg      *registry.Registry
	l        *applogger.Logger
}

func NewCHDatasetStore(ch *pkgch.Client, database string, reg *registry.Registry) *CHDatasetStore {
	return &CHDatasetStore{db: ch.DB(), database: database, reg: reg}
}

// SetLogger injects a structured logger.
func (s *CHDatasetStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CHDatasetStore) Name() string { return "clickhouse" }

func (s *CHDatasetStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *CHDatasetStore) Close() error { return nil }

// Persist writes the frame into <database>.<destination>, creating the
// table when needed, then commits and verifies the registry entry.
func (s *CHDatasetStore) Persist(ctx context.Context, f *frame.Frame, destination string) error {
	start := time.Now()
	if f == nil || f.NumRows() == 0 {
		return fmt.Errorf("persist: empty dataset")
	}
	if !identifierRe.MatchString(destination) {
		return fmt.Errorf("persist: invalid destination table name %q", destination)
	}

	schema := registry.SchemaOf(f)
	if err := registry.EnforceFloat64(schema); err != nil {
		return fmt.Errorf("persist: %w", err)
	}

	table := s.database + "." + destination
	if err := s.createTable(ctx, table, f.Columns()); err != nil {
		return err
	}
	if err := s.insertRows(ctx, table, f); err != nil {
		return err
	}

	entry := s.reg.EntryFor(destination, f)
	if err := s.reg.Commit(entry); err != nil {
		return fmt.Errorf("persist: %w", err)
	}
	if err := s.reg.VerifyConsistency(destination, f, nil); err != nil {
		return fmt.Errorf("persist: %w", err)
	}

	if s.l != nil {
		s.l.Info("dataset persisted",
			applogger.String("table", table),
			applogger.Int("rows", f.NumRows()),
			applogger.Int("columns", f.NumColumns()),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return nil
}

func (s *CHDatasetStore) createTable(ctx context.Context, table string, columns []string) error {
	defs := make([]string, 0, len(columns)+1)
	defs = append(defs, fmt.Sprintf("%s DateTime64(3)", frame.TimestampColumn))
	for _, name := range columns {
		if !identifierRe.MatchString(name) {
			return fmt.Errorf("persist: invalid column name %q", name)
		}
		defs = append(defs, fmt.Sprintf("%s Nullable(Float64)", name))
	}
	ddl := fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (%s) ENGINE=MergeTree ORDER BY %s",
		table, strings.Join(defs, ", "), frame.TimestampColumn,
	)
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("persist: create table %s: %w", table, err)
	}
	return nil
}

func (s *CHDatasetStore) insertRows(ctx context.Context, table string, f *frame.Frame) error {
	columns := f.Columns()
	names := append([]string{frame.TimestampColumn}, columns...)
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(names)), ", ")
	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(names, ", "), placeholders)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("persist: begin batch: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("persist: prepare insert: %w", err)
	}
	defer stmt.Close()

	ts := f.Timestamps()
	for row := 0; row < f.NumRows(); row++ {
		args := make([]any, 0, len(names))
		args = append(args, time.UnixMilli(ts[row]).UTC())
		for _, name := range columns {
			if v, ok := f.Value(name, row); ok {
				args = append(args, v)
			} else {
				args = append(args, nil)
			}
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			tx.Rollback()
			return fmt.Errorf("persist: insert row %d: %w", row, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("persist: commit batch: %w", err)
	}
	return nil
}
