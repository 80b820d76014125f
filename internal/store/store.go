// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package store keeps a history of extraction runs in SQLite so results of
// successive weekly reports can be listed and compared.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/report-extract/pkg/types"
)

const dbFile = "history.db"

// ErrRunNotFound reports a run ID with no stored run.
var ErrRunNotFound = errors.New("run not found")

// Entity kinds stored in the entities table.
const (
	kindKPI          = "kpi"
	kindDate         = "date"
	kindOrganization = "organization"
)

// Store manages the run history database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the history database at dir/history.db.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating history directory: %w", err)
	}

	dbPath := filepath.Join(dir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			filename TEXT NOT NULL,
			extracted_at TEXT NOT NULL,
			backend TEXT,
			pdf_path TEXT,
			kpi_count INTEGER NOT NULL,
			date_count INTEGER NOT NULL,
			org_count INTEGER NOT NULL,
			total_entities INTEGER NOT NULL,
			document TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS entities (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			kind TEXT NOT NULL,
			position INTEGER NOT NULL,
			name TEXT NOT NULL,
			value REAL,
			unit TEXT,
			date_type TEXT,
			normalized TEXT,
			role TEXT,
			context TEXT,
			confidence REAL NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_entities_run_id ON entities(run_id)`,
		`CREATE INDEX IF NOT EXISTS idx_entities_kind_name ON entities(kind, name)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_extracted_at ON runs(extracted_at)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Run summarizes one stored extraction run.
type Run struct {
	ID          string
	Filename    string
	ExtractedAt string
	Backend     string
	PDFPath     string
	Statistics  types.Statistics
}

// SaveRun stores o under its run ID. Saving a run ID again replaces the
// earlier run and its entities.
func (s *Store) SaveRun(ctx context.Context, o types.Output) error {
	id := o.Document.RunID
	if id == "" {
		return fmt.Errorf("saving run: output has no run ID")
	}

	var docJSON []byte
	if o.Document.Metadata != nil {
		docJSON, _ = json.Marshal(o.Document.Metadata)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM entities WHERE run_id = ?`, id); err != nil {
		return fmt.Errorf("deleting old entities: %w", err)
	}

	st := o.Statistics
	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, filename, extracted_at, backend, pdf_path, kpi_count, date_count, org_count, total_entities, document)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			filename=excluded.filename, extracted_at=excluded.extracted_at,
			backend=excluded.backend, pdf_path=excluded.pdf_path,
			kpi_count=excluded.kpi_count, date_count=excluded.date_count,
			org_count=excluded.org_count, total_entities=excluded.total_entities,
			document=excluded.document`,
		id, o.Document.Filename, o.Document.ExtractionTimestamp, o.Document.Backend, o.Document.PDFPath,
		st.KPICount, st.DateCount, st.OrgCount, st.TotalEntities, nullString(string(docJSON)),
	)
	if err != nil {
		return fmt.Errorf("upserting run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO entities (run_id, kind, position, name, value, unit, date_type, normalized, role, context, confidence)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	insert := func(kind string, pos int, name string, value any, unit, dateType, normalized, role, excerpt string, conf float64) error {
		_, err := stmt.ExecContext(ctx, id, kind, pos, name, value,
			nullString(unit), nullString(dateType), nullString(normalized), nullString(role), nullString(excerpt), conf)
		if err != nil {
			return fmt.Errorf("inserting %s %q: %w", kind, name, err)
		}
		return nil
	}

	for i, k := range o.Entities.KPIs {
		if err := insert(kindKPI, i, k.Name, k.Value, k.Unit, "", "", "", k.Context, k.Confidence); err != nil {
			return err
		}
	}
	for i, d := range o.Entities.Dates {
		if err := insert(kindDate, i, d.Text, nil, "", string(d.Type), d.Normalized, "", "", d.Confidence); err != nil {
			return err
		}
	}
	for i, org := range o.Entities.Organizations {
		if err := insert(kindOrganization, i, org.Name, nil, "", "", "", org.Role, "", org.Confidence); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// ListRuns returns stored runs, most recent first. A limit of zero or
// less returns all runs.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT id, filename, extracted_at, backend, pdf_path, kpi_count, date_count, org_count, total_entities
		FROM runs ORDER BY extracted_at DESC, id`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var backend, pdfPath sql.NullString
		if err := rows.Scan(&r.ID, &r.Filename, &r.ExtractedAt, &backend, &pdfPath,
			&r.Statistics.KPICount, &r.Statistics.DateCount, &r.Statistics.OrgCount, &r.Statistics.TotalEntities); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		r.Backend = backend.String
		r.PDFPath = pdfPath.String
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// RunEntities returns the entities stored for runID in their original
// order.
func (s *Store) RunEntities(ctx context.Context, runID string) (types.Entities, error) {
	var exists int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM runs WHERE id = ?`, runID).Scan(&exists); err != nil {
		return types.Entities{}, fmt.Errorf("looking up run: %w", err)
	}
	if exists == 0 {
		return types.Entities{}, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT kind, name, value, unit, date_type, normalized, role, context, confidence
		 FROM entities WHERE run_id = ? ORDER BY kind, position`, runID)
	if err != nil {
		return types.Entities{}, fmt.Errorf("querying entities: %w", err)
	}
	defer rows.Close()

	var e types.Entities
	for rows.Next() {
		var kind, name string
		var value sql.NullFloat64
		var unit, dateType, normalized, role, excerpt sql.NullString
		var conf float64
		if err := rows.Scan(&kind, &name, &value, &unit, &dateType, &normalized, &role, &excerpt, &conf); err != nil {
			return types.Entities{}, fmt.Errorf("scanning entity: %w", err)
		}
		switch kind {
		case kindKPI:
			e.KPIs = append(e.KPIs, types.KPI{Name: name, Value: value.Float64, Unit: unit.String, Context: excerpt.String, Confidence: conf})
		case kindDate:
			e.Dates = append(e.Dates, types.DateRef{Text: name, Type: types.DateType(dateType.String), Normalized: normalized.String, Confidence: conf})
		case kindOrganization:
			e.Organizations = append(e.Organizations, types.Organization{Name: name, Role: role.String, Confidence: conf})
		}
	}
	if err := rows.Err(); err != nil {
		return types.Entities{}, err
	}
	return e.Normalize(), nil
}

// KPIPoint is one value of a KPI recorded by a run.
type KPIPoint struct {
	RunID       string
	Filename    string
	ExtractedAt string
	Name        string
	Value       float64
	Unit        string
}

// KPIHistory returns every stored value of KPIs whose name contains name,
// compared case-insensitively, oldest run first.
func (s *Store) KPIHistory(ctx context.Context, name string) ([]KPIPoint, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT r.id, r.filename, r.extracted_at, e.name, e.value, e.unit
		 FROM entities e JOIN runs r ON r.id = e.run_id
		 WHERE e.kind = ? AND lower(e.name) LIKE ? ESCAPE '\'
		 ORDER BY r.extracted_at, e.position`,
		kindKPI, "%"+escapeLike(strings.ToLower(name))+"%")
	if err != nil {
		return nil, fmt.Errorf("querying KPI history: %w", err)
	}
	defer rows.Close()

	var points []KPIPoint
	for rows.Next() {
		var p KPIPoint
		var unit sql.NullString
		var value sql.NullFloat64
		if err := rows.Scan(&p.RunID, &p.Filename, &p.ExtractedAt, &p.Name, &value, &unit); err != nil {
			return nil, fmt.Errorf("scanning KPI point: %w", err)
		}
		p.Value = value.Float64
		p.Unit = unit.String
		points = append(points, p)
	}
	return points, rows.Err()
}

// DeleteRun removes a run and its entities.
func (s *Store) DeleteRun(ctx context.Context, runID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, runID)
	if err != nil {
		return fmt.Errorf("deleting run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
