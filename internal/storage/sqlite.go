package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/eugenenazirov/pallet-allocator/internal/domain"
)

// SQLiteStorage persists tiers and the numbering sequence in a SQLite database.
type SQLiteStorage struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path, applies the schema and
// seeds the default tiers into an empty table.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database %q: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("verify sqlite connection to %q: %w", path, err)
	}

	s := &SQLiteStorage{db: db}
	if err := s.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := s.seedTiers(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStorage) initSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("init schema: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	statements := []string{
		`CREATE TABLE IF NOT EXISTS capacity_tiers (
			category TEXT NOT NULL,
			min_value INTEGER NOT NULL,
			max_value INTEGER NOT NULL,
			euro INTEGER NOT NULL DEFAULT 0,
			industrial INTEGER NOT NULL DEFAULT 0,
			alternative_euro INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (category, min_value)
		);`,
		`CREATE TABLE IF NOT EXISTS numbering_state (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			last_number INTEGER NOT NULL,
			last_letter TEXT NOT NULL DEFAULT ''
		);`,
		`INSERT OR IGNORE INTO numbering_state (id, last_number, last_letter) VALUES (1, 0, '');`,
	}

	for i, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: exec statement #%d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("init schema: commit tx: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) seedTiers(ctx context.Context) error {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM capacity_tiers`).Scan(&count); err != nil {
		return fmt.Errorf("seed tiers: count rows: %w", err)
	}
	if count > 0 {
		return nil
	}
	for _, category := range []domain.Category{domain.CategoryDefault, domain.CategoryPoland, domain.CategoryKievit} {
		if err := s.ReplaceTiers(ctx, category, DefaultTiers().ForCategory(category)); err != nil {
			return fmt.Errorf("seed tiers: %w", err)
		}
	}
	return nil
}

// Tiers returns every tier row ordered by category and lower bound.
func (s *SQLiteStorage) Tiers(ctx context.Context) (domain.TierTable, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT category, min_value, max_value, euro, industrial, alternative_euro
		FROM capacity_tiers
		ORDER BY category, min_value`)
	if err != nil {
		return nil, fmt.Errorf("query tiers: %w", err)
	}
	defer rows.Close()

	var out domain.TierTable
	for rows.Next() {
		var (
			category                    string
			lo, hi, euro, ind, altEuro int
		)
		if err := rows.Scan(&category, &lo, &hi, &euro, &ind, &altEuro); err != nil {
			return nil, fmt.Errorf("scan tier: %w", err)
		}
		out = append(out, tier(domain.Category(category), lo, hi, euro, ind, altEuro))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tiers: %w", err)
	}
	return out, nil
}

// ReplaceTiers swaps the rows of one category in a single transaction.
func (s *SQLiteStorage) ReplaceTiers(ctx context.Context, category domain.Category, tiers []domain.Tier) error {
	normalized, err := normalizeTiers(category, tiers)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("replace tiers: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM capacity_tiers WHERE category = ?`, string(category)); err != nil {
		return fmt.Errorf("replace tiers: delete %s: %w", category, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO capacity_tiers (category, min_value, max_value, euro, industrial, alternative_euro)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("replace tiers: prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, t := range normalized {
		if _, err := stmt.ExecContext(ctx, string(category), t.MinValue, t.MaxValue,
			t.Count(domain.CarrierEuro), t.Count(domain.CarrierIndustrial), t.Count(domain.CarrierAlternativeEuro)); err != nil {
			return fmt.Errorf("replace tiers: insert %d-%d: %w", t.MinValue, t.MaxValue, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("replace tiers: commit tx: %w", err)
	}
	return nil
}

// LoadNumbering returns the last committed numbering state.
func (s *SQLiteStorage) LoadNumbering(ctx context.Context) (domain.NumberingState, error) {
	var state domain.NumberingState
	err := s.db.QueryRowContext(ctx, `SELECT last_number, last_letter FROM numbering_state WHERE id = 1`).
		Scan(&state.LastNumber, &state.LastLetter)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.NumberingState{}, nil
	}
	if err != nil {
		return domain.NumberingState{}, fmt.Errorf("load numbering: %w", err)
	}
	return state, nil
}

// SaveNumbering stores next if the stored state still equals expected,
// otherwise it returns ErrNumberingConflict.
func (s *SQLiteStorage) SaveNumbering(ctx context.Context, expected, next domain.NumberingState) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE numbering_state SET last_number = ?, last_letter = ?
		WHERE id = 1 AND last_number = ? AND last_letter = ?`,
		next.LastNumber, next.LastLetter, expected.LastNumber, expected.LastLetter)
	if err != nil {
		return fmt.Errorf("save numbering: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("save numbering: rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNumberingConflict
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
