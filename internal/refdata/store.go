package refdata

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	_ "modernc.org/sqlite"

	"github.com/medbillai/medbill/constants"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS rates (
	procedure_name TEXT NOT NULL,
	category       TEXT NOT NULL DEFAULT '',
	non_nabh_rate  REAL NOT NULL DEFAULT 0,
	nabh_rate      REAL NOT NULL DEFAULT 0,
	scheme_tag     TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_rates_name ON rates(procedure_name);

CREATE TABLE IF NOT EXISTS hospitals (
	name             TEXT NOT NULL,
	city             TEXT NOT NULL DEFAULT '',
	state            TEXT NOT NULL DEFAULT '',
	nabh_status      INTEGER NOT NULL DEFAULT 0,
	empanelled_for   TEXT NOT NULL DEFAULT '',
	empanelment_date TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_hospitals_name ON hospitals(name);

CREATE TABLE IF NOT EXISTS procedure_stats (
	procedure    TEXT NOT NULL,
	mean_amount  REAL NOT NULL,
	stdev_amount REAL NOT NULL,
	sample_count INTEGER NOT NULL
);
`

// OpenDB opens the reference SQLite database, creating the schema if needed.
func OpenDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open reference db: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure reference schema: %w", err)
	}
	return db, nil
}

// loadSnapshot reads the whole reference database into memory. A missing
// file yields an empty snapshot, not an error.
func loadSnapshot(ctx context.Context, path string) (*Snapshot, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return NewSnapshot(nil, nil, nil), nil
	}

	db, err := OpenDB(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = db.Close() }()

	rates, err := readRates(ctx, db)
	if err != nil {
		return nil, err
	}
	hospitals, err := readHospitals(ctx, db)
	if err != nil {
		return nil, err
	}
	stats, err := readStats(ctx, db)
	if err != nil {
		return nil, err
	}
	return NewSnapshot(rates, hospitals, stats), nil
}

func readRates(ctx context.Context, db *sql.DB) ([]Rate, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT procedure_name, category, non_nabh_rate, nabh_rate, scheme_tag FROM rates`)
	if err != nil {
		return nil, fmt.Errorf("read rates: %w", err)
	}
	defer rows.Close()

	var out []Rate
	for rows.Next() {
		var r Rate
		var tag string
		if err := rows.Scan(&r.ProcedureName, &r.Category, &r.NonNABHRate, &r.NABHRate, &tag); err != nil {
			return nil, fmt.Errorf("scan rate: %w", err)
		}
		r.SchemeTag = constants.RateTag(tag)
		out = append(out, r)
	}
	return out, rows.Err()
}

func readHospitals(ctx context.Context, db *sql.DB) ([]Hospital, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT name, city, state, nabh_status, empanelled_for, empanelment_date FROM hospitals`)
	if err != nil {
		return nil, fmt.Errorf("read hospitals: %w", err)
	}
	defer rows.Close()

	var out []Hospital
	for rows.Next() {
		var h Hospital
		var nabh int
		if err := rows.Scan(&h.Name, &h.City, &h.State, &nabh, &h.EmpanelledFor, &h.EmpanelmentDate); err != nil {
			return nil, fmt.Errorf("scan hospital: %w", err)
		}
		h.NABHStatus = nabh != 0
		out = append(out, h)
	}
	return out, rows.Err()
}

func readStats(ctx context.Context, db *sql.DB) ([]ProcedureStats, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT procedure, mean_amount, stdev_amount, sample_count FROM procedure_stats`)
	if err != nil {
		return nil, fmt.Errorf("read procedure stats: %w", err)
	}
	defer rows.Close()

	var out []ProcedureStats
	for rows.Next() {
		var s ProcedureStats
		if err := rows.Scan(&s.Procedure, &s.MeanAmount, &s.StdevAmount, &s.SampleCount); err != nil {
			return nil, fmt.Errorf("scan procedure stats: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ReplaceRates swaps the rates table content in one transaction.
func ReplaceRates(ctx context.Context, db *sql.DB, rates []Rate) error {
	return replaceAll(ctx, db, "rates", func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO rates (procedure_name, category, non_nabh_rate, nabh_rate, scheme_tag) VALUES ($1, $2, $3, $4, $5)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, r := range rates {
			if _, err := stmt.ExecContext(ctx, r.ProcedureName, r.Category, r.NonNABHRate, r.NABHRate, string(r.SchemeTag)); err != nil {
				return err
			}
		}
		return nil
	})
}

// ReplaceHospitals swaps the hospitals table content in one transaction.
func ReplaceHospitals(ctx context.Context, db *sql.DB, hospitals []Hospital) error {
	return replaceAll(ctx, db, "hospitals", func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO hospitals (name, city, state, nabh_status, empanelled_for, empanelment_date) VALUES ($1, $2, $3, $4, $5, $6)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, h := range hospitals {
			nabh := 0
			if h.NABHStatus {
				nabh = 1
			}
			if _, err := stmt.ExecContext(ctx, h.Name, h.City, h.State, nabh, h.EmpanelledFor, h.EmpanelmentDate); err != nil {
				return err
			}
		}
		return nil
	})
}

// ReplaceStats swaps the procedure_stats table content in one transaction.
func ReplaceStats(ctx context.Context, db *sql.DB, stats []ProcedureStats) error {
	return replaceAll(ctx, db, "procedure_stats", func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO procedure_stats (procedure, mean_amount, stdev_amount, sample_count) VALUES ($1, $2, $3, $4)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, s := range stats {
			if _, err := stmt.ExecContext(ctx, s.Procedure, s.MeanAmount, s.StdevAmount, s.SampleCount); err != nil {
				return err
			}
		}
		return nil
	})
}

func replaceAll(ctx context.Context, db *sql.DB, table string, insert func(*sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace %s: %w", table, err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("clear %s: %w", table, err)
	}
	if err := insert(tx); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("fill %s: %w", table, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit %s: %w", table, err)
	}
	return nil
}
