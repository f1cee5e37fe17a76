package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// migration represents a single schema migration.
type migration struct {
	version     int
	description string
	apply       func(tx *sql.Tx) error
}

// seedDefinitions are the built-in static glossary entries. Kept short and
// uncontroversial; remote sources override them whenever reachable.
var seedDefinitions = map[string]string{
	"porosity":     "The fraction of a rock's bulk volume occupied by pore space, typically expressed as a percentage.",
	"permeability": "A measure of a rock's ability to transmit fluids through its connected pore network, commonly in millidarcies.",
	"gamma ray":    "A well log measuring natural radioactivity of formations, used to distinguish shales from cleaner lithologies.",
	"resistivity":  "A well log measuring a formation's resistance to electrical current, used to infer fluid content.",
	"mnemonic":     "The short code identifying a log curve, such as GR for gamma ray or RHOB for bulk density.",
	"wireline":     "Logging performed by lowering instruments into a borehole on an electrical cable after drilling.",
	"lithology":    "The physical rock type of a formation, such as sandstone, shale or carbonate.",
}

// migrations is the ordered list of all schema migrations.
// New migrations are appended at the end; never modify existing entries.
var migrations = []migration{
	{
		version:     1,
		description: "initial schema (applied via schemaSQL)",
		apply:       func(tx *sql.Tx) error { return nil }, // base schema applied separately
	},
	{
		version:     2,
		description: "seed static glossary",
		apply: func(tx *sql.Tx) error {
			for term, def := range seedDefinitions {
				if _, err := tx.Exec(
					"INSERT OR IGNORE INTO static_glossary (term, definition) VALUES (?, ?)",
					term, def); err != nil {
					return err
				}
			}
			return nil
		},
	},
}

// Migrate runs all pending schema migrations.
func (s *Store) Migrate(ctx context.Context) error {
	// Ensure the schema_version table exists.
	if _, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			description TEXT,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	// Get current version.
	var current int
	row := s.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
	if err := row.Scan(&current); err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}

		slog.Info("applying migration", "version", m.version, "description", m.description)

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.version, err)
		}

		if err := m.apply(tx); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", m.version, err)
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO schema_version (version, description) VALUES (?, ?)",
			m.version, m.description); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", m.version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", m.version, err)
		}
	}

	return nil
}
