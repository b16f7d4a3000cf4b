// Package persistence archives simulation sessions in SQLite.
package persistence

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/selection-lab/internal/engine"
)

// DB wraps a SQLite connection for the generation history archive.
type DB struct {
	conn *sqlx.DB
}

// Session is one engine run, from process start or reset to the next reset.
type Session struct {
	ID           string    `db:"id" json:"id"`
	StartedAt    time.Time `db:"started_at" json:"started_at"`
	Seed         int64     `db:"seed" json:"seed"`
	InitPolicy   string    `db:"init_policy" json:"init_policy"`
	Reproduction string    `db:"reproduction" json:"reproduction"`
	KillCap      int       `db:"kill_cap" json:"kill_cap"`
	MinViable    int       `db:"min_viable" json:"min_viable"`
	MutationRate float64   `db:"mutation_rate" json:"mutation_rate"`
}

// GenerationRow is an archived generation summary.
type GenerationRow struct {
	SessionID       string    `db:"session_id" json:"session_id"`
	Generation      int       `db:"generation" json:"generation"`
	Environment     string    `db:"environment" json:"environment"`
	EnvironmentKind string    `db:"environment_type" json:"environment_type"`
	Green           int       `db:"green" json:"green"`
	Hybrid          int       `db:"hybrid" json:"hybrid"`
	Brown           int       `db:"brown" json:"brown"`
	Alive           int       `db:"alive" json:"alive"`
	GreenAlleleFreq float64   `db:"green_allele_freq" json:"green_allele_freq"`
	Mutations       int       `db:"mutations" json:"mutations"`
	Eaten           int       `db:"eaten" json:"eaten"`
	Extinct         bool      `db:"extinct" json:"extinct"`
	CompletedAt     time.Time `db:"completed_at" json:"completed_at"`
}

// Observation is an archived log event.
type Observation struct {
	SessionID   string    `db:"session_id" json:"session_id"`
	Generation  int       `db:"generation" json:"generation"`
	Stage       string    `db:"stage" json:"stage"`
	Category    string    `db:"category" json:"category"`
	Description string    `db:"description" json:"description"`
	At          time.Time `db:"at" json:"at"`
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// SQLite serializes writers; one connection avoids SQLITE_BUSY churn.
	conn.SetMaxOpenConns(1)

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		started_at TIMESTAMP NOT NULL,
		seed INTEGER NOT NULL,
		init_policy TEXT NOT NULL,
		reproduction TEXT NOT NULL,
		kill_cap INTEGER NOT NULL,
		min_viable INTEGER NOT NULL,
		mutation_rate REAL NOT NULL
	);

	CREATE TABLE IF NOT EXISTS generations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL REFERENCES sessions(id),
		generation INTEGER NOT NULL,
		environment TEXT NOT NULL,
		environment_type TEXT NOT NULL,
		green INTEGER NOT NULL,
		hybrid INTEGER NOT NULL,
		brown INTEGER NOT NULL,
		alive INTEGER NOT NULL,
		green_allele_freq REAL NOT NULL,
		mutations INTEGER NOT NULL,
		eaten INTEGER NOT NULL,
		extinct INTEGER NOT NULL,
		completed_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS observations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL REFERENCES sessions(id),
		generation INTEGER NOT NULL,
		stage TEXT NOT NULL,
		category TEXT NOT NULL,
		description TEXT NOT NULL,
		at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_generations_session ON generations(session_id, generation);
	CREATE INDEX IF NOT EXISTS idx_observations_session ON observations(session_id);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// StartSession records a new session and returns its ID.
func (db *DB) StartSession(seed int64, cfg engine.Config) (string, error) {
	id := uuid.New().String()
	_, err := db.conn.Exec(`INSERT INTO sessions
		(id, started_at, seed, init_policy, reproduction, kill_cap, min_viable, mutation_rate)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, time.Now().UTC(), seed, string(cfg.Init), string(cfg.Reproduction),
		cfg.KillCap, cfg.MinViable, cfg.MutationRate,
	)
	if err != nil {
		return "", fmt.Errorf("insert session: %w", err)
	}
	slog.Info("history session started", "session", id)
	return id, nil
}

// SaveGeneration appends a generation summary.
func (db *DB) SaveGeneration(sessionID string, rec engine.GenerationRecord) error {
	_, err := db.conn.Exec(`INSERT INTO generations
		(session_id, generation, environment, environment_type, green, hybrid, brown,
		 alive, green_allele_freq, mutations, eaten, extinct, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sessionID, rec.Generation, rec.Environment, rec.EnvironmentKind.String(),
		rec.Stats.Green, rec.Stats.Hybrid, rec.Stats.Brown, rec.Stats.Alive,
		rec.Stats.GreenAlleleFreq, rec.Mutations, rec.Eaten, rec.Extinct,
		rec.CompletedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert generation %d: %w", rec.Generation, err)
	}
	return nil
}

// SaveObservations appends events to the archive.
func (db *DB) SaveObservations(sessionID string, events []engine.Event) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Preparex(`INSERT INTO observations
		(session_id, generation, stage, category, description, at)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range events {
		_, err := stmt.Exec(sessionID, e.Generation, e.Stage.String(), e.Category, e.Description, e.At.UTC())
		if err != nil {
			return fmt.Errorf("insert observation: %w", err)
		}
	}

	return tx.Commit()
}

// Generations returns a session's archived generations, oldest first.
// A limit of 0 or less returns all of them.
func (db *DB) Generations(sessionID string, limit int) ([]GenerationRow, error) {
	if limit <= 0 {
		limit = -1
	}
	var rows []GenerationRow
	err := db.conn.Select(&rows, `SELECT session_id, generation, environment, environment_type,
		green, hybrid, brown, alive, green_allele_freq, mutations, eaten, extinct, completed_at
		FROM generations WHERE session_id = ? ORDER BY id ASC LIMIT ?`,
		sessionID, limit,
	)
	return rows, err
}

// RecentObservations returns a session's most recent N events, newest first.
func (db *DB) RecentObservations(sessionID string, limit int) ([]Observation, error) {
	var rows []Observation
	err := db.conn.Select(&rows, `SELECT session_id, generation, stage, category, description, at
		FROM observations WHERE session_id = ? ORDER BY id DESC LIMIT ?`,
		sessionID, limit,
	)
	return rows, err
}

// Sessions returns the most recent N sessions, newest first.
func (db *DB) Sessions(limit int) ([]Session, error) {
	var rows []Session
	err := db.conn.Select(&rows, `SELECT id, started_at, seed, init_policy, reproduction,
		kill_cap, min_viable, mutation_rate
		FROM sessions ORDER BY started_at DESC, rowid DESC LIMIT ?`,
		limit,
	)
	return rows, err
}
