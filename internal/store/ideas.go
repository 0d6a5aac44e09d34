// Package store is the sqlite persistence layer: one registry database
// for idea identity plus one database per (idea, stage) holding that
// stage's change log and fact tables.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/alucardeht/futures-mcp/internal/futures"
)

// IdeaStore persists idea identity, current stage, and lineage.
type IdeaStore struct {
	db *sql.DB
	mu sync.RWMutex
}

func NewIdeaStore(dbPath string) (*IdeaStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	db, err := openSQLite(dbPath)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(ideasSchemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("init ideas schema: %w", err)
	}
	_, _ = db.Exec(`INSERT OR IGNORE INTO schema_version (version) VALUES (?)`, schemaVersion)

	return &IdeaStore{db: db}, nil
}

func openSQLite(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, err
		}
	}

	return db, nil
}

func (s *IdeaStore) Create(idea futures.Idea) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var parent sql.NullString
	if idea.ParentIdeaID != "" {
		parent = sql.NullString{String: idea.ParentIdeaID, Valid: true}
	}

	_, err := s.db.Exec(
		`INSERT INTO ideas (id, name, description, created_at, current_stage, uncertainty_level, parent_idea_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		idea.ID, idea.Name, idea.Description,
		idea.CreatedAt.UTC().Format(time.RFC3339Nano),
		string(idea.CurrentStage), string(idea.UncertaintyLevel), parent,
	)
	if err != nil {
		return fmt.Errorf("insert idea %s: %w", idea.ID, err)
	}
	return nil
}

func (s *IdeaStore) Get(id string) (futures.Idea, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(
		`SELECT id, name, description, created_at, current_stage, uncertainty_level, parent_idea_id
		 FROM ideas WHERE id = ?`, id,
	)

	idea, err := scanIdea(row)
	if err == sql.ErrNoRows {
		return futures.Idea{}, &futures.NotFoundError{Kind: "idea", ID: id}
	}
	if err != nil {
		return futures.Idea{}, fmt.Errorf("read idea %s: %w", id, err)
	}
	return idea, nil
}

func (s *IdeaStore) List() ([]futures.Idea, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		`SELECT id, name, description, created_at, current_stage, uncertainty_level, parent_idea_id
		 FROM ideas ORDER BY created_at ASC, id ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ideas []futures.Idea
	for rows.Next() {
		idea, err := scanIdea(rows)
		if err != nil {
			return nil, err
		}
		ideas = append(ideas, idea)
	}
	return ideas, rows.Err()
}

// SetStage moves an idea to a new stage with its recomputed
// uncertainty. Identity and created_at are never touched.
func (s *IdeaStore) SetStage(id string, stage futures.Stage, uncertainty futures.UncertaintyLevel) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.Exec(
		`UPDATE ideas SET current_stage = ?, uncertainty_level = ? WHERE id = ?`,
		string(stage), string(uncertainty), id,
	)
	if err != nil {
		return fmt.Errorf("update idea %s stage: %w", id, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return &futures.NotFoundError{Kind: "idea", ID: id}
	}
	return nil
}

func (s *IdeaStore) Close() error {
	if _, err := s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		// DB still closes cleanly if the checkpoint fails
	}
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIdea(row rowScanner) (futures.Idea, error) {
	var (
		idea      futures.Idea
		createdAt string
		stage     string
		level     string
		parent    sql.NullString
	)

	if err := row.Scan(&idea.ID, &idea.Name, &idea.Description, &createdAt, &stage, &level, &parent); err != nil {
		return futures.Idea{}, err
	}

	ts, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return futures.Idea{}, fmt.Errorf("parse created_at %q: %w", createdAt, err)
	}
	idea.CreatedAt = ts
	idea.CurrentStage = futures.Stage(stage)
	idea.UncertaintyLevel = futures.UncertaintyLevel(level)
	if parent.Valid {
		idea.ParentIdeaID = parent.String
	}
	return idea, nil
}
