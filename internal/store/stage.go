package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/alucardeht/futures-mcp/internal/futures"
)

// StageStore is the event-sourced store for one (idea, stage) pair:
// a single initial snapshot, an append-only change log, and the three
// fact tables derived from the same writes. Every mutating method
// commits the ledger row and its change record in one transaction, so
// no partial write is ever visible.
type StageStore struct {
	ideaID string
	stage  futures.Stage
	db     *sql.DB
	mu     sync.RWMutex
}

// StagePath is the on-disk layout convention: <dataDir>/<ideaID>/<stage>.db.
func StagePath(dataDir, ideaID string, stage futures.Stage) string {
	return filepath.Join(dataDir, ideaID, string(stage)+".db")
}

// IdeasPath locates the idea registry database inside a data dir.
func IdeasPath(dataDir string) string {
	return filepath.Join(dataDir, "ideas.db")
}

// ParseStagePath inverts StagePath for a file somewhere under the data
// dir. Returns ok=false for anything that is not a stage database,
// including the registry and sqlite journal files.
func ParseStagePath(dataDir, path string) (ideaID string, stage futures.Stage, ok bool) {
	rel, err := filepath.Rel(dataDir, path)
	if err != nil {
		return "", "", false
	}
	dir, file := filepath.Split(filepath.ToSlash(rel))
	ideaID = strings.Trim(dir, "/")
	if ideaID == "" || strings.Contains(ideaID, "/") || strings.HasPrefix(ideaID, ".") {
		return "", "", false
	}
	name, found := strings.CutSuffix(file, ".db")
	if !found {
		return "", "", false
	}
	stage, err = futures.ParseStage(name)
	if err != nil {
		return "", "", false
	}
	return ideaID, stage, true
}

func NewStageStore(dataDir, ideaID string, stage futures.Stage) (*StageStore, error) {
	path := StagePath(dataDir, ideaID, stage)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create stage dir: %w", err)
	}

	db, err := openSQLite(path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(stageSchemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("init stage schema: %w", err)
	}
	_, _ = db.Exec(`INSERT OR IGNORE INTO schema_version (version) VALUES (?)`, schemaVersion)

	return &StageStore{ideaID: ideaID, stage: stage, db: db}, nil
}

func (s *StageStore) IdeaID() string       { return s.ideaID }
func (s *StageStore) Stage() futures.Stage { return s.stage }

// WriteInitialState records the one initial snapshot for this stage.
// Idempotent: rewriting the same snapshot is harmless.
func (s *StageStore) WriteInitialState(state futures.StageState, createdAt time.Time) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(state)
	if err != nil {
		return "", fmt.Errorf("marshal initial state: %w", err)
	}
	hash, err := futures.HashState(state)
	if err != nil {
		return "", err
	}

	_, err = s.db.Exec(
		`INSERT OR REPLACE INTO initial_state (idea_id, stage, state_data, state_hash, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		s.ideaID, string(s.stage), string(data), hash, createdAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return "", fmt.Errorf("write initial state: %w", err)
	}
	return hash, nil
}

// InitialState loads the snapshot. A missing snapshot is not an error:
// a freshly initialized stage behaves as an empty state.
func (s *StageStore) InitialState() (futures.StageState, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var data string
	err := s.db.QueryRow(
		`SELECT state_data FROM initial_state WHERE idea_id = ?`, s.ideaID,
	).Scan(&data)
	if err == sql.ErrNoRows {
		return futures.NewStageState(s.ideaID, s.stage), false, nil
	}
	if err != nil {
		return futures.StageState{}, false, fmt.Errorf("read initial state: %w", err)
	}

	var state futures.StageState
	if err := json.Unmarshal([]byte(data), &state); err != nil {
		return futures.StageState{}, false, fmt.Errorf("decode initial state: %w", err)
	}
	return state, true, nil
}

// Changes returns the full change log in replay order: timestamp
// ascending, insertion order as the tie-break.
func (s *StageStore) Changes() ([]futures.StateChange, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		`SELECT change_id, idea_id, stage, timestamp, change_type, change_data, previous_state_hash, new_state_hash
		 FROM state_changes WHERE idea_id = ? ORDER BY timestamp ASC, rowid ASC`,
		s.ideaID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var changes []futures.StateChange
	for rows.Next() {
		var (
			c       futures.StateChange
			stage   string
			ts      string
			ctype   string
			payload string
		)
		if err := rows.Scan(&c.ChangeID, &c.IdeaID, &stage, &ts, &ctype, &payload, &c.BeforeHash, &c.AfterHash); err != nil {
			return nil, err
		}
		parsed, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("parse change timestamp %q: %w", ts, err)
		}
		c.Stage = futures.Stage(stage)
		c.Timestamp = parsed
		c.ChangeType = futures.ChangeType(ctype)
		c.Payload = json.RawMessage(payload)
		changes = append(changes, c)
	}
	return changes, rows.Err()
}

// AppendChange writes a change record with no accompanying ledger row
// (stage_advanced is the only such variant).
func (s *StageStore) AppendChange(change futures.StateChange) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := insertChange(tx, change); err != nil {
		return err
	}
	return tx.Commit()
}

// InsertKnowledge writes a knowledge item and its change record
// atomically.
func (s *StageStore) InsertKnowledge(item futures.KnowledgeItem, change futures.StateChange) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	spec, err := json.Marshal(item.Specification)
	if err != nil {
		return fmt.Errorf("marshal specification: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO knowledge (idea_id, stage, component_name, component_type, specification, confidence, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		item.IdeaID, string(item.Stage), item.ComponentName, string(item.ComponentType),
		string(spec), item.Confidence,
		item.CreatedAt.UTC().Format(time.RFC3339Nano),
		item.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert knowledge: %w", err)
	}

	if err := insertChange(tx, change); err != nil {
		return err
	}
	return tx.Commit()
}

// UpdateKnowledge rewrites the latest ledger row for a component with
// its merged specification, alongside the change record.
func (s *StageStore) UpdateKnowledge(componentName string, spec map[string]any, confidence *float64, updatedAt time.Time, change futures.StateChange) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	specJSON, err := json.Marshal(spec)
	if err != nil {
		return fmt.Errorf("marshal specification: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `UPDATE knowledge SET specification = ?, updated_at = ?`
	args := []any{string(specJSON), updatedAt.UTC().Format(time.RFC3339Nano)}
	if confidence != nil {
		query += `, confidence = ?`
		args = append(args, *confidence)
	}
	query += ` WHERE id = (SELECT id FROM knowledge WHERE idea_id = ? AND component_name = ? ORDER BY id DESC LIMIT 1)`
	args = append(args, s.ideaID, componentName)

	result, err := tx.Exec(query, args...)
	if err != nil {
		return fmt.Errorf("update knowledge: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return &futures.NotFoundError{Kind: "knowledge component", ID: componentName}
	}

	if err := insertChange(tx, change); err != nil {
		return err
	}
	return tx.Commit()
}

// InsertAssumption writes an assumption and its change record
// atomically.
func (s *StageStore) InsertAssumption(a futures.WorldAssumption, change futures.StateChange) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	validated := 0
	if a.Validated {
		validated = 1
	}
	var evidence sql.NullString
	if a.ValidationEvidence != "" {
		evidence = sql.NullString{String: a.ValidationEvidence, Valid: true}
	}

	_, err = tx.Exec(
		`INSERT INTO assumptions (idea_id, assumption_text, category, criticality, validated, validation_evidence, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.IdeaID, a.Text, string(a.Category), a.Criticality, validated, evidence,
		a.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert assumption: %w", err)
	}

	if err := insertChange(tx, change); err != nil {
		return err
	}
	return tx.Commit()
}

// ValidateAssumption flips an assumption to validated with its
// evidence, alongside the change record.
func (s *StageStore) ValidateAssumption(text, evidence string, change futures.StateChange) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	result, err := tx.Exec(
		`UPDATE assumptions SET validated = 1, validation_evidence = ? WHERE idea_id = ? AND assumption_text = ?`,
		evidence, s.ideaID, text,
	)
	if err != nil {
		return fmt.Errorf("validate assumption: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return &futures.NotFoundError{Kind: "assumption", ID: text}
	}

	if err := insertChange(tx, change); err != nil {
		return err
	}
	return tx.Commit()
}

// InsertGoal writes a goal and its change record atomically.
func (s *StageStore) InsertGoal(g futures.Goal, change futures.StateChange) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	target, err := json.Marshal(g.TargetValue)
	if err != nil {
		return fmt.Errorf("marshal target value: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var validatorName sql.NullString
	if g.ValidatorName != "" {
		validatorName = sql.NullString{String: g.ValidatorName, Valid: true}
	}

	_, err = tx.Exec(
		`INSERT INTO goals (idea_id, goal_text, metric_name, target_value, current_value, status, validator_function, created_at, achieved_at)
		 VALUES (?, ?, ?, ?, NULL, ?, ?, ?, NULL)`,
		g.IdeaID, g.Text, g.MetricName, string(target), string(g.Status), validatorName,
		g.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert goal: %w", err)
	}

	if err := insertChange(tx, change); err != nil {
		return err
	}
	return tx.Commit()
}

// SetGoalStatus moves a goal through its status machine, recording the
// observed value and achievement time where relevant.
func (s *StageStore) SetGoalStatus(text string, status futures.GoalStatus, currentValue any, achievedAt *time.Time, change futures.StateChange) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var current sql.NullString
	if currentValue != nil {
		raw, err := json.Marshal(currentValue)
		if err != nil {
			return fmt.Errorf("marshal current value: %w", err)
		}
		current = sql.NullString{String: string(raw), Valid: true}
	}
	var achieved sql.NullString
	if achievedAt != nil {
		achieved = sql.NullString{String: achievedAt.UTC().Format(time.RFC3339Nano), Valid: true}
	}

	result, err := tx.Exec(
		`UPDATE goals SET status = ?, current_value = ?, achieved_at = ? WHERE idea_id = ? AND goal_text = ?`,
		string(status), current, achieved, s.ideaID, text,
	)
	if err != nil {
		return fmt.Errorf("set goal status: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return &futures.NotFoundError{Kind: "goal", ID: text}
	}

	if err := insertChange(tx, change); err != nil {
		return err
	}
	return tx.Commit()
}

func insertChange(tx *sql.Tx, c futures.StateChange) error {
	_, err := tx.Exec(
		`INSERT INTO state_changes (change_id, idea_id, stage, timestamp, change_type, change_data, previous_state_hash, new_state_hash)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ChangeID, c.IdeaID, string(c.Stage),
		c.Timestamp.UTC().Format(time.RFC3339Nano),
		string(c.ChangeType), string(c.Payload), c.BeforeHash, c.AfterHash,
	)
	if err != nil {
		return fmt.Errorf("append change %s: %w", c.ChangeID, err)
	}
	return nil
}

// Knowledge returns every knowledge item for this stage in insertion
// order.
func (s *StageStore) Knowledge() ([]futures.KnowledgeItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		`SELECT idea_id, stage, component_name, component_type, specification, confidence, created_at, updated_at
		 FROM knowledge WHERE idea_id = ? ORDER BY id ASC`, s.ideaID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []futures.KnowledgeItem
	for rows.Next() {
		var (
			item      futures.KnowledgeItem
			stage     string
			ctype     string
			spec      string
			createdAt string
			updatedAt string
		)
		if err := rows.Scan(&item.IdeaID, &stage, &item.ComponentName, &ctype, &spec, &item.Confidence, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		item.Stage = futures.Stage(stage)
		item.ComponentType = futures.ComponentType(ctype)
		if err := json.Unmarshal([]byte(spec), &item.Specification); err != nil {
			return nil, fmt.Errorf("decode specification: %w", err)
		}
		if item.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, err
		}
		if item.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// Assumptions returns every assumption for this stage in insertion
// order.
func (s *StageStore) Assumptions() ([]futures.WorldAssumption, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		`SELECT idea_id, assumption_text, category, criticality, validated, validation_evidence, created_at
		 FROM assumptions WHERE idea_id = ? ORDER BY id ASC`, s.ideaID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []futures.WorldAssumption
	for rows.Next() {
		var (
			a         futures.WorldAssumption
			category  string
			validated int
			evidence  sql.NullString
			createdAt string
		)
		if err := rows.Scan(&a.IdeaID, &a.Text, &category, &a.Criticality, &validated, &evidence, &createdAt); err != nil {
			return nil, err
		}
		a.Category = futures.AssumptionCategory(category)
		a.Validated = validated != 0
		if evidence.Valid {
			a.ValidationEvidence = evidence.String
		}
		ts, err := time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, err
		}
		a.CreatedAt = ts
		items = append(items, a)
	}
	return items, rows.Err()
}

// Goals returns every goal for this stage in insertion order.
func (s *StageStore) Goals() ([]futures.Goal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		`SELECT idea_id, goal_text, metric_name, target_value, current_value, status, validator_function, created_at, achieved_at
		 FROM goals WHERE idea_id = ? ORDER BY id ASC`, s.ideaID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []futures.Goal
	for rows.Next() {
		var (
			g             futures.Goal
			target        string
			current       sql.NullString
			status        string
			validatorName sql.NullString
			createdAt     string
			achievedAt    sql.NullString
		)
		if err := rows.Scan(&g.IdeaID, &g.Text, &g.MetricName, &target, &current, &status, &validatorName, &createdAt, &achievedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(target), &g.TargetValue); err != nil {
			return nil, fmt.Errorf("decode target value: %w", err)
		}
		if current.Valid {
			if err := json.Unmarshal([]byte(current.String), &g.CurrentValue); err != nil {
				return nil, fmt.Errorf("decode current value: %w", err)
			}
		}
		g.Status = futures.GoalStatus(status)
		if validatorName.Valid {
			g.ValidatorName = validatorName.String
		}
		ts, err := time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, err
		}
		g.CreatedAt = ts
		if achievedAt.Valid {
			at, err := time.Parse(time.RFC3339Nano, achievedAt.String)
			if err != nil {
				return nil, err
			}
			g.AchievedAt = &at
		}
		items = append(items, g)
	}
	return items, rows.Err()
}

func (s *StageStore) Close() error {
	// best effort: the DB closes cleanly even if the checkpoint fails
	_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return s.db.Close()
}
