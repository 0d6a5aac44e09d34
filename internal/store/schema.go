package store

// Schema for the per-idea registry database (ideas.db).
const ideasSchemaSQL = `
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY
);

CREATE TABLE IF NOT EXISTS ideas (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    description TEXT NOT NULL,
    created_at TEXT NOT NULL,
    current_stage TEXT NOT NULL,
    uncertainty_level TEXT NOT NULL,
    parent_idea_id TEXT
);

CREATE INDEX IF NOT EXISTS idx_ideas_parent ON ideas(parent_idea_id);
CREATE INDEX IF NOT EXISTS idx_ideas_stage ON ideas(current_stage);
`

// Schema for one (idea, stage) database: the initial snapshot, the
// append-only change log, and the three derived fact tables. The change
// log is the source of truth; the fact tables are convenience indexes
// written in the same transaction as their change record.
const stageSchemaSQL = `
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY
);

CREATE TABLE IF NOT EXISTS initial_state (
    idea_id TEXT PRIMARY KEY,
    stage TEXT NOT NULL,
    state_data TEXT NOT NULL,
    state_hash TEXT NOT NULL,
    created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS state_changes (
    change_id TEXT PRIMARY KEY,
    idea_id TEXT NOT NULL,
    stage TEXT NOT NULL,
    timestamp TEXT NOT NULL,
    change_type TEXT NOT NULL,
    change_data TEXT NOT NULL,
    previous_state_hash TEXT NOT NULL,
    new_state_hash TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_changes_order ON state_changes(idea_id, timestamp);

CREATE TABLE IF NOT EXISTS knowledge (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    idea_id TEXT NOT NULL,
    stage TEXT NOT NULL,
    component_name TEXT NOT NULL,
    component_type TEXT NOT NULL,
    specification TEXT NOT NULL,
    confidence REAL NOT NULL,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_knowledge_component ON knowledge(component_name);

CREATE TABLE IF NOT EXISTS assumptions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    idea_id TEXT NOT NULL,
    assumption_text TEXT NOT NULL,
    category TEXT NOT NULL,
    criticality REAL NOT NULL,
    validated INTEGER NOT NULL DEFAULT 0,
    validation_evidence TEXT,
    created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS goals (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    idea_id TEXT NOT NULL,
    goal_text TEXT NOT NULL,
    metric_name TEXT NOT NULL,
    target_value TEXT NOT NULL,
    current_value TEXT,
    status TEXT NOT NULL,
    validator_function TEXT,
    created_at TEXT NOT NULL,
    achieved_at TEXT
);

CREATE INDEX IF NOT EXISTS idx_goals_status ON goals(status);
`

const schemaVersion = 1
