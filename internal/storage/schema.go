package storage

const schema = `
-- The 'sources' table tracks where imported cards come from: a local directory or a git repository.
CREATE TABLE IF NOT EXISTS sources (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id TEXT NOT NULL,
    path TEXT NOT NULL,
    type TEXT NOT NULL DEFAULT 'local', -- 'local' or 'git'
    last_scanned TEXT,

    UNIQUE(user_id, path)
);

-- The 'cards' table stores every learner's cards and their SM-2 scheduling state.
-- Scheduling columns are nullable; a NULL reads back as the new-card default.
CREATE TABLE IF NOT EXISTS cards (
    user_id TEXT NOT NULL,
    id TEXT NOT NULL,
    front TEXT NOT NULL,
    back TEXT NOT NULL DEFAULT '',
    category TEXT NOT NULL DEFAULT '',
    level TEXT NOT NULL DEFAULT '',
    tags TEXT,  -- JSON array
    notes TEXT NOT NULL DEFAULT '',
    interval_days INTEGER,
    ease_factor REAL,
    repetitions INTEGER,
    total_reviews INTEGER NOT NULL DEFAULT 0,
    last_reviewed TEXT,
    next_review TEXT NOT NULL,
    source_id INTEGER,
    created_at TEXT NOT NULL,

    PRIMARY KEY (user_id, id),
    FOREIGN KEY(source_id) REFERENCES sources(id) ON DELETE SET NULL
);
CREATE INDEX IF NOT EXISTS idx_cards_user_next ON cards(user_id, next_review);
CREATE INDEX IF NOT EXISTS idx_cards_source ON cards(source_id);

-- The 'review_logs' table is an append-only history of applied ratings.
CREATE TABLE IF NOT EXISTS review_logs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id TEXT NOT NULL,
    card_id TEXT NOT NULL,
    session_id TEXT NOT NULL DEFAULT '',
    rating INTEGER NOT NULL,
    reviewed_at TEXT NOT NULL,
    interval_days INTEGER NOT NULL,
    ease_factor REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_review_logs_card ON review_logs(user_id, card_id);
`
