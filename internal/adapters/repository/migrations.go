package repository

const schemaSQLite = `
CREATE TABLE IF NOT EXISTS health_score_snapshots (
    seq               INTEGER PRIMARY KEY AUTOINCREMENT,
    id                TEXT NOT NULL UNIQUE,
    user_id           TEXT NOT NULL,
    calendar_date     TEXT NOT NULL,
    calculated_at_ns  INTEGER NOT NULL,
    overall_score     REAL NOT NULL,
    algorithm_version TEXT NOT NULL,
    source_whoop      BOOLEAN NOT NULL DEFAULT 0,
    source_profile    BOOLEAN NOT NULL DEFAULT 0,
    forced            BOOLEAN NOT NULL DEFAULT 0,
    daily_key         TEXT UNIQUE
);

CREATE INDEX IF NOT EXISTS idx_snapshots_user_date ON health_score_snapshots(user_id, calendar_date);
CREATE INDEX IF NOT EXISTS idx_snapshots_user_calculated ON health_score_snapshots(user_id, calculated_at_ns);

CREATE TABLE IF NOT EXISTS health_category_scores (
    snapshot_id    TEXT NOT NULL REFERENCES health_score_snapshots(id),
    position       INTEGER NOT NULL,
    category       TEXT NOT NULL,
    score          REAL NOT NULL,
    marker_count   INTEGER NOT NULL,
    covered_weight REAL NOT NULL,
    PRIMARY KEY (snapshot_id, category)
);

CREATE TABLE IF NOT EXISTS health_marker_scores (
    snapshot_id      TEXT NOT NULL REFERENCES health_score_snapshots(id),
    position         INTEGER NOT NULL,
    marker_id        TEXT NOT NULL,
    category         TEXT NOT NULL,
    normalized_value REAL,
    raw_value        REAL,
    PRIMARY KEY (snapshot_id, marker_id)
);
`

const schemaPostgres = `
CREATE TABLE IF NOT EXISTS health_score_snapshots (
    seq               BIGSERIAL PRIMARY KEY,
    id                TEXT NOT NULL UNIQUE,
    user_id           TEXT NOT NULL,
    calendar_date     TEXT NOT NULL,
    calculated_at_ns  BIGINT NOT NULL,
    overall_score     DOUBLE PRECISION NOT NULL,
    algorithm_version TEXT NOT NULL,
    source_whoop      BOOLEAN NOT NULL DEFAULT FALSE,
    source_profile    BOOLEAN NOT NULL DEFAULT FALSE,
    forced            BOOLEAN NOT NULL DEFAULT FALSE,
    daily_key         TEXT UNIQUE
);

CREATE INDEX IF NOT EXISTS idx_snapshots_user_date ON health_score_snapshots(user_id, calendar_date);
CREATE INDEX IF NOT EXISTS idx_snapshots_user_calculated ON health_score_snapshots(user_id, calculated_at_ns);

CREATE TABLE IF NOT EXISTS health_category_scores (
    snapshot_id    TEXT NOT NULL REFERENCES health_score_snapshots(id),
    position       INTEGER NOT NULL,
    category       TEXT NOT NULL,
    score          DOUBLE PRECISION NOT NULL,
    marker_count   INTEGER NOT NULL,
    covered_weight DOUBLE PRECISION NOT NULL,
    PRIMARY KEY (snapshot_id, category)
);

CREATE TABLE IF NOT EXISTS health_marker_scores (
    snapshot_id      TEXT NOT NULL REFERENCES health_score_snapshots(id),
    position         INTEGER NOT NULL,
    marker_id        TEXT NOT NULL,
    category         TEXT NOT NULL,
    normalized_value DOUBLE PRECISION,
    raw_value        DOUBLE PRECISION,
    PRIMARY KEY (snapshot_id, marker_id)
);
`
