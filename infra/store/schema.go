package store

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS rules (
        id TEXT PRIMARY KEY,
        device_id TEXT NOT NULL,
        name TEXT NOT NULL DEFAULT '',
        max_hours INTEGER NOT NULL,
        min_continuous_hours INTEGER NOT NULL,
        time_window_start INTEGER,
        time_window_end INTEGER,
        days_of_week INTEGER NOT NULL,
        is_enabled INTEGER NOT NULL,
        created_at INTEGER NOT NULL,
        updated_at INTEGER NOT NULL
    )`,
	`CREATE TABLE IF NOT EXISTS scheduled_actions (
        id TEXT PRIMARY KEY,
        rule_id TEXT NOT NULL,
        scheduled_date TEXT NOT NULL,
        start_hour INTEGER NOT NULL,
        end_hour INTEGER NOT NULL,
        price_per_kwh REAL,
        status TEXT NOT NULL,
        executed_at INTEGER,
        created_at INTEGER NOT NULL,
        UNIQUE(rule_id, scheduled_date, start_hour)
    )`,
	`CREATE INDEX IF NOT EXISTS idx_actions_date_status ON scheduled_actions(scheduled_date, status)`,
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS rules (
        id TEXT PRIMARY KEY,
        device_id TEXT NOT NULL,
        name TEXT NOT NULL DEFAULT '',
        max_hours INTEGER NOT NULL,
        min_continuous_hours INTEGER NOT NULL,
        time_window_start INTEGER,
        time_window_end INTEGER,
        days_of_week INTEGER NOT NULL,
        is_enabled INTEGER NOT NULL,
        created_at BIGINT NOT NULL,
        updated_at BIGINT NOT NULL
    )`,
	`CREATE TABLE IF NOT EXISTS scheduled_actions (
        id TEXT PRIMARY KEY,
        rule_id TEXT NOT NULL,
        scheduled_date TEXT NOT NULL,
        start_hour INTEGER NOT NULL,
        end_hour INTEGER NOT NULL,
        price_per_kwh DOUBLE PRECISION,
        status TEXT NOT NULL,
        executed_at BIGINT,
        created_at BIGINT NOT NULL,
        UNIQUE(rule_id, scheduled_date, start_hour)
    )`,
	`CREATE INDEX IF NOT EXISTS idx_actions_date_status ON scheduled_actions(scheduled_date, status)`,
}
