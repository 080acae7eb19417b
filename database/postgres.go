package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

type DBClient struct {
	DB *sql.DB
}

func NewPostgresDB(dbURL string) (*DBClient, error) {
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is empty")
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		return nil, fmt.Errorf("error opening database connection: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err = db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("error connecting to the database (ping failed): %w", err)
	}

	return &DBClient{DB: db}, nil
}

// EnsureSchema creates the tables and indexes the stores rely on.
func (c *DBClient) EnsureSchema(ctx context.Context) error {
	for _, stmt := range postgresSchema {
		if _, err := c.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

func (c *DBClient) Close() error {
	if c.DB == nil {
		return nil
	}
	return c.DB.Close()
}

// SkipRateIndexName supports the filtered "highest skip rate" ranking.
const SkipRateIndexName = "idx_questions_impressions_skip_rate"

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS categories (
		id                   TEXT PRIMARY KEY,
		slug                 TEXT NOT NULL UNIQUE,
		title_th             TEXT NOT NULL,
		title_en             TEXT NOT NULL,
		description_th       TEXT NOT NULL DEFAULT '',
		description_en       TEXT NOT NULL DEFAULT '',
		icon_class           TEXT NOT NULL DEFAULT '',
		icon_color           TEXT NOT NULL DEFAULT 'pink-500',
		instructions_th      TEXT NOT NULL DEFAULT '',
		instructions_en      TEXT NOT NULL DEFAULT '',
		total_question_views BIGINT NOT NULL DEFAULT 0,
		total_question_skips BIGINT NOT NULL DEFAULT 0,
		total_reviews        BIGINT NOT NULL DEFAULT 0,
		average_rating       DOUBLE PRECISION NOT NULL DEFAULT 0,
		play_count           BIGINT NOT NULL DEFAULT 0,
		visit_count          BIGINT NOT NULL DEFAULT 0,
		created_at           TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at           TIMESTAMPTZ
	)`,
	`CREATE TABLE IF NOT EXISTS questions (
		id               TEXT PRIMARY KEY,
		category_id      TEXT NOT NULL REFERENCES categories(id) ON DELETE CASCADE,
		content_th       TEXT NOT NULL DEFAULT '',
		content_en       TEXT NOT NULL DEFAULT '',
		view_count       BIGINT NOT NULL DEFAULT 0,
		skip_count       BIGINT NOT NULL DEFAULT 0,
		impressions      BIGINT NOT NULL DEFAULT 0,
		skip_rate        DOUBLE PRECISION NOT NULL DEFAULT 0,
		popularity_score BIGINT NOT NULL DEFAULT 0,
		last_viewed      TIMESTAMPTZ,
		created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at       TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_questions_category ON questions (category_id, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_questions_view_count ON questions (view_count DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_questions_skip_count ON questions (skip_count DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_questions_popularity ON questions (popularity_score DESC)`,
	`CREATE INDEX IF NOT EXISTS ` + SkipRateIndexName + ` ON questions (impressions, skip_rate DESC)`,
	`CREATE TABLE IF NOT EXISTS reviews (
		id          TEXT PRIMARY KEY,
		category_id TEXT NOT NULL REFERENCES categories(id) ON DELETE CASCADE,
		user_id     TEXT NOT NULL,
		user_name   TEXT NOT NULL,
		rating      SMALLINT NOT NULL CHECK (rating BETWEEN 1 AND 5),
		comment     TEXT NOT NULL DEFAULT '',
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_reviews_category ON reviews (category_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS admins (
		username        TEXT PRIMARY KEY,
		hashed_password BYTEA NOT NULL,
		permissions     TEXT[] NOT NULL DEFAULT '{}',
		created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS members (
		email                 TEXT PRIMARY KEY,
		display_name          TEXT NOT NULL,
		hashed_password       BYTEA NOT NULL,
		is_active             BOOLEAN NOT NULL DEFAULT TRUE,
		failed_login_attempts INTEGER NOT NULL DEFAULT 0,
		lockout_until         TIMESTAMPTZ,
		last_login            TIMESTAMPTZ,
		created_at            TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
}
