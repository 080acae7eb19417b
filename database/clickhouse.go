package database

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
)

type ClickHouseClient struct {
	Conn clickhouse.Conn
}

type ClickHouseOptions struct {
	Host     string
	Port     int
	Database string
	Username string
	Password string
}

func NewClickHouseDB(opts ClickHouseOptions) (*ClickHouseClient, error) {
	if opts.Host == "" || opts.Port == 0 || opts.Database == "" {
		return nil, fmt.Errorf("CLICKHOUSE_HOST, CLICKHOUSE_NATIVE_PORT, or CLICKHOUSE_DB_NAME is not set")
	}

	options := &clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", opts.Host, opts.Port)},
		Auth: clickhouse.Auth{
			Database: opts.Database,
			Username: opts.Username,
			Password: opts.Password,
		},
		ClientInfo: clickhouse.ClientInfo{
			Products: []struct {
				Name    string
				Version string
			}{{Name: "cardtalk-api", Version: "1.0.0"}},
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
		DialTimeout: time.Second * 5,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn, err := clickhouse.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse via Native TCP: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}
	return &ClickHouseClient{Conn: conn}, nil
}

// EnsureSchema creates the interaction audit table.
func (c *ClickHouseClient) EnsureSchema(ctx context.Context) error {
	err := c.Conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS question_interactions (
			event_id    String,
			question_id String,
			category_id String,
			action      LowCardinality(String),
			session_id  String,
			user_id     String,
			ip_address  String,
			timestamp   DateTime64(3, 'UTC')
		) ENGINE = MergeTree
		ORDER BY (question_id, timestamp)
	`)
	if err != nil {
		return fmt.Errorf("create question_interactions: %w", err)
	}
	return nil
}

func (c *ClickHouseClient) Close() error {
	if c.Conn == nil {
		return nil
	}
	return c.Conn.Close()
}
