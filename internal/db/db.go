package db

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
)

// Connect initializes the database connection and runs migrations.
func Connect(dsn string, logger zerolog.Logger) (*sqlx.DB, error) {
	database, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}

	if err := runMigrations(database); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	logger.Info().Msg("database migrations applied")
	return database, nil
}

func runMigrations(database *sqlx.DB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS service_requests (
            id UUID PRIMARY KEY,
            code TEXT NOT NULL UNIQUE,
            status TEXT NOT NULL DEFAULT 'PENDING',
            service_type TEXT NOT NULL DEFAULT '',
            requester_id TEXT NOT NULL,
            requester_name TEXT NOT NULL DEFAULT '',
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
		`CREATE TABLE IF NOT EXISTS chat_rooms (
            id UUID PRIMARY KEY,
            service_request_id UUID NOT NULL REFERENCES service_requests(id) ON DELETE CASCADE,
            is_active BOOLEAN NOT NULL DEFAULT TRUE,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
		`CREATE TABLE IF NOT EXISTS messages (
            id UUID PRIMARY KEY,
            chat_room_id UUID NOT NULL REFERENCES chat_rooms(id) ON DELETE CASCADE,
            sender_id TEXT,
            message_type TEXT NOT NULL DEFAULT 'TEXT'
                CHECK (message_type IN ('TEXT', 'IMAGE', 'AUDIO', 'SYSTEM')),
            content TEXT NOT NULL DEFAULT '',
            media_url TEXT,
            duration_seconds INT,
            is_read BOOLEAN NOT NULL DEFAULT FALSE,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
		`CREATE INDEX IF NOT EXISTS idx_messages_room_created
            ON messages (chat_room_id, created_at);`,
		`CREATE INDEX IF NOT EXISTS idx_chat_rooms_updated
            ON chat_rooms (updated_at DESC) WHERE is_active;`,
	}

	for _, m := range migrations {
		if _, err := database.Exec(m); err != nil {
			return err
		}
	}
	return nil
}
