package database

import (
	"database/sql"
	"log"
	"time"

	_ "github.com/lib/pq"
)

var PostgresDB *sql.DB

// ConnectPostgres connects to PostgreSQL database
func ConnectPostgres(postgresURI string) error {
	var err error

	PostgresDB, err = sql.Open("postgres", postgresURI)
	if err != nil {
		return err
	}

	// Set connection pool settings
	PostgresDB.SetMaxOpenConns(25)
	PostgresDB.SetMaxIdleConns(5)
	PostgresDB.SetConnMaxLifetime(5 * time.Minute)

	// Test connection
	if err = PostgresDB.Ping(); err != nil {
		return err
	}

	log.Println("✅ Connected to PostgreSQL")

	// Initialize tables
	if err = InitPostgresTables(); err != nil {
		return err
	}

	return nil
}

// InitPostgresTables creates all necessary tables if they don't exist
func InitPostgresTables() error {
	queries := []string{
		// Users table (profile directory projection; accounts are managed elsewhere)
		`CREATE TABLE IF NOT EXISTS users (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			username VARCHAR(30) NOT NULL UNIQUE,
			display_name VARCHAR(100) NOT NULL DEFAULT '',
			avatar TEXT,
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			is_active BOOLEAN NOT NULL DEFAULT TRUE
		)`,

		// Conversations table. dm_key is the sorted participant pair for DM
		// conversations ("<low-uuid>:<high-uuid>"); NULL for groups. The unique
		// partial index turns the search-then-create dedup race into a
		// constraint violation the service retries as a lookup.
		`CREATE TABLE IF NOT EXISTS conversations (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			type VARCHAR(10) NOT NULL CHECK (type IN ('dm', 'group')),
			title VARCHAR(255),
			avatar TEXT,
			dm_key VARCHAR(80),
			created_by UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMP NOT NULL DEFAULT NOW()
		)`,

		// Conversation participants (composite key, role, read watermark)
		`CREATE TABLE IF NOT EXISTS conversation_participants (
			conversation_id UUID NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
			user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			role VARCHAR(10) NOT NULL DEFAULT 'member' CHECK (role IN ('member', 'admin')),
			joined_at TIMESTAMP NOT NULL DEFAULT NOW(),
			last_read_message_id UUID,
			PRIMARY KEY (conversation_id, user_id)
		)`,

		// Messages (append-only). client_message_id is the caller-supplied
		// idempotency key; unique per sender when present.
		`CREATE TABLE IF NOT EXISTS messages (
			id UUID PRIMARY KEY,
			conversation_id UUID NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
			sender_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			content TEXT NOT NULL,
			type VARCHAR(20) NOT NULL DEFAULT 'text',
			client_message_id VARCHAR(255),
			metadata JSONB,
			created_at TIMESTAMP NOT NULL DEFAULT NOW()
		)`,

		// Per-recipient delivery/read state (composite key)
		`CREATE TABLE IF NOT EXISTS message_statuses (
			message_id UUID NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
			user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			delivered_at TIMESTAMP,
			read_at TIMESTAMP,
			PRIMARY KEY (message_id, user_id)
		)`,

		// Create indexes for better performance
		`CREATE INDEX IF NOT EXISTS idx_users_username ON users(username)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_conversations_dm_key ON conversations(dm_key) WHERE dm_key IS NOT NULL`,
		`CREATE INDEX IF NOT EXISTS idx_conversations_created_by ON conversations(created_by)`,
		`CREATE INDEX IF NOT EXISTS idx_participants_user_id ON conversation_participants(user_id)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_messages_sender_client_id ON messages(sender_id, client_message_id) WHERE client_message_id IS NOT NULL`,
		`CREATE INDEX IF NOT EXISTS idx_messages_conversation_order ON messages(conversation_id, created_at DESC, id DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_message_statuses_user_unread ON message_statuses(user_id) WHERE read_at IS NULL`,
	}

	for _, query := range queries {
		if _, err := PostgresDB.Exec(query); err != nil {
			return err
		}
	}

	log.Println("✅ PostgreSQL tables initialized")
	return nil
}

// DisconnectPostgres closes the PostgreSQL connection
func DisconnectPostgres() error {
	if PostgresDB != nil {
		return PostgresDB.Close()
	}
	return nil
}
