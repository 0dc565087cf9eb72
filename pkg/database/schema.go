package database

import (
	"context"
	"fmt"
)

type migration struct {
	name  string
	query string
}

var migrations = []migration{
	{"research_jobs table", `
		CREATE TABLE IF NOT EXISTS research_jobs (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			topic TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			config JSONB,
			report TEXT,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)`},
	{"state column", "ALTER TABLE research_jobs ADD COLUMN IF NOT EXISTS state JSONB"},
	{"stage column", "ALTER TABLE research_jobs ADD COLUMN IF NOT EXISTS stage TEXT"},
	{"iteration column", "ALTER TABLE research_jobs ADD COLUMN IF NOT EXISTS iteration INTEGER NOT NULL DEFAULT 0"},
	{"metrics column", "ALTER TABLE research_jobs ADD COLUMN IF NOT EXISTS metrics JSONB"},
	{"research_logs table", `
		CREATE TABLE IF NOT EXISTS research_logs (
			id SERIAL PRIMARY KEY,
			job_id UUID NOT NULL REFERENCES research_jobs(id) ON DELETE CASCADE,
			timestamp TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			level TEXT NOT NULL,
			message TEXT NOT NULL,
			metadata JSONB
		)`},
	{"research_logs index", "CREATE INDEX IF NOT EXISTS idx_research_logs_job_id ON research_logs(job_id)"},
	{"research_jobs index", "CREATE INDEX IF NOT EXISTS idx_research_jobs_created_at ON research_jobs(created_at DESC)"},
	{"conversations table", `
		CREATE TABLE IF NOT EXISTS conversations (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			title TEXT NOT NULL DEFAULT 'New Conversation',
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)`},
	{"messages table", `
		CREATE TABLE IF NOT EXISTS messages (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			conversation_id UUID NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)`},
	{"messages index", "CREATE INDEX IF NOT EXISTS idx_messages_conversation_id ON messages(conversation_id)"},
	{"conversations index", "CREATE INDEX IF NOT EXISTS idx_conversations_updated_at ON conversations(updated_at DESC)"},
}

// InitSchema creates the job, log and chat tables. Every statement is idempotent.
func (db *PostgresDB) InitSchema(ctx context.Context) error {
	for _, m := range migrations {
		if _, err := db.Pool.Exec(ctx, m.query); err != nil {
			return fmt.Errorf("failed to apply %s: %w", m.name, err)
		}
	}
	return nil
}

// InitKnowledgeArchive installs pgvector and the knowledge mirror table.
func (db *PostgresDB) InitKnowledgeArchive(ctx context.Context, tableName string, dimension int) error {
	if err := db.EnsureVectorExtension(ctx); err != nil {
		return err
	}
	return db.CreateKnowledgeTable(ctx, tableName, dimension)
}
