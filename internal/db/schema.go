package db

import (
	"database/sql"
	"fmt"
)

var migrations = []struct {
	name  string
	query string
}{
	{
		name: "users",
		query: `
			CREATE TABLE IF NOT EXISTS users (
				id SERIAL PRIMARY KEY,
				username VARCHAR(255) UNIQUE NOT NULL,
				password VARCHAR(255) NOT NULL,
				created_at TIMESTAMP NOT NULL DEFAULT NOW()
			)`,
	},
	{
		name: "posts",
		query: `
			CREATE TABLE IF NOT EXISTS posts (
				id SERIAL PRIMARY KEY,
				title TEXT NOT NULL,
				summary TEXT NOT NULL,
				content TEXT NOT NULL,
				cover TEXT,
				author_id INTEGER NOT NULL REFERENCES users(id),
				created_at TIMESTAMP NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP NOT NULL DEFAULT NOW()
			)`,
	},
	{
		name:  "posts_created_at_index",
		query: `CREATE INDEX IF NOT EXISTS idx_posts_created_at ON posts (created_at DESC)`,
	},
}

// Migrate creates the schema. Every statement is idempotent.
func Migrate(database *sql.DB) error {
	for _, m := range migrations {
		if _, err := database.Exec(m.query); err != nil {
			return fmt.Errorf("failed to run migration %s: %w", m.name, err)
		}
	}
	return nil
}
