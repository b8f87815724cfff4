package db

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"mocktest-server/models"
)

// InitDB initializes the PostgreSQL database connection pool.
func InitDB(connString string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(context.Background(), connString)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Println("Successfully connected to PostgreSQL database!")
	return pool, nil
}

// CreateSchema sets up the tables for mocktest-server.
// In a production environment, use a proper migration tool (e.g., golang-migrate).
func CreateSchema(pool *pgxpool.Pool) error {
	schemaSQL := `
	CREATE TABLE IF NOT EXISTS questions (
		id SERIAL PRIMARY KEY,
		number INT NOT NULL DEFAULT 0,
		text TEXT NOT NULL,
		options JSONB,
		source_name VARCHAR(255),
		UNIQUE (text, source_name)
	);

	CREATE TABLE IF NOT EXISTS test_sessions (
		id SERIAL PRIMARY KEY,
		total_questions INT NOT NULL DEFAULT 0,
		duration_minutes INT,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP,
		started_at TIMESTAMP WITH TIME ZONE,
		submitted_at TIMESTAMP WITH TIME ZONE
	);

	CREATE TABLE IF NOT EXISTS test_questions (
		id SERIAL PRIMARY KEY,
		test_id INT NOT NULL,
		question_id INT NOT NULL,
		order_index INT NOT NULL,
		bookmarked BOOLEAN DEFAULT FALSE,
		FOREIGN KEY (test_id) REFERENCES test_sessions(id) ON DELETE CASCADE,
		FOREIGN KEY (question_id) REFERENCES questions(id) ON DELETE CASCADE,
		UNIQUE (test_id, question_id),
		UNIQUE (test_id, order_index)
	);

	CREATE TABLE IF NOT EXISTS answers (
		id SERIAL PRIMARY KEY,
		test_id INT NOT NULL,
		question_id INT NOT NULL,
		selected_option TEXT,
		FOREIGN KEY (test_id) REFERENCES test_sessions(id) ON DELETE CASCADE,
		FOREIGN KEY (question_id) REFERENCES questions(id) ON DELETE CASCADE,
		UNIQUE (test_id, question_id)
	);

	CREATE TABLE IF NOT EXISTS results (
		id SERIAL PRIMARY KEY,
		test_id INT NOT NULL UNIQUE,
		score FLOAT NOT NULL DEFAULT 0,
		correct_count INT NOT NULL DEFAULT 0,
		wrong_count INT NOT NULL DEFAULT 0,
		accuracy FLOAT NOT NULL DEFAULT 0,
		details JSONB,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (test_id) REFERENCES test_sessions(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS adapter_events (
		id SERIAL PRIMARY KEY,
		timestamp TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP,
		source TEXT NOT NULL,
		target TEXT,
		message TEXT NOT NULL
	);
	`
	if _, err := pool.Exec(context.Background(), schemaSQL); err != nil {
		return fmt.Errorf("error executing schema SQL: %w", err)
	}
	return nil
}

// LogAdapterEvent records a backend failure (judge, research, generation)
// in the adapter_events table. Logging failures are not fatal.
func LogAdapterEvent(pool *pgxpool.Pool, source, target, message string) {
	_, err := pool.Exec(context.Background(), `
		INSERT INTO adapter_events (source, target, message)
		VALUES ($1, $2, $3)
	`, source, target, message)
	if err != nil {
		log.Printf("ERROR: Failed to log adapter event: %v. Event: %s on %s: %s", err, source, target, message)
	}
}

// RecentAdapterEvents fetches the most recent adapter failures for the
// admin dashboard.
func RecentAdapterEvents(pool *pgxpool.Pool, limit int) ([]models.AdapterEvent, error) {
	rows, err := pool.Query(context.Background(), `
		SELECT id, timestamp, source, COALESCE(target, ''), message
		FROM adapter_events
		ORDER BY timestamp DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query adapter events: %w", err)
	}
	defer rows.Close()

	var events []models.AdapterEvent
	for rows.Next() {
		var ev models.AdapterEvent
		if err := rows.Scan(&ev.ID, &ev.Timestamp, &ev.Source, &ev.Target, &ev.Message); err != nil {
			return nil, fmt.Errorf("failed to scan adapter event: %w", err)
		}
		events = append(events, ev)
	}
	return events, nil
}
