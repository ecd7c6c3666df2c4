package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"talkbot/internal/domain"

	_ "modernc.org/sqlite"
)

// Store persists messages, users and moderation id sets in SQLite.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

func Open(dbPath string, logger *slog.Logger) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create database directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}

	// Single connection: SQLite serializes writers anyway.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db, logger: logger}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database migration failed: %w", err)
	}

	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS messages (
		chat_id             INTEGER NOT NULL,
		message_id          INTEGER NOT NULL,
		reply_to_message_id INTEGER DEFAULT 0,
		from_id             INTEGER NOT NULL,
		text                TEXT,
		date                INTEGER DEFAULT 0,
		photo_path          TEXT DEFAULT '',
		PRIMARY KEY (chat_id, message_id)
	);

	CREATE TABLE IF NOT EXISTS users (
		id         INTEGER PRIMARY KEY,
		first_name TEXT,
		last_name  TEXT,
		username   TEXT
	);

	CREATE TABLE IF NOT EXISTS id_sets (
		set_name TEXT NOT NULL,
		id       INTEGER NOT NULL,
		PRIMARY KEY (set_name, id)
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// PutMessage inserts or overwrites a message record. Content for a given id
// only ever grows more complete, so last write wins.
func (s *Store) PutMessage(ctx context.Context, m domain.StoredMessage) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (chat_id, message_id, reply_to_message_id, from_id, text, date, photo_path)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(chat_id, message_id) DO UPDATE SET
			reply_to_message_id=excluded.reply_to_message_id,
			from_id=excluded.from_id,
			text=excluded.text,
			date=excluded.date,
			photo_path=CASE WHEN excluded.photo_path != '' THEN excluded.photo_path ELSE messages.photo_path END`,
		m.ChatID, m.MessageID, m.ReplyToMessageID, m.FromID, m.Text, m.Date, m.PhotoPath,
	)
	return err
}

// GetMessage returns nil, nil when the message is unknown.
func (s *Store) GetMessage(ctx context.Context, chatID int64, messageID int) (*domain.StoredMessage, error) {
	var m domain.StoredMessage
	err := s.db.QueryRowContext(ctx,
		`SELECT chat_id, message_id, reply_to_message_id, from_id, text, date, photo_path
		 FROM messages WHERE chat_id = ? AND message_id = ?`, chatID, messageID,
	).Scan(&m.ChatID, &m.MessageID, &m.ReplyToMessageID, &m.FromID, &m.Text, &m.Date, &m.PhotoPath)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *Store) PutUser(ctx context.Context, u domain.StoredUser) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, first_name, last_name, username) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			first_name=excluded.first_name,
			last_name=excluded.last_name,
			username=excluded.username`,
		u.ID, u.FirstName, u.LastName, u.Username,
	)
	return err
}

// GetUser returns nil, nil when the user is unknown.
func (s *Store) GetUser(ctx context.Context, id int64) (*domain.StoredUser, error) {
	var u domain.StoredUser
	err := s.db.QueryRowContext(ctx,
		`SELECT id, first_name, last_name, username FROM users WHERE id = ?`, id,
	).Scan(&u.ID, &u.FirstName, &u.LastName, &u.Username)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// LoadIDs, AddID and RemoveID implement IDSetRepo on SQLite.

func (s *Store) LoadIDs(ctx context.Context, setName string) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM id_sets WHERE set_name = ?`, setName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Store) AddID(ctx context.Context, setName string, id int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO id_sets (set_name, id) VALUES (?, ?)`, setName, id)
	return err
}

func (s *Store) RemoveID(ctx context.Context, setName string, id int64) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM id_sets WHERE set_name = ? AND id = ?`, setName, id)
	return err
}

func (s *Store) Close() error {
	return s.db.Close()
}
