package history

import (
	"context"
	"database/sql"
	"fmt"

	"skychat/internal/models"
	"skychat/internal/storage"
)

type sqlStore struct {
	db     *sql.DB
	driver string
}

// NewSQLStore keeps history in the chat_history table of db.
func NewSQLStore(db *sql.DB, driver string) Store {
	return &sqlStore{db: db, driver: driver}
}

func (s *sqlStore) Put(ctx context.Context, msg models.Message) error {
	_, err := s.db.ExecContext(ctx,
		storage.Rebind(s.driver, `INSERT INTO chat_history (user_id, ts, sender, message) VALUES (?, ?, ?, ?)`),
		msg.UserID, msg.Timestamp, string(msg.Sender), msg.Text,
	)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

func (s *sqlStore) Query(ctx context.Context, userID string, limit int) ([]models.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		storage.Rebind(s.driver, `SELECT user_id, ts, sender, message FROM chat_history WHERE user_id = ? ORDER BY ts DESC LIMIT ?`),
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var (
			m      models.Message
			sender string
		)
		if err := rows.Scan(&m.UserID, &m.Timestamp, &sender, &m.Text); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		if m.Sender, err = models.ParseSender(sender); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

func (s *sqlStore) Close() error {
	return s.db.Close()
}
