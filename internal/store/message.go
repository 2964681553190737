package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

type messageRow struct {
	Seq        int64  `db:"seq"`
	ID         string `db:"id"`
	SenderID   string `db:"sender_id"`
	ReceiverID string `db:"receiver_id"`
	Content    string `db:"content"`
	MimeType   string `db:"mime_type"`
	SentAt     int64  `db:"sent_at"`
	Read       bool   `db:"is_read"`
}

func (r messageRow) message() Message {
	return Message{
		Seq:        r.Seq,
		ID:         r.ID,
		SenderID:   r.SenderID,
		ReceiverID: r.ReceiverID,
		Content:    r.Content,
		MimeType:   r.MimeType,
		Timestamp:  time.Unix(0, r.SentAt).UTC(),
		Read:       r.Read,
	}
}

const selectMessages = `SELECT seq, id, sender_id, receiver_id, content, mime_type, sent_at, is_read FROM messages`

// Save inserts a message and returns the stored record.
func (db *DB) Save(ctx context.Context, m *Message) (*Message, error) {
	rec, err := prepare(m)
	if err != nil {
		return nil, err
	}
	err = db.QueryRowxContext(ctx, db.Rebind(`
		INSERT INTO messages (id, sender_id, receiver_id, content, mime_type, sent_at, is_read)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING seq`),
		rec.ID, rec.SenderID, rec.ReceiverID, rec.Content, rec.MimeType, rec.Timestamp.UnixNano(), rec.Read,
	).Scan(&rec.Seq)
	if err != nil {
		return nil, fmt.Errorf("save message: %w", err)
	}
	return &rec, nil
}

// GetByPeers returns the conversation between a and b in either direction.
func (db *DB) GetByPeers(ctx context.Context, a, b string) ([]Message, error) {
	return db.list(ctx, selectMessages+`
		WHERE (sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)
		ORDER BY sent_at, seq`, a, b, b, a)
}

// GetByParticipant returns every message id sent or received.
func (db *DB) GetByParticipant(ctx context.Context, id string) ([]Message, error) {
	return db.list(ctx, selectMessages+`
		WHERE sender_id = ? OR receiver_id = ?
		ORDER BY sent_at, seq`, id, id)
}

func (db *DB) list(ctx context.Context, query string, args ...any) ([]Message, error) {
	var rows []messageRow
	if err := db.SelectContext(ctx, &rows, db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	out := make([]Message, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.message())
	}
	return out, nil
}

// MarkRead flags unread messages from sender to receiver. It reports true
// whether or not any row changed.
func (db *DB) MarkRead(ctx context.Context, receiver, sender string) (bool, error) {
	_, err := db.ExecContext(ctx, db.Rebind(`
		UPDATE messages SET is_read = ?
		WHERE receiver_id = ? AND sender_id = ? AND is_read = ?`),
		true, receiver, sender, false)
	if err != nil {
		return false, fmt.Errorf("mark read: %w", err)
	}
	return true, nil
}

// CountUnread counts unread messages addressed to receiver.
func (db *DB) CountUnread(ctx context.Context, receiver string) (int, error) {
	var n int
	err := db.GetContext(ctx, &n, db.Rebind(`
		SELECT COUNT(*) FROM messages WHERE receiver_id = ? AND is_read = ?`),
		receiver, false)
	if err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	return n, nil
}

// CountUnreadFrom counts unread messages from sender to receiver.
func (db *DB) CountUnreadFrom(ctx context.Context, receiver, sender string) (int, error) {
	var n int
	err := db.GetContext(ctx, &n, db.Rebind(`
		SELECT COUNT(*) FROM messages WHERE receiver_id = ? AND sender_id = ? AND is_read = ?`),
		receiver, sender, false)
	if err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	return n, nil
}

// GetByID returns nil, nil when no message has the id.
func (db *DB) GetByID(ctx context.Context, id string) (*Message, error) {
	var r messageRow
	err := db.GetContext(ctx, &r, db.Rebind(selectMessages+` WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get message: %w", err)
	}
	m := r.message()
	return &m, nil
}

// Delete removes a message by id.
func (db *DB) Delete(ctx context.Context, id string) (bool, error) {
	res, err := db.ExecContext(ctx, db.Rebind(`DELETE FROM messages WHERE id = ?`), id)
	if err != nil {
		return false, fmt.Errorf("delete message: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete message: %w", err)
	}
	return n > 0, nil
}
