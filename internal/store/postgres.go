package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/teris-io/shortid"

	"github.com/npezzotti/chat-relay/internal/types"
)

type PgStore struct {
	conn *sql.DB
}

func NewPgStore(dsn string) (*PgStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	return &PgStore{conn: db}, nil
}

func (s *PgStore) Close() error {
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

func (s *PgStore) Ping() error {
	return s.conn.Ping()
}

func (s *PgStore) ResolveConversation(ctx context.Context, roomId, senderId string) (types.Conversation, error) {
	if peerId, ok := strings.CutPrefix(roomId, PendingPrefix); ok {
		return s.resolveIndividualConversation(ctx, senderId, peerId)
	}

	row := s.conn.QueryRowContext(ctx,
		"SELECT id, name, is_group, created_at, updated_at FROM conversations "+
			"WHERE id = $1 LIMIT 1",
		roomId,
	)

	var c types.Conversation
	err := row.Scan(&c.Id, &c.Name, &c.IsGroup, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Conversation{}, ErrConversationNotFound
	}

	return c, err
}

// resolveIndividualConversation finds the existing one-to-one conversation
// between two users or creates it, with both users as members.
func (s *PgStore) resolveIndividualConversation(ctx context.Context, senderId, peerId string) (types.Conversation, error) {
	row := s.conn.QueryRowContext(ctx,
		"SELECT c.id, c.name, c.is_group, c.created_at, c.updated_at FROM conversations c "+
			"JOIN conversation_members m1 ON m1.conversation_id = c.id AND m1.account_id = $1 "+
			"JOIN conversation_members m2 ON m2.conversation_id = c.id AND m2.account_id = $2 "+
			"WHERE c.is_group = false LIMIT 1",
		senderId, peerId,
	)

	var c types.Conversation
	err := row.Scan(&c.Id, &c.Name, &c.IsGroup, &c.CreatedAt, &c.UpdatedAt)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return types.Conversation{}, err
	}

	id, err := shortid.Generate()
	if err != nil {
		return types.Conversation{}, fmt.Errorf("generate conversation id: %w", err)
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return types.Conversation{}, err
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	row = tx.QueryRowContext(ctx,
		"INSERT INTO conversations (id, name, is_group, created_at, updated_at) "+
			"VALUES ($1, '', false, $2, $2) RETURNING id, name, is_group, created_at, updated_at",
		id, now,
	)
	if err := row.Scan(&c.Id, &c.Name, &c.IsGroup, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return types.Conversation{}, err
	}

	for _, accountId := range []string{senderId, peerId} {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO conversation_members (conversation_id, account_id, created_at) VALUES ($1, $2, $3)",
			c.Id, accountId, now,
		); err != nil {
			return types.Conversation{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return types.Conversation{}, err
	}

	return c, nil
}

func (s *PgStore) SaveMessage(ctx context.Context, params SaveMessageParams) (types.Message, error) {
	row := s.conn.QueryRowContext(ctx,
		"INSERT INTO messages (id, conversation_id, sender_id, content, created_at) "+
			"VALUES ($1, $2, $3, $4, $5) RETURNING id, conversation_id, sender_id, content, created_at",
		uuid.NewString(),
		params.ConversationId,
		params.SenderId,
		params.Content,
		time.Now().UTC(),
	)

	var m types.Message
	err := row.Scan(&m.Id, &m.ConversationId, &m.SenderId, &m.Content, &m.Timestamp)
	return m, err
}

func (s *PgStore) MembersOf(ctx context.Context, conversationId string) ([]string, error) {
	rows, err := s.conn.QueryContext(ctx,
		"SELECT account_id FROM conversation_members WHERE conversation_id = $1",
		conversationId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []string
	for rows.Next() {
		var accountId string
		if err := rows.Scan(&accountId); err != nil {
			return nil, err
		}
		members = append(members, accountId)
	}

	return members, rows.Err()
}

func (s *PgStore) SubscriptionsFor(ctx context.Context, userId string) ([]string, error) {
	rows, err := s.conn.QueryContext(ctx,
		"SELECT conversation_id FROM conversation_members WHERE account_id = $1",
		userId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var conversationIds []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		conversationIds = append(conversationIds, id)
	}

	return conversationIds, rows.Err()
}

func (s *PgStore) MarkMessageRead(ctx context.Context, messageId, userId string) error {
	res, err := s.conn.ExecContext(ctx,
		"INSERT INTO message_reads (message_id, account_id, read_at) VALUES ($1, $2, $3) "+
			"ON CONFLICT (message_id, account_id) DO NOTHING",
		messageId, userId, time.Now().UTC(),
	)
	if err != nil {
		return err
	}

	if _, err := res.RowsAffected(); err != nil {
		return err
	}

	return nil
}

func (s *PgStore) SaveCallRecord(ctx context.Context, call types.Call) error {
	_, err := s.conn.ExecContext(ctx,
		"INSERT INTO calls (id, caller_id, callee_id, kind, status, created_at, started_at, ended_at, duration_seconds, participants) "+
			"VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)",
		call.Id,
		call.CallerId,
		call.CalleeId,
		call.Kind,
		call.Status,
		call.CreatedAt,
		call.StartedAt,
		call.EndedAt,
		call.DurationSeconds,
		pq.Array(call.Participants),
	)

	return err
}
