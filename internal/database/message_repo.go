package database

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/harryheman/slack-clone/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var messageColumns = []string{
	"m.id", "m.workspace_id", "m.member_id", "m.channel_id", "m.conversation_id",
	"m.parent_message_id", "m.body", "m.image", "m.created_at", "m.updated_at",
	"m.thread_count", "m.thread_last_reply_at", "m.thread_last_author_name",
	"m.thread_last_author_image", "u.name", "u.image",
}

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

func selectMessages() sq.SelectBuilder {
	return psql.Select(messageColumns...).
		From("messages m").
		Join("members mb ON mb.id = m.member_id").
		Join("users u ON u.id = mb.user_id")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessageView(row rowScanner, m *models.MessageView) error {
	return row.Scan(
		&m.ID, &m.WorkspaceID, &m.MemberID, &m.ChannelID, &m.ConversationID,
		&m.ParentMessageID, &m.Body, &m.Image, &m.CreatedAt, &m.UpdatedAt,
		&m.Thread.Count, &m.Thread.LastReplyAt, &m.Thread.LastAuthorName,
		&m.Thread.LastAuthorImage, &m.AuthorName, &m.AuthorImage,
	)
}

// refreshThreadSummary recomputes the parent's denormalized thread fields
// from its remaining replies.
const refreshThreadSummary = `
UPDATE messages p
SET thread_count = s.reply_count,
    thread_last_reply_at = s.last_at,
    thread_last_author_name = s.last_name,
    thread_last_author_image = s.last_image
FROM (
    SELECT (SELECT COUNT(*) FROM messages WHERE parent_message_id = $1) AS reply_count,
           l.created_at AS last_at, l.name AS last_name, l.image AS last_image
    FROM (SELECT 1) one
    LEFT JOIN LATERAL (
        SELECT r.created_at, u.name, u.image
        FROM messages r
        INNER JOIN members mb ON mb.id = r.member_id
        INNER JOIN users u ON u.id = mb.user_id
        WHERE r.parent_message_id = $1
        ORDER BY r.created_at DESC, r.id DESC
        LIMIT 1
    ) l ON TRUE
) s
WHERE p.id = $1`

// lockParent takes the parent's row lock so that concurrent replies refresh
// its thread summary one after another, each seeing the previous commit.
func lockParent(ctx context.Context, tx pgx.Tx, parentID int64) error {
	_, err := tx.Exec(ctx, `SELECT 1 FROM messages WHERE id = $1 FOR UPDATE`, parentID)
	return err
}

type messageRepo struct {
	pool *pgxpool.Pool
}

func NewMessageRepository(pool *pgxpool.Pool) MessageRepository {
	return &messageRepo{pool: pool}
}

func (r *messageRepo) Create(ctx context.Context, msg *models.Message) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if msg.ParentMessageID != nil {
			if err := lockParent(ctx, tx, *msg.ParentMessageID); err != nil {
				return err
			}
		}
		err := tx.QueryRow(ctx,
			`INSERT INTO messages (id, workspace_id, member_id, channel_id, conversation_id, parent_message_id, body, image)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			 RETURNING created_at`,
			msg.ID, msg.WorkspaceID, msg.MemberID, msg.ChannelID, msg.ConversationID,
			msg.ParentMessageID, msg.Body, msg.Image,
		).Scan(&msg.CreatedAt)
		if err != nil {
			return err
		}
		if msg.ParentMessageID == nil {
			return nil
		}
		_, err = tx.Exec(ctx, refreshThreadSummary, *msg.ParentMessageID)
		return err
	})
}

func (r *messageRepo) GetByID(ctx context.Context, id int64) (*models.MessageView, error) {
	query, args, err := selectMessages().Where(sq.Eq{"m.id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("building query: %w", err)
	}

	m := &models.MessageView{}
	err = scanMessageView(r.pool.QueryRow(ctx, query, args...), m)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (r *messageRepo) ListByScope(ctx context.Context, scope models.Scope, before *models.Cursor, limit int) ([]models.MessageView, error) {
	q := selectMessages()
	switch {
	case scope.ParentMessageID != 0:
		q = q.Where(sq.Eq{"m.parent_message_id": scope.ParentMessageID})
	case scope.ChannelID != 0:
		q = q.Where(sq.Eq{"m.channel_id": scope.ChannelID, "m.parent_message_id": nil})
	case scope.ConversationID != 0:
		q = q.Where(sq.Eq{"m.conversation_id": scope.ConversationID, "m.parent_message_id": nil})
	default:
		return nil, models.ErrScopeMissing
	}
	if before != nil {
		q = q.Where(sq.Expr("(m.created_at, m.id) < (?, ?)", before.CreatedAt, before.ID))
	}
	q = q.OrderBy("m.created_at DESC", "m.id DESC").Limit(uint64(limit))

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building query: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := make([]models.MessageView, 0, limit)
	for rows.Next() {
		var m models.MessageView
		if err := scanMessageView(rows, &m); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

func (r *messageRepo) Update(ctx context.Context, msg *models.Message) error {
	return r.pool.QueryRow(ctx,
		`UPDATE messages SET body = $2, updated_at = clock_timestamp()
		 WHERE id = $1
		 RETURNING updated_at`,
		msg.ID, msg.Body,
	).Scan(&msg.UpdatedAt)
}

func (r *messageRepo) Delete(ctx context.Context, id int64) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var parentID *int64
		err := tx.QueryRow(ctx,
			`SELECT parent_message_id FROM messages WHERE id = $1`, id,
		).Scan(&parentID)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		if parentID != nil {
			if err := lockParent(ctx, tx, *parentID); err != nil {
				return err
			}
		}
		if _, err := tx.Exec(ctx, `DELETE FROM messages WHERE id = $1`, id); err != nil {
			return err
		}
		if parentID == nil {
			return nil
		}
		_, err = tx.Exec(ctx, refreshThreadSummary, *parentID)
		return err
	})
}
