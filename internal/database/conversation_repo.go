package database

import (
	"context"
	"errors"

	"github.com/harryheman/slack-clone/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type conversationRepo struct {
	pool *pgxpool.Pool
}

func NewConversationRepository(pool *pgxpool.Pool) ConversationRepository {
	return &conversationRepo{pool: pool}
}

func (r *conversationRepo) GetByID(ctx context.Context, id int64) (*models.Conversation, error) {
	c := &models.Conversation{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, workspace_id, member_one_id, member_two_id, created_at
		 FROM conversations WHERE id = $1`, id,
	).Scan(&c.ID, &c.WorkspaceID, &c.MemberOneID, &c.MemberTwoID, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (r *conversationRepo) GetOrCreate(ctx context.Context, conv *models.Conversation) (*models.Conversation, error) {
	conv.Normalize()

	// Concurrent callers race on the unique pair; the loser reads the winner's row.
	_, err := r.pool.Exec(ctx,
		`INSERT INTO conversations (id, workspace_id, member_one_id, member_two_id)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (workspace_id, member_one_id, member_two_id) DO NOTHING`,
		conv.ID, conv.WorkspaceID, conv.MemberOneID, conv.MemberTwoID,
	)
	if err != nil {
		return nil, err
	}

	c := &models.Conversation{}
	err = r.pool.QueryRow(ctx,
		`SELECT id, workspace_id, member_one_id, member_two_id, created_at
		 FROM conversations
		 WHERE workspace_id = $1 AND member_one_id = $2 AND member_two_id = $3`,
		conv.WorkspaceID, conv.MemberOneID, conv.MemberTwoID,
	).Scan(&c.ID, &c.WorkspaceID, &c.MemberOneID, &c.MemberTwoID, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return c, nil
}
