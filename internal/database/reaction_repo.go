package database

import (
	"context"
	"errors"
	"strconv"

	"github.com/harryheman/slack-clone/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type reactionRepo struct {
	pool *pgxpool.Pool
}

func NewReactionRepository(pool *pgxpool.Pool) ReactionRepository {
	return &reactionRepo{pool: pool}
}

// tripleLockKey names the advisory lock serializing toggles of one triple.
func tripleLockKey(messageID, memberID int64, value string) string {
	return "reaction:" + strconv.FormatInt(messageID, 10) + ":" + strconv.FormatInt(memberID, 10) + ":" + value
}

func (r *reactionRepo) Toggle(ctx context.Context, reaction *models.Reaction) (models.ToggleResult, error) {
	var result models.ToggleResult
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		// Held until commit. The UNIQUE constraint still rejects a second
		// row if the lock is ever bypassed.
		if _, err := tx.Exec(ctx,
			`SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`,
			tripleLockKey(reaction.MessageID, reaction.MemberID, reaction.Value),
		); err != nil {
			return err
		}

		var existingID int64
		err := tx.QueryRow(ctx,
			`SELECT id FROM reactions
			 WHERE message_id = $1 AND member_id = $2 AND value = $3`,
			reaction.MessageID, reaction.MemberID, reaction.Value,
		).Scan(&existingID)
		switch {
		case err == nil:
			if _, err := tx.Exec(ctx, `DELETE FROM reactions WHERE id = $1`, existingID); err != nil {
				return err
			}
			result = models.ToggleResult{ReactionID: existingID, Added: false}
			return nil
		case !errors.Is(err, pgx.ErrNoRows):
			return err
		}

		err = tx.QueryRow(ctx,
			`INSERT INTO reactions (id, workspace_id, message_id, member_id, value)
			 VALUES ($1, $2, $3, $4, $5)
			 RETURNING created_at`,
			reaction.ID, reaction.WorkspaceID, reaction.MessageID, reaction.MemberID, reaction.Value,
		).Scan(&reaction.CreatedAt)
		if err != nil {
			return err
		}
		result = models.ToggleResult{ReactionID: reaction.ID, Added: true}
		return nil
	})
	if err != nil {
		return models.ToggleResult{}, err
	}
	return result, nil
}

func (r *reactionRepo) GroupsByMessages(ctx context.Context, messageIDs []int64) (map[int64][]models.ReactionGroup, error) {
	groups := make(map[int64][]models.ReactionGroup, len(messageIDs))
	if len(messageIDs) == 0 {
		return groups, nil
	}

	rows, err := r.pool.Query(ctx,
		`SELECT message_id, value, COUNT(*), array_agg(member_id ORDER BY created_at, id)
		 FROM reactions
		 WHERE message_id = ANY($1)
		 GROUP BY message_id, value
		 ORDER BY message_id, MIN(created_at), value`,
		messageIDs,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			messageID int64
			memberIDs []int64
			g         models.ReactionGroup
		)
		if err := rows.Scan(&messageID, &g.Value, &g.Count, &memberIDs); err != nil {
			return nil, err
		}
		g.MemberIDs = memberIDs
		groups[messageID] = append(groups[messageID], g)
	}
	return groups, rows.Err()
}
