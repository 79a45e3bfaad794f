package database

import (
	"context"

	"github.com/harryheman/slack-clone/internal/models"
)

// Repositories return (nil, nil) when a looked-up row does not exist.

type MemberRepository interface {
	GetByID(ctx context.Context, id int64) (*models.Member, error)
	GetByWorkspaceAndUser(ctx context.Context, workspaceID, userID int64) (*models.Member, error)
}

type ChannelRepository interface {
	GetByID(ctx context.Context, id int64) (*models.Channel, error)
}

type ConversationRepository interface {
	GetByID(ctx context.Context, id int64) (*models.Conversation, error)
	// GetOrCreate returns the stored conversation for the member pair,
	// inserting conv when none exists yet.
	GetOrCreate(ctx context.Context, conv *models.Conversation) (*models.Conversation, error)
}

type MessageRepository interface {
	// Create inserts msg, filling CreatedAt from the store. Replies update
	// the parent's thread summary in the same transaction.
	Create(ctx context.Context, msg *models.Message) error
	GetByID(ctx context.Context, id int64) (*models.MessageView, error)
	// ListByScope returns at most limit messages of the scope older than
	// before, newest first. Thread scopes use ParentMessageID only.
	ListByScope(ctx context.Context, scope models.Scope, before *models.Cursor, limit int) ([]models.MessageView, error)
	Update(ctx context.Context, msg *models.Message) error
	Delete(ctx context.Context, id int64) error
}

type ReactionRepository interface {
	// Toggle deletes the reaction matching r's (message, member, value)
	// triple if one exists, otherwise inserts r. Check and mutation run as
	// one atomic unit.
	Toggle(ctx context.Context, r *models.Reaction) (models.ToggleResult, error)
	GroupsByMessages(ctx context.Context, messageIDs []int64) (map[int64][]models.ReactionGroup, error)
}
