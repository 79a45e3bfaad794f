package service

import (
	"context"

	"github.com/harryheman/slack-clone/internal/database"
	"github.com/harryheman/slack-clone/internal/models"
	"github.com/harryheman/slack-clone/internal/snowflake"
)

// ConversationService handles direct conversations between two members.
type ConversationService struct {
	conversations database.ConversationRepository
	members       database.MemberRepository
	gate          *MemberGate
	sf            *snowflake.Generator
}

// NewConversationService creates a ConversationService.
func NewConversationService(
	conversations database.ConversationRepository,
	members database.MemberRepository,
	gate *MemberGate,
	sf *snowflake.Generator,
) *ConversationService {
	return &ConversationService{
		conversations: conversations,
		members:       members,
		gate:          gate,
		sf:            sf,
	}
}

// CreateOrGet returns the conversation between the caller and another
// member of the workspace, creating it on first use. A member may open a
// conversation with itself.
func (s *ConversationService) CreateOrGet(ctx context.Context, workspaceID, userID, otherMemberID int64) (*models.Conversation, error) {
	if otherMemberID == 0 {
		return nil, BadRequest("INVALID_MEMBER", "member_id is required")
	}

	me, err := s.gate.Require(ctx, workspaceID, userID)
	if err != nil {
		return nil, err
	}

	other, err := s.members.GetByID(ctx, otherMemberID)
	if err != nil {
		return nil, storeFailure("members.get", err, "memberID", otherMemberID)
	}
	if other == nil || other.WorkspaceID != workspaceID {
		return nil, NotFound("MEMBER_NOT_FOUND", "member not found")
	}

	conv, err := s.conversations.GetOrCreate(ctx, &models.Conversation{
		ID:          s.sf.Generate().Int64(),
		WorkspaceID: workspaceID,
		MemberOneID: me.ID,
		MemberTwoID: other.ID,
	})
	if err != nil {
		return nil, storeFailure("conversations.get_or_create", err, "workspaceID", workspaceID)
	}
	return conv, nil
}
