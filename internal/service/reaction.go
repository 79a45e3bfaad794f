package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/harryheman/slack-clone/internal/database"
	"github.com/harryheman/slack-clone/internal/gateway"
	"github.com/harryheman/slack-clone/internal/metrics"
	"github.com/harryheman/slack-clone/internal/models"
	"github.com/harryheman/slack-clone/internal/snowflake"
)

const maxReactionValueLen = 64

// ReactionService handles reaction business logic.
type ReactionService struct {
	reactions database.ReactionRepository
	messages  database.MessageRepository
	gate      *MemberGate
	snowflake *snowflake.Generator
	gateway   gateway.Dispatcher
}

// NewReactionService creates a ReactionService.
func NewReactionService(
	reactions database.ReactionRepository,
	messages database.MessageRepository,
	gate *MemberGate,
	sf *snowflake.Generator,
	gw gateway.Dispatcher,
) *ReactionService {
	return &ReactionService{
		reactions: reactions,
		messages:  messages,
		gate:      gate,
		snowflake: sf,
		gateway:   gw,
	}
}

// Toggle removes the caller's reaction with value on the message if it
// exists, otherwise adds it. The returned id is the removed or the new
// reaction's.
func (s *ReactionService) Toggle(ctx context.Context, messageID, userID int64, value string) (models.ToggleResult, error) {
	var none models.ToggleResult
	if strings.TrimSpace(value) == "" {
		return none, BadRequest("INVALID_REACTION", "reaction value must not be empty")
	}
	if utf8.RuneCountInString(value) > maxReactionValueLen {
		return none, BadRequest("INVALID_REACTION", "reaction value is too long")
	}

	msg, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return none, storeFailure("messages.get", err, "messageID", messageID)
	}
	if msg == nil {
		return none, NotFound("MESSAGE_NOT_FOUND", "message not found")
	}

	member, err := s.gate.Require(ctx, msg.WorkspaceID, userID)
	if err != nil {
		return none, err
	}

	result, err := s.reactions.Toggle(ctx, &models.Reaction{
		ID:          s.snowflake.Generate().Int64(),
		MessageID:   msg.ID,
		MemberID:    member.ID,
		WorkspaceID: msg.WorkspaceID,
		Value:       value,
	})
	if err != nil {
		return none, storeFailure("reactions.toggle", err, "messageID", messageID, "memberID", member.ID)
	}

	event, outcome := gateway.EventReactionAdd, "added"
	if !result.Added {
		event, outcome = gateway.EventReactionRemove, "removed"
	}
	metrics.ReactionToggles.WithLabelValues(outcome).Inc()

	scope := msg.Scope().Key()
	s.gateway.Publish(scope, event, gateway.ReactionEventData{
		Scope:      scope,
		MessageID:  msg.ID,
		MemberID:   member.ID,
		ReactionID: result.ReactionID,
		Value:      value,
	})

	return result, nil
}
