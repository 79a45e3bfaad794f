package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/harryheman/slack-clone/internal/database"
	"github.com/harryheman/slack-clone/internal/gateway"
	"github.com/harryheman/slack-clone/internal/metrics"
	"github.com/harryheman/slack-clone/internal/models"
	"github.com/harryheman/slack-clone/internal/snowflake"
)

const (
	maxBodyLength  = 4000
	imageURLExpiry = time.Hour
)

// PageLimits bounds the page size callers may ask for.
type PageLimits struct {
	Default int
	Max     int
}

// ListQuery selects one page of a scope. An empty Cursor asks for the
// newest page; Limit 0 selects the default page size.
type ListQuery struct {
	Scope  models.Scope
	Cursor string
	Limit  int
}

// SendRequest describes a new message. Scope names a channel or a
// conversation, and ParentMessageID makes the message a thread reply.
type SendRequest struct {
	Scope models.Scope
	Body  string
	Image *string
}

// MessageService handles message business logic for channels, direct
// conversations and threads.
type MessageService struct {
	messages      database.MessageRepository
	reactions     database.ReactionRepository
	channels      database.ChannelRepository
	conversations database.ConversationRepository
	gate          *MemberGate
	snowflake     *snowflake.Generator
	gateway       gateway.Dispatcher
	storage       FileStorage
	limits        PageLimits
}

// NewMessageService creates a MessageService. storage may be nil, in which
// case messages carry no image URLs.
func NewMessageService(
	messages database.MessageRepository,
	reactions database.ReactionRepository,
	channels database.ChannelRepository,
	conversations database.ConversationRepository,
	gate *MemberGate,
	sf *snowflake.Generator,
	gw gateway.Dispatcher,
	storage FileStorage,
	limits PageLimits,
) *MessageService {
	if limits.Default <= 0 {
		limits.Default = 20
	}
	if limits.Max < limits.Default {
		limits.Max = limits.Default
	}
	return &MessageService{
		messages:      messages,
		reactions:     reactions,
		channels:      channels,
		conversations: conversations,
		gate:          gate,
		snowflake:     sf,
		gateway:       gw,
		storage:       storage,
		limits:        limits,
	}
}

// ListMessages returns one page of the scope, newest first. The page is
// exhausted when it holds fewer items than the effective limit.
func (s *MessageService) ListMessages(ctx context.Context, userID int64, q ListQuery) (*models.MessagePage, error) {
	if err := q.Scope.Validate(); err != nil {
		return nil, BadRequest("INVALID_SCOPE", err.Error())
	}
	limit := q.Limit
	switch {
	case limit < 0:
		return nil, BadRequest("INVALID_LIMIT", "limit must not be negative")
	case limit == 0:
		limit = s.limits.Default
	case limit > s.limits.Max:
		limit = s.limits.Max
	}
	cursor, err := models.DecodeCursor(q.Cursor)
	if err != nil {
		return nil, BadRequest("INVALID_CURSOR", "cursor is malformed")
	}

	scope, workspaceID, err := s.resolveScope(ctx, q.Scope)
	if err != nil {
		return nil, err
	}
	if _, err := s.gate.Require(ctx, workspaceID, userID); err != nil {
		return nil, err
	}

	views, err := s.messages.ListByScope(ctx, scope, cursor, limit)
	if err != nil {
		return nil, storeFailure("messages.list", err, "scope", scope.Key())
	}
	if err := s.populate(ctx, views); err != nil {
		return nil, err
	}

	page := &models.MessagePage{
		Page:       views,
		NextCursor: q.Cursor,
		Exhausted:  len(views) < limit,
		Limit:      limit,
	}
	if page.Page == nil {
		page.Page = []models.MessageView{}
	}
	if n := len(views); n > 0 {
		page.NextCursor = models.CursorFor(&views[n-1].Message).Encode()
	}
	metrics.PagesServed.WithLabelValues(metrics.ScopeKind(scope)).Inc()
	return page, nil
}

// GetMessage returns a single populated message.
func (s *MessageService) GetMessage(ctx context.Context, userID, messageID int64) (*models.MessageView, error) {
	view, err := s.loadMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if _, err := s.gate.Require(ctx, view.WorkspaceID, userID); err != nil {
		return nil, err
	}
	if err := s.populateOne(ctx, view); err != nil {
		return nil, err
	}
	return view, nil
}

// SendMessage creates a message in a channel, a conversation or a thread.
func (s *MessageService) SendMessage(ctx context.Context, userID int64, req SendRequest) (*models.MessageView, error) {
	body, err := validateBody(req.Body)
	if err != nil {
		return nil, err
	}
	if err := req.Scope.Validate(); err != nil {
		return nil, BadRequest("INVALID_SCOPE", err.Error())
	}

	scope, workspaceID, err := s.resolveScope(ctx, req.Scope)
	if err != nil {
		return nil, err
	}
	member, err := s.gate.Require(ctx, workspaceID, userID)
	if err != nil {
		return nil, err
	}
	if req.Image != nil && !strings.HasPrefix(*req.Image, imageKeyPrefix(workspaceID)) {
		return nil, BadRequest("INVALID_IMAGE", "image does not belong to this workspace")
	}

	msg := &models.Message{
		ID:          s.snowflake.Generate().Int64(),
		WorkspaceID: workspaceID,
		MemberID:    member.ID,
		Body:        body,
		Image:       req.Image,
	}
	if scope.ChannelID != 0 {
		msg.ChannelID = &scope.ChannelID
	}
	if scope.ConversationID != 0 {
		msg.ConversationID = &scope.ConversationID
	}
	if scope.ParentMessageID != 0 {
		msg.ParentMessageID = &scope.ParentMessageID
	}

	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, storeFailure("messages.create", err, "scope", scope.Key())
	}
	metrics.MessagesSent.Inc()

	view, err := s.loadMessage(ctx, msg.ID)
	if err != nil {
		return nil, err
	}
	if err := s.populateOne(ctx, view); err != nil {
		return nil, err
	}

	s.publishMessage(&view.Message, gateway.EventMessageCreate)
	return view, nil
}

// UpdateMessage replaces the body of a message. Only the author can edit.
func (s *MessageService) UpdateMessage(ctx context.Context, userID, messageID int64, body string) (*models.MessageView, error) {
	body, err := validateBody(body)
	if err != nil {
		return nil, err
	}
	view, err := s.requireAuthor(ctx, userID, messageID)
	if err != nil {
		return nil, err
	}

	view.Body = body
	if err := s.messages.Update(ctx, &view.Message); err != nil {
		return nil, storeFailure("messages.update", err, "messageID", messageID)
	}
	if err := s.populateOne(ctx, view); err != nil {
		return nil, err
	}

	scope := view.Scope().Key()
	s.gateway.Publish(scope, gateway.EventMessageUpdate, gateway.MessageEventData{Scope: scope, MessageID: view.ID})
	return view, nil
}

// DeleteMessage removes a message with its replies and reactions. Only the
// author can delete.
func (s *MessageService) DeleteMessage(ctx context.Context, userID, messageID int64) error {
	view, err := s.requireAuthor(ctx, userID, messageID)
	if err != nil {
		return err
	}

	if err := s.messages.Delete(ctx, messageID); err != nil {
		return storeFailure("messages.delete", err, "messageID", messageID)
	}

	if s.storage != nil && view.Image != nil {
		if err := s.storage.Delete(ctx, *view.Image); err != nil {
			slog.Warn("failed to delete message image", "messageID", messageID, "key", *view.Image, "error", err)
		}
	}

	s.publishMessage(&view.Message, gateway.EventMessageDelete)
	return nil
}

// AuthorizeScope checks that the caller may read the scope and returns the
// key its events are published under.
func (s *MessageService) AuthorizeScope(ctx context.Context, userID int64, scope models.Scope) (string, error) {
	if err := scope.Validate(); err != nil {
		return "", BadRequest("INVALID_SCOPE", err.Error())
	}
	resolved, workspaceID, err := s.resolveScope(ctx, scope)
	if err != nil {
		return "", err
	}
	if _, err := s.gate.Require(ctx, workspaceID, userID); err != nil {
		return "", err
	}
	return resolved.Key(), nil
}

// resolveScope looks up the scope target and returns the scope completed
// with the parent's container for threads, plus the owning workspace.
func (s *MessageService) resolveScope(ctx context.Context, scope models.Scope) (models.Scope, int64, error) {
	if scope.ParentMessageID != 0 {
		parent, err := s.loadMessage(ctx, scope.ParentMessageID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return scope, 0, NotFound("MESSAGE_NOT_FOUND", "parent message not found")
			}
			return scope, 0, err
		}
		if parent.ParentMessageID != nil {
			return scope, 0, BadRequest("INVALID_PARENT", "replies cannot have threads")
		}
		container := parent.ContainerScope()
		if (scope.ChannelID != 0 && scope.ChannelID != container.ChannelID) ||
			(scope.ConversationID != 0 && scope.ConversationID != container.ConversationID) {
			return scope, 0, NotFound("MESSAGE_NOT_FOUND", "parent message not found in this scope")
		}
		container.ParentMessageID = parent.ID
		return container, parent.WorkspaceID, nil
	}

	if scope.ChannelID != 0 {
		ch, err := s.channels.GetByID(ctx, scope.ChannelID)
		if err != nil {
			return scope, 0, storeFailure("channels.get", err, "channelID", scope.ChannelID)
		}
		if ch == nil {
			return scope, 0, NotFound("CHANNEL_NOT_FOUND", "channel not found")
		}
		return scope, ch.WorkspaceID, nil
	}

	conv, err := s.conversations.GetByID(ctx, scope.ConversationID)
	if err != nil {
		return scope, 0, storeFailure("conversations.get", err, "conversationID", scope.ConversationID)
	}
	if conv == nil {
		return scope, 0, NotFound("CONVERSATION_NOT_FOUND", "conversation not found")
	}
	return scope, conv.WorkspaceID, nil
}

func (s *MessageService) loadMessage(ctx context.Context, messageID int64) (*models.MessageView, error) {
	view, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return nil, storeFailure("messages.get", err, "messageID", messageID)
	}
	if view == nil {
		return nil, NotFound("MESSAGE_NOT_FOUND", "message not found")
	}
	return view, nil
}

func (s *MessageService) requireAuthor(ctx context.Context, userID, messageID int64) (*models.MessageView, error) {
	view, err := s.loadMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	member, err := s.gate.Require(ctx, view.WorkspaceID, userID)
	if err != nil {
		return nil, err
	}
	if view.MemberID != member.ID {
		return nil, Forbidden("NOT_AUTHOR", "only the author can change this message")
	}
	return view, nil
}

// populate attaches reaction groups and image URLs to views in place.
func (s *MessageService) populate(ctx context.Context, views []models.MessageView) error {
	if len(views) == 0 {
		return nil
	}
	ids := make([]int64, len(views))
	for i := range views {
		ids[i] = views[i].ID
	}
	groups, err := s.reactions.GroupsByMessages(ctx, ids)
	if err != nil {
		return storeFailure("reactions.groups", err)
	}
	for i := range views {
		v := &views[i]
		v.Reactions = groups[v.ID]
		if v.Reactions == nil {
			v.Reactions = []models.ReactionGroup{}
		}
		if s.storage == nil || v.Image == nil {
			continue
		}
		url, err := s.storage.PresignGet(ctx, *v.Image, imageURLExpiry)
		if err != nil {
			slog.Warn("failed to sign image url", "messageID", v.ID, "error", err)
			continue
		}
		v.ImageURL = url
	}
	return nil
}

func (s *MessageService) populateOne(ctx context.Context, view *models.MessageView) error {
	views := []models.MessageView{*view}
	if err := s.populate(ctx, views); err != nil {
		return err
	}
	*view = views[0]
	return nil
}

// publishMessage notifies readers of the message's scope. Replies also
// change the parent's thread summary, so readers of the container hear
// about the parent.
func (s *MessageService) publishMessage(msg *models.Message, event string) {
	scope := msg.Scope().Key()
	s.gateway.Publish(scope, event, gateway.MessageEventData{Scope: scope, MessageID: msg.ID})

	if msg.ParentMessageID != nil {
		container := msg.ContainerScope().Key()
		s.gateway.Publish(container, gateway.EventMessageUpdate, gateway.MessageEventData{
			Scope:     container,
			MessageID: *msg.ParentMessageID,
		})
	}
}

func validateBody(body string) (string, error) {
	if strings.TrimSpace(body) == "" {
		return "", BadRequest("INVALID_BODY", "message body must not be empty")
	}
	if utf8.RuneCountInString(body) > maxBodyLength {
		return "", BadRequest("INVALID_BODY", "message body must be at most 4000 characters")
	}
	return body, nil
}
