package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/harryheman/slack-clone/internal/database"
	"github.com/harryheman/slack-clone/internal/models"
	redisclient "github.com/harryheman/slack-clone/internal/redis"
	"github.com/harryheman/slack-clone/internal/service"
	"github.com/harryheman/slack-clone/internal/snowflake"
	"github.com/labstack/echo/v4"
)

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

const (
	testWorkspaceID int64 = 1000
	testChannelID   int64 = 2000
	testConvID      int64 = 2500
	testUserID      int64 = 3000
	testOtherUserID int64 = 3001
	testMemberID    int64 = 4000
	testOtherMember int64 = 4001
	testMsgID       int64 = 5000
)

var errStore = errors.New("connection refused")

func newTestContext(method, path string, body io.Reader) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, path, body)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	return c, rec
}

func setAuthUser(c echo.Context, userID int64) {
	c.Set("user_id", userID)
}

func testSnowflake() *snowflake.Generator {
	sf, _ := snowflake.NewGenerator(1, 1)
	return sf
}

func newTestRedis(t *testing.T) *redisclient.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb, err := redisclient.NewClient("redis://" + mr.Addr())
	if err != nil {
		t.Fatalf("creating test redis client: %v", err)
	}
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func ptr[T any](v T) *T { return &v }

// ---------------------------------------------------------------------------
// Mock gateway dispatcher
// ---------------------------------------------------------------------------

type publishedEvent struct {
	Scope string
	Event string
	Data  any
}

type mockGateway struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (m *mockGateway) Publish(scopeKey, event string, data any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, publishedEvent{Scope: scopeKey, Event: event, Data: data})
}

func (m *mockGateway) Events() []publishedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]publishedEvent(nil), m.events...)
}

// ---------------------------------------------------------------------------
// Mock repositories
// ---------------------------------------------------------------------------

// mockMemberRepo implements database.MemberRepository. Without functions
// set, the test user is a member of the test workspace.
type mockMemberRepo struct {
	GetByIDFn               func(ctx context.Context, id int64) (*models.Member, error)
	GetByWorkspaceAndUserFn func(ctx context.Context, workspaceID, userID int64) (*models.Member, error)
}

func (m *mockMemberRepo) GetByID(ctx context.Context, id int64) (*models.Member, error) {
	if m.GetByIDFn != nil {
		return m.GetByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockMemberRepo) GetByWorkspaceAndUser(ctx context.Context, workspaceID, userID int64) (*models.Member, error) {
	if m.GetByWorkspaceAndUserFn != nil {
		return m.GetByWorkspaceAndUserFn(ctx, workspaceID, userID)
	}
	return defaultMember(workspaceID, userID), nil
}

func defaultMember(workspaceID, userID int64) *models.Member {
	if workspaceID != testWorkspaceID {
		return nil
	}
	switch userID {
	case testUserID:
		return &models.Member{ID: testMemberID, WorkspaceID: workspaceID, UserID: userID, Role: models.RoleMember}
	case testOtherUserID:
		return &models.Member{ID: testOtherMember, WorkspaceID: workspaceID, UserID: userID, Role: models.RoleMember}
	}
	return nil
}

func nonMember() *mockMemberRepo {
	return &mockMemberRepo{
		GetByWorkspaceAndUserFn: func(context.Context, int64, int64) (*models.Member, error) { return nil, nil },
	}
}

// mockChannelRepo implements database.ChannelRepository.
type mockChannelRepo struct {
	GetByIDFn func(ctx context.Context, id int64) (*models.Channel, error)
}

func (m *mockChannelRepo) GetByID(ctx context.Context, id int64) (*models.Channel, error) {
	if m.GetByIDFn != nil {
		return m.GetByIDFn(ctx, id)
	}
	if id == testChannelID {
		return &models.Channel{ID: id, WorkspaceID: testWorkspaceID, Name: "general"}, nil
	}
	return nil, nil
}

// mockConversationRepo implements database.ConversationRepository.
type mockConversationRepo struct {
	GetByIDFn     func(ctx context.Context, id int64) (*models.Conversation, error)
	GetOrCreateFn func(ctx context.Context, conv *models.Conversation) (*models.Conversation, error)
}

func (m *mockConversationRepo) GetByID(ctx context.Context, id int64) (*models.Conversation, error) {
	if m.GetByIDFn != nil {
		return m.GetByIDFn(ctx, id)
	}
	if id == testConvID {
		return &models.Conversation{ID: id, WorkspaceID: testWorkspaceID, MemberOneID: testMemberID, MemberTwoID: testOtherMember}, nil
	}
	return nil, nil
}

func (m *mockConversationRepo) GetOrCreate(ctx context.Context, conv *models.Conversation) (*models.Conversation, error) {
	if m.GetOrCreateFn != nil {
		return m.GetOrCreateFn(ctx, conv)
	}
	conv.Normalize()
	return conv, nil
}

// mockMessageRepo implements database.MessageRepository.
type mockMessageRepo struct {
	CreateFn      func(ctx context.Context, msg *models.Message) error
	GetByIDFn     func(ctx context.Context, id int64) (*models.MessageView, error)
	ListByScopeFn func(ctx context.Context, scope models.Scope, before *models.Cursor, limit int) ([]models.MessageView, error)
	UpdateFn      func(ctx context.Context, msg *models.Message) error
	DeleteFn      func(ctx context.Context, id int64) error
}

func (m *mockMessageRepo) Create(ctx context.Context, msg *models.Message) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, msg)
	}
	return nil
}

func (m *mockMessageRepo) GetByID(ctx context.Context, id int64) (*models.MessageView, error) {
	if m.GetByIDFn != nil {
		return m.GetByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockMessageRepo) ListByScope(ctx context.Context, scope models.Scope, before *models.Cursor, limit int) ([]models.MessageView, error) {
	if m.ListByScopeFn != nil {
		return m.ListByScopeFn(ctx, scope, before, limit)
	}
	return nil, nil
}

func (m *mockMessageRepo) Update(ctx context.Context, msg *models.Message) error {
	if m.UpdateFn != nil {
		return m.UpdateFn(ctx, msg)
	}
	return nil
}

func (m *mockMessageRepo) Delete(ctx context.Context, id int64) error {
	if m.DeleteFn != nil {
		return m.DeleteFn(ctx, id)
	}
	return nil
}

// mockReactionRepo implements database.ReactionRepository.
type mockReactionRepo struct {
	ToggleFn           func(ctx context.Context, r *models.Reaction) (models.ToggleResult, error)
	GroupsByMessagesFn func(ctx context.Context, messageIDs []int64) (map[int64][]models.ReactionGroup, error)
}

func (m *mockReactionRepo) Toggle(ctx context.Context, r *models.Reaction) (models.ToggleResult, error) {
	if m.ToggleFn != nil {
		return m.ToggleFn(ctx, r)
	}
	return models.ToggleResult{ReactionID: r.ID, Added: true}, nil
}

func (m *mockReactionRepo) GroupsByMessages(ctx context.Context, messageIDs []int64) (map[int64][]models.ReactionGroup, error) {
	if m.GroupsByMessagesFn != nil {
		return m.GroupsByMessagesFn(ctx, messageIDs)
	}
	return map[int64][]models.ReactionGroup{}, nil
}

// memReactionRepo keeps reactions in memory; Toggle holds a lock for the
// whole check-and-mutate like the real store's transaction.
type memReactionRepo struct {
	mu   sync.Mutex
	rows map[string]models.Reaction
}

func newMemReactionRepo() *memReactionRepo {
	return &memReactionRepo{rows: make(map[string]models.Reaction)}
}

func reactionKey(messageID, memberID int64, value string) string {
	return fmt.Sprintf("%d|%d|%s", messageID, memberID, value)
}

func (m *memReactionRepo) Toggle(_ context.Context, r *models.Reaction) (models.ToggleResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := reactionKey(r.MessageID, r.MemberID, r.Value)
	if existing, ok := m.rows[key]; ok {
		delete(m.rows, key)
		return models.ToggleResult{ReactionID: existing.ID, Added: false}, nil
	}
	m.rows[key] = *r
	return models.ToggleResult{ReactionID: r.ID, Added: true}, nil
}

func (m *memReactionRepo) GroupsByMessages(context.Context, []int64) (map[int64][]models.ReactionGroup, error) {
	return map[int64][]models.ReactionGroup{}, nil
}

func (m *memReactionRepo) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

// mockStorage implements service.FileStorage.
type mockStorage struct {
	UploadFn     func(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error
	PresignPutFn func(ctx context.Context, key string, expiry time.Duration) (string, error)
	PresignGetFn func(ctx context.Context, key string, expiry time.Duration) (string, error)
	DeleteFn     func(ctx context.Context, key string) error
}

func (m *mockStorage) Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	if m.UploadFn != nil {
		return m.UploadFn(ctx, key, reader, size, contentType)
	}
	return nil
}

func (m *mockStorage) PresignPut(ctx context.Context, key string, expiry time.Duration) (string, error) {
	if m.PresignPutFn != nil {
		return m.PresignPutFn(ctx, key, expiry)
	}
	return "https://storage.test/put/" + key, nil
}

func (m *mockStorage) PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error) {
	if m.PresignGetFn != nil {
		return m.PresignGetFn(ctx, key, expiry)
	}
	return "https://storage.test/get/" + key, nil
}

func (m *mockStorage) Delete(ctx context.Context, key string) error {
	if m.DeleteFn != nil {
		return m.DeleteFn(ctx, key)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Wiring
// ---------------------------------------------------------------------------

// testDeps bundles the mocks behind the services under test. Zero-value
// mocks give a workspace with one channel, one conversation and two members.
type testDeps struct {
	members       *mockMemberRepo
	channels      *mockChannelRepo
	conversations *mockConversationRepo
	messages      *mockMessageRepo
	reactions     database.ReactionRepository
	storage       *mockStorage
	gw            *mockGateway
}

func newTestDeps() *testDeps {
	return &testDeps{
		members:       &mockMemberRepo{},
		channels:      &mockChannelRepo{},
		conversations: &mockConversationRepo{},
		messages:      &mockMessageRepo{},
		reactions:     &mockReactionRepo{},
		storage:       &mockStorage{},
		gw:            &mockGateway{},
	}
}

func (d *testDeps) gate() *service.MemberGate {
	return service.NewMemberGate(d.members)
}

func (d *testDeps) messageHandler() *MessageHandler {
	svc := service.NewMessageService(d.messages, d.reactions, d.channels, d.conversations,
		d.gate(), testSnowflake(), d.gw, d.storage, service.PageLimits{Default: 20, Max: 100})
	return NewMessageHandler(svc, 5*time.Minute)
}

func (d *testDeps) reactionHandler() *ReactionHandler {
	return NewReactionHandler(service.NewReactionService(d.reactions, d.messages, d.gate(), testSnowflake(), d.gw))
}

func (d *testDeps) conversationHandler() *ConversationHandler {
	return NewConversationHandler(service.NewConversationService(d.conversations, d.members, d.gate(), testSnowflake()))
}

func (d *testDeps) uploadHandler() *UploadHandler {
	return NewUploadHandler(service.NewUploadService(d.gate(), testSnowflake(), d.storage))
}

// channelMessage builds a stored top-level channel message by the test user.
func channelMessage(id int64, createdAt time.Time) models.MessageView {
	return models.MessageView{
		Message: models.Message{
			ID:          id,
			WorkspaceID: testWorkspaceID,
			MemberID:    testMemberID,
			ChannelID:   ptr(testChannelID),
			Body:        "hello",
			CreatedAt:   createdAt,
		},
		AuthorName: "alice",
	}
}

func messageByID(views ...models.MessageView) func(context.Context, int64) (*models.MessageView, error) {
	return func(_ context.Context, id int64) (*models.MessageView, error) {
		for _, v := range views {
			if v.ID == id {
				v := v
				return &v, nil
			}
		}
		return nil, nil
	}
}
