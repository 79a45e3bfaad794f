package database

import (
	"context"
	"errors"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/harryheman/slack-clone/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var migrateOnce sync.Once

// testPool returns a pgxpool.Pool connected to the test database with the
// schema applied. It skips the test if DATABASE_URL is not set.
func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	var migrateErr error
	migrateOnce.Do(func() {
		_, _, migrateErr = Migrate(dsn)
	})
	if migrateErr != nil {
		t.Fatalf("migrating test database: %v", migrateErr)
	}

	pool, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		t.Fatalf("connecting to test database: %v", err)
	}
	t.Cleanup(func() { pool.Close() })
	return pool
}

// testIDCounter provides unique IDs across all tests in the package.
// Starts well above zero to avoid conflicts with any existing data.
var testIDCounter int64 = 100000

func nextID() int64 {
	return atomic.AddInt64(&testIDCounter, 1)
}

// fixture is a workspace with two members and one channel.
type fixture struct {
	WorkspaceID int64
	Channel     *models.Channel
	Alice       *models.Member
	Bob         *models.Member
}

func createFixture(t *testing.T, pool *pgxpool.Pool) *fixture {
	t.Helper()
	ctx := context.Background()

	aliceUser, bobUser := nextID(), nextID()
	for _, u := range []struct {
		id   int64
		name string
	}{{aliceUser, "alice"}, {bobUser, "bob"}} {
		if _, err := pool.Exec(ctx,
			`INSERT INTO users (id, name, email) VALUES ($1, $2, $3)`,
			u.id, u.name, u.name+"-"+itoa(u.id)+"@example.com",
		); err != nil {
			t.Fatalf("insert user: %v", err)
		}
	}

	f := &fixture{WorkspaceID: nextID()}
	if _, err := pool.Exec(ctx,
		`INSERT INTO workspaces (id, name, owner_id, join_code) VALUES ($1, 'test', $2, 'abc123')`,
		f.WorkspaceID, aliceUser,
	); err != nil {
		t.Fatalf("insert workspace: %v", err)
	}
	t.Cleanup(func() {
		_, _ = pool.Exec(ctx, `DELETE FROM workspaces WHERE id = $1`, f.WorkspaceID)
		_, _ = pool.Exec(ctx, `DELETE FROM users WHERE id = ANY($1)`, []int64{aliceUser, bobUser})
	})

	f.Alice = &models.Member{ID: nextID(), WorkspaceID: f.WorkspaceID, UserID: aliceUser, Role: models.RoleAdmin}
	f.Bob = &models.Member{ID: nextID(), WorkspaceID: f.WorkspaceID, UserID: bobUser, Role: models.RoleMember}
	for _, m := range []*models.Member{f.Alice, f.Bob} {
		if _, err := pool.Exec(ctx,
			`INSERT INTO members (id, workspace_id, user_id, role) VALUES ($1, $2, $3, $4)`,
			m.ID, m.WorkspaceID, m.UserID, string(m.Role),
		); err != nil {
			t.Fatalf("insert member: %v", err)
		}
	}

	f.Channel = &models.Channel{ID: nextID(), WorkspaceID: f.WorkspaceID, Name: "general"}
	if _, err := pool.Exec(ctx,
		`INSERT INTO channels (id, workspace_id, name) VALUES ($1, $2, $3)`,
		f.Channel.ID, f.Channel.WorkspaceID, f.Channel.Name,
	); err != nil {
		t.Fatalf("insert channel: %v", err)
	}
	return f
}

// postMessage inserts a channel message by member.
func postMessage(t *testing.T, repo MessageRepository, f *fixture, member *models.Member, body string, parent *int64) *models.Message {
	t.Helper()
	chID := f.Channel.ID
	msg := &models.Message{
		ID:              nextID(),
		WorkspaceID:     f.WorkspaceID,
		MemberID:        member.ID,
		ChannelID:       &chID,
		ParentMessageID: parent,
		Body:            body,
	}
	if err := repo.Create(context.Background(), msg); err != nil {
		t.Fatalf("Create message: %v", err)
	}
	return msg
}

// findReaction reads the stored reaction of one triple, or nil.
func findReaction(t *testing.T, pool *pgxpool.Pool, messageID, memberID int64, value string) *models.Reaction {
	t.Helper()
	re := &models.Reaction{}
	err := pool.QueryRow(context.Background(),
		`SELECT id, workspace_id, message_id, member_id, value, created_at
		 FROM reactions
		 WHERE message_id = $1 AND member_id = $2 AND value = $3`,
		messageID, memberID, value,
	).Scan(&re.ID, &re.WorkspaceID, &re.MessageID, &re.MemberID, &re.Value, &re.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	if err != nil {
		t.Fatalf("finding reaction: %v", err)
	}
	return re
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
