package main

import (
	"context"
	"fmt"
	"time"

	"github.com/harryheman/slack-clone/internal/auth"
	"github.com/harryheman/slack-clone/internal/database"
	"github.com/harryheman/slack-clone/internal/snowflake"
	"github.com/jackc/pgx/v5"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the embedded database migrations",
	Long:  "Apply the embedded database migrations.\n\nEnvironment:\n  DATABASE_URL  PostgreSQL connection string (required)",
	RunE: func(cmd *cobra.Command, args []string) error {
		dbURL, err := requireEnv("DATABASE_URL")
		if err != nil {
			return err
		}
		fmt.Println("running migrations...")
		version, applied, err := database.Migrate(dbURL)
		if err != nil {
			return err
		}
		if applied {
			fmt.Printf("migrations applied (version: %d)\n", version)
		} else {
			fmt.Printf("no new migrations (current version: %d)\n", version)
		}
		return nil
	},
}

var seedTokenTTL time.Duration

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed demo data: two users, a workspace, a channel, a conversation, messages and reactions",
	Long:  "Seed demo data.\n\nEnvironment:\n  DATABASE_URL  PostgreSQL connection string (required)\n  JWT_SECRET    when set, tokens for the demo users are printed",
	RunE: func(cmd *cobra.Command, args []string) error {
		dbURL, err := requireEnv("DATABASE_URL")
		if err != nil {
			return err
		}
		return runSeed(cmd.Context(), dbURL)
	},
}

func init() {
	seedCmd.Flags().DurationVar(&seedTokenTTL, "token-ttl", 24*time.Hour, "lifetime of the printed demo tokens")
	rootCmd.AddCommand(migrateCmd, seedCmd)
}

type seedIDs struct {
	alice, bob             int64
	workspace              int64
	aliceMember, bobMember int64
	general                int64
	conversation           int64
	welcome, reply, dm     int64
}

func runSeed(ctx context.Context, dbURL string) error {
	fmt.Println("connecting to database...")
	pool, err := database.NewPostgresPool(ctx, dbURL)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer pool.Close()

	sf, err := snowflake.NewGenerator(0, 0)
	if err != nil {
		return err
	}
	next := func() int64 { return sf.Generate().Int64() }

	ids := seedIDs{
		alice: next(), bob: next(), workspace: next(),
		aliceMember: next(), bobMember: next(),
		general: next(), conversation: next(),
		welcome: next(), reply: next(), dm: next(),
	}
	one, two := ids.aliceMember, ids.bobMember
	if one > two {
		one, two = two, one
	}

	err = pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		steps := []struct {
			label string
			sql   string
			args  []any
		}{
			{"users", `INSERT INTO users (id, name, email) VALUES ($1, 'Alice', 'alice@example.com'), ($2, 'Bob', 'bob@example.com')`,
				[]any{ids.alice, ids.bob}},
			{"workspace", `INSERT INTO workspaces (id, name, owner_id, join_code) VALUES ($1, 'Demo Workspace', $2, 'demo42')`,
				[]any{ids.workspace, ids.alice}},
			{"members", `INSERT INTO members (id, workspace_id, user_id, role) VALUES ($1, $3, $4, 'admin'), ($2, $3, $5, 'member')`,
				[]any{ids.aliceMember, ids.bobMember, ids.workspace, ids.alice, ids.bob}},
			{"channel", `INSERT INTO channels (id, workspace_id, name) VALUES ($1, $2, 'general')`,
				[]any{ids.general, ids.workspace}},
			{"conversation", `INSERT INTO conversations (id, workspace_id, member_one_id, member_two_id) VALUES ($1, $2, $3, $4)`,
				[]any{ids.conversation, ids.workspace, one, two}},
			{"messages", `INSERT INTO messages (id, workspace_id, member_id, channel_id, body) VALUES ($1, $2, $3, $4, 'Welcome to the demo workspace!')`,
				[]any{ids.welcome, ids.workspace, ids.aliceMember, ids.general}},
			{"thread reply", `INSERT INTO messages (id, workspace_id, member_id, channel_id, parent_message_id, body) VALUES ($1, $2, $3, $4, $5, 'Glad to be here.')`,
				[]any{ids.reply, ids.workspace, ids.bobMember, ids.general, ids.welcome}},
			{"thread summary", `UPDATE messages SET thread_count = 1, thread_last_reply_at = now(), thread_last_author_name = 'Bob' WHERE id = $1`,
				[]any{ids.welcome}},
			{"direct message", `INSERT INTO messages (id, workspace_id, member_id, conversation_id, body) VALUES ($1, $2, $3, $4, 'Hey Bob, welcome aboard.')`,
				[]any{ids.dm, ids.workspace, ids.aliceMember, ids.conversation}},
			{"reactions", `INSERT INTO reactions (id, workspace_id, message_id, member_id, value) VALUES ($1, $3, $4, $5, '👋'), ($2, $3, $4, $6, '👋')`,
				[]any{next(), next(), ids.workspace, ids.welcome, ids.aliceMember, ids.bobMember}},
		}
		for _, s := range steps {
			fmt.Printf("creating %s...\n", s.label)
			if _, err := tx.Exec(ctx, s.sql, s.args...); err != nil {
				return fmt.Errorf("creating %s: %w", s.label, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Println("seed complete:")
	fmt.Printf("  users:        alice %d, bob %d\n", ids.alice, ids.bob)
	fmt.Printf("  workspace:    %d\n", ids.workspace)
	fmt.Printf("  channel:      #general %d\n", ids.general)
	fmt.Printf("  conversation: %d\n", ids.conversation)
	fmt.Printf("  thread:       parent message %d\n", ids.welcome)

	if secret := envOr("JWT_SECRET", ""); secret != "" {
		tokens := auth.NewTokenService(secret, seedTokenTTL)
		for _, u := range []struct {
			name string
			id   int64
		}{{"alice", ids.alice}, {"bob", ids.bob}} {
			token, err := tokens.Issue(u.id)
			if err != nil {
				return err
			}
			fmt.Printf("  token %-6s %s\n", u.name+":", token)
		}
	}
	return nil
}
