package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/harryheman/slack-clone/internal/auth"
	"github.com/harryheman/slack-clone/internal/client"
	"github.com/harryheman/slack-clone/internal/models"
	"github.com/harryheman/slack-clone/internal/mutation"
	"github.com/harryheman/slack-clone/internal/pager"
	"github.com/harryheman/slack-clone/internal/timeline"
	"github.com/spf13/cobra"
)

var (
	serverURL string
	apiToken  string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", envOr("SERVER_URL", "http://localhost:8080"), "server base URL (env SERVER_URL)")
	rootCmd.PersistentFlags().StringVar(&apiToken, "token", envOr("SLACKCLONE_TOKEN", ""), "bearer token (env SLACKCLONE_TOKEN)")

	tokenCmd.Flags().Int64Var(&tokenUser, "user", 0, "user id to mint a token for (required)")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "token lifetime")
	_ = tokenCmd.MarkFlagRequired("user")

	addScopeFlags(historyCmd, &historyScope)
	historyCmd.Flags().IntVar(&historyLimit, "limit", pager.DefaultPageSize, "page size")
	historyCmd.Flags().BoolVar(&historyAll, "all", false, "page until the scope is exhausted")
	historyCmd.Flags().BoolVar(&historyWatch, "watch", false, "keep refreshing and reprint on change")
	historyCmd.Flags().DurationVar(&historyInterval, "interval", 10*time.Second, "refresh interval for --watch")
	historyCmd.Flags().DurationVar(&historyCompact, "compact", timeline.DefaultCompactionThreshold, "compaction threshold")

	reactCmd.Flags().Int64Var(&reactMessage, "message", 0, "message id (required)")
	reactCmd.Flags().StringVar(&reactValue, "value", "", "reaction value, e.g. an emoji (required)")
	_ = reactCmd.MarkFlagRequired("message")
	_ = reactCmd.MarkFlagRequired("value")

	addScopeFlags(sendCmd, &sendScope)
	sendCmd.Flags().StringVar(&sendImage, "image", "", "storage key of an uploaded image")

	rootCmd.AddCommand(healthCmd, tokenCmd, historyCmd, reactCmd, sendCmd)
}

func addScopeFlags(cmd *cobra.Command, s *models.Scope) {
	cmd.Flags().Int64Var(&s.ChannelID, "channel", 0, "channel id")
	cmd.Flags().Int64Var(&s.ConversationID, "conversation", 0, "conversation id")
	cmd.Flags().Int64Var(&s.ParentMessageID, "thread", 0, "parent message id of a thread")
}

func apiClient() (*client.Client, error) {
	if apiToken == "" {
		return nil, errors.New("a token is required: pass --token or set SLACKCLONE_TOKEN")
	}
	return client.New(serverURL, apiToken), nil
}

// explain adds a retry hint to transient failures.
func explain(err error) error {
	if client.IsTransient(err) {
		return fmt.Errorf("%w (temporary, try again)", err)
	}
	return err
}

// --- health ---

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check that the server and its stores are reachable",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
		defer cancel()
		fmt.Printf("checking %s/health ...\n", serverURL)
		if err := client.New(serverURL, "").Health(ctx); err != nil {
			return explain(err)
		}
		fmt.Println("server is healthy")
		return nil
	},
}

// --- token ---

var (
	tokenUser int64
	tokenTTL  time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a bearer token for a user (development only)",
	Long:  "Mint a bearer token for a user.\n\nEnvironment:\n  JWT_SECRET  signing secret shared with the server (required)",
	RunE: func(cmd *cobra.Command, args []string) error {
		secret, err := requireEnv("JWT_SECRET")
		if err != nil {
			return err
		}
		token, err := auth.NewTokenService(secret, tokenTTL).Issue(tokenUser)
		if err != nil {
			return err
		}
		fmt.Println(token)
		return nil
	},
}

// --- history ---

var (
	historyScope    models.Scope
	historyLimit    int
	historyAll      bool
	historyWatch    bool
	historyInterval time.Duration
	historyCompact  time.Duration
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Print the messages of a channel, conversation or thread by day",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := historyScope.Validate(); err != nil {
			return err
		}
		c, err := apiClient()
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		p := pager.New(c, historyScope, historyLimit)
		if err := p.Load(ctx); err != nil {
			return explain(err)
		}
		for historyAll && p.CanLoadMore() {
			if err := p.LoadMore(ctx); err != nil {
				return explain(err)
			}
		}
		printHistory(p.Results(), p.State())

		if !historyWatch {
			return nil
		}
		return watchHistory(ctx, c, p)
	},
}

// watchHistory refreshes on a timer and on live events until interrupted.
func watchHistory(ctx context.Context, c *client.Client, p *pager.Pager) error {
	notify := make(chan struct{}, 1)
	go func() {
		err := c.Subscribe(ctx, historyScope, func(ev client.Event) {
			slog.Debug("live event", "event", ev.Name, "seq", ev.Sequence)
			select {
			case notify <- struct{}{}:
			default:
			}
		})
		if err != nil && ctx.Err() == nil {
			slog.Warn("live updates unavailable, polling only", "error", err)
		}
	}()

	err := p.Watch(ctx, historyInterval, notify, func(results []models.MessageView) {
		fmt.Println("---")
		printHistory(results, p.State())
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func printHistory(results []models.MessageView, state pager.State) {
	now := time.Now()
	for _, b := range timeline.Group(results, historyCompact, time.Local) {
		fmt.Printf("== %s ==\n", timeline.DateLabel(b.DateKey, now))
		for _, e := range b.Entries {
			fmt.Println(formatEntry(e))
		}
	}
	if state == pager.StateCanLoadMore {
		fmt.Println("(older messages available, use --all)")
	}
}

func formatEntry(e timeline.Entry) string {
	m := e.Message
	var b strings.Builder
	if e.Compact {
		b.WriteString("        ")
	} else {
		fmt.Fprintf(&b, "[%s] %s: ", m.CreatedAt.In(time.Local).Format("15:04"), m.AuthorName)
	}
	b.WriteString(m.Body)
	if m.UpdatedAt != nil {
		b.WriteString(" (edited)")
	}
	if m.Image != nil {
		b.WriteString(" [image]")
	}
	for _, r := range m.Reactions {
		fmt.Fprintf(&b, " %s %d", r.Value, r.Count)
	}
	if m.Thread.Count > 0 {
		fmt.Fprintf(&b, "  ↳ %d replies", m.Thread.Count)
	}
	fmt.Fprintf(&b, "  #%d", m.ID)
	return b.String()
}

// --- react ---

func logTransitions(name string, s mutation.Status) {
	slog.Debug("mutation", "name", name, "status", s)
}

var (
	reactMessage int64
	reactValue   string
)

var reactCmd = &cobra.Command{
	Use:   "react",
	Short: "Toggle a reaction on a message",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := apiClient()
		if err != nil {
			return err
		}
		toggle := mutation.New("toggle_reaction", c.ToggleReaction, logTransitions)

		_, err = toggle.Mutate(cmd.Context(), client.ToggleInput{MessageID: reactMessage, Value: reactValue},
			mutation.OnSuccess(func(r models.ToggleResult) {
				if r.Added {
					fmt.Printf("added %s (reaction %d)\n", reactValue, r.ReactionID)
				} else {
					fmt.Printf("removed %s (reaction %d)\n", reactValue, r.ReactionID)
				}
			}),
			mutation.ThrowError[models.ToggleResult](),
		)
		return explain(err)
	},
}

// --- send ---

var (
	sendScope models.Scope
	sendImage string
)

var sendCmd = &cobra.Command{
	Use:   "send [flags] <body>",
	Short: "Send a message to a channel, conversation or thread",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := apiClient()
		if err != nil {
			return err
		}
		in := client.SendMessageInput{Scope: sendScope, Body: strings.Join(args, " ")}
		if sendImage != "" {
			in.Image = &sendImage
		}
		return sendMessage(cmd.Context(), c, in, os.Stdout)
	},
}

// sendMessage posts in through a MutationGateway and reports the new id.
func sendMessage(ctx context.Context, c *client.Client, in client.SendMessageInput, w io.Writer) error {
	send := mutation.New("send_message", c.SendMessage, logTransitions)
	_, err := send.Mutate(ctx, in,
		mutation.OnSuccess(func(v *models.MessageView) {
			fmt.Fprintf(w, "sent message %d\n", v.ID)
		}),
		mutation.ThrowError[*models.MessageView](),
	)
	return explain(err)
}
