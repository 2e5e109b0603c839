package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/kalambet/persona/internal/agent"
	"github.com/kalambet/persona/internal/api"
	"github.com/kalambet/persona/internal/config"
	"github.com/kalambet/persona/internal/profile"
	"github.com/kalambet/persona/internal/resolver"
	"github.com/kalambet/persona/internal/session"
	"github.com/kalambet/persona/internal/storage"
	"github.com/kalambet/persona/internal/tui"
)

// --- ask ---

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Look up a profile field without a language model",
	Long: `Resolve a question against a freshly fetched profile document.

Examples:
  persona ask who is muskan
  persona ask skils --json
  persona ask github --remote`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := strings.Join(args, " ")
		asJSON, _ := cmd.Flags().GetBool("json")
		remote, _ := cmd.Flags().GetBool("remote")

		var reply askReply
		if remote {
			client, err := newAPIClient()
			if err != nil {
				return err
			}
			if reply, err = client.ask(cmd.Context(), query); err != nil {
				return err
			}
		} else {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			c, err := buildComponents(cfg)
			if err != nil {
				return err
			}
			res := c.resolver.Lookup(cmd.Context(), c.source, query)
			if reply, err = replyFromResult(res); err != nil {
				return err
			}
		}

		text, err := formatAnswer(reply)
		if err != nil {
			return err
		}
		if reply.Kind == resolver.KindFetchError {
			if asJSON {
				printJSON(reply)
			}
			return errors.New(text)
		}

		if asJSON {
			return printJSON(reply)
		}
		fmt.Fprintln(stdout, text)
		return nil
	},
}

func init() {
	askCmd.Flags().Bool("json", false, "print the full result as JSON")
	askCmd.Flags().Bool("remote", false, "ask the running server instead of resolving locally")
}

func printJSON(v any) error {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func replyFromResult(res resolver.Result) (askReply, error) {
	raw, err := json.Marshal(res.Payload())
	if err != nil {
		return askReply{}, fmt.Errorf("encoding result: %w", err)
	}
	return askReply{
		Kind:   res.Kind,
		Stage:  res.Stage,
		Field:  res.Field,
		Query:  res.Query,
		Result: raw,
	}, nil
}

// formatAnswer renders a reply as the single line a person would read.
func formatAnswer(r askReply) (string, error) {
	switch r.Kind {
	case resolver.KindValue:
		v, err := profile.DecodeValue(r.Result)
		if err != nil {
			return "", fmt.Errorf("decoding value: %w", err)
		}
		return v.Text(), nil
	case resolver.KindFetchError:
		var p resolver.FetchErrorPayload
		if err := json.Unmarshal(r.Result, &p); err != nil {
			return "", fmt.Errorf("decoding error: %w", err)
		}
		return p.Error + ": " + p.Details, nil
	default:
		var msg string
		if err := json.Unmarshal(r.Result, &msg); err != nil {
			return "", fmt.Errorf("decoding message: %w", err)
		}
		return msg, nil
	}
}

// --- chat ---

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Talk to the personal agent",
	Long: `Talk to the personal agent. Without --message an interactive terminal
chat opens; every turn in one run shares a thread id.

Examples:
  persona chat
  persona chat -m "what projects has she built?"
  persona chat --remote --thread 3f1c...`,
	RunE: func(cmd *cobra.Command, args []string) error {
		message, _ := cmd.Flags().GetString("message")
		remote, _ := cmd.Flags().GetBool("remote")
		thread, _ := cmd.Flags().GetString("thread")

		cfg, err := config.Load()
		if err != nil {
			return err
		}

		var sender tui.Sender
		if remote {
			client, err := newAPIClient()
			if err != nil {
				return err
			}
			sender = &remoteSender{client: client}
		} else {
			s, closeFn, err := newLocalSender(cfg)
			if err != nil {
				return err
			}
			defer closeFn()
			sender = s
		}

		threadID := session.ThreadID(thread, "")

		if message != "" {
			reply, err := sender.Send(cmd.Context(), threadID, message)
			if err != nil {
				return err
			}
			fmt.Fprintln(stdout, reply)
			return nil
		}

		app := tui.NewApp(agent.DisplayName(cfg.Profile.Subject), threadID, sender)
		_, err = tea.NewProgram(app, tea.WithAltScreen()).Run()
		return err
	},
}

func init() {
	chatCmd.Flags().StringP("message", "m", "", "send one message and print the reply")
	chatCmd.Flags().Bool("remote", false, "chat through the running server")
	chatCmd.Flags().String("thread", "", "continue an existing thread")
}

// localSender runs the agent in-process and records turns in the local
// session registry.
type localSender struct {
	agent    api.Replier
	sessions *session.Manager
}

func (s *localSender) Send(ctx context.Context, threadID, message string) (string, error) {
	reply, err := s.agent.Reply(ctx, message)
	if err != nil {
		return "", err
	}
	if _, err := s.sessions.Record(threadID, ""); err != nil {
		printWarning("%v", err)
	}
	return reply, nil
}

func newLocalSender(cfg config.Config) (*localSender, func(), error) {
	c, err := buildComponents(cfg)
	if err != nil {
		return nil, nil, err
	}
	a, err := c.newAgent()
	if err != nil {
		return nil, nil, err
	}

	closeFn := func() {}
	var registry session.Registry
	if store, err := storage.Open(cfg.Storage.DataDir); err != nil {
		printWarning("session history disabled: %v", err)
	} else {
		registry = store
		closeFn = func() { store.Close() }
	}

	return &localSender{agent: a, sessions: session.NewManager(registry)}, closeFn, nil
}

type remoteSender struct {
	client *apiClient
}

func (s *remoteSender) Send(ctx context.Context, threadID, message string) (string, error) {
	resp, err := s.client.chat(ctx, api.ChatRequest{Message: message, ThreadID: threadID})
	if err != nil {
		return "", err
	}
	return resp.Reply, nil
}

// --- keywords ---

var keywordsCmd = &cobra.Command{
	Use:   "keywords",
	Short: "Show the keyword table in match order",
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		kw, err := resolver.LoadKeywords(cfg.Profile.KeywordsFile)
		if err != nil {
			return err
		}

		if asJSON {
			return printJSON(kw.Entries())
		}
		printKeywords(kw.Entries())
		return nil
	},
}

func init() {
	keywordsCmd.Flags().Bool("json", false, "print as JSON")
}

func printKeywords(entries []resolver.Keyword) {
	width := 0
	for _, e := range entries {
		width = max(width, len(e.Phrase))
	}
	for i, e := range entries {
		fmt.Fprintf(stdout, "%2d  %-*s  %s\n", i+1, width, e.Phrase, colorize(colorCyan, e.Field))
	}
}

// --- sessions ---

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List or prune conversation threads",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		sessions, err := client.listSessions(cmd.Context(), limit)
		if err != nil {
			return err
		}
		printSessions(sessions)
		return nil
	},
}

var sessionsPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete threads idle longer than --older-than",
	RunE: func(cmd *cobra.Command, args []string) error {
		olderThan, _ := cmd.Flags().GetDuration("older-than")
		if olderThan <= 0 {
			return fmt.Errorf("--older-than must be positive")
		}

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		store, err := storage.Open(cfg.Storage.DataDir)
		if err != nil {
			return fmt.Errorf("opening storage: %w", err)
		}
		defer store.Close()

		n, err := store.PruneSessions(time.Now().Add(-olderThan))
		if err != nil {
			return err
		}
		printSuccess("Pruned %d session(s)", n)
		return nil
	},
}

func init() {
	sessionsCmd.Flags().Int("limit", 20, "maximum number of sessions to list")
	sessionsPruneCmd.Flags().Duration("older-than", 30*24*time.Hour, "idle age beyond which sessions are deleted")
	sessionsCmd.AddCommand(sessionsPruneCmd)
}

func printSessions(sessions []storage.Session) {
	if len(sessions) == 0 {
		fmt.Fprintln(stdout, "No sessions found.")
		return
	}
	for _, s := range sessions {
		fmt.Fprintf(stdout, "%s  %s  %d turn(s)\n",
			colorize(colorCyan, s.ThreadID),
			s.LastSeenAt.Local().Format(time.DateTime),
			s.Turns,
		)
	}
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		for _, k := range config.ShowAll(cfg) {
			fmt.Fprintf(stdout, "  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long:  "Set a configuration value. Valid keys: " + strings.Join(config.ValidKeys(), ", "),
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		if config.IsSecret(key) {
			printSuccess("Set %s (stored in secret store)", key)
			return nil
		}
		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
