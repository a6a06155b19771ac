// Package main provides the opsagent CLI entry point.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/spf13/cobra"

	"github.com/jewelryops/opsagent/compress"
	"github.com/jewelryops/opsagent/config"
	"github.com/jewelryops/opsagent/engine"
	"github.com/jewelryops/opsagent/logging"
	"github.com/jewelryops/opsagent/oracle"
	anthropicoracle "github.com/jewelryops/opsagent/oracle/anthropic"
	openaioracle "github.com/jewelryops/opsagent/oracle/openai"
	"github.com/jewelryops/opsagent/providers"
	"github.com/jewelryops/opsagent/server"
	"github.com/jewelryops/opsagent/session"
	"github.com/jewelryops/opsagent/tool"
)

func main() {
	if err := config.LoadDotenv(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to load .env file: %v\n", err)
	}

	rootCmd := &cobra.Command{
		Use:   "opsagent",
		Short: "Tool-orchestrating support assistant for jewelry retail operations",
		Long: `opsagent runs a conversational support assistant over business records
(customers, orders, inventory, notes). Read-only lookups execute freely;
mutating operations are held for explicit confirmation.`,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(chatCmd())
	rootCmd.AddCommand(toolsCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the websocket chat server",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := config.New()
			if err != nil {
				return err
			}
			logger := logging.New(&logging.Config{
				Level:  logging.ParseLevel(settings.Log.Level),
				Format: settings.Log.Format,
			})

			journal, err := session.OpenSQLiteJournal(settings.Server.JournalPath, logger)
			if err != nil {
				return fmt.Errorf("open journal: %w", err)
			}
			defer journal.Close()

			e, store, err := buildEngine(settings, logger, journal)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if ttl := settings.Loop.SessionTTL; ttl > 0 {
				go evictLoop(ctx, store, ttl, logger)
			}

			srv := server.New(e, func(o *server.Options) {
				o.Addr = settings.Server.ListenAddr
				o.Logger = logger
			})
			errCh := make(chan error, 1)
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			logger.Info("server.shutting_down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
}

func chatCmd() *cobra.Command {
	var sessionID string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive console session",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := config.New()
			if err != nil {
				return err
			}
			logger := logging.New(&logging.Config{
				Level:  logging.ParseLevel(settings.Log.Level),
				Format: settings.Log.Format,
				Output: os.Stderr,
			})

			e, _, err := buildEngine(settings, logger, nil)
			if err != nil {
				return err
			}
			if sessionID == "" {
				sessionID = "console"
			}
			return runConsole(cmd.Context(), e, sessionID)
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "Session ID to resume")
	return cmd
}

func toolsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "List available tools",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := tool.NewRegistry(nil)
			if err := providers.RegisterAll(reg, providers.NewStore()); err != nil {
				return err
			}
			for _, desc := range reg.DescribeAll() {
				kind := "read-only"
				if desc.Mutating {
					kind = "mutating "
				}
				fmt.Printf("%-22s %s  %s\n", desc.Name, kind, desc.Description)
			}
			return nil
		},
	}
}

// buildEngine assembles the store, tool registry, oracle, and engine from
// settings. The journal may be nil for ephemeral runs.
func buildEngine(settings config.Settings, logger logging.Logger, journal session.Journal) (*engine.Engine, *session.InMemoryStore, error) {
	store := session.NewInMemoryStore(func(o *session.StoreOptions) {
		o.Journal = journal
		o.Logger = logger
	})
	if j, ok := journal.(*session.SQLiteJournal); ok && j != nil {
		sessions, err := j.Restore()
		if err != nil {
			return nil, nil, fmt.Errorf("restore sessions: %w", err)
		}
		for _, sess := range sessions {
			store.Load(sess)
		}
		logger.Info("sessions.restored", "count", len(sessions))
	}

	reg := tool.NewRegistry(logger)
	if err := providers.RegisterAll(reg, providers.NewStore()); err != nil {
		return nil, nil, fmt.Errorf("register tools: %w", err)
	}

	o, err := buildOracle(settings)
	if err != nil {
		return nil, nil, err
	}

	e := engine.New(o, func(opts *engine.Options) {
		opts.Config = engine.Config{
			StepBudget:         settings.Loop.StepBudget,
			CompressAfterTurns: settings.Loop.CompressAfterTurns,
			CompressAfterSteps: settings.Loop.CompressAfterSteps,
			RecentTurnWindow:   settings.Loop.RecentTurnWindow,
			MaxConcurrentTurns: settings.Loop.MaxConcurrentTurns,
		}
		opts.Store = store
		opts.Registry = reg
		opts.Logger = logger
		if settings.Oracle.Provider == "mock" {
			opts.Compressor = compress.NewExtractive()
		}
	})
	return e, store, nil
}

func buildOracle(settings config.Settings) (oracle.Oracle, error) {
	cfg := settings.Oracle
	switch cfg.Provider {
	case "anthropic":
		return anthropicoracle.New(func(o *anthropicoracle.Options) {
			o.Model = anthropicsdk.Model(cfg.Model)
			o.Temperature = cfg.Temperature
			o.MaxTokens = cfg.MaxTokens
			o.APIKey = cfg.APIKey
		}), nil
	case "openai":
		var clientOpts []option.RequestOption
		if cfg.APIKey != "" {
			clientOpts = append(clientOpts, option.WithAPIKey(cfg.APIKey))
		}
		client := openaisdk.NewClient(clientOpts...)
		return openaioracle.NewFromClient(&client, func(o *openaioracle.Options) {
			o.Model = cfg.Model
			o.Temperature = cfg.Temperature
			o.MaxCompletionTokens = cfg.MaxTokens
		}), nil
	case "mock":
		return oracle.NewMock(), nil
	default:
		return nil, fmt.Errorf("unknown oracle provider %q", cfg.Provider)
	}
}

// evictLoop drops sessions idle past maxIdle. The sweep interval is coarse;
// eviction precision does not matter here.
func evictLoop(ctx context.Context, store *session.InMemoryStore, maxIdle time.Duration, logger logging.Logger) {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := store.EvictIdle(maxIdle); n > 0 {
				logger.Info("sessions.evicted", "count", n)
			}
		}
	}
}

func runConsole(ctx context.Context, e *engine.Engine, sessionID string) error {
	fmt.Println("opsagent console. Type 'exit' to quit.")
	scanner := bufio.NewScanner(os.Stdin)
	var pending bool

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			return nil
		}

		var (
			events <-chan engine.Event
			err    error
		)
		if pending {
			approve, ok := parseYesNo(line)
			if !ok {
				fmt.Println("A confirmation is pending. Please answer yes or no.")
				continue
			}
			events, err = e.SubmitConfirmation(ctx, sessionID, approve)
		} else {
			events, err = e.SubmitMessage(ctx, sessionID, line)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}

		pending = false
		for ev := range events {
			switch ev.Type {
			case engine.EventToken:
				fmt.Print(ev.Token)
			case engine.EventToolCall:
				fmt.Fprintf(os.Stderr, "[tool: %s]\n", ev.Tool)
			case engine.EventError:
				fmt.Fprintf(os.Stderr, "error: %s\n", ev.Err)
			case engine.EventDone:
				fmt.Println()
				if ev.Pending != nil {
					pending = true
					fmt.Printf("Confirm %s with arguments %s? (yes/no)\n",
						ev.Pending.Tool, string(ev.Pending.Arguments))
				}
			}
		}
	}
}

func parseYesNo(line string) (approve, ok bool) {
	switch strings.ToLower(line) {
	case "y", "yes", "approve", "ok":
		return true, true
	case "n", "no", "reject", "cancel":
		return false, true
	}
	return false, false
}
