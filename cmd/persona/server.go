package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/kalambet/persona/internal/api"
	"github.com/kalambet/persona/internal/config"
	"github.com/kalambet/persona/internal/session"
	"github.com/kalambet/persona/internal/storage"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"start"},
	Short:   "Start the persona HTTP server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		withMCP, _ := cmd.Flags().GetBool("mcp")
		ttl, _ := cmd.Flags().GetDuration("session-ttl")
		return runServer(serveOptions{mcpStdio: withMCP, sessionTTL: ttl})
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running persona server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show persona server status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the profile tool over MCP on stdin/stdout",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMCPStdio()
	},
}

func init() {
	serveCmd.Flags().Bool("mcp", false, "also serve MCP over stdin/stdout")
	serveCmd.Flags().Duration("session-ttl", 30*24*time.Hour, "prune sessions idle longer than this at startup (0 keeps all)")
}

type serveOptions struct {
	mcpStdio   bool
	sessionTTL time.Duration
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "persona.pid")
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePIDFile(path string) {
	os.Remove(path)
}

func runServer(opts serveOptions) error {
	fmt.Fprintf(os.Stderr, "persona version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	c, err := buildComponents(cfg)
	if err != nil {
		return err
	}

	// Refuse to start twice on the same port.
	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("persona is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("persona is already running on port %d", cfg.Server.Port)
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			slog.Warn("closing storage", "error", err)
		}
	}()

	if opts.sessionTTL > 0 {
		n, err := store.PruneSessions(time.Now().Add(-opts.sessionTTL))
		if err != nil {
			slog.Warn("pruning sessions", "error", err)
		} else if n > 0 {
			slog.Info("pruned idle sessions", "count", n)
		}
	}

	deps := api.Deps{
		Resolver: c.resolver,
		Source:   c.source,
		Sessions: session.NewManager(store),
		Store:    store,
		Token:    cfg.Server.Token,
	}
	if cfg.Server.ChatRPS > 0 {
		deps.ChatLimiter = rate.NewLimiter(rate.Limit(cfg.Server.ChatRPS), max(1, cfg.Server.ChatBurst))
	}
	if a, err := c.newAgent(); err != nil {
		slog.Warn("chat disabled", "reason", err)
	} else {
		deps.Agent = a
		slog.Info("chat enabled", "agent", a.Name, "provider", cfg.LLM.Provider, "model", cfg.LLM.Model)
	}
	if cfg.Server.Token == "" {
		slog.Warn("no server token configured; session listing is unauthenticated")
	}

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.NewHandler(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("persona listening", "addr", addr, "profile_url", cfg.Profile.URL)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	if opts.mcpStdio {
		mcpSrv := api.NewMCPServer(api.MCPDeps{
			Tools:    c.tools,
			Resolver: c.resolver,
			Source:   c.source,
			Version:  version,
		})
		stdioSrv := server.NewStdioServer(mcpSrv)
		g.Go(func() error {
			if err := stdioSrv.Listen(gctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("MCP stdio server error", "error", err)
			}
			return nil
		})
		slog.Info("MCP server started (stdio transport)")
	}

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func runMCPStdio() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	// stdout carries the protocol; logs must stay on stderr.
	c, err := buildComponents(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mcpSrv := api.NewMCPServer(api.MCPDeps{
		Tools:    c.tools,
		Resolver: c.resolver,
		Source:   c.source,
		Version:  version,
	})
	err = server.NewStdioServer(mcpSrv).Listen(ctx, os.Stdin, os.Stdout)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func stopServer() error {
	cfg, err := config.Load()
	if err != nil {
		printError("could not load config: %v", err)
		return err
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		printError("persona is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop persona (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to persona (PID %d)", pid)
	return nil
}

func showStatus() error {
	cfg, err := config.Load()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	serverURL := fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)
	client := &http.Client{Timeout: 2 * time.Second}

	resp, err := client.Get(serverURL + "/health")
	running := false
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			running = true
			printStatus("Server", "running on port %d", cfg.Server.Port)
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	printStatus("Profile", "%s", cfg.Profile.URL)
	printStatus("Subject", "%s", cfg.Profile.Subject)
	if cfg.LLM.APIKey != "" {
		printStatus("Model", "%s (%s)", cfg.LLM.Model, cfg.LLM.Provider)
	} else {
		printStatus("Model", "not configured")
	}

	if running {
		ac := &apiClient{baseURL: serverURL, token: cfg.Server.Token, httpClient: client}
		sessions, err := ac.listSessions(context.Background(), 100)
		if err == nil {
			printStatus("Sessions", "%s", countLabel(len(sessions), 100))
		}
	}

	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}

func countLabel(count, limit int) string {
	if count >= limit {
		return fmt.Sprintf("%d+", count)
	}
	return fmt.Sprintf("%d", count)
}
