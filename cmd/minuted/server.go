package main

import (
	"context"
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

	"github.com/minuted/minuted/internal/api"
	"github.com/minuted/minuted/internal/config"
	"github.com/minuted/minuted/internal/llm"
	"github.com/minuted/minuted/internal/storage"
	"github.com/minuted/minuted/internal/synthesis"
	"github.com/minuted/minuted/internal/transcriber"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the minuted server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running minuted server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show minuted system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		token, _ := cmd.Flags().GetString("token")
		return showStatus(token)
	},
}

func init() {
	statusCmd.Flags().String("token", "", "API key for authenticated status details")
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "minuted.pid")
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

func runServer() error {
	fmt.Fprintf(os.Stderr, "minuted version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Initialize structured logging.
	logLevel := slog.LevelInfo
	if strings.EqualFold(cfg.Log.Level, "debug") {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	// Write PID file. Check if server is already running via health endpoint.
	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("minuted is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("minuted is already running on port %d", cfg.Server.Port)
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Open storage.
	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
		}
	}()

	// Build clients and the synthesis engine.
	transcriberClient := transcriber.New(cfg.Transcriber.URL, cfg.Transcriber.FrameBytes)
	if !transcriberClient.Heartbeat(ctx) {
		slog.Warn("transcription backend not reachable; uploads will fail until it is up", "url", cfg.Transcriber.URL)
	}
	llmClient := llm.NewClient(cfg.LLM.BaseURL, cfg.LLM.APIKey)
	engine := synthesis.NewEngine(store, llmClient, cfg.Synthesis.BlockChars)

	handler := api.NewHandler(api.Deps{
		Store:        store,
		Transcriber:  transcriberClient,
		LLM:          llmClient,
		Synth:        engine,
		DefaultModel: cfg.LLM.DefaultModel,
	})

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	// MCP server on its own port (streamable HTTP transport).
	mcpSrv := api.NewMCPServer(api.MCPDeps{
		Store:        store,
		Synth:        engine,
		DefaultModel: cfg.LLM.DefaultModel,
	})
	mcpHTTP := server.NewStreamableHTTPServer(mcpSrv)
	mcpAddr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.MCPPort)
	go func() {
		slog.Info("MCP server listening", "addr", mcpAddr)
		if err := mcpHTTP.Start(mcpAddr); err != nil && err != http.ErrServerClosed {
			slog.Error("MCP server error", "error", err)
		}
	}()

	// Start server in a goroutine.
	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "minuted listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for signal or server error.
	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	// Graceful shutdown with timeout.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := mcpHTTP.Shutdown(shutdownCtx); err != nil {
		slog.Warn("MCP server shutdown", "error", err)
	}
	return srv.Shutdown(shutdownCtx)
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
		printError("minuted is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop minuted (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to minuted (PID %d)", pid)
	return nil
}

func showStatus(token string) error {
	cfg, err := config.Load()
	if err != nil {
		// Still show partial status even if config fails.
		printError("config error: %v", err)
		return nil
	}

	serverURL := fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)
	client := &apiClient{baseURL: serverURL, token: token, httpClient: &http.Client{Timeout: 2 * time.Second}}

	running := false
	resp, err := client.get(context.Background(), "/health")
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		running = true
		var health map[string]string
		if decodeJSON(resp, &health) == nil {
			printStatus("Server", "running on port %d", cfg.Server.Port)
			printStatus("Transcriber", "%s", health["transcriber"])
		}
	}

	printStatus("Model backend", "%s", cfg.LLM.BaseURL)
	printStatus("Default model", "%s", cfg.LLM.DefaultModel)

	// Session counts need an API key; shown only when one was given.
	if running && token != "" {
		metricsResp, err := client.get(context.Background(), "/v1/metrics")
		if err == nil {
			var metrics struct {
				Sessions       int `json:"sessions"`
				Transcriptions int `json:"transcriptions"`
				Summaries      int `json:"summaries"`
			}
			if decodeJSON(metricsResp, &metrics) == nil {
				printStatus("Sessions", "%d", metrics.Sessions)
				printStatus("Transcriptions", "%d", metrics.Transcriptions)
				printStatus("Summaries", "%d", metrics.Summaries)
			}
		}
	}

	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}
