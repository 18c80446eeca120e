package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/rv/internal/analysis"
	"github.com/joescharf/rv/internal/api"
	"github.com/joescharf/rv/internal/daemon"
	"github.com/joescharf/rv/internal/files"
	"github.com/joescharf/rv/internal/review"
)

var serveForeground bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the REST API server",
	Long: `Serve starts an HTTP server exposing projects, issues, review config,
history, and review runs. By default it daemonizes; use --foreground
to run attached. Use --port to change the listen port.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if serveForeground {
			return serveRun(cmd.Context())
		}
		return serveStartRun()
	},
}

var serveStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the background API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveStopRun()
	},
}

var serveStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether the background API server is running",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveStatusRun()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.AddCommand(serveStopCmd, serveStatusCmd)

	serveCmd.Flags().BoolVar(&serveForeground, "foreground", false, "Run attached instead of daemonizing")
	serveCmd.Flags().Int("port", 7373, "Port to listen on")
	_ = viper.BindPFlag("port", serveCmd.Flags().Lookup("port"))
}

func pidFile() *daemon.PIDFile {
	return daemon.NewPIDFile(filepath.Join(configDir(), "rv-serve.pid"))
}

func serveLogPath() string {
	return filepath.Join(configDir(), "rv-serve.log")
}

// serveRun runs the API server attached to the terminal until interrupted.
func serveRun(ctx context.Context) error {
	s, err := getStore()
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	model := viper.GetString("anthropic.model")
	var orch *review.Orchestrator
	if apiKey := viper.GetString("anthropic.api_key"); apiKey != "" {
		analyzer := analysis.NewClient(apiKey, model)
		orch = review.NewOrchestrator(s, analyzer, files.NewGitSource(), logger, review.Options{
			Concurrency: viper.GetInt("review.concurrency"),
			Timeout:     viper.GetDuration("review.timeout"),
		})
	} else {
		logger.Warn("no API key configured; review runs disabled")
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", viper.GetInt("port")),
		Handler: api.NewServer(s, orch, model, logger).Router(),
	}

	ctx, stop := signal.NotifyContext(ctx, shutdownSignals()...)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("api server stopped")
	return nil
}

// serveStartRun daemonizes: re-executes rv with --foreground, detached,
// logging to the serve log file.
func serveStartRun() error {
	pf := pidFile()
	if pid, running := pf.IsRunning(); running {
		return fmt.Errorf("server already running (pid %d)", pid)
	}

	self, err := os.Executable()
	if err != nil {
		return fmt.Errorf("locate executable: %w", err)
	}

	logFile, err := os.OpenFile(serveLogPath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer logFile.Close()

	child := exec.Command(self, "serve", "--foreground",
		"--port", fmt.Sprintf("%d", viper.GetInt("port")))
	child.Stdout = logFile
	child.Stderr = logFile
	setDaemonAttrs(child)

	if err := child.Start(); err != nil {
		return fmt.Errorf("start server: %w", err)
	}
	if err := pf.WritePID(child.Process.Pid); err != nil {
		return fmt.Errorf("write PID file: %w", err)
	}

	ui.Success("Server started (pid %d) on port %d, logging to %s",
		child.Process.Pid, viper.GetInt("port"), serveLogPath())
	return nil
}

func serveStopRun() error {
	pf := pidFile()
	pid, running := pf.IsRunning()
	if !running {
		_ = pf.Remove()
		return errors.New("server not running")
	}

	if err := pf.Signal(sigTERM()); err != nil {
		return fmt.Errorf("stop server: %w", err)
	}
	_ = pf.Remove()

	ui.Success("Server stopped (pid %d)", pid)
	return nil
}

func serveStatusRun() error {
	if pid, running := pidFile().IsRunning(); running {
		ui.Success("Server running (pid %d)", pid)
		return nil
	}
	ui.Info("Server not running")
	return nil
}
