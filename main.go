// Package main implements a hold-to-talk recorder: a web page with a single
// button that records the microphone for as long as it is held.
//
// Usage:
//
//	talkrec [-config path/to/config.json]
//
// If -config is not specified, talkrec looks for config.json in the same
// directory as the binary.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/oszuidwest/zwfm-talkrec/internal/capture"
	"github.com/oszuidwest/zwfm-talkrec/internal/config"
	"github.com/oszuidwest/zwfm-talkrec/internal/logging"
	"github.com/oszuidwest/zwfm-talkrec/internal/notify"
	"github.com/oszuidwest/zwfm-talkrec/internal/recording"
	"github.com/oszuidwest/zwfm-talkrec/internal/session"
	"github.com/oszuidwest/zwfm-talkrec/internal/ui"
	"github.com/oszuidwest/zwfm-talkrec/internal/util"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (default: config.json next to binary)")
	showVersion := flag.Bool("version", false, "Print version information and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(versionString())
		return
	}

	if *configPath == "" {
		execPath, err := os.Executable()
		if err != nil {
			slog.Error("failed to get executable path", "error", err)
			os.Exit(1)
		}
		*configPath = filepath.Join(filepath.Dir(execPath), "config.json")
	}

	slog.Info("using config file", "path", *configPath)

	cfg := config.New(*configPath)
	if err := cfg.Load(); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	snap := cfg.Snapshot()
	logCloser := logging.Setup(logging.Options{
		File:       snap.LogFile,
		Level:      snap.LogLevel,
		MaxSizeMB:  snap.LogMaxSizeMB,
		MaxBackups: snap.LogMaxBackups,
	})
	defer util.Close(logCloser, "log file")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	recordingsDir := session.RecordingDir(snap.StorageRoot)
	notifier := notify.NewRecordingNotifier(cfg)

	screen := ui.NewScreen()
	ctrl := session.New(session.Options{
		Dir:         recordingsDir,
		Device:      cfg.AudioInput,
		NewRecorder: capture.NewFFmpegFactory(),
		UI:          screen,
		Listener:    notifier,
	})
	screen.Start(ctrl)

	cleanup := recording.NewCleanup(recordingsDir, cfg.RetentionDays)
	cleanup.Start()

	srv := NewServer(cfg, screen, ctrl.State, notifier.TestTriggers(), NewVersionChecker(ctx))
	httpServer := srv.Start()

	slog.Info("ready", "recordings_dir", recordingsDir)

	<-ctx.Done()
	stop()

	slog.Info("shutting down")

	// Shut down HTTP server.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	// Closing the screen discards pending recording requests; a capture
	// still running is released by the worker.
	screen.Close()
	ctrl.Wait()
	cleanup.Stop()
	notifier.Wait()

	slog.Info("shutdown complete")
}
