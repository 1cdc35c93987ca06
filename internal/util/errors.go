// Package util provides small helpers shared by the recorder packages.
package util

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
)

// WrapError wraps an error with a descriptive operation context.
func WrapError(operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("failed to %s: %w", operation, err)
}

// Close closes c and logs a failure against what. Nil closers and
// resources that were already closed are ignored, so it is safe in defer.
func Close(c io.Closer, what string) {
	if c == nil {
		return
	}
	err := c.Close()
	if err == nil || errors.Is(err, os.ErrClosed) || errors.Is(err, net.ErrClosed) {
		return
	}
	slog.Warn("failed to close resource", "resource", what, "error", err)
}

// LogNotifyResult executes a notification function and logs its outcome.
// Errors are logged internally, so no error is returned.
func LogNotifyResult(fn func() error, notifyType string, logSuccess bool) {
	if err := fn(); err != nil {
		slog.Error("notification failed", "type", notifyType, "error", err)
		return
	}
	if logSuccess {
		slog.Info("notification sent", "type", notifyType)
	}
}
