package logger

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"
)

// instanceID names this process in aggregated logs: host and pid, plus a
// short random suffix so restarts reusing a pid stay distinct.
func instanceID(configured string) string {
	if configured != "" {
		return configured
	}
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "unknown"
	}
	return fmt.Sprintf("%s-%d-%s", host, os.Getpid(), uuid.NewString()[:8])
}

// baseAttrs are attached to every record. version is left out when unset.
func baseAttrs(cfg Config) []slog.Attr {
	attrs := make([]slog.Attr, 0, 4)
	attrs = append(attrs,
		slog.String("service", cfg.Service),
		slog.String("env", string(cfg.Env)),
		slog.String("instance_id", cfg.InstanceID),
	)
	if cfg.Version != "" {
		attrs = append(attrs, slog.String("version", cfg.Version))
	}
	return attrs
}
