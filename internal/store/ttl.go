package store

import (
	"context"
	"log/slog"
	"time"
)

// CleanupCallback is called for every session removed by the TTL worker,
// after it is deleted from the store.
type CleanupCallback func(key SessionKey)

// StartTTLWorker runs a background goroutine that periodically deletes
// sessions idle for longer than ttl.
func StartTTLWorker(ctx context.Context, repo Repository, interval, ttl time.Duration, onCleanup CleanupCallback) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		slog.Info("TTL worker started", "interval", interval, "ttl", ttl)

		for {
			select {
			case <-ticker.C:
				SweepExpired(ctx, repo, ttl, onCleanup)
			case <-ctx.Done():
				slog.Info("TTL worker shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

// SweepExpired deletes every expired session once and returns how many were
// removed.
func SweepExpired(ctx context.Context, repo Repository, ttl time.Duration, onCleanup CleanupCallback) int {
	expired, err := repo.ExpiredSessions(ctx, ttl)
	if err != nil {
		slog.Error("TTL worker failed to get expired sessions", "error", err)
		return 0
	}
	if len(expired) == 0 {
		return 0
	}

	slog.Info("TTL worker found expired sessions", "count", len(expired))

	cleaned := 0
	for _, key := range expired {
		if err := repo.DeleteSession(ctx, key); err != nil {
			if ctx.Err() != nil {
				slog.Debug("TTL worker: context canceled, cleanup incomplete", "owner_id", key.OwnerID, "session_id", key.SessionID)
				return cleaned
			}
			slog.Warn("TTL worker failed to delete session after retries",
				"error", err,
				"owner_id", key.OwnerID,
				"session_id", key.SessionID)
			continue
		}
		cleaned++
		if onCleanup != nil {
			onCleanup(key)
		}
	}

	slog.Info("TTL worker cleanup completed", "cleaned", cleaned)
	return cleaned
}
