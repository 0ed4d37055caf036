package core

// scheduler.go runs the background session sweeper.
//
// Import sessions live in memory only. An operator who walks away leaves a
// session (and its staged rows) behind, so the sweeper periodically drops any
// session untouched for longer than the session TTL. Sessions with a commit
// in flight are never expired mid-insert; they are picked up on a later pass.

import (
	"context"
	"log/slog"
	"time"
)

// DefaultSweepInterval is used when StartSessionSweeper gets a non-positive interval.
const DefaultSweepInterval = time.Minute

// StartSessionSweeper expires idle sessions every interval until ctx is
// cancelled. It blocks; run it in its own goroutine.
func (s *Service) StartSessionSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}

	slog.Info("session sweeper started",
		"interval", interval.String(),
		"session_ttl", s.opts.SessionTTL.String(),
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("session sweeper stopped")
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

// sweep performs one expiry pass and returns the number of sessions removed.
func (s *Service) sweep() int {
	now := s.now()
	cutoff := now.Add(-s.opts.SessionTTL)

	var expired []*Session

	s.mu.Lock()
	for id, sess := range s.sessions {
		if !sess.idleSince().Before(cutoff) {
			continue
		}
		if st := sess.gate.State(); st == StateInserting || st == StateValidating {
			continue
		}
		delete(s.sessions, id)
		expired = append(expired, sess)
	}
	s.mu.Unlock()

	for _, sess := range expired {
		sess.events.publish(sess.event(EventExpired, now))
		sess.events.close()
	}

	if len(expired) > 0 {
		slog.Info("expired idle import sessions", "count", len(expired), "remaining", s.SessionCount())
	} else {
		slog.Debug("session sweep found nothing to expire")
	}
	return len(expired)
}
