package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/mindtrace-backend/internal/domain/assessment"
	"github.com/yungbote/mindtrace-backend/internal/platform/logger"
)

// ReportMirror keeps finalized reports outside process memory so a result
// stays readable after the session itself has expired.
type ReportMirror interface {
	Put(ctx context.Context, rec MirroredReport, ttl time.Duration) error
	Get(ctx context.Context, sessionID string) (MirroredReport, error)
	Close() error
}

// MirroredReport pairs a report with the digest of the token that owns the
// session. The raw token never leaves the process.
type MirroredReport struct {
	Owner  string                  `json:"owner"`
	Report *assessment.FinalReport `json:"report"`
}

// ErrReportNotFound is returned by Get on a cache miss.
var ErrReportNotFound = errors.New("report not mirrored")

type reportMirror struct {
	log    *logger.Logger
	rdb    *goredis.Client
	prefix string
}

func NewReportMirror(log *logger.Logger, addr, prefix string) (ReportMirror, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}
	if prefix = strings.TrimSpace(prefix); prefix == "" {
		prefix = "mindtrace:report:"
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &reportMirror{
		log:    log.With("service", "RedisReportMirror"),
		rdb:    rdb,
		prefix: prefix,
	}, nil
}

func (m *reportMirror) key(sessionID string) string { return m.prefix + sessionID }

func (m *reportMirror) Put(ctx context.Context, rec MirroredReport, ttl time.Duration) error {
	if m == nil || m.rdb == nil {
		return fmt.Errorf("redis report mirror not initialized")
	}
	if rec.Report == nil {
		return nil
	}
	if rec.Owner == "" {
		return fmt.Errorf("report %s has no owner", rec.Report.SessionID)
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return m.rdb.Set(ctx, m.key(rec.Report.SessionID), raw, ttl).Err()
}

func (m *reportMirror) Get(ctx context.Context, sessionID string) (MirroredReport, error) {
	if m == nil || m.rdb == nil {
		return MirroredReport{}, fmt.Errorf("redis report mirror not initialized")
	}
	raw, err := m.rdb.Get(ctx, m.key(sessionID)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return MirroredReport{}, ErrReportNotFound
	}
	if err != nil {
		return MirroredReport{}, err
	}
	var rec MirroredReport
	if err := json.Unmarshal(raw, &rec); err != nil {
		m.log.Warn("report mirror decode failed", "session_id", sessionID, "error", err)
		return MirroredReport{}, err
	}
	// entries without an owner cannot be authorized
	if rec.Report == nil || rec.Owner == "" {
		return MirroredReport{}, ErrReportNotFound
	}
	return rec, nil
}

func (m *reportMirror) Close() error {
	if m == nil || m.rdb == nil {
		return nil
	}
	return m.rdb.Close()
}
