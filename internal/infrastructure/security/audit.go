package security

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/smartcrop/advisor/internal/ports/outbound"
)

// AuditStatus represents the outcome of an audited action
type AuditStatus string

const (
	StatusSuccess AuditStatus = "success"
	StatusFailure AuditStatus = "failure"
)

// RiskLevel represents the risk level of an audit event
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Authentication actions
const (
	ActionSignup = "signup"
	ActionLogin  = "login"
	ActionLogout = "logout"
)

// highRiskAttempts is the number of failed logins from one address after
// which further failures are reported as high risk.
const highRiskAttempts = 3

// AuthEvent describes one authentication attempt.
type AuthEvent struct {
	Action    string
	UserID    string
	Email     string
	IPAddress string
	UserAgent string
	Success   bool
	Reason    string
}

// AuditLogger writes authentication events to a dedicated audit log and
// counts failed logins per client address.
type AuditLogger struct {
	logger *zap.Logger
	cache  outbound.CacheRepository
	window time.Duration
}

// NewAuditLogger creates a new audit logger. Failed logins are counted
// over window.
func NewAuditLogger(logger *zap.Logger, cache outbound.CacheRepository, window time.Duration) *AuditLogger {
	if window <= 0 {
		window = 15 * time.Minute
	}
	return &AuditLogger{
		logger: logger.Named("audit"),
		cache:  cache,
		window: window,
	}
}

// LogAuthentication records ev. A successful login clears the failure
// count of its address.
func (a *AuditLogger) LogAuthentication(ctx context.Context, ev AuthEvent) {
	status := StatusSuccess
	risk := RiskLow
	attempts := 0

	if ev.Success {
		if ev.Action == ActionLogin && ev.IPAddress != "" {
			if err := a.cache.Delete(ctx, failedKey(ev.IPAddress)); err != nil {
				a.logger.Warn("Failed to reset login failures", zap.Error(err))
			}
		}
	} else {
		status = StatusFailure
		risk = RiskMedium
		if ev.Action == ActionLogin && ev.IPAddress != "" {
			attempts = a.recordFailure(ctx, ev.IPAddress)
			if attempts > highRiskAttempts {
				risk = RiskHigh
			}
		}
	}

	fields := []zap.Field{
		zap.String("event_id", uuid.NewString()),
		zap.String("category", "authentication"),
		zap.String("action", ev.Action),
		zap.String("status", string(status)),
		zap.String("risk_level", string(risk)),
		zap.String("ip_address", ev.IPAddress),
		zap.String("user_agent", ev.UserAgent),
	}
	if ev.UserID != "" {
		fields = append(fields, zap.String("user_id", ev.UserID))
	}
	if ev.Email != "" {
		fields = append(fields, zap.String("email", ev.Email))
	}
	if ev.Reason != "" {
		fields = append(fields, zap.String("reason", ev.Reason))
	}
	if attempts > 0 {
		fields = append(fields, zap.Int("failed_attempts", attempts))
	}

	switch risk {
	case RiskHigh:
		a.logger.Error("Security audit event", fields...)
	case RiskMedium:
		a.logger.Warn("Security audit event", fields...)
	default:
		a.logger.Info("Security audit event", fields...)
	}
}

// FailedAttempts returns the failed logins counted for ip in the current window.
func (a *AuditLogger) FailedAttempts(ctx context.Context, ip string) int {
	raw, err := a.cache.Get(ctx, failedKey(ip))
	if err != nil {
		return 0
	}
	n, err := strconv.Atoi(string(raw))
	if err != nil {
		return 0
	}
	return n
}

// recordFailure bumps the counter for ip. The window restarts with every
// failure.
func (a *AuditLogger) recordFailure(ctx context.Context, ip string) int {
	n := a.FailedAttempts(ctx, ip) + 1
	if err := a.cache.Set(ctx, failedKey(ip), []byte(strconv.Itoa(n)), a.window); err != nil {
		a.logger.Warn("Failed to record login failure", zap.Error(err))
	}
	return n
}

func failedKey(ip string) string {
	return "audit:failed_login:" + ip
}
