package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/barthig/Biblioteka-sub002/api/responses"
	pkgerrors "github.com/barthig/Biblioteka-sub002/pkg/errors"
	"github.com/barthig/Biblioteka-sub002/pkg/logger"
)

type rateLimiterStore interface {
	IncrWithTTL(context.Context, string, time.Duration) (int64, error)
}

// AuthRateLimitPolicy throttles one auth surface (login, register, ...)
// by source IP and by the email in the request body. A zero limit
// disables that dimension.
type AuthRateLimitPolicy struct {
	name       string
	window     time.Duration
	ipLimit    int
	emailLimit int
}

func NewAuthRateLimitPolicy(name string, window time.Duration, ipLimit, emailLimit int) AuthRateLimitPolicy {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = "auth"
	}
	return AuthRateLimitPolicy{
		name:       name,
		window:     window,
		ipLimit:    ipLimit,
		emailLimit: emailLimit,
	}
}

func (p AuthRateLimitPolicy) enabled() bool {
	return p.window > 0 && (p.ipLimit > 0 || p.emailLimit > 0)
}

// AuthRateLimit wraps a handler with sliding-window counters kept in the
// limiter store. Emails are hashed before they become Redis keys or log
// fields so credential-stuffing targets never land in plaintext.
func AuthRateLimit(policy AuthRateLimitPolicy, store rateLimiterStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !policy.enabled() || store == nil {
			return next
		}
		lim := &authLimiter{policy: policy, store: store, logg: logg}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !lim.admit(w, r) {
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type authLimiter struct {
	policy AuthRateLimitPolicy
	store  rateLimiterStore
	logg   *logger.Logger
}

// admit checks both dimensions in order. It writes the 429 (or a
// dependency error) itself and reports whether the request may proceed.
func (l *authLimiter) admit(w http.ResponseWriter, r *http.Request) bool {
	ctx := r.Context()

	ip := clientIP(r)
	if l.policy.ipLimit > 0 && ip != "" {
		key := fmt.Sprintf("rl:ip:%s:%s", l.policy.name, ip)
		ok := l.check(ctx, w, key, l.policy.ipLimit, map[string]any{"scope": "ip", "ip": ip})
		if !ok {
			return false
		}
	}

	if l.policy.emailLimit == 0 {
		return true
	}

	// The body has to be read to find the email; restore it for the
	// actual handler.
	body, err := io.ReadAll(r.Body)
	if err != nil {
		responses.WriteError(ctx, nil, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request"))
		return false
	}
	r.Body = io.NopCloser(bytes.NewReader(body))

	email := emailFromBody(body)
	if email == "" {
		return true
	}
	sum := sha256.Sum256([]byte(email))
	hash := hex.EncodeToString(sum[:])
	key := fmt.Sprintf("rl:email:%s:%s", l.policy.name, hash)
	return l.check(ctx, w, key, l.policy.emailLimit, map[string]any{"scope": "email", "email_hash": hash})
}

func (l *authLimiter) check(ctx context.Context, w http.ResponseWriter, key string, limit int, fields map[string]any) bool {
	count, err := l.store.IncrWithTTL(ctx, key, l.policy.window)
	if err != nil {
		responses.WriteError(ctx, nil, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiting"))
		return false
	}
	if count <= int64(limit) {
		return true
	}

	if l.logg != nil {
		fields["policy"] = l.policy.name
		fields["attempts"] = count
		fields["limit"] = limit
		fields["window_seconds"] = int(l.policy.window.Seconds())
		l.logg.Warn(l.logg.WithFields(ctx, fields), "auth.rate_limit.blocked")
	}
	responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "rate limit exceeded"))
	return false
}

func clientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	// Trust proxy headers first; the service sits behind a load balancer.
	if header := r.Header.Get("X-Forwarded-For"); header != "" {
		for _, part := range strings.Split(header, ",") {
			if ip := strings.TrimSpace(part); ip != "" {
				return ip
			}
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}

func emailFromBody(payload []byte) string {
	var body struct {
		Email string `json:"email"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(body.Email))
}
