package gateway

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/soyeahso/actiongw/internal/config"
	"github.com/soyeahso/actiongw/internal/policy"
)

// Auth modes.
const (
	AuthModeNone  = "none"
	AuthModeToken = "token"
)

// AuthResult is the outcome of an authentication attempt.
type AuthResult struct {
	OK     bool   `json:"ok"`
	Method string `json:"method,omitempty"` // "token" | "none"
	Reason string `json:"reason,omitempty"`
}

// ResolvedAuth holds the resolved auth configuration for the gateway.
type ResolvedAuth struct {
	Mode  string
	Token string
}

// ResolveAuth resolves authentication credentials from config and environment.
// Precedence: config value → env variable → empty.
func ResolveAuth(cfg config.GatewayAuth) ResolvedAuth {
	auth := ResolvedAuth{Mode: cfg.Mode, Token: cfg.Token}
	if auth.Token == "" {
		auth.Token = os.Getenv("ACTIONGW_GATEWAY_TOKEN")
	}

	if auth.Mode == "" {
		if auth.Token != "" {
			auth.Mode = AuthModeToken
		} else {
			auth.Mode = AuthModeNone
		}
	}
	return auth
}

// Authorize checks a presented token against the resolved server auth.
func Authorize(serverAuth ResolvedAuth, token string) AuthResult {
	switch serverAuth.Mode {
	case AuthModeNone:
		return AuthResult{OK: true, Method: AuthModeNone}

	case AuthModeToken:
		if serverAuth.Token == "" {
			return AuthResult{OK: false, Reason: "server token not configured"}
		}
		if token == "" {
			return AuthResult{OK: false, Reason: "token required"}
		}
		if !safeEqual(token, serverAuth.Token) {
			return AuthResult{OK: false, Reason: "token_mismatch"}
		}
		return AuthResult{OK: true, Method: AuthModeToken}

	default:
		return AuthResult{OK: false, Reason: "unknown auth mode: " + serverAuth.Mode}
	}
}

// safeEqual performs a constant-time string comparison.
// It avoids early-return on length mismatch to prevent leaking secret length via timing.
func safeEqual(a, b string) bool {
	lenMatch := subtle.ConstantTimeEq(int32(len(a)), int32(len(b)))
	cmp := subtle.ConstantTimeCompare([]byte(a), []byte(b))
	return subtle.ConstantTimeSelect(lenMatch, cmp, 0) == 1
}

// Failed authentication attempts allowed per host inside the window.
var authFailureRate = &policy.Rate{Window: 5 * time.Minute, MaxCalls: 10}

// authThrottle blocks hosts that keep failing authentication.
type authThrottle struct {
	limiter *policy.Limiter
}

func newAuthThrottle() *authThrottle {
	return &authThrottle{limiter: policy.NewLimiter()}
}

func (a *authThrottle) allow(remoteAddr string) bool {
	return a.limiter.Peek(throttleKey(remoteAddr), authFailureRate).Allowed
}

func (a *authThrottle) recordFailure(remoteAddr string) {
	a.limiter.Allow(throttleKey(remoteAddr), authFailureRate)
}

func throttleKey(remoteAddr string) string {
	host, _, _ := net.SplitHostPort(remoteAddr)
	if host == "" {
		host = remoteAddr
	}
	return "auth:" + host
}

// CSRF token errors.
var (
	ErrInvalidCSRF = errors.New("invalid csrf token")
	ErrExpiredCSRF = errors.New("csrf token expired")
)

// CSRFIssuer signs and verifies HS256 CSRF tokens bound to a session id.
type CSRFIssuer struct {
	secret []byte
	now    func() time.Time
}

// NewCSRFIssuer creates an issuer with the given secret.
func NewCSRFIssuer(secret string) *CSRFIssuer {
	return &CSRFIssuer{secret: []byte(secret), now: time.Now}
}

// Issue returns a token for sessionID that expires after ttl.
func (c *CSRFIssuer) Issue(sessionID string, ttl time.Duration) (string, error) {
	now := c.now()
	claims := jwt.MapClaims{
		"sub": sessionID,
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
}

// Verify checks that token is valid and was issued for sessionID.
func (c *CSRFIssuer) Verify(token, sessionID string) error {
	if token == "" {
		return fmt.Errorf("%w: missing", ErrInvalidCSRF)
	}
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return c.secret, nil
	}, jwt.WithTimeFunc(c.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ErrExpiredCSRF
		}
		return fmt.Errorf("%w: %v", ErrInvalidCSRF, err)
	}
	if !parsed.Valid {
		return ErrInvalidCSRF
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return ErrInvalidCSRF
	}
	sub, _ := claims["sub"].(string)
	if sub == "" || !safeEqual(sub, sessionID) {
		return fmt.Errorf("%w: session mismatch", ErrInvalidCSRF)
	}
	return nil
}
