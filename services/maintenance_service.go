package services

import (
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/mbocsi/kiosk/proto"
	"golang.org/x/crypto/bcrypt"
)

const sessionSubject = "maintenance"

// MaintenanceConfig configures the hidden trigger and unlock
type MaintenanceConfig struct {
	PasswordHash string        // bcrypt hash; empty disables unlock
	TapCount     int           // Taps needed to show the prompt
	TapWindow    time.Duration // Max gap between two taps of a sequence
	SessionTTL   time.Duration
	Secret       []byte // HS256 signing key; random if empty
}

// HashPassword hashes a maintenance password for MaintenanceConfig.
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

// MaintenanceServiceImpl implements MaintenanceService. Sessions are signed
// tokens whose IDs are tracked so Lock can revoke them before they expire.
type MaintenanceServiceImpl struct {
	cfg       MaintenanceConfig
	now       func() time.Time
	publisher Publisher

	mu       sync.Mutex
	taps     int
	lastTap  time.Time
	sessions map[string]time.Time // token ID -> expiry
}

// NewMaintenanceService creates a new maintenance service. now may be nil.
func NewMaintenanceService(cfg MaintenanceConfig, p Publisher, now func() time.Time) (*MaintenanceServiceImpl, error) {
	if cfg.TapCount < 1 {
		cfg.TapCount = 1
	}
	if len(cfg.Secret) == 0 {
		cfg.Secret = make([]byte, 32)
		if _, err := rand.Read(cfg.Secret); err != nil {
			return nil, fmt.Errorf("generate session secret: %w", err)
		}
	}
	if now == nil {
		now = time.Now
	}
	if cfg.PasswordHash == "" {
		slog.Warn("No maintenance password configured, unlock is disabled")
	}
	return &MaintenanceServiceImpl{
		cfg:       cfg,
		now:       now,
		publisher: p,
		sessions:  make(map[string]time.Time),
	}, nil
}

// Tap registers one tap on the hidden zone. A sequence restarts when the gap
// since the previous tap exceeds the window.
func (ms *MaintenanceServiceImpl) Tap() TapResult {
	ms.mu.Lock()
	now := ms.now()
	if ms.taps > 0 && now.Sub(ms.lastTap) > ms.cfg.TapWindow {
		ms.taps = 0
	}
	ms.taps++
	ms.lastTap = now

	result := TapResult{Count: ms.taps, Required: ms.cfg.TapCount}
	if ms.taps >= ms.cfg.TapCount {
		ms.taps = 0
		result.Prompt = true
	}
	ms.mu.Unlock()

	if result.Prompt {
		ms.event("prompt")
	}
	return result
}

// Unlock checks password and opens a session
func (ms *MaintenanceServiceImpl) Unlock(password string) (*Session, error) {
	if ms.cfg.PasswordHash == "" {
		return nil, ServiceError{
			Code:    ErrCodeUnauthorized,
			Message: "Maintenance access is disabled",
		}
	}
	if err := bcrypt.CompareHashAndPassword([]byte(ms.cfg.PasswordHash), []byte(password)); err != nil {
		slog.Warn("Maintenance unlock denied")
		ms.event("denied")
		return nil, ServiceError{
			Code:    ErrCodeUnauthorized,
			Message: "Incorrect password",
		}
	}

	now := ms.now()
	expires := now.Add(ms.cfg.SessionTTL)
	id := uuid.NewString()
	claims := jwt.RegisteredClaims{
		ID:        id,
		Subject:   sessionSubject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expires),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(ms.cfg.Secret)
	if err != nil {
		return nil, ServiceError{
			Code:    ErrCodeInternal,
			Message: "Failed to sign session",
			Cause:   err,
		}
	}

	ms.mu.Lock()
	ms.cleanupLocked(now)
	ms.sessions[id] = expires
	ms.mu.Unlock()

	slog.Info("Maintenance unlocked", "session", id, "expires", expires)
	ms.event("unlock")
	return &Session{Token: token, ExpiresAt: expires}, nil
}

// Authorize accepts a token from Unlock that has neither expired nor been
// locked.
func (ms *MaintenanceServiceImpl) Authorize(token string) error {
	_, err := ms.verify(token)
	return err
}

// Lock ends the session behind token
func (ms *MaintenanceServiceImpl) Lock(token string) error {
	id, err := ms.verify(token)
	if err != nil {
		return err
	}
	ms.mu.Lock()
	delete(ms.sessions, id)
	ms.mu.Unlock()

	slog.Info("Maintenance locked", "session", id)
	ms.event("lock")
	return nil
}

// Sessions returns the number of open sessions
func (ms *MaintenanceServiceImpl) Sessions() int {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.cleanupLocked(ms.now())
	return len(ms.sessions)
}

func (ms *MaintenanceServiceImpl) verify(token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ServiceError{
			Code:    ErrCodeUnauthorized,
			Message: "Maintenance session required",
		}
	}

	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return ms.cfg.Secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithSubject(sessionSubject),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(ms.now),
	)
	if err != nil {
		msg := "Invalid maintenance session"
		if errors.Is(err, jwt.ErrTokenExpired) {
			msg = "Maintenance session expired"
		}
		return "", ServiceError{
			Code:    ErrCodeUnauthorized,
			Message: msg,
			Cause:   err,
		}
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()
	expires, ok := ms.sessions[claims.ID]
	if !ok || !ms.now().Before(expires) {
		delete(ms.sessions, claims.ID)
		return "", ServiceError{
			Code:    ErrCodeUnauthorized,
			Message: "Maintenance session ended",
		}
	}
	return claims.ID, nil
}

// cleanupLocked removes expired sessions. Caller holds ms.mu.
func (ms *MaintenanceServiceImpl) cleanupLocked(now time.Time) {
	for id, expires := range ms.sessions {
		if !now.Before(expires) {
			delete(ms.sessions, id)
		}
	}
}

func (ms *MaintenanceServiceImpl) event(action string) {
	publish(ms.publisher, proto.TopicMaintenance, proto.MaintenanceEvent{
		Action:    action,
		Timestamp: ms.now().Unix(),
	})
}
