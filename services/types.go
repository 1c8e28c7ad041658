package services

import (
	"time"

	"github.com/mbocsi/kiosk/proto"
)

// ArtisanInfo is an artisan card as the front-end renders it
type ArtisanInfo struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	Trade     string            `json:"trade"`
	Portrait  string            `json:"portrait"`
	Media     []proto.MediaKind `json:"media"`
	Questions int               `json:"questions"`
}

// DispatchResult reports a command handed to the OS. It is not a delivery
// confirmation.
type DispatchResult struct {
	ID         string         `json:"id"`
	Command    proto.Command  `json:"command"`
	Endpoint   proto.Endpoint `json:"endpoint"`
	Generation uint64         `json:"generation"`
	Status     string         `json:"status"`
}

// DeviceInfo is a playback device found by discovery
type DeviceInfo struct {
	Name     string         `json:"name"`
	Endpoint proto.Endpoint `json:"endpoint"`
	Info     []string       `json:"info,omitempty"`
}

type TapResult struct {
	Count    int  `json:"count"`
	Required int  `json:"required"`
	Prompt   bool `json:"prompt"` // Show the password prompt
}

// Session is an unlocked maintenance session
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// HandleInfo is the dispatcher's socket state for the status page
type HandleInfo struct {
	Name        string `json:"name"`
	Protocol    string `json:"protocol"`
	Status      string `json:"status"`
	LocalAddr   string `json:"localAddr,omitempty"`
	Generation  uint64 `json:"generation"`
	AgeSec      int64  `json:"ageSec"`
	LifetimeSec int64  `json:"lifetimeSec"`
	Binds       uint64 `json:"binds"`
	Sent        uint64 `json:"sent"`
	Failed      uint64 `json:"failed"`
	LastError   string `json:"lastError,omitempty"`
}

type StatusInfo struct {
	Endpoint proto.Endpoint `json:"endpoint"`
	Handle   HandleInfo     `json:"handle"`
	Artisans int            `json:"artisans"`
	Commands int            `json:"commands"`
	Uptime   string         `json:"uptime"`
}

// ServiceError represents structured service layer errors
type ServiceError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Cause   error  `json:"cause,omitempty"`
}

func (e ServiceError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e ServiceError) Unwrap() error {
	return e.Cause
}

// Common error codes
const (
	ErrCodeNotFound     = "NOT_FOUND"
	ErrCodeInvalidInput = "INVALID_INPUT"
	ErrCodeTimeout      = "TIMEOUT"
	ErrCodeInternal     = "INTERNAL_ERROR"
	ErrCodeUnauthorized = "UNAUTHORIZED"
	ErrCodeUnavailable  = "UNAVAILABLE"
)
