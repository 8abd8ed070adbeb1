// Package idempotency defines the key store behind the Idempotency-Key header.
package idempotency

import (
	"context"
	"time"
)

// Status of a key.
type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// StaleAfter is how long a pending key may stay untouched before another
// request may reclaim it.
const StaleAfter = time.Minute

// Replay is a stored response.
type Replay struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// Store persists keys.
type Store interface {
	// AcquireKey returns (nil, nil) when the caller now owns key, a Replay
	// when the operation already finished, or an IDEMPOTENCY_CONFLICT error
	// when it is in flight or the key was used for a different request.
	AcquireKey(ctx context.Context, key, userID, operation, requestHash string) (*Replay, error)
	CompleteKey(ctx context.Context, key string, statusCode int, contentType string, body []byte) error
	FailKey(ctx context.Context, key string, statusCode int, contentType string, body []byte) error
	CleanupExpired(ctx context.Context) (int64, error)
}

// Record is the stored row.
type Record struct {
	Key         string    `db:"idempotency_key"`
	UserID      string    `db:"user_id"`
	Operation   string    `db:"operation"`
	Status      Status    `db:"status"`
	RequestHash string    `db:"request_hash"`
	Response    []byte    `db:"response"`
	StatusCode  int       `db:"response_status"`
	ContentType string    `db:"response_content_type"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
	ExpiresAt   time.Time `db:"expires_at"`
}

// Replay converts a finished record into a response, defaulting missing
// status and content type.
func (r Record) Replay() *Replay {
	status := r.StatusCode
	if status == 0 {
		status = 200
	}
	ct := r.ContentType
	if ct == "" {
		ct = "application/json"
	}
	return &Replay{StatusCode: status, ContentType: ct, Body: r.Response}
}

// Matches reports whether the stored key belongs to the same request.
func (r Record) Matches(userID, operation, requestHash string) bool {
	return r.UserID == userID && r.Operation == operation && r.RequestHash == requestHash
}
