package store

import (
	"context"
	"errors"

	"github.com/penwyp/go-claude-wrap/internal/core/model"
)

// ErrDuplicateID is returned by Insert when a row with the same id already
// exists. Callers treat it as a recoverable race signal, not a failure.
var ErrDuplicateID = errors.New("session id already exists")

// SessionRow is the persisted shape of one session. Timestamps are Unix
// milliseconds. Queries map rows into this struct at the boundary instead
// of trusting dynamic shapes.
type SessionRow struct {
	ID          string
	StartTime   int64
	EndTime     int64
	TotalTokens int64
}

// ToModel converts a persisted row to the domain entity.
func (r *SessionRow) ToModel() *model.Session {
	return &model.Session{
		ID:          r.ID,
		StartTime:   r.StartTime,
		EndTime:     r.EndTime,
		TotalTokens: r.TotalTokens,
	}
}

// Store is the CRUD contract over persisted sessions consumed by the
// session window manager.
type Store interface {
	EnsureSchema(ctx context.Context) error
	// Insert adds a new session row. Returns ErrDuplicateID when the id
	// is already taken.
	Insert(ctx context.Context, row SessionRow) error
	// FindActive returns the most recent session whose window contains
	// nowMs, or nil when there is none.
	FindActive(ctx context.Context, nowMs int64) (*SessionRow, error)
	GetByID(ctx context.Context, id string) (*SessionRow, error)
	// AddTokens increments total_tokens by delta.
	AddTokens(ctx context.Context, id string, delta int64) error
	// SetTokens overwrites total_tokens. Administrative correction path.
	SetTokens(ctx context.Context, id string, total int64) error
	CountSince(ctx context.Context, sinceMs int64) (int, error)
	SumTokensSince(ctx context.Context, sinceMs int64) (int64, error)
	ListSince(ctx context.Context, sinceMs int64) ([]SessionRow, error)
	// DeleteKeepingLatest removes every session not among the n most
	// recently started and returns the number deleted.
	DeleteKeepingLatest(ctx context.Context, n int) (int64, error)
	Close() error
}
