package out

import (
	"context"
	"errors"
	"time"

	"ops_server/core/domain"
)

// ErrLockHeld is returned by RunbookLocker when another holder owns the lock.
var ErrLockHeld = errors.New("lock already held")

// TemplateCache caches the active template list between generations.
type TemplateCache interface {
	// GetTemplates returns (nil, false, nil) on a miss.
	GetTemplates(ctx context.Context) ([]domain.TaskTemplate, bool, error)
	SetTemplates(ctx context.Context, templates []domain.TaskTemplate, ttl time.Duration) error
	InvalidateTemplates(ctx context.Context) error
}

// RunbookLocker serialises regeneration per staff member across processes.
type RunbookLocker interface {
	// Acquire returns a release func, or ErrLockHeld if the key is taken.
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}
