package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/mnuel1/spacio-backend/internal/repository"
	appErrors "github.com/mnuel1/spacio-backend/pkg/errors"
)

// Resource kinds serialized by timetable writers.
const (
	ResourceRoom    = "room"
	ResourceTeacher = "teacher"
	ResourceSection = "section"
	ResourcePeriod  = "period"
)

// ResourceKey builds the lock key for a resource within a period.
func ResourceKey(resourceType, resourceID, periodID string) string {
	return fmt.Sprintf("%s:%s:%s", resourceType, resourceID, periodID)
}

// Locker serializes writers on a set of keys. The returned func releases every key.
type Locker interface {
	Lock(ctx context.Context, keys ...string) (func(), error)
}

func normaliseKeys(keys []string) []string {
	unique := lo.Without(lo.Uniq(keys), "")
	sort.Strings(unique)
	return unique
}

// LocalLocker is an in-process keyed mutex.
type LocalLocker struct {
	mu    sync.Mutex
	slots map[string]*lockSlot
}

// lockSlot is dropped from the map once no holder or waiter references it.
type lockSlot struct {
	ch   chan struct{}
	refs int
}

// NewLocalLocker constructs a LocalLocker.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{slots: make(map[string]*lockSlot)}
}

func (l *LocalLocker) join(key string) *lockSlot {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.slots[key]
	if !ok {
		s = &lockSlot{ch: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	return s
}

func (l *LocalLocker) leave(key string, s *lockSlot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
}

// Lock acquires keys in sorted order, giving up when ctx is done.
func (l *LocalLocker) Lock(ctx context.Context, keys ...string) (func(), error) {
	ordered := normaliseKeys(keys)
	held := make([]*lockSlot, 0, len(ordered))
	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			<-held[i].ch
			l.leave(ordered[i], held[i])
		}
	}
	for _, key := range ordered {
		s := l.join(key)
		select {
		case s.ch <- struct{}{}:
			held = append(held, s)
		case <-ctx.Done():
			l.leave(key, s)
			release()
			return nil, appErrors.Wrap(ctx.Err(), appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "resource is busy, try again")
		}
	}
	return sync.OnceFunc(release), nil
}

type lockStore interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (string, error)
	Renew(ctx context.Context, key, token string, ttl time.Duration) error
	Release(ctx context.Context, key, token string) error
}

// RedisLocker shares locks across API replicas. Held keys are renewed every
// ttl/3 until released.
type RedisLocker struct {
	store    lockStore
	ttl      time.Duration
	wait     time.Duration
	interval time.Duration
	logger   *zap.Logger
}

// NewRedisLocker constructs a RedisLocker.
func NewRedisLocker(store lockStore, ttl, wait time.Duration, logger *zap.Logger) *RedisLocker {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	if wait <= 0 {
		wait = 3 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisLocker{store: store, ttl: ttl, wait: wait, interval: 25 * time.Millisecond, logger: logger}
}

// Lock polls for each key until wait elapses.
func (l *RedisLocker) Lock(ctx context.Context, keys ...string) (func(), error) {
	ordered := normaliseKeys(keys)
	tokens := make(map[string]string, len(ordered))

	waitCtx, cancel := context.WithTimeout(ctx, l.wait)
	defer cancel()
	for _, key := range ordered {
		token, err := l.acquire(waitCtx, key)
		if err != nil {
			l.release(tokens)
			return nil, err
		}
		tokens[key] = token
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go l.keepAlive(tokens, stop, done)
	return sync.OnceFunc(func() {
		close(stop)
		<-done
		l.release(tokens)
	}), nil
}

func (l *RedisLocker) release(tokens map[string]string) {
	// release must outlive a cancelled request context
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	for key, token := range tokens {
		if err := l.store.Release(ctx, key, token); err != nil {
			l.logger.Warn("release lock failed", zap.String("key", key), zap.Error(err))
		}
	}
}

func (l *RedisLocker) keepAlive(tokens map[string]string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	every := l.ttl / 3
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
		ctx, cancel := context.WithTimeout(context.Background(), every)
		for key, token := range tokens {
			if err := l.store.Renew(ctx, key, token, l.ttl); err != nil {
				l.logger.Warn("renew lock failed", zap.String("key", key), zap.Error(err))
			}
		}
		cancel()
	}
}

func (l *RedisLocker) acquire(ctx context.Context, key string) (string, error) {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()
	for {
		token, err := l.store.Acquire(ctx, key, l.ttl)
		if err == nil {
			return token, nil
		}
		if !errors.Is(err, repository.ErrLockHeld) {
			return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to acquire resource lock")
		}
		select {
		case <-ctx.Done():
			return "", appErrors.Wrap(ctx.Err(), appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "resource is busy, try again")
		case <-ticker.C:
		}
	}
}
