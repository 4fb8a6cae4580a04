// Package cache реализует cache-aside поверх Redis или памяти процесса.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// Backend — хранилище сериализованных значений с TTL.
type Backend interface {
	// Get возвращает значение и признак попадания.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// Aside читает значения из кэша, а при промахе загружает их один раз на ключ,
// даже если промахнулись несколько запросов одновременно.
// Загрузка, начатая до Invalidate, не записывает результат в кэш.
type Aside[T any] struct {
	backend Backend
	ttl     time.Duration
	group   singleflight.Group
	logger  *log.Entry

	mu          sync.Mutex
	generations map[string]uint64
}

// NewAside создаёт cache-aside обёртку. Ошибки backend не ломают чтение: значение берётся из loader.
func NewAside[T any](backend Backend, ttl time.Duration, logger *log.Entry) *Aside[T] {
	if logger == nil {
		logger = log.WithField("component", "cache")
	}
	return &Aside[T]{backend: backend, ttl: ttl, logger: logger, generations: make(map[string]uint64)}
}

// Get возвращает закэшированное значение либо результат load.
func (a *Aside[T]) Get(ctx context.Context, key string, load func(ctx context.Context) (T, error)) (T, error) {
	if value, ok := a.lookup(ctx, key); ok {
		return value, nil
	}

	result, err, _ := a.group.Do(key, func() (interface{}, error) {
		if value, ok := a.lookup(ctx, key); ok {
			return value, nil
		}
		gen := a.generation(key)
		fresh, err := load(ctx)
		if err != nil {
			return fresh, err
		}
		if a.generation(key) != gen {
			return fresh, nil
		}
		a.store(ctx, key, fresh)
		// Invalidate мог пройти между проверкой и записью.
		if a.generation(key) != gen {
			a.drop(ctx, key)
		}
		return fresh, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result.(T), nil
}

// Invalidate удаляет ключи; вызывается после каждой записи в источник.
func (a *Aside[T]) Invalidate(ctx context.Context, keys ...string) {
	a.mu.Lock()
	for _, key := range keys {
		a.generations[key]++
		a.group.Forget(key)
	}
	a.mu.Unlock()

	a.drop(ctx, keys...)
}

func (a *Aside[T]) generation(key string) uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.generations[key]
}

func (a *Aside[T]) drop(ctx context.Context, keys ...string) {
	if err := a.backend.Delete(ctx, keys...); err != nil {
		a.logger.WithError(err).WithField("keys", keys).Warn("cache invalidation failed")
	}
}

func (a *Aside[T]) lookup(ctx context.Context, key string) (T, bool) {
	var value T
	raw, ok, err := a.backend.Get(ctx, key)
	if err != nil {
		a.logger.WithError(err).WithField("key", key).Warn("cache read failed")
		return value, false
	}
	if !ok {
		return value, false
	}
	if err := json.Unmarshal(raw, &value); err != nil {
		a.logger.WithError(err).WithField("key", key).Warn("cache entry is corrupted")
		return value, false
	}
	return value, true
}

func (a *Aside[T]) store(ctx context.Context, key string, value T) {
	raw, err := json.Marshal(value)
	if err != nil {
		a.logger.WithError(fmt.Errorf("marshal cache entry: %w", err)).WithField("key", key).Warn("cache write skipped")
		return
	}
	if err := a.backend.Set(ctx, key, raw, a.ttl); err != nil {
		a.logger.WithError(err).WithField("key", key).Warn("cache write failed")
	}
}
