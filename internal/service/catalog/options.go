// Package catalog содержит сценарии работы с клиентами и товарами.
package catalog

import (
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/sales/internal/cache"
	"github.com/vladislavdragonenkov/sales/internal/domain"
)

// Options настраивает сервисы каталога.
type Options struct {
	Clock  func() time.Time
	NewID  func() string
	Logger *log.Entry
	// ProductCache кэширует список товаров; nil отключает кэш.
	ProductCache *cache.Aside[[]domain.Product]
}

// Option изменяет Options.
type Option func(*Options)

// WithClock задаёт источник времени.
func WithClock(clock func() time.Time) Option {
	return func(o *Options) {
		o.Clock = clock
	}
}

// WithIDGenerator задаёт генератор идентификаторов.
func WithIDGenerator(newID func() string) Option {
	return func(o *Options) {
		o.NewID = newID
	}
}

// WithLogger задаёт логгер.
func WithLogger(logger *log.Entry) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// WithProductCache включает кэширование списка товаров.
func WithProductCache(c *cache.Aside[[]domain.Product]) Option {
	return func(o *Options) {
		o.ProductCache = c
	}
}

func buildOptions(component string, options []Option) Options {
	opts := Options{
		Clock: time.Now,
		NewID: uuid.NewString,
	}
	for _, option := range options {
		option(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = log.WithField("component", component)
	}
	return opts
}
