// Package idempotency защищает мутирующие запросы от повторного выполнения.
package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/sales/internal/domain"
)

// DefaultTTL — срок хранения результата запроса по ключу.
const DefaultTTL = 24 * time.Hour

var (
	// ErrInProgress — запрос с тем же ключом ещё выполняется.
	ErrInProgress = errors.New("request with the same idempotency key is already processing")
	// ErrPayloadMismatch — ключ уже использован с другим телом запроса.
	ErrPayloadMismatch = errors.New("idempotency key is already used with different request payload")
)

// Response — сохранённый результат запроса.
type Response struct {
	Status int
	Body   []byte
}

// Guard ведёт жизненный цикл ключа: processing → done | failed.
type Guard struct {
	repo   domain.IdempotencyRepository
	ttl    time.Duration
	now    func() time.Time
	logger *log.Entry
}

// NewGuard создаёт Guard. ttl<=0 означает DefaultTTL.
func NewGuard(repo domain.IdempotencyRepository, ttl time.Duration, logger *log.Entry) *Guard {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = log.WithField("component", "idempotency")
	}
	return &Guard{repo: repo, ttl: ttl, now: time.Now, logger: logger}
}

// RequestHash строит отпечаток запроса из его частей.
func RequestHash(parts ...[]byte) string {
	h := sha256.New()
	for _, part := range parts {
		_, _ = h.Write(part)
		_, _ = h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Begin резервирует ключ. Если запрос уже выполнялся, возвращает сохранённый ответ и replay=true.
func (g *Guard) Begin(ctx context.Context, key, requestHash string) (cached Response, replay bool, err error) {
	record, err := g.repo.CreateProcessing(ctx, key, requestHash, g.now().UTC().Add(g.ttl))
	if err == nil {
		return Response{}, false, nil
	}

	switch {
	case errors.Is(err, domain.ErrIdempotencyKeyRequired), errors.Is(err, domain.ErrIdempotencyRequestHashRequired):
		return Response{}, false, domain.Validation(err, "%s", err.Error())
	case errors.Is(err, domain.ErrIdempotencyHashMismatch):
		return Response{}, false, domain.Conflict(ErrPayloadMismatch, "%s", ErrPayloadMismatch.Error())
	case errors.Is(err, domain.ErrIdempotencyKeyAlreadyExists):
		if record.Completed() {
			return Response{Status: record.HTTPStatus, Body: record.ResponseBody}, true, nil
		}
		return Response{}, false, domain.Conflict(ErrInProgress, "%s", ErrInProgress.Error())
	default:
		return Response{}, false, domain.Storage("reserve idempotency key", err)
	}
}

// Complete сохраняет ответ: 2xx как done, остальные как failed. Оба варианта воспроизводятся при повторе.
func (g *Guard) Complete(ctx context.Context, key string, resp Response) {
	var err error
	switch domain.IdempotencyStatusFor(resp.Status) {
	case domain.IdempotencyStatusDone:
		err = g.repo.MarkDone(ctx, key, resp.Body, resp.Status)
	default:
		err = g.repo.MarkFailed(ctx, key, resp.Body, resp.Status)
	}
	if err != nil {
		g.logger.WithError(err).WithField("idempotency_key", key).Warn("failed to store idempotent response")
	}
}
