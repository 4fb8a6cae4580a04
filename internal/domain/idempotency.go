package domain

import "time"

// IdempotencyStatus — стадия обработки запроса с Idempotency-Key.
type IdempotencyStatus string

const (
	IdempotencyStatusProcessing IdempotencyStatus = "processing"
	IdempotencyStatusDone       IdempotencyStatus = "done"
	IdempotencyStatusFailed     IdempotencyStatus = "failed"
)

// IdempotencyRecord — сохранённый HTTP-ответ на мутацию заказа, привязанный к ключу и отпечатку тела.
type IdempotencyRecord struct {
	Key          string
	RequestHash  string
	ResponseBody []byte
	HTTPStatus   int
	Status       IdempotencyStatus
	TTLAt        time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (s IdempotencyStatus) Valid() bool {
	switch s {
	case IdempotencyStatusProcessing, IdempotencyStatusDone, IdempotencyStatusFailed:
		return true
	default:
		return false
	}
}

// IdempotencyStatusFor выбирает итоговый статус по коду ответа API: 2xx — done, остальное — failed.
func IdempotencyStatusFor(httpStatus int) IdempotencyStatus {
	if httpStatus >= 200 && httpStatus < 300 {
		return IdempotencyStatusDone
	}
	return IdempotencyStatusFailed
}

// Completed сообщает, что ответ сохранён и его можно воспроизвести.
func (r IdempotencyRecord) Completed() bool {
	return r.Status == IdempotencyStatusDone || r.Status == IdempotencyStatusFailed
}

// Expired сообщает, что запись пережила TTL и подлежит очистке.
func (r IdempotencyRecord) Expired(now time.Time) bool {
	return !r.TTLAt.IsZero() && !now.Before(r.TTLAt)
}
