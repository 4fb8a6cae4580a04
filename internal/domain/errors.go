package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrItemsRequired возвращается, если в заказе нет ни одной позиции.
	ErrItemsRequired = errors.New("order must contain at least one item")
	// ErrItemQtyInvalid возвращается при количестве товара <= 0.
	ErrItemQtyInvalid = errors.New("quantity must be greater than zero")
	// ErrInsufficientStock возвращается, если остатка товара не хватает на позицию.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrUnknownProduct возвращается, если позиция ссылается на несуществующий товар.
	ErrUnknownProduct = errors.New("unknown product")
	// ErrCustomerNotFound возвращается, если клиент не найден.
	ErrCustomerNotFound = errors.New("customer not found")
	// ErrProductNotFound возвращается, если товар не найден.
	ErrProductNotFound = errors.New("product not found")
	// ErrOrderNotFound возвращается, если заказ не найден в хранилище.
	ErrOrderNotFound = errors.New("order not found")
	// ErrUserNotFound возвращается, если учётная запись не найдена.
	ErrUserNotFound = errors.New("user not found")
	// ErrStockNegative возвращается, если остаток после изменения стал бы отрицательным.
	ErrStockNegative = errors.New("stock cannot drop below zero")
	// ErrStockAmountZero возвращается при нулевой корректировке остатка.
	ErrStockAmountZero = errors.New("amount must be non-zero")
	// ErrPriceInvalid возвращается при цене товара <= 0.
	ErrPriceInvalid = errors.New("price must be greater than zero")
	// ErrNameRequired возвращается при пустом наименовании.
	ErrNameRequired = errors.New("name is required")
	// ErrEmailRequired возвращается при пустом email.
	ErrEmailRequired = errors.New("email is required")
	// ErrEmailTaken возвращается, если email уже занят другой записью.
	ErrEmailTaken = errors.New("email already registered")
	// ErrProductInUse возвращается при удалении товара, который встречается в заказах.
	ErrProductInUse = errors.New("product has order history")
	// ErrReferencedProductMissing означает, что позиция существующего заказа ссылается на удалённый товар.
	ErrReferencedProductMissing = errors.New("order references a missing product")
	// ErrPasswordTooShort возвращается при слишком коротком пароле.
	ErrPasswordTooShort = errors.New("password must contain at least 6 characters")
	// ErrInvalidCredentials возвращается при неверной паре email/пароль.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrWriteConflict сигнализирует о конфликте параллельных транзакций.
	ErrWriteConflict = errors.New("concurrent write conflict")
	// ErrIdempotencyKeyRequired возвращается, если ключ идемпотентности пустой.
	ErrIdempotencyKeyRequired = errors.New("idempotency key is required")
	// ErrIdempotencyRequestHashRequired возвращается, если не передан хэш запроса.
	ErrIdempotencyRequestHashRequired = errors.New("idempotency request hash is required")
	// ErrIdempotencyKeyAlreadyExists — ключ уже использовался с тем же запросом.
	ErrIdempotencyKeyAlreadyExists = errors.New("idempotency key already exists")
	// ErrIdempotencyHashMismatch — ключ уже использовался с другим телом запроса.
	ErrIdempotencyHashMismatch = errors.New("idempotency key reused with different request")
	// ErrIdempotencyKeyNotFound возвращается, если ключ не найден.
	ErrIdempotencyKeyNotFound = errors.New("idempotency key not found")
	// ErrOutboxPublish — ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")
)

// ErrorKind классифицирует ошибку для вызывающей стороны.
type ErrorKind string

const (
	// KindValidation — входные данные нарушают бизнес-правило.
	KindValidation ErrorKind = "validation"
	// KindNotFound — адресованная сущность отсутствует.
	KindNotFound ErrorKind = "not_found"
	// KindConflict — операция противоречит текущему состоянию хранилища.
	KindConflict ErrorKind = "conflict"
	// KindStorage — сбой хранилища, транзакция откатывается.
	KindStorage ErrorKind = "storage"
)

// Error несёт классификацию и человекочитаемое описание ошибки.
type Error struct {
	Kind   ErrorKind
	Detail string
	Err    error
}

func (e *Error) Error() string {
	switch {
	case e.Detail != "":
		return e.Detail
	case e.Err != nil:
		return e.Err.Error()
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Validation создаёт ошибку валидации.
func Validation(err error, format string, args ...any) error {
	return newError(KindValidation, err, format, args...)
}

// NotFound создаёт ошибку отсутствующей сущности.
func NotFound(err error, format string, args ...any) error {
	return newError(KindNotFound, err, format, args...)
}

// Conflict создаёт ошибку конфликта состояния.
func Conflict(err error, format string, args ...any) error {
	return newError(KindConflict, err, format, args...)
}

// Storage оборачивает инфраструктурную ошибку. Уже классифицированные ошибки возвращаются как есть.
func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	var typed *Error
	if errors.As(err, &typed) {
		return err
	}
	return &Error{Kind: KindStorage, Detail: fmt.Sprintf("%s: %v", op, err), Err: err}
}

func newError(kind ErrorKind, err error, format string, args ...any) error {
	detail := format
	if len(args) > 0 {
		detail = fmt.Sprintf(format, args...)
	}
	return &Error{Kind: kind, Detail: detail, Err: err}
}

// KindOf возвращает класс ошибки. Неклассифицированные ошибки считаются ошибками хранилища.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var typed *Error
	if errors.As(err, &typed) {
		return typed.Kind
	}
	return KindStorage
}

// IsValidation проверяет, что ошибка относится к валидации.
func IsValidation(err error) bool { return KindOf(err) == KindValidation }

// IsNotFound проверяет, что ошибка означает отсутствие сущности.
func IsNotFound(err error) bool { return KindOf(err) == KindNotFound }

// IsConflict проверяет, что ошибка означает конфликт состояния.
func IsConflict(err error) bool { return KindOf(err) == KindConflict }

// IsIdempotencyConflict проверяет, что ключ идемпотентности уже занят.
func IsIdempotencyConflict(err error) bool {
	return errors.Is(err, ErrIdempotencyKeyAlreadyExists) || errors.Is(err, ErrIdempotencyHashMismatch)
}
