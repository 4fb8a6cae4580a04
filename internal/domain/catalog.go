package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Customer — покупатель, на которого оформляются заказы.
type Customer struct {
	ID        string
	FullName  string
	Email     string
	Phone     string
	CreatedAt time.Time
}

// Product — товарная позиция с текущей ценой и остатком.
type Product struct {
	ID          string
	Name        string
	Description string
	Price       decimal.Decimal
	Stock       int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Role — роль пользователя административной консоли.
type Role string

// RoleAdmin — единственная роль, выдаваемая при регистрации.
const RoleAdmin Role = "Admin"

// User — учётная запись оператора.
type User struct {
	ID           string
	Email        string
	FullName     string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
}

// NormalizeEmail приводит email к каноническому виду: без пробелов по краям и в нижнем регистре.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
