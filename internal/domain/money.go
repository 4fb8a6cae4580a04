package domain

import "github.com/shopspring/decimal"

// MoneyPlaces — число знаков после запятой для всех денежных сумм.
const MoneyPlaces = 2

// RoundMoney округляет сумму до 2 знаков, половину — от нуля (1.005 -> 1.01, -1.005 -> -1.01).
func RoundMoney(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(MoneyPlaces)
}

// LineTotal считает стоимость позиции: round(price * qty).
func LineTotal(unitPrice decimal.Decimal, qty int) decimal.Decimal {
	return RoundMoney(unitPrice.Mul(decimal.NewFromInt(int64(qty))))
}

// SumLineTotals складывает уже округлённые суммы позиций и округляет результат.
func SumLineTotals(items []OrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.LineTotal)
	}
	return RoundMoney(total)
}
