package curriculum

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/alem-hub/alem-economy/internal/domain/shared"
)

// Rate - ставка за урок в полу-квартерах. Rate(9) означает 4.5 квартера.
type Rate int64

// QuarterRate создаёт ставку из целого числа квартеров.
func QuarterRate(quarters int64) Rate {
	return Rate(quarters * 2)
}

// ParseRate разбирает ставку в квартерах: "4", "4.0", "4.5".
// Допустима только половинная дробная часть.
func ParseRate(s string) (Rate, error) {
	s = strings.TrimSpace(s)
	whole, frac, hasFrac := strings.Cut(s, ".")
	n, err := strconv.ParseInt(whole, 10, 64)
	if err != nil || n < 0 {
		return 0, shared.NewDomainError("curriculum", "ParseRate", shared.ErrConfiguration,
			fmt.Sprintf("invalid rate %q", s))
	}
	r := Rate(n * 2)
	if !hasFrac {
		return r, nil
	}
	switch strings.TrimRight(frac, "0") {
	case "":
		return r, nil
	case "5":
		return r + 1, nil
	default:
		return 0, shared.NewDomainError("curriculum", "ParseRate", shared.ErrConfiguration,
			fmt.Sprintf("rate %q must be a whole or half quarter", s))
	}
}

// HalfQuarters возвращает ставку в полу-квартерах.
func (r Rate) HalfQuarters() int64 {
	return int64(r)
}

// IsFractional - ставка содержит половину квартера.
func (r Rate) IsFractional() bool {
	return r%2 != 0
}

// Floor - ставка, округлённая вниз до квартера.
func (r Rate) Floor() int64 {
	return int64(r) / 2
}

// Ceil - ставка, округлённая вверх до квартера.
func (r Rate) Ceil() int64 {
	return (int64(r) + 1) / 2
}

// Split возвращает сумму к начислению за один урок и новое значение флага
// чередования. Для целой ставки флаг не меняется. Для дробной ставки выплаты
// идут floor, ceil, floor, ... так что два подряд урока дают ровно 2r.
func (r Rate) Split(flag bool) (int64, bool) {
	if !r.IsFractional() {
		return r.Floor(), flag
	}
	if flag {
		return r.Ceil(), false
	}
	return r.Floor(), true
}

// String форматирует ставку в квартерах.
func (r Rate) String() string {
	if r.IsFractional() {
		return fmt.Sprintf("%d.5", r.Floor())
	}
	return strconv.FormatInt(r.Floor(), 10)
}
