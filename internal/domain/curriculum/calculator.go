package curriculum

import (
	"errors"
	"fmt"

	"github.com/alem-hub/alem-economy/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REWARD CALCULATOR
// Чистые функции поверх Schedule. Никакого состояния, кроме ссылки на расписание.
// ══════════════════════════════════════════════════════════════════════════════

// Calculator вычисляет кумулятивный прогресс и ожидаемые балансы.
type Calculator struct {
	schedule *Schedule
}

// NewCalculator создаёт калькулятор для расписания.
func NewCalculator(schedule *Schedule) *Calculator {
	return &Calculator{schedule: schedule}
}

// Schedule возвращает расписание калькулятора.
func (c *Calculator) Schedule() *Schedule {
	return c.schedule
}

// Totals - пройденный объём программы.
type Totals struct {
	Units  int
	Stages int
	Tracks int
}

// Advancement - результат завершения урока.
type Advancement struct {
	// From - позиция до завершения урока.
	From Position

	// Next - новая позиция. Совпадает с From, если программа пройдена.
	Next Position

	// StageCompleted - завершён уровень.
	StageCompleted bool

	// TrackCompleted - завершён пояс.
	TrackCompleted bool

	// CurriculumCompleted - завершён последний урок последнего пояса.
	CurriculumCompleted bool
}

// ─────────────────────────────────────────────────────────────────────────────
// Validation
// ─────────────────────────────────────────────────────────────────────────────

// Validate проверяет позицию. Возвращает ErrInvalidPosition с сообщением
// для пользователя или ErrConfiguration, если для пояса нет спецификации.
// Значения меньше единицы отклоняются, а не округляются.
func (c *Calculator) Validate(path Path, pos Position) error {
	if !pos.Track.IsValid() {
		return shared.NewDomainError("curriculum", "Validate", shared.ErrInvalidPosition,
			fmt.Sprintf("unknown belt %q", pos.Track))
	}
	spec, err := c.schedule.Spec(pos.Track, path)
	if err != nil {
		return err
	}
	if pos.Stage < 1 {
		return shared.NewDomainError("curriculum", "Validate", shared.ErrInvalidPosition,
			fmt.Sprintf("level must be at least 1, you entered level %d", pos.Stage))
	}
	if pos.Stage > spec.Stages() {
		return shared.NewDomainError("curriculum", "Validate", shared.ErrInvalidPosition,
			fmt.Sprintf("%s only has %d levels, you entered level %d", pos.Track.Title(), spec.Stages(), pos.Stage))
	}
	if pos.Unit < 1 {
		return shared.NewDomainError("curriculum", "Validate", shared.ErrInvalidPosition,
			fmt.Sprintf("lesson must be at least 1, you entered lesson %d", pos.Unit))
	}
	if units := spec.UnitsIn(pos.Stage); pos.Unit > units {
		return shared.NewDomainError("curriculum", "Validate", shared.ErrInvalidPosition,
			fmt.Sprintf("level %d only has %d lessons, you entered lesson %d", pos.Stage, units, pos.Unit))
	}
	return nil
}

// IsValidPosition - true, если позиция существует в программе пути path.
func (c *Calculator) IsValidPosition(path Path, pos Position) bool {
	return c.Validate(path, pos) == nil
}

// ValidationError возвращает понятное пользователю сообщение о неверной
// позиции или пустую строку для верной.
func (c *Calculator) ValidationError(path Path, pos Position) string {
	err := c.Validate(path, pos)
	if err == nil {
		return ""
	}
	var de *shared.DomainError
	if errors.As(err, &de) {
		return de.Message
	}
	return err.Error()
}

// ─────────────────────────────────────────────────────────────────────────────
// Cumulative counters
// ─────────────────────────────────────────────────────────────────────────────

// CumulativeUnits - сколько уроков пройдено до позиции pos (не включая её).
func (c *Calculator) CumulativeUnits(path Path, pos Position) (int, error) {
	if err := c.Validate(path, pos); err != nil {
		return 0, err
	}
	total := 0
	for _, t := range trackOrder[:pos.Track.Ordinal()] {
		spec, err := c.schedule.Spec(t, path)
		if err != nil {
			return 0, err
		}
		total += spec.TotalUnits()
	}
	spec, err := c.schedule.Spec(pos.Track, path)
	if err != nil {
		return 0, err
	}
	for stage := 1; stage < pos.Stage; stage++ {
		total += spec.UnitsIn(stage)
	}
	return total + pos.Unit - 1, nil
}

// CumulativeStages - сколько уровней завершено до позиции pos.
func (c *Calculator) CumulativeStages(path Path, pos Position) (int, error) {
	if err := c.Validate(path, pos); err != nil {
		return 0, err
	}
	total := 0
	for _, t := range trackOrder[:pos.Track.Ordinal()] {
		spec, err := c.schedule.Spec(t, path)
		if err != nil {
			return 0, err
		}
		total += spec.Stages()
	}
	return total + pos.Stage - 1, nil
}

// Completed возвращает пройденный объём с учётом флага завершения программы:
// у завершившего программу пройдены все уроки, включая последний.
func (c *Calculator) Completed(path Path, pos Position, curriculumComplete bool) (Totals, error) {
	if curriculumComplete {
		return c.Total(path)
	}
	units, err := c.CumulativeUnits(path, pos)
	if err != nil {
		return Totals{}, err
	}
	stages, err := c.CumulativeStages(path, pos)
	if err != nil {
		return Totals{}, err
	}
	return Totals{Units: units, Stages: stages, Tracks: pos.Track.Ordinal()}, nil
}

// Total возвращает полный объём программы пути path.
func (c *Calculator) Total(path Path) (Totals, error) {
	var t Totals
	for _, track := range trackOrder {
		spec, err := c.schedule.Spec(track, path)
		if err != nil {
			return Totals{}, err
		}
		t.Units += spec.TotalUnits()
		t.Stages += spec.Stages()
		t.Tracks++
	}
	return t, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Expected balance
// ─────────────────────────────────────────────────────────────────────────────

// ExpectedBalance - сколько квартеров должен был заработать студент, дошедший
// до позиции pos с нуля: все награды предыдущих поясов (уроки, бонусы уровней,
// бонус пояса), награды за завершённые уровни текущего пояса и (unit-1) уроков
// текущего уровня. Сумма считается в полу-квартерах и округляется вниз.
func (c *Calculator) ExpectedBalance(path Path, pos Position) (int64, error) {
	if err := c.Validate(path, pos); err != nil {
		return 0, err
	}
	var half int64
	for _, t := range trackOrder[:pos.Track.Ordinal()] {
		spec, err := c.schedule.Spec(t, path)
		if err != nil {
			return 0, err
		}
		half += spec.fullHalfQuarters()
	}
	spec, err := c.schedule.Spec(pos.Track, path)
	if err != nil {
		return 0, err
	}
	rate := spec.PerUnit.HalfQuarters()
	for stage := 1; stage < pos.Stage; stage++ {
		half += int64(spec.UnitsIn(stage))*rate + 2*spec.StageBonus
	}
	half += int64(pos.Unit-1) * rate
	return half / 2, nil
}

// ExpectedTotal - ожидаемый баланс студента, завершившего всю программу.
func (c *Calculator) ExpectedTotal(path Path) (int64, error) {
	var half int64
	for _, t := range trackOrder {
		spec, err := c.schedule.Spec(t, path)
		if err != nil {
			return 0, err
		}
		half += spec.fullHalfQuarters()
	}
	return half / 2, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Advance
// ─────────────────────────────────────────────────────────────────────────────

// Advance вычисляет позицию после завершения урока pos.
func (c *Calculator) Advance(path Path, pos Position) (Advancement, error) {
	if err := c.Validate(path, pos); err != nil {
		return Advancement{}, err
	}
	spec, err := c.schedule.Spec(pos.Track, path)
	if err != nil {
		return Advancement{}, err
	}

	adv := Advancement{From: pos, Next: pos}
	switch {
	case pos.Unit < spec.UnitsIn(pos.Stage):
		adv.Next.Unit++
	case pos.Stage < spec.Stages():
		adv.StageCompleted = true
		adv.Next = Position{Track: pos.Track, Stage: pos.Stage + 1, Unit: 1}
	default:
		adv.StageCompleted = true
		adv.TrackCompleted = true
		next, ok := pos.Track.Next()
		if !ok {
			adv.CurriculumCompleted = true
			return adv, nil
		}
		adv.Next = Position{Track: next, Stage: 1, Unit: 1}
	}
	return adv, nil
}
