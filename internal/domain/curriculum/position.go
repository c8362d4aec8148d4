package curriculum

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/alem-hub/alem-economy/internal/domain/shared"
)

// Position - позиция студента в программе: (пояс, уровень, урок).
// Уровень и урок нумеруются с единицы.
type Position struct {
	Track Track `json:"track"`
	Stage int   `json:"stage"`
	Unit  int   `json:"unit"`
}

// StartPosition - позиция нового студента.
func StartPosition() Position {
	return Position{Track: White, Stage: 1, Unit: 1}
}

// String форматирует позицию как "WHITE/3/12".
func (p Position) String() string {
	return fmt.Sprintf("%s/%d/%d", p.Track, p.Stage, p.Unit)
}

// ParsePosition разбирает строку вида "WHITE/3/12".
// Проверяется только формат; соответствие программе проверяет Calculator.
func ParsePosition(s string) (Position, error) {
	parts := strings.Split(strings.TrimSpace(s), "/")
	if len(parts) != 3 {
		return Position{}, shared.NewDomainError("curriculum", "ParsePosition", shared.ErrInvalidPosition,
			fmt.Sprintf("position %q must look like BELT/level/lesson", s))
	}
	track, err := ParseTrack(parts[0])
	if err != nil {
		return Position{}, err
	}
	stage, err := strconv.Atoi(parts[1])
	if err != nil {
		return Position{}, shared.NewDomainError("curriculum", "ParsePosition", shared.ErrInvalidPosition,
			fmt.Sprintf("level %q is not a number", parts[1]))
	}
	unit, err := strconv.Atoi(parts[2])
	if err != nil {
		return Position{}, shared.NewDomainError("curriculum", "ParsePosition", shared.ErrInvalidPosition,
			fmt.Sprintf("lesson %q is not a number", parts[2]))
	}
	return Position{Track: track, Stage: stage, Unit: unit}, nil
}
