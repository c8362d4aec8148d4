package curriculum

import (
	"fmt"
	"strings"

	"github.com/alem-hub/alem-economy/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// TRACK (пояс)
// ══════════════════════════════════════════════════════════════════════════════

// Track - пояс учебной программы.
type Track string

const (
	White  Track = "WHITE"
	Yellow Track = "YELLOW"
	Orange Track = "ORANGE"
	Green  Track = "GREEN"
	Blue   Track = "BLUE"
	Purple Track = "PURPLE"
	Brown  Track = "BROWN"
	Red    Track = "RED"
	Black  Track = "BLACK"
)

// trackTraits - поведение пояса, заданное таблицей, а не цепочкой switch.
type trackTraits struct {
	ordinal int
	title   string
	emoji   string
}

var trackTable = map[Track]trackTraits{
	White:  {ordinal: 0, title: "White Belt", emoji: "⚪"},
	Yellow: {ordinal: 1, title: "Yellow Belt", emoji: "🟡"},
	Orange: {ordinal: 2, title: "Orange Belt", emoji: "🟠"},
	Green:  {ordinal: 3, title: "Green Belt", emoji: "🟢"},
	Blue:   {ordinal: 4, title: "Blue Belt", emoji: "🔵"},
	Purple: {ordinal: 5, title: "Purple Belt", emoji: "🟣"},
	Brown:  {ordinal: 6, title: "Brown Belt", emoji: "🟤"},
	Red:    {ordinal: 7, title: "Red Belt", emoji: "🔴"},
	Black:  {ordinal: 8, title: "Black Belt", emoji: "⚫"},
}

// trackOrder - фиксированный порядок поясов.
var trackOrder = []Track{White, Yellow, Orange, Green, Blue, Purple, Brown, Red, Black}

// Tracks возвращает все пояса в порядке прохождения.
func Tracks() []Track {
	out := make([]Track, len(trackOrder))
	copy(out, trackOrder)
	return out
}

// ParseTrack разбирает название пояса (регистр не важен).
func ParseTrack(s string) (Track, error) {
	t := Track(strings.ToUpper(strings.TrimSpace(s)))
	if !t.IsValid() {
		return "", shared.NewDomainError("curriculum", "ParseTrack", shared.ErrInvalidPosition,
			fmt.Sprintf("unknown belt %q", s))
	}
	return t, nil
}

// IsValid проверяет, что пояс известен.
func (t Track) IsValid() bool {
	_, ok := trackTable[t]
	return ok
}

// Ordinal возвращает порядковый номер пояса (с нуля) или -1 для неизвестного.
func (t Track) Ordinal() int {
	if tr, ok := trackTable[t]; ok {
		return tr.ordinal
	}
	return -1
}

// Title возвращает отображаемое имя пояса.
func (t Track) Title() string {
	if tr, ok := trackTable[t]; ok {
		return tr.title
	}
	return string(t)
}

// Emoji возвращает эмодзи пояса.
func (t Track) Emoji() string {
	return trackTable[t].emoji
}

// Next возвращает следующий пояс. false - если это последний пояс.
func (t Track) Next() (Track, bool) {
	i := t.Ordinal()
	if i < 0 || i+1 >= len(trackOrder) {
		return "", false
	}
	return trackOrder[i+1], true
}

// IsLast - последний ли это пояс программы.
func (t Track) IsLast() bool {
	return t.Ordinal() == len(trackOrder)-1
}

// Before - идёт ли пояс t раньше other.
func (t Track) Before(other Track) bool {
	return t.Ordinal() < other.Ordinal()
}

// String implements fmt.Stringer.
func (t Track) String() string {
	return string(t)
}

// ══════════════════════════════════════════════════════════════════════════════
// PATH (путь обучения)
// ══════════════════════════════════════════════════════════════════════════════

// Path - вариант программы (например, "core" или "kids").
// Для пути без собственной спецификации используется DefaultPath.
type Path string

// DefaultPath - путь обучения по умолчанию.
const DefaultPath Path = "core"

// String implements fmt.Stringer.
func (p Path) String() string {
	return string(p)
}

// OrDefault возвращает DefaultPath для пустого пути.
func (p Path) OrDefault() Path {
	if p == "" {
		return DefaultPath
	}
	return p
}
