package curriculum

import (
	"fmt"
	"sort"

	"github.com/alem-hub/alem-economy/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// TRACK SPEC
// ══════════════════════════════════════════════════════════════════════════════

// TrackSpec - описание одного пояса для одного пути обучения.
type TrackSpec struct {
	// Track - пояс.
	Track Track

	// Path - путь обучения.
	Path Path

	// UnitsPerStage - количество уроков в каждом уровне (индекс = уровень-1).
	UnitsPerStage []int

	// PerUnit - награда за урок.
	PerUnit Rate

	// StageBonus - бонус за завершение уровня, в квартерах.
	StageBonus int64

	// TrackBonus - бонус за завершение пояса, в квартерах.
	TrackBonus int64
}

// Stages возвращает количество уровней в поясе.
func (s TrackSpec) Stages() int {
	return len(s.UnitsPerStage)
}

// UnitsIn возвращает количество уроков в уровне stage (с единицы).
// Для несуществующего уровня возвращает 0.
func (s TrackSpec) UnitsIn(stage int) int {
	if stage < 1 || stage > len(s.UnitsPerStage) {
		return 0
	}
	return s.UnitsPerStage[stage-1]
}

// TotalUnits возвращает общее количество уроков в поясе.
func (s TrackSpec) TotalUnits() int {
	total := 0
	for _, n := range s.UnitsPerStage {
		total += n
	}
	return total
}

// fullHalfQuarters - сумма всех наград пояса в полу-квартерах.
func (s TrackSpec) fullHalfQuarters() int64 {
	return int64(s.TotalUnits())*s.PerUnit.HalfQuarters() +
		2*s.StageBonus*int64(s.Stages()) +
		2*s.TrackBonus
}

func (s TrackSpec) clone() TrackSpec {
	units := make([]int, len(s.UnitsPerStage))
	copy(units, s.UnitsPerStage)
	s.UnitsPerStage = units
	return s
}

func (s TrackSpec) validate() error {
	if !s.Track.IsValid() {
		return fmt.Errorf("unknown track %q", s.Track)
	}
	if s.Path == "" {
		return fmt.Errorf("track %s: empty path", s.Track)
	}
	if len(s.UnitsPerStage) == 0 {
		return fmt.Errorf("track %s/%s: no stages", s.Track, s.Path)
	}
	for i, n := range s.UnitsPerStage {
		if n < 1 {
			return fmt.Errorf("track %s/%s: stage %d has %d units", s.Track, s.Path, i+1, n)
		}
	}
	if s.PerUnit < 0 || s.StageBonus < 0 || s.TrackBonus < 0 {
		return fmt.Errorf("track %s/%s: negative reward", s.Track, s.Path)
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// SCHEDULE
// ══════════════════════════════════════════════════════════════════════════════

type specKey struct {
	track Track
	path  Path
}

// Schedule - неизменяемая таблица наград. Создаётся один раз при старте
// и безопасна для конкурентного чтения.
type Schedule struct {
	specs       map[specKey]TrackSpec
	defaultPath Path
}

// NewSchedule строит расписание. Для пути по умолчанию должны быть описаны
// все пояса, иначе возвращается ErrConfiguration.
func NewSchedule(defaultPath Path, specs ...TrackSpec) (*Schedule, error) {
	defaultPath = defaultPath.OrDefault()
	s := &Schedule{
		specs:       make(map[specKey]TrackSpec, len(specs)),
		defaultPath: defaultPath,
	}

	for _, spec := range specs {
		if err := spec.validate(); err != nil {
			return nil, shared.WrapError("curriculum", "NewSchedule", shared.ErrConfiguration,
				"invalid track spec", err)
		}
		key := specKey{track: spec.Track, path: spec.Path}
		if _, dup := s.specs[key]; dup {
			return nil, shared.NewDomainError("curriculum", "NewSchedule", shared.ErrConfiguration,
				fmt.Sprintf("duplicate spec for %s/%s", spec.Track, spec.Path))
		}
		s.specs[key] = spec.clone()
	}

	for _, t := range trackOrder {
		if _, ok := s.specs[specKey{track: t, path: defaultPath}]; !ok {
			return nil, shared.NewDomainError("curriculum", "NewSchedule", shared.ErrConfiguration,
				fmt.Sprintf("no spec for %s on default path %q", t, defaultPath))
		}
	}

	return s, nil
}

// Spec возвращает спецификацию пояса: сначала точное совпадение (пояс, путь),
// затем (пояс, путь по умолчанию), иначе ErrConfiguration.
func (s *Schedule) Spec(track Track, path Path) (TrackSpec, error) {
	if spec, ok := s.specs[specKey{track: track, path: path.OrDefault()}]; ok {
		return spec.clone(), nil
	}
	if spec, ok := s.specs[specKey{track: track, path: s.defaultPath}]; ok {
		return spec.clone(), nil
	}
	return TrackSpec{}, shared.NewDomainError("curriculum", "Spec", shared.ErrConfiguration,
		fmt.Sprintf("no spec for track %q on path %q", track, path))
}

// DefaultPath возвращает путь обучения по умолчанию.
func (s *Schedule) DefaultPath() Path {
	return s.defaultPath
}

// Paths возвращает все пути, для которых есть хотя бы одна спецификация.
func (s *Schedule) Paths() []Path {
	seen := make(map[Path]struct{})
	for k := range s.specs {
		seen[k.path] = struct{}{}
	}
	out := make([]Path, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
