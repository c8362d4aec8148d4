package config

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator"

	"github.com/alem-hub/alem-economy/internal/domain/curriculum"
)

//go:embed default_curriculum.toml
var defaultCurriculum string

// CurriculumFile is the TOML form of the reward schedule.
type CurriculumFile struct {
	DefaultPath string       `toml:"default_path" validate:"required"`
	Tracks      []TrackEntry `toml:"track" validate:"required,min=1,dive"`
}

// TrackEntry describes one (track, path) pair. An empty Path means the
// default path.
type TrackEntry struct {
	Track         string `toml:"track" validate:"required"`
	Path          string `toml:"path"`
	UnitsPerStage []int  `toml:"units_per_stage" validate:"required,min=1,dive,gt=0"`
	PerUnit       string `toml:"per_unit" validate:"required"`
	StageBonus    int64  `toml:"stage_bonus" validate:"min=0"`
	TrackBonus    int64  `toml:"track_bonus" validate:"min=0"`
}

// LoadCurriculum reads the schedule from path, or the embedded default when
// path is empty.
func LoadCurriculum(path string) (*curriculum.Schedule, error) {
	if path == "" {
		return ParseCurriculum(defaultCurriculum)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read curriculum: %w", err)
	}
	return ParseCurriculum(string(data))
}

// DefaultCurriculum returns the embedded schedule.
func DefaultCurriculum() (*curriculum.Schedule, error) {
	return ParseCurriculum(defaultCurriculum)
}

// ParseCurriculum decodes, validates and builds an immutable schedule.
// Unknown keys are rejected so that typos do not silently fall back to
// defaults.
func ParseCurriculum(data string) (*curriculum.Schedule, error) {
	var file CurriculumFile
	md, err := toml.Decode(data, &file)
	if err != nil {
		return nil, fmt.Errorf("decode curriculum: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return nil, fmt.Errorf("curriculum: unknown keys: %s", strings.Join(keys, ", "))
	}

	if err := validator.New().Struct(file); err != nil {
		return nil, fmt.Errorf("curriculum: %w", err)
	}

	defaultPath := curriculum.Path(file.DefaultPath)
	specs := make([]curriculum.TrackSpec, 0, len(file.Tracks))
	for i, entry := range file.Tracks {
		track, err := curriculum.ParseTrack(entry.Track)
		if err != nil {
			return nil, fmt.Errorf("curriculum: track #%d: %w", i+1, err)
		}
		rate, err := curriculum.ParseRate(entry.PerUnit)
		if err != nil {
			return nil, fmt.Errorf("curriculum: track #%d (%s): %w", i+1, track, err)
		}
		path := defaultPath
		if entry.Path != "" {
			path = curriculum.Path(entry.Path)
		}
		specs = append(specs, curriculum.TrackSpec{
			Track:         track,
			Path:          path,
			UnitsPerStage: entry.UnitsPerStage,
			PerUnit:       rate,
			StageBonus:    entry.StageBonus,
			TrackBonus:    entry.TrackBonus,
		})
	}

	return curriculum.NewSchedule(defaultPath, specs...)
}
