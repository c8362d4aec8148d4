package ledger

import (
	"github.com/alem-hub/alem-economy/internal/domain/shared"
)

// ConversionRule describes the automatic legacy to primary conversion that runs
// at most once per lesson completion.
type ConversionRule struct {
	// LegacyCost is debited from the legacy balance, in points.
	LegacyCost Amount
	// LessonThreshold is the number of lessons since the previous conversion
	// required before the next one.
	LessonThreshold int
	// PrimaryCredit is credited to the primary balance, in quarters.
	PrimaryCredit Amount
}

// DefaultConversionRule converts 10 points into one display unit every 10 lessons.
func DefaultConversionRule() ConversionRule {
	return ConversionRule{
		LegacyCost:      10,
		LessonThreshold: 10,
		PrimaryCredit:   Units(1),
	}
}

// Validate checks that the rule can be applied.
func (r ConversionRule) Validate() error {
	if r.LegacyCost <= 0 || r.PrimaryCredit <= 0 || r.LessonThreshold <= 0 {
		return shared.NewDomainError("ledger", "ConversionRule", shared.ErrConfiguration,
			"conversion cost, credit and lesson threshold must be positive")
	}
	return nil
}

// Applies reports whether a conversion should run given the current legacy
// balance and the lessons completed since the previous conversion.
func (r ConversionRule) Applies(legacyBalance Amount, lessonsSinceConversion int) bool {
	return legacyBalance >= r.LegacyCost && lessonsSinceConversion >= r.LessonThreshold
}
