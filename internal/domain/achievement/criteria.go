package achievement

import (
	"encoding/json"
	"fmt"

	"github.com/alem-hub/alem-economy/internal/domain/curriculum"
)

// CriteriaType is the tag of a criteria rule as stored in the catalog.
type CriteriaType string

const (
	TypeLessonsCompleted CriteriaType = "LESSONS_COMPLETED"
	TypeLevelsCompleted  CriteriaType = "LEVELS_COMPLETED"
	TypeBeltReached      CriteriaType = "BELT_REACHED"
	TypeQuizAccuracy     CriteriaType = "QUIZ_ACCURACY"
	TypeTotalBuxEarned   CriteriaType = "TOTAL_BUX_EARNED"
	TypeTotalSpent       CriteriaType = "TOTAL_SPENT"
	TypeLegacyPoints     CriteriaType = "LEGACY_POINTS"
	TypeQuizStreak       CriteriaType = "QUIZ_STREAK"
	TypePurchasesMade    CriteriaType = "PURCHASES_MADE"
)

// Criteria is a closed set of rule types. Every concrete type lives in this
// file; evaluation switches over them exhaustively.
type Criteria interface {
	Type() CriteriaType
	isCriteria()
}

// LessonsCompleted unlocks after Threshold lessons across the curriculum.
type LessonsCompleted struct {
	Threshold int64 `json:"threshold" validate:"min=1"`
}

// LevelsCompleted unlocks after Threshold stages across the curriculum.
type LevelsCompleted struct {
	Threshold int64 `json:"threshold" validate:"min=1"`
}

// BeltReached unlocks once the account's track is at or beyond Belt.
type BeltReached struct {
	Belt curriculum.Track `json:"belt" validate:"required"`
}

// QuizAccuracy unlocks when at least MinQuestions were answered with an
// accuracy of at least Threshold percent.
type QuizAccuracy struct {
	Threshold    int   `json:"threshold" validate:"min=1,max=100"`
	MinQuestions int64 `json:"minQuestions" validate:"min=1"`
}

// TotalBuxEarned unlocks when lifetime earnings reach Threshold display units.
type TotalBuxEarned struct {
	Threshold int64 `json:"threshold" validate:"min=1"`
}

// TotalSpent unlocks when lifetime gross spending reaches Threshold display units.
type TotalSpent struct {
	Threshold int64 `json:"threshold" validate:"min=1"`
}

// LegacyPoints unlocks when the legacy balance reaches Threshold points.
type LegacyPoints struct {
	Threshold int64 `json:"threshold" validate:"min=1"`
}

// QuizStreak is recognized but has no evaluation rule yet.
type QuizStreak struct {
	Params json.RawMessage `json:"-"`
}

// PurchasesMade is recognized but has no evaluation rule yet.
type PurchasesMade struct {
	Params json.RawMessage `json:"-"`
}

// Unknown holds a tag this build does not understand, or known tag with
// parameters that could not be decoded.
type Unknown struct {
	TypeName string
	Params   json.RawMessage
	Reason   string
}

func (LessonsCompleted) Type() CriteriaType { return TypeLessonsCompleted }
func (LevelsCompleted) Type() CriteriaType  { return TypeLevelsCompleted }
func (BeltReached) Type() CriteriaType      { return TypeBeltReached }
func (QuizAccuracy) Type() CriteriaType     { return TypeQuizAccuracy }
func (TotalBuxEarned) Type() CriteriaType   { return TypeTotalBuxEarned }
func (TotalSpent) Type() CriteriaType       { return TypeTotalSpent }
func (LegacyPoints) Type() CriteriaType     { return TypeLegacyPoints }
func (QuizStreak) Type() CriteriaType       { return TypeQuizStreak }
func (PurchasesMade) Type() CriteriaType    { return TypePurchasesMade }
func (u Unknown) Type() CriteriaType        { return CriteriaType(u.TypeName) }

func (LessonsCompleted) isCriteria() {}
func (LevelsCompleted) isCriteria()  {}
func (BeltReached) isCriteria()      {}
func (QuizAccuracy) isCriteria()     {}
func (TotalBuxEarned) isCriteria()   {}
func (TotalSpent) isCriteria()       {}
func (LegacyPoints) isCriteria()     {}
func (QuizStreak) isCriteria()       {}
func (PurchasesMade) isCriteria()    {}
func (Unknown) isCriteria()          {}

type envelope struct {
	Type   CriteriaType    `json:"type"`
	Params json.RawMessage `json:"params,omitempty"`
}

// DecodeCriteria parses the stored {"type": ..., "params": {...}} form.
// It never fails: anything it cannot interpret becomes Unknown.
func DecodeCriteria(data []byte) Criteria {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Unknown{Params: data, Reason: fmt.Sprintf("malformed criteria: %v", err)}
	}

	decode := func(dst interface{}) error {
		if len(env.Params) == 0 {
			return fmt.Errorf("missing params")
		}
		return json.Unmarshal(env.Params, dst)
	}
	unknown := func(reason string) Criteria {
		return Unknown{TypeName: string(env.Type), Params: env.Params, Reason: reason}
	}

	switch env.Type {
	case TypeLessonsCompleted:
		var c LessonsCompleted
		if err := decode(&c); err != nil || c.Threshold < 1 {
			return unknown(paramsReason(err))
		}
		return c
	case TypeLevelsCompleted:
		var c LevelsCompleted
		if err := decode(&c); err != nil || c.Threshold < 1 {
			return unknown(paramsReason(err))
		}
		return c
	case TypeBeltReached:
		var raw struct {
			Belt string `json:"belt"`
		}
		if err := decode(&raw); err != nil {
			return unknown(paramsReason(err))
		}
		track, err := curriculum.ParseTrack(raw.Belt)
		if err != nil {
			return unknown(err.Error())
		}
		return BeltReached{Belt: track}
	case TypeQuizAccuracy:
		var c QuizAccuracy
		if err := decode(&c); err != nil || c.Threshold < 1 || c.Threshold > 100 {
			return unknown(paramsReason(err))
		}
		if c.MinQuestions < 1 {
			c.MinQuestions = 1
		}
		return c
	case TypeTotalBuxEarned:
		var c TotalBuxEarned
		if err := decode(&c); err != nil || c.Threshold < 1 {
			return unknown(paramsReason(err))
		}
		return c
	case TypeTotalSpent:
		var c TotalSpent
		if err := decode(&c); err != nil || c.Threshold < 1 {
			return unknown(paramsReason(err))
		}
		return c
	case TypeLegacyPoints:
		var c LegacyPoints
		if err := decode(&c); err != nil || c.Threshold < 1 {
			return unknown(paramsReason(err))
		}
		return c
	case TypeQuizStreak:
		return QuizStreak{Params: env.Params}
	case TypePurchasesMade:
		return PurchasesMade{Params: env.Params}
	default:
		return unknown("unrecognized type")
	}
}

func paramsReason(err error) string {
	if err != nil {
		return fmt.Sprintf("bad params: %v", err)
	}
	return "params out of range"
}

// EncodeCriteria renders criteria in the stored form.
func EncodeCriteria(c Criteria) ([]byte, error) {
	var params interface{}
	switch v := c.(type) {
	case LessonsCompleted, LevelsCompleted, BeltReached, QuizAccuracy,
		TotalBuxEarned, TotalSpent, LegacyPoints:
		params = v
	case QuizStreak:
		params = v.Params
	case PurchasesMade:
		params = v.Params
	case Unknown:
		params = v.Params
	case nil:
		return nil, fmt.Errorf("achievement: nil criteria")
	default:
		return nil, fmt.Errorf("achievement: unsupported criteria %T", c)
	}

	raw, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("achievement: encode params: %w", err)
	}
	if string(raw) == "null" {
		raw = nil
	}
	return json.Marshal(envelope{Type: c.Type(), Params: raw})
}
