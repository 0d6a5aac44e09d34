package futures

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Stage is one phase of the waterfall an idea moves through. The order
// of Stages is the only legal progression; there is no skipping and no
// going back.
type Stage string

const (
	StageRequirements   Stage = "requirements"
	StageAnalysis       Stage = "analysis"
	StageDesign         Stage = "design"
	StageImplementation Stage = "implementation"
	StageTesting        Stage = "testing"
	StageValidation     Stage = "validation"
	StageDeployment     Stage = "deployment"
)

// Stages lists every stage in progression order.
var Stages = []Stage{
	StageRequirements,
	StageAnalysis,
	StageDesign,
	StageImplementation,
	StageTesting,
	StageValidation,
	StageDeployment,
}

// ParseStage maps a stored string back to a Stage.
func ParseStage(s string) (Stage, error) {
	for _, stage := range Stages {
		if string(stage) == s {
			return stage, nil
		}
	}
	return "", &NotFoundError{Kind: "stage", ID: s}
}

// Index returns the position of the stage in the progression, or -1
// for an unknown stage.
func (s Stage) Index() int {
	for i, stage := range Stages {
		if stage == s {
			return i
		}
	}
	return -1
}

// Next returns the successor stage. ok is false at the terminal stage
// or for an unknown stage.
func (s Stage) Next() (Stage, bool) {
	idx := s.Index()
	if idx < 0 || idx >= len(Stages)-1 {
		return s, false
	}
	return Stages[idx+1], true
}

func (s Stage) IsTerminal() bool {
	return s == Stages[len(Stages)-1]
}

var titleCaser = cases.Title(language.English)

// Label renders a stage for human-readable messages ("requirements" ->
// "Requirements").
func (s Stage) Label() string {
	return titleCaser.String(string(s))
}

// UncertaintyLevel classifies how much of an idea is still hypothesis.
// Levels are ordered from very_high (everything is a guess) down to
// minimal (deployed, assumptions validated).
type UncertaintyLevel string

const (
	UncertaintyVeryHigh UncertaintyLevel = "very_high"
	UncertaintyHigh     UncertaintyLevel = "high"
	UncertaintyMedium   UncertaintyLevel = "medium"
	UncertaintyLow      UncertaintyLevel = "low"
	UncertaintyVeryLow  UncertaintyLevel = "very_low"
	UncertaintyMinimal  UncertaintyLevel = "minimal"
)

func (u UncertaintyLevel) Label() string {
	return titleCaser.String(strings.ReplaceAll(string(u), "_", " "))
}

// baseUncertainty is the uncertainty score an idea carries purely from
// its stage, before assumption validation is taken into account.
var baseUncertainty = map[Stage]int{
	StageRequirements:   5,
	StageAnalysis:       4,
	StageDesign:         3,
	StageImplementation: 2,
	StageTesting:        1,
	StageValidation:     0,
	StageDeployment:     0,
}

// ComputeUncertainty derives the uncertainty classification for an idea
// at a given stage. The base level decreases as stages progress and is
// pushed up by as many as two steps when assumptions remain unvalidated.
/// Tolerant over all inputs: an empty ledger or unknown stage yields the
// most pessimistic bucket rather than an error.
func ComputeUncertainty(stage Stage, validated, total int) UncertaintyLevel {
	base, ok := baseUncertainty[stage]
	if !ok {
		return UncertaintyVeryHigh
	}

	adjustment := 0
	if total > 0 {
		ratio := float64(validated) / float64(total)
		adjustment = int((1 - ratio) * 2)
	}

	score := base + adjustment

	switch {
	case score >= 5:
		return UncertaintyVeryHigh
	case score >= 4:
		return UncertaintyHigh
	case score >= 3:
		return UncertaintyMedium
	case score >= 2:
		return UncertaintyLow
	case score >= 1:
		return UncertaintyVeryLow
	default:
		return UncertaintyMinimal
	}
}
