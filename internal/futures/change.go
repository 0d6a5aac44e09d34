package futures

import (
	"encoding/json"
	"fmt"
	"time"
)

// ChangeType tags one variant of the closed set of state mutations.
// The projector only understands these; anything else is rejected at
// write time.
type ChangeType string

const (
	ChangeKnowledgeAdded      ChangeType = "knowledge_added"
	ChangeKnowledgeUpdated    ChangeType = "knowledge_updated"
	ChangeAssumptionAdded     ChangeType = "assumption_added"
	ChangeAssumptionValidated ChangeType = "assumption_validated"
	ChangeGoalAdded           ChangeType = "goal_added"
	ChangeGoalStatusChanged   ChangeType = "goal_status_changed"
	ChangeStageAdvanced       ChangeType = "stage_advanced"
)

var changeTypes = map[ChangeType]bool{
	ChangeKnowledgeAdded:      true,
	ChangeKnowledgeUpdated:    true,
	ChangeAssumptionAdded:     true,
	ChangeAssumptionValidated: true,
	ChangeGoalAdded:           true,
	ChangeGoalStatusChanged:   true,
	ChangeStageAdvanced:       true,
}

func ValidChangeType(t ChangeType) bool {
	return changeTypes[t]
}

// StateChange is one immutable record in a stage's change log. Records
// are totally ordered by timestamp; BeforeHash and AfterHash chain the
// state digests so the whole log is verifiable by replay.
type StateChange struct {
	ChangeID   string          `json:"change_id"`
	IdeaID     string          `json:"idea_id"`
	Stage      Stage           `json:"stage"`
	Timestamp  time.Time       `json:"timestamp"`
	ChangeType ChangeType      `json:"change_type"`
	Payload    json.RawMessage `json:"change_data"`
	BeforeHash string          `json:"previous_state_hash"`
	AfterHash  string          `json:"new_state_hash"`
}

// Typed payloads, one per change variant.

type KnowledgeAddedPayload struct {
	ComponentName string         `json:"component_name"`
	ComponentType ComponentType  `json:"component_type"`
	Specification map[string]any `json:"specification,omitempty"`
	Confidence    float64        `json:"confidence"`
}

type KnowledgeUpdatedPayload struct {
	ComponentName string         `json:"component_name"`
	Specification map[string]any `json:"specification,omitempty"`
	Confidence    *float64       `json:"confidence,omitempty"`
}

type AssumptionAddedPayload struct {
	Text        string             `json:"assumption_text"`
	Category    AssumptionCategory `json:"category"`
	Criticality float64            `json:"criticality"`
}

type AssumptionValidatedPayload struct {
	Text     string `json:"assumption_text"`
	Evidence string `json:"evidence,omitempty"`
}

type GoalAddedPayload struct {
	Text        string `json:"goal_text"`
	MetricName  string `json:"metric_name"`
	TargetValue any    `json:"target_value"`
}

type GoalStatusChangedPayload struct {
	Text        string     `json:"goal_text"`
	Status      GoalStatus `json:"status"`
	ActualValue any        `json:"actual_value,omitempty"`
}

type StageAdvancedPayload struct {
	Stage            Stage            `json:"new_stage"`
	UncertaintyLevel UncertaintyLevel `json:"uncertainty_level"`
}

// StageState is the projection of a stage's change log: the initial
// snapshot folded with every change in timestamp order. It is a value;
// ApplyChange never mutates its input.
type StageState struct {
	IdeaID      string            `json:"idea_id"`
	Stage       Stage             `json:"stage"`
	Knowledge   []KnowledgeEntry  `json:"knowledge"`
	Assumptions []AssumptionEntry `json:"assumptions"`
	Goals       []GoalEntry       `json:"goals"`
	LastAdvance *AdvanceEntry     `json:"last_advance,omitempty"`
}

type KnowledgeEntry struct {
	ComponentName string         `json:"component_name"`
	ComponentType ComponentType  `json:"component_type"`
	Specification map[string]any `json:"specification,omitempty"`
	Confidence    float64        `json:"confidence"`
}

type AssumptionEntry struct {
	Text        string             `json:"assumption_text"`
	Category    AssumptionCategory `json:"category"`
	Criticality float64            `json:"criticality"`
	Validated   bool               `json:"validated"`
	Evidence    string             `json:"evidence,omitempty"`
}

type GoalEntry struct {
	Text        string     `json:"goal_text"`
	MetricName  string     `json:"metric_name"`
	TargetValue any        `json:"target_value"`
	ActualValue any        `json:"actual_value,omitempty"`
	Status      GoalStatus `json:"status"`
}

type AdvanceEntry struct {
	Stage            Stage            `json:"new_stage"`
	UncertaintyLevel UncertaintyLevel `json:"uncertainty_level"`
}

// NewStageState is the initial snapshot for a freshly opened stage.
// Slices are allocated so the snapshot marshals to the same bytes as a
// replayed empty log.
func NewStageState(ideaID string, stage Stage) StageState {
	return StageState{
		IdeaID:      ideaID,
		Stage:       stage,
		Knowledge:   []KnowledgeEntry{},
		Assumptions: []AssumptionEntry{},
		Goals:       []GoalEntry{},
	}
}

func (s StageState) clone() StageState {
	out := s
	out.Knowledge = append([]KnowledgeEntry{}, s.Knowledge...)
	out.Assumptions = append([]AssumptionEntry{}, s.Assumptions...)
	out.Goals = append([]GoalEntry{}, s.Goals...)
	if s.LastAdvance != nil {
		adv := *s.LastAdvance
		out.LastAdvance = &adv
	}
	return out
}

// ApplyChange folds one change into the state and returns the new
// state. It is pure: no clock, no randomness, no mutation of the input.
// A payload that does not decode into its variant's shape, or that
// cannot merge, yields a MalformedChangeError and the original state.
func ApplyChange(state StageState, changeType ChangeType, payload json.RawMessage) (StageState, error) {
	next := state.clone()

	switch changeType {
	case ChangeKnowledgeAdded:
		var p KnowledgeAddedPayload
		if err := decodePayload(changeType, payload, &p); err != nil {
			return state, err
		}
		next.Knowledge = append(next.Knowledge, KnowledgeEntry{
			ComponentName: p.ComponentName,
			ComponentType: p.ComponentType,
			Specification: p.Specification,
			Confidence:    p.Confidence,
		})

	case ChangeKnowledgeUpdated:
		var p KnowledgeUpdatedPayload
		if err := decodePayload(changeType, payload, &p); err != nil {
			return state, err
		}
		idx := -1
		for i := len(next.Knowledge) - 1; i >= 0; i-- {
			if next.Knowledge[i].ComponentName == p.ComponentName {
				idx = i
				break
			}
		}
		if idx < 0 {
			return state, &MalformedChangeError{
				ChangeType: changeType,
				Reason:     fmt.Sprintf("component %q has no knowledge entry", p.ComponentName),
			}
		}
		if p.Specification != nil {
			base := next.Knowledge[idx].Specification
			if base == nil {
				base = map[string]any{}
			}
			merged, err := DeepMerge(base, p.Specification)
			if err != nil {
				return state, &MalformedChangeError{ChangeType: changeType, Reason: err.Error()}
			}
			next.Knowledge[idx].Specification = merged
		}
		if p.Confidence != nil {
			next.Knowledge[idx].Confidence = *p.Confidence
		}

	case ChangeAssumptionAdded:
		var p AssumptionAddedPayload
		if err := decodePayload(changeType, payload, &p); err != nil {
			return state, err
		}
		next.Assumptions = append(next.Assumptions, AssumptionEntry{
			Text:        p.Text,
			Category:    p.Category,
			Criticality: p.Criticality,
		})

	case ChangeAssumptionValidated:
		var p AssumptionValidatedPayload
		if err := decodePayload(changeType, payload, &p); err != nil {
			return state, err
		}
		idx := -1
		for i, a := range next.Assumptions {
			if a.Text == p.Text {
				idx = i
				break
			}
		}
		if idx < 0 {
			return state, &MalformedChangeError{
				ChangeType: changeType,
				Reason:     fmt.Sprintf("assumption %q not present in state", p.Text),
			}
		}
		next.Assumptions[idx].Validated = true
		next.Assumptions[idx].Evidence = p.Evidence

	case ChangeGoalAdded:
		var p GoalAddedPayload
		if err := decodePayload(changeType, payload, &p); err != nil {
			return state, err
		}
		next.Goals = append(next.Goals, GoalEntry{
			Text:        p.Text,
			MetricName:  p.MetricName,
			TargetValue: p.TargetValue,
			Status:      GoalNotStarted,
		})

	case ChangeGoalStatusChanged:
		var p GoalStatusChangedPayload
		if err := decodePayload(changeType, payload, &p); err != nil {
			return state, err
		}
		idx := -1
		for i, g := range next.Goals {
			if g.Text == p.Text {
				idx = i
				break
			}
		}
		if idx < 0 {
			return state, &MalformedChangeError{
				ChangeType: changeType,
				Reason:     fmt.Sprintf("goal %q not present in state", p.Text),
			}
		}
		next.Goals[idx].Status = p.Status
		next.Goals[idx].ActualValue = p.ActualValue

	case ChangeStageAdvanced:
		var p StageAdvancedPayload
		if err := decodePayload(changeType, payload, &p); err != nil {
			return state, err
		}
		next.LastAdvance = &AdvanceEntry{
			Stage:            p.Stage,
			UncertaintyLevel: p.UncertaintyLevel,
		}

	default:
		return state, &MalformedChangeError{
			ChangeType: changeType,
			Reason:     "unknown change type",
		}
	}

	return next, nil
}

func decodePayload(changeType ChangeType, payload json.RawMessage, into any) error {
	if err := json.Unmarshal(payload, into); err != nil {
		return &MalformedChangeError{ChangeType: changeType, Reason: err.Error()}
	}
	return nil
}

// Replay folds an ordered change log over an initial snapshot. Calling
// it twice with the same log yields byte-identical state; the change
// log, not the ledgers, is the source of truth.
func Replay(initial StageState, changes []StateChange) (StageState, error) {
	state := initial
	for _, c := range changes {
		next, err := ApplyChange(state, c.ChangeType, c.Payload)
		if err != nil {
			return state, fmt.Errorf("replay change %s: %w", c.ChangeID, err)
		}
		state = next
	}
	return state, nil
}
