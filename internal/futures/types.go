package futures

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// ComponentType enumerates the kinds of system components a knowledge
// item can describe.
type ComponentType string

const (
	ComponentAPI           ComponentType = "api"
	ComponentDatabase      ComponentType = "database"
	ComponentUI            ComponentType = "ui"
	ComponentBusinessLogic ComponentType = "business_logic"
	ComponentIntegration   ComponentType = "integration"
)

var componentTypes = map[ComponentType]bool{
	ComponentAPI:           true,
	ComponentDatabase:      true,
	ComponentUI:            true,
	ComponentBusinessLogic: true,
	ComponentIntegration:   true,
}

func ValidComponentType(t ComponentType) bool {
	return componentTypes[t]
}

// AssumptionCategory enumerates the parts of the world an assumption
// can be about.
type AssumptionCategory string

const (
	CategoryUserBehavior AssumptionCategory = "user_behavior"
	CategoryMarket       AssumptionCategory = "market"
	CategoryTechnology   AssumptionCategory = "technology"
	CategoryRegulations  AssumptionCategory = "regulations"
	CategoryResources    AssumptionCategory = "resources"
)

var assumptionCategories = map[AssumptionCategory]bool{
	CategoryUserBehavior: true,
	CategoryMarket:       true,
	CategoryTechnology:   true,
	CategoryRegulations:  true,
	CategoryResources:    true,
}

func ValidAssumptionCategory(c AssumptionCategory) bool {
	return assumptionCategories[c]
}

// GoalStatus is the state machine for goal achievement:
// not_started -> in_progress -> {achieved, failed, blocked}.
type GoalStatus string

const (
	GoalNotStarted GoalStatus = "not_started"
	GoalInProgress GoalStatus = "in_progress"
	GoalAchieved   GoalStatus = "achieved"
	GoalFailed     GoalStatus = "failed"
	GoalBlocked    GoalStatus = "blocked"
)

// Idea is a possible future: a hypothesis about a product or business
// outcome that matures through the waterfall stages. ID and CreatedAt
// never change after creation; the idea itself is never deleted.
type Idea struct {
	ID               string           `json:"id"`
	Name             string           `json:"name"`
	Description      string           `json:"description"`
	CreatedAt        time.Time        `json:"created_at"`
	CurrentStage     Stage            `json:"current_stage"`
	UncertaintyLevel UncertaintyLevel `json:"uncertainty_level"`
	ParentIdeaID     string           `json:"parent_idea_id,omitempty"`
}

// NewIdeaID derives the stable identity of an idea from its content.
// The same (name, description, created_at) always yields the same ID.
func NewIdeaID(name, description string, createdAt time.Time) string {
	content := fmt.Sprintf("%s:%s:%s", name, description, createdAt.UTC().Format(time.RFC3339Nano))
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])[:16]
}

// KnowledgeItem is a known fact about the system being imagined,
// scoped to one (idea, stage). Duplicate component names are allowed;
// every item is retained as history.
type KnowledgeItem struct {
	IdeaID        string         `json:"idea_id"`
	Stage         Stage          `json:"stage"`
	ComponentName string         `json:"component_name"`
	ComponentType ComponentType  `json:"component_type"`
	Specification map[string]any `json:"specification"`
	Confidence    float64        `json:"confidence"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// Validate checks boundary constraints before the item is written.
func (k *KnowledgeItem) Validate() error {
	if k.ComponentName == "" {
		return &InvalidKnowledgeError{Field: "component_name", Value: k.ComponentName}
	}
	if !ValidComponentType(k.ComponentType) {
		return &InvalidKnowledgeError{Field: "component_type", Value: k.ComponentType}
	}
	if k.Confidence < 0 || k.Confidence > 1 {
		return &InvalidKnowledgeError{Field: "confidence", Value: k.Confidence}
	}
	return nil
}

// WorldAssumption is a hypothesis about the world around the system.
// An assumption with criticality above the gate policy's cutoff is
// "critical"; critical unvalidated assumptions block stage advancement.
type WorldAssumption struct {
	IdeaID             string             `json:"idea_id"`
	Text               string             `json:"assumption_text"`
	Category           AssumptionCategory `json:"category"`
	Criticality        float64            `json:"criticality"`
	Validated          bool               `json:"validated"`
	ValidationEvidence string             `json:"validation_evidence,omitempty"`
	CreatedAt          time.Time          `json:"created_at"`
}

func (a *WorldAssumption) Validate() error {
	if a.Text == "" {
		return &InvalidAssumptionError{Field: "assumption_text", Value: a.Text}
	}
	if !ValidAssumptionCategory(a.Category) {
		return &InvalidAssumptionError{Field: "category", Value: a.Category}
	}
	if a.Criticality < 0 || a.Criticality > 1 {
		return &InvalidAssumptionError{Field: "criticality", Value: a.Criticality}
	}
	return nil
}

// Goal is a measurable outcome the idea is aiming for. TargetValue is
// polymorphic (number, bool, percentage, list length) and judged by the
// named validator.
type Goal struct {
	IdeaID        string     `json:"idea_id"`
	Text          string     `json:"goal_text"`
	MetricName    string     `json:"metric_name"`
	TargetValue   any        `json:"target_value"`
	CurrentValue  any        `json:"current_value,omitempty"`
	Status        GoalStatus `json:"status"`
	ValidatorName string     `json:"validator_function,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	AchievedAt    *time.Time `json:"achieved_at,omitempty"`
}

func (g *Goal) Validate() error {
	if g.Text == "" {
		return &InvalidGoalError{Field: "goal_text", Value: g.Text}
	}
	if g.MetricName == "" {
		return &InvalidGoalError{Field: "metric_name", Value: g.MetricName}
	}
	if g.TargetValue == nil {
		return &InvalidGoalError{Field: "target_value", Value: nil}
	}
	return nil
}

// IdeaSummary is the listing view of an idea.
type IdeaSummary struct {
	ID               string           `json:"id"`
	Name             string           `json:"name"`
	Description      string           `json:"description"`
	CurrentStage     Stage            `json:"current_stage"`
	UncertaintyLevel UncertaintyLevel `json:"uncertainty_level"`
	ParentIdeaID     string           `json:"parent_idea_id,omitempty"`
}
