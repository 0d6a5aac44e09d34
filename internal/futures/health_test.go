package futures

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveHealthEmptyLedgers(t *testing.T) {
	h := DeriveHealth(nil, nil, nil, 0.7)

	assert.Equal(t, 0.0, h.OverallHealthScore)
	assert.Equal(t, 0.0, h.AverageConfidence)
	assert.Equal(t, 0.0, h.AssumptionValidationRate)
	assert.Equal(t, 0.0, h.GoalAchievementRate)
}

func TestDeriveHealthBlend(t *testing.T) {
	knowledge := []KnowledgeItem{
		{Confidence: 0.8},
		{Confidence: 0.6},
	}
	assumptions := []WorldAssumption{
		{Criticality: 0.9, Validated: true},
		{Criticality: 0.5, Validated: false},
	}
	goals := []Goal{
		{Status: GoalAchieved},
		{Status: GoalFailed},
		{Status: GoalNotStarted},
	}

	h := DeriveHealth(knowledge, assumptions, goals, 0.7)

	assert.InDelta(t, 0.7, h.AverageConfidence, 1e-9)
	assert.InDelta(t, 0.5, h.AssumptionValidationRate, 1e-9)
	assert.InDelta(t, 1.0/3.0, h.GoalAchievementRate, 1e-9)
	assert.Equal(t, 1, h.CriticalAssumptionsCount)
	assert.Equal(t, 1, h.CriticalAssumptionsValidated)
	assert.Equal(t, 1, h.AchievedGoals)
	assert.Equal(t, 1, h.FailedGoals)

	want := 0.3*0.7 + 0.4*0.5 + 0.3*(1.0/3.0)
	assert.InDelta(t, want, h.OverallHealthScore, 1e-9)
}

func TestDeriveHealthScoreBounds(t *testing.T) {
	// extreme ledgers stay inside [0,1]
	full := DeriveHealth(
		[]KnowledgeItem{{Confidence: 1.0}},
		[]WorldAssumption{{Criticality: 1.0, Validated: true}},
		[]Goal{{Status: GoalAchieved}},
		0.7,
	)
	assert.LessOrEqual(t, full.OverallHealthScore, 1.0)
	assert.InDelta(t, 1.0, full.OverallHealthScore, 1e-9)

	empty := DeriveHealth(nil, nil, nil, 0.7)
	assert.GreaterOrEqual(t, empty.OverallHealthScore, 0.0)
}

func TestCriticalCutoffIsExclusive(t *testing.T) {
	// an assumption exactly at the cutoff is not critical
	h := DeriveHealth(nil, []WorldAssumption{{Criticality: 0.7}}, nil, 0.7)
	assert.Equal(t, 0, h.CriticalAssumptionsCount)
}

func TestNewIdeaIDDeterministic(t *testing.T) {
	ts := time.Date(2026, 1, 15, 9, 30, 0, 0, time.UTC)

	a := NewIdeaID("checkout-v2", "one-click checkout", ts)
	b := NewIdeaID("checkout-v2", "one-click checkout", ts)
	c := NewIdeaID("checkout-v2", "two-click checkout", ts)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 16)
}

func TestEntityValidation(t *testing.T) {
	k := &KnowledgeItem{ComponentName: "x", ComponentType: ComponentAPI, Confidence: 1.5}
	var ik *InvalidKnowledgeError
	require.ErrorAs(t, k.Validate(), &ik)
	assert.Equal(t, "confidence", ik.Field)

	a := &WorldAssumption{Text: "t", Category: CategoryMarket, Criticality: -0.1}
	var ia *InvalidAssumptionError
	require.ErrorAs(t, a.Validate(), &ia)
	assert.Equal(t, "criticality", ia.Field)

	a2 := &WorldAssumption{Text: "t", Category: AssumptionCategory("weather"), Criticality: 0.5}
	assert.Error(t, a2.Validate())

	g := &Goal{Text: "t", MetricName: ""}
	var ig *InvalidGoalError
	require.ErrorAs(t, g.Validate(), &ig)
	assert.Equal(t, "metric_name", ig.Field)
}
