package store

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alucardeht/futures-mcp/internal/futures"
)

func testIdea(t *testing.T) futures.Idea {
	t.Helper()
	created := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	return futures.Idea{
		ID:               futures.NewIdeaID("market-test", "a test future", created),
		Name:             "market-test",
		Description:      "a test future",
		CreatedAt:        created,
		CurrentStage:     futures.StageRequirements,
		UncertaintyLevel: futures.UncertaintyVeryHigh,
	}
}

func testChange(idea futures.Idea, stage futures.Stage, ctype futures.ChangeType, payload any, ts time.Time) futures.StateChange {
	raw, _ := json.Marshal(payload)
	return futures.StateChange{
		ChangeID:   futures.NewChangeID(idea.ID, ts, ctype),
		IdeaID:     idea.ID,
		Stage:      stage,
		Timestamp:  ts,
		ChangeType: ctype,
		Payload:    raw,
		BeforeHash: "before",
		AfterHash:  "after",
	}
}

func TestIdeaStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s, err := NewIdeaStore(dir + "/ideas.db")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	idea := testIdea(t)
	require.NoError(t, s.Create(idea))

	got, err := s.Get(idea.ID)
	require.NoError(t, err)
	assert.Equal(t, idea.Name, got.Name)
	assert.Equal(t, futures.StageRequirements, got.CurrentStage)
	assert.True(t, idea.CreatedAt.Equal(got.CreatedAt))
	assert.Empty(t, got.ParentIdeaID)

	require.NoError(t, s.SetStage(idea.ID, futures.StageAnalysis, futures.UncertaintyHigh))
	got, err = s.Get(idea.ID)
	require.NoError(t, err)
	assert.Equal(t, futures.StageAnalysis, got.CurrentStage)
	assert.Equal(t, futures.UncertaintyHigh, got.UncertaintyLevel)

	ideas, err := s.List()
	require.NoError(t, err)
	assert.Len(t, ideas, 1)
}

func TestIdeaStoreNotFound(t *testing.T) {
	dir := t.TempDir()
	s, err := NewIdeaStore(dir + "/ideas.db")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	_, err = s.Get("missing")
	var nf *futures.NotFoundError
	assert.ErrorAs(t, err, &nf)

	err = s.SetStage("missing", futures.StageAnalysis, futures.UncertaintyHigh)
	assert.ErrorAs(t, err, &nf)
}

func TestIdeaStoreParentLineage(t *testing.T) {
	dir := t.TempDir()
	s, err := NewIdeaStore(dir + "/ideas.db")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	parent := testIdea(t)
	require.NoError(t, s.Create(parent))

	child := parent
	child.ID = "child-id"
	child.Name = "branch"
	child.ParentIdeaID = parent.ID
	require.NoError(t, s.Create(child))

	got, err := s.Get("child-id")
	require.NoError(t, err)
	assert.Equal(t, parent.ID, got.ParentIdeaID)
}

func TestStageStoreInitialState(t *testing.T) {
	dir := t.TempDir()
	idea := testIdea(t)

	s, err := NewStageStore(dir, idea.ID, futures.StageRequirements)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	// missing snapshot yields an empty state, not an error
	state, found, err := s.InitialState()
	require.NoError(t, err)
	assert.False(t, found)
	assert.Empty(t, state.Knowledge)

	initial := futures.NewStageState(idea.ID, futures.StageRequirements)
	hash, err := s.WriteInitialState(initial, idea.CreatedAt)
	require.NoError(t, err)
	assert.NotEmpty(t, hash)

	state, found, err = s.InitialState()
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, idea.ID, state.IdeaID)

	wantHash, err := futures.HashState(state)
	require.NoError(t, err)
	assert.Equal(t, hash, wantHash, "stored snapshot must hash to the recorded digest")
}

func TestStageStoreChangeLogOrder(t *testing.T) {
	dir := t.TempDir()
	idea := testIdea(t)

	s, err := NewStageStore(dir, idea.ID, futures.StageRequirements)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	base := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	c1 := testChange(idea, futures.StageRequirements, futures.ChangeAssumptionAdded,
		futures.AssumptionAddedPayload{Text: "a1", Category: futures.CategoryMarket, Criticality: 0.5}, base)
	c2 := testChange(idea, futures.StageRequirements, futures.ChangeAssumptionAdded,
		futures.AssumptionAddedPayload{Text: "a2", Category: futures.CategoryMarket, Criticality: 0.5}, base.Add(time.Second))

	require.NoError(t, s.AppendChange(c2))
	require.NoError(t, s.AppendChange(c1))

	changes, err := s.Changes()
	require.NoError(t, err)
	require.Len(t, changes, 2)
	assert.Equal(t, c1.ChangeID, changes[0].ChangeID, "log must come back in timestamp order")
	assert.Equal(t, c2.ChangeID, changes[1].ChangeID)
	assert.Equal(t, futures.ChangeAssumptionAdded, changes[0].ChangeType)
}

func TestStageStoreKnowledgeLedger(t *testing.T) {
	dir := t.TempDir()
	idea := testIdea(t)
	now := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)

	s, err := NewStageStore(dir, idea.ID, futures.StageRequirements)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	item := futures.KnowledgeItem{
		IdeaID:        idea.ID,
		Stage:         futures.StageRequirements,
		ComponentName: "auth_api",
		ComponentType: futures.ComponentAPI,
		Specification: map[string]any{"endpoint": "/login"},
		Confidence:    0.8,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	change := testChange(idea, futures.StageRequirements, futures.ChangeKnowledgeAdded,
		futures.KnowledgeAddedPayload{ComponentName: "auth_api", ComponentType: futures.ComponentAPI, Confidence: 0.8}, now)

	require.NoError(t, s.InsertKnowledge(item, change))

	items, err := s.Knowledge()
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "auth_api", items[0].ComponentName)
	assert.Equal(t, "/login", items[0].Specification["endpoint"])

	// the same write also appended exactly one change record
	changes, err := s.Changes()
	require.NoError(t, err)
	assert.Len(t, changes, 1)

	conf := 0.95
	update := testChange(idea, futures.StageRequirements, futures.ChangeKnowledgeUpdated,
		futures.KnowledgeUpdatedPayload{ComponentName: "auth_api"}, now.Add(time.Second))
	require.NoError(t, s.UpdateKnowledge("auth_api", map[string]any{"endpoint": "/login", "mfa": true}, &conf, now.Add(time.Second), update))

	items, err = s.Knowledge()
	require.NoError(t, err)
	assert.Equal(t, 0.95, items[0].Confidence)
	assert.Equal(t, true, items[0].Specification["mfa"])

	err = s.UpdateKnowledge("ghost", nil, nil, now, update)
	var nf *futures.NotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestStageStoreAssumptionLedger(t *testing.T) {
	dir := t.TempDir()
	idea := testIdea(t)
	now := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)

	s, err := NewStageStore(dir, idea.ID, futures.StageRequirements)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	a := futures.WorldAssumption{
		IdeaID:      idea.ID,
		Text:        "users will pay",
		Category:    futures.CategoryMarket,
		Criticality: 0.9,
		CreatedAt:   now,
	}
	add := testChange(idea, futures.StageRequirements, futures.ChangeAssumptionAdded,
		futures.AssumptionAddedPayload{Text: a.Text, Category: a.Category, Criticality: a.Criticality}, now)
	require.NoError(t, s.InsertAssumption(a, add))

	validate := testChange(idea, futures.StageRequirements, futures.ChangeAssumptionValidated,
		futures.AssumptionValidatedPayload{Text: a.Text, Evidence: "20 LOIs"}, now.Add(time.Second))
	require.NoError(t, s.ValidateAssumption(a.Text, "20 LOIs", validate))

	items, err := s.Assumptions()
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.True(t, items[0].Validated)
	assert.Equal(t, "20 LOIs", items[0].ValidationEvidence)

	err = s.ValidateAssumption("ghost", "", validate)
	var nf *futures.NotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestStageStoreGoalLedger(t *testing.T) {
	dir := t.TempDir()
	idea := testIdea(t)
	now := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)

	s, err := NewStageStore(dir, idea.ID, futures.StageRequirements)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	g := futures.Goal{
		IdeaID:        idea.ID,
		Text:          "hit 100 signups",
		MetricName:    "signups",
		TargetValue:   100.0,
		Status:        futures.GoalNotStarted,
		ValidatorName: "numeric_threshold",
		CreatedAt:     now,
	}
	add := testChange(idea, futures.StageRequirements, futures.ChangeGoalAdded,
		futures.GoalAddedPayload{Text: g.Text, MetricName: g.MetricName, TargetValue: g.TargetValue}, now)
	require.NoError(t, s.InsertGoal(g, add))

	achieved := now.Add(time.Hour)
	status := testChange(idea, futures.StageRequirements, futures.ChangeGoalStatusChanged,
		futures.GoalStatusChangedPayload{Text: g.Text, Status: futures.GoalAchieved, ActualValue: 140.0}, achieved)
	require.NoError(t, s.SetGoalStatus(g.Text, futures.GoalAchieved, 140.0, &achieved, status))

	goals, err := s.Goals()
	require.NoError(t, err)
	require.Len(t, goals, 1)
	assert.Equal(t, futures.GoalAchieved, goals[0].Status)
	assert.Equal(t, 140.0, goals[0].CurrentValue)
	assert.Equal(t, "numeric_threshold", goals[0].ValidatorName)
	require.NotNil(t, goals[0].AchievedAt)
	assert.True(t, achieved.Equal(*goals[0].AchievedAt))
}
