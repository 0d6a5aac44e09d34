package engine

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alucardeht/futures-mcp/internal/futures"
	"github.com/alucardeht/futures-mcp/internal/validator"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := Open(Options{DataDir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	return e
}

func addKnowledge(t *testing.T, e *Engine, ideaID string) {
	t.Helper()
	_, err := e.AddKnowledge(ideaID, "api_gateway", futures.ComponentAPI,
		map[string]any{"protocol": "grpc"}, 0.9)
	require.NoError(t, err)
}

func TestCreateIdeaStartsAtFirstStage(t *testing.T) {
	e := newTestEngine(t)

	idea, err := e.CreateIdea("realtime sync", "sync engine for offline-first clients", "")
	require.NoError(t, err)

	assert.Equal(t, futures.StageRequirements, idea.CurrentStage)
	assert.Equal(t, futures.UncertaintyVeryHigh, idea.UncertaintyLevel)
	assert.Len(t, idea.ID, 16)

	// every stage gets an initial snapshot up front
	for _, stage := range futures.Stages {
		state, err := e.CurrentState(idea.ID, stage)
		require.NoError(t, err)
		assert.Empty(t, state.Knowledge)
		assert.Empty(t, state.Assumptions)
		assert.Empty(t, state.Goals)
	}
}

func TestCreateIdeaUnknownParent(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.CreateIdea("branch", "fork of nothing", "deadbeef00000000")
	var nf *futures.NotFoundError
	require.ErrorAs(t, err, &nf)
}

func TestBranchStartsEmpty(t *testing.T) {
	e := newTestEngine(t)

	parent, err := e.CreateIdea("parent", "the original direction", "")
	require.NoError(t, err)
	addKnowledge(t, e, parent.ID)

	child, err := e.CreateIdea("branch", "what if we use CRDTs instead", parent.ID)
	require.NoError(t, err)
	assert.Equal(t, parent.ID, child.ParentIdeaID)

	// lineage only: the branch inherits no state
	state, err := e.CurrentState(child.ID, futures.StageRequirements)
	require.NoError(t, err)
	assert.Empty(t, state.Knowledge)

	parentState, err := e.CurrentState(parent.ID, futures.StageRequirements)
	require.NoError(t, err)
	assert.Len(t, parentState.Knowledge, 1)
}

func TestAdvanceRefusedWithoutKnowledge(t *testing.T) {
	e := newTestEngine(t)

	idea, err := e.CreateIdea("thin idea", "nothing known yet", "")
	require.NoError(t, err)

	before, err := e.GetStageHistory(idea.ID, futures.StageRequirements)
	require.NoError(t, err)

	res, err := e.AdvanceStage(idea.ID)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, futures.StageRequirements, res.CurrentStage)
	assert.Contains(t, res.Message, "no knowledge")

	// a refused gate writes nothing: retrying observes identical state
	after, err := e.GetStageHistory(idea.ID, futures.StageRequirements)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	res2, err := e.AdvanceStage(idea.ID)
	require.NoError(t, err)
	assert.Equal(t, res, res2)
}

func TestAdvanceCriticalAssumptionGate(t *testing.T) {
	e := newTestEngine(t)

	idea, err := e.CreateIdea("gated", "needs validation before moving", "")
	require.NoError(t, err)
	addKnowledge(t, e, idea.ID)

	// criticality > 0.7 marks an assumption critical: three of these five
	texts := []string{"v1", "v2", "v3", "v4", "v5"}
	crits := []float64{0.9, 0.8, 0.75, 0.5, 0.3}
	for i, text := range texts {
		_, err := e.AddAssumption(idea.ID, text, futures.CategoryMarket, crits[i])
		require.NoError(t, err)
	}

	for _, text := range []string{"v1", "v2"} {
		_, err := e.ValidateAssumption(idea.ID, text, "user interviews")
		require.NoError(t, err)
	}

	// 2 of 3 critical validated is below the 0.8 bar
	res, err := e.AdvanceStage(idea.ID)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "2 of 3")

	_, err = e.ValidateAssumption(idea.ID, "v3", "load test results")
	require.NoError(t, err)

	res, err = e.AdvanceStage(idea.ID)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, futures.StageRequirements, res.PreviousStage)
	assert.Equal(t, futures.StageAnalysis, res.CurrentStage)

	// the transition is recorded in the new stage's log
	hist, err := e.GetStageHistory(idea.ID, futures.StageAnalysis)
	require.NoError(t, err)
	require.Len(t, hist.Changes, 1)
	assert.Equal(t, futures.ChangeStageAdvanced, hist.Changes[0].ChangeType)

	updated, err := e.GetIdea(idea.ID)
	require.NoError(t, err)
	assert.Equal(t, futures.StageAnalysis, updated.CurrentStage)
	// analysis base score 4, no penalty when the new stage has no assumptions
	assert.Equal(t, futures.UncertaintyHigh, updated.UncertaintyLevel)
}

func TestAdvanceTerminalStage(t *testing.T) {
	e := newTestEngine(t)

	idea, err := e.CreateIdea("shipped", "walk it to the end", "")
	require.NoError(t, err)

	for range futures.Stages[:len(futures.Stages)-1] {
		addKnowledge(t, e, idea.ID)
		res, err := e.AdvanceStage(idea.ID)
		require.NoError(t, err)
		require.True(t, res.Success, res.Message)
	}

	res, err := e.AdvanceStage(idea.ID)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, futures.StageDeployment, res.CurrentStage)
	assert.Contains(t, res.Message, "terminal")
}

func TestUpdateKnowledgeDeepMerge(t *testing.T) {
	e := newTestEngine(t)

	idea, err := e.CreateIdea("merge", "spec grows over time", "")
	require.NoError(t, err)

	_, err = e.AddKnowledge(idea.ID, "store", futures.ComponentDatabase,
		map[string]any{"engine": "sqlite", "tuning": map[string]any{"wal": true}}, 0.6)
	require.NoError(t, err)

	conf := 0.8
	item, err := e.UpdateKnowledge(idea.ID, "store",
		map[string]any{"tuning": map[string]any{"busy_timeout_ms": 5000}}, &conf)
	require.NoError(t, err)

	assert.Equal(t, 0.8, item.Confidence)
	tuning := item.Specification["tuning"].(map[string]any)
	assert.Equal(t, true, tuning["wal"])
	assert.EqualValues(t, 5000, tuning["busy_timeout_ms"])

	hist, err := e.GetStageHistory(idea.ID, futures.StageRequirements)
	require.NoError(t, err)
	assert.Len(t, hist.Changes, 2)
}

func TestUpdateKnowledgeConflictWritesNothing(t *testing.T) {
	e := newTestEngine(t)

	idea, err := e.CreateIdea("conflict", "map vs scalar collision", "")
	require.NoError(t, err)

	_, err = e.AddKnowledge(idea.ID, "store", futures.ComponentDatabase,
		map[string]any{"tuning": map[string]any{"wal": true}}, 0.6)
	require.NoError(t, err)

	before, err := e.GetStageHistory(idea.ID, futures.StageRequirements)
	require.NoError(t, err)

	_, err = e.UpdateKnowledge(idea.ID, "store", map[string]any{"tuning": "fast"}, nil)
	var malformed *futures.MalformedChangeError
	require.ErrorAs(t, err, &malformed)

	after, err := e.GetStageHistory(idea.ID, futures.StageRequirements)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestUpdateKnowledgeUnknownComponent(t *testing.T) {
	e := newTestEngine(t)

	idea, err := e.CreateIdea("missing", "update before add", "")
	require.NoError(t, err)

	_, err = e.UpdateKnowledge(idea.ID, "ghost", map[string]any{"x": 1}, nil)
	var malformed *futures.MalformedChangeError
	require.ErrorAs(t, err, &malformed)
}

func TestCheckGoalsDispatch(t *testing.T) {
	e := newTestEngine(t)

	idea, err := e.CreateIdea("measured", "latency target", "")
	require.NoError(t, err)

	_, err = e.AddGoal(idea.ID, "p95 under budget", "latency_p95", 100.0, "numeric_threshold")
	require.NoError(t, err)

	results, err := e.CheckGoals(idea.ID, map[string]any{"latency_p95": 85.0})
	require.NoError(t, err)

	res := results["p95 under budget"]
	assert.False(t, res.Passed)
	assert.Equal(t, 85.0, res.ActualValue)
}

func TestCheckGoalsAchievementIsRecorded(t *testing.T) {
	e := newTestEngine(t)

	idea, err := e.CreateIdea("winner", "goal that passes", "")
	require.NoError(t, err)

	_, err = e.AddGoal(idea.ID, "conversion holds", "signup_rate", 0.05, "percentage")
	require.NoError(t, err)

	results, err := e.CheckGoals(idea.ID, map[string]any{"signup_rate": 0.07})
	require.NoError(t, err)
	assert.True(t, results["conversion holds"].Passed)

	hist, err := e.GetStageHistory(idea.ID, futures.StageRequirements)
	require.NoError(t, err)
	require.Len(t, hist.Changes, 2)
	assert.Equal(t, futures.ChangeGoalStatusChanged, hist.Changes[1].ChangeType)
	require.Len(t, hist.CurrentState.Goals, 1)
	assert.Equal(t, futures.GoalAchieved, hist.CurrentState.Goals[0].Status)

	// a second check sees the goal already achieved and appends nothing
	_, err = e.CheckGoals(idea.ID, map[string]any{"signup_rate": 0.07})
	require.NoError(t, err)
	hist2, err := e.GetStageHistory(idea.ID, futures.StageRequirements)
	require.NoError(t, err)
	assert.Len(t, hist2.Changes, 2)
}

func TestCheckGoalsMissingMetric(t *testing.T) {
	e := newTestEngine(t)

	idea, err := e.CreateIdea("unmeasured", "metric not collected yet", "")
	require.NoError(t, err)

	_, err = e.AddGoal(idea.ID, "throughput", "rps", 1000.0, "numeric_threshold")
	require.NoError(t, err)

	results, err := e.CheckGoals(idea.ID, map[string]any{"other": 5})
	require.NoError(t, err)
	res := results["throughput"]
	assert.False(t, res.Passed)
	assert.Contains(t, res.Message, "rps")
}

func TestCheckGoalsUnknownValidator(t *testing.T) {
	e := newTestEngine(t)

	idea, err := e.CreateIdea("misconfigured", "validator never registered", "")
	require.NoError(t, err)

	_, err = e.AddGoal(idea.ID, "vibes", "vibe_score", 10.0, "vibes_check")
	require.NoError(t, err)

	_, err = e.CheckGoals(idea.ID, map[string]any{"vibe_score": 11.0})
	var cfg *futures.ValidationConfigError
	require.ErrorAs(t, err, &cfg)
	assert.Equal(t, "vibes_check", cfg.ValidatorName)
}

func TestCheckGoalsCustomValidator(t *testing.T) {
	reg := validator.NewDefaultRegistry()
	require.NoError(t, reg.Register(exactMatch{}))

	e, err := Open(Options{DataDir: t.TempDir(), Validators: reg})
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })

	idea, err := e.CreateIdea("custom", "domain-specific check", "")
	require.NoError(t, err)

	_, err = e.AddGoal(idea.ID, "region pinned", "region", "eu-west-1", "exact_match")
	require.NoError(t, err)

	results, err := e.CheckGoals(idea.ID, map[string]any{"region": "eu-west-1"})
	require.NoError(t, err)
	assert.True(t, results["region pinned"].Passed)
}

type exactMatch struct{}

func (exactMatch) Name() string { return "exact_match" }

func (exactMatch) Validate(target any, ctx validator.Context) validator.Result {
	actual, ok := ctx.Metrics[ctx.MetricName]
	if !ok {
		return validator.Result{Passed: false, Message: "metric missing"}
	}
	return validator.Result{Passed: actual == target, ActualValue: actual}
}

func TestGetStatusDerivesHealth(t *testing.T) {
	e := newTestEngine(t)

	idea, err := e.CreateIdea("healthy", "everything validated", "")
	require.NoError(t, err)
	addKnowledge(t, e, idea.ID)

	_, err = e.AddAssumption(idea.ID, "users want this", futures.CategoryUserBehavior, 0.9)
	require.NoError(t, err)
	_, err = e.ValidateAssumption(idea.ID, "users want this", "beta waitlist")
	require.NoError(t, err)

	status, err := e.GetStatus(idea.ID)
	require.NoError(t, err)
	assert.Equal(t, idea.ID, status.Idea.ID)
	assert.Equal(t, 1, status.Health.TotalKnowledgeItems)
	assert.Equal(t, 1.0, status.Health.AssumptionValidationRate)
	assert.InDelta(t, 0.9, status.Health.AverageConfidence, 1e-9)
}

func TestVerifyChain(t *testing.T) {
	e := newTestEngine(t)

	idea, err := e.CreateIdea("chained", "hashes must line up", "")
	require.NoError(t, err)

	addKnowledge(t, e, idea.ID)
	_, err = e.AddAssumption(idea.ID, "grpc is fine", futures.CategoryTechnology, 0.8)
	require.NoError(t, err)
	_, err = e.ValidateAssumption(idea.ID, "grpc is fine", "spike results")
	require.NoError(t, err)
	_, err = e.AddGoal(idea.ID, "launch", "done", 1.0, "boolean")
	require.NoError(t, err)

	require.NoError(t, e.VerifyChain(idea.ID, futures.StageRequirements))

	hist, err := e.GetStageHistory(idea.ID, futures.StageRequirements)
	require.NoError(t, err)
	require.Len(t, hist.Changes, 4)
	for i := 1; i < len(hist.Changes); i++ {
		assert.Equal(t, hist.Changes[i-1].AfterHash, hist.Changes[i].BeforeHash)
	}

	// projection from cache and replay from disk agree
	e.InvalidateProjection(idea.ID, futures.StageRequirements)
	replayed, err := e.CurrentState(idea.ID, futures.StageRequirements)
	require.NoError(t, err)
	assert.Equal(t, hist.CurrentState, replayed)
}

func TestListIdeas(t *testing.T) {
	e := newTestEngine(t)

	a, err := e.CreateIdea("first", "one", "")
	require.NoError(t, err)
	b, err := e.CreateIdea("second", "two", a.ID)
	require.NoError(t, err)

	summaries, err := e.ListIdeas()
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, a.ID, summaries[0].ID)
	assert.Equal(t, b.ID, summaries[1].ID)
	assert.Equal(t, a.ID, summaries[1].ParentIdeaID)
}

func TestOperationsOnUnknownIdea(t *testing.T) {
	e := newTestEngine(t)

	var nf *futures.NotFoundError
	_, err := e.AddKnowledge("nope", "c", futures.ComponentAPI, nil, 0.5)
	require.True(t, errors.As(err, &nf))
	_, err = e.GetStatus("nope")
	require.True(t, errors.As(err, &nf))
	_, err = e.AdvanceStage("nope")
	require.True(t, errors.As(err, &nf))
}
