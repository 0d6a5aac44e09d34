// Package engine owns idea identity, the stage-advancement gate, and
// the write path onto the per-stage change logs. One Engine instance
// holds all open stores; there is no global state. Writes to a given
// idea are serialized; reads may run concurrently.
package engine

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/alucardeht/futures-mcp/internal/futures"
	"github.com/alucardeht/futures-mcp/internal/logger"
	"github.com/alucardeht/futures-mcp/internal/store"
	"github.com/alucardeht/futures-mcp/internal/validator"
)

var log = logger.ForComponent("engine")

// GatePolicy is the configurable rule deciding whether an idea may
// advance. The 0.8 threshold is policy, not law.
type GatePolicy struct {
	CriticalCutoff       float64
	CriticalValidatedMin float64
	RequireKnowledge     bool
}

func DefaultGatePolicy() GatePolicy {
	return GatePolicy{
		CriticalCutoff:       0.7,
		CriticalValidatedMin: 0.8,
		RequireKnowledge:     true,
	}
}

type Options struct {
	DataDir    string
	Policy     GatePolicy
	Validators *validator.Registry
}

type stageKey struct {
	ideaID string
	stage  futures.Stage
}

type Engine struct {
	dataDir    string
	policy     GatePolicy
	validators *validator.Registry
	ideas      *store.IdeaStore

	mu          sync.Mutex
	stages      map[stageKey]*store.StageStore
	ideaLocks   map[string]*sync.Mutex
	projections map[stageKey]futures.StageState
}

// Open builds an engine over the data directory, creating it if
// needed. Stage stores open lazily on first touch and stay cached
// until Close.
func Open(opts Options) (*Engine, error) {
	if opts.DataDir == "" {
		return nil, fmt.Errorf("engine: data dir is required")
	}
	if opts.Validators == nil {
		opts.Validators = validator.NewDefaultRegistry()
	}
	if opts.Policy == (GatePolicy{}) {
		opts.Policy = DefaultGatePolicy()
	}

	if err := os.MkdirAll(opts.DataDir, 0700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	ideas, err := store.NewIdeaStore(store.IdeasPath(opts.DataDir))
	if err != nil {
		return nil, fmt.Errorf("open idea store: %w", err)
	}

	return &Engine{
		dataDir:     opts.DataDir,
		policy:      opts.Policy,
		validators:  opts.Validators,
		ideas:       ideas,
		stages:      make(map[stageKey]*store.StageStore),
		ideaLocks:   make(map[string]*sync.Mutex),
		projections: make(map[stageKey]futures.StageState),
	}, nil
}

func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for key, s := range e.stages {
		if err := s.Close(); err != nil {
			log.Warn("closing stage store", "idea_id", key.ideaID, "stage", key.stage, "error", err)
		}
		delete(e.stages, key)
	}
	return e.ideas.Close()
}

func (e *Engine) Validators() *validator.Registry { return e.validators }
func (e *Engine) Policy() GatePolicy              { return e.policy }
func (e *Engine) DataDir() string                 { return e.dataDir }

func (e *Engine) ideaLock(ideaID string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.ideaLocks[ideaID]
	if !ok {
		l = &sync.Mutex{}
		e.ideaLocks[ideaID] = l
	}
	return l
}

func (e *Engine) stageStore(ideaID string, stage futures.Stage) (*store.StageStore, error) {
	key := stageKey{ideaID: ideaID, stage: stage}

	e.mu.Lock()
	defer e.mu.Unlock()
	if s, ok := e.stages[key]; ok {
		return s, nil
	}

	s, err := store.NewStageStore(e.dataDir, ideaID, stage)
	if err != nil {
		return nil, fmt.Errorf("open stage store %s/%s: %w", ideaID, stage, err)
	}
	e.stages[key] = s
	return s, nil
}

// InvalidateProjection drops the cached projection for one stage log.
// The data-dir watcher calls this when a stage database changes on
// disk; the next read replays the log from storage.
func (e *Engine) InvalidateProjection(ideaID string, stage futures.Stage) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.projections, stageKey{ideaID: ideaID, stage: stage})
}

func (e *Engine) cachedProjection(key stageKey) (futures.StageState, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	state, ok := e.projections[key]
	return state, ok
}

func (e *Engine) storeProjection(key stageKey, state futures.StageState) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.projections[key] = state
}

// CreateIdea spawns a possible future at the first stage with maximal
// uncertainty. A parent reference establishes lineage only: the branch
// starts from seven empty change logs of its own.
func (e *Engine) CreateIdea(name, description, parentID string) (futures.Idea, error) {
	if parentID != "" {
		if _, err := e.ideas.Get(parentID); err != nil {
			return futures.Idea{}, err
		}
	}

	now := time.Now().UTC()
	idea := futures.Idea{
		ID:               futures.NewIdeaID(name, description, now),
		Name:             name,
		Description:      description,
		CreatedAt:        now,
		CurrentStage:     futures.Stages[0],
		UncertaintyLevel: futures.UncertaintyVeryHigh,
		ParentIdeaID:     parentID,
	}

	if err := e.ideas.Create(idea); err != nil {
		return futures.Idea{}, err
	}

	for _, stage := range futures.Stages {
		s, err := e.stageStore(idea.ID, stage)
		if err != nil {
			return futures.Idea{}, err
		}
		initial := futures.NewStageState(idea.ID, stage)
		if _, err := s.WriteInitialState(initial, now); err != nil {
			return futures.Idea{}, err
		}
	}

	log.Info("idea spawned", "idea_id", idea.ID, "name", name, "parent", parentID)
	return idea, nil
}

// GetIdea returns the registry row for one idea.
func (e *Engine) GetIdea(ideaID string) (futures.Idea, error) {
	return e.ideas.Get(ideaID)
}

// ListIdeas returns summaries of every idea in creation order.
func (e *Engine) ListIdeas() ([]futures.IdeaSummary, error) {
	ideas, err := e.ideas.List()
	if err != nil {
		return nil, err
	}

	summaries := make([]futures.IdeaSummary, 0, len(ideas))
	for _, idea := range ideas {
		summaries = append(summaries, futures.IdeaSummary{
			ID:               idea.ID,
			Name:             idea.Name,
			Description:      idea.Description,
			CurrentStage:     idea.CurrentStage,
			UncertaintyLevel: idea.UncertaintyLevel,
			ParentIdeaID:     idea.ParentIdeaID,
		})
	}
	return summaries, nil
}

// AddKnowledge records a known fact about the system at the idea's
// current stage.
func (e *Engine) AddKnowledge(ideaID, componentName string, componentType futures.ComponentType, spec map[string]any, confidence float64) (futures.KnowledgeItem, error) {
	idea, err := e.ideas.Get(ideaID)
	if err != nil {
		return futures.KnowledgeItem{}, err
	}

	lock := e.ideaLock(ideaID)
	lock.Lock()
	defer lock.Unlock()

	now := time.Now().UTC()
	item := futures.KnowledgeItem{
		IdeaID:        ideaID,
		Stage:         idea.CurrentStage,
		ComponentName: componentName,
		ComponentType: componentType,
		Specification: spec,
		Confidence:    confidence,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := item.Validate(); err != nil {
		return futures.KnowledgeItem{}, err
	}

	s, err := e.stageStore(ideaID, idea.CurrentStage)
	if err != nil {
		return futures.KnowledgeItem{}, err
	}

	change, next, err := e.prepareChange(s, futures.ChangeKnowledgeAdded, futures.KnowledgeAddedPayload{
		ComponentName: componentName,
		ComponentType: componentType,
		Specification: spec,
		Confidence:    confidence,
	}, now)
	if err != nil {
		return futures.KnowledgeItem{}, err
	}

	if err := s.InsertKnowledge(item, change); err != nil {
		return futures.KnowledgeItem{}, err
	}
	e.storeProjection(stageKey{ideaID, idea.CurrentStage}, next)

	return item, nil
}

// UpdateKnowledge deep-merges a partial specification into the latest
// knowledge entry for a component. A merge conflict is rejected before
// anything is written.
func (e *Engine) UpdateKnowledge(ideaID, componentName string, spec map[string]any, confidence *float64) (futures.KnowledgeItem, error) {
	idea, err := e.ideas.Get(ideaID)
	if err != nil {
		return futures.KnowledgeItem{}, err
	}
	if confidence != nil && (*confidence < 0 || *confidence > 1) {
		return futures.KnowledgeItem{}, &futures.InvalidKnowledgeError{Field: "confidence", Value: *confidence}
	}

	lock := e.ideaLock(ideaID)
	lock.Lock()
	defer lock.Unlock()

	s, err := e.stageStore(ideaID, idea.CurrentStage)
	if err != nil {
		return futures.KnowledgeItem{}, err
	}

	now := time.Now().UTC()
	change, next, err := e.prepareChange(s, futures.ChangeKnowledgeUpdated, futures.KnowledgeUpdatedPayload{
		ComponentName: componentName,
		Specification: spec,
		Confidence:    confidence,
	}, now)
	if err != nil {
		return futures.KnowledgeItem{}, err
	}

	// the projector already merged; persist the merged spec it computed
	var merged map[string]any
	for i := len(next.Knowledge) - 1; i >= 0; i-- {
		if next.Knowledge[i].ComponentName == componentName {
			merged = next.Knowledge[i].Specification
			break
		}
	}

	if err := s.UpdateKnowledge(componentName, merged, confidence, now, change); err != nil {
		return futures.KnowledgeItem{}, err
	}
	e.storeProjection(stageKey{ideaID, idea.CurrentStage}, next)

	items, err := s.Knowledge()
	if err != nil {
		return futures.KnowledgeItem{}, err
	}
	for i := len(items) - 1; i >= 0; i-- {
		if items[i].ComponentName == componentName {
			return items[i], nil
		}
	}
	return futures.KnowledgeItem{}, &futures.NotFoundError{Kind: "knowledge component", ID: componentName}
}

// AddAssumption records a hypothesis about the world at the idea's
// current stage.
func (e *Engine) AddAssumption(ideaID, text string, category futures.AssumptionCategory, criticality float64) (futures.WorldAssumption, error) {
	idea, err := e.ideas.Get(ideaID)
	if err != nil {
		return futures.WorldAssumption{}, err
	}

	lock := e.ideaLock(ideaID)
	lock.Lock()
	defer lock.Unlock()

	now := time.Now().UTC()
	assumption := futures.WorldAssumption{
		IdeaID:      ideaID,
		Text:        text,
		Category:    category,
		Criticality: criticality,
		CreatedAt:   now,
	}
	if err := assumption.Validate(); err != nil {
		return futures.WorldAssumption{}, err
	}

	s, err := e.stageStore(ideaID, idea.CurrentStage)
	if err != nil {
		return futures.WorldAssumption{}, err
	}

	change, next, err := e.prepareChange(s, futures.ChangeAssumptionAdded, futures.AssumptionAddedPayload{
		Text:        text,
		Category:    category,
		Criticality: criticality,
	}, now)
	if err != nil {
		return futures.WorldAssumption{}, err
	}

	if err := s.InsertAssumption(assumption, change); err != nil {
		return futures.WorldAssumption{}, err
	}
	e.storeProjection(stageKey{ideaID, idea.CurrentStage}, next)

	return assumption, nil
}

// ValidateAssumption marks an assumption validated with supporting
// evidence. This is what unblocks the stage gate for critical
// assumptions.
func (e *Engine) ValidateAssumption(ideaID, text, evidence string) (futures.WorldAssumption, error) {
	idea, err := e.ideas.Get(ideaID)
	if err != nil {
		return futures.WorldAssumption{}, err
	}

	lock := e.ideaLock(ideaID)
	lock.Lock()
	defer lock.Unlock()

	s, err := e.stageStore(ideaID, idea.CurrentStage)
	if err != nil {
		return futures.WorldAssumption{}, err
	}

	now := time.Now().UTC()
	change, next, err := e.prepareChange(s, futures.ChangeAssumptionValidated, futures.AssumptionValidatedPayload{
		Text:     text,
		Evidence: evidence,
	}, now)
	if err != nil {
		return futures.WorldAssumption{}, err
	}

	if err := s.ValidateAssumption(text, evidence, change); err != nil {
		return futures.WorldAssumption{}, err
	}
	e.storeProjection(stageKey{ideaID, idea.CurrentStage}, next)

	assumptions, err := s.Assumptions()
	if err != nil {
		return futures.WorldAssumption{}, err
	}
	for _, a := range assumptions {
		if a.Text == text {
			return a, nil
		}
	}
	return futures.WorldAssumption{}, &futures.NotFoundError{Kind: "assumption", ID: text}
}

// AddGoal records a measurable outcome at the idea's current stage.
// The validator name is not resolved here: goals may be declared
// before their validator is registered.
func (e *Engine) AddGoal(ideaID, text, metricName string, targetValue any, validatorName string) (futures.Goal, error) {
	idea, err := e.ideas.Get(ideaID)
	if err != nil {
		return futures.Goal{}, err
	}

	lock := e.ideaLock(ideaID)
	lock.Lock()
	defer lock.Unlock()

	now := time.Now().UTC()
	goal := futures.Goal{
		IdeaID:        ideaID,
		Text:          text,
		MetricName:    metricName,
		TargetValue:   targetValue,
		Status:        futures.GoalNotStarted,
		ValidatorName: validatorName,
		CreatedAt:     now,
	}
	if err := goal.Validate(); err != nil {
		return futures.Goal{}, err
	}

	s, err := e.stageStore(ideaID, idea.CurrentStage)
	if err != nil {
		return futures.Goal{}, err
	}

	change, next, err := e.prepareChange(s, futures.ChangeGoalAdded, futures.GoalAddedPayload{
		Text:        text,
		MetricName:  metricName,
		TargetValue: targetValue,
	}, now)
	if err != nil {
		return futures.Goal{}, err
	}

	if err := s.InsertGoal(goal, change); err != nil {
		return futures.Goal{}, err
	}
	e.storeProjection(stageKey{ideaID, idea.CurrentStage}, next)

	return goal, nil
}

// CheckGoals runs every goal of the current stage against the supplied
// metrics. A goal whose validator name is unregistered is a
// configuration error and aborts the call; a metric missing from the
// context is just a failed result. Goals passing for the first time
// are marked achieved, which appends a goal_status_changed record.
func (e *Engine) CheckGoals(ideaID string, metrics map[string]any) (map[string]validator.Result, error) {
	idea, err := e.ideas.Get(ideaID)
	if err != nil {
		return nil, err
	}

	lock := e.ideaLock(ideaID)
	lock.Lock()
	defer lock.Unlock()

	s, err := e.stageStore(ideaID, idea.CurrentStage)
	if err != nil {
		return nil, err
	}

	goals, err := s.Goals()
	if err != nil {
		return nil, err
	}

	results := make(map[string]validator.Result, len(goals))
	for _, goal := range goals {
		if goal.ValidatorName == "" {
			results[goal.Text] = validator.Result{Passed: false, Message: "no validator function specified"}
			continue
		}

		v, ok := e.validators.Get(goal.ValidatorName)
		if !ok {
			return nil, &futures.ValidationConfigError{ValidatorName: goal.ValidatorName, GoalText: goal.Text}
		}

		result := v.Validate(goal.TargetValue, validator.Context{
			MetricName: goal.MetricName,
			Metrics:    metrics,
		})
		results[goal.Text] = result

		if result.Passed && goal.Status != futures.GoalAchieved {
			now := time.Now().UTC()
			change, next, err := e.prepareChange(s, futures.ChangeGoalStatusChanged, futures.GoalStatusChangedPayload{
				Text:        goal.Text,
				Status:      futures.GoalAchieved,
				ActualValue: result.ActualValue,
			}, now)
			if err != nil {
				return nil, err
			}
			if err := s.SetGoalStatus(goal.Text, futures.GoalAchieved, result.ActualValue, &now, change); err != nil {
				return nil, err
			}
			e.storeProjection(stageKey{ideaID, idea.CurrentStage}, next)
			log.Info("goal achieved", "idea_id", ideaID, "goal", goal.Text, "actual", result.ActualValue)
		}
	}

	return results, nil
}

// Status is the comprehensive view of one idea: its registry row plus
// the derived health of its current stage.
type Status struct {
	Idea   futures.Idea   `json:"idea"`
	Health futures.Health `json:"health"`
}

func (e *Engine) GetStatus(ideaID string) (Status, error) {
	idea, err := e.ideas.Get(ideaID)
	if err != nil {
		return Status{}, err
	}

	s, err := e.stageStore(ideaID, idea.CurrentStage)
	if err != nil {
		return Status{}, err
	}

	knowledge, err := s.Knowledge()
	if err != nil {
		return Status{}, err
	}
	assumptions, err := s.Assumptions()
	if err != nil {
		return Status{}, err
	}
	goals, err := s.Goals()
	if err != nil {
		return Status{}, err
	}

	return Status{
		Idea:   idea,
		Health: futures.DeriveHealth(knowledge, assumptions, goals, e.policy.CriticalCutoff),
	}, nil
}

// AdvanceResult reports a gate decision. A refused gate is a normal
// result, not an error: callers validate more assumptions and retry.
type AdvanceResult struct {
	Success       bool          `json:"success"`
	PreviousStage futures.Stage `json:"previous_stage"`
	CurrentStage  futures.Stage `json:"current_stage"`
	Message       string        `json:"message"`
}

// AdvanceStage evaluates the gate against the current stage's ledgers
// and, when it holds, moves the idea forward, appends a stage_advanced
// record to the new stage's log, and recomputes uncertainty. A failed
// gate leaves every byte of state untouched, so retrying is harmless.
func (e *Engine) AdvanceStage(ideaID string) (AdvanceResult, error) {
	idea, err := e.ideas.Get(ideaID)
	if err != nil {
		return AdvanceResult{}, err
	}

	lock := e.ideaLock(ideaID)
	lock.Lock()
	defer lock.Unlock()

	refused := func(msg string) AdvanceResult {
		return AdvanceResult{
			Success:       false,
			PreviousStage: idea.CurrentStage,
			CurrentStage:  idea.CurrentStage,
			Message:       msg,
		}
	}

	next, ok := idea.CurrentStage.Next()
	if !ok {
		return refused(fmt.Sprintf("%s is the terminal stage", idea.CurrentStage.Label())), nil
	}

	s, err := e.stageStore(ideaID, idea.CurrentStage)
	if err != nil {
		return AdvanceResult{}, err
	}

	if e.policy.RequireKnowledge {
		knowledge, err := s.Knowledge()
		if err != nil {
			return AdvanceResult{}, err
		}
		if len(knowledge) == 0 {
			return refused(fmt.Sprintf("cannot leave %s: no knowledge recorded yet", idea.CurrentStage.Label())), nil
		}
	}

	assumptions, err := s.Assumptions()
	if err != nil {
		return AdvanceResult{}, err
	}
	var critical, criticalValidated int
	for _, a := range assumptions {
		if a.Criticality > e.policy.CriticalCutoff {
			critical++
			if a.Validated {
				criticalValidated++
			}
		}
	}
	if critical > 0 {
		ratio := float64(criticalValidated) / float64(critical)
		if ratio < e.policy.CriticalValidatedMin {
			return refused(fmt.Sprintf(
				"cannot leave %s: %d of %d critical assumptions validated (need %.0f%%)",
				idea.CurrentStage.Label(), criticalValidated, critical, e.policy.CriticalValidatedMin*100,
			)), nil
		}
	}

	// gate holds: recompute uncertainty from the new stage's ledger and
	// record the transition in the new stage's log
	nextStore, err := e.stageStore(ideaID, next)
	if err != nil {
		return AdvanceResult{}, err
	}
	nextAssumptions, err := nextStore.Assumptions()
	if err != nil {
		return AdvanceResult{}, err
	}
	validated := 0
	for _, a := range nextAssumptions {
		if a.Validated {
			validated++
		}
	}
	uncertainty := futures.ComputeUncertainty(next, validated, len(nextAssumptions))

	now := time.Now().UTC()
	change, nextState, err := e.prepareChange(nextStore, futures.ChangeStageAdvanced, futures.StageAdvancedPayload{
		Stage:            next,
		UncertaintyLevel: uncertainty,
	}, now)
	if err != nil {
		return AdvanceResult{}, err
	}
	if err := nextStore.AppendChange(change); err != nil {
		return AdvanceResult{}, err
	}
	e.storeProjection(stageKey{ideaID, next}, nextState)

	if err := e.ideas.SetStage(ideaID, next, uncertainty); err != nil {
		return AdvanceResult{}, err
	}

	log.Info("stage advanced", "idea_id", ideaID, "from", idea.CurrentStage, "to", next, "uncertainty", uncertainty)
	return AdvanceResult{
		Success:       true,
		PreviousStage: idea.CurrentStage,
		CurrentStage:  next,
		Message:       fmt.Sprintf("advanced to %s", next.Label()),
	}, nil
}

// prepareChange projects the current state, applies the payload, and
// builds the chained change record. Nothing is written here: a payload
// that cannot apply (MalformedChangeError) never reaches storage.
func (e *Engine) prepareChange(s *store.StageStore, changeType futures.ChangeType, payload any, ts time.Time) (futures.StateChange, futures.StageState, error) {
	state, err := e.project(s)
	if err != nil {
		return futures.StateChange{}, futures.StageState{}, err
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return futures.StateChange{}, futures.StageState{}, fmt.Errorf("marshal %s payload: %w", changeType, err)
	}

	beforeHash, err := futures.HashState(state)
	if err != nil {
		return futures.StateChange{}, futures.StageState{}, err
	}

	next, err := futures.ApplyChange(state, changeType, raw)
	if err != nil {
		return futures.StateChange{}, futures.StageState{}, err
	}

	afterHash, err := futures.HashState(next)
	if err != nil {
		return futures.StateChange{}, futures.StageState{}, err
	}

	return futures.StateChange{
		ChangeID:   futures.NewChangeID(s.IdeaID(), ts, changeType),
		IdeaID:     s.IdeaID(),
		Stage:      s.Stage(),
		Timestamp:  ts,
		ChangeType: changeType,
		Payload:    raw,
		BeforeHash: beforeHash,
		AfterHash:  afterHash,
	}, next, nil
}
