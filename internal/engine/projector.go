package engine

import (
	"fmt"

	"github.com/alucardeht/futures-mcp/internal/futures"
	"github.com/alucardeht/futures-mcp/internal/store"
)

// project returns the current state of one stage log, replaying from
// the initial snapshot when no cached projection exists.
func (e *Engine) project(s *store.StageStore) (futures.StageState, error) {
	key := stageKey{ideaID: s.IdeaID(), stage: s.Stage()}
	if state, ok := e.cachedProjection(key); ok {
		return state, nil
	}

	initial, _, err := s.InitialState()
	if err != nil {
		return futures.StageState{}, err
	}
	changes, err := s.Changes()
	if err != nil {
		return futures.StageState{}, err
	}

	state, err := futures.Replay(initial, changes)
	if err != nil {
		return futures.StageState{}, err
	}
	e.storeProjection(key, state)
	return state, nil
}

// CurrentState replays one stage's change log into its present state.
func (e *Engine) CurrentState(ideaID string, stage futures.Stage) (futures.StageState, error) {
	if _, err := e.ideas.Get(ideaID); err != nil {
		return futures.StageState{}, err
	}
	s, err := e.stageStore(ideaID, stage)
	if err != nil {
		return futures.StageState{}, err
	}
	return e.project(s)
}

// StageHistory is the reproducibility contract made visible: the
// snapshot the stage started from, every recorded change in order, and
// the state they fold into.
type StageHistory struct {
	IdeaID       string                `json:"idea_id"`
	Stage        futures.Stage         `json:"stage"`
	InitialState futures.StageState    `json:"initial_state"`
	Changes      []futures.StateChange `json:"changes"`
	CurrentState futures.StageState    `json:"current_state"`
}

func (e *Engine) GetStageHistory(ideaID string, stage futures.Stage) (StageHistory, error) {
	if _, err := e.ideas.Get(ideaID); err != nil {
		return StageHistory{}, err
	}

	s, err := e.stageStore(ideaID, stage)
	if err != nil {
		return StageHistory{}, err
	}

	initial, _, err := s.InitialState()
	if err != nil {
		return StageHistory{}, err
	}
	changes, err := s.Changes()
	if err != nil {
		return StageHistory{}, err
	}
	current, err := futures.Replay(initial, changes)
	if err != nil {
		return StageHistory{}, err
	}

	return StageHistory{
		IdeaID:       ideaID,
		Stage:        stage,
		InitialState: initial,
		Changes:      changes,
		CurrentState: current,
	}, nil
}

// VerifyChain replays a stage log and checks every change's recorded
// hashes against the states actually produced. An error names the
// first change whose chain breaks.
func (e *Engine) VerifyChain(ideaID string, stage futures.Stage) error {
	if _, err := e.ideas.Get(ideaID); err != nil {
		return err
	}

	s, err := e.stageStore(ideaID, stage)
	if err != nil {
		return err
	}

	state, _, err := s.InitialState()
	if err != nil {
		return err
	}
	changes, err := s.Changes()
	if err != nil {
		return err
	}

	for i, c := range changes {
		beforeHash, err := futures.HashState(state)
		if err != nil {
			return err
		}
		if c.BeforeHash != beforeHash {
			return fmt.Errorf("chain broken at change %d (%s): recorded before-hash %s, replayed %s", i, c.ChangeID, c.BeforeHash, beforeHash)
		}

		next, err := futures.ApplyChange(state, c.ChangeType, c.Payload)
		if err != nil {
			return fmt.Errorf("chain broken at change %d (%s): %w", i, c.ChangeID, err)
		}

		afterHash, err := futures.HashState(next)
		if err != nil {
			return err
		}
		if c.AfterHash != afterHash {
			return fmt.Errorf("chain broken at change %d (%s): recorded after-hash %s, replayed %s", i, c.ChangeID, c.AfterHash, afterHash)
		}
		state = next
	}
	return nil
}
