package futures

import "fmt"

// NotFoundError reports an unknown idea, stage, or ledger entry
// reference.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

// MalformedChangeError reports a change payload that cannot be applied
// to the current state, e.g. a type conflict during a deep merge. A
// malformed change is rejected at write time and never partially
// applied.
type MalformedChangeError struct {
	ChangeType ChangeType
	Reason     string
}

func (e *MalformedChangeError) Error() string {
	return fmt.Sprintf("malformed %s change: %s", e.ChangeType, e.Reason)
}

// ValidationConfigError reports a goal that references a validator
// name nobody registered. Surfaced when goals are checked, not when
// the goal is declared, so goals may be written before their validator
// is wired up.
type ValidationConfigError struct {
	ValidatorName string
	GoalText      string
}

func (e *ValidationConfigError) Error() string {
	return fmt.Sprintf("validator %q referenced by goal %q is not registered", e.ValidatorName, e.GoalText)
}

// InvalidAssumptionError reports an assumption field outside its legal
// range.
type InvalidAssumptionError struct {
	Field string
	Value any
}

func (e *InvalidAssumptionError) Error() string {
	return fmt.Sprintf("invalid assumption %s: %v", e.Field, e.Value)
}

// InvalidGoalError reports a goal field outside its legal range.
type InvalidGoalError struct {
	Field string
	Value any
}

func (e *InvalidGoalError) Error() string {
	return fmt.Sprintf("invalid goal %s: %v", e.Field, e.Value)
}

// InvalidKnowledgeError reports a knowledge field outside its legal
// range, such as a confidence beyond [0,1] or an unknown component
// type.
type InvalidKnowledgeError struct {
	Field string
	Value any
}

func (e *InvalidKnowledgeError) Error() string {
	return fmt.Sprintf("invalid knowledge %s: %v", e.Field, e.Value)
}
