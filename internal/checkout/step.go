package checkout

import "errors"

// Step is the position of a purchase session in the checkout flow
type Step string

const (
	StepSelect     Step = "select"
	StepProcessing Step = "processing"
	StepConfirm    Step = "confirm"
	StepSuccess    Step = "success"
	StepError      Step = "error"
)

// Phase tells which backend call a processing step is waiting on
type Phase string

const (
	PhaseHold    Phase = "hold"
	PhasePayment Phase = "payment"
)

var (
	// ErrInvalidStateTransition is returned when a step change is not allowed
	ErrInvalidStateTransition = errors.New("invalid state transition")
	// ErrBusy is returned while a backend call for the session is in flight
	ErrBusy = errors.New("checkout is processing")
)

// validTransitions defines allowed step changes.
// Key is current step, value is list of allowed next steps.
var validTransitions = map[Step][]Step{
	StepSelect:     {StepProcessing},
	StepProcessing: {StepConfirm, StepSelect, StepSuccess, StepError},
	StepConfirm:    {StepProcessing, StepSelect},
	StepError:      {StepSelect},
	StepSuccess:    {}, // Terminal, left only through Reset
}

// IsTerminal returns true once the purchase is complete
func (s Step) IsTerminal() bool {
	return s == StepSuccess
}

// IsValid returns true if the step is known
func (s Step) IsValid() bool {
	_, exists := validTransitions[s]
	return exists
}

// CanTransitionTo returns true if moving to target is allowed
func (s Step) CanTransitionTo(target Step) bool {
	for _, allowed := range validTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}
