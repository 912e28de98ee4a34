package lifecycle

// Trigger represents a client action that can cause a status transition.
type Trigger string

const (
	// TriggerTake assigns an available inspection to the calling inspector.
	TriggerTake Trigger = "TAKE"

	// TriggerSubmitReport finalizes the report and signature for a pending
	// inspection.
	TriggerSubmitReport Trigger = "SUBMIT_REPORT"
)

// String returns the string representation of the trigger.
func (t Trigger) String() string {
	return string(t)
}
