// Package lifecycle models the inspection status machine: the states an
// inspection moves through and the transitions the client may trigger.
package lifecycle

// Status represents an inspection lifecycle state.
type Status string

const (
	// StatusRequested is an available inspection not yet assigned to any
	// inspector.
	StatusRequested Status = "REQUESTED"

	// StatusPending is assigned to an inspector and awaiting the visit and
	// report.
	StatusPending Status = "PENDING"

	// StatusReportSubmitted means report and signature were finalized
	// server-side. Terminal.
	StatusReportSubmitted Status = "REPORT_SUBMITTED"
)

var validStatuses = map[Status]bool{
	StatusRequested:       true,
	StatusPending:         true,
	StatusReportSubmitted: true,
}

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// IsValid returns true if the status is a recognized lifecycle state.
func (s Status) IsValid() bool {
	return validStatuses[s]
}

// IsTerminal returns true when no further client-initiated transition is
// possible.
func (s Status) IsTerminal() bool {
	return s == StatusReportSubmitted
}
