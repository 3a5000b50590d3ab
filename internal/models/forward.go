package models

// ForwardOutcome reports what happened to a single record handed to a forwarder.
type ForwardOutcome string

const (
	// OutcomeStoredNew indicates the backend stored the reading as new.
	OutcomeStoredNew ForwardOutcome = "stored_new"
	// OutcomeDuplicate indicates the backend already knew the reading.
	OutcomeDuplicate ForwardOutcome = "duplicate"
	// OutcomeFailed indicates a transport or server error.
	OutcomeFailed ForwardOutcome = "failed"
)

// Delivered reports whether the backend has the reading, either newly or already.
func (o ForwardOutcome) Delivered() bool {
	return o == OutcomeStoredNew || o == OutcomeDuplicate
}
