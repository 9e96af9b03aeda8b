package payments

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
)

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransition: PENDING moves to exactly one terminal state and stays there.
func CanTransition(from, to Status) bool {
	return from == StatusPending && to.Terminal()
}
