package orders

type Status string

const (
	StatusCreated     Status = "CREATED"     // persisted, stock decrement pending
	StatusCompleted   Status = "COMPLETED"   // stock decremented
	StatusReconciling Status = "RECONCILING" // decrement failed, retried async
	StatusFailed      Status = "FAILED"      // reconciliation gave up
)

var validNext = map[Status]map[Status]bool{
	StatusCreated:     {StatusCompleted: true, StatusReconciling: true},
	StatusReconciling: {StatusCompleted: true, StatusFailed: true},
	StatusCompleted:   {},
	StatusFailed:      {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}
