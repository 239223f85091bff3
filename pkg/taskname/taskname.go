package taskname

const (
	// Deliverable tasks, consumed by the metrics refresher.
	DeliverableRecorded = "deliverable:recorded"
)
