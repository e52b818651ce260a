package queue

// QueueType is the x-queue-type argument of a declared queue. Quorum and
// stream queues are always durable.
type QueueType string

const (
	QueueTypeClassic QueueType = "classic"
	QueueTypeQuorum  QueueType = "quorum"
	QueueTypeStream  QueueType = "stream"
)
