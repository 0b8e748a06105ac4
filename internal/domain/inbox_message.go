package domain

import "time"

type InboxMessageStatus string

const (
	InboxStatusNew        InboxMessageStatus = "NEW"
	InboxStatusProcessing InboxMessageStatus = "PROCESSING"
	InboxStatusProcessed  InboxMessageStatus = "PROCESSED"
	InboxStatusFailed     InboxMessageStatus = "FAILED"
)

// InboxMessage records a consumed confirmation message so redeliveries can
// be recognised by their Kafka coordinates.
type InboxMessage struct {
	ID             string
	KafkaTopic     string
	KafkaPartition int
	KafkaOffset    int64
	ConsumerGroup  string
	Payload        []byte
	Status         InboxMessageStatus
	ReceivedAt     time.Time
	ProcessedAt    *time.Time
}

func (m *InboxMessage) IsProcessed() bool {
	return m.Status == InboxStatusProcessed
}
