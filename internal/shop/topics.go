package shop

const (
	TopicOrderPlaced    = "shop.order.placed"
	TopicOrderCancelled = "shop.order.cancelled"
)

// TopicFor maps an event type to the topic it is published on.
func TopicFor(eventType string) string {
	switch eventType {
	case EventOrderPlaced:
		return TopicOrderPlaced
	default:
		return TopicOrderCancelled
	}
}

// PartitionKey keeps every event of one user on one partition, in order.
func PartitionKey(userID int64) []byte {
	return []byte(formatID(userID))
}
