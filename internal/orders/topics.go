package orders

import "strconv"

const (
	TopicOrderPlaced  = "lemon.order.placed"
	TopicOrderUpdated = "lemon.order.updated"
	TopicOrderDeleted = "lemon.order.deleted"
)

var Topics = []string{TopicOrderPlaced, TopicOrderUpdated, TopicOrderDeleted}

// Partition key = order id, so every event of one order keeps its order.
func PartitionKey(orderID int64) []byte { return []byte(strconv.FormatInt(orderID, 10)) }
