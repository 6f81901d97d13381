package orders

const (
	TopicOrderPlaced    = "storefront.order.placed"
	TopicOrderFulfilled = "storefront.order.fulfilled"
)

// Partition key = order_id so all events for one order stay ordered.
func PartitionKey(orderID string) []byte { return []byte(orderID) }
