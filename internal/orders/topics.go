package orders

const (
	TopicOrderCreated   = "order.created"
	TopicStockReconcile = "order.stock.reconcile"
	TopicStockAdjusted  = "order.stock.adjusted"
	TopicStockRejected  = "order.stock.rejected"
)

// Partition key = order_id so all events for one order stay ordered.
func PartitionKey(orderID string) []byte { return []byte(orderID) }
