package rabbitmq

const (
	// ProvisioningExchange exchange задач провижининга.
	ProvisioningExchange = "provisioning"
	// ProvisioningQueue очередь воркера провижининга.
	ProvisioningQueue = "provisioning.activate"
	// ProvisioningRoutingKey ключ маршрутизации задачи активации.
	ProvisioningRoutingKey = "activate"

	prefetchCount = 10
)

// QueueConfig очередь и ключ, которым она привязана к exchange.
type QueueConfig struct {
	QueueName  string
	RoutingKey string
}

// GetProvisioningQueues возвращает очереди, объявляемые в exchange провижининга.
func GetProvisioningQueues() []QueueConfig {
	return []QueueConfig{
		{QueueName: ProvisioningQueue, RoutingKey: ProvisioningRoutingKey},
	}
}
