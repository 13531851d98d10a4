package service

// Publisher fans lifecycle events out to the message broker. Satisfied by
// *rabbitmq.Publisher; a nil publisher disables fan-out.
type Publisher interface {
	Publish(routingKey string, payload any) error
}
