package consumer

import (
	"context"
	"encoding/json"

	"github.com/Eursukkul/ticketgate/internal/service"
	"github.com/Eursukkul/ticketgate/pkg/logger"
	amqp "github.com/rabbitmq/amqp091-go"
)

type gatewayCallback struct {
	ExternalTransactionID string `json:"external_transaction_id"`
	Outcome               string `json:"outcome"`
	GatewayReference      string `json:"gateway_reference"`
}

// PaymentCallbackConsumer feeds gateway callbacks delivered over AMQP into
// the reconciler. Delivery is at-least-once: duplicates are acked like
// first deliveries (the reconciler makes them no-ops), and only storage
// failures are requeued.
type PaymentCallbackConsumer struct {
	reconciler service.PaymentReconciler
	log        logger.Logger
}

func NewPaymentCallbackConsumer(reconciler service.PaymentReconciler, log logger.Logger) *PaymentCallbackConsumer {
	return &PaymentCallbackConsumer{reconciler: reconciler, log: log}
}

func (c *PaymentCallbackConsumer) Start(msgs <-chan amqp.Delivery) {
	go func() {
		for msg := range msgs {
			c.handleMessage(msg)
		}
		c.log.Infof("payment callback channel closed, stopping consumer")
	}()
}

func (c *PaymentCallbackConsumer) handleMessage(msg amqp.Delivery) {
	var cb gatewayCallback
	if err := json.Unmarshal(msg.Body, &cb); err != nil {
		c.log.Errorf("unmarshal payment callback: %v", err)
		msg.Nack(false, false)
		return
	}
	outcome := service.GatewayOutcome(cb.Outcome)
	if cb.ExternalTransactionID == "" ||
		(outcome != service.OutcomeApproved && outcome != service.OutcomeRejected) {
		// Requeueing a malformed callback would loop it forever.
		c.log.Warnf("discarding malformed payment callback: %s", string(msg.Body))
		msg.Ack(false)
		return
	}

	_, err := c.reconciler.Reconcile(
		context.Background(),
		cb.ExternalTransactionID,
		outcome,
		cb.GatewayReference,
	)
	if err != nil {
		// Storage-layer failure: requeue for redelivery.
		c.log.Errorf("reconcile callback %s: %v", cb.ExternalTransactionID, err)
		msg.Nack(false, true)
		return
	}

	msg.Ack(false)
}
