package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	reservations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticketgate_reservations_total",
			Help: "Ticket reservation attempts by outcome",
		},
		[]string{"outcome"},
	)

	paymentCallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticketgate_payment_callbacks_total",
			Help: "Payment gateway callbacks by outcome",
		},
		[]string{"outcome"},
	)

	redemptions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticketgate_redemptions_total",
			Help: "Scanner redemption attempts by result",
		},
		[]string{"result"},
	)

	sweptReservations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ticketgate_swept_reservations_total",
			Help: "PENDING reservations cancelled by the expiry sweeper",
		},
	)
)

func TrackReservation(outcome string)     { reservations.WithLabelValues(outcome).Inc() }
func TrackPaymentCallback(outcome string) { paymentCallbacks.WithLabelValues(outcome).Inc() }
func TrackRedemption(result string)       { redemptions.WithLabelValues(result).Inc() }
func TrackSweptReservation()              { sweptReservations.Inc() }
