package services

import (
	"fmt"

	"github.com/rrnagar/marketplace/app/models"
)

var statusTransitions = map[string][]string{
	models.OrderCreated:       {models.OrderPaid, models.OrderCancelled, models.OrderPaymentFailed},
	models.OrderPaymentFailed: {models.OrderPaid, models.OrderCancelled},
	models.OrderPaid:          {models.OrderDelivered},
}

// A rejected payment goes back to pending when the customer resubmits proof.
var paymentTransitions = map[string][]string{
	models.PaymentPending:  {models.PaymentApproved, models.PaymentRejected},
	models.PaymentRejected: {models.PaymentPending},
}

func allowed(table map[string][]string, from, to string) bool {
	for _, s := range table[from] {
		if s == to {
			return true
		}
	}
	return false
}

// sources lists the states that may move to `to`, in a stable order.
func sources(table map[string][]string, to string) []string {
	var out []string
	for _, from := range []string{
		models.OrderCreated, models.OrderPaymentFailed, models.OrderPaid,
		models.PaymentPending, models.PaymentRejected,
	} {
		if allowed(table, from, to) {
			out = append(out, from)
		}
	}
	return out
}

func CanTransitionStatus(from, to string) bool  { return allowed(statusTransitions, from, to) }
func CanTransitionPayment(from, to string) bool { return allowed(paymentTransitions, from, to) }

func statusSources(to string) []string  { return sources(statusTransitions, to) }
func paymentSources(to string) []string { return sources(paymentTransitions, to) }

func transitionError(field, from, to string) error {
	return fmt.Errorf("%w: %s %s -> %s", ErrInvalidTransition, field, from, to)
}
