package order

import "fmt"

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

// Cancellation is only offered from pending: a pending order's stock can be
// restored, later states are committed to fulfilment.
var statusTransitions = map[Status][]Status{
	StatusPending:    {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusShipped},
	StatusShipped:    {StatusDelivered},
	StatusDelivered:  nil,
	StatusCancelled:  nil,
}

func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if _, ok := statusTransitions[st]; !ok {
		return "", fmt.Errorf("%w: unknown order status %q", ErrInvalidInput, s)
	}
	return st, nil
}

func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range statusTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s Status) Terminal() bool {
	next, ok := statusTransitions[s]
	return ok && len(next) == 0
}

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
	PaymentRefunded  PaymentStatus = "refunded"
)

var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentPending:   {PaymentCompleted, PaymentFailed},
	PaymentFailed:    {PaymentPending, PaymentCompleted},
	PaymentCompleted: {PaymentRefunded},
	PaymentRefunded:  nil,
}

func ParsePaymentStatus(s string) (PaymentStatus, error) {
	ps := PaymentStatus(s)
	if _, ok := paymentTransitions[ps]; !ok {
		return "", fmt.Errorf("%w: unknown payment status %q", ErrInvalidInput, s)
	}
	return ps, nil
}

func (p PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	for _, allowed := range paymentTransitions[p] {
		if allowed == next {
			return true
		}
	}
	return false
}
