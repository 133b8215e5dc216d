package order

// OrderState implements the state pattern for order lifecycle transitions.
type OrderState interface {
	Status() Status
	OnPaymentConfirmed(o *Order) (OrderState, error)
	OnCancelled(o *Order, reason string) (OrderState, error)
	OnStartedProcessing(o *Order) (OrderState, error)
	OnShipped(o *Order) (OrderState, error)
	OnDelivered(o *Order) (OrderState, error)
}

func stateFor(s Status) OrderState {
	switch s {
	case StatusPending:
		return pendingState{}
	case StatusConfirmed:
		return confirmedState{}
	case StatusProcessing:
		return processingState{}
	case StatusShipped:
		return shippedState{}
	case StatusDelivered:
		return deliveredState{}
	case StatusCancelled:
		return cancelledState{}
	default:
		return pendingState{}
	}
}

type pendingState struct{}

func (pendingState) Status() Status { return StatusPending }

func (pendingState) OnPaymentConfirmed(o *Order) (OrderState, error) {
	o.FailureReason = ""
	return confirmedState{}, nil
}

func (pendingState) OnCancelled(o *Order, reason string) (OrderState, error) {
	o.FailureReason = reason
	return cancelledState{}, nil
}

func (pendingState) OnStartedProcessing(*Order) (OrderState, error) {
	return nil, ErrInvalidStateTransition
}

func (pendingState) OnShipped(*Order) (OrderState, error) {
	return nil, ErrInvalidStateTransition
}

func (pendingState) OnDelivered(*Order) (OrderState, error) {
	return nil, ErrInvalidStateTransition
}

type confirmedState struct{}

func (confirmedState) Status() Status { return StatusConfirmed }

func (confirmedState) OnPaymentConfirmed(*Order) (OrderState, error) {
	// Idempotent replay of payment confirmation is harmless.
	return confirmedState{}, nil
}

func (confirmedState) OnCancelled(*Order, string) (OrderState, error) {
	return nil, ErrInvalidStateTransition
}

func (confirmedState) OnStartedProcessing(o *Order) (OrderState, error) {
	return processingState{}, nil
}

func (confirmedState) OnShipped(*Order) (OrderState, error) {
	return nil, ErrInvalidStateTransition
}

func (confirmedState) OnDelivered(*Order) (OrderState, error) {
	return nil, ErrInvalidStateTransition
}

type processingState struct{}

func (processingState) Status() Status { return StatusProcessing }

func (processingState) OnPaymentConfirmed(*Order) (OrderState, error) {
	return processingState{}, nil
}

func (processingState) OnCancelled(*Order, string) (OrderState, error) {
	return nil, ErrInvalidStateTransition
}

func (processingState) OnStartedProcessing(*Order) (OrderState, error) {
	return processingState{}, nil
}

func (processingState) OnShipped(*Order) (OrderState, error) {
	return shippedState{}, nil
}

func (processingState) OnDelivered(*Order) (OrderState, error) {
	return nil, ErrInvalidStateTransition
}

type shippedState struct{}

func (shippedState) Status() Status { return StatusShipped }

func (shippedState) OnPaymentConfirmed(*Order) (OrderState, error) {
	return shippedState{}, nil
}

func (shippedState) OnCancelled(*Order, string) (OrderState, error) {
	return nil, ErrInvalidStateTransition
}

func (shippedState) OnStartedProcessing(*Order) (OrderState, error) {
	return nil, ErrInvalidStateTransition
}

func (shippedState) OnShipped(*Order) (OrderState, error) {
	return shippedState{}, nil
}

func (shippedState) OnDelivered(*Order) (OrderState, error) {
	return deliveredState{}, nil
}

type deliveredState struct{}

func (deliveredState) Status() Status { return StatusDelivered }

func (deliveredState) OnPaymentConfirmed(*Order) (OrderState, error) {
	return deliveredState{}, nil
}

func (deliveredState) OnCancelled(*Order, string) (OrderState, error) {
	return nil, ErrInvalidStateTransition
}

func (deliveredState) OnStartedProcessing(*Order) (OrderState, error) {
	return nil, ErrInvalidStateTransition
}

func (deliveredState) OnShipped(*Order) (OrderState, error) {
	return nil, ErrInvalidStateTransition
}

func (deliveredState) OnDelivered(*Order) (OrderState, error) {
	return deliveredState{}, nil
}

type cancelledState struct{}

func (cancelledState) Status() Status { return StatusCancelled }

func (cancelledState) OnPaymentConfirmed(*Order) (OrderState, error) {
	return nil, ErrInvalidStateTransition
}

func (cancelledState) OnCancelled(o *Order, reason string) (OrderState, error) {
	o.FailureReason = reason
	return cancelledState{}, nil
}

func (cancelledState) OnStartedProcessing(*Order) (OrderState, error) {
	return nil, ErrInvalidStateTransition
}

func (cancelledState) OnShipped(*Order) (OrderState, error) {
	return nil, ErrInvalidStateTransition
}

func (cancelledState) OnDelivered(*Order) (OrderState, error) {
	return nil, ErrInvalidStateTransition
}
