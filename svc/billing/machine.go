package billing

import "github.com/dmitrymomot/qrmenu/pkg/statemachine"

type lifecycleEvent string

const (
	eventPay            lifecycleEvent = "pay"
	eventScheduleCancel lifecycleEvent = "cancel_at_period_end"
	eventCancelNow      lifecycleEvent = "cancel_now"
	eventExpire         lifecycleEvent = "expire"
)

// lifecycle is the persisted subscription transition table. Cancelled and
// expired are terminal; a later payment opens a fresh subscription.
var lifecycle = statemachine.New(
	statemachine.Transition[SubscriptionStatus, lifecycleEvent]{From: StatusTrial, Event: eventPay, To: StatusActive},
	statemachine.Transition[SubscriptionStatus, lifecycleEvent]{From: StatusActive, Event: eventPay, To: StatusActive},
	statemachine.Transition[SubscriptionStatus, lifecycleEvent]{From: StatusTrial, Event: eventScheduleCancel, To: StatusTrial},
	statemachine.Transition[SubscriptionStatus, lifecycleEvent]{From: StatusActive, Event: eventScheduleCancel, To: StatusActive},
	statemachine.Transition[SubscriptionStatus, lifecycleEvent]{From: StatusTrial, Event: eventCancelNow, To: StatusCancelled},
	statemachine.Transition[SubscriptionStatus, lifecycleEvent]{From: StatusActive, Event: eventCancelNow, To: StatusCancelled},
	statemachine.Transition[SubscriptionStatus, lifecycleEvent]{From: StatusTrial, Event: eventExpire, To: StatusExpired},
	statemachine.Transition[SubscriptionStatus, lifecycleEvent]{From: StatusActive, Event: eventExpire, To: StatusExpired},
)
