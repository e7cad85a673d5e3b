package types

// EventType is the kind of a ride event flowing through the event log.
type EventType string

func (e EventType) String() string {
	return string(e)
}

const (
	EventOrderCreated EventType = "OrderCreated"
	EventRetrySearch  EventType = "RetrySearch"
)

// Dispatchable reports whether the dispatcher runs a search for this event type.
func (e EventType) Dispatchable() bool {
	return e == EventOrderCreated || e == EventRetrySearch
}

// OutcomeType is a dispatch outcome recorded against a ride.
type OutcomeType string

func (o OutcomeType) String() string {
	return string(o)
}

const (
	OutcomeDriverProposed    OutcomeType = "DRIVER_PROPOSED"
	OutcomeProposalExpired   OutcomeType = "PROPOSAL_EXPIRED"
	OutcomeNoDriverFound     OutcomeType = "NO_DRIVER_FOUND"
	OutcomeRetryLimitReached OutcomeType = "RETRY_LIMIT_REACHED"
	OutcomeDriverAccepted    OutcomeType = "DRIVER_ACCEPTED"
)

// NotificationType is the type field of messages pushed to drivers.
const NotificationNewOrderProposal = "NEW_ORDER_PROPOSAL"
