package models

// Delivery is one ride event read from the event log and not yet acknowledged.
// Err is set when the payload could not be decoded; such deliveries are acked and dropped.
type Delivery struct {
	ID      string
	Event   RideEvent
	Payload []byte
	Err     error
}
