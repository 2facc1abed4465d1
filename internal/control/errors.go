package control

import "errors"

var (
	// ErrDecode is returned when a payload is not a valid value for its feed.
	ErrDecode = errors.New("control: cannot decode payload")

	// ErrUnknownFeed is returned when no action is bound to the message's feed.
	ErrUnknownFeed = errors.New("control: no action for feed")

	// ErrActuator is returned when the actuator rejects a new duty.
	ErrActuator = errors.New("control: actuator failed")
)
