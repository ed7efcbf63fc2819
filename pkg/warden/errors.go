package warden

import "errors"

var (
	// ErrInvalidEvent indicates that an event does not satisfy protocol invariants.
	ErrInvalidEvent = errors.New("warden: invalid event")
	// ErrInvalidSubscription indicates that a subscription configuration is invalid.
	ErrInvalidSubscription = errors.New("warden: invalid subscription")
	// ErrSubscriptionClosed indicates that a subscription is no longer active.
	ErrSubscriptionClosed = errors.New("warden: subscription closed")
	// ErrEventDropped indicates a non-blocking backpressure drop.
	ErrEventDropped = errors.New("warden: event dropped due to backpressure")
	// ErrServiceAlreadyRegistered indicates duplicate service registration.
	ErrServiceAlreadyRegistered = errors.New("warden: service already registered")
	// ErrServiceNotFound indicates a service lookup miss.
	ErrServiceNotFound = errors.New("warden: service not found")
	// ErrModuleAlreadyRegistered indicates duplicate module registration.
	ErrModuleAlreadyRegistered = errors.New("warden: module already registered")
	// ErrDriverAlreadyRegistered indicates duplicate driver registration.
	ErrDriverAlreadyRegistered = errors.New("warden: driver already registered")

	// ErrNoTitle indicates a rename intent with no usable title text anywhere.
	ErrNoTitle = errors.New("warden: no title text in command or reply")
	// ErrNoMedia indicates a repic intent with no usable image anywhere.
	ErrNoMedia = errors.New("warden: no image in command or reply")
	// ErrNotGroup indicates a command issued outside a group conversation.
	ErrNotGroup = errors.New("warden: command origin is not a group")
	// ErrChatBusy indicates another mutation for the same chat is already in flight.
	ErrChatBusy = errors.New("warden: chat mutation already in flight")
	// ErrInvalidRequest indicates a malformed platform request envelope.
	ErrInvalidRequest = errors.New("warden: invalid request")
)
