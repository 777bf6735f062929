// Package fsm defines the asset draft wizard state machine.
package fsm

import "fmt"

type State string

type Event string

const (
	StatePhotoIntake State = "photo_intake"
	StateNaming      State = "naming"
	StateDescription State = "description"
	StateSubmitting  State = "submitting"
	StateClosed      State = "closed"
)

const (
	EventConfirmPhotos Event = "confirm_photos"
	EventConfirmName   Event = "confirm_name"
	EventBack          Event = "back"
	EventSubmit        Event = "submit"
	EventSucceeded     Event = "succeeded"
	EventFailed        Event = "failed"
	EventCancel        Event = "cancel"
	EventReset         Event = "reset"
)

// Transition applies event to current. Guards live with the caller; this
// table only decides which edges exist.
func Transition(current State, event Event) (State, error) {
	if event == EventCancel {
		if current == StateSubmitting {
			return current, invalidTransition(current, event)
		}
		return StateClosed, nil
	}

	switch current {
	case StatePhotoIntake:
		switch event {
		case EventConfirmPhotos:
			return StateNaming, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateNaming:
		switch event {
		case EventConfirmName:
			return StateDescription, nil
		case EventBack:
			return StatePhotoIntake, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateDescription:
		switch event {
		case EventSubmit:
			return StateSubmitting, nil
		case EventBack:
			return StateNaming, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateSubmitting:
		switch event {
		case EventSucceeded:
			return StateClosed, nil
		case EventFailed:
			return StateDescription, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateClosed:
		switch event {
		case EventReset:
			return StatePhotoIntake, nil
		default:
			return current, invalidTransition(current, event)
		}
	default:
		return current, fmt.Errorf("unknown state %q", current)
	}
}

// Step returns the 1-based wizard step shown to the user, or 0 when no step applies.
func (s State) Step() int {
	switch s {
	case StatePhotoIntake:
		return 1
	case StateNaming:
		return 2
	case StateDescription, StateSubmitting:
		return 3
	default:
		return 0
	}
}

func invalidTransition(state State, event Event) error {
	return fmt.Errorf("invalid transition: %s --(%s)--> ?", state, event)
}
