// Package fsm defines the voice-activity recorder state machine.
package fsm

import "fmt"

type State string

type Event string

const (
	StateIdle           State = "idle"
	StateListening      State = "listening"
	StateSpeech         State = "speech"
	StateSilencePending State = "silence_pending"
	StateFinalizing     State = "finalizing"
	StateError          State = "error"
)

const (
	EventStart          Event = "start"
	EventEnergyRise     Event = "energy_rise"
	EventEnergyFall     Event = "energy_fall"
	EventSilenceElapsed Event = "silence_elapsed"
	EventFlushed        Event = "flushed"
	EventStop           Event = "stop"
	EventCancel         Event = "cancel"
	EventFail           Event = "fail"
	EventReset          Event = "reset"
)

func Transition(current State, event Event) (State, error) {
	if event == EventFail {
		return StateError, nil
	}

	switch current {
	case StateIdle:
		switch event {
		case EventStart:
			return StateListening, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateListening:
		switch event {
		case EventEnergyRise:
			return StateSpeech, nil
		case EventStop, EventCancel:
			return StateIdle, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateSpeech:
		switch event {
		case EventEnergyFall:
			return StateSilencePending, nil
		case EventStop:
			return StateFinalizing, nil
		case EventCancel:
			return StateIdle, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateSilencePending:
		switch event {
		case EventEnergyRise:
			return StateSpeech, nil
		case EventSilenceElapsed, EventStop:
			return StateFinalizing, nil
		case EventCancel:
			return StateIdle, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateFinalizing:
		switch event {
		case EventFlushed:
			return StateListening, nil
		case EventStop, EventCancel:
			return StateIdle, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateError:
		switch event {
		case EventReset:
			return StateIdle, nil
		default:
			return current, invalidTransition(current, event)
		}
	default:
		return current, fmt.Errorf("unknown state %q", current)
	}
}

func invalidTransition(state State, event Event) error {
	return fmt.Errorf("invalid transition: %s --(%s)--> ?", state, event)
}
