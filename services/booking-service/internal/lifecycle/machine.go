package lifecycle

import (
	"fmt"

	"github.com/md-rashed-zaman/apptdesk/libs/apperr"
	"github.com/md-rashed-zaman/apptdesk/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/apptdesk/services/booking-service/internal/notify"
)

type Action string

const (
	ActionConfirm    Action = "confirm"
	ActionCancel     Action = "cancel"
	ActionReschedule Action = "reschedule"
	ActionRemind     Action = "remind"
	ActionStart      Action = "start"
	ActionComplete   Action = "complete"
	ActionNoShow     Action = "no_show"
)

// Transition returns the status an appointment in from moves to under a.
// Reschedule and remind notify without changing status.
func Transition(from model.AppointmentStatus, a Action) (model.AppointmentStatus, error) {
	switch a {
	case ActionConfirm:
		switch from {
		case model.StatusPending:
			return model.StatusConfirmed, nil
		case model.StatusConfirmed:
			return "", apperr.Conflict("appointment is already confirmed")
		}
	case ActionCancel:
		if from == model.StatusCancelled {
			return "", apperr.Conflict("appointment is already cancelled")
		}
		if !from.Terminal() {
			return model.StatusCancelled, nil
		}
	case ActionNoShow:
		if !from.Terminal() {
			return model.StatusNoShow, nil
		}
	case ActionReschedule, ActionRemind:
		if !from.Terminal() {
			return from, nil
		}
	case ActionStart:
		if from == model.StatusConfirmed {
			return model.StatusInProgress, nil
		}
	case ActionComplete:
		if from == model.StatusInProgress {
			return model.StatusCompleted, nil
		}
	default:
		return "", apperr.Validationf("unknown action %q", a)
	}
	return "", apperr.Conflict(fmt.Sprintf("cannot %s an appointment that is %s", verb(a), from))
}

func verb(a Action) string {
	switch a {
	case ActionRemind:
		return "send a reminder for"
	case ActionNoShow:
		return "mark as no-show"
	}
	return string(a)
}

// notification returns the message kind an action sends, if any.
func notification(a Action) (notify.Kind, bool) {
	switch a {
	case ActionConfirm:
		return notify.KindConfirmation, true
	case ActionCancel:
		return notify.KindCancellation, true
	case ActionReschedule:
		return notify.KindReschedule, true
	case ActionRemind:
		return notify.KindReminder, true
	}
	return "", false
}
