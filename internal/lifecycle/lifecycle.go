// Package lifecycle implements the upload status state machine.
package lifecycle

import (
	"errors"
	"fmt"
	"slices"

	"github.com/kiranshivaraju/vulnhunter/pkg/models"
)

// ErrInvalidTransition is returned when an event is not valid for the current status.
var ErrInvalidTransition = errors.New("invalid upload status transition")

// Event triggers a status transition.
type Event string

const (
	EventFileReceived  Event = "file_received"
	EventScanRequested Event = "scan_requested"
	EventScanCompleted Event = "scan_completed"
	EventScanFailed    Event = "scan_failed"
	EventSuperseded    Event = "superseded"
)

var transitions = map[models.UploadStatus]map[Event]models.UploadStatus{
	models.UploadStatusInitiated: {
		EventFileReceived: models.UploadStatusInProgress,
		EventSuperseded:   models.UploadStatusStopped,
	},
	models.UploadStatusInProgress: {
		EventFileReceived:  models.UploadStatusInProgress,
		EventScanRequested: models.UploadStatusQueued,
		EventSuperseded:    models.UploadStatusStopped,
	},
	models.UploadStatusQueued: {
		EventScanCompleted: models.UploadStatusCompleted,
		EventScanFailed:    models.UploadStatusFailed,
		EventSuperseded:    models.UploadStatusStopped,
	},
}

// Next returns the status reached by applying ev to current.
// Terminal statuses accept no events.
func Next(current models.UploadStatus, ev Event) (models.UploadStatus, error) {
	if next, ok := transitions[current][ev]; ok {
		return next, nil
	}
	return current, fmt.Errorf("%w: %s on %s", ErrInvalidTransition, ev, current)
}

// Apply transitions u in place. On error u is left untouched.
func Apply(u *models.Upload, ev Event) error {
	next, err := Next(u.Status, ev)
	if err != nil {
		return err
	}
	u.Status = next
	return nil
}

// IsTerminal reports whether no further transitions are possible from s.
func IsTerminal(s models.UploadStatus) bool {
	return !IsActive(s)
}

// IsActive reports whether an upload in status s still belongs to a live session.
func IsActive(s models.UploadStatus) bool {
	_, ok := transitions[s]
	return ok
}

// ActiveStatuses lists every status IsActive accepts, sorted.
func ActiveStatuses() []models.UploadStatus {
	out := make([]models.UploadStatus, 0, len(transitions))
	for s := range transitions {
		out = append(out, s)
	}
	slices.Sort(out)
	return out
}
