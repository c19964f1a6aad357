// Package events fans complaint lifecycle changes out to notification sinks
// (Telegram, MQTT) without holding up the caller that made the change.
package events

import (
	"context"
	"time"

	"svcdesk/internal/complaint"
)

// Kind names a lifecycle change.
type Kind string

const (
	KindCreated  Kind = "created"
	KindAssigned Kind = "assigned"
	KindStatus   Kind = "status"
	KindParts    Kind = "parts"
	KindClosed   Kind = "closed"
	KindReopened Kind = "reopened"
	KindRestored Kind = "restored"
)

// Event is one lifecycle change. Complaint is the record after the change;
// for KindRestored it is empty and Count holds the number of records loaded.
type Event struct {
	Kind      Kind                `json:"kind"`
	Complaint complaint.Complaint `json:"complaint"`
	Count     int                 `json:"count,omitempty"`
	At        time.Time           `json:"at"`
}

// Publisher delivers events to one sink.
type Publisher interface {
	Name() string
	Publish(ctx context.Context, ev Event) error
}
