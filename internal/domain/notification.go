package domain

import (
	"context"
	"fmt"
	"time"
)

// EventKind classifies the notification-worthy transitions of a tracked bet.
type EventKind string

const (
	// KindResolved fires when a resolved event touching one of the viewer's
	// bets is observed.
	KindResolved EventKind = "resolved"
	// KindTaken fires the first time a bet the viewer created gains a
	// counterparty.
	KindTaken EventKind = "taken"
	// KindVoteNudge fires the first time the counterparty has voted while
	// the viewer's own vote is still pending.
	KindVoteNudge EventKind = "vote-nudge"
)

// NotificationKey is the string-comparable dedup identity for one
// (variant, id, kind) triple. A key is recorded the first time its condition
// is observed true and lives until the watch session is reset, so repeated
// polling cycles can never re-emit the same alert.
type NotificationKey string

// Key builds the dedup key for a bet event.
func Key(ref BetRef, kind EventKind) NotificationKey {
	return NotificationKey(fmt.Sprintf("%s:%d:%s", ref.Variant, ref.ID, kind))
}

// Notification is one user-facing alert produced by the watch session.
type Notification struct {
	Key   NotificationKey `json:"key"`
	Kind  EventKind       `json:"kind"`
	Bet   BetRef          `json:"bet"`
	Title string          `json:"title"`
	Body  string          `json:"body"`
	// Won is meaningful for KindResolved only: the resolved winner is the
	// session's address.
	Won bool      `json:"won"`
	At  time.Time `json:"at"`
}

// NotificationSink receives notifications emitted by the watch session.
// Delivery failures are the sink's own concern; the session logs and moves on.
type NotificationSink interface {
	Deliver(ctx context.Context, n Notification) error
}
