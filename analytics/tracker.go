package analytics

import (
	"context"
	"os"

	"pneumatic/es"
	"pneumatic/session"

	"github.com/fundwit/go-commons/types"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const EventIndexName = "analytics"

const (
	EventPerformerCreated = "performer-created"
	EventPerformerDeleted = "performer-deleted"
	EventGuestInviteSent  = "guest-invite-sent"
	EventGuestInvited     = "guest-invited"
	EventTaskCompleted    = "task-completed"
)

var (
	TrackFunc = Track

	Disabled = os.Getenv("ANALYTICS_DISABLED") != ""
)

type EventDocument struct {
	Event string `json:"event"`

	ActorID   types.ID `json:"actorId"`
	AccountID types.ID `json:"accountId"`

	Properties map[string]interface{} `json:"properties"`

	Timestamp types.Timestamp `json:"timestamp"`
}

// Track ships the event out of band. It never blocks the caller and a
// failure never reaches it. Superuser actions are not tracked.
func Track(eventName string, properties map[string]interface{}, actor *session.Identity) {
	if Disabled || actor.IsSuperuser {
		return
	}

	doc := EventDocument{
		Event:      eventName,
		ActorID:    actor.ID,
		AccountID:  actor.AccountID,
		Properties: properties,
		Timestamp:  types.CurrentTimestamp(),
	}

	go func() {
		defer func() {
			if ret := recover(); ret != nil {
				logrus.Warnf("analytics track %s panicked: %v", eventName, ret)
			}
		}()
		if err := es.IndexFunc(context.Background(), EventIndexName, uuid.New().String(), doc); err != nil {
			logrus.Warnf("analytics track %s failed: %v", eventName, err)
		}
	}()
}
