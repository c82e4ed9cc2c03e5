package progress

import (
	"pneumatic/event"
	"pneumatic/notify"
)

// Changes collects side effects produced inside a transaction so they are
// dispatched only after it has committed.
type Changes struct {
	Events        []*event.EventRecord
	Notifications []notify.Notification
}

func (c *Changes) AddEvent(ev *event.EventRecord) {
	if ev != nil {
		c.Events = append(c.Events, ev)
	}
}

func (c *Changes) AddNotification(n notify.Notification) {
	c.Notifications = append(c.Notifications, n)
}

func (c *Changes) Dispatch() {
	for _, ev := range c.Events {
		if event.InvokeHandlersFunc != nil {
			event.InvokeHandlersFunc(ev)
		}
	}
	for _, n := range c.Notifications {
		notify.EnqueueFunc(n)
	}
}
