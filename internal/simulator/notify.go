package simulator

import "context"

type NotificationKind string

const (
	NotificationStarted   NotificationKind = "started"
	NotificationStopped   NotificationKind = "stopped"
	NotificationFailed    NotificationKind = "failed"
	NotificationCompleted NotificationKind = "completed"
)

// Terminal reports whether k ends a run.
func (k NotificationKind) Terminal() bool {
	return k == NotificationStopped || k == NotificationFailed || k == NotificationCompleted
}

type Notification struct {
	Kind    NotificationKind `json:"kind"`
	RunID   string           `json:"run_id"`
	NodeID  string           `json:"node_id,omitempty"`
	Message string           `json:"message"`
}

// Notifier receives run-level notifications. Each run produces one started
// notification followed by exactly one terminal notification.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

type NotifierFunc func(ctx context.Context, n Notification)

func (f NotifierFunc) Notify(ctx context.Context, n Notification) { f(ctx, n) }

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, Notification) {}
