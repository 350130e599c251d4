package observer

import (
	"github.com/lucasdaniellopes/fittrack-monorepo/internal/domain"
	"github.com/lucasdaniellopes/fittrack-monorepo/internal/eventbus"
)

// Repositories groups the stores the observers write to.
type Repositories struct {
	History       domain.HistoryRepository
	Clients       domain.ClientRepository
	Notifications domain.NotificationRepository
}

// Register attaches the standard observers to bus in a fixed order:
// history first, then client state, then notifications.
func Register(bus *eventbus.Bus, repos Repositories, sink Sink) {
	bus.Attach(NewHistory(repos.History))
	bus.Attach(NewClientState(repos.Clients))
	bus.Attach(NewNotification(repos.Notifications, sink))
}
