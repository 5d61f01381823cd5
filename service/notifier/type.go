package notifier

import (
	"context"

	"github.com/khaledhikmat/fs-go/model"
)

// IService starts notification jobs. Notify never blocks; it reports whether the
// job was accepted. Delivery outcome is never reported back to the caller.
type IService interface {
	Notify(alert model.Alert) bool
	Stats() model.NotifierStats
}

// Channel delivers one alert to one destination.
type Channel interface {
	Name() string
	Send(ctx context.Context, alert model.Alert) error
}
