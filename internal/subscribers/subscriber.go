// Package subscribers defines the delivery targets for fired alerts.
package subscribers

import (
	"context"

	"github.com/sauravbhattacharya001/agentlens/internal/alerts"
)

type Subscriber interface {
	Name() string
	Handle(context.Context, alerts.Notification) error
}
