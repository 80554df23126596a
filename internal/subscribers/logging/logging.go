// Package logging writes fired alerts to the process log.
package logging

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/sauravbhattacharya001/agentlens/internal/alerts"
)

type Subscriber struct {
	logger *log.Logger
}

func New(logger *log.Logger) *Subscriber {
	return &Subscriber{logger: logger}
}

func (s *Subscriber) Name() string {
	return "logging"
}

func (s *Subscriber) Handle(_ context.Context, notification alerts.Notification) error {
	encoded, err := json.Marshal(notification)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	s.logger.Printf("subscriber=logging alert=%s", encoded)
	return nil
}
