package notify

import (
	"context"

	logx "lembra/pkg/logx"
)

// ConsoleSink surfaces reminders through the process log. Useful headless
// and as the always-on fallback when no chat sink is configured.
type ConsoleSink struct {
	log logx.Logger
}

func NewConsole(log logx.Logger) *ConsoleSink {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &ConsoleSink{log: log}
}

func (c *ConsoleSink) Name() string { return "console" }

func (c *ConsoleSink) Send(_ context.Context, n Notification) error {
	c.log.Info("reminder",
		logx.String("title", n.Title),
		logx.String("icon", string(n.Icon)),
		logx.String("key", n.Key),
	)
	return nil
}
