package jobs

import (
	"context"
	"log"

	"github.com/robfig/cron/v3"
)

const TypingSweepSpec = "@every 1s"

// TypingExpirer resets typing indicators whose deadline has passed.
// *websocket.Hub implements it.
type TypingExpirer interface {
	ExpireTyping(ctx context.Context) int
}

func ExpireStaleTyping(ctx context.Context, hub TypingExpirer) {
	if n := hub.ExpireTyping(ctx); n > 0 {
		log.Printf("Expired %d typing indicator(s).", n)
	}
}

// ScheduleTypingSweep registers the typing expiry sweep on c.
func ScheduleTypingSweep(c *cron.Cron, hub TypingExpirer) (cron.EntryID, error) {
	return c.AddFunc(TypingSweepSpec, func() {
		ExpireStaleTyping(context.Background(), hub)
	})
}
