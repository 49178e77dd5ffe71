// Package live pushes freshly created notifications to connected clients
// through Redis pub/sub. Each user has a private channel; the SSE handler
// subscribes to it and relays payloads as they arrive.
package live

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"

	"github.com/visicontrol/visit-scheduler/internal/model"
)

// UserChannel returns the pub/sub channel for one user's notifications.
func UserChannel(userID uint64) string {
	return fmt.Sprintf("notify:user:%d", userID)
}

// Pusher publishes notification payloads to per-user Redis channels.
// A Pusher with a nil client is valid and drops every push, so the rest
// of the service works without Redis.
type Pusher struct {
	rdb *redis.Client
}

// NewPusher wraps the Redis client. rdb may be nil.
func NewPusher(rdb *redis.Client) *Pusher {
	return &Pusher{rdb: rdb}
}

// Push publishes the notification to its owner's channel. Failures are
// logged and swallowed; a live push is best effort on top of the stored
// row.
func (p *Pusher) Push(ctx context.Context, n model.Notification) {
	if p == nil || p.rdb == nil {
		return
	}
	body, err := json.Marshal(n)
	if err != nil {
		log.Printf("live: marshal notification %d failed: %v", n.ID, err)
		return
	}
	if err := p.rdb.Publish(ctx, UserChannel(n.UserID), body).Err(); err != nil {
		log.Printf("live: publish to %s failed: %v", UserChannel(n.UserID), err)
	}
}
