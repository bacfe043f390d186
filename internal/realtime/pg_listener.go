package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/lib/pq"
)

// NotifyChannel is the Postgres channel the tokens trigger notifies on
const NotifyChannel = "tokens_changes"

// Notification is the payload produced by the tokens trigger
type Notification struct {
	Table  string          `json:"table"`
	Op     string          `json:"op"`
	Record json.RawMessage `json:"record"`
}

// PGListener relays Postgres NOTIFY payloads into the hub, so changes made
// outside this process (market data sync, admin edits) reach listeners.
type PGListener struct {
	dsn     string
	hub     *Hub
	channel string
}

func NewPGListener(dsn string, hub *Hub) *PGListener {
	return &PGListener{dsn: dsn, hub: hub, channel: NotifyChannel}
}

// Run listens until ctx is done
func (l *PGListener) Run(ctx context.Context) error {
	listener := pq.NewListener(l.dsn, 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			log.Printf("[Realtime] Listener event %d: %v", ev, err)
		}
	})
	defer listener.Close()

	if err := listener.Listen(l.channel); err != nil {
		return fmt.Errorf("failed to listen on %s: %w", l.channel, err)
	}
	log.Printf("[Realtime] Listening for %s notifications", l.channel)

	for {
		select {
		case <-ctx.Done():
			return nil
		case n := <-listener.Notify:
			// nil after a reconnect; missed notifications are not replayed
			if n == nil {
				continue
			}
			l.relay(n.Extra)
		case <-time.After(90 * time.Second):
			if err := listener.Ping(); err != nil {
				log.Printf("[Realtime] Listener ping failed: %v", err)
			}
		}
	}
}

func (l *PGListener) relay(payload string) {
	event, err := ParseNotification(payload)
	if err != nil {
		log.Printf("[Realtime] Ignoring malformed notification: %v", err)
		return
	}
	l.hub.Publish(*event)
}

// ParseNotification converts a trigger payload into a hub event
func ParseNotification(payload string) (*Event, error) {
	var n Notification
	if err := json.Unmarshal([]byte(payload), &n); err != nil {
		return nil, err
	}
	if n.Table == "" || n.Op == "" {
		return nil, fmt.Errorf("notification missing table or op")
	}
	return &Event{Channel: n.Table, Type: n.Op, Record: n.Record}, nil
}
