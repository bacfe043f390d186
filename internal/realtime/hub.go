// Package realtime fans out table changes to websocket listeners, keyed by
// channel (one channel per table).
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	ChannelTokens = "tokens"

	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 64
)

var errHubStopped = errors.New("realtime hub stopped")

// Event is the message delivered to listeners
type Event struct {
	Channel string          `json:"channel"`
	Type    string          `json:"type"`
	Record  json.RawMessage `json:"record"`
}

type clients map[*Client]bool

type broadcastMsg struct {
	channel string
	message []byte
}

// Hub maintains the set of active clients and broadcasts messages to the
// clients of a channel.
type Hub struct {
	channels map[string]clients

	broadcast  chan broadcastMsg
	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	count atomic.Int64
}

func NewHub() *Hub {
	return &Hub{
		channels:   make(map[string]clients),
		broadcast:  make(chan broadcastMsg, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run owns the client maps until ctx is done
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for _, cs := range h.channels {
				for client := range cs {
					h.disconnect(client)
				}
			}
			return
		case client := <-h.register:
			if _, ok := h.channels[client.channel]; !ok {
				h.channels[client.channel] = make(clients)
			}
			h.channels[client.channel][client] = true
			h.count.Add(1)
		case client := <-h.unregister:
			if _, ok := h.channels[client.channel][client]; ok {
				h.disconnect(client)
			}
		case msg := <-h.broadcast:
			for client := range h.channels[msg.channel] {
				select {
				case client.send <- msg.message:
				default:
					h.disconnect(client)
				}
			}
		}
	}
}

func (h *Hub) disconnect(client *Client) {
	delete(h.channels[client.channel], client)
	close(client.send)
	h.count.Add(-1)
}

// Publish queues an event for every client of its channel
func (h *Hub) Publish(event Event) {
	msg, err := json.Marshal(event)
	if err != nil {
		log.Printf("[Realtime] Failed to encode event: %v", err)
		return
	}
	select {
	case h.broadcast <- broadcastMsg{channel: event.Channel, message: msg}:
	default:
		log.Printf("[Realtime] Broadcast queue full, dropping %s event on %s", event.Type, event.Channel)
	}
}

// PublishRecord encodes record and publishes it on channel
func (h *Hub) PublishRecord(channel, eventType string, record interface{}) {
	raw, err := json.Marshal(record)
	if err != nil {
		log.Printf("[Realtime] Failed to encode record: %v", err)
		return
	}
	h.Publish(Event{Channel: channel, Type: eventType, Record: raw})
}

// ClientCount returns the number of connected listeners
func (h *Hub) ClientCount() int64 {
	return h.count.Load()
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Serve upgrades the request and registers the connection on channel
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, channel string) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	client := &Client{
		hub:     h,
		conn:    conn,
		channel: channel,
		send:    make(chan []byte, sendBuffer),
	}
	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return errHubStopped
	}

	go client.runWriter()
	go client.runReader()
	return nil
}
