package web

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/mbocsi/kiosk/broker"
	"github.com/mbocsi/kiosk/proto"
)

const (
	feedBuffer     = 32
	feedWriteWait  = 5 * time.Second
	feedMaxClients = 16
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins
	},
}

// Feed streams broker events to websocket clients
type Feed struct {
	broker *broker.Broker

	mu         sync.Mutex
	clients    map[string]*feedClient
	reserved   int // slots held by connections still upgrading
	maxClients int
}

type feedClient struct {
	id     string
	conn   *websocket.Conn
	events chan proto.Event
	done   chan struct{}
	once   sync.Once
}

func NewFeed(b *broker.Broker) *Feed {
	return &Feed{
		broker:     b,
		clients:    make(map[string]*feedClient),
		maxClients: feedMaxClients,
	}
}

func generateClientId(prefix string) string {
	return prefix + "-" + uuid.NewString()
}

// HandleFeed upgrades the request and forwards every broker event as a JSON
// text message until the client goes away.
func (f *Feed) HandleFeed(wr http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	if len(f.clients)+f.reserved >= f.maxClients {
		f.mu.Unlock()
		slog.Warn("Max feed clients reached, rejecting connection", "remote_addr", r.RemoteAddr)
		http.Error(wr, "Too many feed clients", http.StatusServiceUnavailable)
		return
	}
	f.reserved++
	f.mu.Unlock()

	conn, err := upgrader.Upgrade(wr, r, nil)
	if err != nil {
		f.mu.Lock()
		f.reserved--
		f.mu.Unlock()
		slog.Error("Failed to upgrade connection", "error", err)
		return
	}

	c := &feedClient{
		id:     generateClientId("feed"),
		conn:   conn,
		events: make(chan proto.Event, feedBuffer),
		done:   make(chan struct{}),
	}

	f.broker.Subscribe(broker.TopicAll, c.events)
	f.mu.Lock()
	f.reserved--
	f.clients[c.id] = c
	f.mu.Unlock()
	slog.Info("Feed client connected", "id", c.id, "addr", r.RemoteAddr)

	go f.readLoop(c)
	f.writeLoop(c)

	f.broker.Unsubscribe(broker.TopicAll, c.events)
	f.mu.Lock()
	delete(f.clients, c.id)
	f.mu.Unlock()
	conn.Close()
	slog.Info("Feed client disconnected", "id", c.id)
}

// readLoop discards client messages and notices when the connection closes.
func (f *Feed) readLoop(c *feedClient) {
	defer c.close()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("Feed connection error", "id", c.id, "error", err)
			}
			return
		}
	}
}

func (f *Feed) writeLoop(c *feedClient) {
	for {
		select {
		case <-c.done:
			return
		case evt := <-c.events:
			data, err := json.Marshal(evt)
			if err != nil {
				slog.Warn("Failed to encode feed event", "topic", evt.Topic, "error", err)
				continue
			}
			c.conn.SetWriteDeadline(time.Now().Add(feedWriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				slog.Debug("Feed write failed", "id", c.id, "error", err)
				c.close()
				return
			}
		}
	}
}

func (c *feedClient) close() {
	c.once.Do(func() { close(c.done) })
}

// Clients returns the number of connected feed clients
func (f *Feed) Clients() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.clients)
}

// Close disconnects every feed client
func (f *Feed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.clients {
		c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		c.close()
	}
}
