package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"farmrent/internal/events"
	"farmrent/internal/models"
	"farmrent/internal/session"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	feedSendBuffer   = 32
	feedWriteTimeout = 5 * time.Second
	feedPongWait     = 60 * time.Second
	feedPingPeriod   = feedPongWait * 9 / 10
)

// FeedMessage is pushed to a party whenever a request they take part in
// changes in the window's view.
type FeedMessage struct {
	Type     string                `json:"type"`
	Origin   string                `json:"origin"`
	WindowID string                `json:"window_id"`
	Request  *models.RentalRequest `json:"request"`
}

// Feed serves the WebSocket push channel. Each connection watches the window
// and receives only requests where its email is the farmer or the provider.
type Feed struct {
	window   *session.Window
	upgrader websocket.Upgrader
	logger   *zerolog.Logger

	mu      sync.Mutex
	clients map[*feedClient]struct{}
}

type feedClient struct {
	email string
	conn  *websocket.Conn
	send  chan []byte
	done  chan struct{}
	once  sync.Once
}

func NewFeed(window *session.Window, logger *zerolog.Logger) *Feed {
	return &Feed{
		window:   window,
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		logger:   logger,
		clients:  make(map[*feedClient]struct{}),
	}
}

// ServeWS handles GET /api/v1/ws. The party is the X-User-Email header, as on
// the REST routes; browsers cannot set headers on a handshake, so ?email= is
// accepted when the header is absent.
func (f *Feed) ServeWS(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(r.Header.Get(headerUserEmail))
	if email == "" {
		email = strings.TrimSpace(r.URL.Query().Get("email"))
	}
	if email == "" {
		writeError(w, http.StatusUnauthorized, "missing email")
		return
	}

	c := &feedClient{
		email: email,
		send:  make(chan []byte, feedSendBuffer),
		done:  make(chan struct{}),
	}
	// Watch before the handshake completes so nothing published right after
	// the client connects is missed.
	stop := f.window.Watch(func(ev *events.Event) { f.push(c, ev) })

	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		stop()
		f.logger.Warn().Err(err).Str("email", email).Msg("ws upgrade failed")
		return
	}
	c.conn = conn

	f.mu.Lock()
	f.clients[c] = struct{}{}
	f.mu.Unlock()
	f.logger.Debug().Str("email", email).Msg("ws client connected")

	go f.writeLoop(c)
	go f.readLoop(c, stop)
}

func (f *Feed) push(c *feedClient, ev *events.Event) {
	if ev.Request == nil || !ev.Request.IsParty(c.email) {
		return
	}
	payload, err := json.Marshal(FeedMessage{
		Type:     ev.Type,
		Origin:   ev.Origin,
		WindowID: ev.WindowID,
		Request:  ev.Request,
	})
	if err != nil {
		return
	}
	select {
	case c.send <- payload:
	case <-c.done:
	default:
		f.logger.Warn().Str("email", c.email).Str("request_id", ev.Request.ID).Msg("ws client too slow, dropping event")
	}
}

func (f *Feed) readLoop(c *feedClient, stop func()) {
	defer func() {
		stop()
		f.drop(c)
	}()

	c.conn.SetReadLimit(1024)
	_ = c.conn.SetReadDeadline(time.Now().Add(feedPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(feedPongWait))
	})

	for {
		mt, msg, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(feedPongWait))

		if mt == websocket.TextMessage && strings.EqualFold(strings.TrimSpace(string(msg)), "ping") {
			select {
			case c.send <- []byte("pong"):
			case <-c.done:
			}
		}
	}
}

func (f *Feed) writeLoop(c *feedClient) {
	ticker := time.NewTicker(feedPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case payload := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(feedWriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				f.logger.Debug().Err(err).Str("email", c.email).Msg("ws write failed")
				f.drop(c)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(feedWriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				f.drop(c)
				return
			}
		case <-c.done:
			return
		}
	}
}

func (f *Feed) drop(c *feedClient) {
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.Close()
		f.mu.Lock()
		delete(f.clients, c)
		f.mu.Unlock()
		f.logger.Debug().Str("email", c.email).Msg("ws client disconnected")
	})
}

// Clients is the number of open connections.
func (f *Feed) Clients() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.clients)
}

// Close disconnects every client.
func (f *Feed) Close() {
	f.mu.Lock()
	clients := make([]*feedClient, 0, len(f.clients))
	for c := range f.clients {
		clients = append(clients, c)
	}
	f.mu.Unlock()

	for _, c := range clients {
		f.drop(c)
	}
}
