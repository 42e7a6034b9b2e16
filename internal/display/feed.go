// Package display fans the bus's reply traffic out to photo displays over
// websockets, so a frame on the wall can render text, phase, and audio
// without speaking NATS itself.
package display

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/keepsakelabs/keepsake-core/internal/bus"
	"github.com/keepsakelabs/keepsake-core/internal/protocol"
	"github.com/nats-io/nats.go"
)

// Frame is one websocket message: the kind tags which bus subject the data
// came from.
type Frame struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

const (
	FrameReply = "reply"
	FrameAudio = "audio"
)

const writeTimeout = 5 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 65536,
	CheckOrigin: func(r *http.Request) bool {
		// Displays live on the same trusted home network as the runtime.
		return true
	},
}

// display serializes writes to one connection. The reply and audio
// subscriptions dispatch on separate goroutines and gorilla/websocket allows
// exactly one concurrent writer per connection.
type display struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (d *display) write(frame []byte) error {
	d.writeMu.Lock()
	defer d.writeMu.Unlock()
	_ = d.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return d.conn.WriteMessage(websocket.TextMessage, frame)
}

type Feed struct {
	bus  *bus.Client
	log  *slog.Logger
	subs []*nats.Subscription

	mu      sync.Mutex
	clients map[*display]struct{}
}

func NewFeed(busClient *bus.Client, log *slog.Logger) *Feed {
	return &Feed{
		bus:     busClient,
		log:     log.With(slog.String("component", "display-feed")),
		clients: make(map[*display]struct{}),
	}
}

// Start subscribes to the reply subjects and begins forwarding.
func (f *Feed) Start() error {
	conn := f.bus.Conn()
	replySub, err := conn.Subscribe(protocol.SubjectReply, func(msg *nats.Msg) {
		f.broadcast(FrameReply, msg.Data)
	})
	if err != nil {
		return err
	}
	f.subs = append(f.subs, replySub)

	audioSub, err := conn.Subscribe(protocol.SubjectReplyAudio, func(msg *nats.Msg) {
		f.broadcast(FrameAudio, msg.Data)
	})
	if err != nil {
		f.Close()
		return err
	}
	f.subs = append(f.subs, audioSub)
	return nil
}

func (f *Feed) Close() {
	for _, sub := range f.subs {
		_ = sub.Drain()
	}
	f.subs = nil

	f.mu.Lock()
	defer f.mu.Unlock()
	for client := range f.clients {
		_ = client.conn.Close()
	}
	f.clients = make(map[*display]struct{})
}

// ServeHTTP upgrades the request and keeps the connection registered until
// the display goes away.
func (f *Feed) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		f.log.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	client := &display{conn: conn}

	f.mu.Lock()
	f.clients[client] = struct{}{}
	count := len(f.clients)
	f.mu.Unlock()
	f.log.Info("display connected", slog.String("remote", conn.RemoteAddr().String()), slog.Int("displays", count))

	// Displays only listen; the read loop exists to notice disconnects.
	go func() {
		defer f.drop(client)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (f *Feed) drop(client *display) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.clients[client]; ok {
		delete(f.clients, client)
		_ = client.conn.Close()
		f.log.Info("display disconnected", slog.Int("displays", len(f.clients)))
	}
}

func (f *Feed) broadcast(kind string, data []byte) {
	frame, err := json.Marshal(Frame{Kind: kind, Data: data})
	if err != nil {
		f.log.Warn("failed to encode frame", slog.String("error", err.Error()))
		return
	}

	f.mu.Lock()
	clients := make([]*display, 0, len(f.clients))
	for client := range f.clients {
		clients = append(clients, client)
	}
	f.mu.Unlock()

	for _, client := range clients {
		if err := client.write(frame); err != nil {
			f.drop(client)
		}
	}
}
