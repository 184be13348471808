// Package ws streams broadcaster envelopes to browser clients over websockets.
package ws

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kilianp07/cad/core/broadcast"
	"github.com/kilianp07/cad/core/events"
	"github.com/kilianp07/cad/core/logger"
)

// Roles accepted in the role query parameter.
const (
	RoleDispatcher = "dispatcher"
	RoleOfficer    = "officer"
	RoleMap        = "map"
)

var roleTopics = map[string][]string{
	// dispatchers receive every topic, presence included
	RoleDispatcher: nil,
	RoleOfficer:    {events.TopicUnitStatus, events.TopicCallUnits, events.TopicPanic},
	RoleMap:        {events.TopicUnitStatus, events.TopicPanic},
}

// Config tunes websocket connections.
type Config struct {
	PingIntervalSeconds int      `json:"ping_interval_seconds"`
	WriteTimeoutSeconds int      `json:"write_timeout_seconds"`
	AllowedOrigins      []string `json:"allowed_origins"`
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.PingIntervalSeconds <= 0 {
		c.PingIntervalSeconds = 20
	}
	if c.WriteTimeoutSeconds <= 0 {
		c.WriteTimeoutSeconds = 10
	}
}

// Gateway upgrades HTTP requests and streams envelopes to the client until
// either side closes. It never reads commands from clients.
type Gateway struct {
	b        *broadcast.Broadcaster
	presence *broadcast.Presence
	log      logger.Logger
	upgrader websocket.Upgrader
	ping     time.Duration
	write    time.Duration
}

// New returns a Gateway streaming from b. Dispatcher connections are counted
// by presence.
func New(b *broadcast.Broadcaster, presence *broadcast.Presence, log logger.Logger, cfg Config) *Gateway {
	cfg.SetDefaults()
	g := &Gateway{
		b:        b,
		presence: presence,
		log:      logger.OrNop(log),
		ping:     time.Duration(cfg.PingIntervalSeconds) * time.Second,
		write:    time.Duration(cfg.WriteTimeoutSeconds) * time.Second,
	}
	g.upgrader = websocket.Upgrader{CheckOrigin: originChecker(cfg.AllowedOrigins)}
	return g
}

func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		_, ok := set[r.Header.Get("Origin")]
		return ok
	}
}

func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	role := r.URL.Query().Get("role")
	if role == "" {
		role = RoleMap
	}
	topics, ok := roleTopics[role]
	if !ok {
		http.Error(w, fmt.Sprintf("unknown role %q", role), http.StatusBadRequest)
		return
	}
	c, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.log.Warnf("upgrade: %v", err)
		return
	}
	sub := g.b.Subscribe(topics...)
	leave := func() {}
	if role == RoleDispatcher && g.presence != nil {
		leave = g.presence.Join()
	}
	g.log.Infof("ws %s connected", role)

	closed := make(chan struct{})
	go g.readLoop(c, closed)
	g.writeLoop(c, sub, closed)

	leave()
	g.b.Unsubscribe(sub)
	_ = c.Close()
	g.log.Infof("ws %s disconnected", role)
}

// readLoop discards inbound frames and keeps the read deadline fresh on pongs.
func (g *Gateway) readLoop(c *websocket.Conn, closed chan<- struct{}) {
	defer close(closed)
	c.SetReadLimit(1024)
	wait := 3 * g.ping
	_ = c.SetReadDeadline(time.Now().Add(wait))
	c.SetPongHandler(func(string) error {
		return c.SetReadDeadline(time.Now().Add(wait))
	})
	for {
		if _, _, err := c.ReadMessage(); err != nil {
			return
		}
	}
}

func (g *Gateway) writeLoop(c *websocket.Conn, sub <-chan broadcast.Envelope, closed <-chan struct{}) {
	t := time.NewTicker(g.ping)
	defer t.Stop()
	for {
		select {
		case <-closed:
			return
		case env, ok := <-sub:
			if !ok {
				_ = c.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
					time.Now().Add(g.write))
				return
			}
			_ = c.SetWriteDeadline(time.Now().Add(g.write))
			if err := c.WriteJSON(env); err != nil {
				g.log.Debugf("ws write %s: %v", env.Topic, err)
				return
			}
		case <-t.C:
			if err := c.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(g.write)); err != nil {
				return
			}
		}
	}
}
