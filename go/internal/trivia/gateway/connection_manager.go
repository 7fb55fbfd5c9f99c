package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/knockout/go/internal/trivia/events"
)

// MessageHandler processes one inbound client frame.
type MessageHandler interface {
	HandleMessage(ctx context.Context, c *Connection, message []byte)
}

// ConnectionManager manages WebSocket connections grouped by game code
type ConnectionManager struct {
	// Connection pools organized by game code
	gameConnections map[string]map[*Connection]bool
	mu              sync.RWMutex

	// HTTP → websocket
	upgrader websocket.Upgrader

	// Timeouts and buffer sizes
	config ConnectionConfig

	// Outbound events, drained by Start
	broadcastCh chan *events.Event
	// Events refused because broadcastCh was full
	dropped atomic.Int64
}

// Connection is one websocket client. It belongs to at most one game at a time.
type Connection struct {
	ID      string
	Conn    *websocket.Conn
	Send    chan []byte
	Manager *ConnectionManager

	handler MessageHandler
	ctx     context.Context
	cancel  context.CancelFunc

	// code is the game this connection is subscribed to, guarded by Manager.mu
	code string

	// Set once at upgrade
	ConnectedAt time.Time
}

// ConnectionConfig tunes the websocket transport.
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	CommandTimeout  time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	SendBufferSize  int
	CheckOrigin     func(r *http.Request) bool
}

// DefaultConnectionConfig suits a LAN or browser audience.
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		CommandTimeout:  5 * time.Second,
		MaxMessageSize:  16 * 1024,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		SendBufferSize:  256,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
}

// NewConnectionManager returns a manager; call Start to drain broadcasts.
func NewConnectionManager(config ConnectionConfig) *ConnectionManager {
	return &ConnectionManager{
		gameConnections: make(map[string]map[*Connection]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		broadcastCh: make(chan *events.Event, 1000),
	}
}

// Start drains queued events until ctx is done.
func (cm *ConnectionManager) Start(ctx context.Context) {
	log.Info().Msg("gateway broadcast loop started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("gateway broadcast loop stopped")
			return
		case ev := <-cm.broadcastCh:
			cm.handleBroadcast(ev)
		}
	}
}

// UpgradeConnection upgrades an HTTP connection to WebSocket and starts its pumps
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request, handler MessageHandler) (*Connection, error) {
	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to upgrade connection: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	connection := &Connection{
		ID:          uuid.New().String(),
		Conn:        conn,
		Send:        make(chan []byte, cm.config.SendBufferSize),
		Manager:     cm,
		handler:     handler,
		ctx:         ctx,
		cancel:      cancel,
		ConnectedAt: time.Now(),
	}

	go connection.writePump()
	go connection.readPump()

	log.Info().
		Str("connection_id", connection.ID).
		Str("remote_addr", r.RemoteAddr).
		Msg("client connected")

	return connection, nil
}

// Subscribe moves a connection into the broadcast group of code
func (cm *ConnectionManager) Subscribe(conn *Connection, code string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if conn.closed() {
		return
	}
	if conn.code == code {
		return
	}
	cm.leaveLocked(conn)

	if cm.gameConnections[code] == nil {
		cm.gameConnections[code] = make(map[*Connection]bool)
	}
	cm.gameConnections[code][conn] = true
	conn.code = code

	log.Debug().
		Str("connection_id", conn.ID).
		Str("code", code).
		Int("total_connections", len(cm.gameConnections[code])).
		Msg("connection subscribed")
}

// Code returns the game the connection is subscribed to
func (cm *ConnectionManager) Code(conn *Connection) string {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return conn.code
}

func (cm *ConnectionManager) leaveLocked(conn *Connection) {
	if conn.code == "" {
		return
	}
	if connections, exists := cm.gameConnections[conn.code]; exists {
		delete(connections, conn)
		// Clean up empty game connection pools
		if len(connections) == 0 {
			delete(cm.gameConnections, conn.code)
		}
	}
	conn.code = ""
}

// unregisterConnection removes a connection from the manager and closes its send queue
func (cm *ConnectionManager) unregisterConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if conn.closed() {
		return
	}
	code := conn.code
	cm.leaveLocked(conn)
	conn.cancel()
	close(conn.Send)

	log.Info().
		Str("connection_id", conn.ID).
		Str("code", code).
		Msg("client disconnected")
}

// Broadcast queues an event for every connection subscribed to ev.Code. It never blocks the
// caller, which holds the game lock: when the queue is full the event is dropped and counted.
// Clients recover with game:getState.
func (cm *ConnectionManager) Broadcast(ev *events.Event) {
	select {
	case cm.broadcastCh <- ev:
	default:
		total := cm.dropped.Add(1)
		log.Error().
			Str("code", ev.Code).
			Str("event_type", string(ev.Type)).
			Int64("dropped_total", total).
			Msg("broadcast channel full, dropping message")
	}
}

// handleBroadcast fans one event out to every subscriber of its code.
func (cm *ConnectionManager) handleBroadcast(ev *events.Event) {
	cm.mu.RLock()
	connections, exists := cm.gameConnections[ev.Code]
	if !exists {
		cm.mu.RUnlock()
		return
	}

	// Copy the subscriber set; deliver re-checks each connection under the read lock.
	targetConnections := make([]*Connection, 0, len(connections))
	for conn := range connections {
		targetConnections = append(targetConnections, conn)
	}
	cm.mu.RUnlock()

	eventData, err := json.Marshal(ev)
	if err != nil {
		log.Error().Err(err).Str("event_type", string(ev.Type)).Msg("failed to encode event")
		return
	}

	for _, conn := range targetConnections {
		cm.deliver(conn, eventData)
	}

	log.Debug().
		Str("event_type", string(ev.Type)).
		Str("code", ev.Code).
		Int("connections", len(targetConnections)).
		Msg("event delivered")
}

// deliver queues data on one connection, dropping the connection when its buffer is full
func (cm *ConnectionManager) deliver(conn *Connection, data []byte) {
	cm.mu.RLock()
	if conn.closed() {
		cm.mu.RUnlock()
		return
	}
	select {
	case conn.Send <- data:
		cm.mu.RUnlock()
	default:
		cm.mu.RUnlock()
		log.Warn().
			Str("connection_id", conn.ID).
			Msg("client too slow, dropping connection")
		cm.unregisterConnection(conn)
		conn.Conn.Close()
	}
}

// GetConnectionStats counts connections overall and per game code.
func (cm *ConnectionManager) GetConnectionStats() Stats {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	stats := Stats{GameConnections: make(map[string]int)}
	for code, connections := range cm.gameConnections {
		count := len(connections)
		stats.TotalConnections += count
		stats.GameConnections[code] = count
	}
	stats.ActiveGames = len(cm.gameConnections)
	stats.DroppedEvents = cm.dropped.Load()
	return stats
}

// Stats summarizes subscribed connections
type Stats struct {
	TotalConnections int            `json:"total_connections"`
	ActiveGames      int            `json:"active_games"`
	GameConnections  map[string]int `json:"game_connections"`
	DroppedEvents    int64          `json:"dropped_events"`
}

// closed reports whether the connection has been unregistered. Callers hold Manager.mu.
func (c *Connection) closed() bool {
	return c.ctx.Err() != nil
}

// writePump owns all writes: queued frames plus keepalive pings.
func (c *Connection) writePump() {
	ticker := time.NewTicker(c.Manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
		c.Manager.unregisterConnection(c)
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if !ok {
				// Send closed by unregisterConnection
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("websocket write failed")
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("ping failed")
				return
			}
		}
	}
}

// readPump feeds inbound frames to the handler, one at a time, until the socket fails.
func (c *Connection) readPump() {
	defer func() {
		c.Manager.unregisterConnection(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.Manager.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("websocket closed unexpectedly")
			}
			break
		}

		if c.handler != nil {
			c.handler.HandleMessage(c.ctx, c, message)
		}
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	}
}

// Reply queues a direct message to this connection only
func (c *Connection) Reply(v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("connection_id", c.ID).Msg("failed to marshal reply")
		return
	}
	c.Manager.deliver(c, data)
}
