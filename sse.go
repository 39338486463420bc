package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	clientBuffer      = 256
	keepaliveInterval = 30 * time.Second
	wsWriteTimeout    = 5 * time.Second
	statsDebounce     = 500 * time.Millisecond
)

// liveClient is one SSE or websocket subscriber.
type liveClient struct {
	id   string
	send chan []byte
}

// Broadcaster fans live updates out to SSE and websocket clients. A client
// whose buffer is full misses the message rather than slowing the sender.
type Broadcaster struct {
	mu      sync.RWMutex
	clients map[string]*liveClient
	done    chan struct{}
	closed  sync.Once

	stats      func() StatsResponse
	statsMu    sync.Mutex
	lastStats  *StatsResponse
	debounceMu sync.Mutex
	debouncer  *time.Timer
	debounce   time.Duration

	log zerolog.Logger
}

func NewBroadcaster(log zerolog.Logger) *Broadcaster {
	return &Broadcaster{
		clients:  make(map[string]*liveClient),
		done:     make(chan struct{}),
		debounce: statsDebounce,
		log:      log,
	}
}

// SetStatsSource sets the function used for stats_update messages.
func (b *Broadcaster) SetStatsSource(fn func() StatsResponse) {
	b.statsMu.Lock()
	b.stats = fn
	b.statsMu.Unlock()
}

func (b *Broadcaster) subscribe(kind string) *liveClient {
	b.mu.Lock()
	defer b.mu.Unlock()
	client := &liveClient{
		id:   kind + "-" + uuid.NewString(),
		send: make(chan []byte, clientBuffer),
	}
	b.clients[client.id] = client
	b.log.Info().Str("client_id", client.id).Int("total", len(b.clients)).Msg("[SSE] Client connected")
	return client
}

func (b *Broadcaster) unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if client, ok := b.clients[id]; ok {
		close(client.send)
		delete(b.clients, id)
		b.log.Info().Str("client_id", id).Int("total", len(b.clients)).Msg("[SSE] Client disconnected")
	}
}

// ClientCount returns the number of connected clients.
func (b *Broadcaster) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// Publish sends {"type": kind, "data": data} to every client.
func (b *Broadcaster) Publish(kind string, data interface{}) error {
	message, err := json.Marshal(map[string]interface{}{
		"type": kind,
		"data": data,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal %s update: %w", kind, err)
	}
	b.broadcast(message)
	return nil
}

func (b *Broadcaster) broadcast(message []byte) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if len(b.clients) == 0 {
		return
	}
	dropped := 0
	for id, client := range b.clients {
		select {
		case client.send <- message:
		default:
			dropped++
			b.log.Warn().Str("client_id", id).Msg("[SSE] Client channel full, dropping message")
		}
	}
	b.log.Debug().Int("total", len(b.clients)).Int("dropped", dropped).Int("bytes", len(message)).
		Msg("[SSE] Broadcast completed")
}

// MonitorChanged publishes the monitor and schedules a stats refresh.
func (b *Broadcaster) MonitorChanged(summary MonitorSummary) {
	if err := b.Publish("monitor_update", summary); err != nil {
		b.log.Error().Err(err).Msg("[SSE] Failed to publish monitor update")
	}
	b.ScheduleStats()
}

// MonitorDeleted publishes the removal of a monitor.
func (b *Broadcaster) MonitorDeleted(id string) {
	if err := b.Publish("monitor_deleted", map[string]string{"id": id}); err != nil {
		b.log.Error().Err(err).Msg("[SSE] Failed to publish monitor deletion")
	}
	b.ScheduleStats()
}

// ScheduleStats pushes stats once updates have been quiet for the debounce
// period, and only when they differ from the last pushed value.
func (b *Broadcaster) ScheduleStats() {
	b.debounceMu.Lock()
	defer b.debounceMu.Unlock()

	if b.debouncer != nil {
		b.debouncer.Stop()
	}
	b.debouncer = time.AfterFunc(b.debounce, b.pushStats)
}

func (b *Broadcaster) pushStats() {
	b.statsMu.Lock()
	if b.stats == nil {
		b.statsMu.Unlock()
		return
	}
	stats := b.stats()
	if b.lastStats != nil && *b.lastStats == stats {
		b.statsMu.Unlock()
		b.log.Debug().Msg("[SSE] Stats unchanged, skipping broadcast")
		return
	}
	b.lastStats = &stats
	b.statsMu.Unlock()

	b.log.Debug().Int("up", stats.Up).Int("down", stats.Down).Float64("uptime", stats.OverallUptime).
		Msg("[SSE] Stats changed - broadcasting update")
	if err := b.Publish("stats_update", stats); err != nil {
		b.log.Error().Err(err).Msg("[SSE] Failed to publish stats")
	}
}

// Close disconnects every live client and stops pending stats pushes.
func (b *Broadcaster) Close() {
	b.closed.Do(func() {
		close(b.done)
		b.debounceMu.Lock()
		if b.debouncer != nil {
			b.debouncer.Stop()
		}
		b.debounceMu.Unlock()
	})
}

// ServeSSE streams updates as Server-Sent Events.
func (b *Broadcaster) ServeSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	client := b.subscribe("sse")
	defer b.unsubscribe(client.id)

	fmt.Fprintf(w, "data: %s\n\n", `{"type":"connected"}`)
	flusher.Flush()

	ticker := time.NewTicker(keepaliveInterval)
	defer ticker.Stop()

	for {
		select {
		case message, ok := <-client.send:
			if !ok {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", message)
			flusher.Flush()
		case <-ticker.C:
			fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()
		case <-r.Context().Done():
			return
		case <-b.done:
			return
		}
	}
}

var wsUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		host := strings.ToLower(strings.TrimSpace(r.Host))
		originHost := strings.ToLower(strings.TrimSpace(u.Host))
		return host == originHost
	},
}

// ServeWS streams the same updates over a websocket.
func (b *Broadcaster) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		b.log.Debug().Err(err).Msg("[WS] Upgrade failed")
		return
	}
	defer conn.Close()

	client := b.subscribe("ws")
	defer b.unsubscribe(client.id)

	if err := writeWS(conn, websocket.TextMessage, []byte(`{"type":"connected"}`)); err != nil {
		return
	}

	// Reads only detect the peer going away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(keepaliveInterval)
	defer ticker.Stop()

	for {
		select {
		case message, ok := <-client.send:
			if !ok {
				return
			}
			if err := writeWS(conn, websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			if err := writeWS(conn, websocket.PingMessage, nil); err != nil {
				return
			}
		case <-gone:
			return
		case <-b.done:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
				time.Now().Add(wsWriteTimeout))
			return
		}
	}
}

func writeWS(conn *websocket.Conn, messageType int, data []byte) error {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return conn.WriteMessage(messageType, data)
}
