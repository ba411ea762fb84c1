// SPDX-License-Identifier: MIT
package transport

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	applog "termsonic/internal/log"
)

// WebSocketBroadcaster serves the published spectrum to WebSocket clients
// as JSON frames at a fixed interval. Slow or dead clients are dropped
// rather than allowed to back up the broadcast loop.
type WebSocketBroadcaster struct {
	addr     string
	source   SnapshotSource
	interval time.Duration

	upgrader  websocket.Upgrader
	clients   map[*websocket.Conn]bool
	clientsMu sync.Mutex
	server    *http.Server

	doneChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// spectrumFrame is the JSON wire format for one snapshot.
type spectrumFrame struct {
	Type      string    `json:"type"`
	Bands     []float64 `json:"bands"`
	Peaks     []float64 `json:"peaks"`
	Timestamp time.Time `json:"timestamp"`
}

// NewWebSocketBroadcaster creates a broadcaster listening on addr and
// reading snapshots from source. Invalid intervals default to ~30Hz; the
// display already caps useful frame rates and remote viewers need less.
func NewWebSocketBroadcaster(addr string, source SnapshotSource, interval time.Duration) *WebSocketBroadcaster {
	if interval <= 0 {
		interval = 33 * time.Millisecond
	}

	return &WebSocketBroadcaster{
		addr:     addr,
		source:   source,
		interval: interval,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // Local visualization tool, not a hardened service.
			},
		},
		clients:  make(map[*websocket.Conn]bool),
		doneChan: make(chan struct{}),
	}
}

// Start launches the HTTP server and the broadcast loop.
func (b *WebSocketBroadcaster) Start() {
	mux := http.NewServeMux()
	mux.HandleFunc("/spectrum", b.handleWebSocket)

	b.server = &http.Server{
		Addr:    b.addr,
		Handler: mux,
	}

	go func() {
		applog.Infof("WebSocket: serving spectrum on ws://%s/spectrum", b.addr)
		if err := b.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			applog.Errorf("WebSocket: server error: %v", err)
		}
	}()

	b.wg.Add(1)
	go b.broadcastLoop()
}

func (b *WebSocketBroadcaster) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		applog.Warnf("WebSocket: upgrade error: %v", err)
		return
	}

	b.clientsMu.Lock()
	b.clients[conn] = true
	total := len(b.clients)
	b.clientsMu.Unlock()
	applog.Infof("WebSocket: client connected, total: %d", total)

	// Detect disconnects by reading until error.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				b.removeClient(conn)
				return
			}
		}
	}()
}

func (b *WebSocketBroadcaster) removeClient(conn *websocket.Conn) {
	b.clientsMu.Lock()
	if b.clients[conn] {
		delete(b.clients, conn)
		conn.Close()
	}
	total := len(b.clients)
	b.clientsMu.Unlock()
	applog.Infof("WebSocket: client disconnected, total: %d", total)
}

func (b *WebSocketBroadcaster) broadcastLoop() {
	defer b.wg.Done()

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-b.doneChan:
			return
		case <-ticker.C:
		}

		b.clientsMu.Lock()
		if len(b.clients) == 0 {
			b.clientsMu.Unlock()
			continue
		}

		snap := b.source.Snapshot()
		frame := spectrumFrame{
			Type:      "spectrum",
			Bands:     snap.Bands,
			Peaks:     snap.Peaks,
			Timestamp: snap.Timestamp,
		}

		for conn := range b.clients {
			if err := conn.WriteJSON(frame); err != nil {
				applog.Warnf("WebSocket: dropping client: %v", err)
				delete(b.clients, conn)
				conn.Close()
			}
		}
		b.clientsMu.Unlock()
	}
}

// Close stops the broadcast loop, disconnects all clients and shuts down
// the HTTP server.
func (b *WebSocketBroadcaster) Close() error {
	b.stopOnce.Do(func() {
		close(b.doneChan)
	})
	b.wg.Wait()

	b.clientsMu.Lock()
	for conn := range b.clients {
		conn.Close()
	}
	b.clients = make(map[*websocket.Conn]bool)
	b.clientsMu.Unlock()

	if b.server != nil {
		return b.server.Close()
	}
	return nil
}

var _ Publisher = (*WebSocketBroadcaster)(nil)
