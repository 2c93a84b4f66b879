package services

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"market_scanner_backend/services/scanner"
)

// Constants for service configuration
const (
	MaxWebSocketClients   = 100
	WebSocketWriteTimeout = 10 * time.Second
	WebSocketPongTimeout  = 60 * time.Second
	WebSocketPingInterval = 30 * time.Second
)

// ScanEvent is a message broadcast to WebSocket clients
type ScanEvent struct {
	Type string      `json:"type"` // "scan_cycle" or "full_scan_complete"
	Data interface{} `json:"data"`
	Time string      `json:"time"`
}

// ScanCyclePayload summarizes one completed scan cycle
type ScanCyclePayload struct {
	WaveNumber       int     `json:"wave_number"`
	Tier1Count       int     `json:"tier1_count"`
	Tier2Count       int     `json:"tier2_count"`
	Tier3Count       int     `json:"tier3_count"`
	TotalSymbols     int     `json:"total_symbols"`
	UniverseProgress float64 `json:"universe_progress"`
	DurationMs       int64   `json:"duration_ms"`
}

// wsClient represents one connected WebSocket client
type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// RealtimeScanService broadcasts scan cycle events to WebSocket clients
type RealtimeScanService struct {
	clients    map[*wsClient]bool
	broadcast  chan ScanEvent
	register   chan *wsClient
	unregister chan *wsClient
	shutdown   chan struct{}
	mu         sync.Mutex
	upgrader   websocket.Upgrader
}

// NewRealtimeScanService creates the broadcast hub. Call Run in a
// goroutine to start it.
func NewRealtimeScanService() *RealtimeScanService {
	return &RealtimeScanService{
		clients:    make(map[*wsClient]bool),
		broadcast:  make(chan ScanEvent, 256),
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		shutdown:   make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// Shutdown gracefully closes all client connections
func (s *RealtimeScanService) Shutdown() {
	close(s.shutdown)

	s.mu.Lock()
	for client := range s.clients {
		close(client.send)
		client.conn.Close()
	}
	s.clients = make(map[*wsClient]bool)
	s.mu.Unlock()

	log.Println("Realtime scan service shutdown complete")
}

// Run starts the WebSocket hub
func (s *RealtimeScanService) Run() {
	for {
		select {
		case <-s.shutdown:
			return

		case client := <-s.register:
			s.mu.Lock()
			if len(s.clients) >= MaxWebSocketClients {
				s.mu.Unlock()
				client.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "Server at capacity"))
				client.conn.Close()
				log.Printf("WebSocket client rejected: max clients reached (%d)", MaxWebSocketClients)
				continue
			}
			s.clients[client] = true
			clientCount := len(s.clients)
			s.mu.Unlock()
			log.Printf("WebSocket client connected. Total clients: %d", clientCount)

		case client := <-s.unregister:
			s.mu.Lock()
			if _, ok := s.clients[client]; ok {
				delete(s.clients, client)
				close(client.send)
			}
			clientCount := len(s.clients)
			s.mu.Unlock()
			log.Printf("WebSocket client disconnected. Total clients: %d", clientCount)

		case event := <-s.broadcast:
			data, err := json.Marshal(event)
			if err != nil {
				log.Printf("Error marshaling broadcast event: %v", err)
				continue
			}

			s.mu.Lock()
			deadClients := make([]*wsClient, 0)
			for client := range s.clients {
				select {
				case client.send <- data:
				default:
					// Client buffer full, mark for removal
					deadClients = append(deadClients, client)
				}
			}
			for _, client := range deadClients {
				delete(s.clients, client)
				close(client.send)
			}
			s.mu.Unlock()
		}
	}
}

// BroadcastScanCycle publishes a scan-cycle summary to all clients
func (s *RealtimeScanService) BroadcastScanCycle(batch scanner.Batch, durationMs int64) {
	s.publish(ScanEvent{
		Type: "scan_cycle",
		Data: ScanCyclePayload{
			WaveNumber:       batch.WaveNumber,
			Tier1Count:       len(batch.Tier1),
			Tier2Count:       len(batch.Tier2),
			Tier3Count:       len(batch.Tier3),
			TotalSymbols:     batch.TotalSymbols,
			UniverseProgress: batch.UniverseProgress,
			DurationMs:       durationMs,
		},
		Time: time.Now().Format(time.RFC3339),
	})
}

// BroadcastFullScanComplete publishes the coverage-completion signal
func (s *RealtimeScanService) BroadcastFullScanComplete(stats scanner.Stats) {
	s.publish(ScanEvent{
		Type: "full_scan_complete",
		Data: stats,
		Time: time.Now().Format(time.RFC3339),
	})
}

func (s *RealtimeScanService) publish(event ScanEvent) {
	select {
	case s.broadcast <- event:
	default:
		log.Println("Broadcast channel full, dropping scan event")
	}
}

// HandleWebSocket upgrades the connection and registers the client
func (s *RealtimeScanService) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	atCapacity := len(s.clients) >= MaxWebSocketClients
	s.mu.Unlock()

	if atCapacity {
		http.Error(w, "Server at capacity", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	client := &wsClient{
		conn: conn,
		send: make(chan []byte, 256),
	}

	s.register <- client

	go client.writePump()
	go client.readPump(s)
}

// writePump writes messages to the WebSocket connection
func (c *wsClient) writePump() {
	ticker := time.NewTicker(WebSocketPingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(WebSocketWriteTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(WebSocketWriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump drains client messages and keeps the pong deadline fresh
func (c *wsClient) readPump(s *RealtimeScanService) {
	defer func() {
		s.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(WebSocketPongTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(WebSocketPongTimeout))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
