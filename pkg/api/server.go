// Package api serves the decoded datapoints over HTTP and streams every new
// event to websocket clients.
package api

import (
	"encoding/json"
	"net/http"
	"sort"
	"sync"

	"github.com/NotCoffee418/teleinfo/pkg/publisher"
	"github.com/NotCoffee418/teleinfo/pkg/sensor"
	"github.com/NotCoffee418/teleinfo/pkg/ticutils"
	"github.com/NotCoffee418/teleinfo/pkg/types"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

// Messages queued per websocket client before new ones are dropped.
const clientBuffer = 64

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

type Server struct {
	pub     *publisher.Publisher
	sensors *sensor.Set

	upgrader websocket.Upgrader

	wsClients      map[*wsClient]bool
	wsClientsMutex sync.RWMutex

	latest      map[string]*types.DatapointMessage
	latestMutex sync.RWMutex
}

// NewServer subscribes to every event of pub.
func NewServer(pub *publisher.Publisher, sensors *sensor.Set) *Server {
	s := &Server{
		pub:     pub,
		sensors: sensors,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Local network service
			},
		},
		wsClients: make(map[*wsClient]bool),
		latest:    make(map[string]*types.DatapointMessage),
	}
	pub.SubscribeAll(s.handleEvent)
	return s
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeJson(w, http.StatusOK, map[string]any{
			"message":   "Teleinfo Interpreter API",
			"status":    "running",
			"available": s.pub.Available(),
		})
	})

	mux.HandleFunc("/latest", func(w http.ResponseWriter, r *http.Request) {
		datapoints := s.latestDatapoints()
		if len(datapoints) == 0 {
			writeJson(w, http.StatusNotFound, map[string]string{
				"error": "No readings available yet",
			})
			return
		}

		var sensors map[string]sensor.State
		if s.sensors != nil {
			sensors = s.sensors.Snapshot()
		}
		body := map[string]any{
			"available":  s.pub.Available(),
			"datapoints": datapoints,
			"sensors":    sensors,
		}
		if energy, ok := s.totalEnergy(); ok {
			body["total_energy"] = energy
		}
		writeJson(w, http.StatusOK, body)
	})

	mux.HandleFunc("/energy", func(w http.ResponseWriter, r *http.Request) {
		energy, ok := s.totalEnergy()
		if !ok {
			writeJson(w, http.StatusNotFound, map[string]string{
				"error": "No total energy reading yet",
			})
			return
		}
		writeJson(w, http.StatusOK, energy)
	})

	mux.HandleFunc("/ws", s.serveWebSocket)

	return mux
}

func (s *Server) serveWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	client := s.addWebSocketClient(conn)

	// Send current readings immediately if available
	for _, msg := range s.latestDatapoints() {
		s.enqueue(client, msg.ToJsonBytes())
	}

	// Keep connection alive
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			s.removeWebSocketClient(client)
			return
		}
	}
}

// Called synchronously by the publisher; must not block on slow clients.
func (s *Server) handleEvent(ev publisher.Event) error {
	msg := types.NewDatapointMessage(ev)

	s.latestMutex.Lock()
	s.latest[ev.Key] = msg
	s.latestMutex.Unlock()

	s.broadcast(msg.ToJsonBytes())
	return nil
}

func (s *Server) broadcast(data []byte) {
	s.wsClientsMutex.RLock()
	defer s.wsClientsMutex.RUnlock()
	for client := range s.wsClients {
		s.enqueue(client, data)
	}
}

func (s *Server) enqueue(client *wsClient, data []byte) {
	select {
	case client.send <- data:
	default:
		log.Warn("WebSocket client too slow, dropping message")
	}
}

func (s *Server) addWebSocketClient(conn *websocket.Conn) *wsClient {
	client := &wsClient{conn: conn, send: make(chan []byte, clientBuffer)}
	s.wsClientsMutex.Lock()
	s.wsClients[client] = true
	s.wsClientsMutex.Unlock()

	go func() {
		for data := range client.send {
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				conn.Close()
				return
			}
		}
	}()
	return client
}

func (s *Server) removeWebSocketClient(client *wsClient) {
	s.wsClientsMutex.Lock()
	if s.wsClients[client] {
		delete(s.wsClients, client)
		close(client.send)
	}
	s.wsClientsMutex.Unlock()
	client.conn.Close()
}

func (s *Server) totalEnergy() (map[string]any, bool) {
	energy := s.pub.Energy()
	wh, ok := energy.Value()
	if !ok {
		return nil, false
	}
	return map[string]any{
		"key": energy.Key(),
		"wh":  wh,
		"kwh": ticutils.WhToKwh(wh),
	}, true
}

// Sorted by key for stable output.
func (s *Server) latestDatapoints() []*types.DatapointMessage {
	s.latestMutex.RLock()
	defer s.latestMutex.RUnlock()

	out := make([]*types.DatapointMessage, 0, len(s.latest))
	for _, msg := range s.latest {
		out = append(out, msg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func writeJson(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
