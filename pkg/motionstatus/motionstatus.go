// Package motionstatus broadcasts motion-core status snapshots over a
// websocket, narrowed from pkg/moonraker/server.go's client/broadcast
// pattern (status subscriptions, a per-client send channel, a periodic
// broadcast loop) down to one fixed payload: buffer-state histogram
// plus the running group/block's progress fields.
package motionstatus

import (
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kcant/g2/pkg/log"
	"github.com/kcant/g2/pkg/motion"
	"github.com/kcant/g2/pkg/printtime"
)

var logger = log.New("motionstatus")

// Snapshot is the payload broadcast to subscribers, a trimmed status
// report standing in for spec.md §6's request_status_report.
type Snapshot struct {
	BufferStates map[string]int `json:"buffer_states"`
	GroupState   string         `json:"group_state"`
	BlockPlanned bool           `json:"block_planned"`
	Section      string         `json:"section"`

	// PrintTime/BufferTime/PrintStall are populated only when Source
	// also implements PrintTimeSource; a daemon that doesn't track
	// scheduled print time (pkg/printtime) leaves these at zero.
	PrintTime  float64 `json:"print_time,omitempty"`
	BufferTime float64 `json:"buffer_time,omitempty"`
	PrintStall int     `json:"print_stall,omitempty"`
}

// Source supplies the data a Snapshot is built from; implemented by the
// motion core's owning daemon (cmd/motiond).
type Source interface {
	BufferStats() map[motion.BufferState]int
	RunningGroupState() motion.GroupState
	RunningBlockPlanned() bool
	CurrentSection() motion.Section
}

// PrintTimeSource is an optional extension of Source for daemons that
// also track scheduled print time via pkg/printtime (MCU clock-relative
// buffer/stall accounting), narrowed from the teacher's toolhead status
// report down to the fields this server broadcasts.
type PrintTimeSource interface {
	PrintTimeStatus() printtime.Status
}

// Server is a minimal websocket broadcast server for motion status.
type Server struct {
	source Source

	httpServer *http.Server
	addr       string

	upgrader  websocket.Upgrader
	clients   map[int64]*client
	clientsMu sync.RWMutex
	nextID    int64

	running atomic.Bool
}

type client struct {
	id     int64
	conn   *websocket.Conn
	sendCh chan Snapshot
	done   chan struct{}
}

// New creates a status server listening on addr, broadcasting Snapshots
// pulled from source.
func New(addr string, source Source) *Server {
	return &Server{
		source:  source,
		addr:    addr,
		clients: make(map[int64]*client),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Start begins serving and broadcasting until Stop is called.
func (s *Server) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/motion/status", s.handleWebSocket)
	s.httpServer = &http.Server{Addr: s.addr, Handler: mux}
	s.running.Store(true)

	go s.broadcastLoop()

	return s.httpServer.ListenAndServe()
}

// Stop shuts the server down.
func (s *Server) Stop() {
	s.running.Store(false)
	if s.httpServer != nil {
		s.httpServer.Close()
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("websocket upgrade error: %v", err)
		return
	}

	id := atomic.AddInt64(&s.nextID, 1)
	c := &client{id: id, conn: conn, sendCh: make(chan Snapshot, 8), done: make(chan struct{})}

	s.clientsMu.Lock()
	s.clients[id] = c
	s.clientsMu.Unlock()

	go s.writePump(c)
	s.readPump(c)
}

func (s *Server) readPump(c *client) {
	defer s.removeClient(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) writePump(c *client) {
	defer c.conn.Close()
	for {
		select {
		case snap, ok := <-c.sendCh:
			if !ok {
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := c.conn.WriteJSON(snap); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

func (s *Server) removeClient(c *client) {
	s.clientsMu.Lock()
	delete(s.clients, c.id)
	s.clientsMu.Unlock()
	select {
	case <-c.done:
	default:
		close(c.done)
	}
}

func (s *Server) broadcastLoop() {
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for s.running.Load() {
		<-ticker.C
		s.broadcastOnce()
	}
}

func (s *Server) broadcastOnce() {
	if s.source == nil {
		return
	}
	snap := s.buildSnapshot()

	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	for _, c := range s.clients {
		select {
		case c.sendCh <- snap:
		default:
			logger.Warn("dropping snapshot to client %d (channel full)", c.id)
		}
	}
}

func (s *Server) buildSnapshot() Snapshot {
	raw := s.source.BufferStats()
	states := make(map[string]int, len(raw))
	for k, v := range raw {
		states[k.String()] = v
	}
	snap := Snapshot{
		BufferStates: states,
		GroupState:   s.source.RunningGroupState().String(),
		BlockPlanned: s.source.RunningBlockPlanned(),
		Section:      s.source.CurrentSection().String(),
	}
	if pts, ok := s.source.(PrintTimeSource); ok {
		st := pts.PrintTimeStatus()
		snap.PrintTime = st.PrintTime
		snap.BufferTime = st.BufferTime
		snap.PrintStall = st.PrintStall
	}
	return snap
}
