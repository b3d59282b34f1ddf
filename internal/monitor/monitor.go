// Package monitor serves a live view of one or more running algorithm
// instances: each instance's engine.InfoHook feeds a snapshot into this
// package, and any connected websocket client receives the latest
// snapshot on a fixed interval, the read-only counterpart to
// internal/remote's worker-facing routes.
package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	channerics "github.com/niceyeti/channerics/channels"
	"golang.org/x/sync/errgroup"

	"github.com/niceyeti/genevo/internal/engine"
)

// Snapshot is what a connected client receives: enough of an
// algorithm's running state to render a progress view, the JSON analog
// of the teacher's fastview.EleUpdate batches.
type Snapshot struct {
	Name            string    `json:"name"`
	Event           string    `json:"event"`
	Iteration       uint64    `json:"iteration"`
	BestRaw         float64   `json:"bestRaw"`
	BestTransformed float64   `json:"bestTransformed"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// Monitor tracks the latest snapshot per named algorithm instance. One
// Monitor backs one Server; algorithms register a hook via Hook and the
// engine calls it at every InfoInit/InfoProcessing/InfoEnd.
type Monitor struct {
	mu        sync.RWMutex
	snapshots map[string]Snapshot
}

// New returns an empty monitor.
func New() *Monitor {
	return &Monitor{snapshots: map[string]Snapshot{}}
}

// Hook returns an engine.InfoHook that records iteration/fitness
// snapshots under name, for engine.Engine.Hooks.
func (m *Monitor) Hook(name string) engine.InfoHook {
	return func(event engine.InfoEvent, iteration uint64, best engine.CycleResult) error {
		snap := Snapshot{
			Name:            name,
			Event:           event.String(),
			Iteration:       iteration,
			BestRaw:         best.BestRaw,
			BestTransformed: best.BestTransformed,
			UpdatedAt:       time.Now(),
		}
		m.mu.Lock()
		m.snapshots[name] = snap
		m.mu.Unlock()
		return nil
	}
}

// Get returns the most recent snapshot recorded for name.
func (m *Monitor) Get(name string) (Snapshot, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.snapshots[name]
	return s, ok
}

// All returns every currently-tracked snapshot.
func (m *Monitor) All() []Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Snapshot, 0, len(m.snapshots))
	for _, s := range m.snapshots {
		out = append(out, s)
	}
	return out
}

const (
	writeWait      = 2 * time.Second
	pingResolution = 500 * time.Millisecond
	pongWait       = pingResolution * 4
	pushResolution = 250 * time.Millisecond
)

var upgrader = websocket.Upgrader{}

// Server exposes a Monitor's snapshots over HTTP: "/snapshots" for a
// one-shot poll of everything tracked, and "/ws/{name}" for a push feed
// of one instance's snapshot, pushed on pushResolution as long as it
// has changed since the last send.
type Server struct {
	Monitor *Monitor
	router  *mux.Router
}

// NewServer returns a Server backed by m.
func NewServer(m *Monitor) *Server {
	s := &Server{Monitor: m}
	r := mux.NewRouter()
	r.HandleFunc("/snapshots", s.serveSnapshots).Methods(http.MethodGet)
	r.HandleFunc("/ws/{name}", s.serveWatch)
	s.router = r
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe blocks serving monitor clients until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.router}
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		return srv.Close()
	})
	return group.Wait()
}

func (s *Server) serveSnapshots(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.Monitor.All())
}

func (s *Server) serveWatch(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	defer closeConn(ws)

	group, ctx := errgroup.WithContext(r.Context())
	pong := make(chan struct{}, 1)
	ws.SetPongHandler(func(string) error {
		select {
		case pong <- struct{}{}:
		default:
		}
		return nil
	})

	group.Go(func() error { return s.push(ctx, ws, name) })
	group.Go(func() error { return pingPong(ctx, ws, pong) })
	group.Go(func() error {
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return err
			}
		}
	})
	_ = group.Wait()
}

// push sends name's snapshot to ws every pushResolution, skipping sends
// when nothing has changed since the last one.
func (s *Server) push(ctx context.Context, ws *websocket.Conn, name string) error {
	ticker := channerics.NewTicker(ctx.Done(), pushResolution)
	var lastSent time.Time
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker:
			snap, ok := s.Monitor.Get(name)
			if !ok || !snap.UpdatedAt.After(lastSent) {
				continue
			}
			if err := writeJSON(ws, snap); err != nil {
				return err
			}
			lastSent = snap.UpdatedAt
		}
	}
}

func pingPong(ctx context.Context, ws *websocket.Conn, pong <-chan struct{}) error {
	ticker := channerics.NewTicker(ctx.Done(), pingResolution)
	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker:
			if time.Since(last) > pongWait {
				return fmt.Errorf("monitor: pong deadline exceeded")
			}
			if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return err
			}
		case <-pong:
			last = time.Now()
		}
	}
}

func writeJSON(ws *websocket.Conn, v interface{}) error {
	if err := ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return ws.WriteJSON(v)
}

func closeConn(ws *websocket.Conn) {
	_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
	_ = ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_ = ws.Close()
}
