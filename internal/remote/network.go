package remote

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	channerics "github.com/niceyeti/channerics/channels"
	"golang.org/x/sync/errgroup"

	"github.com/niceyeti/genevo/internal/broker"
	"github.com/niceyeti/genevo/internal/candidate"
	"github.com/niceyeti/genevo/internal/evaluator/process"
	"github.com/niceyeti/genevo/internal/param"
)

// WorkItem is what Server sends a connected worker: a parameter
// document plus the iteration/command stamp carried on the broker.Item
// it was drawn from.
type WorkItem struct {
	Iteration uint64               `json:"iteration"`
	Command   string               `json:"command"`
	Doc       process.ParamDocument `json:"doc"`
}

// WorkResult is what a worker sends back.
type WorkResult struct {
	Result process.ResultDocument `json:"result"`
}

const (
	writeWait      = 2 * time.Second
	pingResolution = 500 * time.Millisecond
	pongWait       = pingResolution * 4
)

var upgrader = websocket.Upgrader{}

// Server exposes one websocket route per buffer pair, grounded on the
// teacher's server/fastview client: the same ping/pong liveness check
// and serialized-write discipline, generalized from pushing UI updates
// to round-tripping WorkItem/WorkResult pairs. One worker connection
// drains one buffer pair for as long as it stays connected; several
// workers may connect to the same route and will fairly share its
// outbound queue.
type Server struct {
	Registry *broker.Registry
	router   *mux.Router
}

// NewServer returns a Server routing "/ws/{buffer}" to the named
// buffer pair's outbound/inbound queues.
func NewServer(registry *broker.Registry) *Server {
	s := &Server{Registry: registry}
	r := mux.NewRouter()
	r.HandleFunc("/ws/{buffer}", s.serveWorker)
	s.router = r
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe blocks serving workers until ctx is cancelled.
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

func (s *Server) serveWorker(w http.ResponseWriter, r *http.Request) {
	bufferID := mux.Vars(r)["buffer"]
	pair, ok := s.Registry.Get(bufferID)
	if !ok {
		http.Error(w, fmt.Sprintf("remote: unknown buffer %q", bufferID), http.StatusNotFound)
		return
	}

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

	group.Go(func() error { return s.pump(ctx, ws, pair) })
	group.Go(func() error { return pingPong(ctx, ws, pong) })
	group.Go(func() error {
		// A read pump is required so the pong handler above actually
		// fires; the worker never sends unsolicited messages itself.
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return err
			}
		}
	})
	_ = group.Wait()
}

// pump drains pair's outbound queue to the connected worker and
// restores each result onto the in-flight candidate before pushing it
// to the inbound queue, one round-trip at a time per connection.
func (s *Server) pump(ctx context.Context, ws *websocket.Conn, pair *broker.BufferPair) error {
	for {
		var item *broker.Item
		select {
		case item = <-pair.Outbound:
		case <-ctx.Done():
			return ctx.Err()
		}

		doc := process.BuildParamDocument(item.Candidate.EvaluationID, item.Candidate.Params)
		wi := WorkItem{Iteration: item.Iteration, Command: item.Command.String(), Doc: doc}
		if err := writeJSON(ws, wi); err != nil {
			return err
		}

		var wr WorkResult
		if err := ws.ReadJSON(&wr); err != nil {
			return err
		}
		applyResult(item.Candidate, wr.Result)

		if err := pair.PushInbound(ctx, item); err != nil {
			return err
		}
	}
}

// applyResult folds a ResultDocument back onto a candidate through the
// same Evaluate path an in-process fitness function would, mirroring
// process.Client.FitnessFunc's adapter idiom instead of poking private
// candidate fields directly.
func applyResult(c *candidate.Candidate, result process.ResultDocument) {
	_ = c.Evaluate(func(_ param.Node, reg candidate.ResultRegister) (float64, error) {
		if !result.IsValid {
			return 0, fmt.Errorf("remote: evaluation %s reported invalid", result.EvaluationID)
		}
		if len(result.Results) == 0 {
			return 0, fmt.Errorf("remote: evaluation %s returned no results", result.EvaluationID)
		}
		for i, v := range result.Results[1:] {
			reg.RegisterSecondaryResult(i+1, v)
		}
		return result.Results[0], nil
	})
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
				return errors.New("remote: pong deadline exceeded")
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
