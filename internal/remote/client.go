package remote

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	channerics "github.com/niceyeti/channerics/channels"
	"golang.org/x/sync/errgroup"

	"github.com/niceyeti/genevo/internal/candidate"
	"github.com/niceyeti/genevo/internal/param"
	"github.com/niceyeti/genevo/internal/evaluator/process"
)

// Client is the `--client` CLI mode of spec §6: a worker process that
// dials a genevo driver's internal/remote.Server instead of reading
// --evaluate/--input/--output flags, the networked sibling of
// internal/evaluator/process's external-process protocol.
type Client struct {
	Addr     string
	BufferID string
	Fitness  candidate.FitnessFunc
}

// NewClient returns a client that will dial ws://addr/ws/<bufferID> and
// evaluate every received parameter document against fitness.
func NewClient(addr, bufferID string, fitness candidate.FitnessFunc) *Client {
	return &Client{Addr: addr, BufferID: bufferID, Fitness: fitness}
}

// Run dials the server and services work items until ctx is cancelled
// or the connection drops, at which point it returns so the caller can
// decide whether to reconnect.
func (c *Client) Run(ctx context.Context) error {
	u := url.URL{Scheme: "ws", Host: c.Addr, Path: "/ws/" + c.BufferID}
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("remote: client dial %s: %w", u.String(), err)
	}
	defer closeConn(ws)

	group, groupCtx := errgroup.WithContext(ctx)
	pong := make(chan struct{}, 1)
	ws.SetPingHandler(func(string) error {
		select {
		case pong <- struct{}{}:
		default:
		}
		return ws.WriteControl(websocket.PongMessage, nil, time.Now().Add(writeWait))
	})

	group.Go(func() error { return c.serve(groupCtx, ws) })
	group.Go(func() error { return watchdog(groupCtx, pong) })
	return group.Wait()
}

// serve is the request/response loop: read a WorkItem, evaluate it
// against the locally-known problem, write back a WorkResult.
func (c *Client) serve(ctx context.Context, ws *websocket.Conn) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		var wi WorkItem
		if err := ws.ReadJSON(&wi); err != nil {
			return err
		}

		result := c.evaluate(wi)
		if err := writeJSON(ws, WorkResult{Result: result}); err != nil {
			return err
		}
	}
}

// evaluate reconstructs a throwaway parameter tree from the received
// document's named values, runs Fitness against it, and packages the
// primary/secondary results into a ResultDocument matching §6's
// external evaluator protocol shape.
func (c *Client) evaluate(wi WorkItem) process.ResultDocument {
	root := treeFromDocument(wi.Doc)
	cand := candidate.New(root, false, 0)

	if err := cand.Evaluate(c.Fitness); err != nil {
		return process.ResultDocument{EvaluationID: wi.Doc.EvaluationID, IsValid: false}
	}

	results := make([]float64, 1+len(cand.Secondary))
	results[0] = cand.Primary.Raw
	for i, s := range cand.Secondary {
		results[i+1] = s.Raw
	}
	return process.ResultDocument{
		EvaluationID: wi.Doc.EvaluationID,
		NResults:     len(results),
		Results:      results,
		IsValid:      true,
	}
}

// treeFromDocument rebuilds a flat parameter tree from a ParamDocument's
// named values. The client never adapts (adaption is driver-side, per
// spec §4.2's networked-worker contract), so every leaf gets a
// never-adapt adaptor purely to satisfy param.Node's constructors.
func treeFromDocument(doc process.ParamDocument) param.Node {
	root := param.NewTree("remote")
	for name, vs := range doc.Float64 {
		for _, v := range vs {
			adaptor := param.NewGaussAdaptor[float64](0)
			adaptor.NeverAdapt = true
			root.Append(param.NewLeaf(name, v, adaptor))
		}
	}
	for name, vs := range doc.Float32 {
		for _, v := range vs {
			adaptor := param.NewGaussAdaptor[float32](0)
			adaptor.NeverAdapt = true
			root.Append(param.NewLeaf(name, v, adaptor))
		}
	}
	for name, vs := range doc.Int32 {
		for _, v := range vs {
			adaptor := param.NewGaussAdaptor[int32](0)
			adaptor.NeverAdapt = true
			root.Append(param.NewLeaf(name, v, adaptor))
		}
	}
	for name, vs := range doc.Bool {
		for _, v := range vs {
			adaptor := param.NewFlipAdaptor()
			adaptor.NeverAdapt = true
			root.Append(param.NewLeaf(name, v, adaptor))
		}
	}
	return root
}

func watchdog(ctx context.Context, pong <-chan struct{}) error {
	ticker := channerics.NewTicker(ctx.Done(), pingResolution)
	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker:
			if time.Since(last) > pongWait {
				return fmt.Errorf("remote: client ping deadline exceeded")
			}
		case <-pong:
			last = time.Now()
		}
	}
}
