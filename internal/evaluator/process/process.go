// Package process implements the external-process evaluator protocol of
// spec §6: a driver writes a parameter document to a temp file, invokes
// an evaluator process with --evaluate --input=<in> --output=<out>,
// and reads back a result document. --init, --setup --output=<schema>,
// --finalize and --archive --input=<batch> cover schema negotiation and
// lifecycle hooks around the evaluate loop.
package process

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync/atomic"

	"github.com/niceyeti/genevo/internal/candidate"
	"github.com/niceyeti/genevo/internal/param"
)

// ParamDocument is the parameter document written to the process's
// --input file: current values by leaf name for every scalar kind, plus
// the declared bounds of every constrained leaf.
type ParamDocument struct {
	EvaluationID string               `json:"evaluationId"`
	Float64      map[string][]float64 `json:"float64,omitempty"`
	Float32      map[string][]float32 `json:"float32,omitempty"`
	Int32        map[string][]int32   `json:"int32,omitempty"`
	Bool         map[string][]bool    `json:"bool,omitempty"`
	Bounds       []param.Boundary     `json:"bounds,omitempty"`
}

// BuildParamDocument captures p's current values and bounds under id.
func BuildParamDocument(id string, p param.Node) ParamDocument {
	return ParamDocument{
		EvaluationID: id,
		Float64:      param.StreamlineFloat64Named(p),
		Float32:      param.StreamlineFloat32Named(p),
		Int32:        param.StreamlineInt32Named(p),
		Bool:         param.StreamlineBoolNamed(p),
		Bounds:       p.Boundaries(),
	}
}

// ResultDocument is the result document read back from the process's
// --output file.
type ResultDocument struct {
	EvaluationID string    `json:"evaluationId"`
	NResults     int       `json:"nResults"`
	Results      []float64 `json:"results"`
	IsValid      bool      `json:"isValid"`
}

// SchemaDocument is what --setup reports: the parameter names and
// bounds the process expects to be driven with.
type SchemaDocument struct {
	Bounds []param.Boundary `json:"bounds"`
}

// Client drives one external evaluator process over the temp-file
// protocol. Command and Args name the process and any fixed arguments
// (e.g. a model path); the protocol flags are appended per call.
type Client struct {
	Command string
	Args    []string
	Dir     string // temp-file directory; "" uses os.TempDir

	seq atomic.Uint64
}

// NewClient returns a Client invoking command with the given fixed args.
func NewClient(command string, args ...string) *Client {
	return &Client{Command: command, Args: args}
}

func (c *Client) nextID() string {
	return fmt.Sprintf("eval-%d", c.seq.Add(1))
}

func (c *Client) tempFile(pattern string) (*os.File, error) {
	return os.CreateTemp(c.Dir, pattern)
}

func (c *Client) run(ctx context.Context, extra ...string) error {
	args := append(append([]string(nil), c.Args...), extra...)
	cmd := exec.CommandContext(ctx, c.Command, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("process: %s %v: %w: %s", c.Command, args, err, out)
	}
	return nil
}

// Init invokes the process with --init, for one-time setup (loading a
// model, opening a connection) before any evaluation.
func (c *Client) Init(ctx context.Context) error {
	return c.run(ctx, "--init")
}

// Finalize invokes the process with --finalize, for teardown after the
// last evaluation.
func (c *Client) Finalize(ctx context.Context) error {
	return c.run(ctx, "--finalize")
}

// Setup invokes the process with --setup --output=<schema> and reads
// back the parameter schema it reports.
func (c *Client) Setup(ctx context.Context) (SchemaDocument, error) {
	out, err := c.tempFile("genevo-setup-*.json")
	if err != nil {
		return SchemaDocument{}, fmt.Errorf("process: creating setup output file: %w", err)
	}
	outPath := out.Name()
	out.Close()
	defer os.Remove(outPath)

	if err := c.run(ctx, "--setup", "--output="+outPath); err != nil {
		return SchemaDocument{}, err
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		return SchemaDocument{}, fmt.Errorf("process: reading setup output: %w", err)
	}
	var schema SchemaDocument
	if err := json.Unmarshal(data, &schema); err != nil {
		return SchemaDocument{}, fmt.Errorf("process: decoding setup output: %w", err)
	}
	return schema, nil
}

// Archive invokes the process with --archive --input=<batch>, handing
// off a batch of parameter documents for the process's own bookkeeping
// (e.g. best-ever logging). The process's reply, if any, is ignored.
func (c *Client) Archive(ctx context.Context, batch []ParamDocument) error {
	in, err := c.tempFile("genevo-archive-*.json")
	if err != nil {
		return fmt.Errorf("process: creating archive input file: %w", err)
	}
	inPath := in.Name()
	defer os.Remove(inPath)

	if err := json.NewEncoder(in).Encode(batch); err != nil {
		in.Close()
		return fmt.Errorf("process: encoding archive batch: %w", err)
	}
	in.Close()

	return c.run(ctx, "--archive", "--input="+inPath)
}

// Evaluate writes doc to a temp input file, invokes the process with
// --evaluate --input=<in> --output=<out>, and reads back the result.
// It verifies the returned evaluation id matches what was sent.
func (c *Client) Evaluate(ctx context.Context, doc ParamDocument) (ResultDocument, error) {
	in, err := c.tempFile("genevo-in-*.json")
	if err != nil {
		return ResultDocument{}, fmt.Errorf("process: creating input file: %w", err)
	}
	inPath := in.Name()
	defer os.Remove(inPath)

	if err := json.NewEncoder(in).Encode(doc); err != nil {
		in.Close()
		return ResultDocument{}, fmt.Errorf("process: encoding input: %w", err)
	}
	in.Close()

	outPath := filepath.Join(c.tempDir(), fmt.Sprintf("genevo-out-%s.json", doc.EvaluationID))
	defer os.Remove(outPath)

	if err := c.run(ctx, "--evaluate", "--input="+inPath, "--output="+outPath); err != nil {
		return ResultDocument{}, err
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		return ResultDocument{}, fmt.Errorf("process: reading output: %w", err)
	}
	var result ResultDocument
	if err := json.Unmarshal(data, &result); err != nil {
		return ResultDocument{}, fmt.Errorf("process: decoding output: %w", err)
	}
	if result.EvaluationID != doc.EvaluationID {
		return ResultDocument{}, fmt.Errorf("process: evaluation id mismatch: sent %q, got %q", doc.EvaluationID, result.EvaluationID)
	}
	return result, nil
}

func (c *Client) tempDir() string {
	if c.Dir != "" {
		return c.Dir
	}
	return os.TempDir()
}

// FitnessFunc adapts Evaluate into a candidate.FitnessFunc so a Client
// can be plugged into any executor (Serial, MultiThreaded) exactly like
// an in-process fitness function. Context is backgrounded since
// candidate.FitnessFunc carries none; long-running processes should use
// Client directly for cancellation.
func (c *Client) FitnessFunc() candidate.FitnessFunc {
	return func(p param.Node, reg candidate.ResultRegister) (float64, error) {
		doc := BuildParamDocument(c.nextID(), p)
		result, err := c.Evaluate(context.Background(), doc)
		if err != nil {
			return 0, err
		}
		if !result.IsValid {
			return 0, fmt.Errorf("process: evaluation %s reported invalid", doc.EvaluationID)
		}
		if len(result.Results) == 0 {
			return 0, fmt.Errorf("process: evaluation %s returned no results", doc.EvaluationID)
		}
		for i, v := range result.Results[1:] {
			reg.RegisterSecondaryResult(i+1, v)
		}
		return result.Results[0], nil
	}
}
