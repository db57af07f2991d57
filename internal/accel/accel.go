// Package accel wires in an optional external codec helper for CSM-1
// work. The helper binary is probed lazily on first use; when it is
// missing or misbehaves the pure Go codec takes over permanently, with a
// single warning.
package accel

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"os/exec"
	"sync"
	"time"

	"github.com/hpungsan/vcp/internal/vcp"
)

// Codec encodes a context into CSM-1 token lines.
type Codec interface {
	Encode(ctx *vcp.Context, now time.Time) ([]string, error)
	Name() string
}

// PureCodec is the built-in Go codec. It never fails.
type PureCodec struct{}

func (PureCodec) Encode(ctx *vcp.Context, now time.Time) ([]string, error) {
	return vcp.EncodeCSM1(ctx, now), nil
}

func (PureCodec) Name() string { return "pure" }

// helperRequest is the stdin payload sent to the helper binary per call.
type helperRequest struct {
	Context *vcp.Context `json:"context"`
	Now     string       `json:"now"`
}

type helperResponse struct {
	Lines []string `json:"lines"`
	Error string   `json:"error,omitempty"`
}

// execCodec shells out to the helper binary, one process per call, JSON
// over stdin/stdout.
type execCodec struct {
	path string
}

func (c *execCodec) Encode(ctx *vcp.Context, now time.Time) ([]string, error) {
	payload, err := json.Marshal(helperRequest{Context: ctx, Now: vcp.Timestamp(now)})
	if err != nil {
		return nil, err
	}

	cmd := exec.Command(c.path)
	cmd.Stdin = bytes.NewReader(payload)
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("codec helper: %w", err)
	}

	var resp helperResponse
	if err := json.Unmarshal(out.Bytes(), &resp); err != nil {
		return nil, fmt.Errorf("codec helper returned malformed output: %w", err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("codec helper: %s", resp.Error)
	}
	return resp.Lines, nil
}

func (c *execCodec) Name() string { return "exec" }

var (
	mu       sync.Mutex
	loaded   bool
	selected Codec = PureCodec{}
)

// Load resolves the codec for the given helper path. The first call
// decides; later calls, concurrent or not, reuse the outcome. An empty
// path or a failing helper selects the pure codec and warns once.
func Load(path string) Codec {
	mu.Lock()
	defer mu.Unlock()

	if loaded {
		return selected
	}
	loaded = true

	if path == "" {
		return selected
	}

	candidate := &execCodec{path: path}
	if err := probe(candidate); err != nil {
		log.Printf("warning: codec helper at %s unavailable, using pure codec: %v", path, err)
		return selected
	}

	selected = candidate
	return selected
}

// probe runs the helper once against an empty context to confirm it
// speaks the protocol.
func probe(c *execCodec) error {
	ctx := vcp.NewContext(vcp.NewContextOptions{ProfileID: "user-probe"}, time.Now())
	lines, err := c.Encode(ctx, time.Now())
	if err != nil {
		return err
	}
	if len(lines) == 0 {
		return fmt.Errorf("helper produced no output")
	}
	return nil
}

// Encode runs the selected codec, falling back to the pure codec if the
// helper fails mid-flight. A mid-flight failure also warns once and
// pins the pure codec for future calls.
func Encode(path string, ctx *vcp.Context, now time.Time) []string {
	codec := Load(path)
	lines, err := codec.Encode(ctx, now)
	if err != nil {
		log.Printf("warning: codec helper failed, using pure codec: %v", err)
		mu.Lock()
		selected = PureCodec{}
		mu.Unlock()
		lines, _ = PureCodec{}.Encode(ctx, now)
	}
	return lines
}

// Reset clears the loaded codec so tests can exercise Load again.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	loaded = false
	selected = PureCodec{}
}
