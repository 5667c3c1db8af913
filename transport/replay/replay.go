// Package replay implements the replay transport. It reads either a
// recording written by Recorder (length-prefixed msgpack records) or a
// single JSON result file, which replays as one completed backtest.
package replay

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pithecene-io/sextant/ipc"
	"github.com/pithecene-io/sextant/log"
	"github.com/pithecene-io/sextant/pipeline"
	"github.com/pithecene-io/sextant/protocol"
	"github.com/pithecene-io/sextant/result"
	"github.com/pithecene-io/sextant/types"
)

// maxGap caps a single paced pause.
const maxGap = 5 * time.Second

// Config configures a replay producer.
type Config struct {
	// Path is a recording, or a .json result or packet file.
	Path string
	// Speed scales the recorded inter-arrival gaps: 1 is real time, 2 twice
	// as fast. Zero replays without pauses.
	Speed  float64
	Logger *log.Logger
}

// Producer replays a file.
type Producer struct {
	cfg    Config
	logger *log.Logger

	mu   sync.Mutex
	file *os.File
}

// New creates a replay producer.
func New(cfg Config) (*Producer, error) {
	if cfg.Path == "" {
		return nil, errors.New("replay path is required")
	}
	if cfg.Speed < 0 {
		return nil, fmt.Errorf("replay speed must be >= 0, got %v", cfg.Speed)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Producer{cfg: cfg, logger: logger}, nil
}

// IsJSON reports whether the path is replayed as a single JSON document.
func (p *Producer) IsJSON() bool {
	return strings.EqualFold(filepath.Ext(p.cfg.Path), ".json")
}

// Open opens the file.
func (p *Producer) Open(context.Context) error {
	f, err := os.Open(p.cfg.Path)
	if err != nil {
		return fmt.Errorf("open replay: %w", err)
	}
	p.mu.Lock()
	p.file = f
	p.mu.Unlock()
	return nil
}

// Run replays the file and returns nil at its end.
func (p *Producer) Run(ctx context.Context, sink pipeline.Sink) error {
	p.mu.Lock()
	f := p.file
	p.mu.Unlock()
	if f == nil {
		return errors.New("replay not open")
	}
	if p.IsJSON() {
		return p.runJSON(ctx, f, sink)
	}
	return p.runRecords(ctx, f, sink)
}

func (p *Producer) runRecords(ctx context.Context, r io.Reader, sink pipeline.Sink) error {
	dec := ipc.NewFrameDecoder(bufio.NewReader(r))
	var prev time.Time
	count := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		frame, err := dec.ReadFrame()
		if err != nil {
			if err == io.EOF {
				p.logger.Info("replay finished", map[string]any{"records": count})
				return nil
			}
			return fmt.Errorf("read record: %w", err)
		}
		rec, err := ipc.DecodeRecord(frame)
		if err != nil {
			return err
		}
		at := rec.Time()
		if !prev.IsZero() {
			if err := p.pace(ctx, at.Sub(prev)); err != nil {
				return err
			}
		}
		prev = at
		if _, err := sink.Feed(ctx, rec.Payload, rec.PacketType()); err != nil {
			return err
		}
		count++
	}
}

func (p *Producer) pace(ctx context.Context, gap time.Duration) error {
	if p.cfg.Speed == 0 || gap <= 0 {
		return nil
	}
	gap = time.Duration(float64(gap) / p.cfg.Speed)
	gap = min(gap, maxGap)
	t := time.NewTimer(gap)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// runJSON feeds a file holding one packet as is. Any other document is
// read as a bare result and pushed as a backtest at progress 1.
func (p *Producer) runJSON(ctx context.Context, r io.Reader, sink pipeline.Sink) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("read replay: %w", err)
	}
	if kind, err := protocol.PeekKind(data); err == nil && kind != types.PacketUnknown {
		_, err := sink.Feed(ctx, data, kind)
		return err
	}
	res, err := result.Decode(data)
	if err != nil {
		return &pipeline.PipelineError{Kind: pipeline.ErrorKindDecode, Err: err}
	}
	return sink.Push(ctx, &protocol.BacktestResultPacket{
		Header:   protocol.Header{Type: types.PacketBacktestResult},
		Name:     strings.TrimSuffix(filepath.Base(p.cfg.Path), filepath.Ext(p.cfg.Path)),
		Progress: decimal.NewFromInt(1),
		Results:  res,
	})
}

// Close closes the file.
func (p *Producer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.file == nil {
		return nil
	}
	err := p.file.Close()
	p.file = nil
	return err
}
