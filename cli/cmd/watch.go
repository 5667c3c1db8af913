package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/sextant/adapter"
	"github.com/pithecene-io/sextant/cli/config"
	"github.com/pithecene-io/sextant/cli/render"
	"github.com/pithecene-io/sextant/cli/tui"
	"github.com/pithecene-io/sextant/iox"
	"github.com/pithecene-io/sextant/lode"
	"github.com/pithecene-io/sextant/log"
	"github.com/pithecene-io/sextant/metrics"
	"github.com/pithecene-io/sextant/pipeline"
	"github.com/pithecene-io/sextant/result"
	"github.com/pithecene-io/sextant/session"
	"github.com/pithecene-io/sextant/transport/replay"
	"github.com/pithecene-io/sextant/types"
)

// DefaultSessionName is used when neither flag nor config names the session.
const DefaultSessionName = "sextant"

// teardownTimeout bounds the final metrics write.
const teardownTimeout = 10 * time.Second

// WatchCommand returns the watch command: subscribe to one transport and
// follow the result until the session ends.
func WatchCommand() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Subscribe to an algorithm result stream and follow it",
		Flags: append([]cli.Flag{
			ConfigFlag,
			&cli.StringFlag{Name: "session", Aliases: []string{"s"}, Usage: "Session name"},
			&cli.BoolFlag{Name: "close-after-completed", Usage: "Unsubscribe once a backtest reports progress 1"},
			&cli.StringFlag{Name: "record", Usage: "Record every accepted packet to this file"},
			// transport
			&cli.StringFlag{Name: "transport", Aliases: []string{"t"}, Usage: "Transport: stream, ws, redis, postgres, synthetic, replay"},
			&cli.StringFlag{Name: "host", Usage: "Transport host"},
			&cli.IntFlag{Name: "port", Usage: "Transport port"},
			&cli.StringFlag{Name: "username", Usage: "Transport username"},
			&cli.StringFlag{Name: "password", Usage: "Transport password", EnvVars: []string{"SEXTANT_PASSWORD"}},
			&cli.StringFlag{Name: "database", Usage: "PostgreSQL database"},
			&cli.StringFlag{Name: "channel", Usage: "PostgreSQL LISTEN channel"},
			&cli.StringFlag{Name: "stream", Usage: "Redis stream key"},
			&cli.StringFlag{Name: "url", Usage: "WebSocket URL"},
			&cli.StringFlag{Name: "path", Usage: "Replay file (recording or .json)"},
			&cli.Float64Flag{Name: "speed", Usage: "Replay speed; 0 replays without pauses"},
			&cli.DurationFlag{Name: "read-timeout", Usage: "Stream read timeout, ws pong wait or redis block"},
			&cli.IntFlag{Name: "steps", Usage: "Synthetic backtest steps"},
			&cli.DurationFlag{Name: "interval", Usage: "Synthetic step interval"},
			&cli.Int64Flag{Name: "seed", Usage: "Synthetic random seed"},
			&cli.BoolFlag{Name: "live", Usage: "Synthetic live results until interrupted"},
			// queue
			&cli.StringFlag{Name: "queue-policy", Usage: "Queue policy: unbounded, block, drop_droppable"},
			&cli.IntFlag{Name: "queue-capacity", Usage: "Queue capacity for bounded policies"},
			// archive
			&cli.StringFlag{Name: "archive-backend", Usage: "Archive backend: fs or s3"},
			&cli.StringFlag{Name: "archive-path", Usage: "Archive path (fs: directory, s3: bucket/prefix)"},
			&cli.StringFlag{Name: "archive-region", Usage: "AWS region for the s3 backend"},
			// adapter
			&cli.StringFlag{Name: "adapter", Usage: "Completion notifications: webhook or redis"},
			&cli.StringFlag{Name: "adapter-url", Usage: "Webhook URL or redis:// URL"},
			// output
			&cli.StringFlag{Name: "log-level", Usage: "Log level: debug, info, warn, error"},
			&cli.StringFlag{Name: "log-file", Usage: "Write logs to this file instead of stderr"},
			&cli.BoolFlag{Name: "tui", Usage: "Show the live view"},
		}, ReadOnlyFlags()...),
		Action: watchAction,
	}
}

func watchAction(c *cli.Context) error {
	cfg, err := config.LoadOptional(c.String("config"))
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}
	applyFlags(c, cfg)
	if err := cfg.Validate(); err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}
	r, err := render.NewRenderer(c)
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	code, err := runWatch(ctx, cfg, watchOptions{
		TUI:       c.Bool("tui"),
		Renderer:  r,
		LogOutput: c.App.ErrWriter,
	})
	if err != nil {
		return cli.Exit(err.Error(), code)
	}
	if code != exitSuccess {
		return cli.Exit("", code)
	}
	return nil
}

// applyFlags overrides config values with explicitly set flags.
func applyFlags(c *cli.Context, cfg *config.Config) {
	setString := func(name string, dst *string) {
		if c.IsSet(name) {
			*dst = c.String(name)
		}
	}
	setInt := func(name string, dst *int) {
		if c.IsSet(name) {
			*dst = c.Int(name)
		}
	}
	setDuration := func(name string, dst *config.Duration) {
		if c.IsSet(name) {
			dst.Duration = c.Duration(name)
		}
	}

	setString("session", &cfg.Session.Name)
	setString("record", &cfg.Session.Record)
	if c.IsSet("close-after-completed") {
		v := c.Bool("close-after-completed")
		cfg.Session.CloseAfterCompleted = &v
	}

	tr := &cfg.Transport
	setString("transport", &tr.Kind)
	setString("host", &tr.Host)
	setInt("port", &tr.Port)
	setString("username", &tr.Username)
	setString("password", &tr.Password)
	setString("database", &tr.Database)
	setString("channel", &tr.Channel)
	setString("stream", &tr.Stream)
	setString("url", &tr.URL)
	setString("path", &tr.Path)
	setDuration("read-timeout", &tr.ReadTimeout)
	setInt("steps", &tr.Steps)
	setDuration("interval", &tr.Interval)
	if c.IsSet("speed") {
		tr.Speed = c.Float64("speed")
	}
	if c.IsSet("seed") {
		tr.Seed = c.Int64("seed")
	}
	if c.IsSet("live") {
		tr.Live = c.Bool("live")
	}

	setString("queue-policy", &cfg.Queue.Policy)
	setInt("queue-capacity", &cfg.Queue.Capacity)

	setString("archive-backend", &cfg.Archive.Backend)
	setString("archive-path", &cfg.Archive.Path)
	setString("archive-region", &cfg.Archive.Region)

	setString("adapter", &cfg.Adapter.Type)
	setString("adapter-url", &cfg.Adapter.URL)

	setString("log-level", &cfg.Log.Level)
	setString("log-file", &cfg.Log.File)
}

type watchOptions struct {
	TUI      bool
	Renderer *render.Renderer
	// LogOutput receives logs when no log file is configured.
	LogOutput io.Writer
	// Program options for the live view, for tests.
	ProgramOptions []tea.ProgramOption
}

// WatchReport is printed when a non-interactive watch ends.
type WatchReport struct {
	Session     string         `json:"session" yaml:"session"`
	SessionID   string         `json:"session_id" yaml:"session_id"`
	Transport   string         `json:"transport" yaml:"transport"`
	Outcome     string         `json:"outcome" yaml:"outcome"`
	Error       string         `json:"error,omitempty" yaml:"error,omitempty"`
	Completed   bool           `json:"completed" yaml:"completed"`
	Status      string         `json:"algorithm_status,omitempty" yaml:"algorithm_status,omitempty"`
	Progress    float64        `json:"progress" yaml:"progress"`
	Updates     int            `json:"updates" yaml:"updates"`
	Summary     result.Summary `json:"summary" yaml:"summary"`
	Packets     int64          `json:"packets" yaml:"packets"`
	Unhandled   int64          `json:"unhandled" yaml:"unhandled"`
	Dropped     int64          `json:"dropped" yaml:"dropped"`
	Recorded    int64          `json:"recorded,omitempty" yaml:"recorded,omitempty"`
	StoragePath string         `json:"storage_path,omitempty" yaml:"storage_path,omitempty"`
}

// runWatch runs one session to its end and returns the exit code. A non-nil
// error carries the message for that code.
func runWatch(ctx context.Context, cfg *config.Config, opts watchOptions) (int, error) {
	name := cfg.Session.Name
	if name == "" {
		name = DefaultSessionName
	}
	meta := types.NewSessionMeta(name, cfg.Transport.Kind)
	start := time.Now()

	var closers iox.Stack
	defer func() { _ = closers.Close() }()

	logger, err := buildLogger(meta, cfg.Log, opts, &closers)
	if err != nil {
		return exitUsage, err
	}

	tc := cfg.Transport
	if cfg.Session.Record != "" {
		// taps observe the wire path only
		tc.Encoded = true
	}
	producer, err := buildProducer(tc, logger.With("transport"))
	if err != nil {
		return exitUsage, err
	}
	queue, err := queueConfig(cfg.Queue)
	if err != nil {
		return exitUsage, err
	}

	collector := metrics.NewCollector(string(queue.Mode), meta.Transport, archiveBackend(cfg.Archive), meta.ID, meta.Name)

	lodeCfg := lodeConfig(cfg.Archive.Dataset, meta.Name, meta.ID, start)
	arch, err := buildArchive(ctx, cfg.Archive, lodeCfg, collector)
	if err != nil {
		return exitUsage, fmt.Errorf("archive: %w", err)
	}
	if arch != nil {
		closers.Push(arch.client)
	}

	notifyAdapter, err := buildAdapter(cfg.Adapter)
	if err != nil {
		return exitUsage, fmt.Errorf("adapter: %w", err)
	}
	if notifyAdapter != nil {
		closers.Push(notifyAdapter)
	}

	var recorder *replay.Recorder
	if cfg.Session.Record != "" {
		recorder, err = replay.CreateRecorder(cfg.Session.Record)
		if err != nil {
			return exitUsage, err
		}
		closers.Push(recorder)
	}

	closeAfterCompleted := cfg.Session.CloseAfterCompleted != nil && *cfg.Session.CloseAfterCompleted

	// subscribe decorates base with archival and notification and starts
	// the session.
	subscribe := func(subCtx context.Context, base pipeline.Handler) (*session.Session, error) {
		handler := base
		if arch != nil {
			handler = lode.NewArchiver(handler, arch.client, arch.config, logger.With("archive"))
		}
		if notifyAdapter != nil {
			n := adapter.NewNotifier(handler, notifyAdapter, meta, logger.With("notify"), collector)
			if arch != nil {
				n.StoragePath = arch.storagePath
			}
			handler = n
		}
		sc := session.Config{
			Meta:                meta,
			Producer:            producer,
			Handler:             handler,
			CloseAfterCompleted: closeAfterCompleted,
			Queue:               queue,
			Logger:              logger,
			Collector:           collector,
		}
		if recorder != nil {
			sc.Taps = append(sc.Taps, recorder.Tap)
		}
		sess, err := session.New(sc)
		if err != nil {
			return nil, err
		}
		if err := sess.Initialize(subCtx); err != nil {
			return nil, err
		}
		return sess, nil
	}

	logger.Sugar().Infof("watching %s via %s (queue %s)", meta.Name, meta.Transport, queue.Mode)
	out := newPrinter(logger)
	var sess *session.Session
	if opts.TUI {
		sess, err = watchTUI(ctx, meta, out, subscribe, opts.ProgramOptions)
	} else {
		sess, err = watchPlain(ctx, out, subscribe)
	}
	if err != nil {
		return exitTransport, err
	}
	if err := sess.Close(); err != nil {
		logger.Sugar().Warnf("close session: %v", err)
	}
	outcome := sess.Err()

	if arch != nil {
		wctx, cancel := context.WithTimeout(context.Background(), teardownTimeout)
		if err := arch.client.WriteMetrics(wctx, collector.Snapshot(), time.Now()); err != nil {
			logger.Error("archive metrics failed", map[string]any{"error": err.Error()})
		}
		cancel()
	}

	report := newReport(meta, sess, out, collector.Snapshot())
	if recorder != nil {
		report.Recorded = recorder.Count()
		if err := recorder.Err(); err != nil {
			logger.Error("recording failed", map[string]any{"error": err.Error(), "path": cfg.Session.Record})
		}
	}
	if arch != nil && sess.Completed() {
		report.StoragePath = arch.storagePath
	}
	if !opts.TUI && opts.Renderer != nil {
		if err := opts.Renderer.Render(report); err != nil {
			logger.Warn("render report", map[string]any{"error": err.Error()})
		}
	}

	code := exitCode(outcome)
	if code != exitSuccess {
		return code, outcome
	}
	return exitSuccess, nil
}

type subscribeFunc func(ctx context.Context, base pipeline.Handler) (*session.Session, error)

func watchPlain(ctx context.Context, out *printer, subscribe subscribeFunc) (*session.Session, error) {
	sess, err := subscribe(ctx, out)
	if err != nil {
		return nil, err
	}
	select {
	case <-sess.Done():
	case <-ctx.Done():
	}
	return sess, nil
}

func watchTUI(ctx context.Context, meta *types.SessionMeta, out *printer, subscribe subscribeFunc, popts []tea.ProgramOption) (*session.Session, error) {
	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	type subscribed struct {
		sess *session.Session
		err  error
	}
	subs := make(chan subscribed, 1)

	popts = append(popts, tea.WithContext(ctx))
	_, runErr := tui.Run(meta, func(send func(tea.Msg)) error {
		sess, err := subscribe(subCtx, pipeline.MultiHandler{tui.NewBridge(send), out})
		subs <- subscribed{sess, err}
		if err != nil {
			return err
		}
		go func() {
			<-sess.Done()
			send(tui.DoneMsg{Err: sess.Err()})
		}()
		return nil
	}, popts...)
	cancel()

	res := <-subs
	if res.err != nil {
		return nil, res.err
	}
	if runErr != nil && ctx.Err() == nil {
		_ = res.sess.Close()
		return nil, fmt.Errorf("live view: %w", runErr)
	}
	return res.sess, nil
}

func buildLogger(meta *types.SessionMeta, lc config.LogConfig, opts watchOptions, closers *iox.Stack) (*log.Logger, error) {
	lvl, err := log.ParseLevel(lc.Level)
	if err != nil {
		return nil, err
	}
	var w io.Writer = os.Stderr
	switch {
	case lc.File != "":
		f, err := os.OpenFile(lc.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		closers.Push(f)
		w = f
	case opts.TUI:
		w = io.Discard
	case opts.LogOutput != nil:
		w = opts.LogOutput
	}
	logger := log.NewLoggerTo(meta, w, lvl)
	closers.PushFunc(func() error {
		_ = logger.Sync()
		return nil
	})
	return logger, nil
}

func newReport(meta *types.SessionMeta, sess *session.Session, out *printer, snap metrics.Snapshot) WatchReport {
	summary, progress, updates, status := out.last()
	r := WatchReport{
		Session:   meta.Name,
		SessionID: meta.ID,
		Transport: meta.Transport,
		Outcome:   "ended",
		Completed: sess.Completed(),
		Status:    status,
		Progress:  progress,
		Updates:   updates,
		Summary:   summary,
		Packets:   snap.PacketsFed,
		Unhandled: snap.PacketsUnhandled,
		Dropped:   snap.QueueDropped,
	}
	switch err := sess.Err(); {
	case err != nil && !pipeline.IsCanceledError(err):
		r.Outcome, r.Error = "failed", err.Error()
	case r.Completed:
		r.Outcome = "completed"
	}
	return r
}

// exitCode maps a session outcome to the process exit code.
func exitCode(err error) int {
	switch {
	case err == nil, pipeline.IsCanceledError(err):
		return exitSuccess
	case pipeline.IsProducerError(err):
		return exitTransport
	default:
		return exitPipeline
	}
}
