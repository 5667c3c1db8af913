package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pithecene-io/sextant/adapter"
	redisadapter "github.com/pithecene-io/sextant/adapter/redis"
	"github.com/pithecene-io/sextant/adapter/webhook"
	"github.com/pithecene-io/sextant/cli/config"
	"github.com/pithecene-io/sextant/lode"
	"github.com/pithecene-io/sextant/log"
	"github.com/pithecene-io/sextant/metrics"
	"github.com/pithecene-io/sextant/policy"
	"github.com/pithecene-io/sextant/session"
	"github.com/pithecene-io/sextant/transport/pgfeed"
	"github.com/pithecene-io/sextant/transport/redisfeed"
	"github.com/pithecene-io/sextant/transport/replay"
	"github.com/pithecene-io/sextant/transport/stream"
	"github.com/pithecene-io/sextant/transport/synthetic"
	"github.com/pithecene-io/sextant/transport/ws"
)

// buildProducer creates the transport named by tc.Kind.
func buildProducer(tc config.TransportConfig, logger *log.Logger) (session.Producer, error) {
	timeout := tc.ReadTimeout.Duration
	switch strings.ToLower(tc.Kind) {
	case config.TransportStream:
		return stream.New(stream.Config{
			Host:        tc.Host,
			Port:        tc.Port,
			ReadTimeout: timeout,
			Logger:      logger,
		})
	case config.TransportWS:
		return ws.New(ws.Config{URL: tc.URL, PongWait: timeout, Logger: logger})
	case config.TransportRedis:
		return redisfeed.New(redisfeed.Config{
			Host:     tc.Host,
			Port:     tc.Port,
			Username: tc.Username,
			Password: tc.Password,
			DB:       tc.DB,
			Stream:   tc.Stream,
			StartID:  tc.StartID,
			Block:    timeout,
			Logger:   logger,
		})
	case config.TransportPostgres:
		return pgfeed.New(pgfeed.Config{
			Host:     tc.Host,
			Port:     tc.Port,
			Username: tc.Username,
			Password: tc.Password,
			Database: tc.Database,
			SSLMode:  tc.SSLMode,
			Channel:  tc.Channel,
			Logger:   logger,
		})
	case config.TransportSynthetic:
		return synthetic.New(synthetic.Config{
			Seed:       tc.Seed,
			Interval:   tc.Interval.Duration,
			Steps:      tc.Steps,
			Live:       tc.Live,
			TradeEvery: tc.TradeEvery,
			Encoded:    tc.Encoded,
			Logger:     logger,
		})
	case config.TransportReplay:
		return replay.New(replay.Config{Path: tc.Path, Speed: tc.Speed, Logger: logger})
	case "":
		return nil, errors.New("transport kind is required (--transport)")
	default:
		return nil, fmt.Errorf("unknown transport kind %q", tc.Kind)
	}
}

func queueConfig(qc config.QueueConfig) (policy.Config, error) {
	mode, err := policy.ParseMode(qc.Policy)
	if err != nil {
		return policy.Config{}, err
	}
	cfg := policy.Config{Mode: mode, Capacity: qc.Capacity}
	return cfg, cfg.Validate()
}

// archive is the optional archive wiring of one session.
type archive struct {
	client      *lode.InstrumentedClient
	config      lode.Config
	storagePath string
}

func archiveBackend(ac config.ArchiveConfig) string {
	if ac.Path == "" {
		return ""
	}
	if ac.Backend == "" {
		return "fs"
	}
	return ac.Backend
}

// buildArchive returns nil when archival is disabled.
func buildArchive(ctx context.Context, ac config.ArchiveConfig, cfg lode.Config, collector *metrics.Collector) (*archive, error) {
	var (
		client *lode.LodeClient
		prefix string
		err    error
	)
	switch archiveBackend(ac) {
	case "":
		return nil, nil
	case "fs":
		if err := os.MkdirAll(ac.Path, 0o755); err != nil {
			return nil, fmt.Errorf("create archive directory: %w", err)
		}
		client, err = lode.NewLodeClient(cfg, ac.Path)
		prefix = ac.Path
	case "s3":
		bucket, keyPrefix := lode.ParseS3Path(ac.Path)
		client, err = lode.NewLodeS3Client(ctx, cfg, lode.S3Config{
			Bucket:       bucket,
			Prefix:       keyPrefix,
			Region:       ac.Region,
			Endpoint:     ac.Endpoint,
			UsePathStyle: ac.S3PathStyle,
		})
		prefix = "s3://" + strings.TrimSuffix(ac.Path, "/")
	default:
		return nil, fmt.Errorf("unknown archive backend %q (must be fs or s3)", ac.Backend)
	}
	if err != nil {
		return nil, err
	}

	file := client.FilePath(lode.ResultFileName)
	path := prefix + "/" + file
	if archiveBackend(ac) == "fs" {
		path = filepath.Join(prefix, file)
	}
	return &archive{
		client:      lode.NewInstrumentedClient(client, collector),
		config:      cfg,
		storagePath: path,
	}, nil
}

// buildAdapter returns nil when notifications are disabled.
func buildAdapter(ac config.AdapterConfig) (adapter.Adapter, error) {
	retries := webhook.DefaultRetries
	if ac.Retries != nil {
		retries = *ac.Retries
	}
	switch ac.Type {
	case "":
		return nil, nil
	case "webhook":
		return webhook.New(webhook.Config{
			URL:     ac.URL,
			Headers: ac.Headers,
			Timeout: ac.Timeout.Duration,
			Retries: retries,
		})
	case "redis":
		return redisadapter.New(redisadapter.Config{
			URL:     ac.URL,
			Channel: ac.Channel,
			Timeout: ac.Timeout.Duration,
			Retries: retries,
		})
	default:
		return nil, fmt.Errorf("unknown adapter type %q (must be webhook or redis)", ac.Type)
	}
}

// lodeConfig derives the archive partition of a session started at start.
func lodeConfig(dataset, name, id string, start time.Time) lode.Config {
	return lode.Config{
		Dataset:   dataset,
		Session:   name,
		SessionID: id,
		Day:       lode.DeriveDay(start),
	}
}
