package cmd

import (
	"context"
	"errors"
	"fmt"

	golode "github.com/justapithecus/lode/lode"
	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/sextant/cli/config"
	"github.com/pithecene-io/sextant/cli/render"
	"github.com/pithecene-io/sextant/lode"
)

// InspectResponse is the output of the inspect command.
type InspectResponse struct {
	Snapshot *lode.SnapshotRecord `json:"snapshot" yaml:"snapshot"`
	Metrics  map[string]any       `json:"metrics,omitempty" yaml:"metrics,omitempty"`
}

// InspectCommand returns the inspect command: read the latest archived
// snapshot of a session.
func InspectCommand() *cli.Command {
	return &cli.Command{
		Name:      "inspect",
		Usage:     "Show the latest archived result snapshot",
		ArgsUsage: "[session-id]",
		Flags: append([]cli.Flag{
			ConfigFlag,
			&cli.StringFlag{Name: "session", Aliases: []string{"s"}, Usage: "Filter by session name"},
			&cli.StringFlag{Name: "archive-backend", Usage: "Archive backend: fs or s3"},
			&cli.StringFlag{Name: "archive-path", Usage: "Archive path (fs: directory, s3: bucket/prefix)"},
			&cli.StringFlag{Name: "archive-region", Usage: "AWS region for the s3 backend"},
			&cli.StringFlag{Name: "dataset", Usage: "Lode dataset ID"},
			&cli.BoolFlag{Name: "metrics", Usage: "Include the latest metrics record"},
		}, ReadOnlyFlags()...),
		Action: inspectAction,
	}
}

func inspectAction(c *cli.Context) error {
	cfg, err := config.LoadOptional(c.String("config"))
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}
	ac := cfg.Archive
	for name, dst := range map[string]*string{
		"archive-backend": &ac.Backend,
		"archive-path":    &ac.Path,
		"archive-region":  &ac.Region,
		"dataset":         &ac.Dataset,
	} {
		if c.IsSet(name) {
			*dst = c.String(name)
		}
	}
	session := cfg.Session.Name
	if c.IsSet("session") {
		session = c.String("session")
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}
	resp, err := inspect(c.Context, ac, c.Args().First(), session, c.Bool("metrics"))
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}
	return r.Render(resp)
}

func inspect(ctx context.Context, ac config.ArchiveConfig, sessionID, session string, withMetrics bool) (*InspectResponse, error) {
	ds, err := openReadDataset(ctx, ac)
	if err != nil {
		return nil, err
	}
	snap, err := lode.QueryLatestSnapshot(ctx, ds, sessionID, session)
	if err != nil {
		return nil, err
	}
	resp := &InspectResponse{Snapshot: snap}
	if withMetrics {
		m, err := lode.QueryLatestMetrics(ctx, ds, snap.SessionID, "")
		switch {
		case errors.Is(err, lode.ErrNoMetricsFound):
		case err != nil:
			return nil, err
		default:
			resp.Metrics = m
		}
	}
	return resp, nil
}

func openReadDataset(ctx context.Context, ac config.ArchiveConfig) (golode.Dataset, error) {
	switch archiveBackend(ac) {
	case "":
		return nil, errors.New("archive path is required (--archive-path)")
	case "fs":
		return lode.NewReadDatasetFS(ac.Dataset, ac.Path)
	case "s3":
		bucket, prefix := lode.ParseS3Path(ac.Path)
		return lode.NewReadDatasetS3(ctx, ac.Dataset, lode.S3Config{
			Bucket:       bucket,
			Prefix:       prefix,
			Region:       ac.Region,
			Endpoint:     ac.Endpoint,
			UsePathStyle: ac.S3PathStyle,
		})
	default:
		return nil, fmt.Errorf("unknown archive backend %q (must be fs or s3)", ac.Backend)
	}
}
