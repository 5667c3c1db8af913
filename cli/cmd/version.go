package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/sextant/cli/render"
	"github.com/pithecene-io/sextant/types"
)

// VersionResponse is the output of the version command.
type VersionResponse struct {
	Version         string `json:"version" yaml:"version"`
	ArchiveContract string `json:"archive_contract" yaml:"archive_contract"`
	Commit          string `json:"commit" yaml:"commit"`
}

// VersionCommand returns the version command. It never connects anywhere.
func VersionCommand(commit string) *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Show version information",
		Flags: ReadOnlyFlags(),
		Action: func(c *cli.Context) error {
			r, err := render.NewRenderer(c)
			if err != nil {
				return cli.Exit(err.Error(), exitUsage)
			}
			return r.Render(VersionResponse{
				Version:         types.Version,
				ArchiveContract: types.ArchiveContractVersion,
				Commit:          commit,
			})
		},
	}
}
