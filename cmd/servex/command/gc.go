package command

import (
	"errors"
	"os"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"kubegems.io/servex/pkg/storage"
)

func NewGCCmd() *cobra.Command {
	s3opts := storage.S3OptionsFromEnv()
	keep := 3
	cmd := &cobra.Command{
		Use:          "gc <location>",
		Short:        "remove old and abandoned servable versions",
		Example:      "  servex gc s3://models/resnet --keep 2",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := BaseContext()
			defer cancel()
			if len(args) == 0 {
				return errors.New("at least one argument is required")
			}
			loc, err := storage.ParseLocation(args[0])
			if err != nil {
				return err
			}
			provider, err := storage.NewProvider(ctx, loc, s3opts)
			if err != nil {
				return err
			}
			removed, err := storage.GCVersions(ctx, provider, keep)
			versions := make([]string, 0, len(removed))
			for version := range removed {
				versions = append(versions, version)
			}
			sort.Strings(versions)
			t := table.NewWriter()
			t.SetOutputMirror(os.Stdout)
			t.AppendHeader(table.Row{"Version", "Status"})
			for _, version := range versions {
				t.AppendRow(table.Row{version, removed[version]})
			}
			t.Render()
			return err
		},
	}
	AddS3Flags(cmd.Flags(), s3opts)
	cmd.Flags().IntVar(&keep, "keep", keep, "complete versions to keep")
	return cmd
}
