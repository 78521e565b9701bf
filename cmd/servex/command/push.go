package command

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"kubegems.io/servex/pkg/storage"
)

func NewPushCmd() *cobra.Command {
	s3opts := storage.S3OptionsFromEnv()
	transfer := storage.DefaultTransferOptions()
	cmd := &cobra.Command{
		Use:   "push <servable> <location>",
		Short: "push an exported servable to a location",
		Example: `
  servex push ./export/1700000000 s3://models/resnet
  servex push ./export/1700000000 file:///data/models/resnet@2
		`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := BaseContext()
			defer cancel()
			if len(args) != 2 {
				return errors.New("requires <servable> and <location>")
			}
			loc, err := storage.ParseLocation(args[1])
			if err != nil {
				return err
			}
			version := loc.Version
			if version == "" {
				version = filepath.Base(filepath.Clean(args[0]))
			}
			provider, err := storage.NewProvider(ctx, loc, s3opts)
			if err != nil {
				return err
			}
			if err := storage.Push(ctx, provider, args[0], version, transfer); err != nil {
				return err
			}
			loc.Version = version
			fmt.Printf("pushed %s\n", loc.String())
			return nil
		},
	}
	AddS3Flags(cmd.Flags(), s3opts)
	cmd.Flags().IntVar(&transfer.Concurrency, "concurrency", transfer.Concurrency, "concurrent file uploads")
	return cmd
}
