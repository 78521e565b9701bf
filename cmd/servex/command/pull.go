package command

import (
	"errors"

	"github.com/spf13/cobra"
	"kubegems.io/servex/pkg/storage"
)

func NewPullCmd() *cobra.Command {
	s3opts := storage.S3OptionsFromEnv()
	transfer := storage.DefaultTransferOptions()
	cmd := &cobra.Command{
		Use:   "pull <location> <dir>",
		Short: "pull a servable version, the latest when not pinned",
		Example: `
  servex pull s3://models/resnet ./serving
  servex pull s3://models/resnet@1700000000 ./serving
		`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := BaseContext()
			defer cancel()
			if len(args) != 2 {
				return errors.New("requires <location> and <dir>")
			}
			loc, err := storage.ParseLocation(args[0])
			if err != nil {
				return err
			}
			provider, err := storage.NewProvider(ctx, loc, s3opts)
			if err != nil {
				return err
			}
			_, err = storage.Pull(ctx, provider, loc.Version, args[1], transfer)
			return err
		},
	}
	AddS3Flags(cmd.Flags(), s3opts)
	cmd.Flags().IntVar(&transfer.Concurrency, "concurrency", transfer.Concurrency, "concurrent file downloads")
	return cmd
}
