package command

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"kubegems.io/servex/pkg/architecture"
	"kubegems.io/servex/pkg/checkpoint"
	"kubegems.io/servex/pkg/servable"
)

func NewExportCmd() *cobra.Command {
	options := servable.DefaultExportOptions()
	cmd := &cobra.Command{
		Use:   "export <checkpoint> <export-base>",
		Short: "export a checkpoint directory or url as a servable bundle",
		Long:  "Architectures: " + strings.Join(architecture.Names(), ", "),
		Example: `
  servex export ./ckpt ./export --arch resnet_v2_50
  servex export http://download.example.com/resnet_v2_50.tar.gz ./export
		`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := BaseContext()
			defer cancel()
			if len(args) != 2 {
				return errors.New("requires <checkpoint> and <export-base>")
			}
			ckptdir := args[0]
			if u, err := url.Parse(args[0]); err == nil && (u.Scheme == "http" || u.Scheme == "https") {
				tmpdir, err := os.MkdirTemp("", "servex-checkpoint-")
				if err != nil {
					return err
				}
				defer os.RemoveAll(tmpdir)
				opts := checkpoint.DefaultDownloadOptions()
				opts.Progress = os.Stdout
				if _, err := DownloadCheckpoint(ctx, args[0], tmpdir, opts); err != nil {
					return err
				}
				ckptdir = tmpdir
				if options.Checkpoint == "" {
					options.Checkpoint = args[0]
				}
			}
			dir, err := servable.Export(ctx, ckptdir, args[1], options)
			if err != nil {
				return err
			}
			fmt.Println(dir)
			return nil
		},
	}
	cmd.Flags().StringVar(&options.Architecture, "arch", options.Architecture, "model architecture")
	cmd.Flags().IntVar(&options.TopK, "topk", options.TopK, "default number of classes returned")
	cmd.Flags().StringVar(&options.Checkpoint, "checkpoint-url", options.Checkpoint, "checkpoint source recorded in the manifest")
	return cmd
}
