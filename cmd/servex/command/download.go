package command

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/opencontainers/go-digest"
	"github.com/spf13/cobra"
	"kubegems.io/servex/pkg/checkpoint"
)

// archives are kept here so a repeated download with --digest is skipped
const downloadCacheDir = ".download"

func NewDownloadCmd() *cobra.Command {
	options := checkpoint.DefaultDownloadOptions()
	dgst := ""
	cmd := &cobra.Command{
		Use:   "download <url> <dir>",
		Short: "download and extract a pretrained checkpoint",
		Example: `
  servex download http://download.example.com/resnet_v2_50.tar.gz ./ckpt
  servex download http://download.example.com/resnet_v2_50.tar.gz ./ckpt --digest sha256:...
		`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := BaseContext()
			defer cancel()
			if len(args) != 2 {
				return errors.New("requires <url> and <dir>")
			}
			if dgst != "" {
				d, err := digest.Parse(dgst)
				if err != nil {
					return err
				}
				options.Digest = d
			}
			options.Progress = os.Stdout
			ckpt, err := DownloadCheckpoint(ctx, args[0], args[1], options)
			if err != nil {
				return err
			}
			fmt.Printf("graph:  %s\n", ckpt.Graph)
			if ckpt.Labels != "" {
				fmt.Printf("labels: %s\n", ckpt.Labels)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dgst, "digest", dgst, "expected digest of the archive")
	cmd.Flags().IntVar(&options.Retries, "retries", options.Retries, "retries on transport errors and 5xx")
	return cmd
}

func DownloadCheckpoint(ctx context.Context, url string, dir string, options checkpoint.DownloadOptions) (checkpoint.Checkpoint, error) {
	archive, err := checkpoint.Download(ctx, url, filepath.Join(dir, downloadCacheDir), options)
	if err != nil {
		return checkpoint.Checkpoint{}, err
	}
	if err := checkpoint.ExtractFile(ctx, archive, dir); err != nil {
		return checkpoint.Checkpoint{}, err
	}
	return checkpoint.Locate(dir)
}
