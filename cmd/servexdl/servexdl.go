package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"kubegems.io/servex/cmd/servex/command"
	"kubegems.io/servex/pkg/storage"
	"kubegems.io/servex/pkg/version"
)

const ErrExitCode = 1

func main() {
	if err := NewDLCmd().Execute(); err != nil {
		fmt.Println(err.Error())
		os.Exit(ErrExitCode)
	}
}

func NewDLCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "servexdl",
		Short:   "servex storage initializer",
		Version: version.Get().String(),
		Example: `
		servexdl s3://models/resnet /mnt/models
		servexdl s3://models/resnet@1700000000?endpoint=http://minio:9000 /mnt/models
		`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 2 {
				return fmt.Errorf("requires two arguments")
			}
			ctx, cancel := command.BaseContext()
			defer cancel()

			// storage initializers get the model uri and the model path; s3 credentials come from SERVEX_S3_*
			return Run(ctx, args[0], args[1])
		},
	}
	return cmd
}

func Run(ctx context.Context, uri string, dest string) error {
	loc, err := storage.ParseLocation(uri)
	if err != nil {
		return err
	}
	provider, err := storage.NewProvider(ctx, loc, storage.S3OptionsFromEnv())
	if err != nil {
		return err
	}
	version := loc.Version
	if version == "" {
		if version, err = storage.LatestVersion(ctx, provider); err != nil {
			return err
		}
	}
	loc.Version = version
	fmt.Printf("Pulling %s into %s\n", loc.String(), dest)
	_, err = storage.Pull(ctx, provider, version, dest, storage.DefaultTransferOptions())
	return err
}
