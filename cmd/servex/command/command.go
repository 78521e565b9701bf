package command

import (
	"context"
	"log"
	"os"
	"os/signal"

	"github.com/go-logr/logr"
	"github.com/go-logr/stdr"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"kubegems.io/servex/pkg/storage"
	"kubegems.io/servex/pkg/version"
)

func NewServexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "servex",
		Short:   "export pretrained image classifiers as servable bundles",
		Version: version.Get().String(),
	}
	cmd.AddCommand(NewDownloadCmd())
	cmd.AddCommand(NewExportCmd())
	cmd.AddCommand(NewInspectCmd())
	cmd.AddCommand(NewPredictCmd())
	cmd.AddCommand(NewPushCmd())
	cmd.AddCommand(NewPullCmd())
	cmd.AddCommand(NewGCCmd())
	return cmd
}

// BaseContext cancels on interrupt. DEBUG=1 turns on logging.
func BaseContext() (context.Context, context.CancelFunc) {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, os.Kill)
	if os.Getenv("DEBUG") == "1" {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
		stdr.SetVerbosity(1)
		ctx = logr.NewContext(ctx, stdr.NewWithOptions(log.Default(), stdr.Options{LogCaller: stdr.Error}))
	}
	return ctx, cancel
}

func AddS3Flags(flags *pflag.FlagSet, options *storage.S3Options) {
	flags.StringVar(&options.URL, "s3-url", options.URL, "s3 endpoint url, env "+storage.EnvS3Endpoint)
	flags.StringVar(&options.Region, "s3-region", options.Region, "s3 region, env "+storage.EnvS3Region)
	flags.StringVar(&options.AccessKey, "s3-access-key", options.AccessKey, "s3 access key, env "+storage.EnvS3AccessKey)
	flags.StringVar(&options.SecretKey, "s3-secret-key", options.SecretKey, "s3 secret key, env "+storage.EnvS3SecretKey)
	flags.BoolVar(&options.PathStyle, "s3-path-style", options.PathStyle, "s3 path style addressing")
}
