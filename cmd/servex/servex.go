package main

import (
	"crypto/tls"
	"net/http"
	"os"

	"github.com/spf13/cobra"
	"kubegems.io/servex/cmd/servex/command"
)

const ErrExitCode = 1

func main() {
	if err := NewServexCmd().Execute(); err != nil {
		os.Exit(ErrExitCode)
	}
}

func NewServexCmd() *cobra.Command {
	insecureSkipVerify := false
	cmd := command.NewServexCmd()
	cmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if insecureSkipVerify {
			http.DefaultTransport.(*http.Transport).TLSClientConfig = &tls.Config{
				InsecureSkipVerify: true,
			}
		}
	}
	cmd.PersistentFlags().BoolVarP(&insecureSkipVerify, "insecure", "", insecureSkipVerify, "tls insecure skip verify")
	return cmd
}
