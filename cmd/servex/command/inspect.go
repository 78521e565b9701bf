package command

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"kubegems.io/servex/pkg/progress"
	"kubegems.io/servex/pkg/servable"
	"kubegems.io/servex/pkg/types"
)

func NewInspectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "inspect <servable>",
		Short:        "show the signatures and files of an exported servable",
		Example:      "  servex inspect ./export/1700000000",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := BaseContext()
			defer cancel()
			if len(args) == 0 {
				return errors.New("at least one argument is required")
			}
			b, err := servable.Open(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Printf("architecture: %s\ndigest: %s\nlabels: %d\n", b.Config.Architecture, b.Digest, len(b.Labels))

			t := table.NewWriter()
			t.SetOutputMirror(os.Stdout)
			t.AppendHeader(table.Row{"Signature", "Method", "Inputs", "Outputs"})
			keys := make([]string, 0, len(b.Config.Signatures))
			for key := range b.Config.Signatures {
				keys = append(keys, key)
			}
			sort.Strings(keys)
			for _, key := range keys {
				sig := b.Config.Signatures[key]
				t.AppendRow(table.Row{key, sig.MethodName, formatTensors(sig.Inputs), formatTensors(sig.Outputs)})
			}
			t.Render()

			files := table.NewWriter()
			files.SetOutputMirror(os.Stdout)
			files.AppendHeader(table.Row{"File", "Media Type", "Digest", "Size"})
			for _, desc := range b.Manifest.All() {
				files.AppendRow(table.Row{desc.Name, desc.MediaType, desc.Digest.Encoded()[:12], progress.HumanSize(float64(desc.Size))})
			}
			files.Render()
			return nil
		},
	}
	return cmd
}

func formatTensors(specs map[string]types.TensorSpec) string {
	names := make([]string, 0, len(specs))
	for name := range specs {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		spec := specs[name]
		parts = append(parts, fmt.Sprintf("%s %s%v", name, spec.DType, spec.Shape))
	}
	return strings.Join(parts, "\n")
}
