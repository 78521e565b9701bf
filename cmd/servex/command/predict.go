package command

import (
	"errors"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"kubegems.io/servex/pkg/servable"
)

func NewPredictCmd() *cobra.Command {
	options := servable.DefaultOptions()
	k := 0
	cmd := &cobra.Command{
		Use:   "predict <servable> <image>...",
		Short: "classify images with an exported servable",
		Example: `
  servex predict ./export/1700000000 cat.jpg dog.jpg --k 3
		`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := BaseContext()
			defer cancel()
			if len(args) < 2 {
				return errors.New("requires <servable> and at least one image")
			}
			images := make([][]byte, 0, len(args)-1)
			for _, name := range args[1:] {
				data, err := os.ReadFile(name)
				if err != nil {
					return err
				}
				images = append(images, data)
			}
			s, err := servable.Load(ctx, args[0], options)
			if err != nil {
				return err
			}
			defer s.Close()

			resp, err := s.Predict(ctx, images, k)
			if err != nil {
				return err
			}
			t := table.NewWriter()
			t.SetOutputMirror(os.Stdout)
			t.AppendHeader(table.Row{"Image", "Rank", "Class", "Label", "Probability"})
			for i, classes := range resp.Classes {
				for j, class := range classes {
					label := ""
					if resp.Labels != nil {
						label = resp.Labels[i][j]
					}
					t.AppendRow(table.Row{args[i+1], j + 1, class, label, fmt.Sprintf("%.4f", resp.Probabilities[i][j])})
				}
				t.AppendSeparator()
			}
			t.Render()
			return nil
		},
	}
	cmd.Flags().IntVar(&k, "k", k, "number of classes per image, 0 uses the servable default")
	cmd.Flags().BoolVar(&options.AllowPNG, "allow-png", options.AllowPNG, "accept png images")
	cmd.Flags().StringVar(&options.ONNX.SharedLibrary, "onnxruntime-lib", options.ONNX.SharedLibrary, "onnxruntime shared library")
	cmd.Flags().IntVar(&options.ONNX.IntraOpThreads, "intra-op-threads", options.ONNX.IntraOpThreads, "onnxruntime intra op threads, 0 for default")
	return cmd
}
