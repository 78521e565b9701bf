package servable

import (
	"context"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"kubegems.io/servex/pkg/architecture"
	"kubegems.io/servex/pkg/checkpoint"
	"kubegems.io/servex/pkg/errors"
	"kubegems.io/servex/pkg/estimator"
	"kubegems.io/servex/pkg/postprocess"
	"kubegems.io/servex/pkg/runtime"
	"kubegems.io/servex/pkg/types"
)

type NetworkFactory func(ctx context.Context, b *Bundle, arch architecture.Architecture) (runtime.Network, error)

type Options struct {
	ONNX     *runtime.ONNXOptions
	AllowPNG bool
	// Network overrides how the graph is loaded, onnxruntime by default.
	Network NetworkFactory
}

func DefaultOptions() *Options {
	return &Options{ONNX: runtime.DefaultONNXOptions()}
}

func onnxFactory(opts *runtime.ONNXOptions) NetworkFactory {
	return func(ctx context.Context, b *Bundle, arch architecture.Architecture) (runtime.Network, error) {
		return runtime.NewONNXNetwork(ctx, b.GraphPath(), arch.InputTensor, arch.OutputTensor, arch.NumClasses, opts)
	}
}

type Servable struct {
	Bundle    *Bundle
	Arch      architecture.Architecture
	LoadedAt  time.Time
	estimator *estimator.Estimator
	network   runtime.Network
}

// Load opens the bundle at dir and its network.
func Load(ctx context.Context, dir string, opts *Options) (*Servable, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	log := logr.FromContextOrDiscard(ctx).WithValues("dir", dir)

	b, err := Open(ctx, dir)
	if err != nil {
		return nil, err
	}
	arch, _ := b.Architecture()
	factory := opts.Network
	if factory == nil {
		factory = onnxFactory(opts.ONNX)
	}
	net, err := factory(ctx, b, arch)
	if err != nil {
		return nil, err
	}
	topK := b.Config.TopK
	if topK <= 0 {
		topK = postprocess.DefaultTopK
	}
	est, err := estimator.New(
		ClassifierModelFn(net, arch, topK),
		estimator.RunConfig{ModelDir: dir, Config: b.Config},
		estimator.Params{ParamTopK: topK, ParamAllowPNG: opts.AllowPNG},
	)
	if err != nil {
		net.Close()
		return nil, err
	}
	log.Info("servable loaded", "architecture", arch.Name, "digest", b.Digest.String())
	return &Servable{Bundle: b, Arch: arch, LoadedAt: time.Now(), estimator: est, network: net}, nil
}

// Predict classifies a batch of encoded images. k <= 0 uses the servable default.
func (s *Servable) Predict(ctx context.Context, images [][]byte, k int) (*types.PredictResponse, error) {
	features := estimator.Features{FeatureImages: images}
	est := s.estimator
	if k > 0 {
		est = est.WithParams(estimator.Params{ParamTopK: k})
	}
	predictions, err := est.Predict(ctx, features)
	if err != nil {
		return nil, err
	}
	classes, ok := predictions[PredictionClasses].([][]int64)
	if !ok {
		return nil, errors.NewInternalError(fmt.Errorf("prediction %q missing", PredictionClasses))
	}
	probabilities, ok := predictions[PredictionProbabilities].([][]float32)
	if !ok {
		return nil, errors.NewInternalError(fmt.Errorf("prediction %q missing", PredictionProbabilities))
	}
	resp := &types.PredictResponse{Classes: classes, Probabilities: probabilities}
	if len(s.Bundle.Labels) > 0 {
		resp.Labels = make([][]string, len(classes))
		for i, row := range classes {
			resp.Labels[i] = make([]string, len(row))
			for j, class := range row {
				resp.Labels[i][j] = s.Bundle.Label(class)
			}
		}
	}
	return resp, nil
}

// Train and Evaluate are dispatched to the model fn, which rejects them.
func (s *Servable) Train(ctx context.Context, images [][]byte) error {
	_, err := s.estimator.Train(ctx, estimator.Features{FeatureImages: images})
	return err
}

func (s *Servable) Evaluate(ctx context.Context, images [][]byte) error {
	_, err := s.estimator.Evaluate(ctx, estimator.Features{FeatureImages: images})
	return err
}

func (s *Servable) Close() error {
	return s.network.Close()
}

type ExportOptions struct {
	Architecture string
	TopK         int
	// Checkpoint is recorded as an annotation, usually the download url.
	Checkpoint string
}

func DefaultExportOptions() *ExportOptions {
	return &ExportOptions{Architecture: architecture.DefaultArchitecture, TopK: postprocess.DefaultTopK}
}

// Export restores the architecture for the checkpoint in ckptdir and writes a
// servable bundle under exportBase.
func Export(ctx context.Context, ckptdir string, exportBase string, opts *ExportOptions) (string, error) {
	if opts == nil {
		opts = DefaultExportOptions()
	}
	if opts.TopK <= 0 {
		opts.TopK = postprocess.DefaultTopK
	}
	ckpt, err := checkpoint.Locate(ckptdir)
	if err != nil {
		return "", err
	}
	arch, err := architecture.Lookup(opts.Architecture)
	if err != nil {
		return "", err
	}
	assets := map[string]string{types.ServableGraphFileName: ckpt.Graph}
	if ckpt.Labels != "" {
		assets[types.ServableLabelsFileName] = ckpt.Labels
	}
	annotations := map[string]string{types.AnnotationArchitecture: arch.Name}
	if opts.Checkpoint != "" {
		annotations[types.AnnotationCheckpoint] = opts.Checkpoint
	}
	est, err := estimator.New(
		ClassifierModelFn(nil, arch, opts.TopK),
		estimator.RunConfig{
			ModelDir:    ckpt.Dir,
			Assets:      assets,
			Config:      ConfigFor(arch, opts.TopK, ckpt.Labels != ""),
			Annotations: annotations,
		},
		estimator.Params{ParamTopK: opts.TopK},
	)
	if err != nil {
		return "", err
	}
	return est.Export(ctx, exportBase, ServingInputReceiver)
}
