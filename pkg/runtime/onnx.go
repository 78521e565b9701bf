package runtime

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/go-logr/logr"
	ort "github.com/yalue/onnxruntime_go"
	"kubegems.io/servex/pkg/tensor"
)

const SharedLibraryEnv = "ONNXRUNTIME_LIB"

type ONNXOptions struct {
	// SharedLibrary is the onnxruntime shared library, defaults to $ONNXRUNTIME_LIB.
	SharedLibrary  string
	IntraOpThreads int
}

func DefaultONNXOptions() *ONNXOptions {
	return &ONNXOptions{
		SharedLibrary: os.Getenv(SharedLibraryEnv),
	}
}

var (
	envMu   sync.Mutex
	envRefs int
)

func acquireEnvironment(lib string) error {
	envMu.Lock()
	defer envMu.Unlock()
	if envRefs == 0 {
		if lib != "" {
			ort.SetSharedLibraryPath(lib)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			return fmt.Errorf("initialize onnxruntime environment: %w", err)
		}
	}
	envRefs++
	return nil
}

func releaseEnvironment() {
	envMu.Lock()
	defer envMu.Unlock()
	envRefs--
	if envRefs == 0 {
		ort.DestroyEnvironment()
	}
}

// ONNXNetwork runs a graph with onnxruntime. Runs are serialized.
type ONNXNetwork struct {
	session    *ort.DynamicAdvancedSession
	numClasses int64
	mu         sync.Mutex
	closed     bool
}

var _ Network = &ONNXNetwork{}

func NewONNXNetwork(ctx context.Context, graph string, inputName, outputName string, numClasses int, opts *ONNXOptions) (*ONNXNetwork, error) {
	if opts == nil {
		opts = DefaultONNXOptions()
	}
	log := logr.FromContextOrDiscard(ctx).WithValues("graph", graph)
	if err := acquireEnvironment(opts.SharedLibrary); err != nil {
		return nil, err
	}

	sessionOptions, err := ort.NewSessionOptions()
	if err != nil {
		releaseEnvironment()
		return nil, fmt.Errorf("create session options: %w", err)
	}
	defer sessionOptions.Destroy()
	if opts.IntraOpThreads > 0 {
		if err := sessionOptions.SetIntraOpNumThreads(opts.IntraOpThreads); err != nil {
			releaseEnvironment()
			return nil, fmt.Errorf("set intra op threads: %w", err)
		}
	}

	session, err := ort.NewDynamicAdvancedSession(graph, []string{inputName}, []string{outputName}, sessionOptions)
	if err != nil {
		releaseEnvironment()
		return nil, fmt.Errorf("create onnx session: %w", err)
	}
	log.Info("network loaded", "input", inputName, "output", outputName)
	return &ONNXNetwork{session: session, numClasses: int64(numClasses)}, nil
}

func (n *ONNXNetwork) Forward(ctx context.Context, input tensor.Tensor) (tensor.Tensor, error) {
	if input.Rank() != 4 {
		return tensor.Tensor{}, fmt.Errorf("network expects a rank 4 image batch, got shape %v", input.Shape)
	}
	if err := input.Validate(); err != nil {
		return tensor.Tensor{}, err
	}
	batch := input.Shape[0]
	if batch < 1 {
		return tensor.Tensor{}, fmt.Errorf("empty input batch")
	}
	if err := ctx.Err(); err != nil {
		return tensor.Tensor{}, err
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return tensor.Tensor{}, fmt.Errorf("network closed")
	}
	in, err := ort.NewTensor(ort.NewShape(input.Shape...), input.Data)
	if err != nil {
		return tensor.Tensor{}, fmt.Errorf("create input tensor: %w", err)
	}
	defer in.Destroy()
	out, err := ort.NewEmptyTensor[float32](ort.NewShape(batch, n.numClasses))
	if err != nil {
		return tensor.Tensor{}, fmt.Errorf("create output tensor: %w", err)
	}
	defer out.Destroy()
	if err := n.session.Run([]ort.ArbitraryTensor{in}, []ort.ArbitraryTensor{out}); err != nil {
		return tensor.Tensor{}, fmt.Errorf("inference failed: %w", err)
	}

	logits := tensor.New(batch, n.numClasses)
	copy(logits.Data, out.GetData())
	return logits, nil
}

func (n *ONNXNetwork) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return nil
	}
	n.closed = true
	err := n.session.Destroy()
	releaseEnvironment()
	return err
}
