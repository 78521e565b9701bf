// Package estimator drives a model function through its modes.
//
// A ModelFn is called with the request features and the mode it should run in.
// It returns a Spec holding the predictions for the features and the export
// signatures of the model. When features is nil the call only traces the
// model: the ModelFn must return its ExportOutputs and no predictions.
package estimator

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"
	"kubegems.io/servex/pkg/errors"
	"kubegems.io/servex/pkg/types"
)

type Mode string

const (
	ModeTrain   Mode = "train"
	ModeEval    Mode = "eval"
	ModePredict Mode = "infer"
)

// Features maps feature names to values, e.g. "images" to [][]byte.
type Features map[string]any

type Params map[string]any

// Int returns an int parameter or def when missing or of another type.
func (p Params) Int(key string, def int) int {
	switch v := p[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return def
	}
}

type ExportOutput struct {
	MethodName string
	Outputs    map[string]types.TensorSpec
}

type Spec struct {
	Mode          Mode
	Predictions   map[string]any
	Loss          *float64
	ExportOutputs map[string]ExportOutput
}

type ModelFn func(ctx context.Context, features Features, mode Mode, params Params) (*Spec, error)

// ServingInputReceiver describes the raw tensors a served request carries.
type ServingInputReceiver struct {
	ReceiverTensors map[string]types.TensorSpec
}

type ServingInputReceiverFn func() ServingInputReceiver

type Estimator struct {
	modelFn ModelFn
	params  Params
	config  RunConfig
}

// RunConfig names where the model comes from and what gets exported with it.
type RunConfig struct {
	// ModelDir is the restored checkpoint directory.
	ModelDir string
	// Assets are copied into every export, keyed by their name in the bundle.
	Assets map[string]string
	// Config is the base servable config, signatures are filled on export.
	Config      types.ServableConfig
	Annotations map[string]string
}

func New(modelFn ModelFn, config RunConfig, params Params) (*Estimator, error) {
	if modelFn == nil {
		return nil, fmt.Errorf("estimator: nil model fn")
	}
	if params == nil {
		params = Params{}
	}
	return &Estimator{modelFn: modelFn, params: params, config: config}, nil
}

func (e *Estimator) Params() Params {
	return e.params
}

// WithParams returns a copy of the estimator with overrides merged into its params.
func (e *Estimator) WithParams(overrides Params) *Estimator {
	params := make(Params, len(e.params)+len(overrides))
	for k, v := range e.params {
		params[k] = v
	}
	for k, v := range overrides {
		params[k] = v
	}
	return &Estimator{modelFn: e.modelFn, params: params, config: e.config}
}

func (e *Estimator) call(ctx context.Context, features Features, mode Mode) (*Spec, error) {
	log := logr.FromContextOrDiscard(ctx)
	log.V(1).Info("calling model fn", "mode", mode, "features", len(features))
	spec, err := e.modelFn(ctx, features, mode, e.params)
	if err != nil {
		return nil, err
	}
	if spec == nil {
		return nil, errors.NewInternalError(fmt.Errorf("model fn returned no spec in %s mode", mode))
	}
	return spec, nil
}

// Predict runs the model fn in infer mode and returns its predictions.
func (e *Estimator) Predict(ctx context.Context, features Features) (map[string]any, error) {
	if features == nil {
		features = Features{}
	}
	spec, err := e.call(ctx, features, ModePredict)
	if err != nil {
		return nil, err
	}
	return spec.Predictions, nil
}

func (e *Estimator) Train(ctx context.Context, features Features) (float64, error) {
	spec, err := e.call(ctx, features, ModeTrain)
	if err != nil {
		return 0, err
	}
	if spec.Loss == nil {
		return 0, errors.NewModeUnsupportedError(string(ModeTrain))
	}
	return *spec.Loss, nil
}

func (e *Estimator) Evaluate(ctx context.Context, features Features) (map[string]any, error) {
	spec, err := e.call(ctx, features, ModeEval)
	if err != nil {
		return nil, err
	}
	return spec.Predictions, nil
}

// Signatures traces the model fn and pairs its export outputs with the receiver inputs.
func (e *Estimator) Signatures(ctx context.Context, receiverFn ServingInputReceiverFn) (map[string]types.Signature, error) {
	if receiverFn == nil {
		return nil, fmt.Errorf("estimator: nil serving input receiver fn")
	}
	receiver := receiverFn()
	if len(receiver.ReceiverTensors) == 0 {
		return nil, errors.NewParameterInvalidError("serving input receiver has no tensors")
	}
	spec, err := e.call(ctx, nil, ModePredict)
	if err != nil {
		return nil, err
	}
	if len(spec.ExportOutputs) == 0 {
		return nil, errors.NewServableInvalidError("model fn has no export outputs")
	}
	if _, ok := spec.ExportOutputs[types.DefaultSignatureKey]; !ok {
		return nil, errors.NewSignatureUnknownError(types.DefaultSignatureKey)
	}
	signatures := make(map[string]types.Signature, len(spec.ExportOutputs))
	for key, out := range spec.ExportOutputs {
		signatures[key] = types.Signature{
			MethodName: out.MethodName,
			Inputs:     receiver.ReceiverTensors,
			Outputs:    out.Outputs,
		}
	}
	return signatures, nil
}
