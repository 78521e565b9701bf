package servable

import (
	"context"
	"fmt"

	"kubegems.io/servex/pkg/architecture"
	"kubegems.io/servex/pkg/errors"
	"kubegems.io/servex/pkg/estimator"
	"kubegems.io/servex/pkg/postprocess"
	"kubegems.io/servex/pkg/preprocess"
	"kubegems.io/servex/pkg/runtime"
	"kubegems.io/servex/pkg/types"
)

const (
	FeatureImages = "images"

	PredictionClasses       = "classes"
	PredictionProbabilities = "probabilities"

	ParamTopK     = "k"
	ParamAllowPNG = "allow_png"

	MethodClassify = "classify"
	MethodPredict  = "predict"
)

// ServingInputReceiver takes a batch of encoded images as byte strings.
func ServingInputReceiver() estimator.ServingInputReceiver {
	return estimator.ServingInputReceiver{
		ReceiverTensors: map[string]types.TensorSpec{
			FeatureImages: {Name: FeatureImages, DType: types.DTypeString, Shape: []int64{-1}},
		},
	}
}

// exportOutputs leaves the top k dimension unknown, the "k" param changes it per call.
func exportOutputs() map[string]estimator.ExportOutput {
	topk := map[string]types.TensorSpec{
		PredictionClasses:       {Name: PredictionClasses, DType: types.DTypeInt64, Shape: []int64{-1, -1}},
		PredictionProbabilities: {Name: PredictionProbabilities, DType: types.DTypeFloat32, Shape: []int64{-1, -1}},
	}
	return map[string]estimator.ExportOutput{
		types.DefaultSignatureKey: {MethodName: MethodClassify, Outputs: topk},
		types.PredictSignatureKey: {MethodName: MethodPredict, Outputs: topk},
	}
}

// ClassifierModelFn decodes the images feature, runs the network and keeps the
// top k classes of the softmax. Only infer mode is supported. The "k" param
// overrides topK per call.
func ClassifierModelFn(net runtime.Network, arch architecture.Architecture, topK int) estimator.ModelFn {
	if topK <= 0 {
		topK = postprocess.DefaultTopK
	}
	return func(ctx context.Context, features estimator.Features, mode estimator.Mode, params estimator.Params) (*estimator.Spec, error) {
		if mode != estimator.ModePredict {
			return nil, errors.NewModeUnsupportedError(string(mode))
		}
		k := params.Int(ParamTopK, topK)
		spec := &estimator.Spec{Mode: mode, ExportOutputs: exportOutputs()}
		if features == nil {
			return spec, nil
		}

		images, ok := features[FeatureImages].([][]byte)
		if !ok {
			return nil, errors.NewParameterInvalidError(fmt.Sprintf("feature %q must be a list of encoded images", FeatureImages))
		}
		if net == nil {
			return nil, errors.NewInternalError(fmt.Errorf("no network loaded"))
		}
		allowPNG, _ := params[ParamAllowPNG].(bool)
		batch, err := preprocess.Batch(ctx, images, arch, preprocess.Options{AllowPNG: allowPNG})
		if err != nil {
			return nil, err
		}
		logits, err := net.Forward(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("forward: %w", err)
		}
		if logits.Rank() != 2 || logits.Shape[0] != int64(len(images)) {
			return nil, errors.NewInternalError(fmt.Errorf("network output shape %v does not match batch of %d", logits.Shape, len(images)))
		}
		probs, err := postprocess.Softmax(logits)
		if err != nil {
			return nil, err
		}
		classes, probabilities, err := postprocess.TopK(probs, k)
		if err != nil {
			return nil, err
		}
		spec.Predictions = map[string]any{
			PredictionClasses:       classes,
			PredictionProbabilities: probabilities,
		}
		return spec, nil
	}
}
