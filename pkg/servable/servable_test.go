package servable

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"kubegems.io/servex/pkg/architecture"
	"kubegems.io/servex/pkg/bundle"
	"kubegems.io/servex/pkg/errors"
	"kubegems.io/servex/pkg/runtime"
	"kubegems.io/servex/pkg/tensor"
	"kubegems.io/servex/pkg/types"
	"sigs.k8s.io/yaml"
)

// fakeNetwork gives row i a single large logit at class 10+i.
func fakeNetwork(numClasses int) runtime.Network {
	return runtime.NetworkFunc(func(ctx context.Context, input tensor.Tensor) (tensor.Tensor, error) {
		batch := input.Shape[0]
		out := tensor.New(batch, int64(numClasses))
		for i := 0; i < int(batch); i++ {
			out.Row(i)[10+i] = 10
		}
		return out, nil
	})
}

func fakeFactory(ctx context.Context, b *Bundle, arch architecture.Architecture) (runtime.Network, error) {
	return fakeNetwork(arch.NumClasses), nil
}

func jpegImage(t *testing.T) []byte {
	img := image.NewRGBA(image.Rect(0, 0, 32, 24))
	for x := 0; x < 32; x++ {
		for y := 0; y < 24; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 8), G: 128, B: 255, A: 255})
		}
	}
	buf := &bytes.Buffer{}
	require.NoError(t, jpeg.Encode(buf, img, nil))
	return buf.Bytes()
}

func writeCheckpoint(t *testing.T) string {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "resnet_v2_50.onnx"), []byte("graph"), 0o644))
	labels := make([]string, 1000)
	for i := range labels {
		labels[i] = fmt.Sprintf("label-%d", i)
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "labels.txt"), []byte(strings.Join(labels, "\n")+"\n"), 0o644))
	return dir
}

func exportBundle(t *testing.T) string {
	dir, err := Export(context.Background(), writeCheckpoint(t), t.TempDir(), &ExportOptions{
		Architecture: "resnet_v2_50",
		TopK:         3,
		Checkpoint:   "https://example.com/resnet.tar.gz",
	})
	require.NoError(t, err)
	return dir
}

func TestExportAndOpen(t *testing.T) {
	dir := exportBundle(t)
	b, err := Open(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, "resnet_v2_50", b.Config.Architecture)
	assert.Equal(t, 3, b.Config.TopK)
	assert.Equal(t, 1001, b.Config.NumClasses)
	assert.Len(t, b.Labels, 1000)
	assert.Equal(t, "https://example.com/resnet.tar.gz", b.Manifest.Annotations[types.AnnotationCheckpoint])

	sig, ok := b.Config.Signatures[types.DefaultSignatureKey]
	require.True(t, ok)
	assert.Equal(t, MethodClassify, sig.MethodName)
	assert.Equal(t, types.DTypeString, sig.Inputs[FeatureImages].DType)
	assert.Equal(t, []int64{-1, -1}, sig.Outputs[PredictionClasses].Shape)
	assert.Contains(t, b.Config.Signatures, types.PredictSignatureKey)

	assert.Equal(t, "", b.Label(0), "background has no label")
	assert.Equal(t, "label-0", b.Label(1))
	assert.Equal(t, "", b.Label(5000))
}

func TestOpenTampered(t *testing.T) {
	dir := exportBundle(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, types.ServableGraphFileName), []byte("other"), 0o644))
	_, err := Open(context.Background(), dir)
	assert.True(t, errors.IsErrCode(err, errors.ErrCodeDigestInvalid), "got %v", err)

	dir = exportBundle(t)
	require.NoError(t, os.Remove(filepath.Join(dir, types.ServableManifestFileName)))
	_, err = Open(context.Background(), dir)
	assert.True(t, errors.IsErrCode(err, errors.ErrCodeServableInvalid), "got %v", err)
}

func TestOpenUnverifiedGraph(t *testing.T) {
	tests := []struct {
		name  string
		graph string
	}{
		{name: "outside bundle", graph: "../../../unverified.onnx"},
		{name: "absolute", graph: "/tmp/unverified.onnx"},
		{name: "not in manifest", graph: ".unverified.onnx"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := exportBundle(t)
			require.NoError(t, os.WriteFile(filepath.Join(dir, ".unverified.onnx"), []byte("graph"), 0o644))
			b, err := Open(context.Background(), dir)
			require.NoError(t, err)

			b.Config.Runtime.Graph = tt.graph
			content, err := yaml.Marshal(b.Config)
			require.NoError(t, err)
			require.NoError(t, os.WriteFile(filepath.Join(dir, types.ServableConfigFileName), content, 0o644))
			manifest, err := bundle.Pack(context.Background(), dir, b.Manifest.Annotations)
			require.NoError(t, err)
			require.NoError(t, bundle.WriteManifest(dir, manifest))

			_, err = Open(context.Background(), dir)
			assert.True(t, errors.IsErrCode(err, errors.ErrCodeServableInvalid), "got %v", err)
		})
	}
}

func TestExportUnknownArchitecture(t *testing.T) {
	_, err := Export(context.Background(), writeCheckpoint(t), t.TempDir(), &ExportOptions{Architecture: "vgg_16"})
	assert.True(t, errors.IsErrCode(err, errors.ErrCodeArchitectureUnknown), "got %v", err)
}

func TestPredict(t *testing.T) {
	ctx := context.Background()
	s, err := Load(ctx, exportBundle(t), &Options{Network: fakeFactory})
	require.NoError(t, err)
	defer s.Close()

	img := jpegImage(t)
	resp, err := s.Predict(ctx, [][]byte{img, img}, 0)
	require.NoError(t, err)
	require.Len(t, resp.Classes, 2)
	assert.Len(t, resp.Classes[0], 3)
	assert.Equal(t, int64(10), resp.Classes[0][0])
	assert.Equal(t, int64(11), resp.Classes[1][0])
	assert.Equal(t, "label-9", resp.Labels[0][0])
	assert.Equal(t, "label-10", resp.Labels[1][0])
	for _, row := range resp.Probabilities {
		for j := 1; j < len(row); j++ {
			assert.GreaterOrEqual(t, row[j-1], row[j])
		}
	}
	// ties after the top class keep the lower index first
	assert.Equal(t, int64(0), resp.Classes[0][1])

	resp, err = s.Predict(ctx, [][]byte{img}, 1)
	require.NoError(t, err)
	assert.Len(t, resp.Classes[0], 1)

	_, err = s.Predict(ctx, nil, 0)
	assert.True(t, errors.IsErrCode(err, errors.ErrCodeBatchEmpty), "got %v", err)

	_, err = s.Predict(ctx, [][]byte{img, []byte("not an image")}, 0)
	assert.True(t, errors.IsErrCode(err, errors.ErrCodeImageInvalid), "got %v", err)
	assert.Contains(t, err.Error(), "image 1")
}

func TestModes(t *testing.T) {
	ctx := context.Background()
	s, err := Load(ctx, exportBundle(t), &Options{Network: fakeFactory})
	require.NoError(t, err)
	defer s.Close()

	assert.True(t, errors.IsErrCode(s.Train(ctx, nil), errors.ErrCodeModeUnsupported))
	assert.True(t, errors.IsErrCode(s.Evaluate(ctx, nil), errors.ErrCodeModeUnsupported))
}
