package bundle

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/opencontainers/go-digest"
	"kubegems.io/servex/pkg/errors"
	"kubegems.io/servex/pkg/types"
)

func writeBundle(t *testing.T, files map[string]string) string {
	dir := t.TempDir()
	for name, content := range files {
		filename := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filename, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestPack(t *testing.T) {
	dir := writeBundle(t, map[string]string{
		types.ServableConfigFileName: "architecture: resnet_v2_50\n",
		types.ServableGraphFileName:  "graph",
		types.ServableLabelsFileName: "cat\ndog\n",
		".hidden":                    "skip",
		"assets/vocab.txt":           "a",
	})
	manifest, err := Pack(context.Background(), dir, nil)
	if err != nil {
		t.Fatal(err)
	}
	if manifest.Config.MediaType != types.MediaTypeServableConfigYaml {
		t.Errorf("config media type = %s", manifest.Config.MediaType)
	}
	names := []string{}
	for _, blob := range manifest.Blobs {
		names = append(names, blob.Name)
	}
	want := []string{"assets/vocab.txt", types.ServableLabelsFileName, types.ServableGraphFileName}
	if len(names) != len(want) {
		t.Fatalf("blobs = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("blob[%d] = %s, want %s", i, names[i], want[i])
		}
	}
	if manifest.Blobs[2].Digest != digest.FromString("graph") {
		t.Errorf("graph digest = %s", manifest.Blobs[2].Digest)
	}
}

func TestPackWithoutConfig(t *testing.T) {
	dir := writeBundle(t, map[string]string{types.ServableGraphFileName: "graph"})
	if _, err := Pack(context.Background(), dir, nil); !errors.IsErrCode(err, errors.ErrCodeServableInvalid) {
		t.Errorf("Pack() error = %v, want SERVABLE_INVALID", err)
	}
}

func TestVerify(t *testing.T) {
	dir := writeBundle(t, map[string]string{
		types.ServableConfigFileName: "architecture: resnet_v2_50\n",
		types.ServableGraphFileName:  "graph",
	})
	ctx := context.Background()
	manifest, err := Pack(ctx, dir, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := WriteManifest(dir, manifest); err != nil {
		t.Fatal(err)
	}
	read, err := ReadManifest(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := Verify(ctx, dir, *read); err != nil {
		t.Fatalf("Verify() error = %v", err)
	}

	if err := os.WriteFile(filepath.Join(dir, types.ServableGraphFileName), []byte("tampered"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := Verify(ctx, dir, *read); !errors.IsErrCode(err, errors.ErrCodeDigestInvalid) {
		t.Errorf("Verify() tampered error = %v, want DIGEST_INVALID", err)
	}

	os.Remove(filepath.Join(dir, types.ServableGraphFileName))
	if err := Verify(ctx, dir, *read); !errors.IsErrCode(err, errors.ErrCodeBlobUnknown) {
		t.Errorf("Verify() missing error = %v, want BLOB_UNKNOWN", err)
	}
}

func TestReadManifestMissing(t *testing.T) {
	if _, err := ReadManifest(t.TempDir()); !errors.IsErrCode(err, errors.ErrCodeServableInvalid) {
		t.Errorf("ReadManifest() error = %v, want SERVABLE_INVALID", err)
	}
}

func TestValidName(t *testing.T) {
	tests := []struct {
		name    string
		wantErr bool
	}{
		{name: "model.onnx"},
		{name: "assets/vocab.txt"},
		{name: "", wantErr: true},
		{name: "/etc/passwd", wantErr: true},
		{name: "../escape", wantErr: true},
		{name: "assets/../../escape", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ValidName(tt.name); (err != nil) != tt.wantErr {
				t.Errorf("ValidName(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
			}
		})
	}
}
