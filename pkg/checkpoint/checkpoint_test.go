package checkpoint

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"kubegems.io/servex/pkg/errors"
)

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		full := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func tarGz(t *testing.T, files map[string]string) []byte {
	t.Helper()
	buf := &bytes.Buffer{}
	gw := gzip.NewWriter(buf)
	tw := tar.NewWriter(gw)
	for name, content := range files {
		hdr := &tar.Header{Name: name, Mode: 0o644, Size: int64(len(content)), Typeflag: tar.TypeReg}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatal(err)
		}
		if _, err := tw.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := gw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestArchiveExtractRoundTrip(t *testing.T) {
	ctx := context.Background()
	src := t.TempDir()
	writeFiles(t, src, map[string]string{
		"resnet/model.onnx": "graph",
		"resnet/labels.txt": "background\ntench\n",
	})
	archive := filepath.Join(t.TempDir(), "ckpt.tar.gz")
	d1, err := Archive(ctx, src, archive)
	if err != nil {
		t.Fatalf("Archive() error = %v", err)
	}
	if d1 == "" {
		t.Fatal("Archive() returned empty digest")
	}

	into := t.TempDir()
	if err := ExtractFile(ctx, archive, into); err != nil {
		t.Fatalf("ExtractFile() error = %v", err)
	}
	got, err := os.ReadFile(filepath.Join(into, "resnet", "model.onnx"))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "graph" {
		t.Errorf("extracted graph = %q", got)
	}
}

func TestExtractRejectsTraversal(t *testing.T) {
	data := tarGz(t, map[string]string{"../evil.onnx": "x"})
	into := t.TempDir()
	if err := Extract(context.Background(), into, bytes.NewReader(data)); err == nil {
		t.Fatal("Extract() expected error for entry outside target dir")
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(into), "evil.onnx")); !os.IsNotExist(err) {
		t.Errorf("traversal entry was written: %v", err)
	}
}

func TestLocate(t *testing.T) {
	tests := []struct {
		name     string
		files    map[string]string
		wantCode errors.ErrCode
		want     Checkpoint
	}{
		{
			name:  "graph and labels",
			files: map[string]string{"a/model.onnx": "g", "a/labels.txt": "l"},
			want:  Checkpoint{Graph: "a/model.onnx", Labels: "a/labels.txt"},
		},
		{
			name:  "graph only, hidden ignored",
			files: map[string]string{"resnet.ONNX": "g", ".cache/other.onnx": "g"},
			want:  Checkpoint{Graph: "resnet.ONNX"},
		},
		{
			name:     "no graph",
			files:    map[string]string{"labels.txt": "l"},
			wantCode: errors.ErrCodeCheckpointInvalid,
		},
		{
			name:     "two graphs",
			files:    map[string]string{"a.onnx": "g", "b.onnx": "g"},
			wantCode: errors.ErrCodeCheckpointInvalid,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeFiles(t, dir, tt.files)
			got, err := Locate(dir)
			if tt.wantCode != "" {
				if !errors.IsErrCode(err, tt.wantCode) {
					t.Fatalf("Locate() error = %v, want code %s", err, tt.wantCode)
				}
				return
			}
			if err != nil {
				t.Fatalf("Locate() error = %v", err)
			}
			want := Checkpoint{Dir: dir, Graph: filepath.Join(dir, tt.want.Graph)}
			if tt.want.Labels != "" {
				want.Labels = filepath.Join(dir, tt.want.Labels)
			}
			if !reflect.DeepEqual(got, want) {
				t.Errorf("Locate() = %+v, want %+v", got, want)
			}
		})
	}
}

func TestReadLabels(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"labels.txt": "background\n tench \n\ngoldfish\n\n"})
	got, err := ReadLabels(filepath.Join(dir, "labels.txt"))
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"background", "tench", "", "goldfish"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ReadLabels() = %q, want %q", got, want)
	}
}
