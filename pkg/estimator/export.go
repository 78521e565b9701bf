package estimator

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-logr/logr"
	"kubegems.io/servex/pkg/bundle"
	"kubegems.io/servex/pkg/types"
	"sigs.k8s.io/yaml"
)

var now = time.Now

// Export writes a servable bundle into a new <exportBase>/<unix-seconds> directory
// and returns its path. The bundle is assembled in a hidden temp dir under
// exportBase and renamed into place once the manifest is written.
func (e *Estimator) Export(ctx context.Context, exportBase string, receiverFn ServingInputReceiverFn) (string, error) {
	log := logr.FromContextOrDiscard(ctx).WithValues("base", exportBase)

	signatures, err := e.Signatures(ctx, receiverFn)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(exportBase, 0o755); err != nil {
		return "", err
	}
	tmpdir, err := os.MkdirTemp(exportBase, ".export-")
	if err != nil {
		return "", err
	}
	done := false
	defer func() {
		if !done {
			os.RemoveAll(tmpdir)
		}
	}()

	for name, src := range e.config.Assets {
		if err := bundle.ValidName(name); err != nil {
			return "", err
		}
		log.V(1).Info("copying asset", "name", name, "src", src)
		if err := copyFile(src, filepath.Join(tmpdir, filepath.FromSlash(name))); err != nil {
			return "", fmt.Errorf("copy asset %s: %w", name, err)
		}
	}

	config := e.config.Config
	config.Signatures = signatures
	content, err := yaml.Marshal(config)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath.Join(tmpdir, types.ServableConfigFileName), content, 0o644); err != nil {
		return "", err
	}

	created := now()
	annotations := map[string]string{types.AnnotationCreated: created.UTC().Format(time.RFC3339)}
	for k, v := range e.config.Annotations {
		annotations[k] = v
	}
	manifest, err := bundle.Pack(ctx, tmpdir, annotations)
	if err != nil {
		return "", err
	}
	if err := bundle.WriteManifest(tmpdir, manifest); err != nil {
		return "", err
	}

	for ts := created.Unix(); ; ts++ {
		target := filepath.Join(exportBase, strconv.FormatInt(ts, 10))
		if _, err := os.Stat(target); err == nil {
			continue
		} else if !os.IsNotExist(err) {
			return "", err
		}
		if err := os.Rename(tmpdir, target); err != nil {
			return "", err
		}
		done = true
		log.Info("servable exported", "dir", target, "files", len(manifest.Blobs)+1)
		return target, nil
	}
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
