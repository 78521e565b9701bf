// Package bundle reads and writes the manifest of an exported servable
// directory. Every file except the manifest itself is listed with its digest.
package bundle

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/opencontainers/go-digest"
	"golang.org/x/exp/slices"
	"kubegems.io/servex/pkg/errors"
	"kubegems.io/servex/pkg/types"
)

const SchemaVersion = 1

// MediaTypeOf picks the media type of a bundle file by its name.
func MediaTypeOf(name string) string {
	switch {
	case name == types.ServableConfigFileName:
		return types.MediaTypeServableConfigYaml
	case name == types.ServableLabelsFileName:
		return types.MediaTypeServableLabels
	case strings.HasSuffix(name, ".onnx"):
		return types.MediaTypeServableGraphOnnx
	default:
		return types.MediaTypeServableFile
	}
}

// Pack describes every regular file under dir. Hidden files and the manifest
// are skipped. The servable config becomes the manifest config.
func Pack(ctx context.Context, dir string, annotations map[string]string) (types.Manifest, error) {
	manifest := types.Manifest{
		SchemaVersion: SchemaVersion,
		MediaType:     types.MediaTypeServableManifestJson,
		Blobs:         []types.Descriptor{},
		Annotations:   annotations,
	}
	fsys := os.DirFS(dir)
	err := fs.WalkDir(fsys, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path != "." && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() || path == types.ServableManifestFileName {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		desc, err := Describe(dir, path)
		if err != nil {
			return err
		}
		if path == types.ServableConfigFileName {
			manifest.Config = desc
		} else {
			manifest.Blobs = append(manifest.Blobs, desc)
		}
		return nil
	})
	if err != nil {
		return types.Manifest{}, err
	}
	if manifest.Config.Name == "" {
		return types.Manifest{}, errors.NewServableInvalidError(fmt.Sprintf("%s missing in %s", types.ServableConfigFileName, dir))
	}
	slices.SortFunc(manifest.Blobs, types.SortDescriptorName)
	return manifest, nil
}

// Describe digests a single file of the bundle; name is slash separated and relative to dir.
func Describe(dir string, name string) (types.Descriptor, error) {
	filename := filepath.Join(dir, filepath.FromSlash(name))
	fi, err := os.Stat(filename)
	if err != nil {
		return types.Descriptor{}, err
	}
	f, err := os.Open(filename)
	if err != nil {
		return types.Descriptor{}, err
	}
	defer f.Close()
	dgst, err := digest.Canonical.FromReader(f)
	if err != nil {
		return types.Descriptor{}, err
	}
	return types.Descriptor{
		Name:      name,
		MediaType: MediaTypeOf(name),
		Digest:    dgst,
		Size:      fi.Size(),
		Mode:      fi.Mode().Perm(),
		Modified:  fi.ModTime().UTC(),
	}, nil
}

func WriteManifest(dir string, manifest types.Manifest) error {
	content, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, types.ServableManifestFileName), content, 0o644)
}

func ReadManifest(dir string) (*types.Manifest, error) {
	content, err := os.ReadFile(filepath.Join(dir, types.ServableManifestFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewServableInvalidError(fmt.Sprintf("%s missing in %s, export incomplete", types.ServableManifestFileName, dir))
		}
		return nil, err
	}
	manifest := &types.Manifest{}
	if err := json.Unmarshal(content, manifest); err != nil {
		return nil, errors.NewServableInvalidError(fmt.Sprintf("parse manifest: %v", err))
	}
	return manifest, nil
}

// Verify checks that every file named by the manifest exists under dir with the recorded digest.
func Verify(ctx context.Context, dir string, manifest types.Manifest) error {
	for _, desc := range manifest.All() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := ValidName(desc.Name); err != nil {
			return err
		}
		got, err := Describe(dir, desc.Name)
		if err != nil {
			if os.IsNotExist(err) {
				return errors.NewBlobUnknownError(desc.Name)
			}
			return err
		}
		if got.Digest != desc.Digest {
			return errors.NewDigestInvalidError(desc.Name, desc.Digest, got.Digest)
		}
	}
	return nil
}

// ValidName rejects descriptor names that are absolute or leave the bundle directory.
func ValidName(name string) error {
	clean := filepath.ToSlash(filepath.Clean(filepath.FromSlash(name)))
	if name == "" || filepath.IsAbs(name) || strings.HasPrefix(name, "/") || clean == ".." || strings.HasPrefix(clean, "../") {
		return errors.NewServableInvalidError(fmt.Sprintf("invalid file name in manifest: %q", name))
	}
	return nil
}
