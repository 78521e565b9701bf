package servable

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/opencontainers/go-digest"
	"kubegems.io/servex/pkg/architecture"
	"kubegems.io/servex/pkg/bundle"
	"kubegems.io/servex/pkg/checkpoint"
	"kubegems.io/servex/pkg/errors"
	"kubegems.io/servex/pkg/types"
	"sigs.k8s.io/yaml"
)

// Bundle is an exported servable directory whose files matched its manifest when opened.
type Bundle struct {
	Dir      string
	Manifest types.Manifest
	// Digest of manifest.json, identifies the bundle content.
	Digest digest.Digest
	Config types.ServableConfig
	Labels []string
}

func Open(ctx context.Context, dir string) (*Bundle, error) {
	manifest, err := bundle.ReadManifest(dir)
	if err != nil {
		return nil, err
	}
	if err := bundle.Verify(ctx, dir, *manifest); err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(filepath.Join(dir, types.ServableManifestFileName))
	if err != nil {
		return nil, err
	}
	content, err := os.ReadFile(filepath.Join(dir, manifest.Config.Name))
	if err != nil {
		return nil, err
	}
	config := types.ServableConfig{}
	if err := yaml.Unmarshal(content, &config); err != nil {
		return nil, errors.NewServableInvalidError(fmt.Sprintf("parse %s: %v", manifest.Config.Name, err))
	}
	b := &Bundle{Dir: dir, Manifest: *manifest, Digest: digest.FromBytes(raw), Config: config}
	if _, err := b.Architecture(); err != nil {
		return nil, err
	}
	if err := verifiedBlob(*manifest, config.Runtime.Graph); err != nil {
		return nil, err
	}
	if config.Labels != "" {
		if err := bundle.ValidName(config.Labels); err != nil {
			return nil, err
		}
		labels, err := checkpoint.ReadLabels(filepath.Join(dir, filepath.FromSlash(config.Labels)))
		if err != nil {
			return nil, errors.NewServableInvalidError(fmt.Sprintf("read labels: %v", err))
		}
		b.Labels = labels
	}
	return b, nil
}

// verifiedBlob requires name to be one of the digest checked blobs of the manifest.
func verifiedBlob(manifest types.Manifest, name string) error {
	if err := bundle.ValidName(name); err != nil {
		return errors.NewServableInvalidError(fmt.Sprintf("runtime graph %q: %v", name, err))
	}
	for _, blob := range manifest.Blobs {
		if blob.Name == name {
			return nil
		}
	}
	return errors.NewServableInvalidError(fmt.Sprintf("runtime graph %q is not in the manifest", name))
}

// Architecture rebuilds the model definition recorded in the servable config.
func (b *Bundle) Architecture() (architecture.Architecture, error) {
	c := b.Config
	arch := architecture.Architecture{
		Name:         c.Architecture,
		ImageSize:    c.ImageSize,
		Channels:     c.Channels,
		NumClasses:   c.NumClasses,
		LabelOffset:  c.LabelOffset,
		Layout:       c.Runtime.Layout,
		InputTensor:  c.Runtime.InputTensor,
		OutputTensor: c.Runtime.OutputTensor,
		Offset:       c.Normalization.Offset,
		Scale:        c.Normalization.Scale,
	}
	switch {
	case arch.ImageSize <= 0:
		return arch, errors.NewServableInvalidError(fmt.Sprintf("invalid image size %d", arch.ImageSize))
	case arch.Channels != architecture.DefaultChannels:
		return arch, errors.NewServableInvalidError(fmt.Sprintf("unsupported channel count %d", arch.Channels))
	case arch.NumClasses <= 0:
		return arch, errors.NewServableInvalidError(fmt.Sprintf("invalid class count %d", arch.NumClasses))
	case len(arch.Offset) != arch.Channels || len(arch.Scale) != arch.Channels:
		return arch, errors.NewServableInvalidError("normalization must have one offset and scale per channel")
	case arch.Layout != architecture.LayoutNHWC && arch.Layout != architecture.LayoutNCHW:
		return arch, errors.NewServableInvalidError(fmt.Sprintf("unsupported layout %q", arch.Layout))
	case c.Runtime.Graph == "":
		return arch, errors.NewServableInvalidError("runtime graph not set")
	}
	for _, s := range arch.Scale {
		if s == 0 {
			return arch, errors.NewServableInvalidError("normalization scale must not be zero")
		}
	}
	return arch, nil
}

func (b *Bundle) GraphPath() string {
	return filepath.Join(b.Dir, filepath.FromSlash(b.Config.Runtime.Graph))
}

// Label names a class index, empty when the bundle has no label for it.
func (b *Bundle) Label(class int64) string {
	i := class - int64(b.Config.LabelOffset)
	if i < 0 || i >= int64(len(b.Labels)) {
		return ""
	}
	return b.Labels[i]
}

// ConfigFor builds the servable config of an architecture. Signatures are filled on export.
func ConfigFor(arch architecture.Architecture, topK int, withLabels bool) types.ServableConfig {
	config := types.ServableConfig{
		Description:  fmt.Sprintf("%s image classifier", arch.Name),
		Architecture: arch.Name,
		ImageSize:    arch.ImageSize,
		Channels:     arch.Channels,
		NumClasses:   arch.NumClasses,
		LabelOffset:  arch.LabelOffset,
		TopK:         topK,
		Normalization: types.Normalization{
			Offset: arch.Offset,
			Scale:  arch.Scale,
		},
		Runtime: types.RuntimeConfig{
			Graph:        types.ServableGraphFileName,
			InputTensor:  arch.InputTensor,
			OutputTensor: arch.OutputTensor,
			Layout:       arch.Layout,
		},
	}
	if withLabels {
		config.Labels = types.ServableLabelsFileName
	}
	return config
}
