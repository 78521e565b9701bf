package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-logr/logr"
	"github.com/opencontainers/go-digest"
	"golang.org/x/exp/slices"
	"kubegems.io/servex/pkg/bundle"
	"kubegems.io/servex/pkg/errors"
	"kubegems.io/servex/pkg/progress"
	"kubegems.io/servex/pkg/types"
)

type TransferOptions struct {
	// Progress receives the progress bars, discarded when nil.
	Progress    io.Writer
	Concurrency int
}

func DefaultTransferOptions() *TransferOptions {
	return &TransferOptions{Progress: os.Stdout, Concurrency: progress.DefaultConcurrency}
}

func (o *TransferOptions) multibar() *progress.MultiBar {
	dest := o.Progress
	if dest == nil {
		dest = io.Discard
	}
	return progress.NewMultiBar(dest, 40, o.Concurrency)
}

// Versions lists the numeric version directories of a location, oldest first.
func Versions(ctx context.Context, provider Provider) ([]int64, error) {
	entries, err := provider.List(ctx, "", false)
	if err != nil {
		return nil, err
	}
	versions := []int64{}
	for _, entry := range entries {
		name := strings.TrimSuffix(entry.Name, "/")
		if name == entry.Name {
			continue
		}
		if v, err := strconv.ParseInt(name, 10, 64); err == nil {
			versions = append(versions, v)
		}
	}
	slices.Sort(versions)
	return versions, nil
}

// LatestVersion is the newest version that has a manifest.
func LatestVersion(ctx context.Context, provider Provider) (string, error) {
	versions, err := Versions(ctx, provider)
	if err != nil {
		return "", err
	}
	for i := len(versions) - 1; i >= 0; i-- {
		version := strconv.FormatInt(versions[i], 10)
		ok, err := provider.Exists(ctx, path.Join(version, types.ServableManifestFileName))
		if err != nil {
			return "", err
		}
		if ok {
			return version, nil
		}
	}
	return "", errors.NewServableUnknownError("no complete version found")
}

// Push uploads the bundle in dir as version. Blobs go first and the manifest
// last so a partially pushed version is never picked up.
func Push(ctx context.Context, provider Provider, dir string, version string, opts *TransferOptions) error {
	if opts == nil {
		opts = DefaultTransferOptions()
	}
	log := logr.FromContextOrDiscard(ctx).WithValues("dir", dir, "version", version)
	if _, err := strconv.ParseInt(version, 10, 64); err != nil {
		return errors.NewParameterInvalidError(fmt.Sprintf("invalid version %q: must be numeric", version))
	}
	manifest, err := bundle.ReadManifest(dir)
	if err != nil {
		return err
	}
	if err := bundle.Verify(ctx, dir, *manifest); err != nil {
		return err
	}

	mb := opts.multibar()
	runctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go mb.Run(runctx)

	for _, desc := range manifest.All() {
		desc := desc
		mb.Go(desc.Name, "pending", func(b *progress.Bar) error {
			f, err := os.Open(filepath.Join(dir, filepath.FromSlash(desc.Name)))
			if err != nil {
				return err
			}
			rc := b.WrapReader(f, desc.Name, desc.Size, "pushing", "pushed", "failed")
			defer rc.Close()
			return provider.Put(ctx, path.Join(version, desc.Name), Content{
				ContentType:   desc.MediaType,
				ContentLength: desc.Size,
				Content:       rc,
			})
		})
	}
	if err := mb.Wait(); err != nil {
		return err
	}

	raw, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return err
	}
	if err := provider.Put(ctx, path.Join(version, types.ServableManifestFileName), Content{
		ContentType:   types.MediaTypeServableManifestJson,
		ContentLength: int64(len(raw)),
		Content:       io.NopCloser(bytes.NewReader(raw)),
	}); err != nil {
		return err
	}
	log.Info("servable pushed", "files", len(manifest.Blobs)+1)
	return nil
}

// Pull downloads a version into intodir, the latest complete one when version
// is empty. Files already present with the right digest are kept. The manifest
// is written once every file is in place.
func Pull(ctx context.Context, provider Provider, version string, intodir string, opts *TransferOptions) (*types.Manifest, error) {
	if opts == nil {
		opts = DefaultTransferOptions()
	}
	if version == "" {
		latest, err := LatestVersion(ctx, provider)
		if err != nil {
			return nil, err
		}
		version = latest
	}
	log := logr.FromContextOrDiscard(ctx).WithValues("dir", intodir, "version", version)

	content, err := provider.Get(ctx, path.Join(version, types.ServableManifestFileName))
	if err != nil {
		if errors.IsErrCode(err, errors.ErrCodeBlobUnknown) {
			return nil, errors.NewServableUnknownError("version " + version)
		}
		return nil, err
	}
	raw, err := io.ReadAll(content)
	content.Close()
	if err != nil {
		return nil, err
	}
	manifest := &types.Manifest{}
	if err := json.Unmarshal(raw, manifest); err != nil {
		return nil, errors.NewServableInvalidError(fmt.Sprintf("parse manifest: %v", err))
	}
	for _, desc := range manifest.All() {
		if err := bundle.ValidName(desc.Name); err != nil {
			return nil, err
		}
		if err := desc.Digest.Validate(); err != nil {
			return nil, errors.NewServableInvalidError(fmt.Sprintf("%s: %v", desc.Name, err))
		}
	}
	if err := os.MkdirAll(intodir, DefaultDirMode); err != nil {
		return nil, err
	}

	mb := opts.multibar()
	runctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go mb.Run(runctx)

	for _, desc := range manifest.All() {
		desc := desc
		mb.Go(desc.Name, "pending", func(b *progress.Bar) error {
			return pullFile(ctx, provider, version, desc, intodir, b)
		})
	}
	if err := mb.Wait(); err != nil {
		return nil, err
	}
	if err := os.WriteFile(filepath.Join(intodir, types.ServableManifestFileName), raw, DefaultFileMode); err != nil {
		return nil, err
	}
	log.Info("servable pulled", "files", len(manifest.Blobs)+1)
	return manifest, nil
}

func pullFile(ctx context.Context, provider Provider, version string, desc types.Descriptor, basedir string, bar *progress.Bar) error {
	bar.SetStatus(desc.Name, "checking")
	if local, err := bundle.Describe(basedir, desc.Name); err == nil && local.Digest == desc.Digest {
		bar.SetProgress(desc.Size, desc.Size)
		bar.SetStatus(desc.Name, "already exists")
		return nil
	}

	content, err := provider.Get(ctx, path.Join(version, desc.Name))
	if err != nil {
		return err
	}
	rc := bar.WrapReader(content.Content, desc.Name, desc.Size, "pulling", "pulled", "failed")
	defer rc.Close()

	filename := filepath.Join(basedir, filepath.FromSlash(desc.Name))
	if err := os.MkdirAll(filepath.Dir(filename), DefaultDirMode); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(filename), ".pull-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	verifier := desc.Digest.Verifier()
	if _, err := io.Copy(io.MultiWriter(tmp, verifier), rc); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if !verifier.Verified() {
		got, _ := digestFile(tmp.Name())
		return errors.NewDigestInvalidError(desc.Name, desc.Digest, got)
	}
	mode := desc.Mode
	if mode == 0 {
		mode = DefaultFileMode
	}
	if err := os.Chmod(tmp.Name(), mode.Perm()); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), filename)
}

func digestFile(filename string) (digest.Digest, error) {
	f, err := os.Open(filename)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return digest.FromReader(f)
}
