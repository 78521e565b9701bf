package storage

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	"kubegems.io/servex/pkg/bundle"
	"kubegems.io/servex/pkg/errors"
)

const (
	DefaultFileMode = 0o644
	DefaultDirMode  = 0o755

	metaSuffix = ".meta"
)

var _ Provider = &LocalFSProvider{}

type LocalFSProvider struct {
	basepath string
}

func NewLocalFSProvider(basepath string) (*LocalFSProvider, error) {
	if err := os.MkdirAll(basepath, DefaultDirMode); err != nil {
		return nil, err
	}
	return &LocalFSProvider{basepath: basepath}, nil
}

type localFileMeta struct {
	ContentType   string `json:"contentType,omitempty"`
	ContentLength int64  `json:"contentLength,omitempty"`
}

func (f *LocalFSProvider) filename(path string) (string, error) {
	if path != "" {
		if err := bundle.ValidName(path); err != nil {
			return "", err
		}
	}
	return filepath.Join(f.basepath, filepath.FromSlash(path)), nil
}

// Put writes content through a temp file so readers never see partial objects.
func (f *LocalFSProvider) Put(ctx context.Context, path string, content Content) error {
	datafile, err := f.filename(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(datafile), DefaultDirMode); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(datafile), ".put-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := io.Copy(tmp, content.Content); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), DefaultFileMode); err != nil {
		return err
	}
	if err := f.writemeta(datafile, content); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), datafile)
}

func (f *LocalFSProvider) Get(ctx context.Context, path string) (Content, error) {
	datafile, err := f.filename(path)
	if err != nil {
		return Content{}, err
	}
	stream, err := os.Open(datafile)
	if err != nil {
		if os.IsNotExist(err) {
			return Content{}, errors.NewBlobUnknownError(path)
		}
		return Content{}, err
	}
	meta := f.readmeta(datafile)
	if meta.ContentLength == 0 {
		if fi, err := stream.Stat(); err == nil {
			meta.ContentLength = fi.Size()
		}
	}
	return Content{ContentType: meta.ContentType, ContentLength: meta.ContentLength, Content: stream}, nil
}

func (f *LocalFSProvider) Exists(ctx context.Context, path string) (bool, error) {
	datafile, err := f.filename(path)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(datafile)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

func (f *LocalFSProvider) List(ctx context.Context, path string, recursive bool) ([]ObjectMeta, error) {
	dir, err := f.filename(path)
	if err != nil {
		return nil, err
	}
	out := []ObjectMeta{}
	if recursive {
		err := filepath.WalkDir(dir, func(p string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || skipListing(d.Name()) {
				return nil
			}
			fi, err := d.Info()
			if err != nil {
				return err
			}
			rel, err := filepath.Rel(dir, p)
			if err != nil {
				return err
			}
			out = append(out, ObjectMeta{Name: filepath.ToSlash(rel), Size: fi.Size(), LastModified: fi.ModTime()})
			return nil
		})
		if err != nil && !os.IsNotExist(err) {
			return nil, err
		}
		return out, nil
	}
	files, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return out, nil
		}
		return nil, err
	}
	for _, fi := range files {
		if skipListing(fi.Name()) {
			continue
		}
		name := fi.Name()
		if fi.IsDir() {
			out = append(out, ObjectMeta{Name: name + "/"})
			continue
		}
		finfo, err := fi.Info()
		if err != nil {
			return nil, err
		}
		out = append(out, ObjectMeta{Name: name, Size: finfo.Size(), LastModified: finfo.ModTime()})
	}
	return out, nil
}

func (f *LocalFSProvider) Remove(ctx context.Context, path string, recursive bool) error {
	datafile, err := f.filename(path)
	if err != nil {
		return err
	}
	if recursive {
		return os.RemoveAll(datafile)
	}
	_ = os.Remove(datafile + metaSuffix)
	return os.Remove(datafile)
}

func skipListing(name string) bool {
	return strings.HasSuffix(name, metaSuffix) || strings.HasPrefix(name, ".put-")
}

func (f *LocalFSProvider) writemeta(datafile string, content Content) error {
	meta := localFileMeta{ContentType: content.ContentType, ContentLength: content.ContentLength}
	jsonData, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(datafile+metaSuffix, jsonData, DefaultFileMode)
}

func (f *LocalFSProvider) readmeta(datafile string) localFileMeta {
	meta := localFileMeta{}
	if raw, err := os.ReadFile(datafile + metaSuffix); err == nil {
		_ = json.Unmarshal(raw, &meta)
	}
	return meta
}
