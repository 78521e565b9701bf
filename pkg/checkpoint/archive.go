package checkpoint

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/mholt/archiver/v4"
	"github.com/opencontainers/go-digest"
)

var tgz = archiver.CompressedArchive{
	Archival:    archiver.Tar{},
	Compression: archiver.Gz{},
}

// Archive packs dir into a tar.gz at intofile and returns the digest of the
// compressed stream. With an empty intofile only the digest is computed.
func Archive(ctx context.Context, dir string, intofile string) (digest.Digest, error) {
	files, err := archiver.FilesFromDisk(
		&archiver.FromDiskOptions{ClearAttributes: true},
		map[string]string{dir + string(os.PathSeparator): ""},
	)
	if err != nil {
		return "", err
	}

	writers := []io.Writer{}
	if intofile != "" {
		if err := os.MkdirAll(filepath.Dir(intofile), 0o755); err != nil {
			return "", err
		}
		f, err := os.Create(intofile)
		if err != nil {
			return "", err
		}
		defer f.Close()

		writers = append(writers, f)
	}
	d := digest.Canonical.Digester()
	writers = append(writers, d.Hash())

	if err := tgz.Archive(ctx, io.MultiWriter(writers...), files); err != nil {
		return "", err
	}
	return d.Digest(), nil
}

// Extract unpacks a tar.gz stream into intodir. Entries resolving outside of
// intodir and links are rejected.
func Extract(ctx context.Context, intodir string, r io.Reader) error {
	if err := os.MkdirAll(intodir, 0o755); err != nil {
		return err
	}
	return tgz.Extract(ctx, r, nil, func(ctx context.Context, f archiver.File) error {
		nameinlocal, err := safeJoin(intodir, f.NameInArchive)
		if err != nil {
			return err
		}
		if f.IsDir() {
			return os.MkdirAll(nameinlocal, 0o755)
		}
		if !f.Mode().IsRegular() {
			return fmt.Errorf("unsupported archive entry %s: %s", f.NameInArchive, f.Mode().Type())
		}
		if err := os.MkdirAll(filepath.Dir(nameinlocal), 0o755); err != nil {
			return err
		}
		srcfile, err := f.Open()
		if err != nil {
			return err
		}
		defer srcfile.Close()

		intofile, err := os.OpenFile(nameinlocal, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, f.Mode().Perm()|0o600)
		if err != nil {
			return err
		}
		defer intofile.Close()

		_, err = io.Copy(intofile, srcfile)
		return err
	})
}

// ExtractFile is Extract over an archive on disk.
func ExtractFile(ctx context.Context, archive string, intodir string) error {
	f, err := os.Open(archive)
	if err != nil {
		return err
	}
	defer f.Close()
	return Extract(ctx, intodir, f)
}

func safeJoin(base, name string) (string, error) {
	joined := filepath.Join(base, filepath.FromSlash(name))
	rel, err := filepath.Rel(filepath.Clean(base), joined)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return "", &fs.PathError{Op: "extract", Path: name, Err: fs.ErrPermission}
	}
	return joined, nil
}
