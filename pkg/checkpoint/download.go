package checkpoint

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/go-logr/logr"
	"github.com/opencontainers/go-digest"
	"k8s.io/apimachinery/pkg/util/wait"
	"kubegems.io/servex/pkg/errors"
	"kubegems.io/servex/pkg/progress"
	"kubegems.io/servex/pkg/version"
)

var UserAgent = "servex/" + version.Get().GitVersion

type DownloadOptions struct {
	// Digest of the archive, checked after download and used to skip
	// downloading a file that is already present. Falls back to the
	// url's "digest" query parameter.
	Digest        digest.Digest
	Retries       int
	RetryInterval time.Duration
	Client        *http.Client
	Progress      io.Writer
}

func DefaultDownloadOptions() DownloadOptions {
	return DownloadOptions{
		Retries:       4,
		RetryInterval: time.Second,
		Client:        http.DefaultClient,
		Progress:      io.Discard,
	}
}

type statusError struct {
	status int
	msg    string
}

func (e statusError) Error() string {
	return e.msg
}

func (e statusError) retryable() bool {
	return e.status >= http.StatusInternalServerError || e.status == http.StatusTooManyRequests
}

// Download fetches rawurl into intodir and returns the local archive path.
func Download(ctx context.Context, rawurl string, intodir string, opts DownloadOptions) (string, error) {
	log := logr.FromContextOrDiscard(ctx).WithValues("url", rawurl)

	u, err := url.Parse(rawurl)
	if err != nil {
		return "", fmt.Errorf("parse checkpoint url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", errors.NewParameterInvalidError("unsupported checkpoint url scheme: " + u.Scheme)
	}
	if opts.Digest == "" {
		if raw := u.Query().Get("digest"); raw != "" {
			dgst, err := digest.Parse(raw)
			if err != nil {
				return "", errors.NewParameterInvalidError(fmt.Sprintf("checkpoint url digest: %v", err))
			}
			opts.Digest = dgst
		}
	}
	if opts.Client == nil {
		opts.Client = http.DefaultClient
	}
	if opts.Progress == nil {
		opts.Progress = io.Discard
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = time.Second
	}
	if err := os.MkdirAll(intodir, 0o755); err != nil {
		return "", err
	}
	filename := path.Base(u.Path)
	if filename == "/" || filename == "." {
		filename = "checkpoint.tar.gz"
	}
	target := filepath.Join(intodir, filename)

	if opts.Digest != "" {
		if local, err := fileDigest(target); err == nil && local == opts.Digest {
			log.Info("checkpoint already present", "path", target)
			return target, nil
		}
	}

	mb := progress.NewMultiBar(opts.Progress, 40, 1)
	runctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go mb.Run(runctx)

	backoff := wait.Backoff{Duration: opts.RetryInterval, Factor: 2, Jitter: 0.1, Steps: opts.Retries + 1}
	var lasterr error
	mb.Go(filename, "pending", func(b *progress.Bar) error {
		err := wait.ExponentialBackoff(backoff, func() (bool, error) {
			if err := ctx.Err(); err != nil {
				return false, err
			}
			lasterr = fetch(ctx, opts.Client, u.String(), target, b)
			if lasterr == nil {
				return true, nil
			}
			if se, ok := lasterr.(statusError); ok && !se.retryable() {
				return false, lasterr
			}
			log.Info("checkpoint download failed, retrying", "error", lasterr.Error())
			return false, nil
		})
		if err == wait.ErrWaitTimeout {
			return lasterr
		}
		return err
	})
	if err := mb.Wait(); err != nil {
		return "", fmt.Errorf("download checkpoint %s: %w", rawurl, err)
	}

	if opts.Digest != "" {
		got, err := fileDigest(target)
		if err != nil {
			return "", err
		}
		if got != opts.Digest {
			_ = os.Remove(target)
			return "", errors.NewDigestInvalidError(filename, opts.Digest, got)
		}
	}
	log.Info("checkpoint downloaded", "path", target)
	return target, nil
}

func fetch(ctx context.Context, cli *http.Client, rawurl string, target string, bar *progress.Bar) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawurl, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", UserAgent)
	resp, err := cli.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return statusError{status: resp.StatusCode, msg: fmt.Sprintf("unexpected status: %s", resp.Status)}
	}

	partial := target + ".part"
	f, err := os.OpenFile(partial, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	body := bar.WrapReader(resp.Body, path.Base(target), resp.ContentLength, "downloading", "done", "failed")
	if _, err := io.Copy(f, body); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(partial, target)
}

func fileDigest(filename string) (digest.Digest, error) {
	f, err := os.Open(filename)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return digest.Canonical.FromReader(f)
}
