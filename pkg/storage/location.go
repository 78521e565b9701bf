package storage

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	SchemeFile = "file"
	SchemeS3   = "s3"

	EnvS3Endpoint  = "SERVEX_S3_ENDPOINT"
	EnvS3Region    = "SERVEX_S3_REGION"
	EnvS3AccessKey = "SERVEX_S3_ACCESS_KEY"
	EnvS3SecretKey = "SERVEX_S3_SECRET_KEY"
)

// Location is where versioned bundles of one servable live:
// file:///data/models/resnet or s3://bucket/models/resnet, optionally
// pinned with @<version>.
type Location struct {
	Scheme  string
	Bucket  string
	Path    string
	Version string
	Query   url.Values
}

func (l Location) String() string {
	var s string
	switch l.Scheme {
	case SchemeS3:
		s = fmt.Sprintf("s3://%s/%s", l.Bucket, l.Path)
	default:
		s = "file://" + l.Path
	}
	if l.Version != "" {
		s += "@" + l.Version
	}
	return s
}

// ParseLocation accepts a plain path, file:// or s3:// url.
func ParseLocation(raw string) (Location, error) {
	if !strings.Contains(raw, "://") {
		raw = "file://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return Location{}, fmt.Errorf("invalid location: %w", err)
	}
	loc := Location{Scheme: u.Scheme, Query: u.Query()}
	switch u.Scheme {
	case SchemeFile:
		p := u.Path
		if u.Host != "" {
			p = u.Host + p
		}
		if p == "" {
			return Location{}, fmt.Errorf("invalid location %s: missing path", raw)
		}
		loc.Path, loc.Version = splitVersion(p)
		abs, err := filepath.Abs(filepath.FromSlash(loc.Path))
		if err != nil {
			return Location{}, err
		}
		loc.Path = filepath.ToSlash(abs)
	case SchemeS3:
		if u.Host == "" {
			return Location{}, fmt.Errorf("invalid location %s: missing bucket", raw)
		}
		loc.Bucket = u.Host
		loc.Path, loc.Version = splitVersion(strings.Trim(u.Path, "/"))
	default:
		return Location{}, fmt.Errorf("unsupported location scheme: %s", u.Scheme)
	}
	if loc.Version != "" {
		if _, err := strconv.ParseInt(loc.Version, 10, 64); err != nil {
			return Location{}, fmt.Errorf("invalid version %q: must be numeric", loc.Version)
		}
	}
	return loc, nil
}

func splitVersion(p string) (string, string) {
	i := strings.LastIndex(p, "@")
	if i < 0 || strings.Contains(p[i:], "/") {
		return p, ""
	}
	return p[:i], p[i+1:]
}

// S3OptionsFromEnv fills s3 options from SERVEX_S3_* variables.
func S3OptionsFromEnv() *S3Options {
	opts := NewDefaultS3Options()
	opts.URL = os.Getenv(EnvS3Endpoint)
	if region := os.Getenv(EnvS3Region); region != "" {
		opts.Region = region
	}
	opts.AccessKey = os.Getenv(EnvS3AccessKey)
	opts.SecretKey = os.Getenv(EnvS3SecretKey)
	return opts
}

// NewProvider opens the provider rooted at the location path. Query parameters
// endpoint, region and pathStyle override the s3 options.
func NewProvider(ctx context.Context, loc Location, s3opts *S3Options) (Provider, error) {
	switch loc.Scheme {
	case SchemeFile:
		return NewLocalFSProvider(filepath.FromSlash(loc.Path))
	case SchemeS3:
		if s3opts == nil {
			s3opts = S3OptionsFromEnv()
		}
		opts := *s3opts
		opts.Bucket, opts.Prefix = loc.Bucket, loc.Path
		if v := loc.Query.Get("endpoint"); v != "" {
			opts.URL = v
		}
		if v := loc.Query.Get("region"); v != "" {
			opts.Region = v
		}
		if v := loc.Query.Get("pathStyle"); v != "" {
			opts.PathStyle, _ = strconv.ParseBool(v)
		}
		return NewS3StorageProvider(ctx, &opts)
	default:
		return nil, fmt.Errorf("unsupported location scheme: %s", loc.Scheme)
	}
}
