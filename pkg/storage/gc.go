package storage

import (
	"context"
	"path"
	"strconv"

	"github.com/go-logr/logr"
	"kubegems.io/servex/pkg/errors"
	"kubegems.io/servex/pkg/types"
)

// GCVersions removes all but the newest keep complete versions. Versions
// without manifest older than the newest complete one are removed too; newer
// ones may still be pushing. The result maps each removed version to its status.
func GCVersions(ctx context.Context, provider Provider, keep int) (map[string]string, error) {
	if keep < 1 {
		return nil, errors.NewParameterInvalidError("at least one version must be kept")
	}
	log := logr.FromContextOrDiscard(ctx)

	log.Info("start versions garbage collect", "keep", keep)
	defer log.Info("stop versions garbage collect")

	versions, err := Versions(ctx, provider)
	if err != nil {
		return nil, err
	}
	toremove := map[string]string{}
	kept := 0
	for i := len(versions) - 1; i >= 0; i-- {
		version := strconv.FormatInt(versions[i], 10)
		complete, err := provider.Exists(ctx, path.Join(version, types.ServableManifestFileName))
		if err != nil {
			return nil, err
		}
		switch {
		case complete && kept < keep:
			kept++
		case complete:
			log.Info("mark version outdated", "version", version)
			toremove[version] = ""
		case kept > 0:
			log.Info("mark version incomplete", "version", version)
			toremove[version] = ""
		}
	}

	for version := range toremove {
		if err := provider.Remove(ctx, version, true); err != nil {
			log.Error(err, "remove version", "version", version)
			toremove[version] = err.Error()
			return toremove, err
		}
		log.Info("removed version", "version", version)
		toremove[version] = "removed"
	}
	return toremove, nil
}
