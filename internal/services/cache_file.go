package services

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// The preprocessing pass over a large snapshot is the most expensive step,
// so its result is persisted next to runs of the other commands. The cache
// is valid only for the exact (filetime, server) pair it was built from;
// anything else is ignored and rebuilt.

func cacheFileName(filetime uint64, server string) string {
	sum := md5.Sum([]byte(fmt.Sprintf("%d_%s", filetime, server)))
	return hex.EncodeToString(sum[:]) + ".pre.cache"
}

// LoadIndexCache returns the stored index for the snapshot identified by
// (filetime, server), or ok=false when absent, unreadable or stale.
func LoadIndexCache(dir string, filetime uint64, server string, log *logrus.Logger) (*Index, bool) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	path := filepath.Join(dir, cacheFileName(filetime, server))

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}

	var ix Index
	if err := json.Unmarshal(data, &ix); err != nil {
		log.WithField("path", path).Warn("discarding unreadable index cache")
		return nil, false
	}
	if ix.Filetime != filetime || ix.Server != server {
		log.WithField("path", path).Warn("discarding index cache for a different capture")
		return nil, false
	}

	log.WithField("path", path).Debug("loaded index cache")
	return &ix, true
}

// StoreIndexCache persists the index for later runs. Failure to store is
// not fatal; the next run simply rebuilds.
func StoreIndexCache(dir string, ix *Index, log *logrus.Logger) error {
	if log == nil {
		log = logrus.StandardLogger()
	}

	data, err := json.Marshal(ix)
	if err != nil {
		return fmt.Errorf("marshal index cache: %w", err)
	}

	path := filepath.Join(dir, cacheFileName(ix.Filetime, ix.Server))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write index cache: %w", err)
	}

	log.WithField("path", path).Debug("stored index cache")
	return nil
}
