package contentstore

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"time"

	"github.com/dmarcwatch/reportstack/config"
	"github.com/dmarcwatch/reportstack/interfaces"
	"github.com/dmarcwatch/reportstack/internal/utils"
)

// Hash returns the hex SHA-256 digest of the content. It is the dedup
// key for the whole pipeline: stable across calls and restarts.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// PathFor derives the relative storage path for a (filename, digest)
// pair: YYYY/MM/DD/digest_prefix8/filename, sharded by the current
// processing date. Reprocessing the same content on another day yields
// a different path, so the digest column — not the path — is the only
// reliable dedup key.
func PathFor(filename, digest string, now time.Time) string {
	prefix := digest
	if len(prefix) > 8 {
		prefix = prefix[:8]
	}
	base := filepath.Base(filename)
	if base == "." || base == string(filepath.Separator) || base == "" {
		base = "report.xml"
	}
	return fmt.Sprintf("%04d/%02d/%02d/%s/%s", now.Year(), int(now.Month()), now.Day(), prefix, base)
}

// NewContentStore picks the backend from config.
func NewContentStore(cfg *config.StorageConfig) (interfaces.ContentStore, error) {
	switch cfg.Backend {
	case "filesystem", "":
		return NewFileSystemStore(cfg.BasePath), nil
	case "s3":
		return NewObjectStore(cfg)
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", cfg.Backend)
	}
}

func newStoredObject(filename string, data []byte) *interfaces.StoredObject {
	digest := Hash(data)
	return &interfaces.StoredObject{
		Path: PathFor(filename, digest, utils.Now()),
		Hash: digest,
		Size: int64(len(data)),
	}
}
