package identity

import (
	"path/filepath"
	"strconv"
	"strings"

	hashid "github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
)

// UUID derives a deterministic UUID from a stable key using go-hashid.
//
// Keys should be prefixed by entity type so different kinds never collide.
func UUID(key string) uuid.UUID {
	trimmed := strings.TrimSpace(key)
	if trimmed == "" {
		return uuid.Nil
	}
	uid, err := hashid.NewUUID(trimmed, hashid.WithHashAlgorithm(hashid.SHA256), hashid.WithNormalization(true))
	if err != nil || uid == uuid.Nil {
		return uuid.NewSHA1(uuid.NameSpaceOID, []byte(trimmed))
	}
	return uid
}

// PostUUID identifies the index-th post of a source file. Path separators are
// normalised so the same file yields the same ID on every platform.
func PostUUID(source string, index int) uuid.UUID {
	key := filepath.ToSlash(strings.TrimSpace(source))
	return UUID("go-blog:post:" + key + "#" + strconv.Itoa(index))
}

// ArtifactUUID identifies a generated output file by its relative path.
func ArtifactUUID(path string) uuid.UUID {
	return UUID("go-blog:artifact:" + filepath.ToSlash(strings.TrimSpace(path)))
}
