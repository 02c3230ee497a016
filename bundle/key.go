package bundle

import "fmt"

// DefaultNamespace is the cache-entry namespace used when none is set.
const DefaultNamespace = "snapshots"

// CacheKey identifies exactly one blob-cache entry. Keys are derived per
// commit and never reused: a newer commit supersedes older entries instead
// of overwriting them.
type CacheKey struct {
	Platform  string
	Namespace string
	CommitSHA string
}

// NewCacheKey builds a key in the default namespace.
func NewCacheKey(platform, commitSHA string) CacheKey {
	return CacheKey{
		Platform:  platform,
		Namespace: DefaultNamespace,
		CommitSHA: commitSHA,
	}
}

// String composes the wire form of the key: {platform}-{namespace}-{commit}.
func (k CacheKey) String() string {
	namespace := k.Namespace
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return fmt.Sprintf("%s-%s-%s", k.Platform, namespace, k.CommitSHA)
}
