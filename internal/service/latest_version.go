package service

import (
	"context"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/panel-curation-server/internal/domain"
	"github.com/panel-curation-server/internal/storage"
)

// LatestVersionIndex answers "what is the newest release version for this
// source" without rescanning the releases table on every call. Entries are
// cached per (source, reference genome) and invalidated when an import
// commits.
type LatestVersionIndex struct {
	cache *lru.Cache[string, string]
	mu    sync.Mutex
}

// NewLatestVersionIndex creates a new index with a bounded cache.
func NewLatestVersionIndex(size int) (*LatestVersionIndex, error) {
	if size <= 0 {
		size = 128
	}
	cache, err := lru.New[string, string](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create version cache: %w", err)
	}
	return &LatestVersionIndex{cache: cache}, nil
}

// DirectoryLatest returns the newest test directory release version for a
// source, or "" when no release is recorded.
func (idx *LatestVersionIndex) DirectoryLatest(ctx context.Context, tx storage.Tx, source string) (string, error) {
	key := "directory|" + source
	return idx.lookup(key, func() ([]string, error) {
		return tx.ListReleaseVersions(ctx, source)
	})
}

// TranscriptLatest returns the newest transcript release version for a
// (source, reference genome) pair, or "" when no release is recorded.
func (idx *LatestVersionIndex) TranscriptLatest(ctx context.Context, tx storage.Tx, source domain.TranscriptSource, genome string) (string, error) {
	key := "transcript|" + string(source) + "|" + genome
	return idx.lookup(key, func() ([]string, error) {
		return tx.ListTranscriptReleaseVersions(ctx, source, genome)
	})
}

// InvalidateDirectory drops the cached entry for a directory source.
func (idx *LatestVersionIndex) InvalidateDirectory(source string) {
	idx.cache.Remove("directory|" + source)
}

// InvalidateTranscript drops the cached entry for a transcript source.
func (idx *LatestVersionIndex) InvalidateTranscript(source domain.TranscriptSource, genome string) {
	idx.cache.Remove("transcript|" + string(source) + "|" + genome)
}

func (idx *LatestVersionIndex) lookup(key string, list func() ([]string, error)) (string, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if v, ok := idx.cache.Get(key); ok {
		return v, nil
	}

	versions, err := list()
	if err != nil {
		return "", err
	}

	latest := ""
	for _, v := range versions {
		if latest == "" || domain.CompareVersions(v, latest) > 0 {
			latest = v
		}
	}
	if latest != "" {
		idx.cache.Add(key, latest)
	}
	return latest, nil
}
