package fetch

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const cacheFileSuffix = ".html"

// CachedPage is one stored page body.
type CachedPage struct {
	URL       string
	Body      string
	FetchedAt time.Time
}

// DiskCache keeps fetched pages on disk so a re-run of an interrupted crawl
// does not hit cga.ct.gov again. Each page is one file named by the SHA-256
// of its URL, sharded by the first two hex digits. The file holds the URL on
// its first line followed by the decoded body; its modification time is the
// fetch time.
type DiskCache struct {
	root string
	ttl  time.Duration
	now  func() time.Time
}

// NewDiskCache opens a cache rooted at cacheDir, creating it if needed.
func NewDiskCache(cacheDir string, ttl time.Duration) (*DiskCache, error) {
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory %s: %w", cacheDir, err)
	}
	return &DiskCache{root: cacheDir, ttl: ttl, now: time.Now}, nil
}

// Get returns the page stored for pageURL. Expired pages are deleted and
// reported as misses, as are files that do not belong to pageURL.
func (cache *DiskCache) Get(pageURL string) (CachedPage, bool) {
	pagePath := cache.pathFor(pageURL)

	info, err := os.Stat(pagePath)
	if err != nil {
		return CachedPage{}, false
	}
	if cache.expired(info.ModTime()) {
		_ = os.Remove(pagePath)
		return CachedPage{}, false
	}

	contents, err := os.ReadFile(pagePath)
	if err != nil {
		return CachedPage{}, false
	}
	storedURL, body, found := bytes.Cut(contents, []byte("\n"))
	if !found || string(storedURL) != pageURL {
		return CachedPage{}, false
	}

	return CachedPage{URL: pageURL, Body: string(body), FetchedAt: info.ModTime().UTC()}, true
}

// Set stores body for pageURL, replacing any earlier copy atomically.
func (cache *DiskCache) Set(pageURL string, body string) error {
	if strings.Contains(pageURL, "\n") {
		return fmt.Errorf("cannot cache url containing a newline: %q", pageURL)
	}

	pagePath := cache.pathFor(pageURL)
	if err := os.MkdirAll(filepath.Dir(pagePath), 0o755); err != nil {
		return fmt.Errorf("failed to create cache shard: %w", err)
	}

	temporaryFile, err := os.CreateTemp(filepath.Dir(pagePath), "page-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create cache file: %w", err)
	}
	temporaryPath := temporaryFile.Name()

	_, writeErr := temporaryFile.WriteString(pageURL + "\n" + body)
	closeErr := temporaryFile.Close()
	if writeErr != nil || closeErr != nil {
		_ = os.Remove(temporaryPath)
		return fmt.Errorf("failed to write cache file for %s: %w", pageURL, firstError(writeErr, closeErr))
	}
	if err := os.Rename(temporaryPath, pagePath); err != nil {
		_ = os.Remove(temporaryPath)
		return fmt.Errorf("failed to move cache file into place: %w", err)
	}
	return nil
}

// Prune deletes every expired page and returns how many were removed.
func (cache *DiskCache) Prune() (int, error) {
	removed := 0
	err := filepath.WalkDir(cache.root, func(walkPath string, entry os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), cacheFileSuffix) {
			return nil
		}
		info, err := entry.Info()
		if err != nil {
			return nil
		}
		if cache.expired(info.ModTime()) {
			if err := os.Remove(walkPath); err == nil {
				removed++
			}
		}
		return nil
	})
	if err != nil {
		return removed, fmt.Errorf("failed to prune cache %s: %w", cache.root, err)
	}
	return removed, nil
}

func (cache *DiskCache) expired(fetchedAt time.Time) bool {
	return !cache.now().Before(fetchedAt.Add(cache.ttl))
}

func (cache *DiskCache) pathFor(pageURL string) string {
	digest := sha256.Sum256([]byte(pageURL))
	name := hex.EncodeToString(digest[:])
	return filepath.Join(cache.root, name[:2], name+cacheFileSuffix)
}

func firstError(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
