package research

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Cache stores company profiles as JSON files to avoid redundant
// research calls.
type Cache struct {
	dir string
}

func NewCache(dir string) *Cache {
	return &Cache{dir: dir}
}

// path sanitizes the company name into a filename.
func (c *Cache) path(companyName string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(companyName) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return filepath.Join(c.dir, b.String()+".json")
}

// Get loads a cached profile; ok is false when none exists or the file
// is unreadable.
func (c *Cache) Get(companyName string) (Profile, bool) {
	data, err := os.ReadFile(c.path(companyName))
	if err != nil {
		return Profile{}, false
	}
	var profile Profile
	if err := json.Unmarshal(data, &profile); err != nil {
		log.Printf("Error reading cached profile for %s: %v", companyName, err)
		return Profile{}, false
	}
	return profile, true
}

// Put writes a profile to the cache, stamping cache metadata.
func (c *Cache) Put(companyName string, profile Profile) error {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}
	profile.CachedAt = time.Now().UTC().Format(time.RFC3339)
	profile.CacheVersion = "1.0"

	data, err := json.MarshalIndent(profile, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal profile: %w", err)
	}
	if err := os.WriteFile(c.path(companyName), data, 0o644); err != nil {
		return fmt.Errorf("failed to write profile cache: %w", err)
	}
	return nil
}

// List returns the names of all cached companies, sorted.
func (c *Cache) List() []string {
	entries, err := filepath.Glob(filepath.Join(c.dir, "*.json"))
	if err != nil {
		return nil
	}
	var companies []string
	for _, path := range entries {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var profile Profile
		if err := json.Unmarshal(data, &profile); err != nil {
			log.Printf("Error reading cache file %s: %v", path, err)
			continue
		}
		name := profile.CompanyName
		if name == "" {
			name = strings.TrimSuffix(filepath.Base(path), ".json")
		}
		companies = append(companies, name)
	}
	sort.Strings(companies)
	return companies
}

// Delete removes a cached profile. deleted is false when nothing was
// cached for the name; removal failures on an existing file are errors.
func (c *Cache) Delete(companyName string) (deleted bool, err error) {
	err = os.Remove(c.path(companyName))
	switch {
	case err == nil:
		return true, nil
	case os.IsNotExist(err):
		return false, nil
	default:
		return false, fmt.Errorf("failed to delete profile cache: %w", err)
	}
}

// GetOrFetch returns the cached profile when present, otherwise fetches
// one and caches it. Cache write failures are logged, not fatal.
func (c *Cache) GetOrFetch(ctx context.Context, companyName string, fetch func(context.Context, string) (Profile, error)) (Profile, error) {
	if profile, ok := c.Get(companyName); ok {
		log.Printf("Using cached profile for: %s", companyName)
		return profile, nil
	}

	log.Printf("Fetching new profile for: %s", companyName)
	profile, err := fetch(ctx, companyName)
	if err != nil {
		return Profile{}, err
	}
	if err := c.Put(companyName, profile); err != nil {
		log.Printf("Error saving profile cache for %s: %v", companyName, err)
	}
	return profile, nil
}
