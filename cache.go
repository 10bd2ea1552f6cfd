package main

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

const homeCacheKey = "home"

// CachedSections stores the rendered home page sections with timestamp
type CachedSections struct {
	Sections  []HomeSection
	Timestamp time.Time
}

// CachedSummary stores aggregated ratings for one website with timestamp
type CachedSummary struct {
	Summary   RatingSummary
	Timestamp time.Time
}

// CachedCount stores a cached row count with timestamp
type CachedCount struct {
	Count     int64
	Timestamp time.Time
}

// ListingCache manages caching for public listings, per-website rating
// summaries and the pending submission queue count. Moderation transitions
// and review writes invalidate the affected entries.
type ListingCache struct {
	sectionsCache *lru.Cache[string, CachedSections]
	summaryCache  *lru.Cache[uint, CachedSummary]
	countsCache   *lru.Cache[string, CachedCount]
	ttl           time.Duration
	mu            sync.RWMutex
}

// NewListingCache creates a new listing cache with specified size and TTL
func NewListingCache(size int, ttl time.Duration) (*ListingCache, error) {
	sectionsCache, err := lru.New[string, CachedSections](size)
	if err != nil {
		return nil, err
	}

	summaryCache, err := lru.New[uint, CachedSummary](size)
	if err != nil {
		return nil, err
	}

	countsCache, err := lru.New[string, CachedCount](size)
	if err != nil {
		return nil, err
	}

	return &ListingCache{
		sectionsCache: sectionsCache,
		summaryCache:  summaryCache,
		countsCache:   countsCache,
		ttl:           ttl,
	}, nil
}

// GetHome retrieves the cached home page sections
func (c *ListingCache) GetHome() ([]HomeSection, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	cached, ok := c.sectionsCache.Get(homeCacheKey)
	if !ok {
		return nil, false
	}

	// Check if cache entry has expired
	if time.Since(cached.Timestamp) > c.ttl {
		c.mu.RUnlock()
		c.mu.Lock()
		c.sectionsCache.Remove(homeCacheKey)
		c.mu.Unlock()
		c.mu.RLock()
		return nil, false
	}

	return cached.Sections, true
}

// SetHome stores the home page sections in cache
func (c *ListingCache) SetHome(sections []HomeSection) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sectionsCache.Add(homeCacheKey, CachedSections{
		Sections:  sections,
		Timestamp: time.Now(),
	})
}

// GetSummary retrieves the cached rating summary for a website
func (c *ListingCache) GetSummary(websiteID uint) (RatingSummary, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	cached, ok := c.summaryCache.Get(websiteID)
	if !ok {
		return RatingSummary{}, false
	}

	// Check if cache entry has expired
	if time.Since(cached.Timestamp) > c.ttl {
		c.mu.RUnlock()
		c.mu.Lock()
		c.summaryCache.Remove(websiteID)
		c.mu.Unlock()
		c.mu.RLock()
		return RatingSummary{}, false
	}

	return cached.Summary, true
}

// SetSummary stores a rating summary in cache for a website
func (c *ListingCache) SetSummary(websiteID uint, summary RatingSummary) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.summaryCache.Add(websiteID, CachedSummary{
		Summary:   summary,
		Timestamp: time.Now(),
	})
}

// GetPendingCount retrieves the cached pending submission count
func (c *ListingCache) GetPendingCount() (int64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	cached, ok := c.countsCache.Get("pending_submissions")
	if !ok {
		return 0, false
	}

	// Check if cache entry has expired
	if time.Since(cached.Timestamp) > c.ttl {
		c.mu.RUnlock()
		c.mu.Lock()
		c.countsCache.Remove("pending_submissions")
		c.mu.Unlock()
		c.mu.RLock()
		return 0, false
	}

	return cached.Count, true
}

// SetPendingCount stores the pending submission count in cache
func (c *ListingCache) SetPendingCount(count int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.countsCache.Add("pending_submissions", CachedCount{
		Count:     count,
		Timestamp: time.Now(),
	})
}

// InvalidateWebsite clears the rating summary for one website along with the
// listings that embed it.
func (c *ListingCache) InvalidateWebsite(websiteID uint) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.summaryCache.Remove(websiteID)
	c.sectionsCache.Remove(homeCacheKey)
}

// InvalidateListings clears all cached public listing views
func (c *ListingCache) InvalidateListings() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sectionsCache.Purge()
	c.summaryCache.Purge()
}

// InvalidateQueue clears the cached submission queue count
func (c *ListingCache) InvalidateQueue() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.countsCache.Remove("pending_submissions")
}

// Clear removes all entries from the cache
func (c *ListingCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sectionsCache.Purge()
	c.summaryCache.Purge()
	c.countsCache.Purge()
}
