package imagecache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"sync"
	"time"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/semaphore"

	"github.com/five82/perch/internal/logger"
)

const (
	defaultTTL           = 60 * time.Second
	defaultMaxDimension  = 512
	defaultMaxConcurrent = 8
	maxImageBytes        = 16 << 20
	maxImagePixels       = 64 << 20
	fetchTimeout         = 30 * time.Second
)

// Boundary converts decoded images into renderable artifacts and releases
// them. Both calls execute on the UI side; CreateArtifact blocks until the UI
// has produced the artifact or ctx ends.
type Boundary interface {
	CreateArtifact(ctx context.Context, img image.Image) (Artifact, error)
	ReleaseArtifact(a Artifact)
}

// Spawner starts the fetch task for a newly created entry. The task must call
// Cache.Load with h. A non-nil error means the task was not started.
type Spawner func(h *Handle) error

// Options configures a Cache. Zero values use defaults.
type Options struct {
	HTTPClient    *http.Client
	Boundary      Boundary
	Spawn         Spawner
	TTL           time.Duration
	MaxDimension  int
	MaxConcurrent int64
	Now           func() time.Time
}

// Cache deduplicates image fetches by key and evicts idle entries.
type Cache struct {
	mu      sync.Mutex
	entries map[Key]*entry
	spawn   Spawner

	http     *http.Client
	boundary Boundary
	ttl      time.Duration
	maxDim   int
	sem      *semaphore.Weighted
	now      func() time.Time
	log      *logger.Logger
}

// New builds a Cache from opts.
func New(opts Options) *Cache {
	c := &Cache{
		entries:  make(map[Key]*entry),
		spawn:    opts.Spawn,
		http:     opts.HTTPClient,
		boundary: opts.Boundary,
		ttl:      opts.TTL,
		maxDim:   opts.MaxDimension,
		now:      opts.Now,
		log:      logger.Named("image"),
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: fetchTimeout}
	}
	if c.ttl <= 0 {
		c.ttl = defaultTTL
	}
	if c.maxDim <= 0 {
		c.maxDim = defaultMaxDimension
	}
	if c.now == nil {
		c.now = time.Now
	}
	maxConcurrent := opts.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = defaultMaxConcurrent
	}
	c.sem = semaphore.NewWeighted(maxConcurrent)
	return c
}

// SetSpawner replaces the spawner. The engine installs itself here once it
// is running.
func (c *Cache) SetSpawner(s Spawner) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.spawn = s
}

// Get returns a handle for key, creating the entry and spawning its single
// fetch task on first request. Concurrent callers for the same key all receive
// handles to the winner's entry.
func (c *Cache) Get(key Key) *Handle {
	now := c.now()

	c.mu.Lock()
	if e, ok := c.entries[key]; ok {
		e.touch(now)
		h := newHandle(e, c.now)
		c.mu.Unlock()
		return h
	}
	e := &entry{key: key}
	e.refs.Store(1) // table reference
	e.touch(now)
	c.entries[key] = e
	caller := newHandle(e, c.now)
	task := newHandle(e, c.now)
	spawn := c.spawn
	c.mu.Unlock()

	if spawn == nil {
		spawn = c.spawnLocal
	}
	if err := spawn(task); err != nil {
		c.log.Warn().Err(err).Str("key", string(key)).Msg("could not start image fetch")
		e.finish(Result{Status: Failed, Err: fmt.Sprintf("could not start download: %v", err)})
		task.Release()
	}
	return caller
}

func (c *Cache) spawnLocal(h *Handle) error {
	go c.Load(context.Background(), h)
	return nil
}

// Load is the fetch task for h's entry: download, decode, hand the pixels to
// the boundary, and store the outcome. Load consumes h. The stored Result is
// returned.
func (c *Cache) Load(ctx context.Context, h *Handle) Result {
	defer h.Release()
	key := h.Key()
	c.log.Debug().Str("key", string(key)).Msg("loading")

	if err := c.sem.Acquire(ctx, 1); err != nil {
		return c.fail(h, fmt.Sprintf("could not start download: %v", err))
	}
	img, err := c.fetch(ctx, key)
	c.sem.Release(1)
	if err != nil {
		return c.fail(h, err.Error())
	}

	img = fit(img, c.maxDim)
	if c.boundary == nil {
		return c.fail(h, "no renderer available")
	}
	artifact, err := c.boundary.CreateArtifact(ctx, img)
	if err != nil {
		return c.fail(h, fmt.Sprintf("could not create image: %v", err))
	}

	r := Result{Status: Loaded, Artifact: artifact}
	if !h.e.finish(r) {
		// Another writer got there first; the artifact has no owner.
		c.boundary.ReleaseArtifact(artifact)
		return h.e.load()
	}
	h.e.touch(c.now())
	c.log.Debug().Str("key", string(key)).Uint64("artifact", uint64(artifact)).Msg("loaded")
	return r
}

func (c *Cache) fail(h *Handle, msg string) Result {
	c.log.Warn().Str("key", string(h.Key())).Str("error", msg).Msg("image load failed")
	h.e.finish(Result{Status: Failed, Err: msg})
	return h.e.load()
}

func (c *Cache) fetch(ctx context.Context, key Key) (image.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, string(key), nil)
	if err != nil {
		return nil, fmt.Errorf("could not connect to server: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("could not connect to server: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("could not download image: server returned status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return nil, fmt.Errorf("could not download image: %w", err)
	}
	if len(body) > maxImageBytes {
		return nil, errors.New("could not download image: payload too large")
	}
	c.log.Debug().Str("key", string(key)).Int("bytes", len(body)).Msg("downloaded")

	cfg, _, err := image.DecodeConfig(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("could not decode image: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > maxImagePixels {
		return nil, fmt.Errorf("could not decode image: %dx%d is too large", cfg.Width, cfg.Height)
	}

	img, format, err := image.Decode(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("could not decode image: %w", err)
	}
	b := img.Bounds()
	c.log.Debug().Str("key", string(key)).Str("format", format).Int("width", b.Dx()).Int("height", b.Dy()).Msg("decoded")
	return img, nil
}

// fit scales img down so neither side exceeds maxDim, keeping the aspect ratio.
func fit(img image.Image, maxDim int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxDim && h <= maxDim {
		return img
	}
	if w >= h {
		h = max(1, h*maxDim/w)
		w = maxDim
	} else {
		w = max(1, w*maxDim/h)
		h = maxDim
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}

// Sweep evicts entries idle for longer than the staleness window whose only
// reference is the table's own. Entries still held elsewhere are skipped and
// retried on a later sweep. Loaded artifacts of evicted entries are released
// through the boundary. It returns the number of evicted entries.
func (c *Cache) Sweep(now time.Time) int {
	var released []Artifact
	evicted := 0

	c.mu.Lock()
	for key, e := range c.entries {
		if e.idle(now) <= c.ttl {
			continue
		}
		if e.refs.Load() != 1 {
			c.log.Debug().Str("key", string(key)).Msg("could not clean up image; in use somewhere")
			continue
		}
		delete(c.entries, key)
		evicted++
		if r := e.load(); r.Status == Loaded {
			released = append(released, r.Artifact)
		}
	}
	c.mu.Unlock()

	if c.boundary != nil {
		for _, a := range released {
			c.log.Debug().Uint64("artifact", uint64(a)).Msg("releasing")
			c.boundary.ReleaseArtifact(a)
		}
	}
	return evicted
}

// Len returns the number of entries in the table.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
