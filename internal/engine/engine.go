package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/five82/perch/internal/auth"
	"github.com/five82/perch/internal/imagecache"
	"github.com/five82/perch/internal/logger"
	"github.com/five82/perch/internal/timeline"
	"github.com/five82/perch/internal/twitter"
)

const (
	defaultTick        = time.Second
	defaultUpdateEvery = time.Hour
	defaultPageSize    = 50
)

// Boundary delivers responses to the UI. A non-nil error means the UI is gone
// and stops the engine.
type Boundary interface {
	Deliver(Response) error
}

// Options wires an engine. Client and Boundary are required.
type Options struct {
	Client   twitter.API
	Boundary Boundary
	Settings Settings
	Cache    *imagecache.Cache

	// OpenURL launches the authorization page. Nil skips the launch; the URL
	// still reaches the UI through AwaitingPin.
	OpenURL func(string) error
	// CheckUpdate returns a newer released version, if any. Nil disables the
	// check.
	CheckUpdate func(context.Context) (string, bool)

	PageSize    int
	Tick        time.Duration
	UpdateEvery time.Duration
}

// Handle is the UI's side of a running engine. It is safe for concurrent use;
// every send is fire-and-forget and never blocks.
type Handle struct {
	mb   *mailbox
	done chan struct{}
	log  *logger.Logger
}

// Spawn starts the engine goroutine and returns its handle. The engine runs
// until ctx is cancelled, Close is called, or the boundary rejects a delivery.
// Its last response is Disconnected.
func Spawn(ctx context.Context, opts Options) *Handle {
	ctx, cancel := context.WithCancel(ctx)
	mb := newMailbox()
	h := &Handle{mb: mb, done: make(chan struct{}), log: logger.Named("engine")}

	r := &runner{
		ctx:         ctx,
		cancel:      cancel,
		opts:        opts,
		log:         h.log,
		mb:          mb,
		completions: make(chan func()),
		stopped:     h.done,
		settings:    &settings{store: opts.Settings},
	}
	if r.opts.PageSize <= 0 {
		r.opts.PageSize = defaultPageSize
	}
	if r.opts.Tick <= 0 {
		r.opts.Tick = defaultTick
	}
	if r.opts.UpdateEvery <= 0 {
		r.opts.UpdateEvery = defaultUpdateEvery
	}
	if opts.Settings != nil {
		cfg, err := opts.Settings.Load()
		if err != nil {
			r.log.Error().Err(err).Msg("could not load settings; starting logged out")
		} else {
			r.settings.cfg = cfg
		}
	}
	r.machine = auth.New(r.settings)

	if opts.Cache != nil {
		opts.Cache.SetSpawner(func(ih *imagecache.Handle) error {
			return mb.push(LoadImage{Key: ih.Key(), Handle: ih})
		})
	}

	go r.run()
	return h
}

// OpenLogin asks the engine to start a login attempt.
func (h *Handle) OpenLogin() { h.send(OpenLogin{}) }

// SubmitPin sends the PIN for the current attempt.
func (h *Handle) SubmitPin(pin string) { h.send(SubmitPin{PIN: pin}) }

// LoadInitial asks for the first timeline page.
func (h *Handle) LoadInitial() { h.send(LoadInitial{}) }

// LoadOlder asks for the page before the oldest held tweet.
func (h *Handle) LoadOlder() { h.send(LoadOlder{}) }

// LoadNewer asks for the page after the newest held tweet.
func (h *Handle) LoadNewer() { h.send(LoadNewer{}) }

// SetLatestSeen persists id as the latest-seen tweet.
func (h *Handle) SetLatestSeen(id uint64) { h.send(SetLatestSeen{ID: id}) }

// Send enqueues c. It fails only once the engine has stopped.
func (h *Handle) Send(c Command) error { return h.mb.push(c) }

// Close stops accepting commands. Queued commands are still processed before
// the engine sends Disconnected and exits.
func (h *Handle) Close() { h.mb.close() }

// Done is closed once the engine goroutine has exited.
func (h *Handle) Done() <-chan struct{} { return h.done }

func (h *Handle) send(c Command) {
	if err := h.mb.push(c); err != nil {
		h.log.Warn().Err(err).Str("command", fmt.Sprintf("%T", c)).Msg("could not send message to background")
	}
}

// runner owns all engine state. Every field below is only read or written on
// the run goroutine; helper goroutines hand results back through completions.
type runner struct {
	ctx    context.Context
	cancel context.CancelFunc
	opts   Options
	log    *logger.Logger

	mb          *mailbox
	completions chan func()
	stopped     chan struct{}
	running     bool

	settings    *settings
	machine     *auth.Machine
	pager       *timeline.Pager
	lastChecked time.Time
}

func (r *runner) run() {
	defer close(r.stopped)
	defer r.cancel()

	r.running = true
	r.log.Info().Msg("background engine started")
	r.resume()

	ticker := time.NewTicker(r.opts.Tick)
	defer ticker.Stop()

	for r.running {
		select {
		case <-r.ctx.Done():
			r.log.Info().Msg("context cancelled, exiting")
			r.running = false
		case <-r.mb.ready:
			cmds, open := r.mb.drain()
			for _, c := range cmds {
				r.handle(c)
			}
			if !open {
				r.log.Info().Msg("all handles closed, exiting")
				r.running = false
			}
		case fn := <-r.completions:
			fn()
		case now := <-ticker.C:
			r.tick(now)
		}
	}

	r.mb.close()
	r.cancel()
	r.discard()
	if err := r.opts.Boundary.Deliver(Disconnected{}); err != nil {
		r.log.Debug().Err(err).Msg("could not deliver disconnect")
	}
	r.log.Info().Msg("background engine stopped")
}

// discard settles image tasks that were queued but never run. The context is
// already cancelled, so Load fails their entries without touching the network.
func (r *runner) discard() {
	cmds, _ := r.mb.drain()
	for _, c := range cmds {
		li, ok := c.(LoadImage)
		if !ok {
			continue
		}
		if r.opts.Cache == nil {
			li.Handle.Release()
			continue
		}
		r.opts.Cache.Load(r.ctx, li.Handle)
	}
}

// send delivers resp. A delivery failure is terminal.
func (r *runner) send(resp Response) {
	if !r.running {
		return
	}
	if err := r.opts.Boundary.Deliver(resp); err != nil {
		r.log.Error().Err(err).Str("response", fmt.Sprintf("%T", resp)).Msg("could not reach ui, stopping")
		r.running = false
	}
}

// async runs call on a helper goroutine and then finish on the run goroutine.
func (r *runner) async(call func(ctx context.Context) func()) {
	go func() {
		finish := call(r.ctx)
		select {
		case r.completions <- finish:
		case <-r.stopped:
		}
	}()
}

func (r *runner) handle(c Command) {
	switch c := c.(type) {
	case OpenLogin:
		r.openLogin()
	case SubmitPin:
		r.submitPin(c.PIN)
	case LoadInitial:
		r.loadPage(twitter.ModeInitial)
	case LoadOlder:
		r.loadPage(twitter.ModeOlder)
	case LoadNewer:
		r.loadPage(twitter.ModeNewer)
	case LoadImage:
		r.loadImage(c)
	case SetLatestSeen:
		if err := r.settings.setLatestSeen(c.ID); err != nil {
			r.log.Error().Err(err).Uint64("id", c.ID).Msg("could not save latest seen")
		}
	default:
		r.log.Warn().Str("command", fmt.Sprintf("%T", c)).Msg("unknown command")
	}
}

func (r *runner) resume() {
	tok, ok := r.machine.BeginResume()
	if !ok {
		r.log.Info().Msg("no stored credential")
		return
	}
	r.send(LoggingIn{})
	r.async(func(ctx context.Context) func() {
		ident, err := r.opts.Client.Verify(ctx, tok)
		return func() {
			r.machine.Resumed(tok, ident, err)
			if err != nil {
				r.log.Warn().Err(err).Msg("could not resume session")
				r.send(Failed{Message: fmt.Sprintf("Could not resume session: %v", err)})
				return
			}
			r.loggedIn(ident)
		}
	})
}

func (r *runner) openLogin() {
	if err := r.machine.BeginLogin(); err != nil {
		r.log.Info().Err(err).Msg("open login")
		return
	}
	r.async(func(ctx context.Context) func() {
		grant, err := r.opts.Client.RequestGrant(ctx)
		var url string
		if err == nil {
			url, err = r.opts.Client.AuthorizeURL(grant)
		}
		return func() {
			r.machine.GrantIssued(grant, err)
			if err != nil {
				r.log.Warn().Err(err).Msg("could not start login")
				r.send(Failed{Message: fmt.Sprintf("Could not start login: %v", err)})
				return
			}
			r.log.Info().Str("grant", grant.ID.String()).Msg("authorizing")
			r.send(AwaitingPin{URL: url})
			if r.opts.OpenURL != nil {
				if err := r.opts.OpenURL(url); err != nil {
					r.log.Warn().Err(err).Msg("could not open browser")
				}
			}
		}
	})
}

func (r *runner) submitPin(pin string) {
	grant, err := r.machine.BeginPin()
	if err != nil {
		r.log.Info().Err(err).Msg("submit pin")
		return
	}
	r.send(LoggingIn{})
	r.async(func(ctx context.Context) func() {
		tok, ident, err := r.opts.Client.ExchangePIN(ctx, grant, pin)
		return func() {
			if perr := r.machine.PinExchanged(tok, ident, err); perr != nil {
				r.log.Error().Err(perr).Msg("could not save credential")
				r.send(Failed{Message: fmt.Sprintf("Could not save credentials: %v", perr)})
			}
			if err != nil {
				r.log.Warn().Err(err).Msg("pin exchange failed")
				r.send(Failed{Message: fmt.Sprintf("Could not log in: %v", err)})
				return
			}
			r.loggedIn(ident)
		}
	})
}

func (r *runner) loggedIn(ident twitter.Identity) {
	r.log.Info().Str("user", ident.ScreenName).Msg("logged in")
	r.pager = timeline.NewPager(r.settings.cfg.LatestSeenID, r.opts.PageSize)
	r.send(LoggedIn{Identity: ident})
}

func (r *runner) loadPage(mode twitter.Mode) {
	tok, ok := r.machine.Token()
	if !ok || r.pager == nil {
		r.log.Warn().Str("mode", mode.String()).Msg("timeline requested while logged out")
		return
	}
	pager := r.pager
	cur, err := pager.Begin()
	if errors.Is(err, timeline.ErrBusy) {
		r.log.Warn().Str("mode", mode.String()).Msg("timeline fetch already in flight")
		return
	}
	if err != nil {
		r.log.Error().Err(err).Str("mode", mode.String()).Msg("timeline fetch")
		return
	}
	r.async(func(ctx context.Context) func() {
		next, page, err := r.opts.Client.HomePage(ctx, tok, cur, mode, pager.PageSize())
		return func() {
			if err != nil {
				pager.Abort(cur)
				r.log.Warn().Err(err).Str("mode", mode.String()).Msg("timeline fetch failed")
				r.send(Failed{Message: fmt.Sprintf("Could not load timeline: %v", err)})
				return
			}
			items := pager.Complete(next, page)
			r.log.Debug().Str("mode", mode.String()).Int("page", len(page)).Int("total", len(items)).Msg("timeline page")
			r.send(FeedPage{Items: items, LatestSeen: r.settings.cfg.LatestSeenID})
		}
	})
}

func (r *runner) loadImage(c LoadImage) {
	if r.opts.Cache == nil {
		c.Handle.Release()
		return
	}
	r.async(func(ctx context.Context) func() {
		res := r.opts.Cache.Load(ctx, c.Handle)
		return func() {
			r.send(ImageReady{Key: c.Key, Result: res})
		}
	})
}

func (r *runner) tick(now time.Time) {
	r.send(WakeOnly{})
	if r.opts.Cache != nil {
		if n := r.opts.Cache.Sweep(now); n > 0 {
			r.log.Debug().Int("evicted", n).Msg("image sweep")
		}
	}
	if r.opts.CheckUpdate == nil || now.Sub(r.lastChecked) < r.opts.UpdateEvery {
		return
	}
	r.lastChecked = now
	r.async(func(ctx context.Context) func() {
		version, ok := r.opts.CheckUpdate(ctx)
		return func() {
			if ok {
				r.log.Info().Str("version", version).Msg("update available")
				r.send(UpdateAvailable{Version: version})
			}
		}
	})
}
