package engine

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/five82/perch/internal/config"
	"github.com/five82/perch/internal/imagecache"
	"github.com/five82/perch/internal/twitter"
)

const waitFor = 2 * time.Second

type recorder struct {
	ch   chan Response
	fail atomic.Bool
}

func newRecorder() *recorder { return &recorder{ch: make(chan Response, 256)} }

func (r *recorder) Deliver(resp Response) error {
	if r.fail.Load() {
		return errors.New("ui closed")
	}
	select {
	case r.ch <- resp:
	default:
		if _, ok := resp.(WakeOnly); !ok {
			return errors.New("recorder full")
		}
	}
	return nil
}

// next returns the next response that is not WakeOnly.
func (r *recorder) next(t *testing.T) Response {
	t.Helper()
	timeout := time.After(waitFor)
	for {
		select {
		case resp := <-r.ch:
			if _, ok := resp.(WakeOnly); ok {
				continue
			}
			return resp
		case <-timeout:
			t.Fatalf("no response within %v", waitFor)
			return nil
		}
	}
}

func expect[T Response](t *testing.T, r *recorder) T {
	t.Helper()
	resp := r.next(t)
	got, ok := resp.(T)
	if !ok {
		var want T
		t.Fatalf("response = %#v, want %T", resp, want)
	}
	return got
}

// rest closes h and returns every non-wake response up to and including
// Disconnected.
func rest(t *testing.T, h *Handle, r *recorder) []Response {
	t.Helper()
	h.Close()
	var out []Response
	for {
		resp := r.next(t)
		out = append(out, resp)
		if _, ok := resp.(Disconnected); ok {
			break
		}
	}
	select {
	case <-h.Done():
	case <-time.After(waitFor):
		t.Fatalf("engine did not exit")
	}
	return out
}

type memSettings struct {
	mu    sync.Mutex
	cfg   config.Config
	saves chan config.Config
}

func newMemSettings(cfg config.Config) *memSettings {
	return &memSettings{cfg: cfg, saves: make(chan config.Config, 16)}
}

func (s *memSettings) Load() (config.Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg, nil
}

func (s *memSettings) Save(cfg config.Config) error {
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
	s.saves <- cfg
	return nil
}

func (s *memSettings) waitSave(t *testing.T) config.Config {
	t.Helper()
	select {
	case cfg := <-s.saves:
		return cfg
	case <-time.After(waitFor):
		t.Fatalf("settings were not saved")
		return config.Config{}
	}
}

type fakeAPI struct {
	mu        sync.Mutex
	grantErr  error
	verifyErr error
	pinToken  twitter.Token
	pages     [][]twitter.Tweet
	homeCalls int
	modes     []twitter.Mode
	gate      chan struct{}
	entered   chan struct{}
}

var _ twitter.API = (*fakeAPI)(nil)

var alice = twitter.Identity{ID: 7, Name: "Alice", ScreenName: "alice"}

func (f *fakeAPI) RequestGrant(context.Context) (twitter.Grant, error) {
	if f.grantErr != nil {
		return twitter.Grant{}, f.grantErr
	}
	return twitter.Grant{ID: uuid.New(), Token: "req", Secret: "reqsecret"}, nil
}

func (f *fakeAPI) AuthorizeURL(g twitter.Grant) (string, error) {
	return "https://example.test/authorize?oauth_token=" + g.Token, nil
}

func (f *fakeAPI) ExchangePIN(_ context.Context, _ twitter.Grant, pin string) (twitter.Token, twitter.Identity, error) {
	if pin != "1234" {
		return twitter.Token{}, twitter.Identity{}, errors.New("bad pin")
	}
	return f.pinToken, alice, nil
}

func (f *fakeAPI) Verify(context.Context, twitter.Token) (twitter.Identity, error) {
	if f.verifyErr != nil {
		return twitter.Identity{}, f.verifyErr
	}
	return alice, nil
}

func (f *fakeAPI) HomePage(ctx context.Context, _ twitter.Token, cur twitter.Cursor, mode twitter.Mode, _ int) (twitter.Cursor, []twitter.Tweet, error) {
	f.mu.Lock()
	f.homeCalls++
	f.modes = append(f.modes, mode)
	var page []twitter.Tweet
	if len(f.pages) > 0 {
		page, f.pages = f.pages[0], f.pages[1:]
	}
	gate, entered := f.gate, f.entered
	f.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return cur, nil, ctx.Err()
		}
	}
	if page == nil {
		return cur, nil, errors.New("api home_timeline returned status 503")
	}
	return cur, page, nil
}

func (f *fakeAPI) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.homeCalls
}

func tweets(ids ...uint64) []twitter.Tweet {
	out := make([]twitter.Tweet, len(ids))
	for i, id := range ids {
		out[i] = twitter.Tweet{ID: id}
	}
	return out
}

func ids(items []twitter.Tweet) []uint64 {
	out := make([]uint64, len(items))
	for i, tw := range items {
		out[i] = tw.ID
	}
	return out
}

func equalIDs(a, b []uint64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func spawn(t *testing.T, api twitter.API, settings Settings, rec *recorder, mutate ...func(*Options)) *Handle {
	t.Helper()
	opts := Options{
		Client:   api,
		Boundary: rec,
		Settings: settings,
		Tick:     time.Hour,
	}
	for _, m := range mutate {
		m(&opts)
	}
	h := Spawn(context.Background(), opts)
	t.Cleanup(func() {
		h.Close()
		<-h.Done()
	})
	return h
}

var storedToken = config.Config{AccessKey: "key", AccessSecret: "secret"}

func TestEngine_SubmitPinWhileLoggedOutIsIgnored(t *testing.T) {
	rec := newRecorder()
	h := spawn(t, &fakeAPI{}, newMemSettings(config.Config{}), rec)
	h.SubmitPin("1234")

	got := rest(t, h, rec)
	if len(got) != 1 {
		t.Fatalf("responses = %#v, want only Disconnected", got)
	}
}

func TestEngine_OpenLoginFailureStaysLoggedOut(t *testing.T) {
	rec := newRecorder()
	api := &fakeAPI{grantErr: errors.New("could not connect to server")}
	h := spawn(t, api, newMemSettings(config.Config{}), rec)

	h.OpenLogin()
	if f := expect[Failed](t, rec); f.Message == "" {
		t.Fatalf("Failed message is empty")
	}

	// Still logged out, so a PIN is ignored.
	h.SubmitPin("1234")
	got := rest(t, h, rec)
	if len(got) != 1 {
		t.Fatalf("responses after failed login = %#v, want only Disconnected", got)
	}
}

func TestEngine_PinLoginPersistsAndResumes(t *testing.T) {
	rec := newRecorder()
	settings := newMemSettings(config.Config{})
	api := &fakeAPI{pinToken: twitter.Token{Key: "acc", Secret: "accsecret"}}
	var opened []string
	h := spawn(t, api, settings, rec, func(o *Options) {
		o.OpenURL = func(u string) error {
			opened = append(opened, u)
			return nil
		}
	})

	h.OpenLogin()
	awaiting := expect[AwaitingPin](t, rec)
	if awaiting.URL == "" {
		t.Fatalf("AwaitingPin URL is empty")
	}

	h.SubmitPin("0000")
	expect[LoggingIn](t, rec)
	expect[Failed](t, rec)

	h.SubmitPin("1234")
	expect[LoggingIn](t, rec)
	saved := settings.waitSave(t)
	if saved.AccessKey != "acc" || saved.AccessSecret != "accsecret" {
		t.Fatalf("saved = %+v, want access pair", saved)
	}
	if got := expect[LoggedIn](t, rec); got.Identity != alice {
		t.Fatalf("identity = %+v, want %+v", got.Identity, alice)
	}
	rest(t, h, rec)
	if len(opened) != 1 || opened[0] != awaiting.URL {
		t.Fatalf("opened = %v, want [%s]", opened, awaiting.URL)
	}

	// A fresh engine resumes without a PIN.
	rec2 := newRecorder()
	h2 := spawn(t, api, settings, rec2)
	expect[LoggingIn](t, rec2)
	expect[LoggedIn](t, rec2)
	rest(t, h2, rec2)
}

func TestEngine_ResumeFailureReportsAndStaysLoggedOut(t *testing.T) {
	rec := newRecorder()
	api := &fakeAPI{verifyErr: errors.New("api verify_credentials returned status 401")}
	h := spawn(t, api, newMemSettings(storedToken), rec)

	expect[LoggingIn](t, rec)
	expect[Failed](t, rec)

	h.LoadInitial()
	rest(t, h, rec)
	if api.calls() != 0 {
		t.Fatalf("home calls = %d, want 0 while logged out", api.calls())
	}
}

func TestEngine_FeedMergesPages(t *testing.T) {
	rec := newRecorder()
	api := &fakeAPI{pages: [][]twitter.Tweet{tweets(5, 3, 8), tweets(10, 5)}}
	h := spawn(t, api, newMemSettings(storedToken), rec)
	expect[LoggingIn](t, rec)
	expect[LoggedIn](t, rec)

	h.LoadInitial()
	page := expect[FeedPage](t, rec)
	if want := []uint64{3, 5, 8}; !equalIDs(ids(page.Items), want) {
		t.Fatalf("first page = %v, want %v", ids(page.Items), want)
	}

	h.LoadNewer()
	page = expect[FeedPage](t, rec)
	if want := []uint64{3, 5, 8, 10}; !equalIDs(ids(page.Items), want) {
		t.Fatalf("second page = %v, want %v", ids(page.Items), want)
	}

	// The API has no more pages; the failure leaves the sequence alone.
	h.LoadOlder()
	expect[Failed](t, rec)
	rest(t, h, rec)

	api.mu.Lock()
	defer api.mu.Unlock()
	want := []twitter.Mode{twitter.ModeInitial, twitter.ModeNewer, twitter.ModeOlder}
	if len(api.modes) != len(want) {
		t.Fatalf("modes = %v, want %v", api.modes, want)
	}
	for i := range want {
		if api.modes[i] != want[i] {
			t.Fatalf("modes = %v, want %v", api.modes, want)
		}
	}
}

func TestEngine_RejectsFetchWhileBusy(t *testing.T) {
	rec := newRecorder()
	settings := newMemSettings(storedToken)
	api := &fakeAPI{
		pages:   [][]twitter.Tweet{tweets(1), tweets(2)},
		gate:    make(chan struct{}),
		entered: make(chan struct{}, 4),
	}
	h := spawn(t, api, settings, rec)
	expect[LoggingIn](t, rec)
	expect[LoggedIn](t, rec)

	h.LoadInitial()
	select {
	case <-api.entered:
	case <-time.After(waitFor):
		t.Fatalf("first fetch did not start")
	}

	// Commands run in order, so once the save lands LoadOlder was handled.
	h.LoadOlder()
	h.SetLatestSeen(1)
	settings.waitSave(t)
	close(api.gate)

	page := expect[FeedPage](t, rec)
	if !equalIDs(ids(page.Items), []uint64{1}) {
		t.Fatalf("page = %v, want [1]", ids(page.Items))
	}
	rest(t, h, rec)
	if api.calls() != 1 {
		t.Fatalf("home calls = %d, want 1", api.calls())
	}
}

func TestEngine_SetLatestSeenPersistsAndSeedsFeed(t *testing.T) {
	rec := newRecorder()
	settings := newMemSettings(storedToken)
	api := &fakeAPI{pages: [][]twitter.Tweet{tweets(40, 41)}}
	h := spawn(t, api, settings, rec)
	expect[LoggingIn](t, rec)
	expect[LoggedIn](t, rec)

	h.SetLatestSeen(41)
	if saved := settings.waitSave(t); saved.LatestSeenID != 41 || saved.AccessKey != "key" {
		t.Fatalf("saved = %+v, want latest 41 with credential kept", saved)
	}

	h.LoadInitial()
	if page := expect[FeedPage](t, rec); page.LatestSeen != 41 {
		t.Fatalf("LatestSeen = %d, want 41", page.LatestSeen)
	}
	rest(t, h, rec)
}

func TestEngine_DeliveryFailureStops(t *testing.T) {
	rec := newRecorder()
	rec.fail.Store(true)
	h := Spawn(context.Background(), Options{
		Client:   &fakeAPI{},
		Boundary: rec,
		Settings: newMemSettings(storedToken),
		Tick:     time.Hour,
	})

	select {
	case <-h.Done():
	case <-time.After(waitFor):
		t.Fatalf("engine kept running after delivery failure")
	}
	if err := h.Send(LoadInitial{}); !errors.Is(err, ErrStopped) {
		t.Fatalf("Send after stop = %v, want ErrStopped", err)
	}
}

func TestEngine_ContextCancelDisconnects(t *testing.T) {
	rec := newRecorder()
	ctx, cancel := context.WithCancel(context.Background())
	h := Spawn(ctx, Options{Client: &fakeAPI{}, Boundary: rec, Tick: time.Hour})
	cancel()

	expect[Disconnected](t, rec)
	select {
	case <-h.Done():
	case <-time.After(waitFor):
		t.Fatalf("engine did not exit after cancel")
	}
}

func TestEngine_TickWakesAndReportsUpdate(t *testing.T) {
	rec := newRecorder()
	var checks atomic.Int32
	h := spawn(t, &fakeAPI{}, nil, rec, func(o *Options) {
		o.Tick = 10 * time.Millisecond
		o.CheckUpdate = func(context.Context) (string, bool) {
			checks.Add(1)
			return "v9.9.9", true
		}
	})

	select {
	case resp := <-rec.ch:
		if _, ok := resp.(WakeOnly); !ok {
			t.Fatalf("first response = %#v, want WakeOnly", resp)
		}
	case <-time.After(waitFor):
		t.Fatalf("no tick")
	}
	if got := expect[UpdateAvailable](t, rec); got.Version != "v9.9.9" {
		t.Fatalf("version = %q, want v9.9.9", got.Version)
	}
	rest(t, h, rec)
	if n := checks.Load(); n != 1 {
		t.Fatalf("update checks = %d, want 1 within the hour", n)
	}
}

type countingBoundary struct {
	next atomic.Uint64
}

func (b *countingBoundary) CreateArtifact(context.Context, image.Image) (imagecache.Artifact, error) {
	return imagecache.Artifact(b.next.Add(1)), nil
}

func (b *countingBoundary) ReleaseArtifact(imagecache.Artifact) {}

func TestEngine_LoadsImagesForCache(t *testing.T) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 2, 2))); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(buf.Bytes())
	}))
	t.Cleanup(server.Close)

	rec := newRecorder()
	cache := imagecache.New(imagecache.Options{Boundary: &countingBoundary{}})
	h := spawn(t, &fakeAPI{}, nil, rec, func(o *Options) { o.Cache = cache })

	key := imagecache.HTTPS(server.URL + "/avatar.png")
	handle := cache.Get(key)
	defer handle.Release()

	ready := expect[ImageReady](t, rec)
	if ready.Key != key || ready.Result.Status != imagecache.Loaded {
		t.Fatalf("ImageReady = %+v, want loaded %s", ready, key)
	}
	if got := handle.Result(); got != ready.Result {
		t.Fatalf("handle result = %v, want %v", got, ready.Result)
	}
	rest(t, h, rec)

	// Once stopped, new entries fail instead of waiting forever.
	late := cache.Get(imagecache.HTTPS(server.URL + "/late.png"))
	defer late.Release()
	if r := late.Result(); r.Status != imagecache.Failed {
		t.Fatalf("late result = %v, want failed", r)
	}
}
