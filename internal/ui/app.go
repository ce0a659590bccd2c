package ui

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/perch/internal/engine"
	"github.com/five82/perch/internal/imagecache"
	"github.com/five82/perch/internal/logger"
	"github.com/five82/perch/internal/prefs"
	"github.com/five82/perch/internal/twitter"
)

// Engine is the command surface of the background engine. *engine.Handle
// satisfies it.
type Engine interface {
	OpenLogin()
	SubmitPin(pin string)
	LoadInitial()
	LoadOlder()
	LoadNewer()
	SetLatestSeen(id uint64)
}

var _ Engine = (*engine.Handle)(nil)

// Options configures the UI.
type Options struct {
	Engine    Engine
	Cache     *imagecache.Cache
	Prefs     prefs.Prefs
	PrefsPath string
	Version   string
}

// phase is the screen the model shows.
type phase int

const (
	phaseLoggedOut phase = iota
	phaseAwaitingPin
	phaseLoggingIn
	phaseLoggedIn
	phaseDisconnected
)

// Model is the root application state for Bubble Tea.
type Model struct {
	engine    Engine
	cache     *imagecache.Cache
	textures  *textures
	prefs     prefs.Prefs
	prefsPath string
	version   string
	log       *logger.Logger

	theme    Theme
	keys     keyMap
	help     help.Model
	showHelp bool
	width    int
	height   int
	ready    bool

	phase    phase
	identity twitter.Identity
	authURL  string
	pin      textinput.Model
	spinner  spinner.Model
	status   string
	update   string

	// items is newest first; selected indexes into it, -1 for none.
	items      []twitter.Tweet
	selected   int
	latestSeen uint64
	loading    bool

	detail viewport.Model
	images map[imagecache.Key]*imagecache.Handle
}

// New creates the root model.
func New(opts Options) Model {
	pin := textinput.New()
	pin.Placeholder = "PIN"
	pin.CharLimit = 16
	pin.Width = 16

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	p := opts.Prefs
	if p.Theme == "" {
		p = prefs.Default()
	}

	return Model{
		engine:    opts.Engine,
		cache:     opts.Cache,
		textures:  newTextures(textureColumns),
		prefs:     p,
		prefsPath: opts.PrefsPath,
		version:   opts.Version,
		log:       logger.Named("ui"),
		theme:     GetTheme(p.Theme),
		keys:      defaultKeyMap(),
		help:      help.New(),
		pin:       pin,
		spinner:   sp,
		selected:  -1,
		images:    make(map[imagecache.Key]*imagecache.Handle),
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(tea.EnterAltScreen, m.spinner.Tick)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.resizeDetail()
		m.ready = true
		m.refreshDetail()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case createArtifactMsg:
		msg.reply <- m.textures.add(msg.img)
		return m, nil

	case releaseArtifactMsg:
		m.textures.release(msg.artifact)
		return m, nil

	case engine.Response:
		return m.handleResponse(msg)
	}
	return m, nil
}

func (m Model) handleResponse(resp engine.Response) (tea.Model, tea.Cmd) {
	switch resp := resp.(type) {
	case engine.WakeOnly:
		m.refreshDetail()

	case engine.Disconnected:
		m.phase = phaseDisconnected
		m.status = "Lost connection to background"
		m.releaseImages()

	case engine.LoggingIn:
		m.phase = phaseLoggingIn
		m.status = ""

	case engine.AwaitingPin:
		m.phase = phaseAwaitingPin
		m.authURL = resp.URL
		m.status = ""
		m.pin.SetValue("")
		return m, m.pin.Focus()

	case engine.LoggedIn:
		m.phase = phaseLoggedIn
		m.identity = resp.Identity
		m.authURL = ""
		m.status = ""
		m.pin.Blur()
		m.loading = true
		m.engine.LoadInitial()

	case engine.Failed:
		m.status = resp.Message
		m.loading = false
		if m.phase == phaseLoggingIn {
			if m.authURL != "" {
				m.phase = phaseAwaitingPin
				m.pin.SetValue("")
				return m, m.pin.Focus()
			}
			m.phase = phaseLoggedOut
		}

	case engine.FeedPage:
		m.loading = false
		m.setItems(resp.Items, resp.LatestSeen)

	case engine.ImageReady:
		m.log.Debug().Str("key", string(resp.Key)).Str("result", resp.Result.String()).Msg("image ready")
		m.refreshDetail()

	case engine.UpdateAvailable:
		m.update = resp.Version
	}
	return m, nil
}

// setItems replaces the feed. The selection follows the previously selected
// tweet; with no selection it lands on the latest seen tweet, or the newest
// one when that is unknown.
func (m *Model) setItems(ascending []twitter.Tweet, latestSeen uint64) {
	var selectedID uint64
	if m.selected >= 0 && m.selected < len(m.items) {
		selectedID = m.items[m.selected].ID
	}
	if latestSeen > m.latestSeen {
		m.latestSeen = latestSeen
	}

	m.items = slices.Clone(ascending)
	slices.Reverse(m.items)

	target := selectedID
	if target == 0 {
		target = m.latestSeen
	}
	idx := m.indexOf(target)
	if idx < 0 && len(m.items) > 0 {
		idx = 0
	}
	m.selectIndex(idx)
}

func (m Model) indexOf(id uint64) int {
	if id == 0 {
		return -1
	}
	for i, tw := range m.items {
		if tw.ID == id {
			return i
		}
	}
	return -1
}

// selectIndex moves the selection and marks the tweet as seen when it is newer
// than anything seen so far.
func (m *Model) selectIndex(idx int) {
	if idx < 0 || idx >= len(m.items) {
		m.selected = -1
		m.holdImages(nil)
		m.refreshDetail()
		return
	}
	m.selected = idx
	tw := m.items[idx]
	if tw.ID > m.latestSeen {
		m.latestSeen = tw.ID
		if m.engine != nil {
			m.engine.SetLatestSeen(tw.ID)
		}
	}
	m.holdImages(&tw)
	m.detail.GotoTop()
	m.refreshDetail()
}

func (m Model) selectedTweet() (twitter.Tweet, bool) {
	if m.selected < 0 || m.selected >= len(m.items) {
		return twitter.Tweet{}, false
	}
	return m.items[m.selected], true
}

// holdImages keeps cache handles for every image of tw and drops the rest.
func (m *Model) holdImages(tw *twitter.Tweet) {
	want := map[imagecache.Key]bool{}
	if tw != nil {
		for _, k := range imageKeys(*tw) {
			want[k] = true
		}
	}
	for k, h := range m.images {
		if !want[k] {
			h.Release()
			delete(m.images, k)
		}
	}
	if m.cache == nil {
		return
	}
	for k := range want {
		if _, ok := m.images[k]; !ok {
			m.images[k] = m.cache.Get(k)
		}
	}
}

func (m *Model) releaseImages() {
	for k, h := range m.images {
		h.Release()
		delete(m.images, k)
	}
}

// imageKeys lists the avatar and photo keys of tw and its retweeted status.
func imageKeys(tw twitter.Tweet) []imagecache.Key {
	var keys []imagecache.Key
	add := func(t twitter.Tweet) {
		if t.User != nil && t.User.ProfileImageURLHTTPS != "" {
			keys = append(keys, imagecache.HTTPS(t.User.ProfileImageURLHTTPS))
		}
		for _, media := range t.MediaList() {
			if media.MediaURLHTTPS != "" {
				keys = append(keys, imagecache.HTTPS(media.MediaURLHTTPS))
			}
		}
	}
	add(tw)
	if tw.RetweetedStatus != nil {
		add(*tw.RetweetedStatus)
	}
	return keys
}

// handleKey processes keyboard input.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.showHelp {
		m.showHelp = false
		return m, nil
	}

	if m.phase == phaseAwaitingPin {
		return m.handlePinKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
		return m, nil
	case key.Matches(msg, m.keys.CycleTheme):
		m.cycleTheme()
		return m, nil
	}

	switch m.phase {
	case phaseLoggedOut:
		if key.Matches(msg, m.keys.Login) {
			m.status = ""
			m.engine.OpenLogin()
		}
	case phaseLoggedIn:
		return m.handleFeedKey(msg)
	}
	return m, nil
}

func (m Model) handlePinKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "esc":
		m.pin.Blur()
		m.phase = phaseLoggedOut
		return m, nil
	case "enter":
		pin := m.pin.Value()
		if pin == "" {
			return m, nil
		}
		m.engine.SubmitPin(pin)
		m.pin.SetValue("")
		return m, nil
	}
	var cmd tea.Cmd
	m.pin, cmd = m.pin.Update(msg)
	return m, cmd
}

func (m Model) handleFeedKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Up):
		if m.selected > 0 {
			m.selectIndex(m.selected - 1)
		} else if m.selected < 0 && len(m.items) > 0 {
			m.selectIndex(0)
		}
	case key.Matches(msg, m.keys.Down):
		switch {
		case m.selected < 0 && len(m.items) > 0:
			m.selectIndex(0)
		case m.selected < len(m.items)-1:
			m.selectIndex(m.selected + 1)
		default:
			m.requestOlder()
		}
	case key.Matches(msg, m.keys.Top):
		if len(m.items) > 0 {
			m.selectIndex(0)
		}
	case key.Matches(msg, m.keys.Refresh):
		m.loading = true
		if len(m.items) == 0 {
			m.engine.LoadInitial()
		} else {
			m.engine.LoadNewer()
		}
	case key.Matches(msg, m.keys.Older):
		m.requestOlder()
	case key.Matches(msg, m.keys.Cancel):
		m.status = ""
		m.selectIndex(-1)
	case key.Matches(msg, m.keys.ScrollUp), key.Matches(msg, m.keys.ScrollDown):
		var cmd tea.Cmd
		m.detail, cmd = m.detail.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) requestOlder() {
	m.loading = true
	m.engine.LoadOlder()
}

func (m *Model) cycleTheme() {
	m.theme = GetTheme(NextTheme(m.theme.Name))
	m.prefs.Theme = m.theme.Name
	m.refreshDetail()
	if m.prefsPath == "" {
		return
	}
	if err := prefs.Save(m.prefsPath, m.prefs); err != nil {
		m.log.Warn().Err(err).Msg("could not save prefs")
	}
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	if m.showHelp {
		return m.renderHelp()
	}
	return m.renderMain()
}

// Run starts the Bubble Tea program attached to b and blocks until the user
// quits or ctx is cancelled.
func Run(ctx context.Context, b *Boundary, opts Options) error {
	defer b.Close()
	m := New(opts)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	b.attach(p)
	final, err := p.Run()
	if fm, ok := final.(Model); ok {
		fm.releaseImages()
	}
	if err != nil && !(errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil) {
		return fmt.Errorf("run ui: %w", err)
	}
	return nil
}
