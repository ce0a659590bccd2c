// Package auth drives the three-phase PIN login handshake.
//
// The Machine only records state; the remote calls are issued by the caller
// between a Begin* method and the matching completion method. That split lets
// the background engine run the calls off its loop goroutine while every state
// change still happens on that goroutine.
package auth

import (
	"errors"
	"fmt"

	"github.com/five82/perch/internal/twitter"
)

// State is the login phase.
type State int

const (
	LoggedOut State = iota
	Authorizing
	LoggedIn
)

func (s State) String() string {
	switch s {
	case Authorizing:
		return "authorizing"
	case LoggedIn:
		return "logged in"
	default:
		return "logged out"
	}
}

// ErrIgnored marks a request that does not apply to the current state. The
// caller logs it and sends nothing to the UI.
var ErrIgnored = errors.New("request ignored")

// Credentials persists the long-lived token.
type Credentials interface {
	StoredToken() (twitter.Token, bool)
	StoreToken(twitter.Token) error
}

// Machine is the login state machine. It is not safe for concurrent use.
type Machine struct {
	creds    Credentials
	state    State
	grant    twitter.Grant
	token    twitter.Token
	identity twitter.Identity
	pending  bool
}

// New returns a Machine in the LoggedOut state.
func New(creds Credentials) *Machine {
	return &Machine{creds: creds}
}

// State returns the current phase.
func (m *Machine) State() State { return m.state }

// Pending reports whether a remote call for this machine is in flight.
func (m *Machine) Pending() bool { return m.pending }

// Grant returns the grant of the current attempt while Authorizing.
func (m *Machine) Grant() (twitter.Grant, bool) {
	return m.grant, m.state == Authorizing
}

// Token returns the active credential while LoggedIn.
func (m *Machine) Token() (twitter.Token, bool) {
	return m.token, m.state == LoggedIn
}

// Identity returns the account while LoggedIn.
func (m *Machine) Identity() twitter.Identity { return m.identity }

// BeginResume returns the stored credential for silent re-authentication.
// ok is false when there is nothing to resume.
func (m *Machine) BeginResume() (twitter.Token, bool) {
	if m.state != LoggedOut || m.pending || m.creds == nil {
		return twitter.Token{}, false
	}
	tok, ok := m.creds.StoredToken()
	if !ok || !tok.Valid() {
		return twitter.Token{}, false
	}
	m.pending = true
	return tok, true
}

// Resumed completes BeginResume. A nil err enters LoggedIn without a PIN.
func (m *Machine) Resumed(tok twitter.Token, ident twitter.Identity, err error) {
	m.pending = false
	if err != nil {
		return
	}
	m.enterLoggedIn(tok, ident)
}

// BeginLogin starts a login attempt. A new attempt may replace one that is
// still Authorizing; it is ignored once logged in or while a call is in flight.
func (m *Machine) BeginLogin() error {
	if m.pending {
		return fmt.Errorf("%w: login call in flight", ErrIgnored)
	}
	if m.state == LoggedIn {
		return fmt.Errorf("%w: already logged in", ErrIgnored)
	}
	m.pending = true
	return nil
}

// GrantIssued completes BeginLogin. On error the state is unchanged.
func (m *Machine) GrantIssued(grant twitter.Grant, err error) {
	m.pending = false
	if err != nil {
		return
	}
	m.grant = grant
	m.state = Authorizing
}

// BeginPin returns the grant to exchange together with a PIN. Only valid while
// Authorizing with no call in flight.
func (m *Machine) BeginPin() (twitter.Grant, error) {
	if m.state != Authorizing {
		return twitter.Grant{}, fmt.Errorf("%w: not authorizing (%s)", ErrIgnored, m.state)
	}
	if m.pending {
		return twitter.Grant{}, fmt.Errorf("%w: pin exchange in flight", ErrIgnored)
	}
	m.pending = true
	return m.grant, nil
}

// PinExchanged completes BeginPin. On error the machine stays Authorizing so
// the same grant can take another PIN. On success the credential is persisted;
// a persistence failure is returned but the session is still logged in.
func (m *Machine) PinExchanged(tok twitter.Token, ident twitter.Identity, err error) error {
	m.pending = false
	if err != nil {
		return nil
	}
	m.enterLoggedIn(tok, ident)
	if m.creds == nil {
		return nil
	}
	if err := m.creds.StoreToken(tok); err != nil {
		return fmt.Errorf("persist credential: %w", err)
	}
	return nil
}

func (m *Machine) enterLoggedIn(tok twitter.Token, ident twitter.Identity) {
	m.state = LoggedIn
	m.token = tok
	m.identity = ident
	m.grant = twitter.Grant{}
}
