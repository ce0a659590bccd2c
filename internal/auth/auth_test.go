package auth

import (
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/five82/perch/internal/twitter"
)

type memCreds struct {
	token   twitter.Token
	has     bool
	saveErr error
	saves   int
}

func (m *memCreds) StoredToken() (twitter.Token, bool) { return m.token, m.has }

func (m *memCreds) StoreToken(t twitter.Token) error {
	m.saves++
	if m.saveErr != nil {
		return m.saveErr
	}
	m.token, m.has = t, true
	return nil
}

func TestPinOutsideAuthorizingIsIgnored(t *testing.T) {
	m := New(&memCreds{})
	if _, err := m.BeginPin(); !errors.Is(err, ErrIgnored) {
		t.Fatalf("BeginPin error = %v, want ErrIgnored", err)
	}
	if m.State() != LoggedOut || m.Pending() {
		t.Fatalf("state = %v pending = %v, want logged out and idle", m.State(), m.Pending())
	}
}

func TestGrantFailureStaysLoggedOut(t *testing.T) {
	m := New(&memCreds{})
	if err := m.BeginLogin(); err != nil {
		t.Fatalf("BeginLogin returned error: %v", err)
	}
	m.GrantIssued(twitter.Grant{}, errors.New("network down"))
	if m.State() != LoggedOut {
		t.Fatalf("state = %v, want logged out", m.State())
	}
	if m.Pending() {
		t.Fatalf("pending = true after completion")
	}
}

func TestFullPinFlowPersists(t *testing.T) {
	creds := &memCreds{}
	m := New(creds)

	if err := m.BeginLogin(); err != nil {
		t.Fatalf("BeginLogin returned error: %v", err)
	}
	if err := m.BeginLogin(); !errors.Is(err, ErrIgnored) {
		t.Fatalf("BeginLogin while pending = %v, want ErrIgnored", err)
	}
	grant := twitter.Grant{ID: uuid.New(), Token: "rt", Secret: "rs"}
	m.GrantIssued(grant, nil)
	if got, ok := m.Grant(); !ok || got != grant {
		t.Fatalf("Grant() = %#v, %v; want issued grant", got, ok)
	}

	// A rejected PIN keeps the grant for another attempt.
	g, err := m.BeginPin()
	if err != nil {
		t.Fatalf("BeginPin returned error: %v", err)
	}
	if err := m.PinExchanged(twitter.Token{}, twitter.Identity{}, errors.New("bad pin")); err != nil {
		t.Fatalf("PinExchanged returned error: %v", err)
	}
	if m.State() != Authorizing {
		t.Fatalf("state = %v, want authorizing after bad pin", m.State())
	}
	if g2, err := m.BeginPin(); err != nil || g2 != g {
		t.Fatalf("BeginPin retry = %#v, %v; want same grant", g2, err)
	}

	tok := twitter.Token{Key: "k", Secret: "s"}
	if err := m.PinExchanged(tok, twitter.Identity{ID: 1, Name: "n"}, nil); err != nil {
		t.Fatalf("PinExchanged returned error: %v", err)
	}
	if m.State() != LoggedIn || m.Identity().ID != 1 {
		t.Fatalf("state = %v identity = %#v, want logged in as 1", m.State(), m.Identity())
	}
	if !creds.has || creds.token != tok {
		t.Fatalf("stored token = %#v, want %#v", creds.token, tok)
	}
	if err := m.BeginLogin(); !errors.Is(err, ErrIgnored) {
		t.Fatalf("BeginLogin when logged in = %v, want ErrIgnored", err)
	}
}

func TestPersistFailureStillLogsIn(t *testing.T) {
	m := New(&memCreds{saveErr: errors.New("disk full")})
	_ = m.BeginLogin()
	m.GrantIssued(twitter.Grant{Token: "rt"}, nil)
	_, _ = m.BeginPin()

	if err := m.PinExchanged(twitter.Token{Bearer: "b"}, twitter.Identity{}, nil); err == nil {
		t.Fatalf("PinExchanged returned nil error, want persist error")
	}
	if m.State() != LoggedIn {
		t.Fatalf("state = %v, want logged in", m.State())
	}
}

func TestResumeFromStoredToken(t *testing.T) {
	creds := &memCreds{token: twitter.Token{Key: "k", Secret: "s"}, has: true}
	m := New(creds)

	tok, ok := m.BeginResume()
	if !ok || tok.Key != "k" {
		t.Fatalf("BeginResume = %#v, %v; want stored token", tok, ok)
	}
	m.Resumed(tok, twitter.Identity{ID: 9}, nil)
	if got, ok := m.Token(); !ok || got != tok {
		t.Fatalf("Token() = %#v, %v; want resumed token", got, ok)
	}
	if creds.saves != 0 {
		t.Fatalf("saves = %d, want 0 on resume", creds.saves)
	}
}

func TestResumeWithoutTokenOrAfterFailure(t *testing.T) {
	m := New(&memCreds{})
	if _, ok := m.BeginResume(); ok {
		t.Fatalf("BeginResume ok with no stored token")
	}

	m = New(&memCreds{token: twitter.Token{Bearer: "b"}, has: true})
	tok, _ := m.BeginResume()
	m.Resumed(tok, twitter.Identity{}, errors.New("revoked"))
	if m.State() != LoggedOut || m.Pending() {
		t.Fatalf("state = %v pending = %v, want logged out and idle", m.State(), m.Pending())
	}
}
