package engine

import (
	"github.com/five82/perch/internal/config"
	"github.com/five82/perch/internal/twitter"
)

// Settings loads and saves the persisted credential file. *config.Store
// satisfies it.
type Settings interface {
	Load() (config.Config, error)
	Save(config.Config) error
}

var _ Settings = (*config.Store)(nil)

// settings keeps the loaded config in memory and writes through on change.
// It is only touched from the engine goroutine.
type settings struct {
	store Settings
	cfg   config.Config
}

func (s *settings) StoredToken() (twitter.Token, bool) {
	return s.cfg.Token()
}

func (s *settings) StoreToken(tok twitter.Token) error {
	s.cfg.SetToken(tok)
	return s.save()
}

func (s *settings) setLatestSeen(id uint64) error {
	if s.cfg.LatestSeenID == id {
		return nil
	}
	s.cfg.LatestSeenID = id
	return s.save()
}

func (s *settings) save() error {
	if s.store == nil {
		return nil
	}
	return s.store.Save(s.cfg)
}
