package records

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/hyperengineering/gatelog/model"
)

// SettingsSlot holds the settings singleton and notifies subscribers when
// it changes.
type SettingsSlot struct {
	store *Store

	subMu  sync.Mutex
	subs   map[int]func(model.Settings)
	nextID int
}

// Get returns the stored settings, or model.DefaultSettings when nothing
// has been saved.
func (s *SettingsSlot) Get() (model.Settings, error) {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	return s.load()
}

// Save stores settings as a local edit: synced is cleared and updated_at
// refreshed. Subscribers are notified.
func (s *SettingsSlot) Save(settings model.Settings) (model.Settings, error) {
	s.store.mu.Lock()
	settings.Synced = false
	settings.UpdatedAt = s.store.now()
	err := s.save(settings)
	s.store.mu.Unlock()

	if err != nil {
		return model.Settings{}, err
	}
	s.publish(settings)
	return settings, nil
}

// Replace stores settings exactly as given. Subscribers are notified.
func (s *SettingsSlot) Replace(settings model.Settings) error {
	s.store.mu.Lock()
	err := s.save(settings)
	s.store.mu.Unlock()

	if err != nil {
		return err
	}
	s.publish(settings)
	return nil
}

// ReplaceIfNewer replaces the local settings with remote, marked synced,
// only when remote.UpdatedAt is strictly after the local updated_at. It
// reports whether the replacement happened.
func (s *SettingsSlot) ReplaceIfNewer(remote model.Settings) (bool, error) {
	s.store.mu.Lock()
	local, err := s.load()
	if err != nil {
		s.store.mu.Unlock()
		return false, err
	}
	if !remote.UpdatedAt.After(local.UpdatedAt) {
		s.store.mu.Unlock()
		return false, nil
	}
	remote.Synced = true
	err = s.save(remote)
	s.store.mu.Unlock()

	if err != nil {
		return false, err
	}
	s.publish(remote)
	return true, nil
}

// MarkSynced sets synced when the stored settings still carry version as
// their updated_at. It reports whether the flag changed.
func (s *SettingsSlot) MarkSynced(version time.Time) (bool, error) {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()

	current, err := s.load()
	if err != nil {
		return false, err
	}
	if current.Synced || !current.UpdatedAt.Equal(version) {
		return false, nil
	}
	current.Synced = true
	return true, s.save(current)
}

// Subscribe registers fn to receive every settings change. The returned
// function removes the subscription.
func (s *SettingsSlot) Subscribe(fn func(model.Settings)) (cancel func()) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

func (s *SettingsSlot) publish(settings model.Settings) {
	s.subMu.Lock()
	fns := make([]func(model.Settings), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(settings)
	}
}

func (s *SettingsSlot) load() (model.Settings, error) {
	var settings model.Settings
	ok, err := s.store.read(SettingsKey, &settings)
	if err != nil {
		return model.Settings{}, err
	}
	if !ok {
		return model.DefaultSettings(), nil
	}
	return settings, nil
}

func (s *SettingsSlot) save(settings model.Settings) error {
	data, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("encode %s: %w", SettingsKey, err)
	}
	return s.store.write(map[string][]byte{SettingsKey: data})
}
