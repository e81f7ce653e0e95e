// internal/store/automation.go
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/user/amana/internal/types"
)

// Automation is a named message fired into a conversation on a cron
// schedule, e.g. a morning "mostre minha agenda".
type Automation struct {
	ID             types.AutomationID   `json:"id"`
	Name           string               `json:"name"`
	Message        string               `json:"message"`
	Schedule       string               `json:"schedule"`
	ConversationID types.ConversationID `json:"conversation_id"`
	Enabled        bool                 `json:"enabled"`
}

// AutomationStore is a JSON-file-backed store for automations.
type AutomationStore struct {
	path string
	mu   sync.RWMutex
}

// NewAutomationStore creates a file-backed AutomationStore at path.
func NewAutomationStore(path string) *AutomationStore {
	return &AutomationStore{path: path}
}

// List returns all automations. Returns an empty slice if the file
// doesn't exist.
func (s *AutomationStore) List() ([]*Automation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items, err := s.load()
	if err != nil {
		return nil, err
	}
	if items == nil {
		return []*Automation{}, nil
	}
	return items, nil
}

// Get finds an automation by name.
func (s *AutomationStore) Get(name string) (*Automation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items, err := s.load()
	if err != nil {
		return nil, err
	}
	for _, a := range items {
		if a.Name == name {
			return a, nil
		}
	}
	return nil, fmt.Errorf("automation not found: %s", name)
}

// Add appends an automation. Names must be unique.
func (s *AutomationStore) Add(a *Automation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.load()
	if err != nil {
		return err
	}
	for _, existing := range items {
		if existing.Name == a.Name {
			return fmt.Errorf("automation already exists: %s", a.Name)
		}
	}
	if a.ID == "" {
		a.ID = types.NewAutomationID()
	}
	items = append(items, a)
	return s.save(items)
}

// Remove deletes the automation with the given name.
func (s *AutomationStore) Remove(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.load()
	if err != nil {
		return err
	}
	for i, a := range items {
		if a.Name == name {
			items = append(items[:i], items[i+1:]...)
			return s.save(items)
		}
	}
	return fmt.Errorf("automation not found: %s", name)
}

// SetEnabled toggles an automation without removing it.
func (s *AutomationStore) SetEnabled(name string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.load()
	if err != nil {
		return err
	}
	for _, a := range items {
		if a.Name == name {
			a.Enabled = enabled
			return s.save(items)
		}
	}
	return fmt.Errorf("automation not found: %s", name)
}

func (s *AutomationStore) load() ([]*Automation, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read automations: %w", err)
	}
	var items []*Automation
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("unmarshal automations: %w", err)
	}
	return items, nil
}

func (s *AutomationStore) save(items []*Automation) error {
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal automations: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp automations: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename temp automations: %w", err)
	}
	return nil
}
