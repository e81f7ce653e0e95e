// internal/store/context.go
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/user/amana/internal/types"
)

// ContextStore persists one JSON file per conversation under root.
// Writes are write-then-rename so a crash never leaves a torn record.
//
// Mutation routes through a per-conversation mutex: callers hold the lock
// for their whole handle cycle via Acquire, which keeps slot updates from
// interleaving while an LLM call is in flight.
type ContextStore struct {
	root string
	mu   sync.Mutex
	lock map[types.ConversationID]*sync.Mutex
	now  func() time.Time
}

// New creates a file-backed ContextStore rooted at dir.
func New(dir string) *ContextStore {
	return &ContextStore{
		root: dir,
		lock: make(map[types.ConversationID]*sync.Mutex),
		now:  time.Now,
	}
}

// Acquire takes the conversation's exclusive lock and returns the release
// function. All Load/Save/Update calls for an id must happen between
// Acquire and release.
func (s *ContextStore) Acquire(id types.ConversationID) func() {
	s.mu.Lock()
	m, ok := s.lock[id]
	if !ok {
		m = &sync.Mutex{}
		s.lock[id] = m
	}
	s.mu.Unlock()

	m.Lock()
	return m.Unlock
}

func (s *ContextStore) path(id types.ConversationID) string {
	return filepath.Join(s.root, id.SafeKey()+".json")
}

// Load reads the conversation record, returning the idle default when the
// file does not exist yet. Conversations are created lazily on first use.
func (s *ContextStore) Load(id types.ConversationID) (*types.Conversation, error) {
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return types.NewConversation(id), nil
		}
		return nil, fmt.Errorf("read context: %w", err)
	}

	var conv types.Conversation
	if err := json.Unmarshal(data, &conv); err != nil {
		return nil, fmt.Errorf("unmarshal context %s: %w", id, err)
	}
	if conv.Fields == nil {
		conv.Fields = types.Fields{}
	}
	if conv.History == nil {
		conv.History = []types.HistoryEntry{}
	}
	if conv.ID == "" {
		conv.ID = id
	}
	return &conv, nil
}

// Save overwrites the conversation record atomically and stamps
// last_update.
func (s *ContextStore) Save(id types.ConversationID, conv *types.Conversation) error {
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return fmt.Errorf("create context dir: %w", err)
	}

	conv.ID = id
	conv.LastUpdate = s.now()

	data, err := json.MarshalIndent(conv, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal context: %w", err)
	}

	// Atomic write: write to temp file then rename
	fp := s.path(id)
	tmp := fp + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp context: %w", err)
	}
	if err := os.Rename(tmp, fp); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename temp context: %w", err)
	}
	return nil
}

// Partial describes an update: nil pointers leave the current value,
// Fields deep-merge into the existing map.
type Partial struct {
	Intent *types.Intent
	Stage  *string
	Fields types.Fields
}

// Update loads, merges, and saves in one step. Field values merge key by
// key; intent and stage override when set.
func (s *ContextStore) Update(id types.ConversationID, p Partial) (*types.Conversation, error) {
	conv, err := s.Load(id)
	if err != nil {
		return nil, err
	}
	if p.Intent != nil {
		conv.Intent = *p.Intent
	}
	if p.Stage != nil {
		conv.Stage = *p.Stage
	}
	for k, v := range p.Fields {
		conv.Fields[k] = v
	}
	if err := s.Save(id, conv); err != nil {
		return nil, err
	}
	return conv, nil
}

// PushHistory appends an entry, truncating the text and dropping the
// oldest entries past the bound.
func (s *ContextStore) PushHistory(id types.ConversationID, role types.Role, text string) error {
	conv, err := s.Load(id)
	if err != nil {
		return err
	}
	if r := []rune(text); len(r) > types.MaxHistoryText {
		text = string(r[:types.MaxHistoryText])
	}
	conv.History = append(conv.History, types.HistoryEntry{
		Role: role,
		Text: text,
		At:   s.now(),
	})
	if n := len(conv.History); n > types.MaxHistory {
		conv.History = conv.History[n-types.MaxHistory:]
	}
	return s.Save(id, conv)
}

// BeginTask starts a task: sets the intent and resets fields and stage.
func (s *ContextStore) BeginTask(id types.ConversationID, intent types.Intent, initial types.Fields) error {
	conv, err := s.Load(id)
	if err != nil {
		return err
	}
	conv.Intent = intent
	conv.Fields = types.Fields{}
	for k, v := range initial {
		conv.Fields[k] = v
	}
	conv.Stage = ""
	return s.Save(id, conv)
}

// EndTask returns the conversation to idle, preserving history.
func (s *ContextStore) EndTask(id types.ConversationID) error {
	conv, err := s.Load(id)
	if err != nil {
		return err
	}
	conv.Intent = ""
	conv.Fields = types.Fields{}
	conv.Stage = ""
	return s.Save(id, conv)
}

// List returns every stored conversation, sorted by last update
// descending. Used by the debug API and the snapshot job.
func (s *ContextStore) List() ([]*types.Conversation, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return []*types.Conversation{}, nil
		}
		return nil, fmt.Errorf("read context dir: %w", err)
	}

	convs := make([]*types.Conversation, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		id := types.ConversationID(strings.TrimSuffix(name, ".json"))
		conv, err := s.Load(id)
		if err != nil {
			continue
		}
		convs = append(convs, conv)
	}
	sort.Slice(convs, func(i, j int) bool {
		return convs[i].LastUpdate.After(convs[j].LastUpdate)
	})
	return convs, nil
}
