package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	pkgstore "github.com/wondertwin-ai/twin-paypal/pkg/store"
	"gopkg.in/yaml.v3"
)

// IDs selects the generator used by each collection.
type IDs struct {
	Products      pkgstore.IDGenerator
	Plans         pkgstore.IDGenerator
	Subscriptions pkgstore.IDGenerator
}

// RandomIDs returns the generators matching PayPal's ID shapes:
// PROD- plus 17, P- plus 24 and I- plus 17 hex characters.
func RandomIDs() IDs {
	return IDs{
		Products:      pkgstore.NewHexID("PROD-", 17),
		Plans:         pkgstore.NewHexID("P-", 24),
		Subscriptions: pkgstore.NewHexID("I-", 17),
	}
}

// SequentialIDs returns deterministic generators (PROD-000001, P-000001, ...).
func SequentialIDs() IDs {
	return IDs{
		Products:      pkgstore.NewSequence("PROD-"),
		Plans:         pkgstore.NewSequence("P-"),
		Subscriptions: pkgstore.NewSequence("I-"),
	}
}

// MemoryStore holds all PayPal twin state in memory.
type MemoryStore struct {
	Products      *pkgstore.Store[Product]
	Plans         *pkgstore.Store[Plan]
	Subscriptions *pkgstore.Store[Subscription]

	Clock *pkgstore.Clock
}

// New creates a new MemoryStore with empty state and random PayPal-shaped IDs.
func New() *MemoryStore {
	return NewWithIDs(RandomIDs())
}

// NewWithIDs creates a new MemoryStore using the given ID generators.
func NewWithIDs(ids IDs) *MemoryStore {
	return &MemoryStore{
		Products:      pkgstore.New[Product](ids.Products),
		Plans:         pkgstore.New[Plan](ids.Plans),
		Subscriptions: pkgstore.New[Subscription](ids.Subscriptions),
		Clock:         pkgstore.NewClock(),
	}
}

// stateSnapshot is the JSON-serializable state for admin endpoints.
type stateSnapshot struct {
	Products      map[string]Product      `json:"products"`
	Plans         map[string]Plan         `json:"plans"`
	Subscriptions map[string]Subscription `json:"subscriptions"`
}

// Snapshot returns the full state as a JSON-serializable value.
func (s *MemoryStore) Snapshot() any {
	return stateSnapshot{
		Products:      s.Products.Snapshot(),
		Plans:         s.Plans.Snapshot(),
		Subscriptions: s.Subscriptions.Snapshot(),
	}
}

// LoadState replaces the full state from a JSON body.
func (s *MemoryStore) LoadState(data []byte) error {
	var snap stateSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return err
	}

	s.Products.LoadSnapshot(withIDs(snap.Products, func(id string, p *Product) { p.ID = id }))
	s.Plans.LoadSnapshot(withIDs(snap.Plans, func(id string, p *Plan) { p.ID = id }))
	s.Subscriptions.LoadSnapshot(withIDs(snap.Subscriptions, func(id string, sub *Subscription) { sub.ID = id }))
	return nil
}

// LoadSeedFile reads a JSON or YAML (by extension) state file and loads it.
func (s *MemoryStore) LoadSeedFile(path string) error {
	data, err := ReadSeedFile(path)
	if err != nil {
		return err
	}
	if err := s.LoadState(data); err != nil {
		return fmt.Errorf("load seed file %s: %w", path, err)
	}
	return nil
}

// ReadSeedFile returns the state in a JSON or YAML (by extension) file as JSON.
func ReadSeedFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yamlToJSON(data)
		if err != nil {
			return nil, fmt.Errorf("parse seed file %s: %w", path, err)
		}
	}
	return data, nil
}

// Reset clears all state.
func (s *MemoryStore) Reset() {
	s.Products.Reset()
	s.Plans.Reset()
	s.Subscriptions.Reset()
	s.Clock.Reset()
}

// withIDs makes each record's ID agree with its snapshot key.
func withIDs[T any](in map[string]T, set func(id string, item *T)) map[string]T {
	out := make(map[string]T, len(in))
	for id, item := range in {
		set(id, &item)
		out[id] = item
	}
	return out
}

func yamlToJSON(data []byte) ([]byte, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return json.Marshal(doc)
}
