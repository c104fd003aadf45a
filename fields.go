package reqlog

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
)

// SensitiveFieldsKey is the settings key the sensitive field list is stored under.
const SensitiveFieldsKey = "sensitive_fields"

// SettingsStore persists ordered string lists by key. A missing key reads as an empty list.
type SettingsStore interface {
	Get(ctx context.Context, key string) ([]string, error)
	Set(ctx context.Context, key string, vals []string) error
}

// MemorySettings is a [SettingsStore] that lives in process memory.
type MemorySettings struct {
	mu   sync.RWMutex
	vals map[string][]string
}

// NewMemorySettings inits an empty in-memory store.
func NewMemorySettings() *MemorySettings {
	return &MemorySettings{vals: map[string][]string{}}
}

func (s *MemorySettings) Get(_ context.Context, key string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return slices.Clone(s.vals[key]), nil
}

func (s *MemorySettings) Set(_ context.Context, key string, vals []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.vals[key] = slices.Clone(vals)
	return nil
}

// FieldPolicy manages the list of field machine names whose values are masked by the entity change logger. It
// only stores the list; masking happens elsewhere.
type FieldPolicy struct {
	store SettingsStore
}

// NewFieldPolicy inits a policy on top of the store.
func NewFieldPolicy(store SettingsStore) *FieldPolicy {
	return &FieldPolicy{store: store}
}

// Fields returns the configured field names in the order they were set.
func (p *FieldPolicy) Fields(ctx context.Context) ([]string, error) {
	fields, err := p.store.Get(ctx, SensitiveFieldsKey)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read sensitive fields")
	}
	if fields == nil {
		fields = []string{}
	}

	return fields, nil
}

// Replace replaces the whole list. Entries are stored as given, duplicates included.
func (p *FieldPolicy) Replace(ctx context.Context, fields []string) error {
	if fields == nil {
		fields = []string{}
	}
	if err := p.store.Set(ctx, SensitiveFieldsKey, fields); err != nil {
		return errors.Wrap(err, "failed to store sensitive fields")
	}

	return nil
}

// ReplaceText replaces the list from free-text input with one field name per line.
func (p *FieldPolicy) ReplaceText(ctx context.Context, text string) error {
	return p.Replace(ctx, ParseFieldList(text))
}

// Text returns the list as free text, one field name per line.
func (p *FieldPolicy) Text(ctx context.Context) (string, error) {
	fields, err := p.Fields(ctx)
	if err != nil {
		return "", err
	}

	return strings.Join(fields, "\n"), nil
}

// ParseFieldList splits free text into field names. Lines are trimmed, blank lines are dropped and the order is
// kept.
func ParseFieldList(text string) []string {
	return lo.FilterMap(strings.Split(text, "\n"), func(line string, _ int) (string, bool) {
		line = strings.TrimSpace(line)
		return line, line != ""
	})
}

// FieldCatalog lists the field machine names that exist in the application.
type FieldCatalog interface {
	FieldNames(ctx context.Context) ([]string, error)
}

// StaticCatalog is a fixed [FieldCatalog].
type StaticCatalog []string

func (c StaticCatalog) FieldNames(context.Context) ([]string, error) {
	return slices.Clone(c), nil
}

// MatchFields returns the names that contain query, ignoring case, in catalog order.
func MatchFields(names []string, query string) []string {
	q := strings.ToLower(query)

	return lo.Filter(names, func(name string, _ int) bool {
		return strings.Contains(strings.ToLower(name), q)
	})
}
