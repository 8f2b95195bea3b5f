package policy

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/eliteGoblin/focusd/deepfocus/internal/domain"
)

// DefaultRules returns the rules seeded on first start.
func DefaultRules() []domain.Rule {
	rules := []domain.Rule{
		{Name: "YouTube", DomainPattern: "*youtube.com*", Action: domain.ActionConditional, RequiredFocusMinutes: 30, Priority: 90},
		{Name: "Twitter/X", DomainPattern: "*twitter.com*", Action: domain.ActionBlock, Priority: 95},
		{Name: "Reddit", DomainPattern: "*reddit.com*", Action: domain.ActionDelay, DelayMinutes: 5, Priority: 85},
		{Name: "Facebook", DomainPattern: "*facebook.com*", Action: domain.ActionBlock, Priority: 90},
		{Name: "Instagram", DomainPattern: "*instagram.com*", Action: domain.ActionBlock, Priority: 90},
		{Name: "TikTok", DomainPattern: "*tiktok.com*", Action: domain.ActionBlock, Priority: 95},
		{Name: "Netflix", DomainPattern: "*netflix.com*", Action: domain.ActionConditional, RequiredFocusMinutes: 60, Priority: 80},
		{Name: "Twitch", DomainPattern: "*twitch.tv*", Action: domain.ActionDelay, DelayMinutes: 10, Priority: 75},
	}
	for i := range rules {
		rules[i].IsActive = true
	}
	return rules
}

// MissingDefaults returns the default rules whose pattern is absent from existing.
func MissingDefaults(existing []domain.Rule) []domain.Rule {
	have := make(map[string]bool, len(existing))
	for _, r := range existing {
		have[Normalize(r.DomainPattern)] = true
	}
	var missing []domain.Rule
	for _, r := range DefaultRules() {
		if !have[Normalize(r.DomainPattern)] {
			missing = append(missing, r)
		}
	}
	return missing
}

// SortRules orders rules by priority desc, then ID asc.
func SortRules(rules []domain.Rule) {
	sort.SliceStable(rules, func(i, j int) bool {
		if rules[i].Priority != rules[j].Priority {
			return rules[i].Priority > rules[j].Priority
		}
		return rules[i].ID < rules[j].ID
	})
}

// Registry is an in-memory domain.RuleStore.
// Used when persistence is disabled and in tests.
type Registry struct {
	mu     sync.RWMutex
	rules  map[int64]domain.Rule
	nextID int64
	now    func() time.Time
}

// NewRegistry creates a registry seeded with DefaultRules.
func NewRegistry() *Registry {
	return NewRegistryWithRules(DefaultRules()...)
}

// NewRegistryWithRules creates a registry with custom rules (for testing).
// Rules without an ID are assigned one in order.
func NewRegistryWithRules(rules ...domain.Rule) *Registry {
	r := &Registry{
		rules: make(map[int64]domain.Rule),
		now:   time.Now,
	}
	for _, rule := range rules {
		rule := rule
		if rule.ID == 0 {
			_ = r.Create(context.Background(), &rule)
			continue
		}
		r.rules[rule.ID] = rule
		if rule.ID > r.nextID {
			r.nextID = rule.ID
		}
	}
	return r
}

func (r *Registry) List(ctx context.Context) ([]domain.Rule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Rule, 0, len(r.rules))
	for _, rule := range r.rules {
		out = append(out, rule)
	}
	SortRules(out)
	return out, nil
}

func (r *Registry) ListActive(ctx context.Context) ([]domain.Rule, error) {
	all, _ := r.List(ctx)
	active := all[:0]
	for _, rule := range all {
		if rule.IsActive {
			active = append(active, rule)
		}
	}
	return active, nil
}

func (r *Registry) Get(ctx context.Context, id int64) (*domain.Rule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rule, ok := r.rules[id]
	if !ok {
		return nil, domain.ErrRuleNotFound
	}
	return &rule, nil
}

// Create assigns an ID and timestamps.
func (r *Registry) Create(ctx context.Context, rule *domain.Rule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	now := r.now()
	rule.ID = r.nextID
	rule.CreatedAt = now
	rule.UpdatedAt = now
	r.rules[rule.ID] = *rule
	return nil
}

func (r *Registry) Update(ctx context.Context, rule *domain.Rule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	old, ok := r.rules[rule.ID]
	if !ok {
		return domain.ErrRuleNotFound
	}
	rule.CreatedAt = old.CreatedAt
	rule.UpdatedAt = r.now()
	r.rules[rule.ID] = *rule
	return nil
}

func (r *Registry) Delete(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rules[id]; !ok {
		return domain.ErrRuleNotFound
	}
	delete(r.rules, id)
	return nil
}

func (r *Registry) Toggle(ctx context.Context, id int64) (*domain.Rule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rule, ok := r.rules[id]
	if !ok {
		return nil, domain.ErrRuleNotFound
	}
	rule.IsActive = !rule.IsActive
	rule.UpdatedAt = r.now()
	r.rules[id] = rule
	return &rule, nil
}

// Ensure Registry implements domain.RuleStore.
var _ domain.RuleStore = (*Registry)(nil)
