package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/ahmetcoskunkizilkaya/menu-billing/internal/lifecycle"
)

type PlanConfig struct {
	PlanID   string   `json:"plan_id"`
	Name     string   `json:"name"`
	Price    int64    `json:"price"`
	Currency string   `json:"currency"`
	Interval string   `json:"interval"`
	Features []string `json:"features"`
	Hidden   bool     `json:"hidden"`
}

type PlansFile struct {
	Plans []PlanConfig `json:"plans"`
}

// Registry is the mutable plan catalog. Subscriptions never read it after
// creation; they carry a snapshot.
type Registry struct {
	mu    sync.RWMutex
	plans map[string]*PlanConfig
}

func NewRegistry() *Registry {
	return &Registry{
		plans: make(map[string]*PlanConfig),
	}
}

func LoadFromFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plans config: %w", err)
	}

	var file PlansFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse plans config: %w", err)
	}

	registry := NewRegistry()
	for i := range file.Plans {
		if err := registry.Register(&file.Plans[i]); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

// Load reads path when set and falls back to the built-in catalog.
func Load(path string) (*Registry, error) {
	if path == "" {
		return Default(), nil
	}
	return LoadFromFile(path)
}

// Default is the built-in catalog used when no plans file is configured.
func Default() *Registry {
	r := NewRegistry()
	for _, p := range []PlanConfig{
		{
			PlanID: "starter", Name: "Starter", Price: 10000, Currency: "RWF", Interval: "month",
			Features: []string{"digital_menu", "qr_codes"},
		},
		{
			PlanID: "pro", Name: "Pro", Price: 20000, Currency: "RWF", Interval: "month",
			Features: []string{"digital_menu", "qr_codes", "table_ordering", "embeds", "analytics"},
		},
		{
			PlanID: "pro-annual", Name: "Pro (annual)", Price: 200000, Currency: "RWF", Interval: "year",
			Features: []string{"digital_menu", "qr_codes", "table_ordering", "embeds", "analytics"},
		},
		{
			PlanID: "business", Name: "Business", Price: 45000, Currency: "RWF", Interval: "month",
			Features: []string{
				"digital_menu", "qr_codes", "table_ordering", "embeds", "multi_menu",
				"custom_branding", "analytics", "whatsapp_alerts", "priority_support",
			},
		},
	} {
		_ = r.Register(&p)
	}
	return r
}

// Register validates cfg and adds or replaces it.
func (r *Registry) Register(cfg *PlanConfig) error {
	if _, err := toSnapshot(cfg); err != nil {
		return fmt.Errorf("plan %q: %w", cfg.PlanID, err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.plans[cfg.PlanID] = cfg
	return nil
}

func (r *Registry) Get(planID string) *PlanConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.plans[planID]
}

func (r *Registry) Exists(planID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.plans[planID]
	return ok
}

// All returns the visible plans ordered by price.
func (r *Registry) All() []*PlanConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]*PlanConfig, 0, len(r.plans))
	for _, cfg := range r.plans {
		if !cfg.Hidden {
			result = append(result, cfg)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Price == result[j].Price {
			return result[i].PlanID < result[j].PlanID
		}
		return result[i].Price < result[j].Price
	})
	return result
}

// Snapshot freezes the current terms of planID for a subscription.
func (r *Registry) Snapshot(planID string) (lifecycle.PlanSnapshot, error) {
	cfg := r.Get(planID)
	if cfg == nil {
		return lifecycle.PlanSnapshot{}, lifecycle.ErrPlanNotFound
	}
	return toSnapshot(cfg)
}

func toSnapshot(cfg *PlanConfig) (lifecycle.PlanSnapshot, error) {
	if cfg.PlanID == "" {
		return lifecycle.PlanSnapshot{}, fmt.Errorf("missing plan_id")
	}
	if cfg.Price < 0 {
		return lifecycle.PlanSnapshot{}, fmt.Errorf("negative price")
	}
	if len(cfg.Currency) != 3 {
		return lifecycle.PlanSnapshot{}, fmt.Errorf("invalid currency %q", cfg.Currency)
	}
	interval, err := lifecycle.ParseInterval(cfg.Interval)
	if err != nil {
		return lifecycle.PlanSnapshot{}, err
	}
	flags := make([]lifecycle.Feature, len(cfg.Features))
	for i, f := range cfg.Features {
		flags[i] = lifecycle.Feature(f)
	}
	features, err := lifecycle.NewFeatureSet(flags...)
	if err != nil {
		return lifecycle.PlanSnapshot{}, err
	}
	return lifecycle.PlanSnapshot{
		PlanID:   cfg.PlanID,
		Name:     cfg.Name,
		Price:    cfg.Price,
		Currency: cfg.Currency,
		Interval: interval,
		Features: features,
	}, nil
}
