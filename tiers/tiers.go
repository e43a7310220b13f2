package tiers

import (
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"nodemint/models"
)

// Registry holds the static tier configuration. Read-only after load;
// weight and max supply never change once a launch has happened.
type Registry struct {
	byID map[int]*models.Tier
	ids  []int
}

var ErrUnknownTier = errors.New("unknown tier")

// launchTiers is the compiled-in launch table, used when the config file
// carries no tiers section.
func launchTiers() []*models.Tier {
	d := decimal.RequireFromString
	return []*models.Tier{
		{ID: 1, Name: "Bronze", Weight: d("1"), Price: d("100"), MaxSupply: 10000, BaseReward: d("2.6")},
		{ID: 2, Name: "Silver", Weight: d("2.1"), Price: d("300"), MaxSupply: 8000, BaseReward: d("5.5")},
		{ID: 3, Name: "Gold", Weight: d("4.5"), Price: d("600"), MaxSupply: 4000, BaseReward: d("11.7")},
		{ID: 4, Name: "Platinum", Weight: d("7"), Price: d("1200"), MaxSupply: 2000, BaseReward: d("18.9")},
		{ID: 5, Name: "Sapphire", Weight: d("10"), Price: d("2500"), MaxSupply: 1200, BaseReward: d("27.3")},
		{ID: 6, Name: "Diamond", Weight: d("15"), Price: d("5000"), MaxSupply: 600, BaseReward: d("40.76")},
		{ID: 7, Name: "Obsidian", Weight: d("25"), Price: d("10000"), MaxSupply: 200, BaseReward: d("68")},
	}
}

// NewRegistry builds a registry from an explicit tier list.
func NewRegistry(list []*models.Tier) (*Registry, error) {
	if len(list) == 0 {
		list = launchTiers()
	}
	r := &Registry{byID: make(map[int]*models.Tier, len(list))}
	for _, t := range list {
		if err := validateTier(t); err != nil {
			return nil, err
		}
		if _, dup := r.byID[t.ID]; dup {
			return nil, fmt.Errorf("duplicate tier id %d", t.ID)
		}
		r.byID[t.ID] = t
		r.ids = append(r.ids, t.ID)
	}
	sort.Ints(r.ids)
	// tiers are ordered by price ascending
	var prev decimal.Decimal
	for i, id := range r.ids {
		if i > 0 && r.byID[id].Price.LessThanOrEqual(prev) {
			return nil, fmt.Errorf("tier %d price must exceed the previous tier's", id)
		}
		prev = r.byID[id].Price
	}
	return r, nil
}

// NewRegistryFromViper reads the "tiers" section of the loaded config,
// falling back to the launch table when the section is absent.
func NewRegistryFromViper() (*Registry, error) {
	var raw []struct {
		ID           int     `mapstructure:"id"`
		Name         string  `mapstructure:"name"`
		Weight       float64 `mapstructure:"weight"`
		Price        float64 `mapstructure:"price"`
		MaxSupply    int     `mapstructure:"max_supply"`
		BaseReward   float64 `mapstructure:"base_daily_reward"`
		BonusPercent float64 `mapstructure:"bonus_percent"`
	}
	if err := viper.UnmarshalKey("tiers", &raw); err != nil {
		return nil, err
	}
	var list []*models.Tier
	for _, t := range raw {
		list = append(list, &models.Tier{
			ID:           t.ID,
			Name:         t.Name,
			Weight:       decimal.NewFromFloat(t.Weight),
			Price:        decimal.NewFromFloat(t.Price),
			MaxSupply:    t.MaxSupply,
			BaseReward:   decimal.NewFromFloat(t.BaseReward),
			BonusPercent: decimal.NewFromFloat(t.BonusPercent),
		})
	}
	return NewRegistry(list)
}

func validateTier(t *models.Tier) error {
	if t.ID < 1 {
		return fmt.Errorf("tier id %d must be positive", t.ID)
	}
	if t.Name == "" {
		return fmt.Errorf("tier %d has no name", t.ID)
	}
	if !t.Weight.IsPositive() {
		return fmt.Errorf("tier %d weight must be positive", t.ID)
	}
	if t.MaxSupply <= 0 {
		return fmt.Errorf("tier %d max supply must be positive", t.ID)
	}
	if t.BaseReward.IsNegative() {
		return fmt.Errorf("tier %d base reward must not be negative", t.ID)
	}
	if t.BonusPercent.IsNegative() {
		return fmt.Errorf("tier %d bonus percent must not be negative", t.ID)
	}
	return nil
}

// Get returns the tier with the given id.
func (r *Registry) Get(id int) (*models.Tier, error) {
	t, ok := r.byID[id]
	if !ok {
		return nil, ErrUnknownTier
	}
	return t, nil
}

// All returns every tier, ordered by id.
func (r *Registry) All() []*models.Tier {
	out := make([]*models.Tier, 0, len(r.ids))
	for _, id := range r.ids {
		out = append(out, r.byID[id])
	}
	return out
}
