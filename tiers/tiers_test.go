package tiers_test

import (
	"testing"

	"github.com/shopspring/decimal"

	"nodemint/models"
	"nodemint/tiers"
)

func tier(id int, name string, weight, price string, supply int) *models.Tier {
	return &models.Tier{
		ID:         id,
		Name:       name,
		Weight:     decimal.RequireFromString(weight),
		Price:      decimal.RequireFromString(price),
		MaxSupply:  supply,
		BaseReward: decimal.RequireFromString("1"),
	}
}

func TestNewRegistry_Defaults(t *testing.T) {
	r, err := tiers.NewRegistry(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	all := r.All()
	if len(all) != 7 {
		t.Fatalf("expected 7 launch tiers, got %d", len(all))
	}
	diamond, err := r.Get(6)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diamond.Name != "Diamond" || diamond.MaxSupply != 600 {
		t.Fatalf("unexpected Diamond tier: %+v", diamond)
	}
	if diamond.Weight.String() != "15" {
		t.Fatalf("expected Diamond weight 15, got %s", diamond.Weight)
	}
}

func TestNewRegistry_Validation(t *testing.T) {
	if _, err := tiers.NewRegistry([]*models.Tier{
		tier(1, "A", "1", "100", 10),
		tier(1, "B", "1", "200", 10),
	}); err == nil {
		t.Fatal("expected duplicate id error")
	}

	if _, err := tiers.NewRegistry([]*models.Tier{
		tier(1, "A", "1", "200", 10),
		tier(2, "B", "1", "100", 10),
	}); err == nil {
		t.Fatal("expected descending price error")
	}

	if _, err := tiers.NewRegistry([]*models.Tier{
		tier(1, "A", "0", "100", 10),
	}); err == nil {
		t.Fatal("expected non-positive weight error")
	}

	if _, err := tiers.NewRegistry([]*models.Tier{
		tier(1, "A", "1", "100", 0),
	}); err == nil {
		t.Fatal("expected non-positive supply error")
	}
}

func TestRegistry_GetUnknown(t *testing.T) {
	r, err := tiers.NewRegistry(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := r.Get(42); err != tiers.ErrUnknownTier {
		t.Fatalf("expected ErrUnknownTier, got %v", err)
	}
}
