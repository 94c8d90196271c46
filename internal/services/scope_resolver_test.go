package services

import (
	"testing"

	"github.com/google/uuid"

	"pos-system/internal/models"
)

func newTestOrderContext() *models.OrderContext {
	return &models.OrderContext{
		OrderID:  uuid.New(),
		VenueID:  uuid.New(),
		Subtotal: 100,
	}
}

func TestResolveScope_Order(t *testing.T) {
	order := newTestOrderContext()
	order.Items = []models.OrderLine{
		{ID: uuid.New(), ProductID: uuid.New(), Quantity: 1, UnitPrice: 60, LineTotal: 60},
		{ID: uuid.New(), ProductID: uuid.New(), Quantity: 1, UnitPrice: 40, LineTotal: 40},
	}

	d := &models.Discount{Scope: models.ScopeOrder}
	base, ids := ResolveScope(d, order)
	if base != 100 {
		t.Fatalf("expected base 100, got %.2f", base)
	}
	if len(ids) != 2 {
		t.Fatalf("expected 2 item ids, got %d", len(ids))
	}
}

func TestResolveScope_Item(t *testing.T) {
	order := newTestOrderContext()
	targetProduct := uuid.New()
	matching := models.OrderLine{ID: uuid.New(), ProductID: targetProduct, Quantity: 2, UnitPrice: 15, LineTotal: 30}
	other := models.OrderLine{ID: uuid.New(), ProductID: uuid.New(), Quantity: 1, UnitPrice: 70, LineTotal: 70}
	order.Items = []models.OrderLine{matching, other}

	d := &models.Discount{Scope: models.ScopeItem, ItemIDs: []uuid.UUID{targetProduct}}
	base, ids := ResolveScope(d, order)
	if base != 30 {
		t.Fatalf("expected base 30, got %.2f", base)
	}
	if len(ids) != 1 || ids[0] != matching.ID {
		t.Fatalf("expected only the matching line, got %v", ids)
	}
}

func TestResolveScope_Category(t *testing.T) {
	order := newTestOrderContext()
	category := uuid.New()
	inCategory := models.OrderLine{ID: uuid.New(), ProductID: uuid.New(), CategoryID: &category, LineTotal: 25}
	noCategory := models.OrderLine{ID: uuid.New(), ProductID: uuid.New(), LineTotal: 75}
	order.Items = []models.OrderLine{inCategory, noCategory}

	d := &models.Discount{Scope: models.ScopeCategory, CategoryIDs: []uuid.UUID{category}}
	base, ids := ResolveScope(d, order)
	if base != 25 {
		t.Fatalf("expected base 25, got %.2f", base)
	}
	if len(ids) != 1 || ids[0] != inCategory.ID {
		t.Fatalf("expected only the in-category line, got %v", ids)
	}
}

func TestResolveScope_Modifier(t *testing.T) {
	order := newTestOrderContext()
	targetModifier := uuid.New()
	line := models.OrderLine{
		ID: uuid.New(), ProductID: uuid.New(), LineTotal: 50,
		Modifiers: []models.LineModifier{
			{ID: uuid.New(), ModifierID: targetModifier, ModifierGroupID: uuid.New(), Price: 3.5},
			{ID: uuid.New(), ModifierID: uuid.New(), ModifierGroupID: uuid.New(), Price: 2},
		},
	}
	order.Items = []models.OrderLine{line}

	d := &models.Discount{Scope: models.ScopeModifier, ModifierIDs: []uuid.UUID{targetModifier}}
	base, ids := ResolveScope(d, order)
	if base != 3.5 {
		t.Fatalf("expected base 3.5 from the matching modifier only, got %.2f", base)
	}
	if len(ids) != 1 || ids[0] != line.ID {
		t.Fatalf("expected the host line id, got %v", ids)
	}
}

func TestResolveScope_ModifierGroup(t *testing.T) {
	order := newTestOrderContext()
	group := uuid.New()
	line := models.OrderLine{
		ID: uuid.New(), ProductID: uuid.New(), LineTotal: 50,
		Modifiers: []models.LineModifier{
			{ID: uuid.New(), ModifierID: uuid.New(), ModifierGroupID: group, Price: 4},
			{ID: uuid.New(), ModifierID: uuid.New(), ModifierGroupID: group, Price: 1},
		},
	}
	order.Items = []models.OrderLine{line}

	d := &models.Discount{Scope: models.ScopeModifierGroup, ModifierGroupIDs: []uuid.UUID{group}}
	base, _ := ResolveScope(d, order)
	if base != 5 {
		t.Fatalf("expected base 5 summed over the group, got %.2f", base)
	}
}

func TestResolveScope_NoMatches(t *testing.T) {
	order := newTestOrderContext()
	order.Items = []models.OrderLine{
		{ID: uuid.New(), ProductID: uuid.New(), LineTotal: 100},
	}

	d := &models.Discount{Scope: models.ScopeItem, ItemIDs: []uuid.UUID{uuid.New()}}
	base, ids := ResolveScope(d, order)
	if base != 0 || ids != nil {
		t.Fatalf("expected zero base and no ids, got %.2f %v", base, ids)
	}
}

func TestResolveScope_QuantityHasNoFlatBase(t *testing.T) {
	order := newTestOrderContext()
	order.Items = []models.OrderLine{{ID: uuid.New(), ProductID: uuid.New(), LineTotal: 100}}

	buy, get := 2, 1
	d := &models.Discount{Scope: models.ScopeQuantity, BuyQuantity: &buy, GetQuantity: &get}
	base, ids := ResolveScope(d, order)
	if base != 0 || ids != nil {
		t.Fatalf("expected quantity scope to resolve to zero base, got %.2f %v", base, ids)
	}
}

func TestRound2(t *testing.T) {
	cases := map[float64]float64{
		10.004:    10.0,
		10.006:    10.01,
		0.1 + 0.2: 0.3,
		-2.346:    -2.35,
	}
	for in, want := range cases {
		if got := round2(in); got != want {
			t.Errorf("round2(%v) = %v, want %v", in, got, want)
		}
	}
}
