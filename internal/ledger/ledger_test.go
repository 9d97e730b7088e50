package ledger

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"

	"bakerybms/client/internal/domain"
)

// recordingAlerter captures dispatched stock alerts for assertions.
type recordingAlerter struct {
	mu  sync.Mutex
	low []string
	out []string
}

func (r *recordingAlerter) NotifyLowStock(name string, stock int, threshold int) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.low = append(r.low, fmt.Sprintf("%s:%d/%d", name, stock, threshold))
	return ""
}

func (r *recordingAlerter) NotifyOutOfStock(name string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.out = append(r.out, name)
	return ""
}

func (r *recordingAlerter) snapshot() (low []string, out []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.low...), append([]string(nil), r.out...)
}

// waitFor polls until the condition holds or the deadline passes. Alerts
// dispatch on a background goroutine, so tests cannot assert immediately
// after a mutation returns.
func waitFor(t *testing.T, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func intPtr(v int) *int       { return &v }
func int64Ptr(v int64) *int64 { return &v }
func strPtr(v string) *string { return &v }

func TestAddProduct_GeneratesID(t *testing.T) {
	s := New(nil)
	defer s.Close()

	p, err := s.AddProduct(domain.Product{Name: "Baguette", PriceCents: 300, Stock: 12})
	if err != nil {
		t.Fatalf("AddProduct: %v", err)
	}
	if p.ID == "" {
		t.Fatal("expected generated id")
	}

	got, ok := s.GetProduct(p.ID)
	if !ok || got.Name != "Baguette" {
		t.Fatalf("expected stored product, got %+v ok=%v", got, ok)
	}
}

func TestAddProduct_KeepsServerID(t *testing.T) {
	s := New(nil)
	defer s.Close()

	p, err := s.AddProduct(domain.Product{ID: "srv-42", Name: "Rye Loaf", PriceCents: 450, Stock: 8})
	if err != nil {
		t.Fatalf("AddProduct: %v", err)
	}
	if p.ID != "srv-42" {
		t.Fatalf("expected server id preserved, got %s", p.ID)
	}
}

func TestAddProduct_Validation(t *testing.T) {
	s := New(nil)
	defer s.Close()

	cases := []domain.Product{
		{Name: "", PriceCents: 100, Stock: 1},
		{Name: "   ", PriceCents: 100, Stock: 1},
		{Name: "Bread", PriceCents: -1, Stock: 1},
		{Name: "Bread", PriceCents: 100, Stock: -1},
	}
	for _, c := range cases {
		if _, err := s.AddProduct(c); !errors.Is(err, ErrValidation) {
			t.Fatalf("product %+v: expected ErrValidation, got %v", c, err)
		}
	}
	if len(s.Activities()) != 0 {
		t.Fatalf("rejected mutations must not append activities, got %d", len(s.Activities()))
	}
}

func TestUpdateProduct_MergesPatch(t *testing.T) {
	s := New(nil)
	defer s.Close()

	p, _ := s.AddProduct(domain.Product{Name: "Focaccia", PriceCents: 600, Stock: 10})

	updated, err := s.UpdateProduct(p.ID, domain.ProductPatch{PriceCents: int64Ptr(650)})
	if err != nil {
		t.Fatalf("UpdateProduct: %v", err)
	}
	if updated.PriceCents != 650 || updated.Name != "Focaccia" || updated.Stock != 10 {
		t.Fatalf("patch must only touch provided fields, got %+v", updated)
	}
}

func TestUpdateProduct_NotFound(t *testing.T) {
	s := New(nil)
	defer s.Close()

	if _, err := s.UpdateProduct("missing", domain.ProductPatch{Stock: intPtr(3)}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteProduct_Idempotent(t *testing.T) {
	s := New(nil)
	defer s.Close()

	p, _ := s.AddProduct(domain.Product{Name: "Pretzel", PriceCents: 200, Stock: 5})

	if err := s.DeleteProduct(p.ID); err != nil {
		t.Fatalf("first delete: %v", err)
	}
	if err := s.DeleteProduct(p.ID); err != nil {
		t.Fatalf("second delete must be a no-op, got %v", err)
	}

	// One add + one delete; the repeated delete appends nothing.
	if got := len(s.Activities()); got != 2 {
		t.Fatalf("expected 2 activities, got %d", got)
	}
}

func TestRecordSale_DeductsStockAndComputesTotal(t *testing.T) {
	s := NewSeeded(nil)
	defer s.Close()

	sale, err := s.RecordSale(domain.Sale{Items: []domain.SaleLine{
		{ProductID: "p1", Name: "Sourdough Loaf", PriceCents: 500, Qty: 3},
		{ProductID: "p2", Name: "Croissant", PriceCents: 250, Qty: 2},
	}})
	if err != nil {
		t.Fatalf("RecordSale: %v", err)
	}

	if sale.TotalCents != 3*500+2*250 {
		t.Fatalf("expected total %d, got %d", 3*500+2*250, sale.TotalCents)
	}
	if sale.ID == "" || sale.At.IsZero() {
		t.Fatalf("expected id and timestamp filled, got %+v", sale)
	}

	p1, _ := s.GetProduct("p1")
	p2, _ := s.GetProduct("p2")
	if p1.Stock != 17 || p2.Stock != 48 {
		t.Fatalf("expected stocks 17/48, got %d/%d", p1.Stock, p2.Stock)
	}
}

func TestRecordSale_IgnoresClientTotal(t *testing.T) {
	s := NewSeeded(nil)
	defer s.Close()

	sale, err := s.RecordSale(domain.Sale{
		TotalCents: 1,
		Items:      []domain.SaleLine{{ProductID: "p1", Name: "Sourdough Loaf", PriceCents: 500, Qty: 2}},
	})
	if err != nil {
		t.Fatalf("RecordSale: %v", err)
	}
	if sale.TotalCents != 1000 {
		t.Fatalf("total must be recomputed from lines, got %d", sale.TotalCents)
	}
}

func TestRecordSale_FloorsStockAtZero(t *testing.T) {
	s := NewSeeded(nil)
	defer s.Close()

	// p3 has stock 5; an order of 8 is absorbed, never rejected.
	sale, err := s.RecordSale(domain.Sale{Items: []domain.SaleLine{
		{ProductID: "p3", Name: "Chocolate Cake", PriceCents: 2000, Qty: 8},
	}})
	if err != nil {
		t.Fatalf("RecordSale: %v", err)
	}

	p3, _ := s.GetProduct("p3")
	if p3.Stock != 0 {
		t.Fatalf("expected stock floored to 0, got %d", p3.Stock)
	}
	// Income still reflects the full quantity sold.
	if sale.TotalCents != 8*2000 {
		t.Fatalf("expected total %d, got %d", 8*2000, sale.TotalCents)
	}
}

func TestRecordSale_SkipsUnknownProduct(t *testing.T) {
	s := NewSeeded(nil)
	defer s.Close()

	sale, err := s.RecordSale(domain.Sale{Items: []domain.SaleLine{
		{ProductID: "ghost", Name: "Phantom Pie", PriceCents: 900, Qty: 1},
		{ProductID: "p1", Name: "Sourdough Loaf", PriceCents: 500, Qty: 1},
	}})
	if err != nil {
		t.Fatalf("RecordSale: %v", err)
	}

	// The unknown line still counts toward the total; only stock deduction
	// is skipped.
	if sale.TotalCents != 900+500 {
		t.Fatalf("expected total %d, got %d", 900+500, sale.TotalCents)
	}
	p1, _ := s.GetProduct("p1")
	if p1.Stock != 19 {
		t.Fatalf("expected p1 stock 19, got %d", p1.Stock)
	}
}

func TestRecordSale_Validation(t *testing.T) {
	s := NewSeeded(nil)
	defer s.Close()

	if _, err := s.RecordSale(domain.Sale{}); !errors.Is(err, ErrValidation) {
		t.Fatalf("empty sale: expected ErrValidation, got %v", err)
	}
	if _, err := s.RecordSale(domain.Sale{Items: []domain.SaleLine{{ProductID: "p1", Qty: 0}}}); !errors.Is(err, ErrValidation) {
		t.Fatalf("zero qty: expected ErrValidation, got %v", err)
	}

	p1, _ := s.GetProduct("p1")
	if p1.Stock != 20 {
		t.Fatalf("rejected sale must not touch stock, got %d", p1.Stock)
	}
}

func TestRecordSale_UpsertsCustomerByPhone(t *testing.T) {
	s := NewSeeded(nil)
	defer s.Close()

	line := []domain.SaleLine{{ProductID: "p2", Name: "Croissant", PriceCents: 250, Qty: 1}}

	if _, err := s.RecordSale(domain.Sale{Items: line, Customer: &domain.Customer{Name: "Ana", Phone: "555-0101"}}); err != nil {
		t.Fatalf("first sale: %v", err)
	}
	if _, err := s.RecordSale(domain.Sale{Items: line, Customer: &domain.Customer{Name: "Ana Torres", Phone: "555-0101", Notes: "gluten free"}}); err != nil {
		t.Fatalf("second sale: %v", err)
	}

	customers := s.Customers()
	if len(customers) != 1 {
		t.Fatalf("expected one customer per phone, got %d", len(customers))
	}
	if customers[0].Name != "Ana Torres" || customers[0].Notes != "gluten free" {
		t.Fatalf("expected latest record to win, got %+v", customers[0])
	}
}

func TestRecordSale_AnonymousCustomerNotStored(t *testing.T) {
	s := NewSeeded(nil)
	defer s.Close()

	_, err := s.RecordSale(domain.Sale{
		Items:    []domain.SaleLine{{ProductID: "p2", Name: "Croissant", PriceCents: 250, Qty: 1}},
		Customer: &domain.Customer{Name: "  ", Phone: "555-0199"},
	})
	if err != nil {
		t.Fatalf("RecordSale: %v", err)
	}
	if got := len(s.Customers()); got != 0 {
		t.Fatalf("blank-name customer must not be stored, got %d", got)
	}
}

func TestSaleTotalImmutableAfterPriceChange(t *testing.T) {
	s := NewSeeded(nil)
	defer s.Close()

	sale, err := s.RecordSale(domain.Sale{Items: []domain.SaleLine{
		{ProductID: "p1", Name: "Sourdough Loaf", PriceCents: 500, Qty: 2},
	}})
	if err != nil {
		t.Fatalf("RecordSale: %v", err)
	}

	if _, err := s.UpdateProduct("p1", domain.ProductPatch{PriceCents: int64Ptr(999)}); err != nil {
		t.Fatalf("UpdateProduct: %v", err)
	}

	stored := s.Sales()
	if len(stored) != 1 {
		t.Fatalf("expected 1 sale, got %d", len(stored))
	}
	if stored[0].TotalCents != sale.TotalCents || stored[0].Items[0].PriceCents != 500 {
		t.Fatalf("historical sale must keep its committed prices, got %+v", stored[0])
	}
}

func TestOneActivityPerMutation(t *testing.T) {
	s := New(nil)
	defer s.Close()

	p, _ := s.AddProduct(domain.Product{Name: "Scone", PriceCents: 150, Stock: 10})
	_, _ = s.UpdateProduct(p.ID, domain.ProductPatch{Stock: intPtr(9)})
	ing, _ := s.AddIngredient(domain.Ingredient{Name: "Sugar (kg)", Quantity: 5})
	_, _ = s.UpdateIngredient(ing.ID, domain.IngredientPatch{Quantity: intPtr(4)})
	_, _ = s.RecordSale(domain.Sale{Items: []domain.SaleLine{{ProductID: p.ID, Name: "Scone", PriceCents: 150, Qty: 1}}})
	_, _ = s.AddExpense(domain.Expense{Category: domain.ExpenseRent, AmountCents: 50000})
	_ = s.DeleteIngredient(ing.ID)
	_ = s.DeleteProduct(p.ID)
	s.UpdateSettings(domain.SettingsPatch{LowStockThreshold: intPtr(3)})

	wantTypes := []string{
		domain.ActivityAddProduct,
		domain.ActivityUpdateProduct,
		domain.ActivityAddIngredient,
		domain.ActivityUpdateIngredient,
		domain.ActivityRecordSale,
		domain.ActivityAddExpense,
		domain.ActivityDeleteIngredient,
		domain.ActivityDeleteProduct,
	}
	activities := s.Activities()
	if len(activities) != len(wantTypes) {
		t.Fatalf("expected %d activities, got %d", len(wantTypes), len(activities))
	}
	for i, want := range wantTypes {
		if activities[i].Type != want {
			t.Fatalf("activity %d: expected %s, got %s", i, want, activities[i].Type)
		}
	}
}

func TestAddExpense_Validation(t *testing.T) {
	s := New(nil)
	defer s.Close()

	if _, err := s.AddExpense(domain.Expense{Category: "Snacks", AmountCents: 100}); !errors.Is(err, ErrValidation) {
		t.Fatalf("unknown category: expected ErrValidation, got %v", err)
	}
	if _, err := s.AddExpense(domain.Expense{Category: domain.ExpenseRent, AmountCents: -1}); !errors.Is(err, ErrValidation) {
		t.Fatalf("negative amount: expected ErrValidation, got %v", err)
	}
}

func TestStats_RecomputedFromHistory(t *testing.T) {
	s := NewSeeded(nil)
	defer s.Close()

	_, _ = s.RecordSale(domain.Sale{Items: []domain.SaleLine{
		{ProductID: "p1", Name: "Sourdough Loaf", PriceCents: 500, Qty: 4},
		{ProductID: "p2", Name: "Croissant", PriceCents: 250, Qty: 1},
	}})
	_, _ = s.RecordSale(domain.Sale{Items: []domain.SaleLine{
		{ProductID: "p2", Name: "Croissant", PriceCents: 250, Qty: 2},
	}})
	_, _ = s.AddExpense(domain.Expense{Category: domain.ExpenseIngredients, AmountCents: 700})

	stats := s.Stats()
	wantIncome := int64(4*500 + 1*250 + 2*250)
	if stats.IncomeCents != wantIncome {
		t.Fatalf("expected income %d, got %d", wantIncome, stats.IncomeCents)
	}
	if stats.ExpenseCents != 700 {
		t.Fatalf("expected expenses 700, got %d", stats.ExpenseCents)
	}
	if stats.ProfitCents != wantIncome-700 {
		t.Fatalf("expected profit %d, got %d", wantIncome-700, stats.ProfitCents)
	}
	if stats.BestProduct != "Sourdough Loaf" {
		t.Fatalf("expected best Sourdough Loaf, got %s", stats.BestProduct)
	}
	if stats.WorstProduct != "Croissant" {
		t.Fatalf("expected worst Croissant, got %s", stats.WorstProduct)
	}
}

func TestStats_TieBreaksOnFirstSeen(t *testing.T) {
	s := NewSeeded(nil)
	defer s.Close()

	_, _ = s.RecordSale(domain.Sale{Items: []domain.SaleLine{
		{ProductID: "p1", Name: "Sourdough Loaf", PriceCents: 500, Qty: 2},
	}})
	_, _ = s.RecordSale(domain.Sale{Items: []domain.SaleLine{
		{ProductID: "p2", Name: "Croissant", PriceCents: 250, Qty: 2},
	}})

	stats := s.Stats()
	if stats.BestProduct != "Sourdough Loaf" || stats.WorstProduct != "Sourdough Loaf" {
		t.Fatalf("ties must break toward first-seen product, got best=%s worst=%s", stats.BestProduct, stats.WorstProduct)
	}
}

func TestStats_EmptyLedger(t *testing.T) {
	s := New(nil)
	defer s.Close()

	stats := s.Stats()
	if stats != (domain.Stats{}) {
		t.Fatalf("expected zero stats, got %+v", stats)
	}
}

func TestStockAlert_LowAtThresholdBoundary(t *testing.T) {
	alerter := &recordingAlerter{}
	s := NewSeeded(alerter)
	defer s.Close()

	// p3 starts at stock 5, threshold 5: exactly at the boundary.
	if _, err := s.UpdateProduct("p3", domain.ProductPatch{Stock: intPtr(5)}); err != nil {
		t.Fatalf("UpdateProduct: %v", err)
	}

	ok := waitFor(t, func() bool {
		low, _ := alerter.snapshot()
		return len(low) == 1
	})
	low, out := alerter.snapshot()
	if !ok || low[0] != "Chocolate Cake:5/5" {
		t.Fatalf("expected one low-stock alert at boundary, got low=%v out=%v", low, out)
	}
	if len(out) != 0 {
		t.Fatalf("expected no out-of-stock alert, got %v", out)
	}
}

func TestStockAlert_OutOfStockOnly(t *testing.T) {
	alerter := &recordingAlerter{}
	s := NewSeeded(alerter)
	defer s.Close()

	if _, err := s.RecordSale(domain.Sale{Items: []domain.SaleLine{
		{ProductID: "p3", Name: "Chocolate Cake", PriceCents: 2000, Qty: 5},
	}}); err != nil {
		t.Fatalf("RecordSale: %v", err)
	}

	ok := waitFor(t, func() bool {
		_, out := alerter.snapshot()
		return len(out) == 1
	})
	low, out := alerter.snapshot()
	if !ok || out[0] != "Chocolate Cake" {
		t.Fatalf("expected one out-of-stock alert, got %v", out)
	}
	// Zero stock is out-of-stock, never additionally low-stock.
	if len(low) != 0 {
		t.Fatalf("expected no low-stock alert at zero, got %v", low)
	}
}

func TestStockAlert_NoneAboveThreshold(t *testing.T) {
	alerter := &recordingAlerter{}
	s := NewSeeded(alerter)
	defer s.Close()

	if _, err := s.UpdateProduct("p1", domain.ProductPatch{Stock: intPtr(6)}); err != nil {
		t.Fatalf("UpdateProduct: %v", err)
	}

	// Give the dispatcher a moment; nothing should arrive.
	time.Sleep(50 * time.Millisecond)
	low, out := alerter.snapshot()
	if len(low) != 0 || len(out) != 0 {
		t.Fatalf("expected no alerts above threshold, got low=%v out=%v", low, out)
	}
}

func TestUpdateSettings_ClampsThreshold(t *testing.T) {
	s := New(nil)
	defer s.Close()

	settings := s.UpdateSettings(domain.SettingsPatch{LowStockThreshold: intPtr(-3)})
	if settings.LowStockThreshold != 0 {
		t.Fatalf("expected threshold clamped to 0, got %d", settings.LowStockThreshold)
	}

	settings = s.UpdateSettings(domain.SettingsPatch{CurrencySymbol: strPtr("€")})
	if settings.CurrencySymbol != "€" || settings.Language != "en" {
		t.Fatalf("patch must only touch provided fields, got %+v", settings)
	}

	if got := len(s.Activities()); got != 0 {
		t.Fatalf("settings changes are not activities, got %d", got)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	s := NewSeeded(nil)
	defer s.Close()

	_, _ = s.RecordSale(domain.Sale{
		Items:    []domain.SaleLine{{ProductID: "p1", Name: "Sourdough Loaf", PriceCents: 500, Qty: 2}},
		Customer: &domain.Customer{Name: "Ben", Phone: "555-0102"},
	})
	_, _ = s.AddExpense(domain.Expense{Category: domain.ExpenseUtilities, AmountCents: 1200, Note: "electricity"})
	s.UpdateSettings(domain.SettingsPatch{CurrencySymbol: strPtr("€"), LowStockThreshold: intPtr(7)})

	snap := s.Snapshot()

	restored := New(nil)
	defer restored.Close()
	restored.Restore(snap)

	if !reflect.DeepEqual(restored.Snapshot(), snap) {
		t.Fatal("snapshot round trip must be identity")
	}
	if got := len(restored.Activities()); got != len(s.Activities()) {
		t.Fatalf("restore must not append activities, got %d want %d", got, len(s.Activities()))
	}
}

func TestSnapshot_Deterministic(t *testing.T) {
	s := NewSeeded(nil)
	defer s.Close()

	first := s.Snapshot()
	second := s.Snapshot()
	if !reflect.DeepEqual(first, second) {
		t.Fatal("repeated snapshots of unchanged state must be identical")
	}
}

func TestReadersReturnCopies(t *testing.T) {
	s := NewSeeded(nil)
	defer s.Close()

	products := s.Products()
	products[0].Name = "tampered"

	fresh := s.Products()
	if fresh[0].Name == "tampered" {
		t.Fatal("reader must return a copy, not internal state")
	}
}
