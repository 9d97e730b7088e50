package ledger

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"bakerybms/client/internal/domain"
	"bakerybms/client/internal/xid"
)

var (
	ErrValidation = errors.New("invalid input")
	ErrNotFound   = errors.New("not found")
)

// Alerter receives stock alerts after mutations commit. Dispatch is
// fire-and-forget: a failed or slow alerter never fails a mutation.
type Alerter interface {
	NotifyLowStock(name string, stock int, threshold int) string
	NotifyOutOfStock(name string) string
}

type noopAlerter struct{}

func (noopAlerter) NotifyLowStock(string, int, int) string { return "" }
func (noopAlerter) NotifyOutOfStock(string) string         { return "" }

// stockCheck captures a product's state at commit time. The threshold is
// read under the same lock as the mutation so a later settings change
// cannot alter an already-queued check.
type stockCheck struct {
	name      string
	stock     int
	threshold int
}

// Store is the single source of truth for the commerce ledger: products,
// ingredients, customers, sales, expenses, activity trail, and settings.
// It is an explicitly constructed state container; the application root
// owns one instance and tests construct their own.
//
// Stock checks triggered by mutations are posted to a queue consumed by a
// background goroutine, so alert dispatch never runs inside the mutating
// call and can never re-enter the store mid-mutation.
type Store struct {
	mu          sync.Mutex
	products    map[string]domain.Product
	ingredients map[string]domain.Ingredient
	customers   map[string]domain.Customer
	sales       []domain.Sale
	expenses    []domain.Expense
	activities  []domain.Activity
	settings    domain.Settings
	closed      bool

	checks chan stockCheck
	done   chan struct{}
}

func New(alerter Alerter) *Store {
	if alerter == nil {
		alerter = noopAlerter{}
	}
	s := &Store{
		products:    make(map[string]domain.Product),
		ingredients: make(map[string]domain.Ingredient),
		customers:   make(map[string]domain.Customer),
		settings: domain.Settings{
			CurrencySymbol:    "$",
			LowStockThreshold: 5,
			Language:          "en",
			Theme:             "system",
			DateFormat:        "2006-01-02",
		},
		checks: make(chan stockCheck, 64),
		done:   make(chan struct{}),
	}

	go func() {
		defer close(s.done)
		for check := range s.checks {
			if check.stock == 0 {
				alerter.NotifyOutOfStock(check.name)
			} else if check.stock <= check.threshold {
				alerter.NotifyLowStock(check.name, check.stock, check.threshold)
			}
		}
	}()

	return s
}

// NewSeeded returns a store pre-populated with the demo bakery catalog.
func NewSeeded(alerter Alerter) *Store {
	s := New(alerter)

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range []domain.Product{
		{ID: "p1", Name: "Sourdough Loaf", PriceCents: 500, Stock: 20},
		{ID: "p2", Name: "Croissant", PriceCents: 250, Stock: 50},
		{ID: "p3", Name: "Chocolate Cake", PriceCents: 2000, Stock: 5},
	} {
		s.products[p.ID] = p
	}
	now := time.Now().UTC()
	flourExpiry := now.AddDate(0, 0, 20)
	butterExpiry := now.AddDate(0, 0, 10)
	for _, ing := range []domain.Ingredient{
		{ID: "i1", Name: "Flour (kg)", Quantity: 50, ExpiresAt: &flourExpiry},
		{ID: "i2", Name: "Butter (kg)", Quantity: 10, ExpiresAt: &butterExpiry},
	} {
		s.ingredients[ing.ID] = ing
	}

	return s
}

// Close drains the stock-check queue and stops the dispatcher. Mutations
// after Close still update state but emit no alerts.
func (s *Store) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.checks)
	s.mu.Unlock()
	<-s.done
}

// queueCheckLocked posts a stock check for dispatch after the current
// mutation commits. Non-blocking: if the queue is full the alert is
// dropped rather than stalling the mutation.
func (s *Store) queueCheckLocked(p domain.Product) {
	if s.closed {
		return
	}
	select {
	case s.checks <- stockCheck{name: p.Name, stock: p.Stock, threshold: s.settings.LowStockThreshold}:
	default:
	}
}

func (s *Store) appendActivityLocked(activityType string, detail string) {
	s.activities = append(s.activities, domain.Activity{
		Type:   activityType,
		At:     time.Now().UTC(),
		Detail: detail,
	})
}

// AddProduct appends a new product. A pre-assigned ID (a server-confirmed
// record) passes through; otherwise a fresh id is generated.
func (s *Store) AddProduct(p domain.Product) (domain.Product, error) {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return domain.Product{}, fmt.Errorf("product name required: %w", ErrValidation)
	}
	if p.PriceCents < 0 || p.Stock < 0 {
		return domain.Product{}, fmt.Errorf("price and stock must not be negative: %w", ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID == "" {
		p.ID = xid.New("p")
	}
	s.products[p.ID] = p
	s.appendActivityLocked(domain.ActivityAddProduct, fmt.Sprintf("id=%s,name=%s,price=%d,stock=%d", p.ID, p.Name, p.PriceCents, p.Stock))
	s.queueCheckLocked(p)
	return p, nil
}

// UpdateProduct merges the patch into an existing product. The stock check
// re-runs only when the patch touches stock.
func (s *Store) UpdateProduct(id string, patch domain.ProductPatch) (domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.products[id]
	if !ok {
		return domain.Product{}, fmt.Errorf("product %s: %w", id, ErrNotFound)
	}

	updated := existing
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return domain.Product{}, fmt.Errorf("product name required: %w", ErrValidation)
		}
		updated.Name = name
	}
	if patch.PriceCents != nil {
		if *patch.PriceCents < 0 {
			return domain.Product{}, fmt.Errorf("price must not be negative: %w", ErrValidation)
		}
		updated.PriceCents = *patch.PriceCents
	}
	if patch.Stock != nil {
		if *patch.Stock < 0 {
			return domain.Product{}, fmt.Errorf("stock must not be negative: %w", ErrValidation)
		}
		updated.Stock = *patch.Stock
	}

	s.products[id] = updated
	s.appendActivityLocked(domain.ActivityUpdateProduct, fmt.Sprintf("id=%s,name=%s,price=%d,stock=%d", updated.ID, updated.Name, updated.PriceCents, updated.Stock))
	if patch.Stock != nil {
		s.queueCheckLocked(updated)
	}
	return updated, nil
}

// ReplaceProduct overwrites a product with a server-authoritative record.
func (s *Store) ReplaceProduct(p domain.Product) (domain.Product, error) {
	if p.ID == "" {
		return domain.Product{}, fmt.Errorf("product id required: %w", ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.products[p.ID]
	if !ok {
		return domain.Product{}, fmt.Errorf("product %s: %w", p.ID, ErrNotFound)
	}

	s.products[p.ID] = p
	s.appendActivityLocked(domain.ActivityUpdateProduct, fmt.Sprintf("id=%s,name=%s,price=%d,stock=%d", p.ID, p.Name, p.PriceCents, p.Stock))
	if p.Stock != existing.Stock {
		s.queueCheckLocked(p)
	}
	return p, nil
}

// DeleteProduct removes a product. Deleting an absent id is a no-op, not
// an error, so retried deletes converge on the same state.
func (s *Store) DeleteProduct(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[id]; !ok {
		return nil
	}
	delete(s.products, id)
	s.appendActivityLocked(domain.ActivityDeleteProduct, "id="+id)
	return nil
}

func (s *Store) AddIngredient(ing domain.Ingredient) (domain.Ingredient, error) {
	ing.Name = strings.TrimSpace(ing.Name)
	if ing.Name == "" {
		return domain.Ingredient{}, fmt.Errorf("ingredient name required: %w", ErrValidation)
	}
	if ing.Quantity < 0 {
		return domain.Ingredient{}, fmt.Errorf("quantity must not be negative: %w", ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if ing.ID == "" {
		ing.ID = xid.New("i")
	}
	s.ingredients[ing.ID] = ing
	s.appendActivityLocked(domain.ActivityAddIngredient, fmt.Sprintf("id=%s,name=%s,qty=%d", ing.ID, ing.Name, ing.Quantity))
	return ing, nil
}

func (s *Store) UpdateIngredient(id string, patch domain.IngredientPatch) (domain.Ingredient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.ingredients[id]
	if !ok {
		return domain.Ingredient{}, fmt.Errorf("ingredient %s: %w", id, ErrNotFound)
	}

	updated := existing
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return domain.Ingredient{}, fmt.Errorf("ingredient name required: %w", ErrValidation)
		}
		updated.Name = name
	}
	if patch.Quantity != nil {
		if *patch.Quantity < 0 {
			return domain.Ingredient{}, fmt.Errorf("quantity must not be negative: %w", ErrValidation)
		}
		updated.Quantity = *patch.Quantity
	}
	if patch.ExpiresAt != nil {
		expiry := patch.ExpiresAt.UTC()
		updated.ExpiresAt = &expiry
	}

	s.ingredients[id] = updated
	s.appendActivityLocked(domain.ActivityUpdateIngredient, fmt.Sprintf("id=%s,name=%s,qty=%d", updated.ID, updated.Name, updated.Quantity))
	return updated, nil
}

func (s *Store) ReplaceIngredient(ing domain.Ingredient) (domain.Ingredient, error) {
	if ing.ID == "" {
		return domain.Ingredient{}, fmt.Errorf("ingredient id required: %w", ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.ingredients[ing.ID]; !ok {
		return domain.Ingredient{}, fmt.Errorf("ingredient %s: %w", ing.ID, ErrNotFound)
	}
	s.ingredients[ing.ID] = ing
	s.appendActivityLocked(domain.ActivityUpdateIngredient, fmt.Sprintf("id=%s,name=%s,qty=%d", ing.ID, ing.Name, ing.Quantity))
	return ing, nil
}

func (s *Store) DeleteIngredient(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.ingredients[id]; !ok {
		return nil
	}
	delete(s.ingredients, id)
	s.appendActivityLocked(domain.ActivityDeleteIngredient, "id="+id)
	return nil
}

// RecordSale commits a sale atomically: it recomputes the total from the
// line items, deducts stock (floored at zero; an oversell is absorbed, not
// rejected), upserts the customer by phone when a name is given, appends
// the sale and its activity record, and queues a stock check for every
// product the sale touched. ID and timestamp are filled when empty so a
// server-confirmed sale keeps its identity.
func (s *Store) RecordSale(sale domain.Sale) (domain.Sale, error) {
	if len(sale.Items) == 0 {
		return domain.Sale{}, fmt.Errorf("sale needs at least one item: %w", ErrValidation)
	}
	for _, line := range sale.Items {
		if line.Qty < 1 {
			return domain.Sale{}, fmt.Errorf("line qty must be at least 1: %w", ErrValidation)
		}
		if line.PriceCents < 0 {
			return domain.Sale{}, fmt.Errorf("line price must not be negative: %w", ErrValidation)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if sale.ID == "" {
		sale.ID = xid.New("s")
	}
	if sale.At.IsZero() {
		sale.At = time.Now().UTC()
	}

	total := int64(0)
	items := make([]domain.SaleLine, len(sale.Items))
	copy(items, sale.Items)
	sale.Items = items
	for _, line := range sale.Items {
		total += line.PriceCents * int64(line.Qty)
	}
	sale.TotalCents = total

	touched := make([]domain.Product, 0, len(sale.Items))
	for _, line := range sale.Items {
		p, ok := s.products[line.ProductID]
		if !ok {
			continue
		}
		p.Stock = max(0, p.Stock-line.Qty)
		s.products[line.ProductID] = p
		touched = append(touched, p)
	}

	if sale.Customer != nil {
		customer := *sale.Customer
		sale.Customer = &customer
		if strings.TrimSpace(customer.Name) != "" {
			s.customers[customer.Phone] = customer
		}
	}

	s.sales = append(s.sales, sale)
	s.appendActivityLocked(domain.ActivityRecordSale, fmt.Sprintf("id=%s,items=%d,total=%d", sale.ID, len(sale.Items), sale.TotalCents))
	for _, p := range touched {
		s.queueCheckLocked(p)
	}
	return sale, nil
}

func (s *Store) AddExpense(e domain.Expense) (domain.Expense, error) {
	if !domain.ValidExpenseCategory(e.Category) {
		return domain.Expense{}, fmt.Errorf("unknown expense category %q: %w", e.Category, ErrValidation)
	}
	if e.AmountCents < 0 {
		return domain.Expense{}, fmt.Errorf("amount must not be negative: %w", ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if e.ID == "" {
		e.ID = xid.New("e")
	}
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	s.expenses = append(s.expenses, e)
	s.appendActivityLocked(domain.ActivityAddExpense, fmt.Sprintf("id=%s,category=%s,amount=%d", e.ID, e.Category, e.AmountCents))
	return e, nil
}

// UpdateSettings shallow-merges the patch. A negative threshold is clamped
// to zero; there is no further validation.
func (s *Store) UpdateSettings(patch domain.SettingsPatch) domain.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()

	if patch.CurrencySymbol != nil {
		s.settings.CurrencySymbol = *patch.CurrencySymbol
	}
	if patch.LowStockThreshold != nil {
		s.settings.LowStockThreshold = max(0, *patch.LowStockThreshold)
	}
	if patch.Language != nil {
		s.settings.Language = *patch.Language
	}
	if patch.Theme != nil {
		s.settings.Theme = *patch.Theme
	}
	if patch.DateFormat != nil {
		s.settings.DateFormat = *patch.DateFormat
	}
	return s.settings
}

// SetSettings replaces the settings wholesale with a server-confirmed record.
func (s *Store) SetSettings(settings domain.Settings) domain.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()

	settings.LowStockThreshold = max(0, settings.LowStockThreshold)
	s.settings = settings
	return s.settings
}

func (s *Store) Settings() domain.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

func (s *Store) Products() []domain.Product {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b domain.Product) int {
		if a.Name == b.Name {
			return strings.Compare(a.ID, b.ID)
		}
		return strings.Compare(a.Name, b.Name)
	})
	return out
}

func (s *Store) GetProduct(id string) (domain.Product, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	return p, ok
}

func (s *Store) Ingredients() []domain.Ingredient {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Ingredient, 0, len(s.ingredients))
	for _, ing := range s.ingredients {
		out = append(out, cloneIngredient(ing))
	}
	slices.SortFunc(out, func(a, b domain.Ingredient) int {
		if a.Name == b.Name {
			return strings.Compare(a.ID, b.ID)
		}
		return strings.Compare(a.Name, b.Name)
	})
	return out
}

func (s *Store) Customers() []domain.Customer {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Customer, 0, len(s.customers))
	for _, c := range s.customers {
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b domain.Customer) int {
		return strings.Compare(a.Phone, b.Phone)
	})
	return out
}

func (s *Store) Sales() []domain.Sale {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Sale, 0, len(s.sales))
	for _, sale := range s.sales {
		out = append(out, cloneSale(sale))
	}
	return out
}

func (s *Store) Expenses() []domain.Expense {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Expense, len(s.expenses))
	copy(out, s.expenses)
	return out
}

func (s *Store) Activities() []domain.Activity {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Activity, len(s.activities))
	copy(out, s.activities)
	return out
}

// Stats derives income, expenses, profit, and the best/worst selling
// products from the full history on every call. Ties on cumulative
// quantity break toward the product name first encountered in sales order.
func (s *Store) Stats() domain.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := domain.Stats{}
	totals := make(map[string]int)
	firstSeen := make(map[string]int)

	for _, sale := range s.sales {
		stats.IncomeCents += sale.TotalCents
		for _, line := range sale.Items {
			if _, ok := firstSeen[line.Name]; !ok {
				firstSeen[line.Name] = len(firstSeen)
			}
			totals[line.Name] += line.Qty
		}
	}
	for _, e := range s.expenses {
		stats.ExpenseCents += e.AmountCents
	}
	stats.ProfitCents = stats.IncomeCents - stats.ExpenseCents

	for name, qty := range totals {
		if stats.BestProduct == "" ||
			qty > totals[stats.BestProduct] ||
			(qty == totals[stats.BestProduct] && firstSeen[name] < firstSeen[stats.BestProduct]) {
			stats.BestProduct = name
		}
		if stats.WorstProduct == "" ||
			qty < totals[stats.WorstProduct] ||
			(qty == totals[stats.WorstProduct] && firstSeen[name] < firstSeen[stats.WorstProduct]) {
			stats.WorstProduct = name
		}
	}
	return stats
}

// Snapshot captures the full entity set for persistence. Map-backed
// entities are sorted by key so repeated snapshots of the same state are
// byte-identical.
func (s *Store) Snapshot() domain.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := domain.Snapshot{
		Products:    make([]domain.Product, 0, len(s.products)),
		Ingredients: make([]domain.Ingredient, 0, len(s.ingredients)),
		Customers:   make([]domain.Customer, 0, len(s.customers)),
		Sales:       make([]domain.Sale, 0, len(s.sales)),
		Expenses:    make([]domain.Expense, len(s.expenses)),
		Activities:  make([]domain.Activity, len(s.activities)),
		Settings:    s.settings,
	}
	for _, p := range s.products {
		snap.Products = append(snap.Products, p)
	}
	slices.SortFunc(snap.Products, func(a, b domain.Product) int { return strings.Compare(a.ID, b.ID) })
	for _, ing := range s.ingredients {
		snap.Ingredients = append(snap.Ingredients, cloneIngredient(ing))
	}
	slices.SortFunc(snap.Ingredients, func(a, b domain.Ingredient) int { return strings.Compare(a.ID, b.ID) })
	for _, c := range s.customers {
		snap.Customers = append(snap.Customers, c)
	}
	slices.SortFunc(snap.Customers, func(a, b domain.Customer) int { return strings.Compare(a.Phone, b.Phone) })
	for _, sale := range s.sales {
		snap.Sales = append(snap.Sales, cloneSale(sale))
	}
	copy(snap.Expenses, s.expenses)
	copy(snap.Activities, s.activities)
	return snap
}

// Restore replaces the entire state with a previously captured snapshot.
// No activities or stock checks are emitted: restoring is not a mutation
// of the ledger, it is the ledger.
func (s *Store) Restore(snap domain.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.products = make(map[string]domain.Product, len(snap.Products))
	for _, p := range snap.Products {
		s.products[p.ID] = p
	}
	s.ingredients = make(map[string]domain.Ingredient, len(snap.Ingredients))
	for _, ing := range snap.Ingredients {
		s.ingredients[ing.ID] = cloneIngredient(ing)
	}
	s.customers = make(map[string]domain.Customer, len(snap.Customers))
	for _, c := range snap.Customers {
		s.customers[c.Phone] = c
	}
	s.sales = make([]domain.Sale, 0, len(snap.Sales))
	for _, sale := range snap.Sales {
		s.sales = append(s.sales, cloneSale(sale))
	}
	s.expenses = make([]domain.Expense, len(snap.Expenses))
	copy(s.expenses, snap.Expenses)
	s.activities = make([]domain.Activity, len(snap.Activities))
	copy(s.activities, snap.Activities)
	s.settings = snap.Settings
}

func cloneSale(src domain.Sale) domain.Sale {
	dup := src
	items := make([]domain.SaleLine, len(src.Items))
	copy(items, src.Items)
	dup.Items = items
	if src.Customer != nil {
		customer := *src.Customer
		dup.Customer = &customer
	}
	return dup
}

func cloneIngredient(src domain.Ingredient) domain.Ingredient {
	dup := src
	if src.ExpiresAt != nil {
		expiry := *src.ExpiresAt
		dup.ExpiresAt = &expiry
	}
	return dup
}
