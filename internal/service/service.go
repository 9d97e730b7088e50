package service

import (
	"context"
	"fmt"
	"log"
	"strings"

	"bakerybms/client/internal/domain"
	"bakerybms/client/internal/ledger"
	"bakerybms/client/internal/notify"
	"bakerybms/client/internal/remote"
	"bakerybms/client/internal/snapshot"
)

// Service is the page-action layer: every mutating action goes through the
// offline reconciliation policy exactly once, via writeThrough. A nil
// remote client means permanent local mode (no backend configured), where
// mutations apply directly with no offline banner.
type Service struct {
	ledger *ledger.Store
	remote *remote.Client
	notify *notify.Engine
	snap   snapshot.Store
}

func New(ledgerStore *ledger.Store, remoteClient *remote.Client, engine *notify.Engine, snap snapshot.Store) *Service {
	if snap == nil {
		snap = snapshot.Noop{}
	}
	return &Service{
		ledger: ledgerStore,
		remote: remoteClient,
		notify: engine,
		snap:   snap,
	}
}

// writeThrough is the dual-write reconciliation procedure from the
// reliability design, shared by every mutation site:
//
//  1. attempt the remote write;
//  2. on success apply the server record when one came back, else the
//     locally built payload;
//  3. on a connectivity failure apply the local payload and post a
//     non-blocking offline notice; the operation is locally committed;
//  4. on an application failure leave the ledger untouched and surface
//     the server's message.
//
// After any local apply the snapshot is persisted best-effort.
func writeThrough[T any](ctx context.Context, s *Service, op string,
	attempt func(context.Context) (*T, error),
	applyRemote func(T) (T, error),
	applyLocal func() (T, error)) (T, error) {

	var zero T

	commit := func(apply func() (T, error)) (T, error) {
		result, err := apply()
		if err != nil {
			return zero, err
		}
		s.persist(ctx, op)
		return result, nil
	}

	if s.remote == nil || attempt == nil {
		return commit(applyLocal)
	}

	rec, err := attempt(ctx)
	switch {
	case err == nil:
		if rec != nil {
			return commit(func() (T, error) { return applyRemote(*rec) })
		}
		return commit(applyLocal)
	case remote.IsConnectivity(err):
		log.Printf("[service] WARN: %s: %v, applying locally", op, err)
		s.notify.NotifyInfo("Backend offline", "backend offline, using local data")
		return commit(applyLocal)
	default:
		s.notify.NotifyError("Request failed", fmt.Sprintf("%s: %s", op, err.Error()))
		return zero, err
	}
}

func (s *Service) persist(ctx context.Context, op string) {
	if err := s.snap.Save(ctx, s.ledger.Snapshot()); err != nil {
		log.Printf("[service] WARN: %s: failed to persist snapshot: %v", op, err)
	}
}

func (s *Service) AddProduct(ctx context.Context, p domain.Product) (domain.Product, error) {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" || p.PriceCents < 0 || p.Stock < 0 {
		return domain.Product{}, fmt.Errorf("product needs a name and non-negative price and stock: %w", ledger.ErrValidation)
	}

	return writeThrough(ctx, s, "add product",
		func(ctx context.Context) (*domain.Product, error) { return s.remote.CreateProduct(ctx, p) },
		s.ledger.AddProduct,
		func() (domain.Product, error) { return s.ledger.AddProduct(p) },
	)
}

func (s *Service) UpdateProduct(ctx context.Context, id string, patch domain.ProductPatch) (domain.Product, error) {
	return writeThrough(ctx, s, "update product",
		func(ctx context.Context) (*domain.Product, error) { return s.remote.UpdateProduct(ctx, id, patch) },
		s.ledger.ReplaceProduct,
		func() (domain.Product, error) { return s.ledger.UpdateProduct(id, patch) },
	)
}

func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	applyLocal := func() (struct{}, error) { return struct{}{}, s.ledger.DeleteProduct(id) }
	_, err := writeThrough(ctx, s, "delete product",
		func(ctx context.Context) (*struct{}, error) { return nil, s.remote.DeleteProduct(ctx, id) },
		func(struct{}) (struct{}, error) { return applyLocal() },
		applyLocal,
	)
	return err
}

func (s *Service) AddIngredient(ctx context.Context, ing domain.Ingredient) (domain.Ingredient, error) {
	ing.Name = strings.TrimSpace(ing.Name)
	if ing.Name == "" || ing.Quantity < 0 {
		return domain.Ingredient{}, fmt.Errorf("ingredient needs a name and non-negative quantity: %w", ledger.ErrValidation)
	}

	return writeThrough(ctx, s, "add ingredient",
		func(ctx context.Context) (*domain.Ingredient, error) { return s.remote.CreateIngredient(ctx, ing) },
		s.ledger.AddIngredient,
		func() (domain.Ingredient, error) { return s.ledger.AddIngredient(ing) },
	)
}

func (s *Service) UpdateIngredient(ctx context.Context, id string, patch domain.IngredientPatch) (domain.Ingredient, error) {
	return writeThrough(ctx, s, "update ingredient",
		func(ctx context.Context) (*domain.Ingredient, error) { return s.remote.UpdateIngredient(ctx, id, patch) },
		s.ledger.ReplaceIngredient,
		func() (domain.Ingredient, error) { return s.ledger.UpdateIngredient(id, patch) },
	)
}

func (s *Service) DeleteIngredient(ctx context.Context, id string) error {
	applyLocal := func() (struct{}, error) { return struct{}{}, s.ledger.DeleteIngredient(id) }
	_, err := writeThrough(ctx, s, "delete ingredient",
		func(ctx context.Context) (*struct{}, error) { return nil, s.remote.DeleteIngredient(ctx, id) },
		func(struct{}) (struct{}, error) { return applyLocal() },
		applyLocal,
	)
	return err
}

// RecordSale commits a cart as a sale and returns the committed record so
// the caller can render a receipt.
func (s *Service) RecordSale(ctx context.Context, items []domain.SaleLine, customer *domain.Customer) (domain.Sale, error) {
	if len(items) == 0 {
		return domain.Sale{}, fmt.Errorf("cart is empty: %w", ledger.ErrValidation)
	}
	for _, line := range items {
		if line.Qty < 1 {
			return domain.Sale{}, fmt.Errorf("line qty must be at least 1: %w", ledger.ErrValidation)
		}
	}

	local := domain.Sale{Items: items, Customer: customer}
	sale, err := writeThrough(ctx, s, "record sale",
		func(ctx context.Context) (*domain.Sale, error) { return s.remote.CreateSale(ctx, local) },
		s.ledger.RecordSale,
		func() (domain.Sale, error) { return s.ledger.RecordSale(local) },
	)
	if err != nil {
		return domain.Sale{}, err
	}

	symbol := s.ledger.Settings().CurrencySymbol
	s.notify.NotifySuccess("Sale recorded", fmt.Sprintf("Total %s%d.%02d", symbol, sale.TotalCents/100, sale.TotalCents%100))
	return sale, nil
}

func (s *Service) AddExpense(ctx context.Context, e domain.Expense) (domain.Expense, error) {
	if !domain.ValidExpenseCategory(e.Category) || e.AmountCents < 0 {
		return domain.Expense{}, fmt.Errorf("expense needs a known category and non-negative amount: %w", ledger.ErrValidation)
	}

	return writeThrough(ctx, s, "add expense",
		func(ctx context.Context) (*domain.Expense, error) { return s.remote.CreateExpense(ctx, e) },
		s.ledger.AddExpense,
		func() (domain.Expense, error) { return s.ledger.AddExpense(e) },
	)
}

func (s *Service) SaveSettings(ctx context.Context, patch domain.SettingsPatch) (domain.Settings, error) {
	merged := mergeSettings(s.ledger.Settings(), patch)

	return writeThrough(ctx, s, "save settings",
		func(ctx context.Context) (*domain.Settings, error) { return s.remote.SaveSettings(ctx, merged) },
		func(confirmed domain.Settings) (domain.Settings, error) { return s.ledger.SetSettings(confirmed), nil },
		func() (domain.Settings, error) { return s.ledger.UpdateSettings(patch), nil },
	)
}

func mergeSettings(current domain.Settings, patch domain.SettingsPatch) domain.Settings {
	if patch.CurrencySymbol != nil {
		current.CurrencySymbol = *patch.CurrencySymbol
	}
	if patch.LowStockThreshold != nil {
		current.LowStockThreshold = max(0, *patch.LowStockThreshold)
	}
	if patch.Language != nil {
		current.Language = *patch.Language
	}
	if patch.Theme != nil {
		current.Theme = *patch.Theme
	}
	if patch.DateFormat != nil {
		current.DateFormat = *patch.DateFormat
	}
	return current
}

// LoadState hydrates the ledger: the persisted snapshot wins; a fresh
// device with a reachable backend seeds from the dashboard aggregate; an
// unreachable backend just means starting from the seed data.
func (s *Service) LoadState(ctx context.Context) error {
	snap, ok, err := s.snap.Load(ctx)
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	if ok {
		s.ledger.Restore(*snap)
		return nil
	}

	if s.remote == nil {
		return nil
	}
	fetched, err := s.remote.FetchDashboard(ctx)
	if err != nil {
		if remote.IsConnectivity(err) {
			log.Printf("[service] WARN: seed fetch skipped, backend unreachable: %v", err)
			return nil
		}
		return fmt.Errorf("seed from backend: %w", err)
	}
	if fetched != nil {
		s.ledger.Restore(*fetched)
	}
	return nil
}

func (s *Service) SaveState(ctx context.Context) error {
	return s.snap.Save(ctx, s.ledger.Snapshot())
}

func (s *Service) Products() []domain.Product       { return s.ledger.Products() }
func (s *Service) Ingredients() []domain.Ingredient { return s.ledger.Ingredients() }
func (s *Service) Customers() []domain.Customer     { return s.ledger.Customers() }
func (s *Service) Sales() []domain.Sale             { return s.ledger.Sales() }
func (s *Service) Expenses() []domain.Expense       { return s.ledger.Expenses() }
func (s *Service) Activities() []domain.Activity    { return s.ledger.Activities() }
func (s *Service) Settings() domain.Settings        { return s.ledger.Settings() }
func (s *Service) Stats() domain.Stats              { return s.ledger.Stats() }
