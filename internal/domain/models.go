package domain

import "time"

type Product struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	PriceCents int64  `json:"price_cents"`
	Stock      int    `json:"stock"`
}

type ProductPatch struct {
	Name       *string `json:"name,omitempty"`
	PriceCents *int64  `json:"price_cents,omitempty"`
	Stock      *int    `json:"stock,omitempty"`
}

type Ingredient struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Quantity  int        `json:"quantity"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

type IngredientPatch struct {
	Name      *string    `json:"name,omitempty"`
	Quantity  *int       `json:"quantity,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// Customer is keyed by phone number; repeat purchases overwrite name and
// notes (last write wins). Purchase totals are derived from sales history,
// never stored here.
type Customer struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Notes string `json:"notes"`
}

type SaleLine struct {
	ProductID  string `json:"product_id"`
	Name       string `json:"name"`
	PriceCents int64  `json:"price_cents"`
	Qty        int    `json:"qty"`
}

// Sale is immutable once committed. Items snapshot the cart lines at commit
// time, so later product price edits never change historical totals.
type Sale struct {
	ID         string     `json:"id"`
	Items      []SaleLine `json:"items"`
	Customer   *Customer  `json:"customer,omitempty"`
	TotalCents int64      `json:"total_cents"`
	At         time.Time  `json:"at"`
}

type Expense struct {
	ID          string    `json:"id"`
	Category    string    `json:"category"`
	AmountCents int64     `json:"amount_cents"`
	Note        string    `json:"note"`
	At          time.Time `json:"at"`
}

const (
	ExpenseUtilities   = "Utilities"
	ExpenseIngredients = "Ingredients"
	ExpenseSalaries    = "Salaries"
	ExpenseRent        = "Rent"
	ExpenseOther       = "Other"
)

func ValidExpenseCategory(category string) bool {
	switch category {
	case ExpenseUtilities, ExpenseIngredients, ExpenseSalaries, ExpenseRent, ExpenseOther:
		return true
	}
	return false
}

// Activity is an append-only audit record written alongside every ledger
// mutation. It is never read back for business logic.
type Activity struct {
	Type   string    `json:"type"`
	At     time.Time `json:"at"`
	Detail string    `json:"detail"`
}

const (
	ActivityAddProduct       = "add_product"
	ActivityUpdateProduct    = "update_product"
	ActivityDeleteProduct    = "delete_product"
	ActivityAddIngredient    = "add_ingredient"
	ActivityUpdateIngredient = "update_ingredient"
	ActivityDeleteIngredient = "delete_ingredient"
	ActivityRecordSale       = "record_sale"
	ActivityAddExpense       = "add_expense"
)

type Settings struct {
	CurrencySymbol    string `json:"currency_symbol"`
	LowStockThreshold int    `json:"low_stock_threshold"`
	Language          string `json:"language"`
	Theme             string `json:"theme"`
	DateFormat        string `json:"date_format"`
}

type SettingsPatch struct {
	CurrencySymbol    *string `json:"currency_symbol,omitempty"`
	LowStockThreshold *int    `json:"low_stock_threshold,omitempty"`
	Language          *string `json:"language,omitempty"`
	Theme             *string `json:"theme,omitempty"`
	DateFormat        *string `json:"date_format,omitempty"`
}

// Stats is recomputed from the full sales and expense history on every
// read; nothing here is cached.
type Stats struct {
	IncomeCents  int64  `json:"income_cents"`
	ExpenseCents int64  `json:"expense_cents"`
	ProfitCents  int64  `json:"profit_cents"`
	BestProduct  string `json:"best_product"`
	WorstProduct string `json:"worst_product"`
}

// Snapshot is the full persisted state of the ledger, serialized as one
// named record and restored verbatim on next launch.
type Snapshot struct {
	Products    []Product    `json:"products"`
	Ingredients []Ingredient `json:"ingredients"`
	Customers   []Customer   `json:"customers"`
	Sales       []Sale       `json:"sales"`
	Expenses    []Expense    `json:"expenses"`
	Activities  []Activity   `json:"activities"`
	Settings    Settings     `json:"settings"`
}

type Notification struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

const (
	NotifySuccess = "success"
	NotifyWarning = "warning"
	NotifyError   = "error"
	NotifyInfo    = "info"
)

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
	Role     string
}

const (
	RoleManager = "manager"
	RoleCashier = "cashier"
)
