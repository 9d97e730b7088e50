// Package report renders ledger data as CSV exports for spreadsheets.
package report

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"

	"bakerybms/client/internal/domain"
)

// Money renders cents with the configured currency symbol, e.g. "$5.00".
// Negative amounts keep the sign ahead of the symbol.
func Money(cents int64, symbol string) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%s%d.%02d", sign, symbol, cents/100, cents%100)
}

// SalesCSV writes one row per sale line so each product sold is visible,
// followed by a per-sale total row. The trailing summary block carries the
// derived stats for the whole export.
func SalesCSV(sales []domain.Sale, stats domain.Stats, settings domain.Settings) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write([]string{"sale_id", "date", "customer", "product", "qty", "unit_price", "line_total"}); err != nil {
		return nil, err
	}

	for _, sale := range sales {
		customer := ""
		if sale.Customer != nil {
			customer = sale.Customer.Name
		}
		date := sale.At.Format(settings.DateFormat)
		for _, line := range sale.Items {
			lineTotal := line.PriceCents * int64(line.Qty)
			if err := w.Write([]string{
				sale.ID,
				date,
				customer,
				line.Name,
				strconv.Itoa(line.Qty),
				Money(line.PriceCents, settings.CurrencySymbol),
				Money(lineTotal, settings.CurrencySymbol),
			}); err != nil {
				return nil, err
			}
		}
		if err := w.Write([]string{sale.ID, date, customer, "TOTAL", "", "", Money(sale.TotalCents, settings.CurrencySymbol)}); err != nil {
			return nil, err
		}
	}

	summary := [][]string{
		{},
		{"income", Money(stats.IncomeCents, settings.CurrencySymbol)},
		{"expenses", Money(stats.ExpenseCents, settings.CurrencySymbol)},
		{"profit", Money(stats.ProfitCents, settings.CurrencySymbol)},
		{"best_product", stats.BestProduct},
		{"worst_product", stats.WorstProduct},
	}
	for _, row := range summary {
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}

	w.Flush()
	return buf.Bytes(), w.Error()
}

// ExpensesCSV writes one row per expense plus a grand total.
func ExpensesCSV(expenses []domain.Expense, settings domain.Settings) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write([]string{"expense_id", "date", "category", "note", "amount"}); err != nil {
		return nil, err
	}

	var total int64
	for _, e := range expenses {
		total += e.AmountCents
		if err := w.Write([]string{
			e.ID,
			e.At.Format(settings.DateFormat),
			e.Category,
			e.Note,
			Money(e.AmountCents, settings.CurrencySymbol),
		}); err != nil {
			return nil, err
		}
	}
	if err := w.Write([]string{"", "", "", "TOTAL", Money(total, settings.CurrencySymbol)}); err != nil {
		return nil, err
	}

	w.Flush()
	return buf.Bytes(), w.Error()
}
