// Package view renders the basket as one table per store.
package view

import (
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"

	"github.com/andrewbyteforge/pricecomparison/services/shopper/internal/domain"
)

// EmptyRowText is shown in a store's table when it has no rows.
const EmptyRowText = "No items in basket"

// EmptyBasketText replaces the total when a store's total is zero.
const EmptyBasketText = "Your basket is empty"

// Row is one rendered basket line.
type Row struct {
	ItemID string
	Name   string
	Price  decimal.Decimal
}

// Cells returns the text of each column.
func (r Row) Cells() []string {
	return []string{r.Name, domain.FormatPrice(r.Price), r.ItemID}
}

// Table is the rendered state of one store.
type Table struct {
	Store domain.Store
	Rows  []Row
	Total decimal.Decimal
}

// PlaceholderVisible reports whether the empty-basket notice is shown in
// place of the total.
func (t Table) PlaceholderVisible() bool { return t.Total.IsZero() }

// TotalVisible is the inverse of PlaceholderVisible.
func (t Table) TotalVisible() bool { return !t.PlaceholderVisible() }

// TotalText is the formatted total, e.g. "£2.50".
func (t Table) TotalText() string { return domain.FormatPrice(t.Total) }

// EmptyRowVisible reports whether the "no items" row is shown.
func (t Table) EmptyRowVisible() bool { return len(t.Rows) == 0 }

// View holds one table per store. It is not safe for concurrent use; the
// basket state serialises access.
type View struct {
	tables map[domain.Store]*Table
	styles Styles
}

// New returns a view with an empty table for every store.
func New() *View {
	v := &View{tables: make(map[domain.Store]*Table, len(domain.Stores)), styles: DefaultStyles()}
	v.Clear()
	return v
}

// Render rebuilds every table from items. The same items always give the
// same rows.
func (v *View) Render(items []domain.BasketItem) {
	v.Clear()
	for _, it := range items {
		v.InsertRow(it)
	}
}

// InsertRow appends a row to the item's store table and recomputes its total.
func (v *View) InsertRow(item domain.BasketItem) {
	t, ok := v.tables[item.Store]
	if !ok {
		return
	}
	t.Rows = append(t.Rows, Row{ItemID: item.ItemID, Name: item.Name, Price: item.Price})
	t.recompute()
}

// RemoveRow removes the row for itemID from whichever table holds it. It
// reports whether a row was removed.
func (v *View) RemoveRow(itemID string) bool {
	for _, t := range v.tables {
		i := slices.IndexFunc(t.Rows, func(r Row) bool { return r.ItemID == itemID })
		if i < 0 {
			continue
		}
		t.Rows = slices.Delete(t.Rows, i, i+1)
		t.recompute()
		return true
	}
	return false
}

// Clear empties every table.
func (v *View) Clear() {
	for _, st := range domain.Stores {
		v.tables[st] = &Table{Store: st, Total: decimal.Zero}
	}
}

// Table returns a copy of one store's table.
func (v *View) Table(store domain.Store) Table {
	t, ok := v.tables[store]
	if !ok {
		return Table{Store: store, Total: decimal.Zero}
	}
	return Table{Store: t.Store, Rows: slices.Clone(t.Rows), Total: t.Total}
}

// recompute sets the total to the sum of the rendered row prices.
func (t *Table) recompute() {
	total := decimal.Zero
	for _, r := range t.Rows {
		total = total.Add(r.Price)
	}
	t.Total = total
}

// String renders every store table in display order.
func (v *View) String() string {
	var sb strings.Builder
	for _, st := range domain.Stores {
		sb.WriteString(v.styles.renderTable(v.Table(st)))
		sb.WriteString("\n")
	}
	return sb.String()
}

// RenderStore renders a single store's table.
func (v *View) RenderStore(store domain.Store) string {
	return v.styles.renderTable(v.Table(store))
}

// Styles holds the lipgloss styles used for rendering.
type Styles struct {
	Title  lipgloss.Style
	Header lipgloss.Style
	Cell   lipgloss.Style
	Muted  lipgloss.Style
	Total  lipgloss.Style
}

// DefaultStyles returns the terminal styles.
func DefaultStyles() Styles {
	return Styles{
		Title:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#8BC34A")),
		Header: lipgloss.NewStyle().Bold(true).Padding(0, 1),
		Cell:   lipgloss.NewStyle().Padding(0, 1),
		Muted:  lipgloss.NewStyle().Foreground(lipgloss.Color("#7a8599")),
		Total:  lipgloss.NewStyle().Bold(true),
	}
}

var headers = []string{"Item", "Price", "ID"}

func (s Styles) renderTable(t Table) string {
	var sb strings.Builder
	sb.WriteString(s.Title.Render(string(t.Store)))
	sb.WriteString("\n")

	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, r := range t.Rows {
		for i, cell := range r.Cells() {
			widths[i] = max(widths[i], lipgloss.Width(cell))
		}
	}
	if t.EmptyRowVisible() {
		widths[0] = max(widths[0], lipgloss.Width(EmptyRowText))
	}
	// Padding is counted in the rendered width.
	for i := range widths {
		widths[i] += 2
	}

	sep := s.Muted.Render("|")
	writeLine := func(style lipgloss.Style, cells []string) {
		for i, c := range cells {
			sb.WriteString(style.Width(widths[i]).Render(c))
			if i < len(cells)-1 {
				sb.WriteString(sep)
			}
		}
		sb.WriteString("\n")
	}

	writeLine(s.Header, headers)
	total := len(widths) - 1
	for _, w := range widths {
		total += w
	}
	sb.WriteString(s.Muted.Render(strings.Repeat("-", total)))
	sb.WriteString("\n")

	if t.EmptyRowVisible() {
		sb.WriteString(s.Muted.Padding(0, 1).Render(EmptyRowText))
		sb.WriteString("\n")
	}
	for _, r := range t.Rows {
		writeLine(s.Cell, r.Cells())
	}

	if t.PlaceholderVisible() {
		sb.WriteString(s.Muted.Render(EmptyBasketText))
	} else {
		sb.WriteString(s.Total.Render("Total: " + t.TotalText()))
	}
	sb.WriteString("\n")
	return sb.String()
}
