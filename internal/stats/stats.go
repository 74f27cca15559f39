// Package stats aggregates ledger rows into per-category totals for a time window.
package stats

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"gitlab.com/yelinaung/ledger-chat/internal/dates"
	"gitlab.com/yelinaung/ledger-chat/internal/models"
)

// Window is a reporting period relative to now.
type Window int

const (
	// Today covers the current calendar date.
	Today Window = iota
	// Week covers the trailing seven days, today included.
	Week
	// Month covers the current calendar month.
	Month
)

// String implements fmt.Stringer.
func (w Window) String() string {
	switch w {
	case Today:
		return "today"
	case Week:
		return "week"
	case Month:
		return "month"
	default:
		return "unknown"
	}
}

// ParseWindow maps a command word to a Window.
func ParseWindow(s string) (Window, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "today":
		return Today, true
	case "week":
		return Week, true
	case "month":
		return Month, true
	default:
		return 0, false
	}
}

// Contains reports whether date falls inside the window.
func (w Window) Contains(date, now time.Time) bool {
	switch w {
	case Today:
		return dates.DayDiff(date, now) == 0
	case Week:
		diff := dates.DayDiff(date, now)
		return diff >= 0 && diff <= 6
	case Month:
		return date.Year() == now.Year() && date.Month() == now.Month()
	default:
		return false
	}
}

// CategoryTotal is the spend for one category.
type CategoryTotal struct {
	Category string
	Total    float64
	Count    int
}

// Summary is the result of aggregating one window.
type Summary struct {
	Window     Window
	Now        time.Time
	Categories []CategoryTotal
	Total      float64
	Count      int
}

// Empty reports whether the window had no non-zero category.
func (s Summary) Empty() bool {
	return len(s.Categories) == 0
}

// Summarize groups rows by category for the window. Rows with an
// unparsable date or amount are skipped. Categories whose total is zero
// are left out of both the list and the overall count.
func Summarize(rows []models.LedgerRow, w Window, now time.Time) Summary {
	type acc struct {
		total float64
		count int
	}

	var order []string
	byCategory := make(map[string]*acc)

	for _, row := range rows {
		date, err := dates.ParseRow(row.Date, now.Location())
		if err != nil || !w.Contains(date, now) {
			continue
		}
		amount, err := decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(row.Amount), ",", ""))
		if err != nil {
			continue
		}

		category := strings.TrimSpace(row.Category)
		a, ok := byCategory[category]
		if !ok {
			a = &acc{}
			byCategory[category] = a
			order = append(order, category)
		}
		a.total += amount.InexactFloat64()
		a.count++
	}

	summary := Summary{Window: w, Now: now}
	for _, category := range order {
		a := byCategory[category]
		if a.total == 0 {
			continue
		}
		summary.Categories = append(summary.Categories, CategoryTotal{
			Category: category,
			Total:    a.total,
			Count:    a.count,
		})
		summary.Total += a.total
		summary.Count += a.count
	}
	return summary
}

// Render formats the summary as a chat reply.
func Render(s Summary, currency string) string {
	if s.Empty() {
		return "No expenses recorded " + periodPhrase(s.Window) + "."
	}

	var sb strings.Builder
	sb.WriteString("📊 ")
	sb.WriteString(title(s))
	sb.WriteString("\n")
	for _, c := range s.Categories {
		fmt.Fprintf(&sb, "\n%s: %s (%d)", c.Category, FormatAmount(c.Total, currency), c.Count)
	}
	fmt.Fprintf(&sb, "\n\nTotal: %s across %d %s", FormatAmount(s.Total, currency), s.Count, plural(s.Count))
	return sb.String()
}

// FormatAmount renders a total with two decimals and the currency prefix.
func FormatAmount(v float64, currency string) string {
	return currency + decimal.NewFromFloat(v).StringFixed(2)
}

func title(s Summary) string {
	switch s.Window {
	case Today:
		return "Expenses for today (" + dates.Format(s.Now) + ")"
	case Week:
		return "Expenses for the last 7 days"
	case Month:
		return "Expenses for " + s.Now.Format("January 2006")
	default:
		return "Expenses"
	}
}

func periodPhrase(w Window) string {
	switch w {
	case Today:
		return "today"
	case Week:
		return "in the last 7 days"
	case Month:
		return "this month"
	default:
		return "for this period"
	}
}

func plural(n int) string {
	if n == 1 {
		return "transaction"
	}
	return "transactions"
}
