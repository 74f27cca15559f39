package stats

import (
	"errors"
	"fmt"

	"github.com/go-analyze/charts"
)

// ErrNoData is returned when a chart is requested for an empty summary.
var ErrNoData = errors.New("no expenses to chart")

// RenderChart draws the summary as a pie chart and returns PNG bytes.
func RenderChart(s Summary) ([]byte, error) {
	if s.Empty() {
		return nil, ErrNoData
	}

	values := make([]float64, 0, len(s.Categories))
	names := make([]string, 0, len(s.Categories))
	for _, c := range s.Categories {
		values = append(values, c.Total)
		names = append(names, c.Category)
	}

	p, err := charts.PieRender(
		values,
		charts.TitleOptionFunc(charts.TitleOption{
			Text: "Expense Breakdown - " + title(s),
		}),
		charts.LegendLabelsOptionFunc(names),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create chart: %w", err)
	}

	buf, err := p.Bytes()
	if err != nil {
		return nil, fmt.Errorf("failed to render chart: %w", err)
	}
	return buf, nil
}
