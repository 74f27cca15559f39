package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"gitlab.com/yelinaung/ledger-chat/internal/dates"
	"gitlab.com/yelinaung/ledger-chat/internal/logger"
)

// maxDateInputLength caps the date reply forwarded to the model.
const maxDateInputLength = 100

var dateSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"date": {
			Type:        genai.TypeString,
			Description: `Date as YYYY-MM-DD, or "missing" if the text is not a date`,
		},
	},
	Required: []string{"date"},
}

// InterpretDate asks the model to read a date reply the local resolver
// could not parse. It returns dates.ErrUnresolvable when the model finds
// no date, and an ErrExtractionFailed error when the call itself fails.
func (c *Client) InterpretDate(ctx context.Context, input string, now time.Time) (time.Time, error) {
	input = SanitizeForPrompt(input, maxDateInputLength)
	if input == "" {
		return time.Time{}, dates.ErrUnresolvable
	}

	prompt := fmt.Sprintf(`Convert this date expression to a calendar date: "%s"

Today is %s (%s).

Rules:
- Resolve relative expressions like "last Monday" or "2 days ago" against today.
- If no year is given, use the current year.
- If the text is not a date, use "missing".

Return JSON only: {"date": "YYYY-MM-DD"}`,
		input,
		now.Format(isoDateLayout),
		now.Weekday(),
	)

	jsonText, err := c.generateJSON(ctx, prompt, dateSchema)
	if err != nil {
		logger.Log.Warn().Err(err).Msg("InterpretDate: Gemini call failed")
		return time.Time{}, err
	}

	var resp struct {
		Date string `json:"date"`
	}
	if err := json.Unmarshal([]byte(jsonText), &resp); err != nil {
		return time.Time{}, fmt.Errorf("%w: failed to parse JSON response: %w", ErrExtractionFailed, err)
	}

	value := strings.TrimSpace(resp.Date)
	if value == "" || strings.EqualFold(value, missingValue) {
		return time.Time{}, dates.ErrUnresolvable
	}

	t, err := time.ParseInLocation(isoDateLayout, value, now.Location())
	if err != nil {
		logger.Log.Debug().Str("date", value).Msg("InterpretDate: unparsable date from model")
		return time.Time{}, dates.ErrUnresolvable
	}
	return t, nil
}
