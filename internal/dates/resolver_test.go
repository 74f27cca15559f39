package dates

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

var refNow = time.Date(2026, 10, 16, 14, 30, 0, 0, time.UTC)

func TestResolve(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "today keyword", input: "today", want: "16-10-2026"},
		{name: "today keyword mixed case", input: "  ToDay ", want: "16-10-2026"},
		{name: "yesterday keyword", input: "yesterday", want: "15-10-2026"},
		{name: "dash four digit year", input: "18-10-2025", want: "18-10-2025"},
		{name: "slash two digit year", input: "18/10/25", want: "18-10-2025"},
		{name: "single digit day and month", input: "5/6/24", want: "05-06-2024"},
		{name: "mixed separators", input: "5-6/2024", want: "05-06-2024"},
		{name: "textual full month with year", input: "18 October 2025", want: "18-10-2025"},
		{name: "textual abbreviated month with short year", input: "18 oct 25", want: "18-10-2025"},
		{name: "textual with comma", input: "2 Sept, 2026", want: "02-09-2026"},
		{name: "textual without year uses current year", input: "18 oct", want: "18-10-2026"},
		{name: "ordinal suffix", input: "15th Oct", want: "15-10-2026"},
		{name: "ordinal suffix with year", input: "2nd Oct 2025", want: "02-10-2025"},
		{name: "abbreviation with dot", input: "1 jan.", want: "01-01-2026"},
		{name: "leap day", input: "29/02/2024", want: "29-02-2024"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := Resolve(tt.input, refNow)
			require.NoError(t, err)
			require.Equal(t, tt.want, Format(got))
		})
	}
}

func TestResolve_Unresolvable(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"",
		"   ",
		"tomorrow-ish",
		"next monday",
		"32/01/2025",
		"31/02/2025",
		"29/02/2025",
		"00/10/2025",
		"10/13/2025",
		"18 smarch",
		"18 smarch 2025",
		"2025-10-18",
		"18/10/2025/1",
		"oct 18",
	}

	for _, input := range inputs {
		t.Run(fmt.Sprintf("%q", input), func(t *testing.T) {
			t.Parallel()
			_, err := Resolve(input, refNow)
			require.ErrorIs(t, err, ErrUnresolvable)
		})
	}
}

func TestResolve_KeepsLocation(t *testing.T) {
	t.Parallel()

	loc := time.FixedZone("IST", 5*3600+1800)
	now := time.Date(2026, 10, 16, 23, 0, 0, 0, loc)

	got, err := Resolve("today", now)
	require.NoError(t, err)
	require.Equal(t, loc, got.Location())
	require.Equal(t, 0, got.Hour())
}

func TestResolve_CanonicalRoundTrip(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(t *rapid.T) {
		year := rapid.IntRange(2000, 2099).Draw(t, "year")
		month := rapid.IntRange(1, 12).Draw(t, "month")
		day := rapid.IntRange(1, 28).Draw(t, "day")
		form := rapid.IntRange(0, 3).Draw(t, "form")

		base := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
		var input string
		switch form {
		case 0:
			input = fmt.Sprintf("%d-%d-%d", day, month, year)
		case 1:
			input = fmt.Sprintf("%d/%d/%02d", day, month, year%100)
		case 2:
			input = fmt.Sprintf("%d %s %d", day, base.Month().String(), year)
		default:
			input = fmt.Sprintf("%d %s %02d", day, base.Month().String()[:3], year%100)
		}

		got, err := Resolve(input, refNow)
		if err != nil {
			t.Fatalf("Resolve(%q) failed: %v", input, err)
		}

		canonical := Format(got)
		if canonical != base.Format("02-01-2006") {
			t.Fatalf("Resolve(%q) = %s, want %s", input, canonical, base.Format("02-01-2006"))
		}

		again, err := Resolve(canonical, refNow)
		if err != nil {
			t.Fatalf("Resolve(%q) on canonical output failed: %v", canonical, err)
		}
		if Format(again) != canonical {
			t.Fatalf("canonical %s did not round-trip, got %s", canonical, Format(again))
		}
	})
}

func TestResolve_TwoDigitYearIsTwentyFirstCentury(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(t *rapid.T) {
		yy := rapid.IntRange(0, 99).Draw(t, "yy")
		month := rapid.IntRange(1, 12).Draw(t, "month")
		day := rapid.IntRange(1, 28).Draw(t, "day")

		short, err := Resolve(fmt.Sprintf("%d/%d/%02d", day, month, yy), refNow)
		if err != nil {
			t.Fatalf("short form failed: %v", err)
		}
		long, err := Resolve(fmt.Sprintf("%d/%d/%d", day, month, 2000+yy), refNow)
		if err != nil {
			t.Fatalf("long form failed: %v", err)
		}
		if !short.Equal(long) {
			t.Fatalf("short %s != long %s", Format(short), Format(long))
		}
		if short.Year() < 2000 || short.Year() > 2099 {
			t.Fatalf("year %d outside 20XX", short.Year())
		}
	})
}

func TestParseRow(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		value   string
		want    string
		wantErr bool
	}{
		{name: "canonical", value: "16-10-2026", want: "16-10-2026"},
		{name: "iso date", value: "2026-10-16", want: "16-10-2026"},
		{name: "rfc3339", value: "2026-10-15T18:30:00Z", want: "15-10-2026"},
		{name: "apps script timestamp", value: "2026-10-15T18:30:00.000Z", want: "15-10-2026"},
		{name: "padded", value: " 16-10-2026 ", want: "16-10-2026"},
		{name: "garbage", value: "yesterday", wantErr: true},
		{name: "empty", value: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParseRow(tt.value, time.UTC)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, Format(got))
		})
	}
}

func TestDayDiff(t *testing.T) {
	t.Parallel()

	a := time.Date(2026, 10, 10, 23, 0, 0, 0, time.UTC)
	b := time.Date(2026, 10, 16, 1, 0, 0, 0, time.UTC)
	require.Equal(t, 6, DayDiff(a, b))
	require.Equal(t, -6, DayDiff(b, a))
	require.Equal(t, 0, DayDiff(a, a))

	// Across a month boundary.
	c := time.Date(2026, 9, 30, 0, 0, 0, 0, time.UTC)
	d := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	require.Equal(t, 1, DayDiff(c, d))
}
