// Package categories resolves user input to category names using the fixed
// set plus custom categories registered in the ledger.
package categories

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/singleflight"

	"gitlab.com/yelinaung/ledger-chat/internal/ledger"
	"gitlab.com/yelinaung/ledger-chat/internal/logger"
	"gitlab.com/yelinaung/ledger-chat/internal/models"
)

var (
	// ErrUnresolvable indicates the input matched no menu position or name.
	ErrUnresolvable = errors.New("category could not be resolved")
	// ErrNameTooShort indicates a custom name shorter than the minimum after trimming.
	ErrNameTooShort = fmt.Errorf("category name must be at least %d characters", models.MinCategoryNameLength)
	// ErrNameTooLong indicates a custom name longer than the maximum.
	ErrNameTooLong = fmt.Errorf("category name must be at most %d characters", models.MaxCategoryNameLength)
)

const fetchKey = "custom_categories"

// Registry serves the category menu. Custom categories are cached for ttl;
// a ttl of zero fetches them on every call.
type Registry struct {
	store ledger.CategoryStore
	ttl   time.Duration
	now   func() time.Time

	mu          sync.RWMutex
	customs     []string
	fetchedAt   time.Time
	fresh       bool
	hasSnapshot bool
	generation  uint64

	group singleflight.Group
}

// NewRegistry creates a Registry backed by store.
func NewRegistry(store ledger.CategoryStore, ttl time.Duration) *Registry {
	if ttl < 0 {
		ttl = 0
	}
	return &Registry{
		store: store,
		ttl:   ttl,
		now:   time.Now,
	}
}

// Menu returns the numbered category list: fixed categories, then custom
// categories in discovery order, then Other.
func (r *Registry) Menu(ctx context.Context) ([]string, error) {
	customs, err := r.customCategories(ctx)
	if err != nil {
		return nil, err
	}
	return BuildMenu(customs), nil
}

// Register validates name and saves it to the ledger. The cache is
// invalidated whether or not the save succeeds.
func (r *Registry) Register(ctx context.Context, name string) (string, error) {
	name, err := ValidateName(name)
	if err != nil {
		return "", err
	}

	defer r.invalidate()

	if err := r.store.SaveCustomCategory(ctx, name); err != nil {
		return "", fmt.Errorf("failed to register category: %w", err)
	}

	logger.Log.Info().Str("category", name).Msg("Custom category registered")
	return name, nil
}

// invalidate drops the cached custom categories.
func (r *Registry) invalidate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fresh = false
	r.generation++
	r.group.Forget(fetchKey)
}

func (r *Registry) customCategories(ctx context.Context) ([]string, error) {
	r.mu.RLock()
	if r.fresh && r.ttl > 0 && r.now().Sub(r.fetchedAt) < r.ttl {
		customs := r.customs
		r.mu.RUnlock()
		return customs, nil
	}
	generation := r.generation
	r.mu.RUnlock()

	v, err, _ := r.group.Do(fetchKey, func() (any, error) {
		entries, err := r.store.CustomCategories(ctx)
		if err != nil {
			return nil, err
		}
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name)
		}

		r.mu.Lock()
		r.customs = names
		r.fetchedAt = r.now()
		// A registration during the fetch leaves the result stale.
		r.fresh = r.generation == generation
		r.hasSnapshot = true
		r.mu.Unlock()
		return names, nil
	})
	if err != nil {
		r.mu.RLock()
		stale, customs := r.hasSnapshot, r.customs
		r.mu.RUnlock()
		if stale {
			logger.Log.Warn().Err(err).Msg("Custom category refresh failed, using cached list")
			return customs, nil
		}
		if errors.Is(err, ledger.ErrReadFailed) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ledger.ErrReadFailed, err)
	}

	names, _ := v.([]string)
	return names, nil
}

// BuildMenu concatenates the fixed categories, the custom names and Other.
// Custom names that repeat an earlier entry (case-insensitively) are skipped.
func BuildMenu(customs []string) []string {
	menu := make([]string, 0, len(models.FixedCategories)+len(customs)+1)
	seen := make(map[string]struct{}, cap(menu))
	add := func(name string) {
		key := strings.ToLower(name)
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		menu = append(menu, name)
	}

	for _, name := range models.FixedCategories {
		add(name)
	}
	seen[strings.ToLower(models.OtherCategory)] = struct{}{}
	for _, name := range customs {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		add(name)
	}
	return append(menu, models.OtherCategory)
}

// Resolve maps a menu position (1-based) or a case-insensitive name to a
// choice. The Other slot resolves to models.Other().
func Resolve(input string, menu []string) (models.CategoryChoice, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return models.CategoryChoice{}, ErrUnresolvable
	}

	if n, err := strconv.Atoi(input); err == nil {
		if n < 1 || n > len(menu) {
			return models.CategoryChoice{}, ErrUnresolvable
		}
		return choiceFor(menu[n-1]), nil
	}

	for _, name := range menu {
		if strings.EqualFold(name, input) {
			return choiceFor(name), nil
		}
	}
	return models.CategoryChoice{}, ErrUnresolvable
}

func choiceFor(name string) models.CategoryChoice {
	if name == models.OtherCategory {
		return models.Other()
	}
	return models.Concrete(name)
}

// ValidateName trims name and checks its length in characters.
func ValidateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	n := utf8.RuneCountInString(name)
	if n < models.MinCategoryNameLength {
		return "", ErrNameTooShort
	}
	if n > models.MaxCategoryNameLength {
		return "", ErrNameTooLong
	}
	return name, nil
}

// RenderMenu formats menu as a numbered list, one entry per line.
func RenderMenu(menu []string) string {
	var sb strings.Builder
	for i, name := range menu {
		if i > 0 {
			sb.WriteByte('\n')
		}
		fmt.Fprintf(&sb, "%d. %s", i+1, name)
	}
	return sb.String()
}
