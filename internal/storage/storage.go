package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/eugenenazirov/pallet-allocator/internal/domain"
)

var (
	// ErrNumberingConflict indicates the stored numbering moved since it was loaded.
	ErrNumberingConflict = errors.New("numbering state changed since it was loaded")
)

// Storage is the capacity reference store plus numbering persistence.
type Storage interface {
	Tiers(ctx context.Context) (domain.TierTable, error)
	ReplaceTiers(ctx context.Context, category domain.Category, tiers []domain.Tier) error
	LoadNumbering(ctx context.Context) (domain.NumberingState, error)
	// SaveNumbering stores next only if the current state still equals expected.
	SaveNumbering(ctx context.Context, expected, next domain.NumberingState) error
	Close() error
}

// DefaultTiers returns a copy of the tier table shipped with the service.
func DefaultTiers() domain.TierTable {
	return defaultTiers.Clone()
}

var defaultTiers = domain.TierTable{
	tier(domain.CategoryDefault, 1, 64, 1, 0, 0),
	tier(domain.CategoryDefault, 65, 128, 2, 0, 0),
	tier(domain.CategoryDefault, 129, 144, 1, 1, 0),
	tier(domain.CategoryDefault, 145, 240, 0, 3, 0),
	tier(domain.CategoryDefault, 241, 320, 0, 0, 5),
	tier(domain.CategoryDefault, 321, 640, 10, 0, 0),
	tier(domain.CategoryDefault, 641, 1120, 0, 14, 0),
	tier(domain.CategoryDefault, 1121, 1760, 10, 14, 0),
	tier(domain.CategoryPoland, 1, 64, 1, 0, 0),
	tier(domain.CategoryPoland, 65, 128, 2, 0, 0),
	tier(domain.CategoryPoland, 129, 192, 3, 0, 0),
	tier(domain.CategoryPoland, 193, 640, 10, 0, 0),
	tier(domain.CategoryKievit, 1, 56, 1, 0, 0),
	tier(domain.CategoryKievit, 57, 126, 1, 1, 0),
	tier(domain.CategoryKievit, 127, 980, 0, 14, 0),
	tier(domain.CategoryKievit, 981, 1540, 10, 14, 0),
}

func tier(category domain.Category, lo, hi, euro, industrial, alternative int) domain.Tier {
	return domain.Tier{
		Category: category,
		MinValue: lo,
		MaxValue: hi,
		Counts: map[domain.CarrierKey]int{
			domain.CarrierEuro:            euro,
			domain.CarrierIndustrial:      industrial,
			domain.CarrierAlternativeEuro: alternative,
		},
	}
}

// MemoryStorage keeps tiers and numbering in-memory and guards access with a RWMutex.
type MemoryStorage struct {
	mu        sync.RWMutex
	tiers     domain.TierTable
	numbering domain.NumberingState
}

// NewMemoryStorage initialises storage with a copy of the default tiers.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		tiers: DefaultTiers(),
	}
}

// Tiers returns a defensive copy of the tier table.
func (s *MemoryStorage) Tiers(_ context.Context) (domain.TierTable, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.tiers.Clone(), nil
}

// ReplaceTiers validates and swaps the rows of one category.
func (s *MemoryStorage) ReplaceTiers(_ context.Context, category domain.Category, tiers []domain.Tier) error {
	rows, err := normalizeTiers(category, tiers)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := make(domain.TierTable, 0, len(s.tiers)+len(rows))
	for _, t := range s.tiers {
		if t.Category != category {
			next = append(next, t)
		}
	}
	s.tiers = append(next, rows...)
	return nil
}

// LoadNumbering returns the last committed numbering state.
func (s *MemoryStorage) LoadNumbering(_ context.Context) (domain.NumberingState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.numbering, nil
}

// SaveNumbering stores next if the current state still equals expected.
func (s *MemoryStorage) SaveNumbering(_ context.Context, expected, next domain.NumberingState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.numbering != expected {
		return ErrNumberingConflict
	}
	s.numbering = next
	return nil
}

// Close is a no-op for in-memory storage.
func (s *MemoryStorage) Close() error {
	return nil
}

// normalizeTiers stamps the category on every row and validates the result.
func normalizeTiers(category domain.Category, tiers []domain.Tier) (domain.TierTable, error) {
	if !category.Valid() {
		return nil, fmt.Errorf("category %q: %w", category, domain.ErrInvalidTiers)
	}
	if len(tiers) == 0 {
		return nil, fmt.Errorf("category %s: at least one tier required: %w", category, domain.ErrInvalidTiers)
	}

	rows := domain.TierTable(tiers).Clone()
	for i := range rows {
		if rows[i].Category != "" && rows[i].Category != category {
			return nil, fmt.Errorf("row %d belongs to %s, not %s: %w", i+1, rows[i].Category, category, domain.ErrInvalidTiers)
		}
		rows[i].Category = category
		for key := range rows[i].Counts {
			if !knownKey(key) {
				return nil, fmt.Errorf("row %d: unknown carrier type %q: %w", i+1, key, domain.ErrInvalidTiers)
			}
		}
	}
	if err := rows.Validate(); err != nil {
		return nil, err
	}
	return rows.ForCategory(category), nil
}

func knownKey(key domain.CarrierKey) bool {
	for _, k := range domain.CarrierKeys {
		if k == key {
			return true
		}
	}
	return false
}
