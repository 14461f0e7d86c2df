// Package sitelist stores the user's ordered list of site specifiers in the
// synced key-value namespace. Duplicates are kept as entered.
package sitelist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/SujathaSimmala2829/Focus-blocker/internal/focus/domain"
	"github.com/SujathaSimmala2829/Focus-blocker/internal/focus/repos/kv"
)

// KeyBlockedSites is the key holding the JSON array of specifiers.
const KeyBlockedSites = "blockedSites"

var (
	// ErrEmptySpecifier is returned when adding a blank specifier.
	ErrEmptySpecifier = errors.New("site specifier must not be empty")
	// ErrIndexOutOfRange is returned by RemoveAt for an invalid position.
	ErrIndexOutOfRange = errors.New("site index out of range")
)

// Repository reads and edits the site list.
type Repository struct {
	ns kv.Namespace
}

// NewRepository returns a Repository over the given namespace.
func NewRepository(ns kv.Namespace) *Repository {
	return &Repository{ns: ns}
}

// List returns the site list in insertion order; an unset list is empty.
func (r *Repository) List(ctx context.Context) ([]string, error) {
	values, err := r.ns.Get(ctx, KeyBlockedSites)
	if err != nil {
		return nil, fmt.Errorf("%w: load site list: %v", domain.ErrStoreUnavailable, err)
	}
	sites := []string{}
	if raw, ok := values[KeyBlockedSites]; ok {
		if err := json.Unmarshal(raw, &sites); err != nil {
			return nil, fmt.Errorf("%w: decode site list: %v", domain.ErrStoreUnavailable, err)
		}
	}
	return sites, nil
}

// Add appends the trimmed specifiers and returns the new list. Nothing is
// written when any specifier is blank.
func (r *Repository) Add(ctx context.Context, specifiers ...string) ([]string, error) {
	if len(specifiers) == 0 {
		return nil, ErrEmptySpecifier
	}
	trimmed := make([]string, 0, len(specifiers))
	for _, s := range specifiers {
		s = strings.TrimSpace(s)
		if s == "" {
			return nil, ErrEmptySpecifier
		}
		trimmed = append(trimmed, s)
	}
	sites, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	sites = append(sites, trimmed...)
	return sites, r.Replace(ctx, sites)
}

// RemoveAt deletes the entry at index and returns the new list.
func (r *Repository) RemoveAt(ctx context.Context, index int) ([]string, error) {
	sites, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(sites) {
		return nil, fmt.Errorf("%w: %d (have %d)", ErrIndexOutOfRange, index, len(sites))
	}
	sites = append(sites[:index], sites[index+1:]...)
	return sites, r.Replace(ctx, sites)
}

// Replace overwrites the whole list.
func (r *Repository) Replace(ctx context.Context, sites []string) error {
	if sites == nil {
		sites = []string{}
	}
	data, err := json.Marshal(sites)
	if err != nil {
		return fmt.Errorf("encode site list: %w", err)
	}
	if err := r.ns.Set(ctx, map[string][]byte{KeyBlockedSites: data}); err != nil {
		return fmt.Errorf("%w: save site list: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}
