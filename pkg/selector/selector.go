// Package selector chooses the rendition to fetch from a master playlist.
package selector

import (
	"errors"

	"github.com/agleyzer/hlsfetch/pkg/variant"
)

// ErrNoVariants is returned when there is nothing to choose from.
var ErrNoVariants = errors.New("master playlist contains no variants")

// Selector picks one variant. Implementations must not modify the slice.
type Selector interface {
	Select(variants []variant.Variant) (variant.Variant, error)
}

// Func adapts a function to the Selector interface.
type Func func(variants []variant.Variant) (variant.Variant, error)

// Select calls f.
func (f Func) Select(variants []variant.Variant) (variant.Variant, error) {
	return f(variants)
}

// First selects the first-listed variant.
type First struct{}

// Select returns variants[0].
func (First) Select(variants []variant.Variant) (variant.Variant, error) {
	if len(variants) == 0 {
		return variant.Variant{}, ErrNoVariants
	}
	return variants[0], nil
}
