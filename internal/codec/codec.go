// Package codec implements the per-vendor wire codecs.
//
// DESIGN: Each codec converts one vendor wire shape to and from the universal
// body. The forward direction (ToUniversal) never fails: malformed input
// degrades to an empty-messages body with defaulted scalars. The reverse
// direction (FromUniversal) first asks the fidelity engine whether the stored
// original payload can be returned verbatim, then rebuilds field by field,
// preferring raw fragments whose origin matches the target vendor.
//
// FLOW:
//  1. Registry.ForProvider(tag) returns the codec for a provider tag
//  2. codec.ToUniversal(raw) parses the wire body
//  3. caller mutates the universal body (optional)
//  4. codec.FromUniversal(body) serializes back out
//
// To add a vendor: implement Codec and register it in NewRegistry.
package codec

import (
	"errors"
	"fmt"

	"github.com/llmwire/llmwire/internal/universal"
)

// Codec is the two-way contract for one vendor wire shape.
// Codecs are stateless and safe for concurrent use.
type Codec interface {
	// Name returns the codec identifier (e.g. "anthropic").
	Name() string

	// Provider returns the provider tag this codec serves.
	Provider() universal.Provider

	// ToUniversal parses a raw vendor body into the universal form.
	// It never fails; malformed input degrades to an empty-messages body.
	ToUniversal(raw []byte) *universal.Body

	// FromUniversal serializes a universal body into this vendor's wire
	// shape. It fails only when a stored original fragment is structurally
	// invalid for the target shape.
	FromUniversal(body *universal.Body) ([]byte, error)
}

// ErrUnsupportedProvider reports a provider tag no codec is registered for.
// It indicates programmer error, not bad wire data.
var ErrUnsupportedProvider = errors.New("unsupported provider")

// ErrInvalidFragment reports an original fragment that cannot legally appear
// in the target wire shape.
var ErrInvalidFragment = errors.New("invalid original fragment")

// fragmentErr builds the descriptive error for a bad fragment, naming the
// offending field.
func fragmentErr(field, reason string) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalidFragment, field, reason)
}
