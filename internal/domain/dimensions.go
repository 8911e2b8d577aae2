package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Width and height limits for made-to-measure panels, in centimetres.
const (
	MinWidthCM  = 50
	MaxWidthCM  = 1000
	MinHeightCM = 30
	MaxHeightCM = 270
)

// ErrDimensionsInvalid indicates the requested dimensions fall outside the
// producible range.
var ErrDimensionsInvalid = errors.New("dimensions: invalid")

// PleatDensity encodes how tightly the fabric is gathered, e.g. "1x2" means
// two widths of fabric per width of window.
type PleatDensity string

const (
	Pleat1x1 PleatDensity = "1x1"
	Pleat1x2 PleatDensity = "1x2"
	Pleat1x3 PleatDensity = "1x3"
)

// ParsePleatDensity normalises and validates a pleat density token.
func ParsePleatDensity(raw string) (PleatDensity, error) {
	token := strings.ToLower(strings.TrimSpace(raw))
	switch PleatDensity(token) {
	case Pleat1x1, Pleat1x2, Pleat1x3:
		return PleatDensity(token), nil
	}
	return "", fmt.Errorf("%w: unknown pleat density %q", ErrDimensionsInvalid, raw)
}

// Multiplier returns the fabric multiplier encoded after the "x" token.
// An unrecognised density multiplies by one.
func (p PleatDensity) Multiplier() float64 {
	parts := strings.SplitN(string(p), "x", 2)
	if len(parts) != 2 {
		return 1
	}
	mult, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil || mult <= 0 {
		return 1
	}
	return float64(mult)
}

// Dimensions captures the customer-requested measurements for a single panel.
type Dimensions struct {
	WidthCM  float64      `json:"widthCm"`
	HeightCM float64      `json:"heightCm"`
	Pleat    PleatDensity `json:"pleat"`
}

// IsZero reports whether any measurement is missing. A zero-valued dimension
// set means no quote should be attempted.
func (d Dimensions) IsZero() bool {
	return d.WidthCM == 0 || d.HeightCM == 0 || strings.TrimSpace(string(d.Pleat)) == ""
}

// Validate checks the measurements against the producible range.
func (d Dimensions) Validate() error {
	if d.WidthCM < MinWidthCM || d.WidthCM > MaxWidthCM {
		return fmt.Errorf("%w: width must be between %d and %d cm", ErrDimensionsInvalid, MinWidthCM, MaxWidthCM)
	}
	if d.HeightCM < MinHeightCM || d.HeightCM > MaxHeightCM {
		return fmt.Errorf("%w: height must be between %d and %d cm", ErrDimensionsInvalid, MinHeightCM, MaxHeightCM)
	}
	if _, err := ParsePleatDensity(string(d.Pleat)); err != nil {
		return err
	}
	return nil
}

// Key renders the dimension tuple in the canonical form used inside line keys.
func (d Dimensions) Key() string {
	return fmt.Sprintf("%sx%s|%s", trimFloat(d.WidthCM), trimFloat(d.HeightCM), d.Pleat)
}

func trimFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
