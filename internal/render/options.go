package render

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidInput is returned when a request cannot be built from the given
// inputs or an option value is outside its type.
var ErrInvalidInput = errors.New("invalid input")

// DefaultPreserveDetails is the default line-adherence strength in percent.
const DefaultPreserveDetails = 90

// OptionKey names one field of Options.
type OptionKey string

const (
	KeyStyle             OptionKey = "style"
	KeyPreserveDetails   OptionKey = "preserveDetails"
	KeyLighting          OptionKey = "lighting"
	KeyAspectRatio       OptionKey = "aspectRatio"
	KeyImageSize         OptionKey = "imageSize"
	KeyEnvironment       OptionKey = "environment"
	KeyCustomInstruction OptionKey = "customInstruction"
)

// OptionKeys lists every settable key.
var OptionKeys = []OptionKey{
	KeyStyle, KeyPreserveDetails, KeyLighting, KeyAspectRatio,
	KeyImageSize, KeyEnvironment, KeyCustomInstruction,
}

// Options is the set of user-selectable rendering options. Fields are
// independent; no cross-field rule is enforced.
type Options struct {
	Style             Style       `json:"style"`
	PreserveDetails   int         `json:"preserveDetails"`
	Lighting          Lighting    `json:"lighting"`
	AspectRatio       AspectRatio `json:"aspectRatio"`
	ImageSize         ImageSize   `json:"imageSize"`
	Environment       Environment `json:"environment"`
	CustomInstruction string      `json:"customInstruction"`
}

// DefaultOptions returns the options a new session starts with.
func DefaultOptions() Options {
	return Options{
		Style:           StylePhotorealistic,
		PreserveDetails: DefaultPreserveDetails,
		Lighting:        LightingNatural,
		AspectRatio:     AspectSquare,
		ImageSize:       DefaultImageSize,
		Environment:     EnvironmentDowntown,
	}
}

// With returns a copy of o with exactly the named field replaced by value.
//
// Enumerated fields only accept members of their enumeration. PreserveDetails
// must be an integer; its 50-100 range is left to the input boundary.
func (o Options) With(key OptionKey, value string) (Options, error) {
	switch key {
	case KeyStyle:
		if _, ok := styleTable[Style(value)]; !ok {
			return o, invalidValue(key, value)
		}
		o.Style = Style(value)
	case KeyPreserveDetails:
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return o, fmt.Errorf("%w: %s must be an integer, got %q", ErrInvalidInput, key, value)
		}
		o.PreserveDetails = n
	case KeyLighting:
		if _, ok := lightingTable[Lighting(value)]; !ok {
			return o, invalidValue(key, value)
		}
		o.Lighting = Lighting(value)
	case KeyAspectRatio:
		if _, ok := aspectTable[AspectRatio(value)]; !ok {
			return o, invalidValue(key, value)
		}
		o.AspectRatio = AspectRatio(value)
	case KeyImageSize:
		if _, ok := sizeTable[ImageSize(value)]; !ok {
			return o, invalidValue(key, value)
		}
		o.ImageSize = ImageSize(value)
	case KeyEnvironment:
		if _, ok := environmentTable[Environment(value)]; !ok {
			return o, invalidValue(key, value)
		}
		o.Environment = Environment(value)
	case KeyCustomInstruction:
		o.CustomInstruction = value
	default:
		return o, fmt.Errorf("%w: unknown option %q", ErrInvalidInput, key)
	}
	return o, nil
}

// Get returns the string form of the named field.
func (o Options) Get(key OptionKey) (string, bool) {
	switch key {
	case KeyStyle:
		return string(o.Style), true
	case KeyPreserveDetails:
		return strconv.Itoa(o.PreserveDetails), true
	case KeyLighting:
		return string(o.Lighting), true
	case KeyAspectRatio:
		return string(o.AspectRatio), true
	case KeyImageSize:
		return string(o.ImageSize), true
	case KeyEnvironment:
		return string(o.Environment), true
	case KeyCustomInstruction:
		return o.CustomInstruction, true
	}
	return "", false
}

func invalidValue(key OptionKey, value string) error {
	return fmt.Errorf("%w: %q is not a valid %s", ErrInvalidInput, value, key)
}
