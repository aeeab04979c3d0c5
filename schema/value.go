package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"gopkg.in/yaml.v3"
)

// MeasureValue is the value of a metric at one analysis: either a number or a
// string (e.g. the quality gate "Level" status). Strings are carried unconverted.
type MeasureValue struct {
	num    float64
	text   string
	isText bool
}

// NumberValue creates a numeric measure value.
func NumberValue(v float64) MeasureValue {
	return MeasureValue{num: v}
}

// TextValue creates a string measure value.
func TextValue(s string) MeasureValue {
	return MeasureValue{text: s, isText: true}
}

// ParseMeasureValue returns a numeric value when s parses as a finite float, a string value otherwise.
// "NaN" and "Inf" stay strings since JSON has no encoding for them.
func ParseMeasureValue(s string) MeasureValue {
	if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		return NumberValue(f)
	}
	return TextValue(s)
}

// IsText reports whether the value is a string.
func (v MeasureValue) IsText() bool { return v.isText }

// Float returns the numeric value and whether the value is numeric.
func (v MeasureValue) Float() (float64, bool) {
	if v.isText {
		return 0, false
	}
	return v.num, true
}

// Text returns the string value, or the number rendered without trailing zeros.
func (v MeasureValue) Text() string {
	if v.isText {
		return v.text
	}
	return strconv.FormatFloat(v.num, 'f', -1, 64)
}

// String implements fmt.Stringer.
func (v MeasureValue) String() string { return v.Text() }

// Equal reports whether both values have the same kind and content.
func (v MeasureValue) Equal(o MeasureValue) bool {
	if v.isText != o.isText {
		return false
	}
	if v.isText {
		return v.text == o.text
	}
	return v.num == o.num
}

// Ptr returns a pointer to a copy of v, convenient for SeriesPoint.Y.
func (v MeasureValue) Ptr() *MeasureValue {
	return &v
}

// MarshalJSON encodes the value as a bare JSON number or string.
func (v MeasureValue) MarshalJSON() ([]byte, error) {
	if v.isText {
		return json.Marshal(v.text)
	}
	return json.Marshal(v.num)
}

// UnmarshalJSON accepts a JSON number or string.
func (v *MeasureValue) UnmarshalJSON(data []byte) error {
	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		*v = NumberValue(f)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("measure value must be a number or a string: %w", err)
	}
	*v = TextValue(s)
	return nil
}

// UnmarshalYAML accepts a YAML scalar; ints and floats become numbers, anything else a string.
func (v *MeasureValue) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: measure value must be a scalar", node.Line)
	}
	switch node.Tag {
	case "!!int", "!!float":
		f, err := strconv.ParseFloat(node.Value, 64)
		if err != nil {
			return fmt.Errorf("line %d: %w", node.Line, err)
		}
		*v = NumberValue(f)
	default:
		*v = TextValue(node.Value)
	}
	return nil
}

// MarshalYAML encodes the value as a bare YAML scalar.
func (v MeasureValue) MarshalYAML() (any, error) {
	if v.isText {
		return v.text, nil
	}
	return v.num, nil
}
