package schedule

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// epsilon absorbs float error when comparing hour totals.
const epsilon = 1e-9

// ParseHours converts a stored or submitted hour value to float64.
// Numbers and numeric strings (comma decimals included) are accepted;
// anything unparsable, negative or non-finite counts as 0.
func ParseHours(v any) float64 {
	var f float64
	switch x := v.(type) {
	case nil:
		return 0
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	case int32:
		f = float64(x)
	case json.Number:
		f, _ = x.Float64()
	case *float64:
		if x == nil {
			return 0
		}
		f = *x
	case []byte:
		return ParseHours(string(x))
	case string:
		s := strings.TrimSpace(strings.Replace(x, ",", ".", 1))
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0
		}
		f = parsed
	default:
		return 0
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return 0
	}
	return f
}

// FlexHours is an hour quantity that unmarshals from a JSON number or a
// numeric string. Unparsable input yields 0 rather than an error.
type FlexHours float64

func (h *FlexHours) UnmarshalJSON(b []byte) error {
	var raw any
	dec := json.NewDecoder(strings.NewReader(string(b)))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		*h = 0
		return nil
	}
	*h = FlexHours(ParseHours(raw))
	return nil
}

// roundHours rounds to the nearest minute to keep reported totals tidy.
func roundHours(h float64) float64 {
	return math.Round(h*60) / 60
}
