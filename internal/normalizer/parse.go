package normalizer

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// SqmPerPyeong converts pyeong to square meters.
const SqmPerPyeong = 3.3058

const (
	manwonPerEok   = 10000
	manwonPerCheon = 1000
)

var (
	errNegative  = errors.New("negative value")
	errNotFinite = errors.New("value is not finite")
	errOverflow  = errors.New("value out of range")

	separatorStripper = strings.NewReplacer(",", "", " ", "", "\t", "", "\u00a0", "")
	areaUnitStripper  = strings.NewReplacer("㎡", "", "m²", "", "m2", "", "제곱미터", "")
)

// ParsePrice converts a price in any platform notation to manwon.
// Empty input is 0 without error; malformed input is 0 with an error.
func ParsePrice(v any) (int, error) {
	switch t := v.(type) {
	case nil:
		return 0, nil
	case string:
		return parsePriceText(t)
	default:
		f, err := numberValue(v)
		if err != nil {
			return 0, err
		}
		return roundPrice(f)
	}
}

// roundPrice rounds f to whole manwon, rejecting values no int can hold.
func roundPrice(f float64) (int, error) {
	if f < 0 {
		return 0, errNegative
	}
	f = math.Round(f)
	if f >= math.MaxInt {
		return 0, errOverflow
	}
	return int(f), nil
}

func parsePriceText(s string) (int, error) {
	s = separatorStripper.Replace(strings.TrimSpace(s))
	if s == "" {
		return 0, nil
	}

	if left, right, found := strings.Cut(s, "억"); found {
		eok, err := strconv.Atoi(left)
		if err != nil {
			return 0, fmt.Errorf("invalid 억 amount %q", left)
		}
		if eok < 0 {
			return 0, errNegative
		}
		rest, err := parseManRemainder(right)
		if err != nil {
			return 0, err
		}
		if eok > (math.MaxInt-rest)/manwonPerEok {
			return 0, fmt.Errorf("price %q: %w", s, errOverflow)
		}
		return eok*manwonPerEok + rest, nil
	}

	if strings.Contains(s, "만") {
		digits := digitsOnly(s)
		if digits == "" {
			return 0, fmt.Errorf("no digits in %q", s)
		}
		return strconv.Atoi(digits)
	}

	f, err := strconv.ParseFloat(strings.TrimSuffix(s, "원"), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid price %q", s)
	}
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, errNotFinite
	}
	return roundPrice(f)
}

// parseManRemainder parses what follows 억, e.g. "5000", "5000만원" or "5천".
func parseManRemainder(s string) (int, error) {
	s = strings.TrimSuffix(s, "원")
	s = strings.TrimSuffix(s, "만")
	if s == "" {
		return 0, nil
	}
	if left, right, found := strings.Cut(s, "천"); found {
		thousands := 1
		if left != "" {
			n, err := strconv.Atoi(left)
			if err != nil {
				return 0, fmt.Errorf("invalid 천 amount %q", left)
			}
			thousands = n
		}
		rest := 0
		if digits := digitsOnly(right); digits != "" {
			rest, _ = strconv.Atoi(digits)
		}
		if thousands < 0 || thousands > (math.MaxInt-rest)/manwonPerCheon {
			return 0, fmt.Errorf("천 amount %q: %w", left, errOverflow)
		}
		return thousands*manwonPerCheon + rest, nil
	}
	digits := digitsOnly(s)
	if digits == "" {
		return 0, nil
	}
	return strconv.Atoi(digits)
}

// ParseArea converts an area in ㎡, m² or 평 to square meters. A bare number
// is taken as square meters. Empty input is 0 without error.
func ParseArea(v any) (float64, error) {
	var (
		f   float64
		err error
	)
	switch t := v.(type) {
	case nil:
		return 0, nil
	case string:
		f, err = parseAreaText(t)
	default:
		f, err = numberValue(v)
	}
	if err != nil {
		return 0, err
	}
	if f < 0 {
		return 0, errNegative
	}
	return f, nil
}

func parseAreaText(s string) (float64, error) {
	s = separatorStripper.Replace(strings.TrimSpace(s))
	if s == "" {
		return 0, nil
	}
	if pyeong, found := strings.CutSuffix(s, "평"); found {
		f, err := strconv.ParseFloat(pyeong, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid pyeong area %q", s)
		}
		return f * SqmPerPyeong, nil
	}
	f, err := strconv.ParseFloat(areaUnitStripper.Replace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid area %q", s)
	}
	return f, nil
}

// parseCoordinate accepts numbers and numeric strings.
func parseCoordinate(v any) (float64, error) {
	if s, ok := v.(string); ok {
		s = strings.TrimSpace(s)
		if s == "" {
			return 0, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid coordinate %q", s)
		}
		return f, nil
	}
	return numberValue(v)
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parseTimestamp accepts ISO-8601 strings and unix seconds.
func parseTimestamp(v any) (time.Time, error) {
	if s, ok := v.(string); ok {
		s = strings.TrimSpace(s)
		if s == "" {
			return time.Time{}, nil
		}
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC(), nil
			}
		}
		return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
	}
	f, err := numberValue(v)
	if err != nil {
		return time.Time{}, err
	}
	sec, frac := math.Modf(f)
	return time.Unix(int64(sec), int64(frac*1e9)).UTC(), nil
}

func numberValue(v any) (float64, error) {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case json.Number:
		parsed, err := t.Float64()
		if err != nil {
			return 0, fmt.Errorf("invalid number %q", t.String())
		}
		f = parsed
	default:
		return 0, fmt.Errorf("unsupported value type %T", v)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, errNotFinite
	}
	return f, nil
}

// stringValue renders scalar source values as trimmed text.
func stringValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
