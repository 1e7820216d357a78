package resolver

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/ethpandaops/querycat/pkg/catalog"
	"github.com/spf13/cast"
)

const day = 24 * time.Hour

// maxOffsetDays is the largest day offset a time.Duration can hold
const maxOffsetDays = float64(math.MaxInt64) / float64(day)

var (
	errNilTime       = errors.New("nil time value")
	errBoolTime      = errors.New("boolean is not a valid time")
	errOffsetRange   = errors.New("day offset is not a finite number within range")
	errIntRange      = errors.New("number is outside the int64 range")
	errNotWholeValue = errors.New("number is not a whole value")
)

// formatValue renders a parameter value according to its declared type
func (r *Resolver) formatValue(spec *catalog.ParameterSpec, value interface{}, now time.Time) (string, error) {
	switch spec.Type {
	case catalog.TypeDatetime:
		ts, err := toTime(value, now)
		if err != nil {
			return "", err
		}
		return r.formatter.Datetime(ts), nil

	case catalog.TypeInt:
		n, err := toInt(value)
		if err != nil {
			return "", err
		}
		return strconv.FormatInt(n, 10), nil

	case catalog.TypeBool:
		b, err := cast.ToBoolE(value)
		if err != nil {
			return "", err
		}
		return strconv.FormatBool(b), nil

	case catalog.TypeList:
		items, err := toList(value)
		if err != nil {
			return "", err
		}
		return r.formatter.List(items), nil

	default:
		return cast.ToStringE(value)
	}
}

// toTime converts a datetime parameter value. Numbers, and strings holding a
// number, are day offsets relative to now: -30 is thirty days ago, 0 is now.
func toTime(value interface{}, now time.Time) (time.Time, error) {
	switch v := value.(type) {
	case time.Time:
		return v.UTC(), nil
	case *time.Time:
		if v == nil {
			return time.Time{}, errNilTime
		}
		return v.UTC(), nil
	case bool:
		return time.Time{}, errBoolTime
	case string:
		trimmed := strings.TrimSpace(v)
		if days, err := strconv.ParseFloat(trimmed, 64); err == nil {
			return relative(now, days)
		}
		ts, err := cast.ToTimeE(trimmed)
		if err != nil {
			return time.Time{}, err
		}
		return ts.UTC(), nil
	}

	days, err := cast.ToFloat64E(value)
	if err != nil {
		return time.Time{}, err
	}

	return relative(now, days)
}

// relative offsets now by days. NaN, infinities and offsets a Duration cannot
// hold are rejected rather than wrapping to an unrelated date.
func relative(now time.Time, days float64) (time.Time, error) {
	if math.IsNaN(days) || math.IsInf(days, 0) || math.Abs(days) >= maxOffsetDays {
		return time.Time{}, fmt.Errorf("%w: %v", errOffsetRange, days)
	}

	return now.Add(time.Duration(days * float64(day))).UTC(), nil
}

// toInt converts an int parameter value. Floats, which is how JSON bodies
// carry numbers, must be whole and fit in an int64.
func toInt(value interface{}) (int64, error) {
	var f float64
	switch v := value.(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	default:
		return cast.ToInt64E(value)
	}

	// float64(math.MaxInt64) rounds up to 2^63, so the upper bound is exclusive
	if math.IsNaN(f) || f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, fmt.Errorf("%w: %v", errIntRange, f)
	}
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("%w: %v", errNotWholeValue, f)
	}

	return int64(f), nil
}

// toList accepts slices or a comma-separated string
func toList(value interface{}) ([]string, error) {
	if s, ok := value.(string); ok {
		if strings.TrimSpace(s) == "" {
			return []string{}, nil
		}
		parts := strings.Split(s, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts, nil
	}

	return cast.ToStringSliceE(value)
}
