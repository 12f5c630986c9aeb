package datatype

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
)

var (
	// ErrInvalidCast is returned when a value cannot be represented in the
	// target type.
	ErrInvalidCast = errors.New("invalid cast")

	// ErrDivisionByZero is returned by integer division and modulo by zero.
	ErrDivisionByZero = errors.New("division by zero")
)

// epsilon is the relative tolerance used when testing floats for equality.
const epsilon = 1e-9

const (
	dateLayout      = "2006-01-02"
	timestampLayout = "2006-01-02 15:04:05.999999999"
)

var timestampLayouts = []string{
	time.RFC3339Nano,
	timestampLayout,
	"2006-01-02T15:04:05",
	dateLayout,
}

// ToFloat64 converts a numeric scalar to float64.
func ToFloat64(v interface{}) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case int64:
		return float64(val), true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int32:
		return float64(val), true
	default:
		return 0, false
	}
}

// Cast converts a scalar of type from to type to.
func Cast(v interface{}, from, to arrow.DataType) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	if b, ok := v.([]byte); ok && to.ID() != arrow.BINARY && to.ID() != arrow.FIXED_SIZE_BINARY {
		v = string(b)
	}

	switch to.ID() {
	case arrow.BOOL:
		return castBool(v)
	case arrow.INT8:
		return castInt(v, math.MinInt8, math.MaxInt8)
	case arrow.INT16:
		return castInt(v, math.MinInt16, math.MaxInt16)
	case arrow.INT32:
		return castInt(v, math.MinInt32, math.MaxInt32)
	case arrow.INT64:
		return castInt(v, math.MinInt64, math.MaxInt64)
	case arrow.FLOAT32:
		f, err := castFloat(v)
		if err != nil {
			return nil, err
		}
		return float64(float32(f)), nil
	case arrow.FLOAT64:
		return castFloat(v)
	case arrow.STRING:
		return castString(v, from)
	case arrow.BINARY, arrow.FIXED_SIZE_BINARY:
		switch val := v.(type) {
		case []byte:
			return val, nil
		case string:
			return []byte(val), nil
		}
	case arrow.DATE32:
		t, err := castTime(v)
		if err != nil {
			return nil, err
		}
		return t.Truncate(24 * time.Hour), nil
	case arrow.TIMESTAMP:
		return castTime(v)
	}
	return nil, fmt.Errorf("%w: %v (%T) to %s", ErrInvalidCast, v, v, to)
}

func castBool(v interface{}) (interface{}, error) {
	switch val := v.(type) {
	case bool:
		return val, nil
	case int64:
		return val != 0, nil
	case float64:
		return val != 0, nil
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(val))
		if err != nil {
			return nil, fmt.Errorf("%w: %q to boolean", ErrInvalidCast, val)
		}
		return b, nil
	}
	return nil, fmt.Errorf("%w: %T to boolean", ErrInvalidCast, v)
}

func castInt(v interface{}, lo, hi int64) (interface{}, error) {
	var n int64
	switch val := v.(type) {
	case int64:
		n = val
	case float64:
		if math.IsNaN(val) || val < float64(lo) || val > float64(hi) {
			return nil, fmt.Errorf("%w: %v out of range [%d, %d]", ErrInvalidCast, val, lo, hi)
		}
		n = int64(val)
	case bool:
		if val {
			n = 1
		}
	case string:
		s := strings.TrimSpace(val)
		parsed, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			f, ferr := strconv.ParseFloat(s, 64)
			if ferr != nil {
				return nil, fmt.Errorf("%w: %q to integer", ErrInvalidCast, val)
			}
			return castInt(f, lo, hi)
		}
		n = parsed
	default:
		return nil, fmt.Errorf("%w: %T to integer", ErrInvalidCast, v)
	}
	if n < lo || n > hi {
		return nil, fmt.Errorf("%w: %d out of range [%d, %d]", ErrInvalidCast, n, lo, hi)
	}
	return n, nil
}

func castFloat(v interface{}) (float64, error) {
	switch val := v.(type) {
	case float64:
		return val, nil
	case int64:
		return float64(val), nil
	case bool:
		if val {
			return 1, nil
		}
		return 0, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q to floating point", ErrInvalidCast, val)
		}
		return f, nil
	}
	return 0, fmt.Errorf("%w: %T to floating point", ErrInvalidCast, v)
}

func castString(v interface{}, from arrow.DataType) (interface{}, error) {
	switch val := v.(type) {
	case string:
		return val, nil
	case int64:
		return strconv.FormatInt(val, 10), nil
	case float64:
		bits := 64
		if from != nil && from.ID() == arrow.FLOAT32 {
			bits = 32
		}
		return strconv.FormatFloat(val, 'g', -1, bits), nil
	case bool:
		return strconv.FormatBool(val), nil
	case time.Time:
		if from != nil && from.ID() == arrow.DATE32 {
			return val.Format(dateLayout), nil
		}
		return val.Format(timestampLayout), nil
	}
	return nil, fmt.Errorf("%w: %T to string", ErrInvalidCast, v)
}

func castTime(v interface{}) (time.Time, error) {
	switch val := v.(type) {
	case time.Time:
		return val.UTC(), nil
	case int64:
		return time.Unix(0, val).UTC(), nil
	case string:
		s := strings.TrimSpace(val)
		for _, layout := range timestampLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC(), nil
			}
		}
		return time.Time{}, fmt.Errorf("%w: %q to timestamp", ErrInvalidCast, val)
	}
	return time.Time{}, fmt.Errorf("%w: %T to timestamp", ErrInvalidCast, v)
}

// Compare orders two non-null scalars of compatible types and returns -1, 0
// or 1. Floats within a relative epsilon of each other compare equal.
func Compare(left, right interface{}) (int, error) {
	switch l := left.(type) {
	case int64:
		if r, ok := right.(int64); ok {
			return cmpOrdered(l, r), nil
		}
	case string:
		switch r := right.(type) {
		case string:
			return strings.Compare(l, r), nil
		case []byte:
			return strings.Compare(l, string(r)), nil
		}
	case []byte:
		switch r := right.(type) {
		case []byte:
			return bytes.Compare(l, r), nil
		case string:
			return strings.Compare(string(l), r), nil
		}
	case bool:
		if r, ok := right.(bool); ok {
			switch {
			case l == r:
				return 0, nil
			case !l:
				return -1, nil
			default:
				return 1, nil
			}
		}
	case time.Time:
		if r, ok := right.(time.Time); ok {
			return l.Compare(r), nil
		}
	}

	// Mixed or floating point numbers
	leftNum, leftIsNum := ToFloat64(left)
	rightNum, rightIsNum := ToFloat64(right)
	if leftIsNum && rightIsNum {
		return compareFloats(leftNum, rightNum), nil
	}

	return 0, fmt.Errorf("%w: cannot compare %T with %T", ErrIncompatible, left, right)
}

func cmpOrdered[T int64 | float64](l, r T) int {
	switch {
	case l < r:
		return -1
	case l > r:
		return 1
	}
	return 0
}

func compareFloats(left, right float64) int {
	diff := math.Abs(left - right)
	threshold := epsilon * max(1.0, math.Abs(left), math.Abs(right))
	if diff < threshold {
		return 0
	}
	return cmpOrdered(left, right)
}

// Arithmetic applies + - * / % to two non-null numeric scalars. Integer
// results use int64 arithmetic, everything else float64.
func Arithmetic(op string, left, right interface{}, result arrow.DataType) (interface{}, error) {
	if IsInteger(result) {
		l, lok := left.(int64)
		r, rok := right.(int64)
		if !lok || !rok {
			return nil, fmt.Errorf("%w: integer arithmetic on %T and %T", ErrIncompatible, left, right)
		}
		switch op {
		case "+":
			return l + r, nil
		case "-":
			return l - r, nil
		case "*":
			return l * r, nil
		case "/":
			if r == 0 {
				return nil, ErrDivisionByZero
			}
			return l / r, nil
		case "%":
			if r == 0 {
				return nil, ErrDivisionByZero
			}
			return l % r, nil
		}
		return nil, fmt.Errorf("unsupported operator %q", op)
	}

	l, lok := ToFloat64(left)
	r, rok := ToFloat64(right)
	if !lok || !rok {
		return nil, fmt.Errorf("%w: arithmetic on %T and %T", ErrIncompatible, left, right)
	}
	switch op {
	case "+":
		return l + r, nil
	case "-":
		return l - r, nil
	case "*":
		return l * r, nil
	case "/":
		return l / r, nil
	case "%":
		return math.Mod(l, r), nil
	}
	return nil, fmt.Errorf("unsupported operator %q", op)
}

// LikePattern compiles a SQL LIKE pattern, where % matches any sequence and
// _ matches a single character.
func LikePattern(pattern string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString("(?s)^")
	for _, r := range pattern {
		switch r {
		case '%':
			b.WriteString(".*")
		case '_':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	return regexp.Compile(b.String())
}
