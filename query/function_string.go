package query

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/vegasq/pqsql/datatype"
)

// String Functions

// stringFunc is the common shape of functions that only take strings. The
// result is NULL when any argument is NULL.
type stringFunc struct {
	name             string
	minArgs, maxArgs int
	apply            func(args []string) (interface{}, error)
	result           arrow.DataType
}

func (f *stringFunc) Name() string  { return f.name }
func (f *stringFunc) MinArity() int { return f.minArgs }
func (f *stringFunc) MaxArity() int { return f.maxArgs }
func (f *stringFunc) ReturnType(args []arrow.DataType) (arrow.DataType, error) {
	if err := expectTypes(f.name, args, "a string", datatype.IsString); err != nil {
		return nil, err
	}
	return f.result, nil
}
func (f *stringFunc) Evaluate(args []interface{}) (interface{}, error) {
	if hasNull(args) {
		return nil, nil
	}
	strs := make([]string, len(args))
	for i, arg := range args {
		s, err := valueToString(arg)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.name, err)
		}
		strs[i] = s
	}
	return f.apply(strs)
}

func utf8Result(name string, minArgs, maxArgs int, apply func(args []string) (interface{}, error)) stringFunc {
	return stringFunc{name: name, minArgs: minArgs, maxArgs: maxArgs, apply: apply, result: arrow.BinaryTypes.String}
}

// UpperFunc converts a string to uppercase
type UpperFunc struct{ stringFunc }

// LowerFunc converts a string to lowercase
type LowerFunc struct{ stringFunc }

// TrimFunc trims whitespace from both ends of a string
type TrimFunc struct{ stringFunc }

// LTrimFunc trims whitespace from the left side of a string
type LTrimFunc struct{ stringFunc }

// RTrimFunc trims whitespace from the right side of a string
type RTrimFunc struct{ stringFunc }

// ReverseFunc reverses a string
type ReverseFunc struct{ stringFunc }

// ReplaceFunc replaces all occurrences of a substring
type ReplaceFunc struct{ stringFunc }

// LengthFunc returns the length of a string in characters
type LengthFunc struct{ stringFunc }

// StartsWithFunc checks if a string starts with a prefix
type StartsWithFunc struct{ stringFunc }

// EndsWithFunc checks if a string ends with a suffix
type EndsWithFunc struct{ stringFunc }

// ContainsFunc checks if a string contains a substring
type ContainsFunc struct{ stringFunc }

func init() {
	globalRegistry.Register(&ConcatFunc{})
	globalRegistry.Register(&SubstringFunc{})
	globalRegistry.Register(&UpperFunc{utf8Result("UPPER", 1, 1, func(a []string) (interface{}, error) {
		return strings.ToUpper(a[0]), nil
	})})
	globalRegistry.Register(&LowerFunc{utf8Result("LOWER", 1, 1, func(a []string) (interface{}, error) {
		return strings.ToLower(a[0]), nil
	})})
	globalRegistry.Register(&TrimFunc{utf8Result("TRIM", 1, 1, func(a []string) (interface{}, error) {
		return strings.TrimSpace(a[0]), nil
	})})
	globalRegistry.Register(&LTrimFunc{utf8Result("LTRIM", 1, 1, func(a []string) (interface{}, error) {
		return strings.TrimLeft(a[0], " \t\n\r"), nil
	})})
	globalRegistry.Register(&RTrimFunc{utf8Result("RTRIM", 1, 1, func(a []string) (interface{}, error) {
		return strings.TrimRight(a[0], " \t\n\r"), nil
	})})
	globalRegistry.Register(&ReverseFunc{utf8Result("REVERSE", 1, 1, func(a []string) (interface{}, error) {
		runes := []rune(a[0])
		for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
			runes[i], runes[j] = runes[j], runes[i]
		}
		return string(runes), nil
	})})
	globalRegistry.Register(&ReplaceFunc{utf8Result("REPLACE", 3, 3, func(a []string) (interface{}, error) {
		return strings.ReplaceAll(a[0], a[1], a[2]), nil
	})})
	globalRegistry.Register(&LengthFunc{stringFunc{name: "LENGTH", minArgs: 1, maxArgs: 1, result: arrow.PrimitiveTypes.Int64,
		apply: func(a []string) (interface{}, error) {
			return int64(utf8.RuneCountInString(a[0])), nil
		}}})
	globalRegistry.Register(&StartsWithFunc{stringFunc{name: "STARTS_WITH", minArgs: 2, maxArgs: 2, result: arrow.FixedWidthTypes.Boolean,
		apply: func(a []string) (interface{}, error) {
			return strings.HasPrefix(a[0], a[1]), nil
		}}})
	globalRegistry.Register(&EndsWithFunc{stringFunc{name: "ENDS_WITH", minArgs: 2, maxArgs: 2, result: arrow.FixedWidthTypes.Boolean,
		apply: func(a []string) (interface{}, error) {
			return strings.HasSuffix(a[0], a[1]), nil
		}}})
	globalRegistry.Register(&ContainsFunc{stringFunc{name: "CONTAINS", minArgs: 2, maxArgs: 2, result: arrow.FixedWidthTypes.Boolean,
		apply: func(a []string) (interface{}, error) {
			return strings.Contains(a[0], a[1]), nil
		}}})
}

// ConcatFunc concatenates its arguments, skipping NULLs
type ConcatFunc struct{}

func (f *ConcatFunc) Name() string  { return "CONCAT" }
func (f *ConcatFunc) MinArity() int { return 1 }
func (f *ConcatFunc) MaxArity() int { return -1 } // variadic
func (f *ConcatFunc) ReturnType(args []arrow.DataType) (arrow.DataType, error) {
	return arrow.BinaryTypes.String, nil
}
func (f *ConcatFunc) Evaluate(args []interface{}) (interface{}, error) {
	var builder strings.Builder
	for i, arg := range args {
		if arg == nil {
			continue
		}
		if s, err := valueToString(arg); err == nil {
			builder.WriteString(s)
			continue
		}
		s, err := datatype.Cast(arg, nil, arrow.BinaryTypes.String)
		if err != nil {
			return nil, fmt.Errorf("CONCAT: argument %d: %w", i+1, err)
		}
		builder.WriteString(s.(string))
	}
	return builder.String(), nil
}

// SubstringFunc extracts a substring: SUBSTRING(str, start[, length]).
// start is 1-based.
type SubstringFunc struct{}

func (f *SubstringFunc) Name() string  { return "SUBSTRING" }
func (f *SubstringFunc) MinArity() int { return 2 }
func (f *SubstringFunc) MaxArity() int { return 3 }
func (f *SubstringFunc) ReturnType(args []arrow.DataType) (arrow.DataType, error) {
	if err := expectTypes(f.Name(), args[:1], "a string", datatype.IsString); err != nil {
		return nil, err
	}
	if err := expectTypes(f.Name(), args[1:], "an integer", datatype.IsInteger); err != nil {
		return nil, err
	}
	return arrow.BinaryTypes.String, nil
}
func (f *SubstringFunc) Evaluate(args []interface{}) (interface{}, error) {
	if hasNull(args) {
		return nil, nil
	}
	str, err := valueToString(args[0])
	if err != nil {
		return nil, fmt.Errorf("SUBSTRING: %w", err)
	}
	runes := []rune(str)

	start, ok := args[1].(int64)
	if !ok {
		return nil, fmt.Errorf("SUBSTRING: start must be an integer, got %T", args[1])
	}
	begin := int(start) - 1
	if begin < 0 {
		begin = 0
	}
	if begin > len(runes) {
		return "", nil
	}

	end := len(runes)
	if len(args) == 3 {
		length, ok := args[2].(int64)
		if !ok {
			return nil, fmt.Errorf("SUBSTRING: length must be an integer, got %T", args[2])
		}
		if length < 0 {
			return nil, fmt.Errorf("SUBSTRING: negative length %d", length)
		}
		if int64(begin)+length < int64(end) {
			end = begin + int(length)
		}
	}
	return string(runes[begin:end]), nil
}
