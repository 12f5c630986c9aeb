package query

import (
	"fmt"
	"math"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/vegasq/pqsql/datatype"
)

func init() {
	globalRegistry.Register(&AbsFunc{})
	globalRegistry.Register(&RoundFunc{})
	globalRegistry.Register(&FloorFunc{})
	globalRegistry.Register(&CeilFunc{})
	globalRegistry.Register(&SqrtFunc{})
	globalRegistry.Register(&PowFunc{})
	globalRegistry.Register(&SignFunc{})
	globalRegistry.Register(&ModFunc{})
}

func numericArgs(name string, args []arrow.DataType) error {
	return expectTypes(name, args, "numeric", datatype.IsNumeric)
}

// AbsFunc returns the absolute value of a number, keeping integer results integral
type AbsFunc struct{}

func (f *AbsFunc) Name() string  { return "ABS" }
func (f *AbsFunc) MinArity() int { return 1 }
func (f *AbsFunc) MaxArity() int { return 1 }
func (f *AbsFunc) ReturnType(args []arrow.DataType) (arrow.DataType, error) {
	if err := numericArgs(f.Name(), args); err != nil {
		return nil, err
	}
	if datatype.IsInteger(args[0]) {
		return arrow.PrimitiveTypes.Int64, nil
	}
	return arrow.PrimitiveTypes.Float64, nil
}
func (f *AbsFunc) Evaluate(args []interface{}) (interface{}, error) {
	switch v := args[0].(type) {
	case nil:
		return nil, nil
	case int64:
		if v < 0 {
			return -v, nil
		}
		return v, nil
	}
	num, err := valueToNumber(args[0])
	if err != nil {
		return nil, fmt.Errorf("ABS: %w", err)
	}
	return math.Abs(num), nil
}

// RoundFunc rounds a number to the specified number of decimal places
type RoundFunc struct{}

func (f *RoundFunc) Name() string  { return "ROUND" }
func (f *RoundFunc) MinArity() int { return 1 }
func (f *RoundFunc) MaxArity() int { return 2 }
func (f *RoundFunc) ReturnType(args []arrow.DataType) (arrow.DataType, error) {
	if err := numericArgs(f.Name(), args); err != nil {
		return nil, err
	}
	return arrow.PrimitiveTypes.Float64, nil
}
func (f *RoundFunc) Evaluate(args []interface{}) (interface{}, error) {
	if hasNull(args) {
		return nil, nil
	}
	num, err := valueToNumber(args[0])
	if err != nil {
		return nil, fmt.Errorf("ROUND: %w", err)
	}

	// Default to 0 decimal places
	decimals := 0.0
	if len(args) == 2 {
		decimals, err = valueToNumber(args[1])
		if err != nil {
			return nil, fmt.Errorf("ROUND: decimals argument: %w", err)
		}
	}

	multiplier := math.Pow(10, math.Trunc(decimals))
	return math.Round(num*multiplier) / multiplier, nil
}

// unaryFloatFunc applies a float64 function to one numeric argument.
type unaryFloatFunc struct {
	name string
	fn   func(float64) (float64, error)
}

func (f *unaryFloatFunc) Name() string  { return f.name }
func (f *unaryFloatFunc) MinArity() int { return 1 }
func (f *unaryFloatFunc) MaxArity() int { return 1 }
func (f *unaryFloatFunc) ReturnType(args []arrow.DataType) (arrow.DataType, error) {
	if err := numericArgs(f.name, args); err != nil {
		return nil, err
	}
	return arrow.PrimitiveTypes.Float64, nil
}
func (f *unaryFloatFunc) Evaluate(args []interface{}) (interface{}, error) {
	if args[0] == nil {
		return nil, nil
	}
	num, err := valueToNumber(args[0])
	if err != nil {
		return nil, fmt.Errorf("%s: %w", f.name, err)
	}
	out, err := f.fn(num)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", f.name, err)
	}
	return out, nil
}

// FloorFunc returns the largest integer less than or equal to a number
type FloorFunc struct{ unaryFloatFunc }

// CeilFunc returns the smallest integer greater than or equal to a number
type CeilFunc struct{ unaryFloatFunc }

// SqrtFunc returns the square root of a non-negative number
type SqrtFunc struct{ unaryFloatFunc }

func init() {
	globalRegistry.Register(&FloorFunc{unaryFloatFunc{name: "FLOOR", fn: func(x float64) (float64, error) {
		return math.Floor(x), nil
	}}})
	globalRegistry.Register(&CeilFunc{unaryFloatFunc{name: "CEIL", fn: func(x float64) (float64, error) {
		return math.Ceil(x), nil
	}}})
	globalRegistry.Register(&SqrtFunc{unaryFloatFunc{name: "SQRT", fn: func(x float64) (float64, error) {
		if x < 0 {
			return 0, fmt.Errorf("square root of negative number %v", x)
		}
		return math.Sqrt(x), nil
	}}})
}

// PowFunc raises a number to a power
type PowFunc struct{}

func (f *PowFunc) Name() string  { return "POW" }
func (f *PowFunc) MinArity() int { return 2 }
func (f *PowFunc) MaxArity() int { return 2 }
func (f *PowFunc) ReturnType(args []arrow.DataType) (arrow.DataType, error) {
	if err := numericArgs(f.Name(), args); err != nil {
		return nil, err
	}
	return arrow.PrimitiveTypes.Float64, nil
}
func (f *PowFunc) Evaluate(args []interface{}) (interface{}, error) {
	if hasNull(args) {
		return nil, nil
	}
	base, err := valueToNumber(args[0])
	if err != nil {
		return nil, fmt.Errorf("POW: base: %w", err)
	}
	exp, err := valueToNumber(args[1])
	if err != nil {
		return nil, fmt.Errorf("POW: exponent: %w", err)
	}
	return math.Pow(base, exp), nil
}

// SignFunc returns -1, 0 or 1
type SignFunc struct{}

func (f *SignFunc) Name() string  { return "SIGN" }
func (f *SignFunc) MinArity() int { return 1 }
func (f *SignFunc) MaxArity() int { return 1 }
func (f *SignFunc) ReturnType(args []arrow.DataType) (arrow.DataType, error) {
	if err := numericArgs(f.Name(), args); err != nil {
		return nil, err
	}
	return arrow.PrimitiveTypes.Int64, nil
}
func (f *SignFunc) Evaluate(args []interface{}) (interface{}, error) {
	if args[0] == nil {
		return nil, nil
	}
	num, err := valueToNumber(args[0])
	if err != nil {
		return nil, fmt.Errorf("SIGN: %w", err)
	}
	switch {
	case num > 0:
		return int64(1), nil
	case num < 0:
		return int64(-1), nil
	}
	return int64(0), nil
}

// ModFunc returns the remainder of division
type ModFunc struct{}

func (f *ModFunc) Name() string  { return "MOD" }
func (f *ModFunc) MinArity() int { return 2 }
func (f *ModFunc) MaxArity() int { return 2 }
func (f *ModFunc) ReturnType(args []arrow.DataType) (arrow.DataType, error) {
	if err := numericArgs(f.Name(), args); err != nil {
		return nil, err
	}
	if datatype.IsInteger(args[0]) && datatype.IsInteger(args[1]) {
		return arrow.PrimitiveTypes.Int64, nil
	}
	return arrow.PrimitiveTypes.Float64, nil
}
func (f *ModFunc) Evaluate(args []interface{}) (interface{}, error) {
	if hasNull(args) {
		return nil, nil
	}
	if a, ok := args[0].(int64); ok {
		if b, ok := args[1].(int64); ok {
			return datatype.Arithmetic("%", a, b, arrow.PrimitiveTypes.Int64)
		}
	}

	dividend, err := valueToNumber(args[0])
	if err != nil {
		return nil, fmt.Errorf("MOD: dividend: %w", err)
	}
	divisor, err := valueToNumber(args[1])
	if err != nil {
		return nil, fmt.Errorf("MOD: divisor: %w", err)
	}
	if divisor == 0 {
		return nil, fmt.Errorf("MOD: %w", datatype.ErrDivisionByZero)
	}
	return math.Mod(dividend, divisor), nil
}
