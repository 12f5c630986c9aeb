package query

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/vegasq/pqsql/datatype"
)

// ErrInvalidArguments is returned by Function.ReturnType when the argument
// types do not fit the function.
var ErrInvalidArguments = errors.New("invalid function arguments")

// Function represents a scalar function that can be evaluated
type Function interface {
	// Name returns the function name (case-insensitive)
	Name() string
	// MinArity returns the minimum number of arguments
	MinArity() int
	// MaxArity returns the maximum number of arguments (-1 for unlimited)
	MaxArity() int
	// ReturnType checks the argument types and returns the result type
	ReturnType(args []arrow.DataType) (arrow.DataType, error)
	// Evaluate evaluates the function on scalar arguments. Arguments are
	// already converted to the types accepted by ReturnType.
	Evaluate(args []interface{}) (interface{}, error)
}

// FunctionRegistry manages function lookup and registration
type FunctionRegistry struct {
	mu        sync.RWMutex
	functions map[string]Function
}

// NewFunctionRegistry creates a new function registry
func NewFunctionRegistry() *FunctionRegistry {
	return &FunctionRegistry{
		functions: make(map[string]Function),
	}
}

// Register registers a function
func (r *FunctionRegistry) Register(f Function) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.functions[strings.ToUpper(f.Name())] = f
}

// Get retrieves a function by name (case-insensitive)
func (r *FunctionRegistry) Get(name string) (Function, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, exists := r.functions[strings.ToUpper(name)]
	return f, exists
}

// Names returns the registered function names in sorted order.
func (r *FunctionRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.functions))
	for name := range r.functions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// globalRegistry is the default function registry. Each function file
// registers its functions in init.
var globalRegistry = NewFunctionRegistry()

func init() {
	globalRegistry.Register(&CoalesceFunc{})
	globalRegistry.Register(&NullIfFunc{})
}

// GetGlobalRegistry returns the global function registry
func GetGlobalRegistry() *FunctionRegistry {
	return globalRegistry
}

// CheckArity verifies the argument count of a call to f.
func CheckArity(f Function, n int) error {
	if n < f.MinArity() || (f.MaxArity() >= 0 && n > f.MaxArity()) {
		switch {
		case f.MaxArity() < 0:
			return fmt.Errorf("%w: %s takes at least %d arguments, got %d", ErrInvalidArguments, f.Name(), f.MinArity(), n)
		case f.MinArity() == f.MaxArity():
			return fmt.Errorf("%w: %s takes %d arguments, got %d", ErrInvalidArguments, f.Name(), f.MinArity(), n)
		default:
			return fmt.Errorf("%w: %s takes %d to %d arguments, got %d", ErrInvalidArguments, f.Name(), f.MinArity(), f.MaxArity(), n)
		}
	}
	return nil
}

// Helper function to convert value to string
func valueToString(v interface{}) (string, error) {
	switch val := v.(type) {
	case string:
		return val, nil
	case []byte:
		return string(val), nil
	default:
		return "", fmt.Errorf("cannot convert %T to string", v)
	}
}

// Helper function to convert value to number
func valueToNumber(v interface{}) (float64, error) {
	if f, ok := datatype.ToFloat64(v); ok {
		return f, nil
	}
	return 0, fmt.Errorf("cannot convert %T to number", v)
}

func hasNull(args []interface{}) bool {
	for _, a := range args {
		if a == nil {
			return true
		}
	}
	return false
}

// expectTypes checks each argument type with the matching predicate.
// NULL arguments are accepted everywhere.
func expectTypes(name string, args []arrow.DataType, kind string, ok func(arrow.DataType) bool) error {
	for i, t := range args {
		if !datatype.IsNull(t) && !ok(t) {
			return fmt.Errorf("%w: %s argument %d must be %s, got %s", ErrInvalidArguments, name, i+1, kind, t)
		}
	}
	return nil
}

// Conditional Functions

// CoalesceFunc returns the first non-NULL argument
type CoalesceFunc struct{}

func (f *CoalesceFunc) Name() string  { return "COALESCE" }
func (f *CoalesceFunc) MinArity() int { return 1 }
func (f *CoalesceFunc) MaxArity() int { return -1 }
func (f *CoalesceFunc) ReturnType(args []arrow.DataType) (arrow.DataType, error) {
	return commonType(f.Name(), args)
}
func (f *CoalesceFunc) Evaluate(args []interface{}) (interface{}, error) {
	for _, arg := range args {
		if arg != nil {
			return arg, nil
		}
	}
	return nil, nil
}

// NullIfFunc returns NULL when both arguments are equal, otherwise the first
type NullIfFunc struct{}

func (f *NullIfFunc) Name() string  { return "NULLIF" }
func (f *NullIfFunc) MinArity() int { return 2 }
func (f *NullIfFunc) MaxArity() int { return 2 }
func (f *NullIfFunc) ReturnType(args []arrow.DataType) (arrow.DataType, error) {
	return commonType(f.Name(), args)
}
func (f *NullIfFunc) Evaluate(args []interface{}) (interface{}, error) {
	if args[0] == nil || args[1] == nil {
		return args[0], nil
	}
	cmp, err := datatype.Compare(args[0], args[1])
	if err != nil {
		return nil, fmt.Errorf("NULLIF: %w", err)
	}
	if cmp == 0 {
		return nil, nil
	}
	return args[0], nil
}

// commonType folds datatype.Common over all argument types.
func commonType(name string, args []arrow.DataType) (arrow.DataType, error) {
	result := args[0]
	for _, t := range args[1:] {
		var err error
		result, err = datatype.Common(result, t)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrInvalidArguments, name, err)
		}
	}
	return result, nil
}
