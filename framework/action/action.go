// Package action models the unit of work bound to a route or an event:
// either a function called directly, or a method called on an instance of
// a type that is built on demand.
//
//	action.From(func(id string) *gohttp.Response { ... })
//	action.Bound((*UserController)(nil), "Show")
//
// Arguments are bound by reflection. Parameters whose type is
// context.Context or exactly the type of an injected value receive that
// value; every other parameter consumes the next positional argument,
// converting strings to numeric and boolean kinds when needed.
package action

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"runtime"
	"strconv"
)

var (
	// ErrInvalid indicates a value that cannot act as an action.
	ErrInvalid = errors.New("invalid action")

	// ErrArgument indicates an argument that cannot be bound to a parameter.
	ErrArgument = errors.New("cannot bind argument")
)

var (
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
)

// Builder produces receivers for Method actions.
type Builder interface {
	Build(t reflect.Type) (any, error)
}

// Action is a Func or a Method.
type Action interface {
	// Target returns the receiver the action runs on; nil for a Func.
	Target(b Builder) (any, error)

	// Call runs the action on target with arguments bound from in.
	Call(target any, in Input) (any, error)

	String() string
}

// Input is what an action's parameters are bound from.
type Input struct {
	Context context.Context
	Inject  []any
	Args    []any
}

// From returns v as an Action. v must be an Action or a function.
func From(v any) (Action, error) {
	switch a := v.(type) {
	case nil:
		return nil, fmt.Errorf("%w: nil", ErrInvalid)
	case Action:
		return a, nil
	}
	fn := reflect.ValueOf(v)
	if fn.Kind() != reflect.Func {
		return nil, fmt.Errorf("%w: %T is neither a function nor a bound method", ErrInvalid, v)
	}
	return Func{fn: fn}, nil
}

// ── Func ──────────────────────────────────────────────────────────────────────

// Func is a directly invocable action.
type Func struct {
	fn reflect.Value
}

func (f Func) Target(Builder) (any, error) { return nil, nil }

func (f Func) Call(_ any, in Input) (any, error) {
	return invoke(f.fn, in)
}

func (f Func) String() string {
	if fn := runtime.FuncForPC(f.fn.Pointer()); fn != nil {
		return fn.Name()
	}
	return f.fn.Type().String()
}

// ── Method ────────────────────────────────────────────────────────────────────

// Method is a (type, method name) pair. The receiver is built per call.
type Method struct {
	typ  reflect.Type
	name string
}

// Bound returns a Method action. receiver is a typed value, usually a nil
// pointer, that only carries the type:
//
//	action.Bound((*UserController)(nil), "Show")
func Bound(receiver any, method string) Method {
	return Method{typ: reflect.TypeOf(receiver), name: method}
}

// Type returns the receiver type.
func (m Method) Type() reflect.Type { return m.typ }

// Name returns the method name.
func (m Method) Name() string { return m.name }

func (m Method) Target(b Builder) (any, error) {
	if m.typ == nil {
		return nil, fmt.Errorf("%w: %s has no receiver type", ErrInvalid, m)
	}
	if _, ok := m.typ.MethodByName(m.name); !ok {
		return nil, fmt.Errorf("%w: %s has no method %s", ErrInvalid, m.typ, m.name)
	}

	if b != nil {
		return b.Build(m.typ)
	}
	if m.typ.Kind() == reflect.Ptr && m.typ.Elem().Kind() == reflect.Struct {
		return reflect.New(m.typ.Elem()).Interface(), nil
	}
	return nil, fmt.Errorf("%w: cannot construct %s without a builder", ErrInvalid, m.typ)
}

func (m Method) Call(target any, in Input) (any, error) {
	fn := reflect.ValueOf(target).MethodByName(m.name)
	if !fn.IsValid() {
		return nil, fmt.Errorf("%w: %T has no method %s", ErrInvalid, target, m.name)
	}
	return invoke(fn, in)
}

func (m Method) String() string {
	if m.typ == nil {
		return "<nil>." + m.name
	}
	return m.typ.String() + "." + m.name
}

// ── Invocation ────────────────────────────────────────────────────────────────

func invoke(fn reflect.Value, in Input) (any, error) {
	ft := fn.Type()
	n := ft.NumIn()
	args := make([]reflect.Value, 0, n)
	next := 0

	for i := 0; i < n; i++ {
		pt := ft.In(i)

		if ft.IsVariadic() && i == n-1 {
			for ; next < len(in.Args); next++ {
				v, err := convert(in.Args[next], pt.Elem())
				if err != nil {
					return nil, err
				}
				args = append(args, v)
			}
			break
		}

		if v, ok := in.inject(pt); ok {
			args = append(args, v)
			continue
		}

		if next >= len(in.Args) {
			return nil, fmt.Errorf("%w: missing argument %d of type %s", ErrArgument, i, pt)
		}
		v, err := convert(in.Args[next], pt)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		args = append(args, v)
		next++
	}

	return results(fn.Call(args))
}

func (in Input) inject(t reflect.Type) (reflect.Value, bool) {
	if t == contextType && in.Context != nil {
		return reflect.ValueOf(in.Context), true
	}
	for _, v := range in.Inject {
		if v != nil && reflect.TypeOf(v) == t {
			return reflect.ValueOf(v), true
		}
	}
	return reflect.Value{}, false
}

// convert turns a positional argument into a value of type t.
func convert(v any, t reflect.Type) (reflect.Value, error) {
	if v == nil {
		return reflect.Zero(t), nil
	}
	rv := reflect.ValueOf(v)
	if rv.Type().AssignableTo(t) {
		return rv, nil
	}

	if s, ok := v.(string); ok {
		out := reflect.New(t).Elem()
		switch t.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			n, err := strconv.ParseInt(s, 10, t.Bits())
			if err != nil {
				return reflect.Value{}, fmt.Errorf("%w: %q is not a valid %s", ErrArgument, s, t)
			}
			out.SetInt(n)
			return out, nil
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			n, err := strconv.ParseUint(s, 10, t.Bits())
			if err != nil {
				return reflect.Value{}, fmt.Errorf("%w: %q is not a valid %s", ErrArgument, s, t)
			}
			out.SetUint(n)
			return out, nil
		case reflect.Float32, reflect.Float64:
			f, err := strconv.ParseFloat(s, t.Bits())
			if err != nil {
				return reflect.Value{}, fmt.Errorf("%w: %q is not a valid %s", ErrArgument, s, t)
			}
			out.SetFloat(f)
			return out, nil
		case reflect.Bool:
			b, err := strconv.ParseBool(s)
			if err != nil {
				return reflect.Value{}, fmt.Errorf("%w: %q is not a valid %s", ErrArgument, s, t)
			}
			out.SetBool(b)
			return out, nil
		}
	}

	if rv.Kind() != reflect.String && t.Kind() != reflect.String && rv.Type().ConvertibleTo(t) {
		return rv.Convert(t), nil
	}
	return reflect.Value{}, fmt.Errorf("%w: %T is not assignable to %s", ErrArgument, v, t)
}

// results normalizes the return values of an action: nothing, a value,
// an error, or a value followed by an error.
func results(out []reflect.Value) (any, error) {
	switch len(out) {
	case 0:
		return nil, nil
	case 1:
		if out[0].Type() == errorType {
			if out[0].IsNil() {
				return nil, nil
			}
			return nil, out[0].Interface().(error)
		}
		return out[0].Interface(), nil
	default:
		last := out[len(out)-1]
		if last.Type() == errorType && !last.IsNil() {
			return nil, last.Interface().(error)
		}
		return out[0].Interface(), nil
	}
}
