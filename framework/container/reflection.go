package container

import (
	"fmt"
	"reflect"
	"sync"
)

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// Param carries constructor-parameter metadata that Go reflection cannot
// recover: the parameter name, whether nil is acceptable, and a default.
// Params are matched to constructor arguments by position.
type Param struct {
	Name       string
	Nullable   bool
	Default    any
	HasDefault bool
}

// Named describes a required parameter.
func Named(name string) Param { return Param{Name: name} }

// Optional describes a parameter that falls back to nil (or the zero value).
func Optional(name string) Param { return Param{Name: name, Nullable: true} }

// Default describes a parameter with a default value.
func Default(name string, value any) Param {
	return Param{Name: name, Default: value, HasDefault: true}
}

// constructor is a registered build function and its parameter metadata.
type constructor struct {
	fn     reflect.Value
	params []Param
}

// classInfo is the reflected shape of a buildable type.
type classInfo struct {
	key          string
	typ          reflect.Type
	instantiable bool
	ctor         reflect.Value
	returnsError bool
	params       []paramInfo
}

type paramInfo struct {
	Param
	typ   reflect.Type
	key   string
	class bool
}

// reflectionCache holds everything the autowirer knows about types: the
// constructors registered with Provide, the concrete types it has seen,
// and the classInfo computed once per key.
type reflectionCache struct {
	mu sync.RWMutex

	ctors   map[string]constructor
	types   map[string]reflect.Type
	classes map[string]*classInfo
}

func newReflectionCache() *reflectionCache {
	return &reflectionCache{
		ctors:   make(map[string]constructor),
		types:   make(map[string]reflect.Type),
		classes: make(map[string]*classInfo),
	}
}

// register validates fn and stores it as the constructor for its result type.
func (rc *reflectionCache) register(fn any, params []Param) (string, error) {
	if fn == nil {
		return "", errContainer("", "constructor cannot be nil")
	}
	v := reflect.ValueOf(fn)
	ft := v.Type()
	if ft.Kind() != reflect.Func {
		return "", errContainer("", "constructor must be a function, got %s", ft.Kind())
	}
	if ft.NumOut() == 0 || ft.NumOut() > 2 {
		return "", errContainer("", "constructor must return (T) or (T, error), got %d values", ft.NumOut())
	}
	if ft.NumOut() == 2 && !ft.Out(1).Implements(errorType) {
		return "", errContainer("", "constructor's second return value must be error, got %s", ft.Out(1))
	}
	if ft.IsVariadic() {
		return "", errContainer("", "variadic constructors are not supported")
	}
	if len(params) > ft.NumIn() {
		return "", errContainer("", "%d params described for a constructor taking %d", len(params), ft.NumIn())
	}

	key := KeyOf(ft.Out(0))

	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.ctors[key] = constructor{fn: v, params: params}
	rc.types[key] = ft.Out(0)
	delete(rc.classes, key)
	return key, nil
}

// learn records t under key so that it can later be built by name.
func (rc *reflectionCache) learn(key string, t reflect.Type) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if _, ok := rc.types[key]; !ok {
		rc.types[key] = t
	}
}

// instantiable reports whether key names a type the cache can build.
func (rc *reflectionCache) instantiable(key string) bool {
	rc.mu.RLock()
	_, hasCtor := rc.ctors[key]
	t, known := rc.types[key]
	rc.mu.RUnlock()
	return hasCtor || (known && isConcrete(t))
}

// get returns the cached classInfo for key, computing it on first use.
func (rc *reflectionCache) get(key string) (*classInfo, error) {
	rc.mu.RLock()
	info, ok := rc.classes[key]
	rc.mu.RUnlock()
	if ok {
		return info, nil
	}

	rc.mu.Lock()
	defer rc.mu.Unlock()

	if info, ok = rc.classes[key]; ok {
		return info, nil
	}

	ctor, hasCtor := rc.ctors[key]
	t, known := rc.types[key]
	if !hasCtor && !known {
		return nil, errContainer(key, "class '%s' cannot be reflected", key)
	}

	info = &classInfo{key: key, typ: t}
	if hasCtor {
		ft := ctor.fn.Type()
		info.instantiable = true
		info.ctor = ctor.fn
		info.returnsError = ft.NumOut() == 2
		info.params = make([]paramInfo, ft.NumIn())
		for i := range info.params {
			pt := ft.In(i)
			p := paramInfo{typ: pt, key: KeyOf(pt), class: isClass(pt)}
			if i < len(ctor.params) {
				p.Param = ctor.params[i]
			}
			if p.Name == "" {
				p.Name = fmt.Sprintf("#%d", i)
			}
			if isConcrete(pt) {
				if _, seen := rc.types[p.key]; !seen {
					rc.types[p.key] = pt
				}
			}
			info.params[i] = p
		}
	} else {
		info.instantiable = isConcrete(t)
	}

	rc.classes[key] = info
	return info, nil
}

// construct builds an instance from resolved arguments.
func (ci *classInfo) construct(args []reflect.Value) (instance any, err error) {
	if !ci.ctor.IsValid() {
		return reflect.New(ci.typ.Elem()).Interface(), nil
	}

	defer func() {
		if r := recover(); r != nil {
			instance, err = nil, errContainer(ci.key, "constructor panicked: %v", r)
		}
	}()

	out := ci.ctor.Call(args)
	if ci.returnsError && !out[1].IsNil() {
		return nil, wrapContainer(ci.key, out[1].Interface().(error), "constructor failed")
	}
	return out[0].Interface(), nil
}

// isConcrete reports whether t can be built without a constructor.
func isConcrete(t reflect.Type) bool {
	return t != nil && t.Kind() == reflect.Ptr && t.Elem().Kind() == reflect.Struct
}

// isClass reports whether a parameter of type t is resolved as a service
// rather than a scalar.
func isClass(t reflect.Type) bool {
	return t.Kind() == reflect.Interface || isConcrete(t)
}

// argument converts an explicitly supplied value for parameter p.
func argument(class string, p paramInfo, v any) (reflect.Value, error) {
	if v == nil {
		switch p.typ.Kind() {
		case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
			return reflect.Zero(p.typ), nil
		}
		return reflect.Value{}, errContainer(class, "parameter '%s' of type %s cannot be nil", p.Name, p.typ)
	}
	rv := reflect.ValueOf(v)
	if rv.Type().AssignableTo(p.typ) {
		return rv, nil
	}
	if rv.Type().ConvertibleTo(p.typ) && rv.Kind() != reflect.String && p.typ.Kind() != reflect.String {
		return rv.Convert(p.typ), nil
	}
	return reflect.Value{}, errContainer(class, "parameter '%s': %T is not assignable to %s", p.Name, v, p.typ)
}
