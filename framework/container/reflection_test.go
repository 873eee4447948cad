package container

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type widget struct{ name string }

type gadget struct{ w *widget }

func newGadget(w *widget, label string) *gadget { return &gadget{w: w} }

func TestReflectionCache_ComputesOnce(t *testing.T) {
	rc := newReflectionCache()
	key, err := rc.register(newGadget, []Param{Named("widget")})
	require.NoError(t, err)

	first, err := rc.get(key)
	require.NoError(t, err)
	second, err := rc.get(key)
	require.NoError(t, err)
	assert.Same(t, first, second)

	require.Len(t, first.params, 2)
	assert.Equal(t, "widget", first.params[0].Name)
	assert.True(t, first.params[0].class)
	assert.Equal(t, "#1", first.params[1].Name)
	assert.False(t, first.params[1].class)

	assert.True(t, rc.instantiable(KeyOf(reflect.TypeOf(&widget{}))), "concrete params are learned")
}

func TestReflectionCache_RegisterInvalidates(t *testing.T) {
	rc := newReflectionCache()
	key, err := rc.register(newGadget, nil)
	require.NoError(t, err)
	before, err := rc.get(key)
	require.NoError(t, err)

	_, err = rc.register(func() *gadget { return &gadget{} }, nil)
	require.NoError(t, err)
	after, err := rc.get(key)
	require.NoError(t, err)

	assert.NotSame(t, before, after)
	assert.Empty(t, after.params)
}

func TestReflectionCache_LearnKeepsFirstType(t *testing.T) {
	rc := newReflectionCache()
	key := KeyOf(reflect.TypeOf(&widget{}))
	rc.learn(key, reflect.TypeOf(&widget{}))
	rc.learn(key, reflect.TypeOf(widget{}))

	info, err := rc.get(key)
	require.NoError(t, err)
	assert.True(t, info.instantiable)

	v, err := info.construct(nil)
	require.NoError(t, err)
	assert.IsType(t, &widget{}, v)
}

func TestClassInfo_ConstructRecoversPanic(t *testing.T) {
	rc := newReflectionCache()
	key, err := rc.register(func() *widget { panic("kaboom") }, nil)
	require.NoError(t, err)
	info, err := rc.get(key)
	require.NoError(t, err)

	_, err = info.construct(nil)
	assert.ErrorIs(t, err, ErrContainer)
	assert.Contains(t, err.Error(), "kaboom")
}

func TestArgument(t *testing.T) {
	p := paramInfo{Param: Param{Name: "n"}, typ: reflect.TypeOf(int64(0))}

	v, err := argument("c", p, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(3), v.Interface())

	_, err = argument("c", p, nil)
	assert.Error(t, err)

	ptr := paramInfo{Param: Param{Name: "w"}, typ: reflect.TypeOf(&widget{})}
	v, err = argument("c", ptr, nil)
	require.NoError(t, err)
	assert.True(t, v.IsNil())
}
