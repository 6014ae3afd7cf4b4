package types

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Builtins(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{NameAny, NameString, NameInt, NameFloat, NameBool, NameObject} {
		d, ok := r.Get(name)
		require.True(t, ok, name)
		assert.Equal(t, name, d.Name())
	}
	assert.Equal(t, KindInt, Int.Kind())
}

func TestRegistry_RegisterConflict(t *testing.T) {
	r := NewRegistry()

	_, err := r.Register("email", KindCustom, checkString)
	require.NoError(t, err)

	_, err = r.Register("email", KindCustom, checkString)
	assert.ErrorIs(t, err, ErrTypeExists)

	assert.Panics(t, func() { r.MustRegister("int", KindInt, checkInt) })
}

func TestRegistry_RegisterRejectsReservedNames(t *testing.T) {
	r := NewRegistry()

	_, err := r.Register("", KindCustom, nil)
	assert.Error(t, err)
	_, err = r.Register("list$email", KindCustom, nil)
	assert.Error(t, err)
	_, err = r.Register("pair", KindList, nil)
	assert.Error(t, err)
}

func TestRegistry_DerivedIdentity(t *testing.T) {
	r := NewRegistry()
	intType, _ := r.Get(NameInt)

	first := intType.ListOf()
	second := intType.ListOf()
	assert.Same(t, first, second)

	byName, ok := r.Get("list$int")
	require.True(t, ok)
	assert.Same(t, first, byName)
	assert.Same(t, intType, first.Elem())

	opt, ok := r.Get("optional$list$int")
	require.True(t, ok)
	assert.Same(t, first.OptionalOf(), opt)
	assert.Same(t, opt, opt.OptionalOf())
}

func TestRegistry_UnknownNames(t *testing.T) {
	r := NewRegistry()

	_, ok := r.Get("list$nope")
	assert.False(t, ok)

	_, err := r.Lookup("optional$nope")
	assert.ErrorIs(t, err, ErrUnknownType)
}

func TestRegistry_ConcurrentDerivation(t *testing.T) {
	r := NewRegistry()
	str, _ := r.Get(NameString)

	const workers = 32
	got := make([]*Descriptor, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				got[i] = str.ListOf()
			} else {
				got[i], _ = r.Get("list$string")
			}
		}(i)
	}
	wg.Wait()

	for _, d := range got {
		assert.Same(t, got[0], d)
	}
}

func TestRegistry_CustomTypeConvertsToAny(t *testing.T) {
	r := NewRegistry()
	email := r.MustRegister("email", KindCustom, checkString)
	anyType, _ := r.Get(NameAny)

	assert.True(t, r.Conversions().CanConvert(email, anyType))
	assert.True(t, r.Conversions().CanConvert(email.ListOf(), anyType))
	assert.False(t, r.Conversions().CanConvert(anyType, email))
}

func TestRegistry_Names(t *testing.T) {
	r := NewRegistry()
	f, _ := r.Get(NameFloat)
	f.OptionalOf()

	assert.Contains(t, r.Names(), "optional$float")
	assert.IsIncreasing(t, r.Names())
}
