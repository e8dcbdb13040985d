package replacer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLRUScenario(t *testing.T) {
	// Concrete scenario from spec.md §8.
	l := New[int]()

	for _, v := range []int{1, 2, 3, 4, 5, 6} {
		l.Insert(v)
	}
	l.Insert(1) // promotes 1 back to most-recent

	assert.Equal(t, 6, l.Size())

	for _, want := range []int{2, 3, 4} {
		got, ok := l.Victim()
		assert.True(t, ok)
		assert.Equal(t, want, got)
	}

	assert.False(t, l.Erase(4))
	assert.True(t, l.Erase(6))
	assert.Equal(t, 2, l.Size())

	got, ok := l.Victim()
	assert.True(t, ok)
	assert.Equal(t, 5, got)

	got, ok = l.Victim()
	assert.True(t, ok)
	assert.Equal(t, 1, got)

	_, ok = l.Victim()
	assert.False(t, ok)
}

func TestLRUInsertIsIdempotentAndPromotes(t *testing.T) {
	l := New[string]()
	l.Insert("a")
	l.Insert("b")
	l.Insert("c")

	l.Insert("a")

	got, ok := l.Victim()
	assert.True(t, ok)
	assert.Equal(t, "b", got)

	got, ok = l.Victim()
	assert.True(t, ok)
	assert.Equal(t, "c", got)

	got, ok = l.Victim()
	assert.True(t, ok)
	assert.Equal(t, "a", got)
}

func TestLRUEraseMissing(t *testing.T) {
	l := New[int]()
	assert.False(t, l.Erase(42))
	assert.Equal(t, 0, l.Size())
}
