package hashindex

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// identityHasher matches spec.md §8's "hash = identity" test setup.
func identityHasher(k int) uint64 { return uint64(k) }

func TestExtendibleHashScenario(t *testing.T) {
	tbl := New[int, string](2, identityHasher)

	tbl.Insert(1, "a")
	tbl.Insert(2, "b")
	tbl.Insert(3, "c")
	tbl.Insert(4, "d")
	tbl.Insert(5, "e")
	tbl.Insert(6, "f")
	tbl.Insert(7, "g")
	tbl.Insert(8, "h")
	tbl.Insert(9, "i")

	assert.Equal(t, 5, tbl.NumBuckets())
	assert.Equal(t, 3, tbl.GlobalDepth())
	assert.Equal(t, 2, tbl.LocalDepth(0))
	assert.Equal(t, 3, tbl.LocalDepth(1))
	assert.Equal(t, 2, tbl.LocalDepth(2))
	assert.Equal(t, 2, tbl.LocalDepth(3))

	var v string
	assert.True(t, tbl.Find(9, &v))
	assert.Equal(t, "i", v)
	assert.True(t, tbl.Find(8, &v))
	assert.Equal(t, "h", v)
	assert.True(t, tbl.Find(2, &v))
	assert.Equal(t, "b", v)
	assert.False(t, tbl.Find(10, &v))

	assert.True(t, tbl.Remove(8))
	assert.True(t, tbl.Remove(4))
	assert.True(t, tbl.Remove(1))
	assert.False(t, tbl.Remove(20))
}

func TestExtendibleHashOverwrite(t *testing.T) {
	tbl := New[int, string](4, identityHasher)
	tbl.Insert(1, "a")
	tbl.Insert(1, "b")

	var v string
	assert.True(t, tbl.Find(1, &v))
	assert.Equal(t, "b", v)
	assert.Equal(t, 1, tbl.NumBuckets())
}

func TestExtendibleHashDefaultHashers(t *testing.T) {
	tbl := New[int, int](4, IntHasher[int]())
	for i := 0; i < 200; i++ {
		tbl.Insert(i, i*i)
	}
	for i := 0; i < 200; i++ {
		var v int
		assert.True(t, tbl.Find(i, &v))
		assert.Equal(t, i*i, v)
	}

	strTbl := New[string, int](4, StringHasher[string]())
	strTbl.Insert("hello", 1)
	strTbl.Insert("world", 2)
	var v int
	assert.True(t, strTbl.Find("hello", &v))
	assert.Equal(t, 1, v)
}

func TestExtendibleHashConcurrent(t *testing.T) {
	tbl := New[int, int](4, IntHasher[int]())
	done := make(chan struct{})

	for w := 0; w < 4; w++ {
		go func(base int) {
			for i := 0; i < 250; i++ {
				tbl.Insert(base*1000+i, i)
			}
			done <- struct{}{}
		}(w)
	}
	for w := 0; w < 4; w++ {
		<-done
	}

	for w := 0; w < 4; w++ {
		for i := 0; i < 250; i++ {
			var v int
			assert.True(t, tbl.Find(w*1000+i, &v))
		}
	}
}
