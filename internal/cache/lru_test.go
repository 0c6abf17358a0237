package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestLRU_EvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRU[string, int](2)
	c.Add("a", 1)
	c.Add("b", 2)

	_, _ = c.Get("a")
	c.Add("c", 3)

	_, ok := c.Get("b")
	assert.False(t, ok)
	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)
	assert.Equal(t, 2, c.Len())
}

func TestLRU_UpdateExisting(t *testing.T) {
	c := NewLRU[string, int](2)
	c.Add("a", 1)
	c.Add("a", 5)
	v, _ := c.Get("a")
	assert.Equal(t, 5, v)
	assert.Equal(t, 1, c.Len())
}

func TestLRU_MinimumCapacity(t *testing.T) {
	c := NewLRU[int, int](0)
	c.Add(1, 1)
	c.Add(2, 2)
	assert.Equal(t, 1, c.Len())
}

// 与朴素模型比较：容量不超限，且最近写入的键总能读到
func TestLRU_Model(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		capacity := rapid.IntRange(1, 5).Draw(t, "capacity")
		c := NewLRU[int, int](capacity)
		var order []int // 最近使用在末尾
		model := map[int]int{}

		touch := func(k int) {
			for i, x := range order {
				if x == k {
					order = append(order[:i], order[i+1:]...)
					break
				}
			}
			order = append(order, k)
		}

		ops := rapid.SliceOfN(rapid.IntRange(0, 7), 1, 50).Draw(t, "keys")
		for i, k := range ops {
			if i%3 == 2 {
				got, ok := c.Get(k)
				want, wantOK := model[k]
				if ok != wantOK || got != want {
					t.Fatalf("get %d: got (%d,%v) want (%d,%v)", k, got, ok, want, wantOK)
				}
				if ok {
					touch(k)
				}
				continue
			}
			c.Add(k, i)
			model[k] = i
			touch(k)
			if len(order) > capacity {
				delete(model, order[0])
				order = order[1:]
			}
			if c.Len() != len(model) {
				t.Fatalf("len %d want %d", c.Len(), len(model))
			}
		}
	})
}
