package chop

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/annel0/treefell/internal/vec"
	"github.com/annel0/treefell/internal/world"
	"github.com/annel0/treefell/internal/world/block"
)

func drop(x float64, m block.Material, n int) Drop {
	return NewDrop(vec.Vec3Float{X: x}, world.NewItemStack(m, n))
}

func TestDropList_Mutations(t *testing.T) {
	l := NewDropList([]Drop{drop(0, block.OakLog, 1), drop(1, block.Stick, 2), drop(2, block.Apple, 1)})
	snap := l.Snapshot()

	assert.True(t, l.Set(1, drop(1, block.Stick, 5)))
	assert.False(t, l.Set(3, drop(3, block.Stick, 1)))
	assert.True(t, l.RemoveAt(0))
	assert.False(t, l.RemoveAt(-1))
	l.Add(drop(9, block.OakSapling, 1))

	assert.Equal(t, 1, l.RemoveFunc(func(d Drop) bool { return d.Item.Material == block.Apple }))
	assert.Equal(t, []Drop{drop(1, block.Stick, 5), drop(9, block.OakSapling, 1)}, l.Snapshot())
	assert.Len(t, snap, 3, "Ранее полученный снимок не меняется")
	assert.Equal(t, block.OakLog, snap[0].Item.Material)

	d, ok := l.Get(1)
	assert.True(t, ok)
	assert.Equal(t, block.OakSapling, d.Item.Material)
	_, ok = l.Get(2)
	assert.False(t, ok)

	l.Clear()
	assert.Equal(t, 0, l.Len())
}

func TestDropList_ConcurrentReadersSeeWholeStates(t *testing.T) {
	l := NewDropList(nil)
	const writers, perWriter = 4, 250

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < perWriter; j++ {
				// пара добавляется одной записью: читатель никогда не видит нечётную длину
				l.Add(drop(float64(i), block.Stick, 1), drop(float64(i), block.Apple, 1))
			}
		}(i)
	}

	stop := make(chan struct{})
	var readers sync.WaitGroup
	readers.Add(1)
	go func() {
		defer readers.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			n := 0
			l.Range(func(_ int, _ Drop) bool { n++; return true })
			assert.Zero(t, n%2, "Итерация увидела частичное изменение")
		}
	}()

	wg.Wait()
	close(stop)
	readers.Wait()
	assert.Equal(t, writers*perWriter*2, l.Len())
}
