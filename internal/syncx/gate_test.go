package syncx

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestGateSingleOwner(t *testing.T) {
	var g Gate

	if !g.TryAcquire() {
		t.Fatal("first acquire should succeed")
	}
	if g.TryAcquire() {
		t.Error("second acquire should fail while held")
	}
	if !g.Held() {
		t.Error("Held() = false, want true")
	}

	g.Release()
	if !g.TryAcquire() {
		t.Error("acquire after release should succeed")
	}
}

func TestGateConcurrentAcquire(t *testing.T) {
	var g Gate
	var wins atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if g.TryAcquire() {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	if wins.Load() != 1 {
		t.Errorf("winners = %d, want exactly 1", wins.Load())
	}
}
