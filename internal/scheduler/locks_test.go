package scheduler

import (
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// TestTaskLockManager_BasicLockUnlock verifies basic lock/unlock operations.
func TestTaskLockManager_BasicLockUnlock(t *testing.T) {
	mgr := NewTaskLockManager()

	mgr.Lock("framing")
	mgr.Unlock("framing")

	// Should be able to lock again after unlock
	mgr.Lock("framing")
	mgr.Unlock("framing")

	// Unlocking an unknown task is a no-op
	mgr.Unlock("never-locked")
}

// TestTaskLockManager_SameTaskBlocks verifies that locking the same task blocks concurrent access.
func TestTaskLockManager_SameTaskBlocks(t *testing.T) {
	mgr := NewTaskLockManager()
	orderChan := make(chan int, 2)

	go func() {
		mgr.Lock("framing")
		orderChan <- 1
		time.Sleep(50 * time.Millisecond)
		mgr.Unlock("framing")
	}()

	time.Sleep(10 * time.Millisecond)

	go func() {
		mgr.Lock("framing")
		orderChan <- 2
		mgr.Unlock("framing")
	}()

	if first := <-orderChan; first != 1 {
		t.Errorf("expected first holder to be 1, got %d", first)
	}
	if second := <-orderChan; second != 2 {
		t.Errorf("expected second holder to be 2, got %d", second)
	}
}

// TestTaskLockManager_DifferentTasksParallel verifies disjoint tasks don't block each other.
func TestTaskLockManager_DifferentTasksParallel(t *testing.T) {
	mgr := NewTaskLockManager()
	var running atomic.Int32
	var peak atomic.Int32
	var wg sync.WaitGroup

	for _, id := range []string{"a", "b", "c"} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			mgr.Lock(id)
			defer mgr.Unlock(id)

			n := running.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(30 * time.Millisecond)
			running.Add(-1)
		}(id)
	}
	wg.Wait()

	if peak.Load() < 2 {
		t.Errorf("expected disjoint tasks to run concurrently, peak was %d", peak.Load())
	}
}

// TestTaskLockManager_LockAll verifies ordered, de-duplicated multi-task locking.
func TestTaskLockManager_LockAll(t *testing.T) {
	mgr := NewTaskLockManager()

	held := mgr.LockAll([]string{"c", "a", "b", "a"})
	if want := []string{"a", "b", "c"}; !reflect.DeepEqual(held, want) {
		t.Errorf("LockAll returned %v, want %v", held, want)
	}
	mgr.UnlockAll(held)

	if held := mgr.LockAll(nil); held != nil {
		t.Errorf("expected nil for empty input, got %v", held)
	}
}

// TestTaskLockManager_OverlappingSetsNoDeadlock verifies opposite request orders cannot deadlock.
func TestTaskLockManager_OverlappingSetsNoDeadlock(t *testing.T) {
	mgr := NewTaskLockManager()
	done := make(chan struct{})

	go func() {
		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(2)
			go func() {
				defer wg.Done()
				held := mgr.LockAll([]string{"x", "y", "z"})
				mgr.UnlockAll(held)
			}()
			go func() {
				defer wg.Done()
				held := mgr.LockAll([]string{"z", "y", "x"})
				mgr.UnlockAll(held)
			}()
		}
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("deadlock: overlapping LockAll calls did not finish")
	}
}
