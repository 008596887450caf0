package workerpool

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestPool_ExecutesTasks(t *testing.T) {
	pool := New(4, 16, nil)

	var counter int64
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		ok := pool.Submit(func() {
			defer wg.Done()
			atomic.AddInt64(&counter, 1)
		})
		if !ok {
			t.Fatal("Submit failed on a running pool")
		}
	}
	wg.Wait()

	if got := atomic.LoadInt64(&counter); got != 100 {
		t.Errorf("Expected 100 tasks executed, got %d", got)
	}

	pool.Shutdown()
}

func TestPool_RecoversFromPanic(t *testing.T) {
	pool := New(1, 4, nil)
	defer pool.Shutdown()

	done := make(chan struct{})
	pool.Submit(func() {
		panic("boom")
	})
	pool.Submit(func() {
		close(done)
	})

	select {
	case <-done:
		// panic 没有杀死 worker
	case <-time.After(2 * time.Second):
		t.Fatal("Worker died after panic")
	}
}

func TestPool_TrySubmit_FullQueue(t *testing.T) {
	pool := New(1, 1, nil)
	defer pool.Shutdown()

	block := make(chan struct{})
	defer close(block)

	// 占住唯一的 worker
	pool.Submit(func() { <-block })
	// 填满队列
	pool.Submit(func() {})

	// 队列满时 TrySubmit 立即失败而不是阻塞
	deadline := time.After(time.Second)
	for {
		if !pool.TrySubmit(func() {}) {
			return
		}
		select {
		case <-deadline:
			t.Fatal("TrySubmit never reported a full queue")
		default:
		}
	}
}
