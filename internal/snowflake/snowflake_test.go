package snowflake

import (
	"sync"
	"testing"
)

func TestGenerate_Monotonic(t *testing.T) {
	node, err := NewNode(1)
	if err != nil {
		t.Fatalf("NewNode failed: %v", err)
	}

	var last ID
	for i := 0; i < 10000; i++ {
		id := node.Generate()
		if id <= last {
			t.Fatalf("Expected monotonic ids, got %d after %d", id, last)
		}
		last = id
	}
}

func TestGenerate_Unique_Concurrent(t *testing.T) {
	node, _ := NewNode(1)

	const goroutines = 8
	const perGoroutine = 1000

	var mu sync.Mutex
	seen := make(map[ID]bool, goroutines*perGoroutine)

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids := make([]ID, 0, perGoroutine)
			for i := 0; i < perGoroutine; i++ {
				ids = append(ids, node.Generate())
			}
			mu.Lock()
			defer mu.Unlock()
			for _, id := range ids {
				if seen[id] {
					t.Errorf("Duplicate id generated: %d", id)
				}
				seen[id] = true
			}
		}()
	}
	wg.Wait()

	if len(seen) != goroutines*perGoroutine {
		t.Errorf("Expected %d unique ids, got %d", goroutines*perGoroutine, len(seen))
	}
}

func TestID_String(t *testing.T) {
	if got := ID(0).String(); got != "0" {
		t.Errorf("Expected '0', got '%s'", got)
	}
	if got := ID(1234567890).String(); got != "1234567890" {
		t.Errorf("Expected '1234567890', got '%s'", got)
	}
}

func TestNewNode_InvalidID(t *testing.T) {
	// 越界的 nodeID 回退到 1，而不是报错
	node, err := NewNode(maxNodeID + 1)
	if err != nil {
		t.Fatalf("NewNode failed: %v", err)
	}
	if node.nodeID != 1 {
		t.Errorf("Expected fallback nodeID 1, got %d", node.nodeID)
	}
}
