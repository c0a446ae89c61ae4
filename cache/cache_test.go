package cache

import (
	"errors"
	"sync"
	"testing"
)

func TestCache_Basic(t *testing.T) {
	c := New[string, int](3)

	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("c", 3)

	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Errorf("Get(a) = %d, %v; want 1, true", v, ok)
	}
	if v, ok := c.Get("b"); !ok || v != 2 {
		t.Errorf("Get(b) = %d, %v; want 2, true", v, ok)
	}
	if v, ok := c.Get("c"); !ok || v != 3 {
		t.Errorf("Get(c) = %d, %v; want 3, true", v, ok)
	}

	if _, ok := c.Get("d"); ok {
		t.Error("Get(d) should return false for missing key")
	}
}

func TestCache_Eviction(t *testing.T) {
	c := New[string, int](2)

	c.Set("a", 1)
	c.Set("b", 2)

	// Access 'a' to make it recently used
	c.Get("a")

	// Add 'c', should evict 'b' (least recently used)
	c.Set("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Error("'b' should have been evicted")
	}
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Errorf("Get(a) = %d, %v; want 1, true", v, ok)
	}
	if v, ok := c.Get("c"); !ok || v != 3 {
		t.Errorf("Get(c) = %d, %v; want 3, true", v, ok)
	}
}

func TestCache_EvictionOrder(t *testing.T) {
	c := New[int, int](3)

	c.Set(1, 1)
	c.Set(2, 2)
	c.Set(3, 3)

	// Touch 1 and 3 so 2 is the oldest
	c.Get(1)
	c.Get(3)

	c.Set(4, 4)
	if _, ok := c.Get(2); ok {
		t.Error("2 should have been evicted first")
	}

	c.Set(5, 5)
	if _, ok := c.Get(1); ok {
		t.Error("1 should have been evicted second")
	}

	for _, k := range []int{3, 4, 5} {
		if _, ok := c.Get(k); !ok {
			t.Errorf("%d should still be cached", k)
		}
	}
}

func TestCache_Update(t *testing.T) {
	c := New[string, int](2)

	c.Set("a", 1)
	c.Set("a", 10) // Update

	if v, ok := c.Get("a"); !ok || v != 10 {
		t.Errorf("Get(a) = %d, %v; want 10, true", v, ok)
	}

	if c.Len() != 1 {
		t.Errorf("Len() = %d; want 1", c.Len())
	}
}

func TestCache_Clear(t *testing.T) {
	c := New[string, int](3)

	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("c", 3)

	c.Clear()

	if c.Len() != 0 {
		t.Errorf("Len() after Clear = %d; want 0", c.Len())
	}
	if _, ok := c.Get("a"); ok {
		t.Error("Get(a) should return false after clear")
	}
}

func TestCache_Stats(t *testing.T) {
	c := New[string, int](2)

	c.Set("a", 1)
	c.Set("b", 2)

	c.Get("a") // hit
	c.Get("a") // hit
	c.Get("c") // miss

	c.Set("d", 4) // evicts b

	stats := c.Stats()

	if stats.Size != 2 {
		t.Errorf("Stats.Size = %d; want 2", stats.Size)
	}
	if stats.MaxSize != 2 {
		t.Errorf("Stats.MaxSize = %d; want 2", stats.MaxSize)
	}
	if stats.Hits != 2 {
		t.Errorf("Stats.Hits = %d; want 2", stats.Hits)
	}
	if stats.Misses != 1 {
		t.Errorf("Stats.Misses = %d; want 1", stats.Misses)
	}
	if stats.Evicts != 1 {
		t.Errorf("Stats.Evicts = %d; want 1", stats.Evicts)
	}

	expectedHitRate := 2.0 / 3.0
	if stats.HitRate < expectedHitRate-0.01 || stats.HitRate > expectedHitRate+0.01 {
		t.Errorf("Stats.HitRate = %f; want ~%f", stats.HitRate, expectedHitRate)
	}
}

func TestCache_GetOrCompute(t *testing.T) {
	c := New[string, int](2)

	calls := 0
	v, err := c.GetOrCompute("a", func() (int, error) {
		calls++
		return 42, nil
	})
	if err != nil {
		t.Fatalf("GetOrCompute error: %v", err)
	}
	if v != 42 {
		t.Errorf("GetOrCompute = %d; want 42", v)
	}
	if calls != 1 {
		t.Errorf("fn called %d times; want 1", calls)
	}

	// Second call should use cache
	v, err = c.GetOrCompute("a", func() (int, error) {
		calls++
		return 99, nil
	})
	if err != nil {
		t.Fatalf("GetOrCompute error: %v", err)
	}
	if v != 42 {
		t.Errorf("GetOrCompute = %d; want 42 (cached)", v)
	}
	if calls != 1 {
		t.Errorf("fn called %d times; want 1 (should use cache)", calls)
	}
}

func TestCache_GetOrComputeError(t *testing.T) {
	c := New[string, int](2)

	boom := errors.New("boom")
	if _, err := c.GetOrCompute("a", func() (int, error) {
		return 0, boom
	}); !errors.Is(err, boom) {
		t.Fatalf("GetOrCompute error = %v; want %v", err, boom)
	}

	// errors must not be cached
	if c.Len() != 0 {
		t.Errorf("Len() = %d; want 0 after failed compute", c.Len())
	}
	v, err := c.GetOrCompute("a", func() (int, error) { return 7, nil })
	if err != nil || v != 7 {
		t.Errorf("GetOrCompute = %d, %v; want 7, nil", v, err)
	}
}

func TestCache_ZeroCapacity(t *testing.T) {
	c := New[string, int](0)

	for i := 0; i < 50; i++ {
		c.Set(string(rune('a'+i)), i)
	}

	if c.Len() != 50 {
		t.Errorf("Len() = %d; want 50", c.Len())
	}
}

func TestCache_Concurrent(t *testing.T) {
	c := New[int, int](100)

	var wg sync.WaitGroup
	n := 100

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c.Set(i, i*10)
		}(i)
	}

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c.Get(i)
		}(i)
	}

	wg.Wait()

	for i := 0; i < n; i++ {
		if v, ok := c.Get(i); ok && v != i*10 {
			t.Errorf("Get(%d) = %d; want %d", i, v, i*10)
		}
	}
}

func BenchmarkCache_Get(b *testing.B) {
	c := New[string, int](1000)
	for i := 0; i < 1000; i++ {
		c.Set(string(rune(i)), i)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.Get(string(rune(i % 1000)))
	}
}

func BenchmarkCache_Set(b *testing.B) {
	c := New[string, int](1000)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.Set(string(rune(i%1000)), i)
	}
}

func BenchmarkCache_Concurrent(b *testing.B) {
	c := New[int, int](1000)

	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			if i%2 == 0 {
				c.Set(i%1000, i)
			} else {
				c.Get(i % 1000)
			}
			i++
		}
	})
}
