// File: pool/bufferpool_test.go
package pool

import "testing"

func TestBufferPoolAcquireRelease(t *testing.T) {
	p := New()
	buf := p.Acquire(1024)
	if len(buf) != 1024 {
		t.Fatalf("len(buf) = %d, want 1024", len(buf))
	}
	copy(buf, []byte("hello"))
	p.Release(buf)

	buf2 := p.Acquire(1024)
	if len(buf2) != 1024 {
		t.Fatalf("len(buf2) = %d, want 1024", len(buf2))
	}
}

func TestBufferPoolLargeAllocation(t *testing.T) {
	p := New()
	buf := p.Acquire(1 << 20)
	if len(buf) != 1<<20 {
		t.Fatalf("len(buf) = %d, want 1MiB", len(buf))
	}
	p.Release(buf)
}

func TestBufferPoolAcquireAboveLargestClass(t *testing.T) {
	p := New()
	n := 1<<20 + 4 // header + a max-size payload, four bytes over the largest class
	buf := p.Acquire(n)
	if len(buf) != n {
		t.Fatalf("len(buf) = %d, want %d", len(buf), n)
	}
	copy(buf, []byte("hello"))
	p.Release(buf) // not a known class size; Release must not panic
}

func TestClassFor(t *testing.T) {
	cases := map[int]int{
		1:          1 << 10,
		1024:       1 << 10,
		1025:       1 << 12,
		1 << 20:    1 << 20,
		1<<20 + 10: 1 << 20,
	}
	for n, want := range cases {
		if got := classFor(n); got != want {
			t.Errorf("classFor(%d) = %d, want %d", n, got, want)
		}
	}
}
