// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package vector

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/apache/arrow-go/v18/arrow/bitutil"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/dustin/go-humanize"
)

// Allocator hands out reference-counted buffers and keeps a running account
// of the bytes it owns. Requests are rounded up to a power of two and the
// returned memory is zeroed.
type Allocator struct {
	name string
	mem  memory.Allocator
	cfg  Config

	allocated atomic.Int64
	peak      atomic.Int64

	mu    sync.Mutex
	hook  AllocationHook
	stats AllocationStatistics
}

// NewAllocator returns an allocator backed by Go-managed memory.
func NewAllocator(name string, cfg Config) *Allocator {
	return NewAllocatorWith(name, memory.NewGoAllocator(), cfg)
}

// NewAllocatorWith returns an allocator that draws memory from mem.
func NewAllocatorWith(name string, mem memory.Allocator, cfg Config) *Allocator {
	return &Allocator{name: name, mem: mem, cfg: cfg.withDefaults()}
}

// Name returns the allocator name used in logs and hooks.
func (a *Allocator) Name() string { return a.name }

// Config returns the allocator's effective configuration.
func (a *Allocator) Config() Config { return a.cfg }

// Memory returns the underlying arrow allocator.
func (a *Allocator) Memory() memory.Allocator { return a.mem }

// Allocated reports the bytes currently owned by this allocator.
func (a *Allocator) Allocated() int64 { return a.allocated.Load() }

// Peak reports the highest value Allocated has reached.
func (a *Allocator) Peak() int64 { return a.peak.Load() }

// Limit returns the configured byte limit, or zero when unlimited.
func (a *Allocator) Limit() int64 { return a.cfg.Limit }

// SetHook installs an observer for allocation and growth events.
func (a *Allocator) SetHook(h AllocationHook) {
	a.mu.Lock()
	a.hook = h
	a.mu.Unlock()
}

// Statistics returns a snapshot of the cumulative counters.
func (a *Allocator) Statistics() AllocationStatistics {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stats
}

// Buffer allocates a zeroed buffer of at least size bytes. It fails with an
// OutOfMemory error when the allocator limit would be exceeded.
func (a *Allocator) Buffer(size int) (*Buffer, error) {
	if size < 0 {
		return nil, illegalArgument("negative buffer size %d", size)
	}
	if size == 0 {
		return a.Empty(), nil
	}
	rounded := int64(roundUpPowerOf2(size))

	if limit := a.cfg.Limit; limit > 0 && a.allocated.Load()+rounded > limit {
		a.mu.Lock()
		a.stats.RecordRefused()
		hook := a.hook
		a.mu.Unlock()
		if hook != nil {
			hook.OnAllocation(AllocationInfo{Allocator: a.name, Event: EventRefused, Bytes: rounded, Allocated: a.allocated.Load()})
		}
		return nil, outOfMemory("allocator %q: cannot allocate %s, %s of %s in use",
			a.name, humanize.IBytes(uint64(rounded)),
			humanize.IBytes(uint64(a.allocated.Load())), humanize.IBytes(uint64(limit)))
	}

	data := a.mem.Allocate(int(rounded))
	clear(data)

	l := &ledger{owner: a, size: rounded, mem: a.mem}
	a.charge(rounded)
	return &Buffer{buf: memory.NewBufferWithAllocator(data, l), ledger: l, refs: 1}, nil
}

// Empty returns a zero-capacity buffer that owns no memory.
func (a *Allocator) Empty() *Buffer {
	return &Buffer{refs: 1}
}

// Close reports an IllegalState error if any bytes are still outstanding.
func (a *Allocator) Close() error {
	if n := a.allocated.Load(); n != 0 {
		slog.Warn("allocator closed with outstanding memory", "allocator", a.name, "bytes", n)
		return illegalState("allocator %q closed with %d bytes outstanding", a.name, n)
	}
	return nil
}

// roundUpPowerOf2 returns the smallest power of two >= n.
func roundUpPowerOf2(n int) int {
	if n <= 1 {
		return 1
	}
	if n&(n-1) == 0 {
		return n
	}
	return bitutil.NextPowerOf2(n)
}

func (a *Allocator) String() string {
	return fmt.Sprintf("Allocator(%s allocated=%s peak=%s)", a.name,
		humanize.IBytes(uint64(a.Allocated())), humanize.IBytes(uint64(a.Peak())))
}

func (a *Allocator) charge(n int64) {
	now := a.allocated.Add(n)
	for {
		p := a.peak.Load()
		if now <= p || a.peak.CompareAndSwap(p, now) {
			break
		}
	}
	a.mu.Lock()
	a.stats.RecordAllocation(n)
	hook := a.hook
	a.mu.Unlock()
	if hook != nil {
		hook.OnAllocation(AllocationInfo{Allocator: a.name, Event: EventAllocate, Bytes: n, Allocated: now})
	}
}

func (a *Allocator) credit(n int64) {
	now := a.allocated.Add(-n)
	a.mu.Lock()
	a.stats.RecordRelease(n)
	hook := a.hook
	a.mu.Unlock()
	if hook != nil {
		hook.OnAllocation(AllocationInfo{Allocator: a.name, Event: EventRelease, Bytes: n, Allocated: now})
	}
}

// adopt moves n bytes of accounting from src to a.
func (a *Allocator) adopt(src *Allocator, n int64) {
	left := src.allocated.Add(-n)
	src.mu.Lock()
	srcHook := src.hook
	src.mu.Unlock()
	if srcHook != nil {
		srcHook.OnAllocation(AllocationInfo{Allocator: src.name, Event: EventHandOff, Bytes: n, Allocated: left})
	}
	now := a.allocated.Add(n)
	for {
		p := a.peak.Load()
		if now <= p || a.peak.CompareAndSwap(p, now) {
			break
		}
	}
	a.mu.Lock()
	a.stats.RecordTransfer()
	hook := a.hook
	a.mu.Unlock()
	if hook != nil {
		hook.OnAllocation(AllocationInfo{Allocator: a.name, Event: EventTransfer, Bytes: n, Allocated: now})
	}
}

func (a *Allocator) notifyGrowth(vector, buffer string, oldBytes, newBytes int) {
	slog.Debug("vector buffer grown", "vector", vector, "buffer", buffer, "from", oldBytes, "to", newBytes)
	a.mu.Lock()
	hook := a.hook
	a.mu.Unlock()
	if hook != nil {
		hook.OnGrowth(GrowthInfo{Vector: vector, Buffer: buffer, OldBytes: int64(oldBytes), NewBytes: int64(newBytes)})
	}
}

// ledger is shared by every handle onto one allocation. It is installed as
// the memory.Allocator of the underlying arrow buffer so that the final
// release credits whichever allocator currently owns the bytes.
type ledger struct {
	mu    sync.Mutex
	owner *Allocator
	size  int64
	mem   memory.Allocator
}

func (l *ledger) Allocate(size int) []byte { return l.mem.Allocate(size) }

func (l *ledger) Reallocate(size int, b []byte) []byte {
	out := l.mem.Reallocate(size, b)
	l.mu.Lock()
	delta := int64(cap(out)) - l.size
	l.size += delta
	owner := l.owner
	l.mu.Unlock()
	if delta > 0 {
		owner.charge(delta)
	} else if delta < 0 {
		owner.credit(-delta)
	}
	return out
}

func (l *ledger) Free(b []byte) {
	l.mem.Free(b)
	l.mu.Lock()
	owner, size := l.owner, l.size
	l.size = 0
	l.mu.Unlock()
	if owner != nil && size > 0 {
		owner.credit(size)
	}
}

func (l *ledger) transfer(target *Allocator) {
	l.mu.Lock()
	src := l.owner
	l.owner = target
	size := l.size
	l.mu.Unlock()
	if src != target && size > 0 {
		target.adopt(src, size)
	}
}

// grow replaces old with a buffer of twice max(base, old capacity) bytes,
// rounded up to a power of two. Existing bytes are kept and the new tail is
// zeroed. On error old is left untouched.
func (a *Allocator) grow(old *Buffer, base int, vector, buffer string) (*Buffer, error) {
	nb, err := a.expand(old, base, vector, buffer)
	if err != nil {
		return nil, err
	}
	a.commitGrowth(old, nb, vector, buffer)
	return nb, nil
}

// expand is grow without releasing old, so that several buffers can be
// grown and then committed together.
func (a *Allocator) expand(old *Buffer, base int, vector, buffer string) (*Buffer, error) {
	if oldCap := old.Capacity(); oldCap > base {
		base = oldCap
	}
	if base == 0 {
		base = 1
	}
	newSize := int64(roundUpPowerOf2(base * 2))
	if newSize > a.cfg.MaxAllocationBytes {
		return nil, oversizedAllocation("unable to expand the %s buffer of %q beyond %d bytes", buffer, vector, a.cfg.MaxAllocationBytes)
	}
	nb, err := a.Buffer(int(newSize))
	if err != nil {
		return nil, err
	}
	copy(nb.Bytes(), old.Bytes())
	return nb, nil
}

// commitGrowth releases old once nb, produced by expand, has replaced it.
func (a *Allocator) commitGrowth(old, nb *Buffer, vector, buffer string) {
	oldCap := old.Capacity()
	old.Release()
	a.notifyGrowth(vector, buffer, oldCap, nb.Capacity())
}

// allocate returns a zeroed buffer of size bytes, checked against the
// single allocation cap.
func (a *Allocator) allocate(size int, vector, buffer string) (*Buffer, error) {
	if int64(roundUpPowerOf2(size)) > a.cfg.MaxAllocationBytes {
		return nil, oversizedAllocation("%s buffer of %q: %d bytes exceeds the %d byte cap", buffer, vector, size, a.cfg.MaxAllocationBytes)
	}
	return a.Buffer(size)
}
