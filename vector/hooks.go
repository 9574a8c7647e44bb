// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package vector

// AllocationEvent names what happened to a buffer in an AllocationInfo.
type AllocationEvent string

const (
	EventAllocate AllocationEvent = "allocate"
	EventRelease  AllocationEvent = "release"
	EventTransfer AllocationEvent = "transfer"     // bytes adopted from another allocator
	EventHandOff  AllocationEvent = "transfer_out" // bytes adopted by another allocator
	EventRefused  AllocationEvent = "refused"
)

// AllocationHook observes allocator and vector growth activity.
// Implementations must be safe for concurrent use when an allocator is
// shared between goroutines.
type AllocationHook interface {
	OnAllocation(info AllocationInfo)
	OnGrowth(info GrowthInfo)
}

// AllocationInfo describes one allocator event.
type AllocationInfo struct {
	Allocator string          // allocator name
	Event     AllocationEvent // what happened
	Bytes     int64           // bytes involved in the event
	Allocated int64           // bytes held by the allocator afterwards
}

// GrowthInfo describes one buffer reallocation inside a vector.
type GrowthInfo struct {
	Vector   string // vector name
	Buffer   string // "validity", "offsets", "data" or "typeIds"
	OldBytes int64
	NewBytes int64
}

// AllocationStatistics holds cumulative allocator counters.
type AllocationStatistics struct {
	Allocations    int64
	Releases       int64
	Transfers      int64
	Refused        int64
	BytesAllocated int64
	BytesReleased  int64
}

// RecordAllocation records one successful allocation of n bytes.
func (s *AllocationStatistics) RecordAllocation(n int64) {
	s.Allocations++
	s.BytesAllocated += n
}

// RecordRelease records n bytes returned to the allocator.
func (s *AllocationStatistics) RecordRelease(n int64) {
	s.Releases++
	s.BytesReleased += n
}

// RecordTransfer records ownership of a buffer moving between allocators.
func (s *AllocationStatistics) RecordTransfer() {
	s.Transfers++
}

// RecordRefused records an allocation rejected by the limit.
func (s *AllocationStatistics) RecordRefused() {
	s.Refused++
}
