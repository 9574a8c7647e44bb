// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

// Package conformance provides a fixed vector root that exercises list
// vectors end to end: null and empty slots, nested lists, and a list whose
// child was promoted to a union while writing.
//
// [BuildRoot] writes the fixture into an allocator and [Verify] checks any
// root against the expected table, so a root that went through IPC, the
// frame codec or a transfer can be compared with the original. [Batches]
// and [VerifyRange] do the same for a root split into row ranges.
package conformance
