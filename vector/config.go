// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package vector

import (
	"fmt"
	"math"
	"os"
	"strconv"

	"github.com/c2h5oh/datasize"
)

// Environment variables read by ConfigFromEnv.
const (
	EnvAllocationLimit        = "VGI_VECTOR_ALLOCATION_LIMIT"
	EnvMaxAllocationBytes     = "VGI_VECTOR_MAX_ALLOCATION_BYTES"
	EnvInitialValueAllocation = "VGI_VECTOR_INITIAL_VALUE_ALLOCATION"
)

const (
	// DefaultInitialValueAllocation is the slot count used for the first
	// allocation when no capacity hint was given.
	DefaultInitialValueAllocation = 3970
	// DefaultRepeatPerRecord is the assumed average list length when sizing
	// a child vector without a density hint.
	DefaultRepeatPerRecord = 5
	// OffsetWidth is the byte width of one offset entry.
	OffsetWidth = 4
)

// Config controls allocator limits and vector growth.
type Config struct {
	// Limit caps the bytes an allocator may hold at once. Zero means no limit.
	Limit int64
	// MaxAllocationBytes caps a single buffer allocation. Growth beyond it
	// fails with an OversizedAllocation error.
	MaxAllocationBytes int64
	// InitialValueAllocation is the default slot count for new vectors.
	InitialValueAllocation int
}

// DefaultConfig returns a Config with no allocator limit, a 2 GiB single
// buffer cap and the standard initial slot count.
func DefaultConfig() Config {
	return Config{
		MaxAllocationBytes:     math.MaxInt32,
		InitialValueAllocation: DefaultInitialValueAllocation,
	}
}

// ConfigFromEnv starts from DefaultConfig and applies any VGI_VECTOR_*
// environment overrides. Byte sizes accept units such as "64MB".
func ConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v, ok := os.LookupEnv(EnvAllocationLimit); ok {
		n, err := parseByteSize(v)
		if err != nil {
			return cfg, fmt.Errorf("%s: %w", EnvAllocationLimit, err)
		}
		cfg.Limit = n
	}
	if v, ok := os.LookupEnv(EnvMaxAllocationBytes); ok {
		n, err := parseByteSize(v)
		if err != nil {
			return cfg, fmt.Errorf("%s: %w", EnvMaxAllocationBytes, err)
		}
		cfg.MaxAllocationBytes = n
	}
	if v, ok := os.LookupEnv(EnvInitialValueAllocation); ok {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return cfg, illegalArgument("%s: invalid slot count %q", EnvInitialValueAllocation, v)
		}
		cfg.InitialValueAllocation = n
	}
	return cfg, nil
}

// ParseByteSize parses a human byte size such as "512KB" or "1GB".
func ParseByteSize(s string) (int64, error) {
	return parseByteSize(s)
}

func parseByteSize(s string) (int64, error) {
	var size datasize.ByteSize
	if err := size.UnmarshalText([]byte(s)); err != nil {
		return 0, illegalArgument("invalid byte size %q: %v", s, err)
	}
	if size.Bytes() > math.MaxInt64 {
		return 0, illegalArgument("byte size %q overflows", s)
	}
	return int64(size.Bytes()), nil
}

func (c Config) withDefaults() Config {
	if c.MaxAllocationBytes <= 0 {
		c.MaxAllocationBytes = math.MaxInt32
	}
	if c.InitialValueAllocation <= 0 {
		c.InitialValueAllocation = DefaultInitialValueAllocation
	}
	return c
}
