// Package resourcespec computes the immutable per-executor resource
// capability every outgoing container request uses verbatim.
package resourcespec

import "math"

// MinOverheadMB is the floor applied to the computed memory overhead,
// regardless of how small executorMemoryMB is.
const MinOverheadMB int64 = 384

// defaultOverheadFactor is applied to executorMemoryMB when no override
// is configured.
const defaultOverheadFactor = 0.10

// Spec is the immutable resource capability requested for every
// executor container. Construct with New; never mutate a Spec after
// construction.
type Spec struct {
	memoryMB int64
	vcores   int32
}

// Params are the raw configuration inputs used to derive a Spec.
type Params struct {
	ExecutorMemoryMB             int64
	ExecutorMemoryOverheadMB     int64   // 0 means "compute from ExecutorMemoryMB"
	ExtraInterpreterWorkerMemory int64   // 0 unless the application is an interpreter app
	ExecutorCores                int32
	OverheadFactor               float64 // 0 means use defaultOverheadFactor
}

// New computes the immutable resource spec once, at construction time.
func New(p Params) Spec {
	overhead := p.ExecutorMemoryOverheadMB
	if overhead == 0 {
		factor := p.OverheadFactor
		if factor == 0 {
			factor = defaultOverheadFactor
		}
		computed := int64(math.Ceil(float64(p.ExecutorMemoryMB) * factor))
		if computed < MinOverheadMB {
			computed = MinOverheadMB
		}
		overhead = computed
	}

	return Spec{
		memoryMB: p.ExecutorMemoryMB + overhead + p.ExtraInterpreterWorkerMemory,
		vcores:   p.ExecutorCores,
	}
}

// MemoryMB is the total memory (executor + overhead + interpreter extra)
// every container request asks the RM for.
func (s Spec) MemoryMB() int64 { return s.memoryMB }

// Vcores is the vcore count every container request asks the RM for.
func (s Spec) Vcores() int32 { return s.vcores }

// SatisfiedBy reports whether a granted container's memory meets this
// spec's requirement. Vcores are deliberately not compared here: RM
// schedulers are known to report vcore counts they did not actually
// honor, so the allocator always treats the requested vcore count as
// authoritative once memory has cleared the bar (see the allocator's
// matchRequest for the relaxed resource key).
func (s Spec) SatisfiedBy(grantedMemoryMB int64) bool {
	return grantedMemoryMB >= s.memoryMB
}
