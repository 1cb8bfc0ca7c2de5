package resourcespec

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew_DefaultOverheadIsTenPercentAndAtLeastMinOverhead(t *testing.T) {
	spec := New(Params{ExecutorMemoryMB: 4096, ExecutorCores: 4})

	// ceil(0.10 * 4096) = 410, above the 384MB floor.
	assert.EqualValues(t, 4096+410, spec.MemoryMB())
	assert.EqualValues(t, 4, spec.Vcores())
}

func TestNew_SmallExecutorMemoryFallsBackToMinOverhead(t *testing.T) {
	spec := New(Params{ExecutorMemoryMB: 512, ExecutorCores: 1})

	// ceil(0.10 * 512) = 52, below the 384MB floor.
	assert.EqualValues(t, 512+MinOverheadMB, spec.MemoryMB())
}

func TestNew_ExplicitOverheadOverridesComputedValue(t *testing.T) {
	spec := New(Params{ExecutorMemoryMB: 4096, ExecutorMemoryOverheadMB: 1000, ExecutorCores: 2})

	assert.EqualValues(t, 4096+1000, spec.MemoryMB())
}

func TestNew_InterpreterExtraMemoryIsAdded(t *testing.T) {
	spec := New(Params{ExecutorMemoryMB: 4096, ExecutorMemoryOverheadMB: 400, ExtraInterpreterWorkerMemory: 256, ExecutorCores: 2})

	assert.EqualValues(t, 4096+400+256, spec.MemoryMB())
}

func TestNew_CustomOverheadFactor(t *testing.T) {
	spec := New(Params{ExecutorMemoryMB: 10000, OverheadFactor: 0.20, ExecutorCores: 1})

	assert.EqualValues(t, 10000+2000, spec.MemoryMB())
}

func TestSatisfiedBy(t *testing.T) {
	spec := New(Params{ExecutorMemoryMB: 4096, ExecutorMemoryOverheadMB: 400, ExecutorCores: 2})

	assert.True(t, spec.SatisfiedBy(4496))
	assert.True(t, spec.SatisfiedBy(5000))
	assert.False(t, spec.SatisfiedBy(4000))
}
