package equipment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSLADeadline(t *testing.T) {
	opened := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

	assert.Equal(t, 10*time.Minute, SLADeadline(CriticalityA, opened).Sub(opened))
	assert.Equal(t, 2*time.Hour, SLADeadline(CriticalityB, opened).Sub(opened))
	assert.Equal(t, 24*time.Hour, SLADeadline(CriticalityC, opened).Sub(opened))
}

func TestRequiresContingencyPlan(t *testing.T) {
	assert.True(t, CriticalityA.RequiresContingencyPlan())
	assert.False(t, CriticalityB.RequiresContingencyPlan())
	assert.False(t, CriticalityC.RequiresContingencyPlan())
}

func TestCriticalityValid(t *testing.T) {
	assert.True(t, CriticalityA.Valid())
	assert.False(t, Criticality("D").Valid())
	assert.False(t, Criticality("").Valid())
}
