package calib

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLandau(t *testing.T) {
	assert.InDelta(t, 0.1788541609, Landau(0, 0, 1), 1e-9)
	assert.Equal(t, 0.0, Landau(1, 0, 0))

	peak := Landau(landauMPShift, 0, 1)
	assert.Greater(t, peak, Landau(landauMPShift-0.1, 0, 1))
	assert.Greater(t, peak, Landau(landauMPShift+0.1, 0, 1))

	// scale invariance in units of sigma
	assert.InDelta(t, Landau(1, 0, 1), Landau(4, 2, 2), 1e-12)
}

func TestLandauIsNormalised(t *testing.T) {
	var integral float64
	step := 0.01
	for x := -10.0; x < 1000; x += step {
		integral += Landau(x, 0, 1) * step
	}
	assert.InDelta(t, 1, integral, 0.01)
}

func TestLanGaus(t *testing.T) {
	p := []float64{1, 10, 1, 0.5}
	assert.Greater(t, LanGaus(10, p), LanGaus(5, p))
	assert.Greater(t, LanGaus(10, p), LanGaus(20, p))

	var integral float64
	step := 0.05
	for x := -5.0; x < 400; x += step {
		integral += LanGaus(x, p) * step
	}
	assert.InDelta(t, 1, integral, 0.03)
}

func TestSimpleModels(t *testing.T) {
	assert.Equal(t, 1.0, Gaus(1, 1, 2))
	assert.InDelta(t, math.Exp(-0.5), Gaus(3, 1, 2), 1e-12)

	assert.InDelta(t, 2*2/math.Pi/0.5, Lorentzian(1, []float64{2, 1, 0.5}), 1e-12)
	assert.InDelta(t, 2/math.Pi/0.5, Lorentzian(1.25, []float64{2, 1, 0.5}), 1e-12)

	assert.Equal(t, 21.0, Birks(2, []float64{10, 1, 0}))
	assert.InDelta(t, 21.0/1.2, Birks(2, []float64{10, 1, 0.1}), 1e-12)

	assert.Equal(t, 5.0, PropagateUnc(3, 4, 0))
	assert.Equal(t, 7.0, PropagateUnc(3, 4, 1))
}

func TestCrystalBallIsContinuous(t *testing.T) {
	p := []float64{10, 0, 1, 1.5, 3}
	x := -1.5
	assert.InDelta(t, CrystalBall(x+1e-9, p), CrystalBall(x-1e-9, p), 1e-6)
	assert.Equal(t, 10.0, CrystalBall(0, p))
	assert.Greater(t, CrystalBall(-4, p), 10*Gaus(-4, 0, 1))
}

func TestModelByName(t *testing.T) {
	m, err := ModelByName("crystalball")
	require.NoError(t, err)
	assert.Equal(t, 5, m.NPar())

	_, err = ModelByName("poisson")
	assert.ErrorContains(t, err, "gaus")
}
