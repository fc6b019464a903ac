package calib

import (
	"fmt"
	"math"
)

// Gaus is the unnormalised gaussian exp(-((x-mean)/sigma)²/2).
func Gaus(x, mean, sigma float64) float64 {
	if sigma == 0 {
		return 0
	}
	z := (x - mean) / sigma
	return math.Exp(-0.5 * z * z)
}

// Lorentzian with p = [area, x0, gamma].
func Lorentzian(x float64, p []float64) float64 {
	halfGamma := p[2] / 2
	num := p[0] * 2 / math.Pi / p[2]
	den := 1 + (x-p[1])*(x-p[1])/halfGamma/halfGamma
	return num / den
}

// CrystalBall with p = [constant, mean, sigma, alpha, n].
func CrystalBall(x float64, p []float64) float64 {
	constant, mean, sigma, alpha, n := p[0], p[1], p[2], p[3], p[4]
	z := (x - mean) / sigma
	if alpha < 0 {
		z = -z
	}
	absAlpha := math.Abs(alpha)
	if z > -absAlpha {
		return constant * math.Exp(-0.5*z*z)
	}
	nDivAlpha := n / absAlpha
	aa := math.Exp(-0.5 * absAlpha * absAlpha)
	b := nDivAlpha - absAlpha
	return constant * aa * math.Pow(nDivAlpha/(b-z), n)
}

var (
	denlanP1 = [5]float64{0.4259894875, -0.1249762550, 0.03984243700, -0.006298287635, 0.001511162253}
	denlanQ1 = [5]float64{1.0, -0.3388260629, 0.09594393323, -0.01608042283, 0.003778942063}
	denlanP2 = [5]float64{0.1788541609, 0.1173957403, 0.01488850518, -0.001394989411, 0.0001283617211}
	denlanQ2 = [5]float64{1.0, 0.7428795082, 0.3153932961, 0.06694219548, 0.008790609714}
	denlanP3 = [5]float64{0.1788544503, 0.09359161662, 0.006325387654, 0.00006611667319, -0.000002031049101}
	denlanQ3 = [5]float64{1.0, 0.6097809921, 0.2560616665, 0.04746722384, 0.006957301675}
	denlanP4 = [5]float64{0.9874054407, 118.6723273, 849.2794360, -743.7792444, 427.0262186}
	denlanQ4 = [5]float64{1.0, 106.8615961, 337.6496214, 2016.712389, 1597.063511}
	denlanP5 = [5]float64{1.003675074, 167.5702434, 4789.711289, 21217.86767, -22324.94910}
	denlanQ5 = [5]float64{1.0, 156.9424537, 3745.310488, 9834.698876, 66924.28357}
	denlanP6 = [5]float64{1.000827619, 664.9143136, 62972.92665, 475554.6998, -5743609.109}
	denlanQ6 = [5]float64{1.0, 651.4101098, 56974.73333, 165917.4725, -2815759.939}
	denlanA1 = [3]float64{0.04166666667, -0.01996527778, 0.02709538966}
	denlanA2 = [2]float64{-1.845568670, -4.284640743}
)

func ratio(p, q [5]float64, v float64) float64 {
	num := p[0] + (p[1]+(p[2]+(p[3]+p[4]*v)*v)*v)*v
	den := q[0] + (q[1]+(q[2]+(q[3]+q[4]*v)*v)*v)*v
	return num / den
}

// Landau is the CERNLIB DENLAN approximation of the Landau density at
// (x-mpv)/sigma, not divided by sigma. Its maximum sits at
// mpv - 0.22278298 sigma.
func Landau(x, mpv, sigma float64) float64 {
	if sigma <= 0 {
		return 0
	}
	v := (x - mpv) / sigma
	switch {
	case v < -5.5:
		u := math.Exp(v + 1)
		if u < 1e-10 {
			return 0
		}
		ue := math.Exp(-1 / u)
		us := math.Sqrt(u)
		return 0.3989422803 * (ue / us) * (1 + (denlanA1[0]+(denlanA1[1]+denlanA1[2]*u)*u)*u)
	case v < -1:
		u := math.Exp(-v - 1)
		return math.Exp(-u) * math.Sqrt(u) * ratio(denlanP1, denlanQ1, v)
	case v < 1:
		return ratio(denlanP2, denlanQ2, v)
	case v < 5:
		return ratio(denlanP3, denlanQ3, v)
	case v < 12:
		u := 1 / v
		return u * u * ratio(denlanP4, denlanQ4, u)
	case v < 50:
		u := 1 / v
		return u * u * ratio(denlanP5, denlanQ5, u)
	case v < 300:
		u := 1 / v
		return u * u * ratio(denlanP6, denlanQ6, u)
	}
	u := 1 / (v - v*math.Log(v)/(v+1))
	return u * u * (1 + (denlanA2[0]+denlanA2[1]*u)*u)
}

const (
	invSqrt2Pi    = 0.3989422804014
	landauMPShift = -0.22278298
	langausSteps  = 100
	langausSigmas = 5.0
)

// LanGaus is a Landau density convolved with a gaussian, summed over
// ±5 gaussian sigmas. p = [landau width, MPV, area, gaussian sigma]; the
// MPV shift of the Landau density is corrected so that p[1] is the
// maximum.
func LanGaus(x float64, p []float64) float64 {
	width, mp, area, gsigma := p[0], p[1], p[2], p[3]
	if width <= 0 || gsigma <= 0 {
		return 0
	}
	mpc := mp - landauMPShift*width
	xlow := x - langausSigmas*gsigma
	xupp := x + langausSigmas*gsigma
	step := (xupp - xlow) / langausSteps

	var sum float64
	for i := 1; i <= langausSteps/2; i++ {
		xx := xlow + (float64(i)-0.5)*step
		sum += Landau(xx, mpc, width) / width * Gaus(x, xx, gsigma)

		xx = xupp - (float64(i)-0.5)*step
		sum += Landau(xx, mpc, width) / width * Gaus(x, xx, gsigma)
	}
	return area * step * sum * invSqrt2Pi / gsigma
}

// Birks is the scintillator light yield (S·E + A0)/(1 + kB·E) with
// p = [S, A0, kB].
func Birks(e float64, p []float64) float64 {
	return (p[0]*e + p[1]) / (1 + p[2]*e)
}

// PropagateUnc combines two correlated uncertainties.
func PropagateUnc(sigma1, sigma2, rho12 float64) float64 {
	return math.Sqrt(sigma1*sigma1 + sigma2*sigma2 + 2*rho12*sigma1*sigma2)
}

// Model is a fit function and the names of its parameters.
type Model struct {
	Name     string
	Legend   string
	ParNames []string
	F        func(x float64, p []float64) float64
}

func (m Model) NPar() int {
	return len(m.ParNames)
}

var models = map[string]Model{
	"gaus": {
		Name: "gaus", Legend: "Gaussian",
		ParNames: []string{"Constant", "Mean", "Sigma"},
		F: func(x float64, p []float64) float64 {
			return p[0] * Gaus(x, p[1], p[2])
		},
	},
	"lorentz": {
		Name: "lorentz", Legend: "Lorentzian",
		ParNames: []string{"Constant", "Mean", "Gamma"},
		F:        Lorentzian,
	},
	"crystalball": {
		Name: "crystalball", Legend: "CrystalBall",
		ParNames: []string{"Constant", "Mean", "Sigma", "Alpha", "N"},
		F:        CrystalBall,
	},
	"langaus": {
		Name: "langaus", Legend: "Landau⊗Gauss",
		ParNames: []string{"Width", "MPV", "Area", "GSigma"},
		F:        LanGaus,
	},
	"birks": {
		Name: "birks", Legend: "Birks",
		ParNames: []string{"S", "A0", "Kb"},
		F:        Birks,
	},
}

// ModelByName returns one of gaus, lorentz, crystalball, langaus or birks.
func ModelByName(name string) (Model, error) {
	m, ok := models[name]
	if !ok {
		return Model{}, fmt.Errorf("unknown fit function %q (known: %v)", name, sortedKeys(models))
	}
	return m, nil
}
