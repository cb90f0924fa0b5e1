package steps

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
)

// periodogram estimates a one-sided power spectral density of the trace
// using a Hann window. Returns the PSD bins and the bin width in Hz.
func periodogram(trace []float64, sampleRate float64) (psd []float64, df float64) {
	n := len(trace)
	if n < 2 || sampleRate <= 0 {
		return nil, 0
	}

	windowed := make([]float64, n)
	var windowPower float64
	for i := range trace {
		w := 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(n-1)))
		windowed[i] = trace[i] * w
		windowPower += w * w
	}
	if windowPower == 0 {
		return nil, 0
	}

	fft := fourier.NewFFT(n)
	coeffs := fft.Coefficients(nil, windowed)

	scale := 1.0 / (sampleRate * windowPower)
	psd = make([]float64, len(coeffs))
	for k, c := range coeffs {
		p := (real(c)*real(c) + imag(c)*imag(c)) * scale
		// One-sided spectrum: double everything except DC and Nyquist.
		if k != 0 && !(n%2 == 0 && k == len(coeffs)-1) {
			p *= 2
		}
		psd[k] = p
	}
	return psd, sampleRate / float64(n)
}

// bandPower integrates the PSD over each configured band and over the total
// analysis range. Powers are non-negative by construction.
func bandPower(trace []float64, sampleRate float64, cfg FeatureConfig) (bands []float64, total float64) {
	bands = make([]float64, len(cfg.Bands))
	psd, df := periodogram(trace, sampleRate)
	if len(psd) == 0 {
		return bands, 0
	}

	for k, p := range psd {
		hz := float64(k) * df
		for i, b := range cfg.Bands {
			if hz >= b.LowHz && hz < b.HighHz {
				bands[i] += p * df
			}
		}
		if hz >= cfg.TotalLowHz && hz < cfg.TotalHighHz {
			total += p * df
		}
	}
	return bands, total
}
