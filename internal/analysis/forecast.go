package analysis

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/LeonardoBeccarini/bloomwatch/internal/model/entities"
)

const (
	yearDays = 365.25

	// fourierOrder is the yearly seasonality order. At the 16-day
	// compositing cadence a year holds ~23 samples, which cannot
	// support a high-order basis without overfitting.
	fourierOrder = 3

	// StepDays is the forecast cadence, one step per compositing period.
	StepDays = 16

	// DefaultPeriods is the default forecast horizon in steps.
	DefaultPeriods = 12

	// params: intercept + slope + sin/cos pair per Fourier order.
	nParams = 2 + 2*fourierOrder

	// MinObservations is the smallest series the model accepts, two
	// observations per parameter.
	MinObservations = 2 * nParams
)

// ForecastResult is the fitted curve over the training dates plus the
// projected horizon. FuturePeaks holds indices into Dates/Yhat/Smoothed
// for predicted peaks strictly after SeriesEnd.
type ForecastResult struct {
	Dates       []time.Time
	Yhat        []float64
	Smoothed    []float64 // Yhat after the detection smoothing pass
	Lower       []float64 // Yhat - 1.96 sigma
	Upper       []float64 // Yhat + 1.96 sigma
	FuturePeaks []int
	TrainedOn   int
	SeriesEnd   time.Time
	Sigma       float64
}

// FitForecast fits an additive linear-trend + yearly-seasonality model to
// a smoothed NDVI series by least squares and projects it periods 16-day
// steps past the last observation. Peak detection then runs over the
// joint fitted+projected curve, and peaks dated after the last
// observation become predicted blooms. dates must be ascending and
// parallel to smoothed.
func FitForecast(dates []time.Time, smoothed []float64, periods int, pol entities.DetectionPolicy) (*ForecastResult, error) {
	n := len(dates)
	if n != len(smoothed) {
		return nil, fmt.Errorf("forecast: %d dates for %d values", n, len(smoothed))
	}
	if n < MinObservations {
		return nil, fmt.Errorf("forecast: need at least %d observations, have %d", MinObservations, n)
	}
	if periods <= 0 {
		periods = DefaultPeriods
	}
	pol = pol.Resolve()

	t0 := dates[0]
	design := mat.NewDense(n, nParams, nil)
	for i := 0; i < n; i++ {
		fillBasis(design.RawRowView(i), daysSince(t0, dates[i]))
	}
	obs := mat.NewVecDense(n, append([]float64(nil), smoothed...))

	var qr mat.QR
	qr.Factorize(design)
	var beta mat.VecDense
	if err := qr.SolveVecTo(&beta, false, obs); err != nil {
		return nil, fmt.Errorf("forecast: least squares solve: %w", err)
	}

	var fitted mat.VecDense
	fitted.MulVec(design, &beta)
	sse := 0.0
	for i := 0; i < n; i++ {
		r := smoothed[i] - fitted.AtVec(i)
		sse += r * r
	}
	sigma := math.Sqrt(sse / float64(n-nParams))

	last := dates[n-1]
	total := n + periods
	outDates := make([]time.Time, total)
	copy(outDates, dates)
	for k := 1; k <= periods; k++ {
		outDates[n-1+k] = last.AddDate(0, 0, StepDays*k)
	}

	yhat := make([]float64, total)
	row := make([]float64, nParams)
	for i := 0; i < total; i++ {
		fillBasis(row, daysSince(t0, outDates[i]))
		v := 0.0
		for j := 0; j < nParams; j++ {
			v += row[j] * beta.AtVec(j)
		}
		yhat[i] = v
	}

	smoothYhat := Smooth(yhat, pol.Window)
	var future []int
	for _, p := range FindPeaks(smoothYhat, pol.MinHeight, pol.MinDistance) {
		if outDates[p].After(last) {
			future = append(future, p)
		}
	}

	lower := make([]float64, total)
	upper := make([]float64, total)
	band := 1.96 * sigma
	for i, v := range yhat {
		lower[i] = v - band
		upper[i] = v + band
	}

	return &ForecastResult{
		Dates:       outDates,
		Yhat:        yhat,
		Smoothed:    smoothYhat,
		Lower:       lower,
		Upper:       upper,
		FuturePeaks: future,
		TrainedOn:   n,
		SeriesEnd:   last,
		Sigma:       sigma,
	}, nil
}

func daysSince(t0, t time.Time) float64 {
	return t.Sub(t0).Hours() / 24
}

func fillBasis(row []float64, t float64) {
	row[0] = 1
	row[1] = t
	idx := 2
	for k := 1; k <= fourierOrder; k++ {
		w := 2 * math.Pi * float64(k) * t / yearDays
		row[idx] = math.Sin(w)
		row[idx+1] = math.Cos(w)
		idx += 2
	}
}
