// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package analysis

import (
	"io"
	"math"
	"slices"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Report summarizes the results of one run.
type Report struct {
	Info    RunInfo
	Results []Result

	MeanSSIM float64
	MinSSIM  float64
	MeanMSE  float64
	Worst    Result // lowest SSIM
}

// NewReport computes summary statistics over results.
func NewReport(info RunInfo, results []Result) *Report {
	r := &Report{Info: info, Results: results, MinSSIM: math.NaN()}
	if len(results) == 0 {
		return r
	}
	r.MinSSIM = math.Inf(1)
	for _, res := range results {
		r.MeanSSIM += res.SSIM
		r.MeanMSE += res.MSE
		if res.SSIM < r.MinSSIM {
			r.MinSSIM = res.SSIM
			r.Worst = res
		}
	}
	r.MeanSSIM /= float64(len(results))
	r.MeanMSE /= float64(len(results))
	return r
}

// WorstN returns up to n results with the lowest SSIM.
func (r *Report) WorstN(n int) []Result {
	sorted := slices.Clone(r.Results)
	slices.SortStableFunc(sorted, func(a, b Result) int {
		switch {
		case a.SSIM < b.SSIM:
			return -1
		case a.SSIM > b.SSIM:
			return 1
		}
		return 0
	})
	return sorted[:min(n, len(sorted))]
}

// WriteText prints a human-readable summary with the worst poses, using
// the number formatting of tag.
func (r *Report) WriteText(w io.Writer, tag language.Tag, worst int) error {
	p := message.NewPrinter(tag)
	var err error
	printf := func(format string, args ...any) {
		if err == nil {
			_, err = p.Fprintf(w, format, args...)
		}
	}

	printf("run %s (%s, %s sweep)\n", r.Info.ID, r.Info.Algorithm, r.Info.Mode)
	printf("origin %.4f %.4f %.4f, displacement %.4f, step %.4f\n",
		r.Info.Origin[0], r.Info.Origin[1], r.Info.Origin[2], r.Info.Displacement, r.Info.Step)
	printf("poses: %d\n", len(r.Results))
	if len(r.Results) == 0 {
		return err
	}
	printf("ssim: mean %.4f, min %.4f\n", r.MeanSSIM, r.MinSSIM)
	printf("mse: mean %.6f\n", r.MeanMSE)
	for _, res := range r.WorstN(worst) {
		d := res.Displacement
		printf("  %+.3f %+.3f %+.3f  ssim %.4f  mse %.6f  %s\n", d[0], d[1], d[2], res.SSIM, res.MSE, res.Name)
	}
	return err
}
