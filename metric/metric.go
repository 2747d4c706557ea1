// Package metric provides segmentation overlap scores: one-shot
// IoU/Dice helpers and a session-level mean-IoU accumulator.
package metric

import (
	"github.com/sugarme/gotch"
	ts "github.com/sugarme/gotch/tensor"

	"gonum.org/v1/gonum/stat"
)

// binaryCounts binarizes pred/target at 0.5 and returns the overlap
// pixel count and the per-tensor positive counts.
func binaryCounts(pred, target *ts.Tensor) (overlap, predSum, targetSum float64) {
	iflat := pred.MustView([]int64{-1}, false)
	tflat := target.MustView([]int64{-1}, false)
	p := iflat.MustGt(ts.FloatScalar(0.5), true)
	t := tflat.MustGt(ts.FloatScalar(0.5), true)
	ptMul := p.MustMul(t, false)
	overlap = ptMul.MustSum(gotch.Double, true).Float64Values()[0]
	predSum = p.MustSum(gotch.Double, true).Float64Values()[0]
	targetSum = t.MustSum(gotch.Double, true).Float64Values()[0]

	return overlap, predSum, targetSum
}

// IoU computes intersection-over-union of two binary masks
// (values thresholded at 0.5). Empty masks on both sides score 1.0.
func IoU(pred, target *ts.Tensor) float64 {
	overlap, p, t := binaryCounts(pred, target)
	union := p + t - overlap
	if union == 0 {
		return 1.0
	}

	return overlap / union
}

// DiceCoeff computes the Dice coefficient of two binary masks.
// Ref. http://campar.in.tum.de/pub/milletari2016Vnet/milletari2016Vnet.pdf
func DiceCoeff(pred, target *ts.Tensor) float64 {
	overlap, p, t := binaryCounts(pred, target)
	if p+t == 0 {
		return 1.0
	}

	return (2 * overlap) / (p + t)
}

// JaccardIndex computes the class-averaged IoU of two label maps in a
// single shot. A class absent from both maps scores exactly 1.0 for
// this batch, never NaN.
func JaccardIndex(pred, target *ts.Tensor, numClasses int64) float64 {
	pflat := pred.MustView([]int64{-1}, false)
	tflat := target.MustView([]int64{-1}, false)
	pVals := pflat.Float64Values()
	tVals := tflat.Float64Values()
	pflat.MustDrop()
	tflat.MustDrop()

	inter := make([]float64, numClasses)
	union := make([]float64, numClasses)
	for i := range pVals {
		p := int64(pVals[i])
		t := int64(tVals[i])
		if p == t {
			inter[p]++
			union[p]++
			continue
		}
		union[p]++
		union[t]++
	}

	ious := make([]float64, numClasses)
	for c := range ious {
		if union[c] == 0 {
			ious[c] = 1.0
			continue
		}
		ious[c] = inter[c] / union[c]
	}

	return stat.Mean(ious, nil)
}
