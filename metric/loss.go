package metric

import (
	"github.com/sugarme/gotch"
	ts "github.com/sugarme/gotch/tensor"

	"gonum.org/v1/gonum/stat"
)

// BCEWithLogitsLoss computes mean binary cross entropy on raw logits.
// Ref. https://pytorch.org/docs/master/nn.functional.html#torch.nn.functional.binary_cross_entropy_with_logits
func BCEWithLogitsLoss(logit, target *ts.Tensor) *ts.Tensor {
	logitR := logit.MustReshape([]int64{-1}, false)
	targetR := target.MustReshape([]int64{-1}, false)

	// NOTE: reduction: none = 0; mean = 1; sum = 2. Default=mean
	retVal := logitR.MustBinaryCrossEntropyWithLogits(targetR, ts.NewTensor(), ts.NewTensor(), 1, true)
	targetR.MustDrop()

	return retVal
}

// SoftDiceLoss measures soft (probability-weighted) overlap loss.
// Ref. https://gist.github.com/jeremyjordan/9ea3032a32909f71dd2ab35fe3bacc08
func SoftDiceLoss(x, y *ts.Tensor) *ts.Tensor {
	dims := []int64{-2, -1}
	smooth := 1.0

	xyMul := x.MustMul(y, false)
	tp := xyMul.MustSum1(dims, false, gotch.Double, true)

	y1 := y.MustAdd1(ts.FloatScalar(-1), false)
	xy1Mul := y1.MustMul(x, true)
	fp := xy1Mul.MustSum1(dims, false, gotch.Double, true)

	x1 := x.MustAdd1(ts.FloatScalar(-1), false)
	x1yMul := x1.MustMul(y, true)
	fn := x1yMul.MustSum1(dims, false, gotch.Double, true)

	numerator := tp.MustMul1(ts.FloatScalar(2.0), false).MustAdd1(ts.FloatScalar(smooth), true)
	denominator := numerator.MustAdd(fp, false).MustAdd(fn, false)

	dc := numerator.MustDiv(denominator, true)

	tp.MustDrop()
	fp.MustDrop()
	fn.MustDrop()
	denominator.MustDrop()

	mean := dc.MustMean(gotch.Double, true)

	return mean.MustMul1(ts.FloatScalar(-1), true).MustAdd1(ts.FloatScalar(1), true)
}

// MixLoss combines BCE-with-logits (0.8) and soft dice (0.2).
// Ref. https://www.kaggle.com/finlay/pytorch-fcn-resnet50-in-20-minute
func MixLoss(logit, mask *ts.Tensor) *ts.Tensor {
	bce := BCEWithLogitsLoss(logit, mask).MustMul1(ts.FloatScalar(0.8), true)
	prob := logit.MustSigmoid(false)
	dice := SoftDiceLoss(prob, mask).MustMul1(ts.FloatScalar(0.2), true)
	prob.MustDrop()

	retVal := bce.MustAdd(dice, true)
	dice.MustDrop()

	return retVal
}

// DiceCoeffBatch computes the Dice coefficient per batch item and
// averages over the batch.
func DiceCoeffBatch(pred, target *ts.Tensor) float64 {
	preds := pred.MustUnbind(0, false)
	targets := target.MustUnbind(0, false)

	scores := make([]float64, len(preds))
	for i := range preds {
		scores[i] = DiceCoeff(&preds[i], &targets[i])
	}
	for i := range preds {
		preds[i].MustDrop()
		targets[i].MustDrop()
	}

	return stat.Mean(scores, nil)
}
