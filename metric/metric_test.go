package metric_test

import (
	"math"
	"testing"

	ts "github.com/sugarme/gotch/tensor"

	"github.com/sugarme/resunet/metric"
)

const tol = 1e-6

func TestIoU(t *testing.T) {
	pslice := []int64{1, 0, 0, 1, 0, 0, 1, 0, 0}
	tslice := []int64{1, 0, 0, 1, 1, 0, 1, 0, 0}

	pred := ts.MustOfSlice(pslice).MustView([]int64{1, 3, 3}, true)
	target := ts.MustOfSlice(tslice).MustView([]int64{1, 3, 3}, true)

	iou := metric.IoU(pred, target)
	if math.Abs(iou-0.75) > tol {
		t.Errorf("IoU: want 0.7500, got %0.4f", iou)
	}
}

func TestDiceCoeff(t *testing.T) {
	pslice := []int64{1, 0, 0, 1, 0, 0, 1, 0, 0}
	tslice := []int64{1, 0, 0, 1, 1, 0, 1, 0, 0}

	pred := ts.MustOfSlice(pslice).MustView([]int64{1, 3, 3}, true)
	target := ts.MustOfSlice(tslice).MustView([]int64{1, 3, 3}, true)

	dice := metric.DiceCoeff(pred, target)
	want := 2.0 * 3.0 / 7.0
	if math.Abs(dice-want) > tol {
		t.Errorf("Dice: want %0.4f, got %0.4f", want, dice)
	}
}

func TestJaccardIndex(t *testing.T) {
	// class 0: inter 1, union 1; class 1: inter 1, union 2;
	// class 2: inter 1, union 2.
	pslice := []int64{0, 1, 2, 2}
	tslice := []int64{0, 1, 1, 2}

	pred := ts.MustOfSlice(pslice).MustView([]int64{1, 2, 2}, true)
	target := ts.MustOfSlice(tslice).MustView([]int64{1, 2, 2}, true)

	iou := metric.JaccardIndex(pred, target, 3)
	want := (1.0 + 0.5 + 0.5) / 3.0
	if math.Abs(iou-want) > tol {
		t.Errorf("JaccardIndex: want %0.4f, got %0.4f", want, iou)
	}
}

func TestJaccardIndexAbsentClass(t *testing.T) {
	// class 2 absent from both maps: counts 1.0, never NaN.
	pslice := []int64{0, 1, 0, 1}
	tslice := []int64{0, 1, 0, 1}

	pred := ts.MustOfSlice(pslice).MustView([]int64{1, 2, 2}, true)
	target := ts.MustOfSlice(tslice).MustView([]int64{1, 2, 2}, true)

	iou := metric.JaccardIndex(pred, target, 3)
	if math.IsNaN(iou) {
		t.Fatal("JaccardIndex: got NaN for absent class")
	}
	if math.Abs(iou-1.0) > tol {
		t.Errorf("JaccardIndex: want 1.0000, got %0.4f", iou)
	}
}
