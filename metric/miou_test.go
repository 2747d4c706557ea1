package metric_test

import (
	"math"
	"testing"

	ts "github.com/sugarme/gotch/tensor"

	"github.com/sugarme/resunet/metric"
)

func labelMap(vals []int64, shape []int64) *ts.Tensor {
	return ts.MustOfSlice(vals).MustView(shape, true)
}

func TestMeanIoUPerfect(t *testing.T) {
	m, err := metric.NewMeanIoU(3)
	if err != nil {
		t.Fatal(err)
	}

	vals := []int64{0, 1, 2, 0, 1, 2}
	pred := labelMap(vals, []int64{1, 2, 3})
	target := labelMap(vals, []int64{1, 2, 3})
	if err := m.Update(pred, target); err != nil {
		t.Fatal(err)
	}

	if got := m.Compute(); math.Abs(got-1.0) > tol {
		t.Errorf("perfect prediction: want 1.0, got %v", got)
	}
}

func TestMeanIoUAccumulate(t *testing.T) {
	// ground truth [[0 1][1 2]], prediction [[0 1][2 2]]:
	// class 0 IoU 1, class 1 IoU 0.5, class 2 IoU 0.5.
	gt := []int64{0, 1, 1, 2}
	pd := []int64{0, 1, 2, 2}
	want := (1.0 + 0.5 + 0.5) / 3.0

	whole, err := metric.NewMeanIoU(3)
	if err != nil {
		t.Fatal(err)
	}
	if err := whole.Update(labelMap(pd, []int64{1, 2, 2}), labelMap(gt, []int64{1, 2, 2})); err != nil {
		t.Fatal(err)
	}
	if got := whole.Compute(); math.Abs(got-want) > tol {
		t.Errorf("single batch: want %v, got %v", want, got)
	}

	// Same data as two half batches must reduce to the same score.
	split, err := metric.NewMeanIoU(3)
	if err != nil {
		t.Fatal(err)
	}
	if err := split.Update(labelMap(pd[:2], []int64{1, 1, 2}), labelMap(gt[:2], []int64{1, 1, 2})); err != nil {
		t.Fatal(err)
	}
	if err := split.Update(labelMap(pd[2:], []int64{1, 1, 2}), labelMap(gt[2:], []int64{1, 1, 2})); err != nil {
		t.Fatal(err)
	}
	if got := split.Compute(); math.Abs(got-want) > tol {
		t.Errorf("accumulated halves: want %v, got %v", want, got)
	}
}

func TestMeanIoUUnseenClassExcluded(t *testing.T) {
	// class 2 never appears across the session: excluded from the
	// mean, not scored 1.0.
	m, err := metric.NewMeanIoU(3)
	if err != nil {
		t.Fatal(err)
	}

	gt := []int64{0, 0, 1, 1}
	pd := []int64{0, 1, 1, 1}
	if err := m.Update(labelMap(pd, []int64{1, 2, 2}), labelMap(gt, []int64{1, 2, 2})); err != nil {
		t.Fatal(err)
	}

	// class 0: inter 1, union 2; class 1: inter 2, union 3.
	want := (0.5 + 2.0/3.0) / 2.0
	if got := m.Compute(); math.Abs(got-want) > tol {
		t.Errorf("unseen class: want %v, got %v", want, got)
	}
}

func TestMeanIoUShapeMismatch(t *testing.T) {
	m, err := metric.NewMeanIoU(2)
	if err != nil {
		t.Fatal(err)
	}

	pred := labelMap([]int64{0, 1, 0, 1}, []int64{1, 2, 2})
	target := labelMap([]int64{0, 1}, []int64{1, 1, 2})
	if err := m.Update(pred, target); err == nil {
		t.Error("shape mismatch: want error, got nil")
	}
}

func TestMeanIoUReset(t *testing.T) {
	m, err := metric.NewMeanIoU(2)
	if err != nil {
		t.Fatal(err)
	}

	if err := m.Update(labelMap([]int64{0, 1}, []int64{1, 1, 2}), labelMap([]int64{1, 0}, []int64{1, 1, 2})); err != nil {
		t.Fatal(err)
	}
	if got := m.Compute(); got != 0 {
		// disjoint prediction: both classes IoU 0
		t.Errorf("disjoint prediction: want 0, got %v", got)
	}

	m.Reset()
	if got := m.Compute(); got != 0 {
		t.Errorf("after reset: want 0, got %v", got)
	}

	if err := m.Update(labelMap([]int64{0, 1}, []int64{1, 1, 2}), labelMap([]int64{0, 1}, []int64{1, 1, 2})); err != nil {
		t.Fatal(err)
	}
	if got := m.Compute(); math.Abs(got-1.0) > tol {
		t.Errorf("fresh session: want 1.0, got %v", got)
	}
}

func TestNewMeanIoUInvalid(t *testing.T) {
	if _, err := metric.NewMeanIoU(0); err == nil {
		t.Error("zero classes: want error, got nil")
	}
}
