package metric

import (
	"fmt"
	"reflect"
	"sync"

	ts "github.com/sugarme/gotch/tensor"

	"gonum.org/v1/gonum/stat"
)

// MeanIoU accumulates per-class intersection/union pixel counts over
// an evaluation session and reduces them to the class-averaged IoU.
//
// Counters grow monotonically across Update calls until Reset; the
// score is identical whether the session's data arrives in one batch
// or many. Updates count batch-locally and merge under a lock, so
// concurrent Update calls do not lose increments.
type MeanIoU struct {
	mu      sync.Mutex
	classes int64
	inter   []int64
	union   []int64
}

// NewMeanIoU creates an accumulator for label maps with class indices
// in [0, numClasses).
func NewMeanIoU(numClasses int64) (*MeanIoU, error) {
	if numClasses < 1 {
		return nil, fmt.Errorf("invalid class count: %v", numClasses)
	}

	return &MeanIoU{
		classes: numClasses,
		inter:   make([]int64, numClasses),
		union:   make([]int64, numClasses),
	}, nil
}

// Update accumulates one batch of predicted and ground-truth label
// maps. The two tensors must have identical shapes and hold class
// indices in [0, numClasses).
func (m *MeanIoU) Update(pred, target *ts.Tensor) error {
	pSize := pred.MustSize()
	tSize := target.MustSize()
	if !reflect.DeepEqual(pSize, tSize) {
		return fmt.Errorf("label map shape mismatch: prediction %v vs ground truth %v", pSize, tSize)
	}

	pflat := pred.MustView([]int64{-1}, false)
	tflat := target.MustView([]int64{-1}, false)
	pVals := pflat.Float64Values()
	tVals := tflat.Float64Values()
	pflat.MustDrop()
	tflat.MustDrop()

	inter := make([]int64, m.classes)
	pCount := make([]int64, m.classes)
	tCount := make([]int64, m.classes)
	for i := range pVals {
		p := int64(pVals[i])
		t := int64(tVals[i])
		if p < 0 || p >= m.classes {
			return fmt.Errorf("predicted class %v out of range [0, %v)", p, m.classes)
		}
		if t < 0 || t >= m.classes {
			return fmt.Errorf("ground truth class %v out of range [0, %v)", t, m.classes)
		}
		if p == t {
			inter[p]++
		}
		pCount[p]++
		tCount[t]++
	}

	m.mu.Lock()
	for c := int64(0); c < m.classes; c++ {
		m.inter[c] += inter[c]
		m.union[c] += pCount[c] + tCount[c] - inter[c]
	}
	m.mu.Unlock()

	return nil
}

// Compute reduces the accumulated counts to the mean IoU over classes
// that appeared (cumulative union > 0) in the session. A class never
// seen in either prediction or ground truth is excluded from the mean,
// not scored 1.0. With nothing accumulated Compute returns 0.
func (m *MeanIoU) Compute() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	var ious []float64
	for c := int64(0); c < m.classes; c++ {
		if m.union[c] == 0 {
			continue
		}
		ious = append(ious, float64(m.inter[c])/float64(m.union[c]))
	}
	if len(ious) == 0 {
		return 0
	}

	return stat.Mean(ious, nil)
}

// Reset clears all accumulated counts, starting a new session.
// It is never called implicitly.
func (m *MeanIoU) Reset() {
	m.mu.Lock()
	for c := int64(0); c < m.classes; c++ {
		m.inter[c] = 0
		m.union[c] = 0
	}
	m.mu.Unlock()
}
