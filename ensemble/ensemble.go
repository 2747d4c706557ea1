// Package ensemble combines independently trained segmentation
// networks into one predictor.
package ensemble

import (
	"fmt"
	"log"
	"reflect"

	"github.com/sugarme/gotch"
	ts "github.com/sugarme/gotch/tensor"
)

// Member is a segmentation network usable in an ensemble.
type Member interface {
	ForwardT(x *ts.Tensor, train bool) *ts.Tensor
	NumClasses() int64
}

// Ensemble holds an ordered list of members sharing one class count.
// Members own their parameters; the ensemble only reads them.
//
// Combination policy is probability averaging: each member's logits go
// through softmax over the class axis before averaging, so no single
// overconfident member dominates the combined score. Averaging raw
// logits is a different policy and is deliberately not offered.
type Ensemble struct {
	members []Member
	classes int64
}

// New creates an Ensemble. An empty member list or a class-count
// mismatch between members is a configuration error.
func New(members ...Member) (*Ensemble, error) {
	if len(members) == 0 {
		return nil, fmt.Errorf("ensemble needs at least one member")
	}

	classes := members[0].NumClasses()
	for i, m := range members[1:] {
		if m.NumClasses() != classes {
			return nil, fmt.Errorf("ensemble member %v has %v classes, want %v", i+1, m.NumClasses(), classes)
		}
	}

	return &Ensemble{members: members, classes: classes}, nil
}

// NumClasses returns the shared class count of the members.
func (e *Ensemble) NumClasses() int64 {
	return e.classes
}

// Len returns the member count.
func (e *Ensemble) Len() int {
	return len(e.members)
}

// ForwardT implements ts.ModuleT: it returns the per-pixel class
// probabilities averaged over all members, shape [N classes H W].
// Members run independently; a member producing a different output
// shape than the first halts the call.
func (e *Ensemble) ForwardT(x *ts.Tensor, train bool) *ts.Tensor {
	var sum *ts.Tensor
	var refSize []int64
	for i, m := range e.members {
		logit := m.ForwardT(x, train)
		prob := logit.MustSoftmax(1, gotch.Float, true)

		size := prob.MustSize()
		if i == 0 {
			refSize = size
			sum = prob
			continue
		}
		if !reflect.DeepEqual(size, refSize) {
			log.Fatalf("ensemble member %v output shape %v, want %v\n", i, size, refSize)
		}
		next := sum.MustAdd(prob, true)
		prob.MustDrop()
		sum = next
	}

	return sum.MustDiv1(ts.FloatScalar(float64(len(e.members))), true)
}

// Predict returns the combined label map [N H W]: arg-max over the
// averaged class probabilities per pixel.
func (e *Ensemble) Predict(x *ts.Tensor) *ts.Tensor {
	var labels *ts.Tensor
	ts.NoGrad(func() {
		avg := e.ForwardT(x, false)
		labels = avg.MustArgmax(1, false, true)
	})

	return labels
}
