package main

import (
	ts "github.com/sugarme/gotch/tensor"
)

// binaryLogit reduces 2-class logits [N 2 H W] to a single
// polyp-vs-background logit [N H W]: the class-1 margin over class-0.
// BCE-with-logits on the margin equals cross entropy on the softmaxed
// pair, so the binary mask can be used as target directly.
func binaryLogit(logit *ts.Tensor) *ts.Tensor {
	chans := logit.MustUnbind(1, false)
	diff := chans[1].MustSub(&chans[0], false)
	chans[0].MustDrop()
	chans[1].MustDrop()

	return diff
}
