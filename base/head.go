package base

import (
	"github.com/sugarme/gotch/nn"
)

// NewSegmentationHead creates a new segmentation head (nn.SequentialT):
// a single convolution mapping cIn channels to one logit per class.
// No activation is applied; callers do softmax/argmax themselves.
func NewSegmentationHead(p *nn.Path, cIn, classes, ksize int64) *nn.SequentialT {
	seq := nn.SeqT()
	seq.Add(Conv2d(p, cIn, classes, ksize, ksize/2, 1))

	return seq
}
