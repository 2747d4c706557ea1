package unet

import (
	"fmt"
	"reflect"

	"github.com/sugarme/gotch/nn"
	ts "github.com/sugarme/gotch/tensor"

	"github.com/sugarme/resunet/base"
)

// DecoderLayer refines one pyramid level: channel concatenation of the
// upsampled decoder state with the encoder skip, attention, then two
// conv-bn-relu blocks.
type DecoderLayer struct {
	Conv1 *nn.SequentialT
	Attn1 *base.Attention
	Conv2 *nn.SequentialT
	Attn2 *base.Attention
}

// upsample interpolates x (`nearest` algorithm) to the exact spatial
// size of ref. Explicit-size resizing keeps skip shapes aligned even
// when H/W are not multiples of 2^K.
func upsample(x, ref *ts.Tensor) *ts.Tensor {
	xSize := x.MustSize()
	refSize := ref.MustSize()
	if reflect.DeepEqual(xSize[2:], refSize[2:]) {
		return x.MustShallowClone()
	}

	return x.MustUpsampleNearest2d(refSize[2:], nil, nil, false)
}

// ForwardSkip forwards the upsampled decoder state x, concatenated
// with the encoder feature skip when present.
func (d *DecoderLayer) ForwardSkip(x, skip *ts.Tensor, train bool) *ts.Tensor {
	var cat *ts.Tensor
	if skip != nil {
		cat = ts.MustCat([]ts.Tensor{*x, *skip}, 1)
	} else {
		cat = ts.MustCat([]ts.Tensor{*x}, 1)
	}
	attn1 := d.Attn1.ForwardT(cat, train)
	cat.MustDrop()
	conv1 := d.Conv1.ForwardT(attn1, train)
	attn1.MustDrop()
	conv2 := d.Conv2.ForwardT(conv1, train)
	conv1.MustDrop()
	res := d.Attn2.ForwardT(conv2, train)
	conv2.MustDrop()

	return res
}

// NewDecoderLayer creates a DecoderLayer.
func NewDecoderLayer(p *nn.Path, cIn, skip, cOut int64) *DecoderLayer {
	conv1 := base.Conv2dRelu(p.Sub("conv1"), cIn+skip, cOut, 3, 1, 1)
	attn1 := base.NewAttention(base.NewSCSE(p.Sub("attn1"), cIn+skip))
	conv2 := base.Conv2dRelu(p.Sub("conv2"), cOut, cOut, 3, 1, 1)
	attn2 := base.NewAttention(base.NewSCSE(p.Sub("attn2"), cOut))

	return &DecoderLayer{
		Conv1: conv1,
		Attn1: attn1,
		Conv2: conv2,
		Attn2: attn2,
	}
}

// UNetDecoder consumes a feature pyramid from deepest to shallowest
// and produces a refined feature map at the shallowest resolution.
type UNetDecoder struct {
	center *nn.SequentialT
	layers []*DecoderLayer
}

// NewUNetDecoder creates a UNetDecoder.
// encChannels lists the pyramid channels from input to deepest stage
// (e.g. [3 64 64 128 256 512]); decChannels the output channels of
// each decoder step (e.g. [256 128 64 32 16]). The two lists must
// describe the same number of steps.
func NewUNetDecoder(p *nn.Path, encChannels, decChannels []int64) (*UNetDecoder, error) {
	if len(encChannels) != len(decChannels)+1 {
		return nil, fmt.Errorf("channel lists mismatched: %v encoder entries need %v decoder entries, got %v", len(encChannels), len(encChannels)-1, len(decChannels))
	}

	deepest := encChannels[len(encChannels)-1]
	center := base.Conv2dRelu(p.Sub("center"), deepest, deepest, 11, 5, 1)

	var layers []*DecoderLayer
	for i := range decChannels {
		cIn := deepest
		if i > 0 {
			cIn = decChannels[i-1]
		}
		// The shallowest pyramid entry is the input image; it is an
		// upsampling reference only, not a skip.
		var skip int64
		if i < len(decChannels)-1 {
			skip = encChannels[len(encChannels)-2-i]
		}
		layers = append(layers, NewDecoderLayer(p.Sub(fmt.Sprintf("decoder%d", i)), cIn, skip, decChannels[i]))
	}

	return &UNetDecoder{
		center: center,
		layers: layers,
	}, nil
}

// ForwardFeatures forwards through the pyramid produced by an Encoder.
// features must hold exactly one entry per decoder step plus the input
// reference; a concatenation shape mismatch halts the call.
func (n *UNetDecoder) ForwardFeatures(features []*ts.Tensor, train bool) (*ts.Tensor, error) {
	if len(features) != len(n.layers)+1 {
		return nil, fmt.Errorf("expected feature pyramid of %v tensors, got %v", len(n.layers)+1, len(features))
	}

	state := n.center.ForwardT(features[len(features)-1], train)
	for i, layer := range n.layers {
		ref := features[len(features)-2-i]
		up := upsample(state, ref)
		state.MustDrop()

		var skip *ts.Tensor
		if i < len(n.layers)-1 {
			skip = ref
			if err := checkConcat(up, skip); err != nil {
				up.MustDrop()
				return nil, err
			}
		}
		state = layer.ForwardSkip(up, skip, train)
		up.MustDrop()
	}

	return state, nil
}

func checkConcat(x, skip *ts.Tensor) error {
	xSize := x.MustSize()
	skipSize := skip.MustSize()
	if xSize[0] != skipSize[0] || !reflect.DeepEqual(xSize[2:], skipSize[2:]) {
		return fmt.Errorf("skip connection shape mismatch: %v vs %v", xSize, skipSize)
	}

	return nil
}
