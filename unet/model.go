package unet

import (
	"fmt"
	"log"

	"github.com/sugarme/gotch/nn"
	ts "github.com/sugarme/gotch/tensor"

	"github.com/sugarme/resunet/base"
	"github.com/sugarme/resunet/encoder"
)

// Config selects the backbone variant and the number of output
// classes of a UNet.
type Config struct {
	Variant    encoder.Variant
	NumClasses int64
}

// UNet is a UNET model with a residual backbone encoder.
// Ref: https://arxiv.org/abs/1505.04597
type UNet struct {
	encoder encoder.Encoder
	decoder *UNetDecoder
	segHead *nn.SequentialT
	classes int64
}

// decoderChannels are the output channels of the decoder steps, fixed
// across variants.
var decoderChannels = []int64{256, 128, 64, 32, 16}

// NewUNet creates a UNet from a backbone configuration.
func NewUNet(p *nn.Path, cfg Config) (*UNet, error) {
	if cfg.NumClasses < 1 {
		return nil, fmt.Errorf("invalid class count: %v", cfg.NumClasses)
	}

	enc, err := encoder.NewEncoder(p, cfg.Variant)
	if err != nil {
		return nil, err
	}

	encChannels := append([]int64{3}, enc.Config().Channels...)
	dec, err := NewUNetDecoder(p, encChannels, decoderChannels)
	if err != nil {
		return nil, err
	}

	// cIn=decoderChannels[-1], cOut=classes, 1x1 kernel
	head := base.NewSegmentationHead(p.Sub("logit"), decoderChannels[len(decoderChannels)-1], cfg.NumClasses, 1)

	return &UNet{
		encoder: enc,
		decoder: dec,
		segHead: head,
		classes: cfg.NumClasses,
	}, nil
}

// DefaultUNet creates UNet with default values:
// ResNet34 encoder, a single output class.
func DefaultUNet(p *nn.Path) *UNet {
	net, err := NewUNet(p, Config{Variant: encoder.ResNet34, NumClasses: 1})
	if err != nil {
		panic(err)
	}
	return net
}

// NumClasses returns the channel count of the logit output.
func (n *UNet) NumClasses() int64 {
	return n.classes
}

// ForwardT implements ts.ModuleT for UNet struct. The returned logit
// map has shape [N classes H W] at the input resolution.
func (n *UNet) ForwardT(x *ts.Tensor, train bool) *ts.Tensor {
	features := n.encoder.ForwardAll(x, train)
	out, err := n.decoder.ForwardFeatures(features, train)
	if err != nil {
		log.Fatal(err)
	}
	segHead := n.segHead.ForwardT(out, train)
	masks := upsample(segHead, x)

	for _, f := range features {
		f.MustDrop()
	}
	out.MustDrop()
	segHead.MustDrop()

	return masks
}
