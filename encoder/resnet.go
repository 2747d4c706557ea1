package encoder

import (
	"fmt"

	"github.com/sugarme/gotch/nn"
	ts "github.com/sugarme/gotch/tensor"
)

// ResNetEncoder produces a 5-stage feature pyramid from an input image.
// Variable names follow the torchvision layout (`conv1`, `bn1`,
// `layer1`..`layer4`) so pretrained `.ot` weights load unchanged.
type ResNetEncoder struct {
	layer0 ts.ModuleT
	layer1 ts.ModuleT
	layer2 ts.ModuleT
	layer3 ts.ModuleT
	layer4 ts.ModuleT
	cfg    Config
}

// ForwardAll implements Encoder interface for ResNetEncoder.
func (e *ResNetEncoder) ForwardAll(x *ts.Tensor, train bool) []*ts.Tensor {
	xn := rgbNormalize(x)
	x0 := e.layer0.ForwardT(xn, train)
	x1 := e.layer1.ForwardT(x0, train)
	x2 := e.layer2.ForwardT(x1, train)
	x3 := e.layer3.ForwardT(x2, train)
	x4 := e.layer4.ForwardT(x3, train)

	return []*ts.Tensor{xn, x0, x1, x2, x3, x4}
}

// Config returns the structural descriptor the encoder was built with.
func (e *ResNetEncoder) Config() Config {
	return e.cfg
}

// NewEncoder creates a ResNetEncoder for the given variant.
func NewEncoder(p *nn.Path, v Variant) (*ResNetEncoder, error) {
	cfg, err := VariantConfig(v)
	if err != nil {
		return nil, err
	}

	stage := func(path *nn.Path, cIn, cOut, stride, cnt int64) ts.ModuleT {
		if cfg.Bottleneck {
			return bottleneckLayer(path, cIn, cOut/bottleneckExpansion, stride, cnt)
		}
		return basicLayer(path, cIn, cOut, stride, cnt)
	}

	return &ResNetEncoder{
		layer0: layerZero(p), // NOTE. `conv1` and `bn1` are at root of pretrained model
		layer1: stage(p.Sub("layer1"), cfg.Channels[0], cfg.Channels[1], 1, cfg.BlockCounts[0]),
		layer2: stage(p.Sub("layer2"), cfg.Channels[1], cfg.Channels[2], 2, cfg.BlockCounts[1]),
		layer3: stage(p.Sub("layer3"), cfg.Channels[2], cfg.Channels[3], 2, cfg.BlockCounts[2]),
		layer4: stage(p.Sub("layer4"), cfg.Channels[3], cfg.Channels[4], 2, cfg.BlockCounts[3]),
		cfg:    cfg,
	}, nil
}

// NewResNet34Encoder creates the default ResNet34 encoder.
func NewResNet34Encoder(p *nn.Path) *ResNetEncoder {
	enc, err := NewEncoder(p, ResNet34)
	if err != nil {
		panic(err)
	}
	return enc
}

func rgbNormalize(x *ts.Tensor) *ts.Tensor {
	meanVals := []float32{0.485, 0.456, 0.406} // image RGB mean
	sdVals := []float32{0.229, 0.224, 0.225}   // image RGB standard error

	mean := ts.MustOfSlice(meanVals).MustView([]int64{1, 3, 1, 1}, true)
	sd := ts.MustOfSlice(sdVals).MustView([]int64{1, 3, 1, 1}, true)

	// x = (x - mean)/sd
	n := x.MustSub(mean, false).MustDiv(sd, true)
	mean.MustDrop()
	sd.MustDrop()

	return n
}

func layerZero(p *nn.Path) ts.ModuleT {
	conv1 := conv2dNoBias(p.Sub("conv1"), 3, 64, 7, 3, 2)
	bn1 := nn.BatchNorm2D(p.Sub("bn1"), 64, nn.DefaultBatchNormConfig())
	layer0 := nn.SeqT()
	layer0.Add(conv1)
	layer0.Add(bn1)
	layer0.AddFn(nn.NewFunc(func(xs *ts.Tensor) *ts.Tensor {
		return xs.MustRelu(false)
	}))
	layer0.AddFn(nn.NewFunc(func(xs *ts.Tensor) *ts.Tensor {
		return xs.MustMaxPool2d([]int64{3, 3}, []int64{2, 2}, []int64{1, 1}, []int64{1, 1}, false, false)
	}))

	return layer0
}

func basicLayer(path *nn.Path, cIn, cOut, stride, cnt int64) ts.ModuleT {
	layer := nn.SeqT()
	layer.Add(NewBasicBlock(path.Sub("0"), cIn, cOut, stride))
	for blockIndex := 1; blockIndex < int(cnt); blockIndex++ {
		layer.Add(NewBasicBlock(path.Sub(fmt.Sprint(blockIndex)), cOut, cOut, 1))
	}

	return layer
}

func bottleneckLayer(path *nn.Path, cIn, width, stride, cnt int64) ts.ModuleT {
	layer := nn.SeqT()
	layer.Add(NewBottleneckBlock(path.Sub("0"), cIn, width, stride))
	cOut := width * bottleneckExpansion
	for blockIndex := 1; blockIndex < int(cnt); blockIndex++ {
		layer.Add(NewBottleneckBlock(path.Sub(fmt.Sprint(blockIndex)), cOut, width, 1))
	}

	return layer
}

func conv2dNoBias(p *nn.Path, cIn, cOut, ksize, padding, stride int64) *nn.Conv2D {
	config := nn.DefaultConv2DConfig()
	config.Bias = false
	config.Stride = []int64{stride, stride}
	config.Padding = []int64{padding, padding}

	return nn.NewConv2D(p, cIn, cOut, ksize, config)
}

// downSample builds the learned 1x1 projection skip used when the block
// input and output shapes differ; identity otherwise.
func downSample(path *nn.Path, cIn, cOut, stride int64) ts.ModuleT {
	if stride != 1 || cIn != cOut {
		seq := nn.SeqT()
		seq.Add(conv2dNoBias(path.Sub("0"), cIn, cOut, 1, 0, stride))
		seq.Add(nn.BatchNorm2D(path.Sub("1"), cOut, nn.DefaultBatchNormConfig()))

		return seq
	}
	return nn.SeqT()
}

// BasicBlock is the two-layer residual block used by the shallow
// variants (ResNet18/34).
type BasicBlock struct {
	Conv1      *nn.Conv2D
	Bn1        *nn.BatchNorm
	Conv2      *nn.Conv2D
	Bn2        *nn.BatchNorm
	Downsample ts.ModuleT
}

func NewBasicBlock(path *nn.Path, cIn, cOut, stride int64) *BasicBlock {
	conv1 := conv2dNoBias(path.Sub("conv1"), cIn, cOut, 3, 1, stride)
	bn1 := nn.BatchNorm2D(path.Sub("bn1"), cOut, nn.DefaultBatchNormConfig())
	conv2 := conv2dNoBias(path.Sub("conv2"), cOut, cOut, 3, 1, 1)
	bn2 := nn.BatchNorm2D(path.Sub("bn2"), cOut, nn.DefaultBatchNormConfig())
	downsample := downSample(path.Sub("downsample"), cIn, cOut, stride)

	return &BasicBlock{conv1, bn1, conv2, bn2, downsample}
}

// ForwardT implements ts.ModuleT for BasicBlock.
func (bb *BasicBlock) ForwardT(x *ts.Tensor, train bool) *ts.Tensor {
	c1 := bb.Conv1.ForwardT(x, train)
	bn1Ts := bb.Bn1.ForwardT(c1, train)
	c1.MustDrop()
	relu := bn1Ts.MustRelu(true)
	c2 := bb.Conv2.ForwardT(relu, train)
	relu.MustDrop()
	bn2Ts := bb.Bn2.ForwardT(c2, train)
	c2.MustDrop()
	dsl := bb.Downsample.ForwardT(x, train)
	dslAdd := dsl.MustAdd(bn2Ts, true)
	bn2Ts.MustDrop()
	res := dslAdd.MustRelu(true)

	return res
}

// bottleneckExpansion is the channel expansion of the final 1x1
// convolution in a bottleneck block.
const bottleneckExpansion int64 = 4

// BottleneckBlock is the three-layer residual block used by the deep
// variants (ResNet50/101/152): 1x1 reduce, 3x3, 1x1 expand.
type BottleneckBlock struct {
	Conv1      *nn.Conv2D
	Bn1        *nn.BatchNorm
	Conv2      *nn.Conv2D
	Bn2        *nn.BatchNorm
	Conv3      *nn.Conv2D
	Bn3        *nn.BatchNorm
	Downsample ts.ModuleT
}

func NewBottleneckBlock(path *nn.Path, cIn, width, stride int64) *BottleneckBlock {
	cOut := width * bottleneckExpansion
	conv1 := conv2dNoBias(path.Sub("conv1"), cIn, width, 1, 0, 1)
	bn1 := nn.BatchNorm2D(path.Sub("bn1"), width, nn.DefaultBatchNormConfig())
	conv2 := conv2dNoBias(path.Sub("conv2"), width, width, 3, 1, stride)
	bn2 := nn.BatchNorm2D(path.Sub("bn2"), width, nn.DefaultBatchNormConfig())
	conv3 := conv2dNoBias(path.Sub("conv3"), width, cOut, 1, 0, 1)
	bn3 := nn.BatchNorm2D(path.Sub("bn3"), cOut, nn.DefaultBatchNormConfig())
	downsample := downSample(path.Sub("downsample"), cIn, cOut, stride)

	return &BottleneckBlock{conv1, bn1, conv2, bn2, conv3, bn3, downsample}
}

// ForwardT implements ts.ModuleT for BottleneckBlock.
func (bb *BottleneckBlock) ForwardT(x *ts.Tensor, train bool) *ts.Tensor {
	c1 := bb.Conv1.ForwardT(x, train)
	bn1Ts := bb.Bn1.ForwardT(c1, train)
	c1.MustDrop()
	relu1 := bn1Ts.MustRelu(true)
	c2 := bb.Conv2.ForwardT(relu1, train)
	relu1.MustDrop()
	bn2Ts := bb.Bn2.ForwardT(c2, train)
	c2.MustDrop()
	relu2 := bn2Ts.MustRelu(true)
	c3 := bb.Conv3.ForwardT(relu2, train)
	relu2.MustDrop()
	bn3Ts := bb.Bn3.ForwardT(c3, train)
	c3.MustDrop()
	dsl := bb.Downsample.ForwardT(x, train)
	dslAdd := dsl.MustAdd(bn3Ts, true)
	bn3Ts.MustDrop()
	res := dslAdd.MustRelu(true)

	return res
}
