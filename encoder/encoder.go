package encoder

import (
	"fmt"

	ts "github.com/sugarme/gotch/tensor"
)

// Encoder is encoder interface for a image segmentation model.
// ForwardAll returns the feature pyramid ordered from shallow to deep:
// element 0 is the normalized input, elements 1..K the stage outputs,
// each stage halving spatial resolution.
type Encoder interface {
	ForwardAll(x *ts.Tensor, train bool) []*ts.Tensor
}

// Variant identifies a residual backbone from the supported closed set.
type Variant int

const (
	ResNet18 Variant = iota
	ResNet34
	ResNet50
	ResNet101
	ResNet152
)

func (v Variant) String() string {
	switch v {
	case ResNet18:
		return "resnet18"
	case ResNet34:
		return "resnet34"
	case ResNet50:
		return "resnet50"
	case ResNet101:
		return "resnet101"
	case ResNet152:
		return "resnet152"
	default:
		return fmt.Sprintf("Variant(%d)", int(v))
	}
}

// Config is the immutable structural descriptor of a backbone variant:
// residual blocks per stage, output channels per pyramid stage (stem
// first), and block kind. It is fixed at construction and never mutated.
type Config struct {
	Variant     Variant
	BlockCounts []int64
	Channels    []int64
	Bottleneck  bool
}

// VariantConfig returns the structural parameters of a variant.
// An unknown variant is a configuration error.
func VariantConfig(v Variant) (Config, error) {
	switch v {
	case ResNet18:
		return Config{v, []int64{2, 2, 2, 2}, []int64{64, 64, 128, 256, 512}, false}, nil
	case ResNet34:
		return Config{v, []int64{3, 4, 6, 3}, []int64{64, 64, 128, 256, 512}, false}, nil
	case ResNet50:
		return Config{v, []int64{3, 4, 6, 3}, []int64{64, 256, 512, 1024, 2048}, true}, nil
	case ResNet101:
		return Config{v, []int64{3, 4, 23, 3}, []int64{64, 256, 512, 1024, 2048}, true}, nil
	case ResNet152:
		return Config{v, []int64{3, 8, 36, 3}, []int64{64, 256, 512, 1024, 2048}, true}, nil
	default:
		return Config{}, fmt.Errorf("invalid backbone variant: %v", v)
	}
}
