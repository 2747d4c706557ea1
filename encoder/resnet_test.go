package encoder_test

import (
	"testing"

	"github.com/sugarme/gotch"
	"github.com/sugarme/gotch/nn"
	ts "github.com/sugarme/gotch/tensor"

	"github.com/sugarme/resunet/encoder"
)

func TestVariantConfig(t *testing.T) {
	cfg, err := encoder.VariantConfig(encoder.ResNet50)
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Bottleneck {
		t.Error("resnet50: want bottleneck blocks")
	}
	if got := cfg.Channels[len(cfg.Channels)-1]; got != 2048 {
		t.Errorf("resnet50 deepest channels: want 2048, got %v", got)
	}

	if _, err := encoder.VariantConfig(encoder.Variant(99)); err == nil {
		t.Error("unknown variant: want error, got nil")
	}
}

func TestForwardAllPyramid(t *testing.T) {
	vs := nn.NewVarStore(gotch.CPU)
	enc, err := encoder.NewEncoder(vs.Root(), encoder.ResNet34)
	if err != nil {
		t.Fatal(err)
	}

	image := ts.MustRand([]int64{2, 3, 224, 224}, gotch.Float, gotch.CPU)
	features := enc.ForwardAll(image, false)
	if len(features) != 6 {
		t.Fatalf("expected pyramid of 6 tensors, got %v", len(features))
	}

	wants := [][]int64{
		{2, 3, 224, 224},
		{2, 64, 56, 56},
		{2, 64, 56, 56},
		{2, 128, 28, 28},
		{2, 256, 14, 14},
		{2, 512, 7, 7},
	}
	for i, f := range features {
		size := f.MustSize()
		for d := range wants[i] {
			if size[d] != wants[i][d] {
				t.Errorf("stage %v: want shape %v, got %v", i, wants[i], size)
				break
			}
		}
	}

	for _, f := range features {
		f.MustDrop()
	}
	image.MustDrop()
}

func TestForwardAllNonPowerOfTwo(t *testing.T) {
	vs := nn.NewVarStore(gotch.CPU)
	enc, err := encoder.NewEncoder(vs.Root(), encoder.ResNet18)
	if err != nil {
		t.Fatal(err)
	}

	// 150 is not a multiple of 2^5; stage resolutions still halve
	// (rounding per stride-2 conv and padded maxpool).
	image := ts.MustRand([]int64{1, 3, 150, 150}, gotch.Float, gotch.CPU)
	features := enc.ForwardAll(image, false)
	if len(features) != 6 {
		t.Fatalf("expected pyramid of 6 tensors, got %v", len(features))
	}

	prevH := int64(1 << 62)
	for i, f := range features[1:] {
		size := f.MustSize()
		if size[2] > prevH {
			t.Errorf("stage %v: resolution grew from %v to %v", i+1, prevH, size[2])
		}
		prevH = size[2]
	}

	for _, f := range features {
		f.MustDrop()
	}
	image.MustDrop()
}

func TestVerifyPretrained(t *testing.T) {
	// Decoder/head variables are expected to be absent from a
	// backbone-only weight file.
	missing := []string{"decoder0.conv1.conv.weight", "logit.weight", "center.bn.running_mean"}
	if err := encoder.VerifyPretrained(missing); err != nil {
		t.Errorf("decoder-only missing vars: want nil, got %v", err)
	}

	// A backbone variable left unfilled means a renamed or missing
	// key in the source: fatal, never skipped.
	missing = append(missing, "layer1.0.conv1.weight")
	if err := encoder.VerifyPretrained(missing); err == nil {
		t.Error("missing backbone var: want error, got nil")
	}

	if err := encoder.VerifyPretrained([]string{"bn1.weight"}); err == nil {
		t.Error("missing stem var: want error, got nil")
	}
}
