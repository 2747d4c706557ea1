package unet_test

import (
	"testing"

	"github.com/sugarme/gotch"
	"github.com/sugarme/gotch/nn"
	ts "github.com/sugarme/gotch/tensor"

	"github.com/sugarme/resunet/encoder"
	"github.com/sugarme/resunet/unet"
)

func checkShape(t *testing.T, x *ts.Tensor, want []int64) {
	t.Helper()
	size := x.MustSize()
	if len(size) != len(want) {
		t.Fatalf("want shape %v, got %v", want, size)
	}
	for d := range want {
		if size[d] != want[d] {
			t.Fatalf("want shape %v, got %v", want, size)
		}
	}
}

func TestDefaultUNet(t *testing.T) {
	device := gotch.CPU
	vs := nn.NewVarStore(device)
	net := unet.DefaultUNet(vs.Root())

	batchSize := int64(2)
	imageSize := int64(256)
	image := ts.MustRand([]int64{batchSize, 3, imageSize, imageSize}, gotch.Float, gotch.CPU)

	ts.NoGrad(func() {
		logit := net.ForwardT(image, false)
		checkShape(t, logit, []int64{batchSize, 1, imageSize, imageSize})
		logit.MustDrop()
	})
	image.MustDrop()
}

func TestUNetMultiClass(t *testing.T) {
	vs := nn.NewVarStore(gotch.CPU)
	net, err := unet.NewUNet(vs.Root(), unet.Config{Variant: encoder.ResNet50, NumClasses: 3})
	if err != nil {
		t.Fatal(err)
	}
	if net.NumClasses() != 3 {
		t.Errorf("want 3 classes, got %v", net.NumClasses())
	}

	// 200 is not a multiple of 2^5; output resolution must still
	// match the input exactly.
	image := ts.MustRand([]int64{1, 3, 200, 200}, gotch.Float, gotch.CPU)
	ts.NoGrad(func() {
		logit := net.ForwardT(image, false)
		checkShape(t, logit, []int64{1, 3, 200, 200})
		logit.MustDrop()
	})
	image.MustDrop()
}

func TestNewUNetInvalid(t *testing.T) {
	vs := nn.NewVarStore(gotch.CPU)

	if _, err := unet.NewUNet(vs.Root(), unet.Config{Variant: encoder.ResNet34, NumClasses: 0}); err == nil {
		t.Error("zero classes: want error, got nil")
	}
	if _, err := unet.NewUNet(vs.Root(), unet.Config{Variant: encoder.Variant(42), NumClasses: 1}); err == nil {
		t.Error("invalid variant: want error, got nil")
	}
}

func TestUNetPlain(t *testing.T) {
	vs := nn.NewVarStore(gotch.CPU)
	net := unet.NewUNetPlain(vs.Root(), 2)

	image := ts.MustRand([]int64{1, 3, 64, 64}, gotch.Float, gotch.CPU)
	ts.NoGrad(func() {
		logit := net.ForwardT(image, false)
		checkShape(t, logit, []int64{1, 2, 64, 64})
		logit.MustDrop()
	})
	image.MustDrop()
}

func TestDecoderPyramidLength(t *testing.T) {
	vs := nn.NewVarStore(gotch.CPU)
	encChannels := []int64{3, 64, 64, 128, 256, 512}
	decChannels := []int64{256, 128, 64, 32, 16}
	dec, err := unet.NewUNetDecoder(vs.Root(), encChannels, decChannels)
	if err != nil {
		t.Fatal(err)
	}

	short := []*ts.Tensor{
		ts.MustRand([]int64{1, 512, 8, 8}, gotch.Float, gotch.CPU),
	}
	if _, err := dec.ForwardFeatures(short, false); err == nil {
		t.Error("truncated pyramid: want error, got nil")
	}
	short[0].MustDrop()

	vs2 := nn.NewVarStore(gotch.CPU)
	if _, err := unet.NewUNetDecoder(vs2.Root(), encChannels, decChannels[:3]); err == nil {
		t.Error("mismatched channel lists: want error, got nil")
	}
}
