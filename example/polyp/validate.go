package main

import (
	"fmt"
	"log"
	"strings"

	"github.com/sugarme/gotch"
	"github.com/sugarme/gotch/nn"
	ts "github.com/sugarme/gotch/tensor"

	"github.com/sugarme/resunet/ensemble"
	"github.com/sugarme/resunet/example/polyp/dutil"
	"github.com/sugarme/resunet/metric"
	"github.com/sugarme/resunet/unet"
)

func validLoader() *dutil.DataLoader {
	fnames := tileNames()
	if len(fnames) < validSize {
		log.Fatalf("not enough tiles: %v", len(fnames))
	}

	testDS := NewPolypDataset(fnames[:validSize])
	s, err := dutil.NewBatchSampler(testDS.Len(), BatchSize, false, false) // no shuffle
	if err != nil {
		log.Fatal(err)
	}
	testDL, err := dutil.NewDataLoader(testDS, s)
	if err != nil {
		log.Fatal(err)
	}

	return testDL
}

// maskLabels binarizes a {0,1}-valued float mask into class indices.
func maskLabels(mask *ts.Tensor) *ts.Tensor {
	return mask.MustGt(ts.FloatScalar(0.5), false).MustTotype(gotch.Int64, true)
}

func doValidate(net *unet.UNet, device gotch.Device) (loss, miou float64) {
	testDL := validLoader()

	m, err := metric.NewMeanIoU(net.NumClasses())
	if err != nil {
		log.Fatal(err)
	}

	var losses []float64
	for testDL.HasNext() {
		batch, err := testDL.Next()
		if err != nil {
			log.Fatal(err)
		}

		imgTs, maskTs := stackBatch(batch.([]ImageMask))
		input := imgTs.MustTo(device, true)
		target := maskTs.MustTo(device, true)

		var logit *ts.Tensor
		ts.NoGrad(func() {
			logit = net.ForwardT(input, false)
		})
		input.MustDrop()

		blogit := binaryLogit(logit).MustTotype(gotch.Double, true)
		bloss := metric.BCEWithLogitsLoss(blogit, target)
		losses = append(losses, bloss.Float64Values()[0])
		bloss.MustDrop()
		blogit.MustDrop()

		pred := logit.MustArgmax(1, false, true)
		truth := maskLabels(target)
		if err := m.Update(pred, truth); err != nil {
			log.Fatal(err)
		}

		pred.MustDrop()
		truth.MustDrop()
		target.MustDrop()
	}

	return avg(losses), m.Compute()
}

func runValidate() {
	vs := nn.NewVarStore(Device)
	net := newNet(vs)
	loadWeights(vs, ModelPath, "checkpoint")

	loss, miou := doValidate(net, Device)
	fmt.Printf("valid loss: %6.4f\t mIoU: %6.4f\n", loss, miou)
}

// runEnsemble scores a probability-averaging ensemble of checkpoints.
// ModelPath holds a comma-separated checkpoint list; each member gets
// its own var store so parameters stay independent.
func runEnsemble() {
	paths := strings.Split(ModelPath, ",")

	var members []ensemble.Member
	for _, p := range paths {
		vs := nn.NewVarStore(Device)
		net := newNet(vs)
		loadWeights(vs, strings.TrimSpace(p), "checkpoint")
		members = append(members, net)
	}

	ens, err := ensemble.New(members...)
	if err != nil {
		log.Fatal(err)
	}

	m, err := metric.NewMeanIoU(ens.NumClasses())
	if err != nil {
		log.Fatal(err)
	}

	testDL := validLoader()
	for testDL.HasNext() {
		batch, err := testDL.Next()
		if err != nil {
			log.Fatal(err)
		}

		imgTs, maskTs := stackBatch(batch.([]ImageMask))
		input := imgTs.MustTo(Device, true)

		pred := ens.Predict(input)
		input.MustDrop()

		truth := maskLabels(maskTs)
		maskTs.MustDrop()
		if err := m.Update(pred, truth); err != nil {
			log.Fatal(err)
		}

		pred.MustDrop()
		truth.MustDrop()
	}

	fmt.Printf("ensemble of %v members\t mIoU: %6.4f\n", ens.Len(), m.Compute())
}
