package main

import (
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/sugarme/gotch"
	"github.com/sugarme/gotch/nn"
	ts "github.com/sugarme/gotch/tensor"

	"github.com/sugarme/resunet/encoder"
	"github.com/sugarme/resunet/example/polyp/dutil"
	"github.com/sugarme/resunet/metric"
	"github.com/sugarme/resunet/unet"
)

// validSize is the number of tiles held out for validation.
const validSize = 48

func newNet(vs *nn.VarStore) *unet.UNet {
	net, err := unet.NewUNet(vs.Root(), unet.Config{Variant: encoder.ResNet34, NumClasses: 2})
	if err != nil {
		log.Fatal(err)
	}

	return net
}

func loadWeights(vs *nn.VarStore, fpath, from string) {
	modelPath, err := filepath.Abs(fpath)
	if err != nil {
		log.Fatal(err)
	}

	switch from {
	case "checkpoint":
		if err := vs.Load(modelPath); err != nil {
			log.Fatal(err)
		}
	case "scratch":
		// pretrained backbone only; decoder weights stay random
		if err := encoder.LoadPretrained(vs, modelPath); err != nil {
			log.Fatal(err)
		}
	default:
		err := fmt.Errorf("Invalid load option. Expected 'checkpoint' or 'scratch'. Got: %v\n", from)
		panic(err)
	}
}

func newOptimizer(vs *nn.VarStore) *nn.Optimizer {
	var (
		opt *nn.Optimizer
		err error
	)
	switch OptStr {
	case "SGD":
		opt, err = nn.DefaultSGDConfig().Build(vs, LR)
	case "Adam":
		opt, err = nn.DefaultAdamConfig().Build(vs, LR)
	default:
		err = fmt.Errorf("Unspecified/Invalid Optimizer option: '%v'.\n", OptStr)
	}
	if err != nil {
		log.Fatal(err)
	}

	return opt
}

func runTrain() {
	vs := nn.NewVarStore(Device)
	net := newNet(vs)
	loadWeights(vs, ModelPath, ModelFrom)
	opt := newOptimizer(vs)

	fnames := tileNames()
	if len(fnames) <= validSize {
		log.Fatalf("not enough tiles: %v", len(fnames))
	}
	trainFiles := fnames[validSize:]

	trainDS := NewPolypDataset(trainFiles)
	s, err := dutil.NewBatchSampler(trainDS.Len(), BatchSize, true, true)
	if err != nil {
		log.Fatal(err)
	}
	trainDL, err := dutil.NewDataLoader(trainDS, s)
	if err != nil {
		log.Fatal(err)
	}

	for e := 0; e < Epochs; e++ {
		start := time.Now()
		trainDL.Reset()
		var losses []float64

		for trainDL.HasNext() {
			batch, err := trainDL.Next()
			if err != nil {
				log.Fatal(err)
			}

			imgTs, maskTs := stackBatch(batch.([]ImageMask))
			input := imgTs.MustTo(Device, true)
			target := maskTs.MustTo(Device, true)

			logit := net.ForwardT(input, true)
			input.MustDrop()
			blogit := binaryLogit(logit)
			logit.MustDrop()
			pred := blogit.MustTotype(gotch.Double, true)

			loss := metric.MixLoss(pred, target)
			pred.MustDrop()
			target.MustDrop()

			opt.BackwardStep(loss)
			losses = append(losses, loss.Float64Values()[0])
			loss.MustDrop()
		}

		vloss, miou := doValidate(net, Device)
		fmt.Printf("Epoch %02d\t train loss: %6.4f\t valid loss: %6.4f\t mIoU: %6.4f\t Taken time: %0.2fMin\n",
			e, avg(losses), vloss, miou, time.Since(start).Minutes())
	}

	weightFile := fmt.Sprintf("./checkpoint/polyp-%v.gt", time.Now().Unix())
	if err := vs.Save(weightFile); err != nil {
		log.Fatal(err)
	}
}

func avg(input []float64) float64 {
	var sum float64
	for _, v := range input {
		sum += v
	}

	return sum / float64(len(input))
}

// runCheckModel loads pretrained backbone weights into a fresh model
// and runs a forward smoke test.
func runCheckModel() {
	vs := nn.NewVarStore(Device)
	net := newNet(vs)

	missing, err := vs.LoadPartial(ModelPath)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("Num of missings: %v\n", len(missing))
	if err := encoder.VerifyPretrained(missing); err != nil {
		log.Fatal(err)
	}

	image := ts.MustRand([]int64{2, 3, int64(TileSize), int64(TileSize)}, gotch.Float, Device)
	ts.NoGrad(func() {
		logit := net.ForwardT(image, false)
		fmt.Printf("logit shape: %v\n", logit.MustSize())
		logit.MustDrop()
	})
	image.MustDrop()
}
