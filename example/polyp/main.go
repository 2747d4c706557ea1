package main

import (
	"flag"
	"fmt"
	"log"
	"path/filepath"

	"github.com/sugarme/gotch"
)

// flag variables
var (
	DataPath  string
	ModelPath string
	ModelFrom string
	Cuda      bool
	task      string
	Device    gotch.Device
)

// hyperparameters
var (
	LR        float64 // learning rate
	BatchSize int     // batch size
	Epochs    int     // training epochs
	TileSize  int     // image tile size
	OptStr    string  // optimizer type
)

func init() {
	flag.StringVar(&DataPath, "input", "./input", "specify input data directory")
	flag.StringVar(&ModelPath, "model", "./model/resnet34.ot", "specify full path to model weight '.ot' file.")
	flag.StringVar(&ModelFrom, "from", "scratch", "specify weight source: 'scratch' (pretrained backbone) or 'checkpoint'")
	flag.BoolVar(&Cuda, "cuda", false, "specify whether using CUDA or not.")
	flag.StringVar(&task, "task", "train", "specify task to run")
	flag.Float64Var(&LR, "lr", 0.001, "specify learning rate")
	flag.IntVar(&BatchSize, "batch", 16, "specify batch size")
	flag.IntVar(&Epochs, "epochs", 10, "specify number of training epochs")
	flag.IntVar(&TileSize, "tile", 256, "specify tile image size")
	flag.StringVar(&OptStr, "opt", "SGD", "specify optimizer type")
}

func main() {
	flag.Parse()

	DataPath = absPath(DataPath)
	ModelPath = absPath(ModelPath)

	Device = gotch.CPU
	if Cuda {
		Device = gotch.NewCuda().CudaIfAvailable()
	}

	switch task {
	case "model":
		runCheckModel()
	case "train":
		runTrain()
	case "validate":
		runValidate()
	case "ensemble":
		runEnsemble()
	case "prepare":
		runPrepare()
	case "eda":
		runEDA()
	default:
		err := fmt.Errorf("Unknown 'task' name. Please specify valid 'task' flag to run.\n")
		panic(err)
	}
}

// helper to get absolute file path
func absPath(p string) string {
	fullpath, err := filepath.Abs(p)
	if err != nil {
		log.Fatal(err)
	}
	return fullpath
}
