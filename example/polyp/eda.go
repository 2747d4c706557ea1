package main

import (
	"fmt"
	"log"
	"os"

	"github.com/go-gota/gota/dataframe"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// runEDA summarizes the dataset metadata CSV
// (image_file, width_pixels, height_pixels, coverage) and plots a
// histogram of per-image polyp coverage.
func runEDA() {
	csvPath := fmt.Sprintf("%v/metadata.csv", DataPath)
	f, err := os.Open(csvPath)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()

	df := dataframe.ReadCSV(f, dataframe.HasHeader(true))
	fmt.Printf("%v\n", df.Describe())

	sizes := df.Select([]string{"image_file", "width_pixels", "height_pixels"})
	fmt.Printf("%v\n", sizes)

	coverage := df.Col("coverage").Float()

	p, err := plot.New()
	if err != nil {
		log.Fatal(err)
	}
	p.Title.Text = "Polyp coverage"
	p.X.Label.Text = "mask fraction"

	v := make(plotter.Values, len(coverage))
	for i, c := range coverage {
		v[i] = c
	}

	h, err := plotter.NewHist(v, 10)
	if err != nil {
		log.Fatal(err)
	}
	p.Add(h)

	if err := p.Save(4*vg.Inch, 4*vg.Inch, "coverage-histo.png"); err != nil {
		log.Fatal(err)
	}
	fmt.Println("saved coverage-histo.png")
}
