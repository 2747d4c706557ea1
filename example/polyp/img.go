package main

import (
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io/ioutil"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/chai2010/tiff"
	"github.com/disintegration/imaging"
	"github.com/nfnt/resize"
	ts "github.com/sugarme/gotch/tensor"
	"golang.org/x/image/draw"
)

// readImage reads image from file.
func readImage(filename string) (image.Image, error) {
	ext := filepath.Ext(filename)
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	switch strings.ToLower(ext) {
	case ".png":
		return png.Decode(f)
	case ".jpg", ".jpeg":
		return jpeg.Decode(f)
	case ".tiff", ".tif":
		return tiff.Decode(f)
	default:
		return nil, fmt.Errorf("Unsupported image format: %v\n", ext)
	}
}

// reduceImage downscales an RGB image with Lanczos resampling.
func reduceImage(img image.Image, w, h int) image.Image {
	return resize.Resize(uint(w), uint(h), img, resize.Lanczos3)
}

// reduceMask downscales a label mask with nearest-neighbor sampling.
// Interpolating resamplers would blend class values at region borders.
func reduceMask(mask image.Image, w, h int) image.Image {
	dst := image.NewGray(image.Rect(0, 0, w, h))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), mask, mask.Bounds(), draw.Src, nil)

	return dst
}

// runPrepare converts the raw TIFF dataset into PNG training tiles:
// DataPath/raw/{image,mask}/*.tif -> DataPath/tile/{image,mask}/*.png
func runPrepare() {
	rawImgPath := fmt.Sprintf("%v/raw/image", DataPath)
	rawMaskPath := fmt.Sprintf("%v/raw/mask", DataPath)
	tileImgPath := fmt.Sprintf("%v/tile/image", DataPath)
	tileMaskPath := fmt.Sprintf("%v/tile/mask", DataPath)

	for _, p := range []string{tileImgPath, tileMaskPath} {
		if err := os.MkdirAll(p, 0755); err != nil {
			log.Fatal(err)
		}
	}

	files, err := ioutil.ReadDir(rawImgPath)
	if err != nil {
		log.Fatal(err)
	}

	for _, f := range files {
		name := f.Name()
		base := name[:len(name)-len(filepath.Ext(name))]

		img, err := readImage(fmt.Sprintf("%v/%v", rawImgPath, name))
		if err != nil {
			log.Fatal(err)
		}
		mask, err := readImage(fmt.Sprintf("%v/%v", rawMaskPath, name))
		if err != nil {
			log.Fatal(err)
		}

		imgTile := reduceImage(img, TileSize, TileSize)
		maskTile := reduceMask(mask, TileSize, TileSize)

		if err := imaging.Save(imgTile, fmt.Sprintf("%v/%v.png", tileImgPath, base)); err != nil {
			log.Fatal(err)
		}
		if err := imaging.Save(maskTile, fmt.Sprintf("%v/%v.png", tileMaskPath, base)); err != nil {
			log.Fatal(err)
		}

		if err := augmentTile(imgTile, maskTile, tileImgPath, tileMaskPath, base); err != nil {
			log.Fatal(err)
		}
	}

	fmt.Printf("Prepared %v tiles to %v/tile\n", len(files), DataPath)
}

// augmentTile writes flipped copies of a tile pair. Image and mask get
// the same transform so annotations stay aligned.
func augmentTile(img, mask image.Image, imgPath, maskPath, base string) error {
	type op struct {
		suffix string
		fn     func(image.Image) *image.NRGBA
	}
	ops := []op{
		{"fliph", imaging.FlipH},
		{"flipv", imaging.FlipV},
		{"rot90", imaging.Rotate90},
	}

	for _, o := range ops {
		if err := imaging.Save(o.fn(img), fmt.Sprintf("%v/%v_%v.png", imgPath, base, o.suffix)); err != nil {
			return err
		}
		if err := imaging.Save(o.fn(mask), fmt.Sprintf("%v/%v_%v.png", maskPath, base, o.suffix)); err != nil {
			return err
		}
	}

	return nil
}

// rgb2GrayScale converts a RGB (3xHxW) to grayscale image (HxW).
// ref. https://github.com/pytorch/vision/blob/master/torchvision/transforms/functional_tensor.py#L196-L234
// (0.2989 * r + 0.587 * g + 0.114 * b)
func rgb2GrayScale(x *ts.Tensor) (*ts.Tensor, error) {
	size := x.MustSize()
	if len(size) < 3 {
		return nil, fmt.Errorf("Expect at least 3D tensor. Got %v dimensions.\n", len(size))
	}

	chanSize := size[len(size)-3]
	if chanSize != 3 {
		return nil, fmt.Errorf("Expect image of 3 channels for RGB. Got %v .\n", chanSize)
	}

	channels := x.MustUnbind(-3, false)
	r := channels[0].MustMul1(ts.FloatScalar(0.2989), true)
	g := channels[1].MustMul1(ts.FloatScalar(0.587), true)
	b := channels[2].MustMul1(ts.FloatScalar(0.114), true)

	rg := r.MustAdd(g, true)
	g.MustDrop()
	gray := rg.MustAdd(b, true)
	b.MustDrop()

	return gray, nil
}
