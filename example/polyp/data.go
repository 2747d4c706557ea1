package main

import (
	"fmt"
	"io/ioutil"
	"log"

	ts "github.com/sugarme/gotch/tensor"
	"github.com/sugarme/gotch/vision"
)

// PolypDataset implements dutil.Dataset over prepared PNG tiles.
type PolypDataset struct {
	fnames []string
}

func NewPolypDataset(fnames []string) *PolypDataset {
	return &PolypDataset{fnames: fnames}
}

func (ds *PolypDataset) Len() int {
	return len(ds.fnames)
}

// ImageMask is one training pair: normalized RGB image [3 H W] and a
// binary mask [H W] with values in {0, 1}.
type ImageMask struct {
	image ts.Tensor
	mask  ts.Tensor
}

// Item implements dutil.Dataset interface.
func (ds *PolypDataset) Item(idx int) (interface{}, error) {
	fname := ds.fnames[idx]
	imgPath := fmt.Sprintf("%v/tile/image/%v", DataPath, fname)
	maskPath := fmt.Sprintf("%v/tile/mask/%v", DataPath, fname)

	imgTs, err := vision.Load(imgPath)
	if err != nil {
		return nil, err
	}
	img := imgTs.MustDiv1(ts.FloatScalar(255.0), true)

	maskTs, err := vision.Load(maskPath)
	if err != nil {
		return nil, err
	}

	maskGray, err := rgb2GrayScale(maskTs)
	if err != nil {
		return nil, err
	}
	maskTs.MustDrop()
	mask := maskGray.MustDiv1(ts.FloatScalar(255.0), true)

	return ImageMask{
		image: *img,
		mask:  *mask,
	}, nil
}

// tileNames lists prepared tile file names.
func tileNames() []string {
	tileImgPath := fmt.Sprintf("%v/tile/image", DataPath)
	files, err := ioutil.ReadDir(tileImgPath)
	if err != nil {
		log.Fatal(err)
	}

	var fnames []string
	for _, f := range files {
		fnames = append(fnames, f.Name())
	}

	return fnames
}

// stackBatch stacks a loader batch into image and mask tensors.
func stackBatch(items []ImageMask) (imgTs, maskTs *ts.Tensor) {
	var img, mask []ts.Tensor
	for _, i := range items {
		img = append(img, i.image)
		mask = append(mask, i.mask)
	}

	imgTs = ts.MustStack(img, 0)
	for _, x := range img {
		x.MustDrop()
	}
	maskTs = ts.MustStack(mask, 0)
	for _, x := range mask {
		x.MustDrop()
	}

	return imgTs, maskTs
}
