// Package dutil provides minimal dataset batching helpers: a batch
// sampler producing index batches and a loader assembling typed item
// slices from a dataset.
package dutil

import (
	"fmt"
	"math/rand"
	"reflect"
)

// Dataset is an indexed item source.
type Dataset interface {
	Item(idx int) (interface{}, error)
	Len() int
}

// BatchSampler yields batches of dataset indices.
type BatchSampler struct {
	n         int
	batchSize int
	dropLast  bool
	shuffle   bool
}

// NewBatchSampler creates a BatchSampler over n items.
func NewBatchSampler(n, batchSize int, dropLast, shuffle bool) (*BatchSampler, error) {
	if n <= 0 {
		return nil, fmt.Errorf("invalid dataset size: %v", n)
	}
	if batchSize <= 0 || batchSize > n {
		return nil, fmt.Errorf("invalid batch size %v for %v items", batchSize, n)
	}

	return &BatchSampler{
		n:         n,
		batchSize: batchSize,
		dropLast:  dropLast,
		shuffle:   shuffle,
	}, nil
}

// Batches returns one pass of index batches, reshuffled per call when
// shuffling is on.
func (s *BatchSampler) Batches() [][]int {
	indices := make([]int, s.n)
	for i := range indices {
		indices[i] = i
	}
	if s.shuffle {
		indices = rand.Perm(s.n)
	}

	var batches [][]int
	for start := 0; start < s.n; start += s.batchSize {
		end := start + s.batchSize
		if end > s.n {
			if s.dropLast {
				break
			}
			end = s.n
		}
		batches = append(batches, indices[start:end])
	}

	return batches
}

// DataLoader iterates a dataset batch by batch.
type DataLoader struct {
	ds      Dataset
	sampler *BatchSampler
	batches [][]int
	next    int
}

// NewDataLoader creates a DataLoader.
func NewDataLoader(ds Dataset, s *BatchSampler) (*DataLoader, error) {
	if ds.Len() != s.n {
		return nil, fmt.Errorf("sampler built for %v items, dataset has %v", s.n, ds.Len())
	}

	return &DataLoader{
		ds:      ds,
		sampler: s,
		batches: s.Batches(),
	}, nil
}

// HasNext reports whether another batch remains in this pass.
func (dl *DataLoader) HasNext() bool {
	return dl.next < len(dl.batches)
}

// Next returns the next batch as a typed slice of the dataset's item
// type (e.g. []ImageMask).
func (dl *DataLoader) Next() (interface{}, error) {
	if !dl.HasNext() {
		return nil, fmt.Errorf("data loader exhausted")
	}

	indices := dl.batches[dl.next]
	dl.next++

	items := make([]interface{}, 0, len(indices))
	for _, idx := range indices {
		item, err := dl.ds.Item(idx)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	out := reflect.MakeSlice(reflect.SliceOf(reflect.TypeOf(items[0])), 0, len(items))
	for _, item := range items {
		out = reflect.Append(out, reflect.ValueOf(item))
	}

	return out.Interface(), nil
}

// Reset starts a new pass, resampling batches.
func (dl *DataLoader) Reset() {
	dl.batches = dl.sampler.Batches()
	dl.next = 0
}
