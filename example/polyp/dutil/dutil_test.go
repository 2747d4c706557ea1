package dutil_test

import (
	"testing"

	"github.com/sugarme/resunet/example/polyp/dutil"
)

type intDataset struct {
	vals []int
}

func (ds *intDataset) Item(idx int) (interface{}, error) {
	return ds.vals[idx], nil
}

func (ds *intDataset) Len() int {
	return len(ds.vals)
}

func newIntDataset(n int) *intDataset {
	vals := make([]int, n)
	for i := range vals {
		vals[i] = i
	}
	return &intDataset{vals: vals}
}

func TestBatchSampler(t *testing.T) {
	s, err := dutil.NewBatchSampler(10, 4, false, false)
	if err != nil {
		t.Fatal(err)
	}
	batches := s.Batches()
	if len(batches) != 3 {
		t.Fatalf("want 3 batches, got %v", len(batches))
	}
	if len(batches[2]) != 2 {
		t.Errorf("want tail batch of 2, got %v", len(batches[2]))
	}
	if batches[0][0] != 0 || batches[0][3] != 3 {
		t.Errorf("no-shuffle order broken: %v", batches[0])
	}

	s, err = dutil.NewBatchSampler(10, 4, true, false)
	if err != nil {
		t.Fatal(err)
	}
	if got := len(s.Batches()); got != 2 {
		t.Errorf("drop-last: want 2 batches, got %v", got)
	}

	if _, err := dutil.NewBatchSampler(10, 0, false, false); err == nil {
		t.Error("zero batch size: want error, got nil")
	}
	if _, err := dutil.NewBatchSampler(0, 1, false, false); err == nil {
		t.Error("empty dataset: want error, got nil")
	}
}

func TestDataLoader(t *testing.T) {
	ds := newIntDataset(7)
	s, err := dutil.NewBatchSampler(ds.Len(), 3, false, false)
	if err != nil {
		t.Fatal(err)
	}
	dl, err := dutil.NewDataLoader(ds, s)
	if err != nil {
		t.Fatal(err)
	}

	var seen []int
	for dl.HasNext() {
		batch, err := dl.Next()
		if err != nil {
			t.Fatal(err)
		}
		items, ok := batch.([]int)
		if !ok {
			t.Fatalf("want []int batch, got %T", batch)
		}
		seen = append(seen, items...)
	}
	if len(seen) != 7 {
		t.Fatalf("want 7 items over one pass, got %v", len(seen))
	}
	for i, v := range seen {
		if v != i {
			t.Errorf("item %v: want %v, got %v", i, i, v)
		}
	}

	if _, err := dl.Next(); err == nil {
		t.Error("exhausted loader: want error, got nil")
	}

	dl.Reset()
	if !dl.HasNext() {
		t.Error("after reset: want HasNext true")
	}
}

func TestDataLoaderShuffleCoversAll(t *testing.T) {
	ds := newIntDataset(12)
	s, err := dutil.NewBatchSampler(ds.Len(), 4, false, true)
	if err != nil {
		t.Fatal(err)
	}
	dl, err := dutil.NewDataLoader(ds, s)
	if err != nil {
		t.Fatal(err)
	}

	seen := make(map[int]bool)
	for dl.HasNext() {
		batch, err := dl.Next()
		if err != nil {
			t.Fatal(err)
		}
		for _, v := range batch.([]int) {
			seen[v] = true
		}
	}
	if len(seen) != 12 {
		t.Errorf("shuffled pass must cover all items once, saw %v", len(seen))
	}
}
