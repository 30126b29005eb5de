package shard

import (
	"testing"
)

func TestIndexForStable(t *testing.T) {
	const n = 7
	for _, id := range []string{"parcel_000000", "parcel_000001", "parcel_123456", ""} {
		first := IndexFor(id, n)
		for i := 0; i < 10; i++ {
			if got := IndexFor(id, n); got != first {
				t.Fatalf("IndexFor(%q, %d) unstable: %d then %d", id, n, first, got)
			}
		}
		if first < 0 || first >= n {
			t.Fatalf("IndexFor(%q, %d) = %d out of range", id, n, first)
		}
	}
}

func TestIndexForPartitionsTotality(t *testing.T) {
	// Every id maps to exactly one shard; counting per-shard membership over
	// many ids must sum back to the id count.
	const n = 5
	counts := make([]int, n)
	total := 1000
	for i := 0; i < total; i++ {
		counts[IndexFor(idFor(i), n)]++
	}
	sum := 0
	for _, c := range counts {
		sum += c
	}
	if sum != total {
		t.Fatalf("shard membership sums to %d, want %d", sum, total)
	}
}

func idFor(i int) string {
	return "parcel_" + ID(i%100) + ID(i/100)
}

func TestEstimate(t *testing.T) {
	cases := []struct {
		parcels, chunk int64
		want           int
		wantErr        bool
	}{
		{100, 10, 10, false},
		{101, 10, 11, false},
		{1, 10, 1, false},
		{10_000, 10_000, 1, false},
		{0, 10, 0, true},
		{-5, 10, 0, true},
		{10, 0, 0, true},
	}
	for _, c := range cases {
		got, err := Estimate(c.parcels, c.chunk)
		if c.wantErr {
			if err == nil {
				t.Fatalf("Estimate(%d, %d): want error, got %d", c.parcels, c.chunk, got)
			}
			continue
		}
		if err != nil {
			t.Fatalf("Estimate(%d, %d): %v", c.parcels, c.chunk, err)
		}
		if got != c.want {
			t.Fatalf("Estimate(%d, %d) = %d, want %d", c.parcels, c.chunk, got, c.want)
		}
	}
}

func TestNaming(t *testing.T) {
	if got := DirName(3); got != "parcel_chunk=03" {
		t.Fatalf("DirName(3) = %q", got)
	}
	if got := DirName(42); got != "parcel_chunk=42" {
		t.Fatalf("DirName(42) = %q", got)
	}
	id, ok := ParsePartition("parcel_chunk=07")
	if !ok || id != "07" {
		t.Fatalf("ParsePartition = %q, %v", id, ok)
	}
	if _, ok := ParsePartition("bogus"); ok {
		t.Fatal("ParsePartition accepted name without the shard prefix")
	}
	if _, ok := ParsePartition("parcel_chunk="); ok {
		t.Fatal("ParsePartition accepted an empty identifier")
	}
}

func TestPartitionFromPath(t *testing.T) {
	cases := []struct {
		path string
		want string
		ok   bool
	}{
		{"parcel_chunk=04/part-0001.parquet", "04", true},
		{"some/prefix/parcel_chunk=11/data.parquet", "11", true},
		{"parcel_chunk=09", "09", true},
		{"part-0001.parquet", "", false},
		{"parcel_chunk=", "", false},
	}
	for _, c := range cases {
		got, ok := PartitionFromPath(c.path)
		if got != c.want || ok != c.ok {
			t.Fatalf("PartitionFromPath(%q) = %q, %v; want %q, %v", c.path, got, ok, c.want, c.ok)
		}
	}
}
