package query_test

import (
	"testing"

	"consteval/internal/query"
)

type record struct {
	Kind uint8
	Bits uint64
	Data []byte
}

func TestDiskCacheRoundTrip(t *testing.T) {
	c, err := query.OpenDiskCache(t.TempDir(), "consteval")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	in := record{Kind: 2, Bits: 0xdead, Data: []byte("ab")}
	if err := c.Put("prog:1:C", in); err != nil {
		t.Fatalf("put: %v", err)
	}
	var out record
	ok, err := c.Get("prog:1:C", &out)
	if err != nil || !ok {
		t.Fatalf("get: %v %v", ok, err)
	}
	if out.Kind != in.Kind || out.Bits != in.Bits || string(out.Data) != "ab" {
		t.Fatalf("round trip mismatch: %+v", out)
	}

	if ok, err := c.Get("prog:1:D", &out); ok || err != nil {
		t.Fatalf("expected a miss, got %v %v", ok, err)
	}
	if err := c.DropAll(); err != nil {
		t.Fatalf("drop: %v", err)
	}
	if ok, _ := c.Get("prog:1:C", &out); ok {
		t.Fatalf("entry survived DropAll")
	}
}

func TestNilDiskCacheIsDisabled(t *testing.T) {
	var c *query.DiskCache
	if err := c.Put("k", 1); err != nil {
		t.Fatalf("put on nil cache: %v", err)
	}
	var v int
	if ok, err := c.Get("k", &v); ok || err != nil {
		t.Fatalf("get on nil cache: %v %v", ok, err)
	}
}
