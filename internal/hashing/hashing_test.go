package hashing

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCompute(t *testing.T) {
	d := Compute([]byte("hello world"))

	if d.SHA1 != "2aae6c35c94fcfb415dbe95f408b9ce91ee846ed" {
		t.Errorf("unexpected SHA1 %s", d.SHA1)
	}
	if d.SHA512 != "309ecc489c12d6eb4cc40f50c902f2b4d0ed77ee511a7c7a9bcd3ca86d4cd86f989dd35bc5ff499670da34255b45b0cfd830e81f605dcf7dc5542e93ae9cd76f" {
		t.Errorf("unexpected SHA512 %s", d.SHA512)
	}
	if d.ContentKey != "256c83b297114d201b30179f3f0ef0cace9783622da5974326b436178aeef610" {
		t.Errorf("unexpected content key %s", d.ContentKey)
	}
	if d.Fingerprint != 2824650221 {
		t.Errorf("unexpected fingerprint %d", d.Fingerprint)
	}
}

func TestComputeIdempotent(t *testing.T) {
	data := []byte("PK\x03\x04 some archive bytes \x00\xff")
	first := Compute(data)
	for range 3 {
		if got := Compute(data); got != first {
			t.Fatalf("digests changed between runs: %+v vs %+v", first, got)
		}
	}
}

func TestFingerprint(t *testing.T) {
	tests := []struct {
		in   string
		want uint32
	}{
		{"", 1540447798},
		{" \t\r\n", 1540447798},
		{"a", 626045324},
		{"abc", 1621425345},
		{"hello world", 2824650221},
		{"helloworld", 2824650221},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := Fingerprint([]byte(tt.in)); got != tt.want {
				t.Errorf("Fingerprint(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mod.jar")
	if err := os.WriteFile(path, []byte("hello world"), 0o644); err != nil {
		t.Fatal(err)
	}
	d, err := File(path)
	if err != nil {
		t.Fatalf("File: %v", err)
	}
	if d != Compute([]byte("hello world")) {
		t.Error("expected File to match Compute")
	}

	after, err := os.ReadFile(path)
	if err != nil || string(after) != "hello world" {
		t.Error("expected file to be left untouched")
	}

	if _, err := File(filepath.Join(t.TempDir(), "missing.jar")); err == nil {
		t.Error("expected error for missing file")
	}
}
