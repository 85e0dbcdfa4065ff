package model

import (
	"errors"
	"slices"
	"testing"
	"time"
)

func TestMemoComputesOnceUntilInvalidated(t *testing.T) {
	var m Memo[int]
	calls := 0
	compute := func() (int, error) {
		calls++
		return 42, nil
	}

	if _, ok := m.Peek(); ok {
		t.Fatal("zero memo should be uncomputed")
	}
	for i := 0; i < 3; i++ {
		v, err := m.Get(compute)
		if err != nil || v != 42 {
			t.Fatalf("Get = %d, %v; want 42, nil", v, err)
		}
	}
	if calls != 1 {
		t.Errorf("compute called %d times, want 1", calls)
	}

	m.Invalidate()
	if _, ok := m.Peek(); ok {
		t.Error("memo should be uncomputed after Invalidate")
	}
	if _, err := m.Get(compute); err != nil {
		t.Fatal(err)
	}
	if calls != 2 {
		t.Errorf("compute called %d times after invalidate, want 2", calls)
	}
}

func TestMemoFailedComputeStaysUncomputed(t *testing.T) {
	var m Memo[float64]
	boom := errors.New("boom")
	if _, err := m.Get(func() (float64, error) { return 0, boom }); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if _, ok := m.Peek(); ok {
		t.Fatal("failed compute must not be cached")
	}
	v, err := m.Get(func() (float64, error) { return 1.5, nil })
	if err != nil || v != 1.5 {
		t.Fatalf("Get = %v, %v", v, err)
	}
}

func TestNewDocumentDefaults(t *testing.T) {
	mod := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	d := NewDocument(7, "/tmp/a.txt", mod)
	if d.TokenCount != UnknownTokenCount {
		t.Errorf("TokenCount = %d, want %d", d.TokenCount, UnknownTokenCount)
	}
	if d.AverageRating() != 50 {
		t.Errorf("AverageRating = %v, want 50", d.AverageRating())
	}
	if got := d.Age(mod.Add(time.Hour)); got != time.Hour {
		t.Errorf("Age = %v, want 1h", got)
	}
}

func TestPositionsEncoding(t *testing.T) {
	tests := []struct {
		name string
		in   []int
	}{
		{"empty", nil},
		{"single", []int{0}},
		{"sparse", []int{3, 17, 1024, 70000}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := EncodePositions(tt.in)
			if err != nil {
				t.Fatal(err)
			}
			out, err := DecodePositions(data)
			if err != nil {
				t.Fatal(err)
			}
			if !slices.Equal(out, tt.in) {
				t.Errorf("decoded %v, want %v", out, tt.in)
			}
		})
	}

	if _, err := EncodePositions([]int{-1}); err == nil {
		t.Error("expected error for negative position")
	}
}
