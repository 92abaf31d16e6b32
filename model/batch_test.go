package model

import "testing"

func TestNewBatchPadding(t *testing.T) {
	samples := SampleList{
		{Tokens: [][]int{{1, 2, 3}, {4, 5}}, Labels: []int{0, 1}},
		{Tokens: [][]int{{2}}, Labels: []int{1}},
	}
	b, err := NewBatch(samples)
	if err != nil {
		t.Fatal(err)
	}
	if b.Size() != 2 || b.MaxSession() != 2 {
		t.Fatalf("got %dx%d grid, want 2x2", b.Size(), b.MaxSession())
	}
	if b.SessLens[0] != 2 || b.SessLens[1] != 1 {
		t.Errorf("unexpected session lengths: %v", b.SessLens)
	}
	if b.UttrLens[0][0] != 3 || b.UttrLens[0][1] != 2 {
		t.Errorf("unexpected utterance lengths: %v", b.UttrLens[0])
	}
	if b.UttrLens[1][1] != 0 || len(b.Tokens[1][1]) != 0 {
		t.Error("padding slot is not empty")
	}
	if b.Targets == nil {
		t.Error("missing targets")
	}
}

func TestNewBatchNoLabels(t *testing.T) {
	samples := SampleList{
		{Tokens: [][]int{{1, 2}}},
	}
	b, err := NewBatch(samples)
	if err != nil {
		t.Fatal(err)
	}
	if b.Targets != nil {
		t.Error("unexpected targets")
	}
	if err := b.Check(true); err == nil {
		t.Error("expected an error for missing targets")
	}
}

func TestBatchCheck(t *testing.T) {
	good := &Batch{
		Tokens:   [][][]int{{{1, 2}, {}}},
		UttrLens: [][]int{{2, 0}},
		SessLens: []int{1},
		Targets:  [][]int{{0}},
	}
	if err := good.Check(true); err != nil {
		t.Errorf("unexpected error: %s", err)
	}

	bad := []*Batch{
		// Session length exceeds the grid.
		{
			Tokens:   [][][]int{{{1}}},
			UttrLens: [][]int{{1}},
			SessLens: []int{2},
		},
		// Padded slot with a non-zero length.
		{
			Tokens:   [][][]int{{{1}, {2}}},
			UttrLens: [][]int{{1, 1}},
			SessLens: []int{1},
		},
		// Declared length exceeds the token count.
		{
			Tokens:   [][][]int{{{1}}},
			UttrLens: [][]int{{2}},
			SessLens: []int{1},
		},
		// Too few targets.
		{
			Tokens:   [][][]int{{{1}, {2}}},
			UttrLens: [][]int{{1, 1}},
			SessLens: []int{2},
			Targets:  [][]int{{0}},
		},
	}
	for i, b := range bad {
		if err := b.Check(true); err == nil {
			t.Errorf("case %d: expected an error", i)
		}
	}
}
