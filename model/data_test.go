package model

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func writeTempFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.txt")
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestVocabulary(t *testing.T) {
	path := writeTempFile(t, "hello\nworld\n")
	vocab, err := LoadVocabulary(path)
	if err != nil {
		t.Fatal(err)
	}
	if vocab.Size() != 4 {
		t.Fatalf("vocabulary size is %d, want 4", vocab.Size())
	}
	if vocab.Tokens[0] != PadToken || vocab.Tokens[1] != UnkToken {
		t.Errorf("special tokens were not prepended: %v", vocab.Tokens)
	}
	if vocab.ID("hello") != 2 || vocab.ID("world") != 3 {
		t.Error("unexpected token IDs")
	}
	if vocab.ID("missing") != 1 {
		t.Errorf("unknown token maps to %d, want 1", vocab.ID("missing"))
	}
}

func TestReadTokenSessions(t *testing.T) {
	vocab := NewVocabulary([]string{"a", "b", "c"})
	path := writeTempFile(t, "a b\tc\na a missing\n")
	sessions, err := ReadTokenSessions(path, vocab)
	if err != nil {
		t.Fatal(err)
	}
	expected := [][][]int{
		{{2, 3}, {4}},
		{{2, 2, 1}},
	}
	if !reflect.DeepEqual(sessions, expected) {
		t.Errorf("expected %v but got %v", expected, sessions)
	}
}

func TestReadFeatureSessions(t *testing.T) {
	path := writeTempFile(t, "1 2\t3 -4.5\n0.5 0.25\n")
	sessions, err := ReadFeatureSessions(path, 2)
	if err != nil {
		t.Fatal(err)
	}
	expected := [][][]float64{
		{{1, 2}, {3, -4.5}},
		{{0.5, 0.25}},
	}
	if !reflect.DeepEqual(sessions, expected) {
		t.Errorf("expected %v but got %v", expected, sessions)
	}

	if _, err := ReadFeatureSessions(path, 3); err == nil {
		t.Error("expected an error for a feature width mismatch")
	}
}

func TestReadTargets(t *testing.T) {
	path := writeTempFile(t, "0 1\n2\n")
	targets, err := ReadTargets(path)
	if err != nil {
		t.Fatal(err)
	}
	expected := [][]int{{0, 1}, {2}}
	if !reflect.DeepEqual(targets, expected) {
		t.Errorf("expected %v but got %v", expected, targets)
	}
}

func TestReadEmbeddings(t *testing.T) {
	path := writeTempFile(t, "1 0 0.5\n-1 2 0\n")
	rows, err := ReadEmbeddings(path)
	if err != nil {
		t.Fatal(err)
	}
	expected := [][]float64{{1, 0, 0.5}, {-1, 2, 0}}
	if !reflect.DeepEqual(rows, expected) {
		t.Errorf("expected %v but got %v", expected, rows)
	}

	badPath := writeTempFile(t, "1 2\n3\n")
	if _, err := ReadEmbeddings(badPath); err == nil {
		t.Error("expected an error for ragged rows")
	}
}

func TestTokenSamples(t *testing.T) {
	sessions := [][][]int{{{1, 2}, {3}}}
	samples, err := TokenSamples(sessions, [][]int{{0, 1}})
	if err != nil {
		t.Fatal(err)
	}
	if samples.Len() != 1 || samples[0].Len() != 2 {
		t.Error("unexpected sample shape")
	}

	if _, err := TokenSamples(sessions, [][]int{{0}}); err == nil {
		t.Error("expected an error for a target count mismatch")
	}

	inference, err := TokenSamples(sessions, nil)
	if err != nil {
		t.Fatal(err)
	}
	if inference[0].Labels != nil {
		t.Error("unexpected labels on inference samples")
	}
}
