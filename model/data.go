package model

import (
	"bufio"
	"crypto/md5"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/efikarra/hierarchical-rnn/sgd"
	"github.com/unixpickle/essentials"
)

// A Sample is one session.
//
// Token-based samples fill Tokens; feature-based samples
// fill Features.
// Labels holds one class per utterance and may be nil for
// inference inputs.
type Sample struct {
	Tokens   [][]int
	Features [][]float64
	Labels   []int
}

// Len returns the number of utterances in the session.
func (s Sample) Len() int {
	if s.Tokens != nil {
		return len(s.Tokens)
	}
	return len(s.Features)
}

// A SampleList is a slice of sessions.
type SampleList []Sample

// Len returns the number of samples.
func (s SampleList) Len() int {
	return len(s)
}

// Swap swaps two samples.
func (s SampleList) Swap(i, j int) {
	s[i], s[j] = s[j], s[i]
}

// Slice copies a sub-range of the list.
func (s SampleList) Slice(i, j int) sgd.SampleList {
	return append(SampleList{}, s[i:j]...)
}

// Hash returns a deterministic fingerprint of a sample,
// for hash-based validation splits.
func (s SampleList) Hash(i int) []byte {
	h := md5.New()
	fmt.Fprintf(h, "%v|%v|%v", s[i].Tokens, s[i].Features, s[i].Labels)
	return h.Sum(nil)
}

// ReadTokenSessions reads a session input file for the
// token-based encoders.
//
// Each line is one session, utterances are separated by
// tabs, and tokens inside an utterance by spaces.
// Tokens are mapped through the vocabulary with the
// UnkToken fallback.
func ReadTokenSessions(path string, vocab *Vocabulary) ([][][]int, error) {
	lines, err := readLines(path)
	if err != nil {
		return nil, essentials.AddCtx("read sessions", err)
	}
	res := make([][][]int, len(lines))
	for i, line := range lines {
		for _, uttr := range splitUtterances(line) {
			var ids []int
			for _, tok := range strings.Fields(uttr) {
				ids = append(ids, vocab.ID(tok))
			}
			res[i] = append(res[i], ids)
		}
	}
	return res, nil
}

// ReadFeatureSessions reads a session input file for the
// feed-forward encoder.
//
// Each line is one session, utterances are separated by
// tabs, and the feature floats of an utterance by spaces.
// Every utterance must carry featureSize values.
func ReadFeatureSessions(path string, featureSize int) ([][][]float64, error) {
	lines, err := readLines(path)
	if err != nil {
		return nil, essentials.AddCtx("read sessions", err)
	}
	res := make([][][]float64, len(lines))
	for i, line := range lines {
		for j, uttr := range splitUtterances(line) {
			var features []float64
			for _, field := range strings.Fields(uttr) {
				x, err := strconv.ParseFloat(field, 64)
				if err != nil {
					return nil, essentials.AddCtx("read sessions", err)
				}
				features = append(features, x)
			}
			if len(features) != featureSize {
				return nil, fmt.Errorf("read sessions: line %d utterance %d: "+
					"%d features, want %d", i+1, j+1, len(features), featureSize)
			}
			res[i] = append(res[i], features)
		}
	}
	return res, nil
}

// ReadTargets reads a target file: one session per line,
// integer class labels separated by spaces.
func ReadTargets(path string) ([][]int, error) {
	lines, err := readLines(path)
	if err != nil {
		return nil, essentials.AddCtx("read targets", err)
	}
	res := make([][]int, len(lines))
	for i, line := range lines {
		for _, field := range strings.Fields(line) {
			label, err := strconv.Atoi(field)
			if err != nil {
				return nil, essentials.AddCtx("read targets", err)
			}
			res[i] = append(res[i], label)
		}
	}
	return res, nil
}

// ReadEmbeddings reads a pretrained embedding matrix:
// one row of whitespace-separated floats per line.
func ReadEmbeddings(path string) ([][]float64, error) {
	lines, err := readLines(path)
	if err != nil {
		return nil, essentials.AddCtx("read embeddings", err)
	}
	var res [][]float64
	for i, line := range lines {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		row := make([]float64, len(fields))
		for j, field := range fields {
			row[j], err = strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, essentials.AddCtx("read embeddings", err)
			}
		}
		if len(res) > 0 && len(row) != len(res[0]) {
			return nil, fmt.Errorf("read embeddings: line %d: %d columns, want %d",
				i+1, len(row), len(res[0]))
		}
		res = append(res, row)
	}
	return res, nil
}

// TokenSamples pairs token sessions with their targets.
// Targets may be nil for inference inputs.
func TokenSamples(sessions [][][]int, targets [][]int) (SampleList, error) {
	if targets != nil && len(targets) != len(sessions) {
		return nil, fmt.Errorf("make samples: %d sessions but %d target rows",
			len(sessions), len(targets))
	}
	res := make(SampleList, len(sessions))
	for i, sess := range sessions {
		res[i] = Sample{Tokens: sess}
		if targets != nil {
			if len(targets[i]) != len(sess) {
				return nil, fmt.Errorf("make samples: session %d: %d targets for "+
					"%d utterances", i+1, len(targets[i]), len(sess))
			}
			res[i].Labels = targets[i]
		}
	}
	return res, nil
}

// FeatureSamples pairs feature sessions with their
// targets.
// Targets may be nil for inference inputs.
func FeatureSamples(sessions [][][]float64, targets [][]int) (SampleList, error) {
	if targets != nil && len(targets) != len(sessions) {
		return nil, fmt.Errorf("make samples: %d sessions but %d target rows",
			len(sessions), len(targets))
	}
	res := make(SampleList, len(sessions))
	for i, sess := range sessions {
		res[i] = Sample{Features: sess}
		if targets != nil {
			if len(targets[i]) != len(sess) {
				return nil, fmt.Errorf("make samples: session %d: %d targets for "+
					"%d utterances", i+1, len(targets[i]), len(sess))
			}
			res[i].Labels = targets[i]
		}
	}
	return res, nil
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines, scanner.Err()
}

func splitUtterances(line string) []string {
	if strings.TrimSpace(line) == "" {
		return nil
	}
	return strings.Split(line, "\t")
}
