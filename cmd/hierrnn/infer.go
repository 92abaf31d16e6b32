package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/efikarra/hierarchical-rnn/model"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/essentials"
)

func evaluate(c anyvec.Creator, a *args) {
	if a.Input == "" || a.Targets == "" {
		essentials.Die("evaluation requires -input and -targets")
	}
	m, vocab := loadTrained(a, model.ModeEval)
	samples, err := loadSamples(m.Config, vocab, a.Input, a.Targets)
	if err != nil {
		essentials.Die(err)
	}

	var totalLoss, totalWeight float64
	var preds [][]int
	batchSize := a.EvalBatch
	if batchSize == 0 {
		batchSize = samples.Len()
	}
	for i := 0; i < samples.Len(); i += batchSize {
		j := i + batchSize
		if j > samples.Len() {
			j = samples.Len()
		}
		b, err := model.NewBatch(samples[i:j])
		if err != nil {
			essentials.Die(err)
		}
		weight := batchWeight(m, b)
		if weight > 0 {
			cost := m.Cost(b)
			totalLoss += floatVal(anyvec.Sum(cost.Output())) * weight
			totalWeight += weight
		}
		preds = append(preds, m.Decode(b)...)
	}

	acc, err := model.Accuracy(m, samples, a.EvalBatch)
	if err != nil {
		essentials.Die(err)
	}
	if totalWeight > 0 {
		log.Printf("loss: %.6f", totalLoss/totalWeight)
	}
	log.Printf("accuracy: %.4f", acc)

	if a.Output != "" {
		if err := writePredictions(a.Output, preds); err != nil {
			essentials.Die(err)
		}
	}
}

func predict(c anyvec.Creator, a *args) {
	if a.Input == "" || a.Output == "" {
		essentials.Die("prediction requires -input and -output")
	}
	m, vocab := loadTrained(a, model.ModeInfer)
	samples, err := loadSamples(m.Config, vocab, a.Input, "")
	if err != nil {
		essentials.Die(err)
	}

	var preds [][]int
	batchSize := a.EvalBatch
	if batchSize == 0 {
		batchSize = samples.Len()
	}
	for i := 0; i < samples.Len(); i += batchSize {
		j := i + batchSize
		if j > samples.Len() {
			j = samples.Len()
		}
		b, err := model.NewBatch(samples[i:j])
		if err != nil {
			essentials.Die(err)
		}
		preds = append(preds, m.Decode(b)...)
	}
	if err := writePredictions(a.Output, preds); err != nil {
		essentials.Die(err)
	}
	log.Printf("Wrote %d sessions to %s", len(preds), a.Output)
}

func loadTrained(a *args, mode model.Mode) (*model.Model, *model.Vocabulary) {
	m, err := model.LoadModel(filepath.Join(a.OutDir, "model"), mode)
	if err != nil {
		essentials.Die(err)
	}
	var vocab *model.Vocabulary
	if m.Config.Arch != model.ArchFFN {
		if a.VocabPath == "" {
			essentials.Die("architecture", m.Config.Arch, "requires -vocab")
		}
		vocab, err = model.LoadVocabulary(a.VocabPath)
		if err != nil {
			essentials.Die(err)
		}
	}
	return m, vocab
}

// batchWeight returns the denominator the batch's mean
// loss was taken over, so batch losses can be combined
// into one mean.
func batchWeight(m *model.Model, b *model.Batch) float64 {
	if m.Config.Chain {
		return float64(b.Size())
	}
	var positions float64
	for _, l := range b.SessLens {
		positions += float64(l)
	}
	return positions
}

func floatVal(n anyvec.Numeric) float64 {
	switch n := n.(type) {
	case float32:
		return float64(n)
	case float64:
		return n
	default:
		panic(fmt.Sprintf("unsupported numeric type: %T", n))
	}
}

func writePredictions(path string, preds [][]int) error {
	var lines []string
	for _, labels := range preds {
		parts := make([]string, len(labels))
		for i, l := range labels {
			parts[i] = strconv.Itoa(l)
		}
		lines = append(lines, strings.Join(parts, " "))
	}
	data := strings.Join(lines, "\n")
	if len(lines) > 0 {
		data += "\n"
	}
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		return essentials.AddCtx(fmt.Sprintf("write predictions to %s", path), err)
	}
	return nil
}
