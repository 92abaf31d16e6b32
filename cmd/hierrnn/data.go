package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/efikarra/hierarchical-rnn/model"
	"github.com/unixpickle/essentials"
)

// buildConfig turns the flag surface into a model
// configuration.
// The vocabulary size is filled in by the caller.
func buildConfig(a *args) (*model.Config, error) {
	uttrUnits, err := parseInts(a.UttrUnits)
	if err != nil {
		return nil, essentials.AddCtx("parse -uttr-units", err)
	}
	sessUnits, err := parseInts(a.SessUnits)
	if err != nil {
		return nil, essentials.AddCtx("parse -sess-units", err)
	}
	uttrDropout, err := parseFloats(a.UttrDropout)
	if err != nil {
		return nil, essentials.AddCtx("parse -uttr-dropout", err)
	}
	sessDropout, err := parseFloats(a.SessDropout)
	if err != nil {
		return nil, essentials.AddCtx("parse -sess-dropout", err)
	}
	filterWidths, err := parseInts(a.FilterWidths)
	if err != nil {
		return nil, essentials.AddCtx("parse -filter-widths", err)
	}
	ffnDropout, err := parseFloats(a.FFNDropout)
	if err != nil {
		return nil, essentials.AddCtx("parse -ffn-dropout", err)
	}

	return &model.Config{
		Arch:       a.Arch,
		Chain:      a.CRF,
		NumClasses: a.Classes,

		EmbeddingSize:  a.EmbeddingSize,
		TrainEmbedding: a.TrainEmbedding,

		UttrUnits:      uttrUnits,
		UttrCell:       a.UttrCell,
		UttrDirection:  a.UttrDirection,
		UttrPooling:    a.UttrPooling,
		AttentionSize:  a.AttentionSize,
		UttrActivation: a.UttrActivation,
		UttrDropout:    uttrDropout,

		FilterWidths:  filterWidths,
		NumFilters:    a.NumFilters,
		Stride:        a.Stride,
		Padding:       a.Padding,
		CNNPool:       a.MaxPool,
		CNNActivation: a.CNNActivation,
		UttrMaxLen:    a.UttrMaxLen,

		FeatureSize:    a.FeatureSize,
		FFNActivations: parseStrings(a.FFNActivations),
		FFNDropout:     ffnDropout,

		SessUnits:      sessUnits,
		SessCell:       a.SessCell,
		SessDirection:  a.SessDirection,
		SessActivation: a.SessActivation,
		SessDropout:    sessDropout,
		ConnectInputs:  a.ConnectInputs,
	}, nil
}

// loadSamples reads a session file (and optionally a
// target file) for the configured architecture.
func loadSamples(conf *model.Config, vocab *model.Vocabulary, inputPath,
	targetPath string) (model.SampleList, error) {
	var targets [][]int
	if targetPath != "" {
		var err error
		targets, err = model.ReadTargets(targetPath)
		if err != nil {
			return nil, err
		}
	}
	if conf.Arch == model.ArchFFN {
		sessions, err := model.ReadFeatureSessions(inputPath, conf.FeatureSize)
		if err != nil {
			return nil, err
		}
		return model.FeatureSamples(sessions, targets)
	}
	sessions, err := model.ReadTokenSessions(inputPath, vocab)
	if err != nil {
		return nil, err
	}
	return model.TokenSamples(sessions, targets)
}

func parseInts(s string) ([]int, error) {
	var res []int
	for _, part := range splitList(s) {
		x, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid integer: %s", part)
		}
		res = append(res, x)
	}
	return res, nil
}

func parseFloats(s string) ([]float64, error) {
	var res []float64
	for _, part := range splitList(s) {
		x, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number: %s", part)
		}
		res = append(res, x)
	}
	return res, nil
}

func parseStrings(s string) []string {
	return splitList(s)
}

func splitList(s string) []string {
	var res []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			res = append(res, part)
		}
	}
	return res
}
