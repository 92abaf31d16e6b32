// Package model assembles hierarchical utterance
// classifiers: an utterance-level encoder feeds a
// session-level encoder, and an output strategy turns the
// session encodings into per-utterance class decisions.
package model

import (
	"encoding/json"
	"fmt"
	"os"

	hierrnn "github.com/efikarra/hierarchical-rnn"
	"github.com/efikarra/hierarchical-rnn/conv"
	"github.com/unixpickle/essentials"
)

// Architecture names.
const (
	ArchRNN = "h-rnn-rnn"
	ArchCNN = "h-rnn-cnn"
	ArchFFN = "h-rnn-ffn"
)

// Cell type names.
const (
	CellVanilla = "rnn"
	CellLSTM    = "lstm"
	CellGRU     = "gru"
)

// Direction names.
const (
	DirectionUni = "uni"
	DirectionBi  = "bi"
)

// Pooling names.
const (
	PoolLast        = "last"
	PoolMean        = "mean"
	PoolAttention   = "attn"
	PoolContextAttn = "attn_ctx"
)

// A Config describes a hierarchical classifier.
//
// Closed-set fields (architecture, cells, directions,
// pooling, padding, activations) hold the configuration
// names; Validate checks them against the known sets.
type Config struct {
	Arch       string `json:"architecture"`
	Chain      bool   `json:"crf"`
	NumClasses int    `json:"n_classes"`

	// Embedding table for the token-level encoders.
	VocabSize      int  `json:"vocab_size"`
	EmbeddingSize  int  `json:"embedding_size"`
	TrainEmbedding bool `json:"train_embedding"`

	// Utterance-level recurrent encoder.
	UttrUnits      []int     `json:"uttr_units"`
	UttrCell       string    `json:"uttr_unit_type"`
	UttrDirection  string    `json:"uttr_rnn_type"`
	UttrPooling    string    `json:"uttr_pooling"`
	AttentionSize  int       `json:"uttr_attention_size"`
	UttrActivation string    `json:"uttr_activation"`
	UttrDropout    []float64 `json:"uttr_in_to_hidden_dropout"`

	// Utterance-level convolutional encoder.
	FilterWidths  []int  `json:"filter_sizes"`
	NumFilters    int    `json:"num_filters"`
	Stride        int    `json:"stride"`
	Padding       string `json:"padding"`
	CNNPool       bool   `json:"max_pool"`
	CNNActivation string `json:"cnn_activation"`
	UttrMaxLen    int    `json:"uttr_max_len"`

	// Utterance-level feed-forward encoder.
	FeatureSize    int       `json:"feature_size"`
	FFNActivations []string  `json:"ffn_activations"`
	FFNDropout     []float64 `json:"ffn_dropout"`

	// Session-level recurrent encoder.
	SessUnits      []int     `json:"sess_units"`
	SessCell       string    `json:"sess_unit_type"`
	SessDirection  string    `json:"sess_rnn_type"`
	SessActivation string    `json:"sess_activation"`
	SessDropout    []float64 `json:"sess_in_to_hidden_dropout"`
	ConnectInputs  bool      `json:"connect_inp_to_out"`
}

// Validate checks the configuration for unknown names,
// missing collaborators, and list-length mismatches.
func (c *Config) Validate() error {
	switch c.Arch {
	case ArchRNN, ArchCNN, ArchFFN:
	default:
		return fmt.Errorf("unknown architecture: %s", c.Arch)
	}
	if c.NumClasses < 2 {
		return fmt.Errorf("invalid class count: %d", c.NumClasses)
	}
	if c.Chain && c.Arch != ArchRNN {
		return fmt.Errorf("chain output requires architecture %s", ArchRNN)
	}

	if c.Arch == ArchRNN || c.Arch == ArchCNN {
		if c.VocabSize == 0 {
			return fmt.Errorf("architecture %s requires a vocabulary", c.Arch)
		}
		if c.EmbeddingSize == 0 {
			return fmt.Errorf("architecture %s requires an embedding size", c.Arch)
		}
	}

	switch c.Arch {
	case ArchRNN:
		if err := validateRecurrent(c.UttrCell, c.UttrDirection, c.UttrUnits,
			c.UttrDropout); err != nil {
			return essentials.AddCtx("utterance encoder", err)
		}
		switch c.UttrPooling {
		case PoolLast, PoolMean, PoolAttention:
		case PoolContextAttn:
			if c.AttentionSize <= 0 {
				return fmt.Errorf("utterance encoder: pooling %s requires an attention size",
					PoolContextAttn)
			}
		default:
			return fmt.Errorf("utterance encoder: unknown pooling: %s", c.UttrPooling)
		}
		if c.UttrCell == CellVanilla {
			if _, err := layerByName(c.UttrActivation); err != nil {
				return essentials.AddCtx("utterance encoder", err)
			}
		}
	case ArchCNN:
		if len(c.FilterWidths) == 0 || c.NumFilters <= 0 {
			return fmt.Errorf("cnn encoder: filter widths and count are required")
		}
		if c.Stride <= 0 {
			return fmt.Errorf("cnn encoder: invalid stride: %d", c.Stride)
		}
		if _, err := conv.PaddingByName(c.Padding); err != nil {
			return essentials.AddCtx("cnn encoder", err)
		}
		if _, err := layerByName(c.CNNActivation); err != nil {
			return essentials.AddCtx("cnn encoder", err)
		}
		if !c.CNNPool && c.UttrMaxLen <= 0 {
			return fmt.Errorf("cnn encoder: flattening requires a fixed utterance length")
		}
	case ArchFFN:
		if c.FeatureSize <= 0 {
			return fmt.Errorf("ffn encoder: invalid feature size: %d", c.FeatureSize)
		}
		if len(c.FFNActivations) != len(c.UttrUnits) {
			return fmt.Errorf("ffn encoder: %d activations for %d layers",
				len(c.FFNActivations), len(c.UttrUnits))
		}
		for _, name := range c.FFNActivations {
			if _, err := layerByName(name); err != nil {
				return essentials.AddCtx("ffn encoder", err)
			}
		}
		if len(c.FFNDropout) != 0 && len(c.FFNDropout) != len(c.UttrUnits) {
			return fmt.Errorf("ffn encoder: %d dropout rates for %d layers",
				len(c.FFNDropout), len(c.UttrUnits))
		}
	}

	if err := validateRecurrent(c.SessCell, c.SessDirection, c.SessUnits,
		c.SessDropout); err != nil {
		return essentials.AddCtx("session encoder", err)
	}
	if c.SessCell == CellVanilla {
		if _, err := layerByName(c.SessActivation); err != nil {
			return essentials.AddCtx("session encoder", err)
		}
	}
	return nil
}

func validateRecurrent(cell, direction string, units []int, dropout []float64) error {
	switch cell {
	case CellVanilla, CellLSTM, CellGRU:
	default:
		return fmt.Errorf("unknown cell type: %s", cell)
	}
	switch direction {
	case DirectionUni, DirectionBi:
	default:
		return fmt.Errorf("unknown direction: %s", direction)
	}
	if len(units) == 0 {
		return fmt.Errorf("at least one layer is required")
	}
	if len(dropout) != 0 && len(dropout) != len(units) {
		return fmt.Errorf("%d dropout rates for %d layers", len(dropout), len(units))
	}
	return nil
}

// layerByName resolves an activation name, including
// "selu" which is not part of the Activation enumeration.
func layerByName(name string) (hierrnn.Layer, error) {
	if name == "selu" {
		return &hierrnn.SELU{}, nil
	}
	return hierrnn.ActivationByName(name)
}

// SaveConfig writes the configuration as JSON, the way
// the original hyperparameters file was kept next to
// checkpoints.
func SaveConfig(path string, c *Config) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return essentials.AddCtx("save config", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return essentials.AddCtx("save config", err)
	}
	return nil
}

// LoadConfig reads a JSON configuration.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, essentials.AddCtx("load config", err)
	}
	var c Config
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, essentials.AddCtx("load config", err)
	}
	return &c, nil
}
