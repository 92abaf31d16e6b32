package model

import "testing"

func TestConfigValidate(t *testing.T) {
	if err := testModelConfig(false).Validate(); err != nil {
		t.Errorf("valid config rejected: %s", err)
	}
	if err := testCNNConfig().Validate(); err != nil {
		t.Errorf("valid config rejected: %s", err)
	}
	if err := testFFNConfig().Validate(); err != nil {
		t.Errorf("valid config rejected: %s", err)
	}

	cases := map[string]func(*Config){
		"unknown architecture": func(c *Config) {
			c.Arch = "h-rnn-tree"
		},
		"too few classes": func(c *Config) {
			c.NumClasses = 1
		},
		"missing vocabulary": func(c *Config) {
			c.VocabSize = 0
		},
		"unknown cell": func(c *Config) {
			c.UttrCell = "mgu"
		},
		"unknown direction": func(c *Config) {
			c.SessDirection = "both"
		},
		"unknown pooling": func(c *Config) {
			c.UttrPooling = "max"
		},
		"missing attention size": func(c *Config) {
			c.UttrPooling = PoolContextAttn
		},
		"no session layers": func(c *Config) {
			c.SessUnits = nil
		},
		"dropout length mismatch": func(c *Config) {
			c.UttrDropout = []float64{0.5, 0.5}
		},
	}
	for name, mutate := range cases {
		conf := testModelConfig(false)
		mutate(conf)
		if err := conf.Validate(); err == nil {
			t.Errorf("%s: expected an error", name)
		}
	}

	chainCases := map[string]func(*Config){
		"chain without session rnn": func(c *Config) {
			c.Arch = ArchFFN
			c.FeatureSize = 3
			c.FFNActivations = []string{"tanh"}
		},
	}
	for name, mutate := range chainCases {
		conf := testModelConfig(true)
		mutate(conf)
		if err := conf.Validate(); err == nil {
			t.Errorf("%s: expected an error", name)
		}
	}
}
