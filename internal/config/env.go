// Package config defines environment configuration structs and loaders.
package config

import (
	"github.com/caarlos0/env/v11"
)

// EvalEnvConfig holds the environment values for an evaluation run.
type EvalEnvConfig struct {
	// TrainPath and TestPath accept local files (optionally gzipped) or
	// http(s) URLs.
	TrainPath string `env:"KGEVAL_TRAIN_PATH"`
	TestPath  string `env:"KGEVAL_TEST_PATH"`

	StartBatchSize int    `env:"KGEVAL_START_BATCH_SIZE" envDefault:"256"`
	EmbeddingDim   int    `env:"KGEVAL_EMBEDDING_DIM" envDefault:"64"`
	Seed           uint64 `env:"KGEVAL_SEED" envDefault:"42"`
	HitsAt         []int  `env:"KGEVAL_HITS_AT" envDefault:"1,3,10"`
	Filtered       bool   `env:"KGEVAL_FILTERED" envDefault:"true"`
}

// LoadEvalEnv parses the evaluation configuration from the environment.
func LoadEvalEnv() (*EvalEnvConfig, error) {
	cfg := &EvalEnvConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
