package main

import (
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/rs/zerolog/log"

	"github.com/tessera-labs/kgeval/internal/config"
	"github.com/tessera-labs/kgeval/internal/dataset"
	"github.com/tessera-labs/kgeval/internal/evaluation"
	"github.com/tessera-labs/kgeval/internal/metrics"
	"github.com/tessera-labs/kgeval/internal/model"
	"github.com/tessera-labs/kgeval/internal/triples"
	"github.com/tessera-labs/kgeval/pkg/utils/logger"
)

func main() {
	logger.Init()

	cfg, err := config.LoadEvalEnv()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if cfg.TrainPath == "" || cfg.TestPath == "" {
		log.Fatal().Msg("KGEVAL_TRAIN_PATH and KGEVAL_TEST_PATH must be set")
	}
	logger.Sugar().Infow("Starting evaluation",
		"train", cfg.TrainPath, "test", cfg.TestPath, "startBatchSize", cfg.StartBatchSize)

	mapping := dataset.NewMapping()
	train, err := loadSplit(cfg.TrainPath, mapping)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load training triples")
	}
	test, err := loadSplit(cfg.TestPath, mapping)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load test triples")
	}

	scorer := model.NewEmbeddingScorer(
		mapping.NumEntities(),
		mapping.NumRelations(),
		cfg.EmbeddingDim,
		cfg.Seed,
		train,
	)

	accOpts := []metrics.RankBasedOption{metrics.WithHitsAt(cfg.HitsAt...)}
	if cfg.Filtered {
		accOpts = append(accOpts, metrics.WithFiltered())
	}
	acc := metrics.NewRankBased(accOpts...)

	batchSize, sliceSize, err := evaluation.SizeSearch(scorer, test, []evaluation.Accumulator{acc}, cfg.StartBatchSize)
	if err != nil {
		log.Fatal().Err(err).Msg("Size search failed")
	}
	log.Info().Msgf("Evaluating with batch_size=%d slice_size=%d", batchSize, sliceSize)

	result, err := evaluation.EvaluateOne(scorer, test, acc,
		evaluation.WithBatchSize(batchSize),
		evaluation.WithSliceSize(sliceSize),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("Evaluation failed")
	}

	out, err := sonic.MarshalIndent(result, "", "  ")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to marshal results")
	}
	fmt.Println(string(out))
}

func loadSplit(path string, m *dataset.Mapping) (triples.TripleSet, error) {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return dataset.FetchURL(path, m)
	}
	return dataset.LoadFile(path, m)
}
