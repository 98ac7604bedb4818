// Code generated by Wire. DO NOT EDIT.

//go:generate go run -mod=mod github.com/google/wire/cmd/wire
//go:build !wireinject
// +build !wireinject

package di

import (
	"FinForge/pkg/config"
	"FinForge/pkg/server"
)

// Injectors from wire.go:

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	logger, err := ProvideLogger(cfg)
	if err != nil {
		return nil, err
	}
	client, err := ProvideClickHouseClient(cfg)
	if err != nil {
		return nil, err
	}
	candleSource := ProvideCandleSource(client, cfg, logger)
	aligner, err := ProvideAligner(cfg, logger)
	if err != nil {
		return nil, err
	}
	validator, err := ProvideValidator(cfg, logger)
	if err != nil {
		return nil, err
	}
	v := ProvideTransformers(cfg, logger)
	registry, err := ProvideRegistry(cfg, logger)
	if err != nil {
		return nil, err
	}
	datasetStore := ProvideDatasetStore(client, cfg, registry, logger)
	metrics := ProvideMetrics()
	orchestrator, err := ProvideOrchestrator(aligner, validator, v, datasetStore, metrics, logger)
	if err != nil {
		return nil, err
	}
	producer, err := ProvideKafkaProducer(cfg)
	if err != nil {
		return nil, err
	}
	reportPublisher := ProvideReportPublisher(producer, cfg, logger)
	redisCache, err := ProvideRedisCache(cfg)
	if err != nil {
		return nil, err
	}
	runCache := ProvideRunCache(redisCache, cfg)
	refiner := ProvideRefiner(candleSource, orchestrator, registry, reportPublisher, runCache, metrics, logger, cfg)
	handler := ProvideHTTPHandler(logger, refiner)
	app := ProvideApp(cfg, logger, handler, client, producer, redisCache)
	return app, nil
}
