package main

import (
	"log"

	"go.uber.org/zap"

	"annotator/internal/config"
	"annotator/internal/logger"
	"annotator/internal/ui"
	"annotator/processing/detector"
	"annotator/processing/pipeline"
)

func main() {
	if err := config.LoadEnv(); err != nil {
		log.Printf("failed to load .env: %v", err)
	}

	cfg, cfgErr := config.Load(config.DefaultConfigPath)

	logg, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logg.Sync()

	if cfgErr != nil {
		logg.Warn("using default config", zap.Error(cfgErr))
	}

	det, err := detector.Open(cfg.Detector, logg)
	if err != nil {
		logg.Fatal("failed to open detector", zap.Error(err))
	}
	defer det.Close()

	loop := pipeline.New(cfg, sourceOpener(cfg, logg), det, logg)
	defer loop.Stop()

	app := ui.CreateApp(loop, cfg, logg)

	app.Run()
}
