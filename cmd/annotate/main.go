package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/akamensky/argparse"
	"github.com/disintegration/imaging"
	"go.uber.org/zap"

	"annotator/internal/config"
	"annotator/internal/logger"
	"annotator/internal/models"
	"annotator/processing/capture"
	"annotator/processing/detector"
	"annotator/processing/render"
)

func main() {
	parser := argparse.NewParser("annotate", "Run object detection on an image or a video file and save the annotated result")
	server := parser.String("s", "server", &argparse.Options{Help: "Detection server address (overrides config)"})
	classesPath := parser.String("c", "classes", &argparse.Options{Help: "Class names file, .txt or data.yaml (overrides config)"})
	confidence := parser.Float("", "conf", &argparse.Options{Help: "Minimum confidence, negative keeps the configured value", Default: -1.0})
	configPath := parser.String("", "config", &argparse.Options{Help: "Config file path", Default: config.DefaultConfigPath})

	imageCmd := parser.NewCommand("image", "Annotate a single image")
	imageIn := imageCmd.String("i", "input", &argparse.Options{Help: "Input image", Required: true})
	imageOut := imageCmd.String("o", "output", &argparse.Options{Help: "Output image", Default: "output.jpg"})

	videoCmd := parser.NewCommand("video", "Annotate a video frame by frame")
	videoIn := videoCmd.String("i", "input", &argparse.Options{Help: "Input video", Required: true})
	videoOut := videoCmd.String("o", "output", &argparse.Options{Help: "Output video", Default: "output.mp4"})

	if err := parser.Parse(os.Args); err != nil {
		fmt.Fprint(os.Stderr, parser.Usage(err))
		os.Exit(1)
	}

	if err := config.LoadEnv(); err != nil {
		fmt.Fprintln(os.Stderr, "Warning:", err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Warning:", err)
	}
	if *server != "" {
		cfg.Detector.URL = *server
	}
	if *classesPath != "" {
		cfg.Detector.ClassesPath = *classesPath
	}
	if *confidence >= 0 {
		cfg.Detector.Confidence = float32(*confidence)
	}

	log := logger.NewConsole(cfg.Log.Level)
	defer log.Sync()

	det, err := detector.Open(cfg.Detector, log)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
	defer det.Close()

	ctx := context.Background()

	switch {
	case imageCmd.Happened():
		err = annotateImage(ctx, det, *imageIn, *imageOut)
	case videoCmd.Happened():
		err = annotateVideo(ctx, det, log, *videoIn, *videoOut)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		det.Close()
		os.Exit(1)
	}
}

func describe(set models.DetectionSet) {
	for _, d := range set {
		fmt.Printf("Detected %s with confidence %.2f at location %d, %d, %d, %d\n",
			d.Class, d.Confidence, d.Box.X1, d.Box.Y1, d.Box.X2, d.Box.Y2)
	}
}

func annotateImage(ctx context.Context, det detector.Detector, in, out string) error {
	img, set, err := detector.DetectFile(ctx, det, in)
	if err != nil {
		return err
	}

	describe(set)

	if err := imaging.Save(render.Annotate(img, set), out); err != nil {
		return fmt.Errorf("save %s: %w", out, err)
	}
	fmt.Printf("Annotated image saved to %s\n", out)
	return nil
}

func annotateVideo(ctx context.Context, det detector.Detector, log *zap.Logger, in, out string) error {
	src, err := capture.NewLocalStreamer(in, 0, 0, 0, false, log)
	if err != nil {
		return err
	}

	w, h := src.FrameSize()
	writer, err := capture.NewVideoWriter(out, w, h, src.Info().FPS)
	if err != nil {
		return err
	}

	if err := src.Start(); err != nil {
		writer.Close()
		return err
	}
	defer src.Stop()

	for frame := range src.FrameChan() {
		set, err := det.Detect(ctx, frame)
		if err != nil && !errors.Is(err, detector.ErrInvalidInput) {
			writer.Close()
			return fmt.Errorf("frame %d: %w", writer.Frames(), err)
		}
		if err != nil {
			log.Warn("frame skipped", zap.Int("frame", writer.Frames()), zap.Error(err))
		}

		if err := writer.Write(render.Annotate(frame, set)); err != nil {
			writer.Close()
			return err
		}
	}

	if err, ok := <-src.ErrorChan(); ok && err != nil {
		writer.Close()
		return err
	}

	if err := writer.Close(); err != nil {
		return err
	}

	fmt.Printf("Processed %d frames\n", writer.Frames())
	fmt.Printf("Annotated video saved to %s\n", out)
	return nil
}
