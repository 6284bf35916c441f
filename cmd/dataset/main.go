package main

import (
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"strings"
	"time"

	"github.com/akamensky/argparse"
	"go.uber.org/zap"

	"annotator/internal/dataset"
	"annotator/internal/logger"
)

const maxListed = 10

func main() {
	os.Exit(run(os.Args, os.Stdin, os.Stdout, os.Stderr))
}

// tool carries the streams the subcommands talk to.
type tool struct {
	log *zap.Logger
	in  io.Reader
	out io.Writer
}

// run parses args (args[0] is the program name) and returns the exit code:
// 1 for usage errors and missing inputs, 0 otherwise, including a user quit.
func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	parser := argparse.NewParser("dataset", "Maintain a YOLO-style image dataset")
	level := parser.String("", "log-level", &argparse.Options{Help: "Log level", Default: "info"})

	addCmd := parser.NewCommand("add", "Copy the images named in a list file into a directory")
	addList := addCmd.StringPositional(&argparse.Options{Help: "List file, one image path per line"})
	addDest := addCmd.StringPositional(&argparse.Options{Help: "Destination directory"})
	addSources := addCmd.StringList("s", "source", &argparse.Options{Help: "Directory to look for images in; repeat for more, first match wins", Required: true})

	removeCmd := parser.NewCommand("remove", "Move all files of a directory back to where they came from")
	removeFrom := removeCmd.StringPositional(&argparse.Options{Help: "Directory holding the copied files"})
	removeTo := removeCmd.StringPositional(&argparse.Options{Help: "Original directory to move them back to"})

	splitCmd := parser.NewCommand("split", "Shuffle images into N equally sized folders")
	splitSrc := splitCmd.StringPositional(&argparse.Options{Help: "Directory with images"})
	splitDst := splitCmd.StringPositional(&argparse.Options{Help: "Directory to create folder_1..folder_N in"})
	splitN := splitCmd.Int("n", "folders", &argparse.Options{Help: "Number of folders", Default: 6})
	splitSeed := splitCmd.Int("", "seed", &argparse.Options{Help: "Shuffle seed, 0 for random", Default: 0})

	tvCmd := parser.NewCommand("trainval", "Split images and labels into train and val sets")
	tvBase := tvCmd.StringPositional(&argparse.Options{Help: "Dataset root (images/ and labels/ are created here)"})
	tvImages := tvCmd.StringPositional(&argparse.Options{Help: "Source image directory"})
	tvLabels := tvCmd.StringPositional(&argparse.Options{Help: "Source label directory"})
	tvRatio := tvCmd.Float("v", "val", &argparse.Options{Help: "Fraction of images for the val set", Default: 0.2})
	tvSeed := tvCmd.Int("", "seed", &argparse.Options{Help: "Shuffle seed, 0 for random", Default: 0})

	fixCmd := parser.NewCommand("fixpaths", "Rewrite the paths of a list file")
	fixIn := fixCmd.StringPositional(&argparse.Options{Help: "Input list file"})
	fixOut := fixCmd.StringPositional(&argparse.Options{Help: "Output list file"})
	fixMode := fixCmd.Selector("m", "mode", []string{"data", "val"}, &argparse.Options{Help: "data: normalise the data/ prefix, val: point train paths at val", Default: "data"})
	fixDrop := fixCmd.String("d", "drop", &argparse.Options{Help: "Comma separated folder names to remove in data mode", Default: "folder_2,folder_4"})

	if err := parser.Parse(args); err != nil {
		fmt.Fprint(stderr, parser.Usage(err))
		return 1
	}

	log := logger.NewConsole(*level)
	defer log.Sync()

	t := &tool{log: log, in: stdin, out: stdout}

	var err error
	switch {
	case addCmd.Happened():
		err = t.add(*addList, *addDest, *addSources)
	case removeCmd.Happened():
		err = t.remove(*removeFrom, *removeTo)
	case splitCmd.Happened():
		err = t.split(*splitSrc, *splitDst, *splitN, *splitSeed)
	case tvCmd.Happened():
		err = t.trainVal(*tvBase, *tvImages, *tvLabels, *tvRatio, *tvSeed)
	case fixCmd.Happened():
		err = t.fix(*fixIn, *fixOut, *fixMode, *fixDrop)
	}

	if errors.Is(err, dataset.ErrAborted) {
		fmt.Fprintln(stdout, "\nOperation aborted by user.")
		return 0
	}
	if err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return 1
	}
	return 0
}

func requireFile(path, what string) error {
	if path == "" {
		return fmt.Errorf("%s is required", what)
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return fmt.Errorf("%s '%s' does not exist", what, path)
	}
	return nil
}

func requireDir(path, what string) error {
	if path == "" {
		return fmt.Errorf("%s is required", what)
	}
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("%s '%s' does not exist", what, path)
	}
	return nil
}

func newRand(seed int) *rand.Rand {
	if seed == 0 {
		return rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), rand.Uint64()))
	}
	return rand.New(rand.NewPCG(uint64(seed), uint64(seed)))
}

func (t *tool) printSome(names []string) {
	for _, name := range names[:min(len(names), maxListed)] {
		fmt.Fprintf(t.out, "  - %s\n", name)
	}
	if len(names) > maxListed {
		fmt.Fprintf(t.out, "  ... and %d more\n", len(names)-maxListed)
	}
}

func (t *tool) add(list, dest string, sources []string) error {
	if err := requireFile(list, "list file"); err != nil {
		return err
	}
	if dest == "" {
		return errors.New("destination directory is required")
	}

	var present []string
	for _, src := range sources {
		if err := requireDir(src, "source directory"); err != nil {
			t.log.Warn("skipping source directory", zap.String("dir", src))
			continue
		}
		present = append(present, src)
	}
	if len(present) == 0 {
		return errors.New("none of the source directories exist")
	}

	entries, err := dataset.ReadLines(list)
	if err != nil {
		return err
	}
	fmt.Fprintf(t.out, "Found %d image paths in %s\n", len(entries), list)

	report, err := dataset.CopyListed(entries, present, dest, t.log)
	if err != nil {
		return err
	}

	fmt.Fprintf(t.out, "\nComplete! Copied %d images to %s\n", report.Copied, dest)
	for i, src := range present {
		fmt.Fprintf(t.out, "Found %d images in %s\n", report.PerSource[i], src)
	}
	fmt.Fprintf(t.out, "Could not find %d images in any source directory\n", len(report.Missing))
	if len(report.Missing) > 0 {
		fmt.Fprintln(t.out, "\nSome images were not found. First few missing files:")
		t.printSome(report.Missing)
	}
	return nil
}

func (t *tool) remove(from, to string) error {
	if err := requireDir(from, "directory"); err != nil {
		return err
	}
	if err := requireDir(to, "target directory"); err != nil {
		return err
	}

	report, err := dataset.MoveBack(from, to, dataset.NewPrompter(t.in, t.out), t.log)
	if err != nil {
		fmt.Fprintf(t.out, "Moved %d files, skipped %d files\n", report.Moved, len(report.Skipped))
		return err
	}

	fmt.Fprintf(t.out, "\nComplete! Moved %d files back to %s\n", report.Moved, to)
	if len(report.Skipped) > 0 {
		fmt.Fprintf(t.out, "Skipped %d files that already existed in the target\n\nSkipped files:\n", len(report.Skipped))
		t.printSome(report.Skipped)
	}
	return nil
}

func (t *tool) split(src, dst string, n, seed int) error {
	if err := requireDir(src, "source directory"); err != nil {
		return err
	}
	if dst == "" {
		return errors.New("destination directory is required")
	}

	counts, err := dataset.SplitIntoFolders(src, dst, n, newRand(seed))
	if err != nil {
		return err
	}
	for i, c := range counts {
		fmt.Fprintf(t.out, "Folder %d: %d images\n", i+1, c)
	}
	return nil
}

func (t *tool) trainVal(base, images, labels string, ratio float64, seed int) error {
	if err := requireDir(base, "dataset root"); err != nil {
		return err
	}
	if err := requireDir(images, "image directory"); err != nil {
		return err
	}
	if labels == "" {
		return errors.New("label directory is required")
	}

	report, err := dataset.TrainValSplit(base, images, labels, ratio, newRand(seed))
	if err != nil {
		return err
	}
	fmt.Fprintf(t.out, "Dataset split into train (%d) and val (%d), %d labels copied.\n", report.Train, report.Val, report.Labels)
	return nil
}

func (t *tool) fix(in, out, mode, drop string) error {
	if err := requireFile(in, "list file"); err != nil {
		return err
	}
	if out == "" {
		return errors.New("output file is required")
	}

	fn := dataset.TrainToVal
	if mode == "data" {
		var folders []string
		for _, f := range strings.Split(drop, ",") {
			if f = strings.TrimSpace(f); f != "" {
				folders = append(folders, f)
			}
		}
		fn = func(line string) string { return dataset.FixDataPrefix(line, folders...) }
	}

	before, after, err := dataset.RewriteList(in, out, fn)
	if err != nil {
		return err
	}

	fmt.Fprintf(t.out, "Read %d lines from %s\n", len(before), in)
	fmt.Fprintf(t.out, "Successfully wrote %d lines to %s\n", len(after), out)
	fmt.Fprintln(t.out, "\nSample of changes (first 3 lines):")
	for i := range min(3, len(before)) {
		fmt.Fprintf(t.out, "Original: %s\nFixed:    %s\n\n", before[i], after[i])
	}
	return nil
}
