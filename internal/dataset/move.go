package dataset

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

var ErrAborted = errors.New("aborted by user")

type Resolution int

const (
	Overwrite Resolution = iota
	Skip
	Quit
)

// ConflictResolver decides what happens when a file being moved already
// exists at the destination.
type ConflictResolver interface {
	Resolve(name string) (Resolution, error)
}

type ResolverFunc func(name string) (Resolution, error)

func (f ResolverFunc) Resolve(name string) (Resolution, error) { return f(name) }

type MoveReport struct {
	Moved   int
	Skipped []string
}

// MoveBack moves every file in from into to. Name clashes are settled by r;
// Quit stops with ErrAborted, leaving the files moved so far in place.
func MoveBack(from, to string, r ConflictResolver, log *zap.Logger) (MoveReport, error) {
	var report MoveReport

	names, err := listFiles(from, nil)
	if err != nil {
		return report, err
	}
	log.Info("moving files back", zap.Int("files", len(names)), zap.String("from", from), zap.String("to", to))

	for _, name := range names {
		src := filepath.Join(from, name)
		dst := filepath.Join(to, name)

		if exists(dst) {
			res, err := r.Resolve(name)
			if err != nil {
				return report, err
			}

			switch res {
			case Skip:
				report.Skipped = append(report.Skipped, name)
				continue
			case Quit:
				return report, ErrAborted
			}
		}

		if err := moveFile(src, dst); err != nil {
			return report, fmt.Errorf("move %s: %w", src, err)
		}
		report.Moved++

		if report.Moved%progressEvery == 0 {
			log.Info("move progress", zap.Int("moved", report.Moved))
		}
	}

	return report, nil
}

// Prompter asks on Out and reads the answer from In, repeating the question
// until it gets o(verwrite), s(kip) or q(uit). y and n are accepted for
// overwrite and skip. End of input counts as quit.
type Prompter struct {
	in  *bufio.Reader
	out io.Writer
}

func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{in: bufio.NewReader(in), out: out}
}

func (p *Prompter) Resolve(name string) (Resolution, error) {
	fmt.Fprintf(p.out, "\nFile '%s' already exists in the target directory.\n", name)
	fmt.Fprintln(p.out, "Options: (o)verwrite, (s)kip, (q)uit")

	for {
		fmt.Fprint(p.out, "Your choice [o/s/q]: ")

		line, err := p.in.ReadString('\n')
		if err != nil && line == "" {
			if errors.Is(err, io.EOF) {
				return Quit, nil
			}
			return Quit, err
		}

		switch strings.ToLower(strings.TrimSpace(line)) {
		case "o", "y":
			return Overwrite, nil
		case "s", "n":
			return Skip, nil
		case "q":
			return Quit, nil
		}
		fmt.Fprintln(p.out, "Invalid choice. Please enter 'o', 's', or 'q'.")
	}
}
