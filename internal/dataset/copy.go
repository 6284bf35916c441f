package dataset

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

const progressEvery = 100

type CopyReport struct {
	Copied int
	// PerSource counts the files taken from each source directory, in the
	// order the sources were given.
	PerSource []int
	Missing   []string
}

// CopyListed copies every image named in list into dest. Only the base name
// of each entry is used; it is looked up in sources in order and the first
// hit wins.
func CopyListed(list []string, sources []string, dest string, log *zap.Logger) (CopyReport, error) {
	report := CopyReport{PerSource: make([]int, len(sources))}

	if err := os.MkdirAll(dest, 0755); err != nil {
		return report, fmt.Errorf("create %s: %w", dest, err)
	}

	for _, entry := range list {
		name := baseName(entry)

		found := false
		for i, src := range sources {
			from := filepath.Join(src, name)
			if !exists(from) {
				continue
			}

			if err := copyFile(from, filepath.Join(dest, name)); err != nil {
				return report, fmt.Errorf("copy %s: %w", from, err)
			}
			report.Copied++
			report.PerSource[i]++
			found = true

			if report.Copied%progressEvery == 0 {
				log.Info("copy progress", zap.Int("copied", report.Copied))
			}
			break
		}

		if !found {
			report.Missing = append(report.Missing, name)
		}
	}

	return report, nil
}

// baseName handles list entries written with either separator.
func baseName(entry string) string {
	return path.Base(strings.ReplaceAll(entry, `\`, "/"))
}
