// Package dataset holds the file chores around a YOLO-style training set:
// list files, copying listed images, splitting and path rewriting.
package dataset

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// ReadLines returns the trimmed, non-empty lines of a list file.
func ReadLines(filename string) ([]string, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", filename, err)
	}
	return lines, nil
}

// WriteLines writes one line per element, replacing the file.
func WriteLines(lines []string, filename string) (err error) {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := file.Close(); err == nil {
			err = cerr
		}
	}()

	buf := bufio.NewWriter(file)
	for _, line := range lines {
		if _, err := fmt.Fprintln(buf, line); err != nil {
			return err
		}
	}
	return buf.Flush()
}
