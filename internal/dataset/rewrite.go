package dataset

import "strings"

// FixDataPrefix makes a list entry start with data/ (a dataset/ prefix is
// replaced, a missing one added) and removes the given folder components.
// Both separators are handled.
func FixDataPrefix(line string, dropFolders ...string) string {
	switch {
	case strings.HasPrefix(line, "dataset/"), strings.HasPrefix(line, `dataset\`):
		line = "data" + line[len("dataset"):]
	case strings.HasPrefix(line, "data/"), strings.HasPrefix(line, `data\`):
	default:
		line = "data/" + line
	}

	for _, folder := range dropFolders {
		line = strings.ReplaceAll(line, "/"+folder+"/", "/")
		line = strings.ReplaceAll(line, `\`+folder+`\`, `\`)
	}
	return line
}

// TrainToVal points a list entry at the val split instead of train.
func TrainToVal(line string) string {
	line = strings.ReplaceAll(line, "/train/", "/val/")
	line = strings.ReplaceAll(line, `\train\`, `\val\`)

	switch {
	case strings.HasSuffix(line, "/train"):
		line = strings.TrimSuffix(line, "/train") + "/val"
	case strings.HasSuffix(line, `\train`):
		line = strings.TrimSuffix(line, `\train`) + `\val`
	}
	return line
}

// RewriteList applies fn to every line of in and writes the result to out.
// It returns the original and rewritten lines.
func RewriteList(in, out string, fn func(string) string) (before, after []string, err error) {
	before, err = ReadLines(in)
	if err != nil {
		return nil, nil, err
	}

	after = make([]string, len(before))
	for i, line := range before {
		after[i] = fn(line)
	}

	if err := WriteLines(after, out); err != nil {
		return before, nil, err
	}
	return before, after, nil
}
