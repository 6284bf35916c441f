package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, dir, name, body string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0755))
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0644))
	return p
}

func runTool(t *testing.T, stdin string, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(append([]string{"dataset"}, args...), strings.NewReader(stdin), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRequirePaths(t *testing.T) {
	dir := t.TempDir()
	file := touch(t, dir, "train.txt", "a.jpg\n")

	require.NoError(t, requireFile(file, "list file"))
	require.Error(t, requireFile(dir, "list file"))
	require.Error(t, requireFile(filepath.Join(dir, "missing.txt"), "list file"))
	require.Error(t, requireFile("", "list file"))

	require.NoError(t, requireDir(dir, "source directory"))
	require.Error(t, requireDir(file, "source directory"))
	require.Error(t, requireDir("", "source directory"))
}

func TestRunUsageError(t *testing.T) {
	code, _, _ := runTool(t, "")
	require.Equal(t, 1, code)

	code, _, _ = runTool(t, "", "shuffle")
	require.Equal(t, 1, code)
}

func TestRunAddMissingListFile(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "folder_5")
	require.NoError(t, os.MkdirAll(src, 0755))

	code, _, stderr := runTool(t, "", "add", filepath.Join(root, "train.txt"), filepath.Join(root, "out"), "-s", src)
	require.Equal(t, 1, code)
	require.Contains(t, stderr, "does not exist")
}

func TestRunAddSkipsMissingSources(t *testing.T) {
	root := t.TempDir()
	list := touch(t, root, "train.txt", "data/obj_train_data/folder_5/a.jpg\n")
	present := filepath.Join(root, "folder_2")
	touch(t, present, "a.jpg", "x")
	dest := filepath.Join(root, "train")

	code, stdout, _ := runTool(t, "", "add", list, dest, "-s", filepath.Join(root, "folder_5"), "-s", present)
	require.Equal(t, 0, code)
	require.Contains(t, stdout, "Copied 1 images")
	require.FileExists(t, filepath.Join(dest, "a.jpg"))
}

func TestRunAddNoSourceExists(t *testing.T) {
	root := t.TempDir()
	list := touch(t, root, "train.txt", "a.jpg\n")

	code, _, stderr := runTool(t, "", "add", list, filepath.Join(root, "train"),
		"-s", filepath.Join(root, "folder_5"), "-s", filepath.Join(root, "folder_2"))
	require.Equal(t, 1, code)
	require.Contains(t, stderr, "none of the source directories exist")
}

func TestRunRemoveQuitExitsZero(t *testing.T) {
	root := t.TempDir()
	from := filepath.Join(root, "train")
	to := filepath.Join(root, "folder_5")
	touch(t, from, "a.jpg", "new")
	touch(t, to, "a.jpg", "old")

	code, stdout, _ := runTool(t, "q\n", "remove", from, to)
	require.Equal(t, 0, code)
	require.Contains(t, stdout, "Operation aborted by user.")
	require.FileExists(t, filepath.Join(from, "a.jpg"))
}

func TestRunRemoveMissingDirectory(t *testing.T) {
	root := t.TempDir()

	code, _, _ := runTool(t, "", "remove", filepath.Join(root, "train"), root)
	require.Equal(t, 1, code)
}

func TestRunSplit(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "rubbish")
	for _, name := range []string{"1.jpg", "2.jpg", "3.jpg"} {
		touch(t, src, name, name)
	}

	code, stdout, _ := runTool(t, "", "split", src, filepath.Join(root, "split"), "-n", "2", "--seed", "7")
	require.Equal(t, 0, code)
	require.Contains(t, stdout, "Folder 1: 2 images")
	require.Contains(t, stdout, "Folder 2: 1 images")

	code, _, _ = runTool(t, "", "split", filepath.Join(root, "missing"), filepath.Join(root, "split"))
	require.Equal(t, 1, code)
}

func TestRunFixPaths(t *testing.T) {
	root := t.TempDir()
	in := touch(t, root, "val_fixed.txt", "data/images/train/a.jpg\n")
	out := filepath.Join(root, "val.txt")

	code, _, _ := runTool(t, "", "fixpaths", in, out, "-m", "val")
	require.Equal(t, 0, code)

	b, err := os.ReadFile(out)
	require.NoError(t, err)
	require.Equal(t, "data/images/val/a.jpg\n", string(b))

	code, _, _ = runTool(t, "", "fixpaths", filepath.Join(root, "missing.txt"), out)
	require.Equal(t, 1, code)
}
