package dataset

import (
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
)

var TrainValExtensions = []string{".jpg", ".jpeg", ".png"}

// SplitIntoFolders copies the images of src, shuffled, into dst/folder_1 ..
// dst/folder_n. Each folder gets ceil(total/n) images except the tail. The
// result holds the number of images per folder.
func SplitIntoFolders(src, dst string, n int, rng *rand.Rand) ([]int, error) {
	if n <= 0 {
		return nil, fmt.Errorf("folder count must be positive, got %d", n)
	}

	images, err := listFiles(src, ImageExtensions)
	if err != nil {
		return nil, err
	}
	rng.Shuffle(len(images), func(i, j int) { images[i], images[j] = images[j], images[i] })

	folders := make([]string, n)
	for i := range folders {
		folders[i] = filepath.Join(dst, fmt.Sprintf("folder_%d", i+1))
		if err := os.MkdirAll(folders[i], 0755); err != nil {
			return nil, err
		}
	}

	counts := make([]int, n)
	perFolder := (len(images) + n - 1) / n

	for i, name := range images {
		idx := min(i/perFolder, n-1)
		if err := copyFile(filepath.Join(src, name), filepath.Join(folders[idx], name)); err != nil {
			return counts, err
		}
		counts[idx]++
	}

	return counts, nil
}

type SplitReport struct {
	Train  int
	Val    int
	Labels int
}

// TrainValSplit copies the images of imagesSrc into base/images/{train,val}
// and their YOLO label files, when present in labelsSrc, into
// base/labels/{train,val}. valRatio of the shuffled images go to val.
func TrainValSplit(base, imagesSrc, labelsSrc string, valRatio float64, rng *rand.Rand) (SplitReport, error) {
	var report SplitReport

	if valRatio < 0 || valRatio > 1 {
		return report, fmt.Errorf("val ratio must be in [0, 1], got %v", valRatio)
	}

	images, err := listFiles(imagesSrc, TrainValExtensions)
	if err != nil {
		return report, err
	}
	rng.Shuffle(len(images), func(i, j int) { images[i], images[j] = images[j], images[i] })

	for _, split := range []string{"train", "val"} {
		for _, kind := range []string{"images", "labels"} {
			if err := os.MkdirAll(filepath.Join(base, kind, split), 0755); err != nil {
				return report, err
			}
		}
	}

	splitIndex := int(float64(len(images)) * (1 - valRatio))

	for i, name := range images {
		split := "train"
		if i >= splitIndex {
			split = "val"
		}

		if err := copyFile(filepath.Join(imagesSrc, name), filepath.Join(base, "images", split, name)); err != nil {
			return report, err
		}
		if split == "train" {
			report.Train++
		} else {
			report.Val++
		}

		label := strings.TrimSuffix(name, filepath.Ext(name)) + ".txt"
		labelPath := filepath.Join(labelsSrc, label)
		if !exists(labelPath) {
			continue
		}
		if err := copyFile(labelPath, filepath.Join(base, "labels", split, label)); err != nil {
			return report, err
		}
		report.Labels++
	}

	return report, nil
}
