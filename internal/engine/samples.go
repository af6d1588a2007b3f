package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/evanoberholster/imagemeta"
)

type sampleStatus int

const (
	sampleValid sampleStatus = iota
	sampleInvalid
	sampleSkipped
)

type sample struct {
	id     int
	path   string
	status sampleStatus
	reason string
}

// imageExtensions are the photo formats a session ingests. The flag marks
// formats expected to carry EXIF metadata.
var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".heic": true,
	".heif": true,
	".tif":  true,
	".tiff": true,
	".png":  false,
}

// scanSamples classifies the files of an input directory in name order.
// Sample ids are 1-based positions among regular, non-hidden files.
func scanSamples(dir string) ([]sample, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	samples := make([]sample, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}

		s := sample{
			id:   len(samples) + 1,
			path: filepath.Join(dir, entry.Name()),
		}
		hasExif, ok := imageExtensions[strings.ToLower(filepath.Ext(entry.Name()))]
		switch {
		case !ok:
			s.status = sampleSkipped
		case hasExif:
			if err := checkMetadata(s.path); err != nil {
				s.status = sampleInvalid
				s.reason = err.Error()
			}
		}
		samples = append(samples, s)
	}
	return samples, nil
}

// checkMetadata reads only the metadata block of a photo.
func checkMetadata(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open sample: %w", err)
	}
	defer f.Close()

	if _, err := imagemeta.Decode(f); err != nil {
		return fmt.Errorf("unreadable image metadata: %w", err)
	}
	return nil
}

func countImages(samples []sample) int {
	n := 0
	for _, s := range samples {
		if s.status != sampleSkipped {
			n++
		}
	}
	return n
}

// IsImageFile reports whether a file name has a photo extension a session ingests.
func IsImageFile(name string) bool {
	_, ok := imageExtensions[strings.ToLower(filepath.Ext(name))]
	return ok && !strings.HasPrefix(name, ".")
}
