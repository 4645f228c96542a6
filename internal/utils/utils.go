package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/andresmejia3/harris/internal/imageio"
)

// ShowError prints the boxed error block used by every command.
func ShowError(context string, err error) {
	fmt.Fprintf(os.Stderr, "\n---------------------------------------------------------\n")
	fmt.Fprintf(os.Stderr, "🚨 HARRIS ERROR: %s\n", context)
	if err != nil {
		fmt.Fprintf(os.Stderr, "DETAILS: %v\n", err)
	}
	fmt.Fprintf(os.Stderr, "---------------------------------------------------------\n")
}

// Die is ShowError followed by exit status 1.
func Die(context string, err error) {
	ShowError(context, err)
	os.Exit(1)
}

// GenerateImageID creates a deterministic hash for the image file
// based on its path, size, and modification time.
func GenerateImageID(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	input := fmt.Sprintf("%s-%d-%d", path, info.Size(), info.ModTime().UnixNano())
	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:]), nil
}

// CollectImages expands input into a sorted list of decodable image files.
// input may be a file, a directory (not recursive) or a glob pattern.
func CollectImages(input string) ([]string, error) {
	info, err := os.Stat(input)
	switch {
	case err == nil && !info.IsDir():
		return []string{input}, nil
	case err == nil && info.IsDir():
		entries, err := os.ReadDir(input)
		if err != nil {
			return nil, err
		}
		var paths []string
		for _, e := range entries {
			if e.IsDir() || !imageio.Supported(e.Name()) {
				continue
			}
			paths = append(paths, filepath.Join(input, e.Name()))
		}
		if len(paths) == 0 {
			return nil, fmt.Errorf("no images found in %s", input)
		}
		return paths, nil
	}

	matches, globErr := filepath.Glob(input)
	if globErr != nil {
		return nil, globErr
	}
	var paths []string
	for _, m := range matches {
		if !imageio.Supported(m) {
			continue
		}
		if fi, statErr := os.Stat(m); statErr != nil || fi.IsDir() {
			continue
		}
		paths = append(paths, m)
	}
	if len(paths) == 0 {
		if err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("no images match %s", input)
	}
	sort.Strings(paths)
	return paths, nil
}

// OutputPath names the corner map written for src inside dir.
func OutputPath(dir, src, format string) string {
	base := filepath.Base(src)
	base = base[:len(base)-len(filepath.Ext(base))]
	return filepath.Join(dir, base+"_corners."+format)
}
