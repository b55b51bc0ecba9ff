package utils

import (
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// EnsureDir creates dir and its parents when missing
func EnsureDir(dir string) error {
	return os.MkdirAll(dir, 0o755)
}

// GetFileExtension returns the lowercase file extension without the dot
func GetFileExtension(filename string) string {
	ext := filepath.Ext(filename)
	if len(ext) > 0 {
		return strings.ToLower(ext[1:])
	}
	return ""
}

// IsImageFile checks if a file has an image extension
func IsImageFile(filename string) bool {
	switch GetFileExtension(filename) {
	case "jpg", "jpeg", "png", "gif", "bmp", "tif", "tiff", "webp":
		return true
	}
	return false
}

// IsURL reports whether source is an http(s) URL
func IsURL(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}

// GenerateOutputFilename builds <outputDir>/<prefix><base><suffix>.<format>
// from a file path or URL. An empty format keeps the input extension.
func GenerateOutputFilename(input, outputDir, prefix, suffix, format string) string {
	name := input
	if IsURL(input) {
		if u, err := url.Parse(input); err == nil {
			name = path.Base(u.Path)
		}
	}
	baseName := filepath.Base(name)
	nameWithoutExt := strings.TrimSuffix(baseName, filepath.Ext(baseName))
	if nameWithoutExt == "" || nameWithoutExt == "." || nameWithoutExt == "/" {
		nameWithoutExt = "leaf"
	}

	if format == "" {
		format = GetFileExtension(name)
		if format == "" {
			format = "jpg"
		}
	}

	outputName := fmt.Sprintf("%s%s%s.%s", prefix, nameWithoutExt, suffix, format)
	return filepath.Join(outputDir, outputName)
}

// OutputSuffixes mark files written by a previous run. ListImageFiles
// skips them so an output directory inside the input is not re-cropped.
var OutputSuffixes = []string{"_crop", "_overlay"}

// ListImageFiles recursively lists the image files under dir in lexical
// order. Hidden entries and earlier outputs are skipped.
func ListImageFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p != dir && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !IsImageFile(p) || isOutput(p) {
			return nil
		}
		files = append(files, p)
		return nil
	})
	return files, err
}

func isOutput(p string) bool {
	base := strings.TrimSuffix(filepath.Base(p), filepath.Ext(p))
	for _, s := range OutputSuffixes {
		if strings.HasSuffix(base, s) {
			return true
		}
	}
	return false
}

// FileExists checks if a file exists and is not a directory
func FileExists(filename string) bool {
	info, err := os.Stat(filename)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// DirExists checks if a directory exists
func DirExists(dirname string) bool {
	info, err := os.Stat(dirname)
	if err != nil {
		return false
	}
	return info.IsDir()
}
