package file

import (
	"path/filepath"
	"strings"
)

// ReplaceExt swaps the extension of path for ext, normalizing ext to
// carry a leading dot. A dotfile name like ".env" is treated as having
// no extension, so ReplaceExt(".env", "json") yields ".env.json".
func ReplaceExt(path, ext string) string {
	if path == "" {
		return path
	}
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}

	dir := filepath.Dir(path)
	name := filepath.Base(path)
	if lastDot := strings.LastIndex(name, "."); lastDot > 0 {
		name = name[:lastDot]
	}
	return filepath.Join(dir, name+ext)
}
