package vfm

import (
	"fmt"
	"strings"

	"vfm-go/internal/model"
)

// MaxUploadSize is the largest file Upload accepts, in bytes.
const MaxUploadSize int64 = 10 * 1024 * 1024

var documentExtensions = map[string]bool{
	"pdf": true,
}

// Classify derives a file's type and lowercased extension from its name.
// The extension is the text after the last '.', or the whole name when it
// has no dot ("README" has extension "readme"). A trailing dot leaves it
// empty.
func Classify(name string) (model.FileType, string) {
	ext := strings.ToLower(name[strings.LastIndexByte(name, '.')+1:])
	if ext == "" {
		return model.FileTypeOther, ""
	}
	if documentExtensions[ext] {
		return model.FileTypeDocument, ext
	}
	return model.FileTypeOther, ext
}

// BaseName strips extension (and its dot) from a stored file name,
// recovering the base that Rename takes.
func BaseName(name, extension string) string {
	if extension == "" {
		return name
	}
	suffix := "." + extension
	if len(name) > len(suffix) && strings.EqualFold(name[len(name)-len(suffix):], suffix) {
		return name[:len(name)-len(suffix)]
	}
	return name
}

// JoinName composes a file name from a base and an extension.
func JoinName(base, extension string) string {
	if extension == "" {
		return base
	}
	return base + "." + extension
}

var sizeUnits = []string{"Bytes", "KB", "MB", "GB", "TB"}

// FormatSize renders a byte count with 1024-based units, e.g. "4.0 MB".
// Plain bytes have no decimals.
func FormatSize(bytes int64) string {
	size := float64(bytes)
	unit := 0
	for size >= 1024 && unit < len(sizeUnits)-1 {
		size /= 1024
		unit++
	}
	if unit == 0 {
		return fmt.Sprintf("%d %s", bytes, sizeUnits[0])
	}
	return fmt.Sprintf("%.1f %s", size, sizeUnits[unit])
}
