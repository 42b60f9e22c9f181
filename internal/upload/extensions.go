package upload

import (
	"path"
	"strings"
)

// allowedExtensions lists the source and text file types accepted for scanning.
var allowedExtensions = map[string]bool{
	".txt": true, ".md": true, ".py": true, ".js": true, ".ts": true, ".css": true,
	".html": true, ".json": true, ".xml": true, ".yaml": true, ".ini": true, ".conf": true,
	".sh": true, ".bash": true, ".zsh": true, ".php": true, ".rb": true, ".java": true,
	".c": true, ".cpp": true, ".cs": true, ".go": true, ".swift": true, ".rs": true,
	".kt": true, ".sql": true, ".r": true, ".d": true, ".h": true, ".hpp": true,
	".lisp": true, ".clj": true, ".scala": true, ".pl": true, ".tex": true, ".coffee": true,
	".less": true, ".sass": true, ".scss": true, ".v": true, ".ahk": true, ".lua": true,
	".awk": true, ".xsd": true,
}

// AllowedExtension reports whether name has an accepted extension. Matching is
// case-insensitive.
func AllowedExtension(name string) bool {
	return allowedExtensions[strings.ToLower(path.Ext(name))]
}
