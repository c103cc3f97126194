package index

import (
	"strings"

	"github.com/Aman-CERP/issuesync/internal/store"
)

// RootDirectory is the directory path of files at the root of a module.
const RootDirectory = "/"

// DerivePaths computes the file and directory path of an issue from the scope
// and module-relative path of its component. Issues on projects and modules
// have neither, and an empty path counts as no path. The directory of a file
// is its path truncated at the last "/".
func DerivePaths(scope, path string) (filePath, directoryPath *string) {
	if scope == store.ScopeProject || path == "" {
		return nil, nil
	}
	filePath = &path

	dir := path
	if scope != store.ScopeDirectory {
		dir = parentDirectory(path)
	}
	return filePath, &dir
}

func parentDirectory(path string) string {
	if i := strings.LastIndex(path, "/"); i > 0 {
		return path[:i]
	}
	return RootDirectory
}
