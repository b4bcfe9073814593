package domain

import "strings"

// StripExt drops the final extension of a path, if any.
func StripExt(path string) string {
	if idx := strings.LastIndex(path, "."); idx > strings.LastIndex(path, "/") {
		return path[:idx]
	}
	return path
}

// PreprocessedPath names the normalized copy derived from an artifact.
// The transcoder writes here and cleanup checks here, whether or not
// normalization ever ran for the job.
func PreprocessedPath(path string) string {
	return StripExt(path) + "_preprocessed.mp4"
}
