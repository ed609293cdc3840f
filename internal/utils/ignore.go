// Package utils contains general helper functions used across the flatten tool.
package utils

import (
	"path/filepath"
	"strings"
)

const pathSegmentSeparator = "/"

// DeduplicatePatterns removes duplicate patterns from a slice while preserving order.
// Blank patterns are dropped. The first occurrence of each unique pattern is kept.
func DeduplicatePatterns(patterns []string) []string {
	encounteredPatterns := make(map[string]struct{})
	result := make([]string, 0, len(patterns))
	for _, pattern := range patterns {
		trimmedPattern := strings.TrimSpace(pattern)
		if trimmedPattern == "" {
			continue
		}
		if _, exists := encounteredPatterns[trimmedPattern]; !exists {
			encounteredPatterns[trimmedPattern] = struct{}{}
			result = append(result, trimmedPattern)
		}
	}
	return result
}

// RelativePathOrSelf calculates the slash-separated relative path from root to fullPath.
// Returns the cleaned fullPath if relative calculation fails.
// Returns "." if fullPath and root resolve to the same directory.
func RelativePathOrSelf(fullPath, root string) string {
	cleanPath := filepath.Clean(fullPath)
	absoluteRoot, err := filepath.Abs(root)
	if err != nil {
		return cleanPath
	}
	cleanAbsoluteRoot := filepath.Clean(absoluteRoot)

	if cleanPath == cleanAbsoluteRoot {
		return "."
	}

	relativePath, relErr := filepath.Rel(cleanAbsoluteRoot, cleanPath)
	if relErr != nil {
		return cleanPath
	}
	return filepath.ToSlash(relativePath)
}

// IsWithinRoot reports whether a slash-separated relative path stays inside its root.
func IsWithinRoot(relativePath string) bool {
	if relativePath == "" || filepath.IsAbs(relativePath) {
		return false
	}
	return relativePath != ".." && !strings.HasPrefix(relativePath, "../")
}

// ShouldIgnoreByPath reports whether a path relative to the processing root
// should be excluded from further processing. isDirectory tells whether the path
// names a directory; directory patterns only match files through their
// ancestors. The candidate path and every ignore pattern are converted to
// forward-slash form before evaluation. Patterns
// are split into hierarchical segments, allowing nested directory prefixes such
// as "web/node_modules/" and "web/.env.local" to match. A pattern ending
// with a trailing slash matches the specified directory and all descendant paths,
// preventing recursion into that directory. A single-segment pattern is matched
// against the last path segment. Other patterns match an exact path where each
// segment is evaluated with filepath.Match semantics.
func ShouldIgnoreByPath(relativePath string, isDirectory bool, ignorePatterns []string) bool {
	normalizedPath := strings.ReplaceAll(relativePath, "\\", pathSegmentSeparator)
	pathSegments := strings.Split(normalizedPath, pathSegmentSeparator)
	lastSegment := pathSegments[len(pathSegments)-1]
	directorySegments := pathSegments
	if !isDirectory {
		directorySegments = pathSegments[:len(pathSegments)-1]
	}

	for _, patternValue := range ignorePatterns {
		normalizedPattern := strings.ReplaceAll(patternValue, "\\", pathSegmentSeparator)
		normalizedPattern = strings.TrimPrefix(normalizedPattern, pathSegmentSeparator)
		if normalizedPattern == "" {
			continue
		}

		isDirectoryPattern := strings.HasSuffix(normalizedPattern, pathSegmentSeparator)
		trimmedPattern := strings.TrimSuffix(normalizedPattern, pathSegmentSeparator)
		patternSegments := strings.Split(trimmedPattern, pathSegmentSeparator)

		if isDirectoryPattern {
			if len(patternSegments) == 1 {
				if anySegmentMatches(directorySegments, patternSegments[0]) {
					return true
				}
				continue
			}
			if len(directorySegments) >= len(patternSegments) && segmentsMatch(directorySegments[:len(patternSegments)], patternSegments) {
				return true
			}
			continue
		}

		if len(patternSegments) == 1 {
			isMatched, matchError := filepath.Match(patternSegments[0], lastSegment)
			if matchError == nil && isMatched {
				return true
			}
			continue
		}

		if len(pathSegments) == len(patternSegments) && segmentsMatch(pathSegments, patternSegments) {
			return true
		}
	}

	return false
}

// anySegmentMatches reports whether any directory segment matches the pattern,
// so "build/" prunes every directory named build at any depth.
func anySegmentMatches(pathSegments []string, patternSegment string) bool {
	for _, pathSegment := range pathSegments {
		isMatched, matchError := filepath.Match(patternSegment, pathSegment)
		if matchError == nil && isMatched {
			return true
		}
	}
	return false
}

// segmentsMatch reports whether each pattern segment matches the corresponding
// path segment using filepath.Match semantics.
func segmentsMatch(pathSegments, patternSegments []string) bool {
	for segmentIndex, patternSegment := range patternSegments {
		isMatched, matchError := filepath.Match(patternSegment, pathSegments[segmentIndex])
		if matchError != nil || !isMatched {
			return false
		}
	}
	return true
}
