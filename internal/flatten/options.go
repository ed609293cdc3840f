// Package flatten walks a directory tree and streams the files selected for a
// flattened context artifact: a tree rendering followed by each included file.
package flatten

import (
	"path"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/temirov/flatten/internal/tokenizer"
	"github.com/temirov/flatten/internal/utils"
)

const extensionSeparator = "."

var defaultExcludedDirectories = []string{
	"node_modules",
	"bower_components",
	"vendor",
	".git",
	".svn",
	".hg",
	"dist",
	"build",
	"out",
	"target",
	".next",
	".nuxt",
	"coverage",
	".nyc_output",
	".cache",
	"__pycache__",
	".pytest_cache",
	".turbo",
}

var defaultIncludedExtensions = []string{
	".go",
	".ts",
	".tsx",
	".js",
	".jsx",
	".mjs",
	".cjs",
	".json",
	".yaml",
	".yml",
	".toml",
	".md",
	".mdx",
	".css",
	".scss",
	".html",
	".sh",
	".py",
	".sql",
}

// DefaultExcludedDirectories returns the directory names that are never traversed.
func DefaultExcludedDirectories() []string {
	return append([]string(nil), defaultExcludedDirectories...)
}

// DefaultIncludedExtensions returns the file extensions included by default.
func DefaultIncludedExtensions() []string {
	return append([]string(nil), defaultIncludedExtensions...)
}

// Options configures a flatten run.
type Options struct {
	Root                string
	ExcludedDirectories []string
	IncludedExtensions  []string
	IgnorePatterns      []string
	// ArtifactPath is the output file of the run. When it lies inside Root, the
	// file and its temporary siblings are never walked.
	ArtifactPath string
	TokenCounter tokenizer.Counter
	TokenModel   string
	Logger       *zap.Logger
}

func (options Options) logger() *zap.Logger {
	if options.Logger == nil {
		return zap.NewNop()
	}
	return options.Logger
}

// PathFilter decides which root-relative paths a walk prunes.
type PathFilter struct {
	excluded map[string]struct{}
	patterns []string
	artifact string
}

// NewPathFilter builds the filter for the excluded directory names and ignore
// patterns of options.
func NewPathFilter(options Options) PathFilter {
	excluded := make(map[string]struct{}, len(options.ExcludedDirectories))
	for _, name := range options.ExcludedDirectories {
		excluded[name] = struct{}{}
	}
	return PathFilter{excluded: excluded, patterns: options.IgnorePatterns, artifact: artifactRelativePath(options)}
}

// artifactRelativePath returns the root-relative slash path of the artifact, or
// "" when there is none or it lies outside the root.
func artifactRelativePath(options Options) string {
	if options.ArtifactPath == "" {
		return ""
	}
	absoluteRoot, rootError := filepath.Abs(options.Root)
	if rootError != nil {
		return ""
	}
	absoluteArtifact, artifactError := filepath.Abs(options.ArtifactPath)
	if artifactError != nil {
		return ""
	}
	relativeArtifact := utils.RelativePathOrSelf(absoluteArtifact, absoluteRoot)
	if relativeArtifact == rootRelativePath || !utils.IsWithinRoot(relativeArtifact) {
		return ""
	}
	return relativeArtifact
}

// isArtifact compares names exactly, so glob characters in the artifact name
// carry no meaning.
func (filter PathFilter) isArtifact(relativePath string) bool {
	if filter.artifact == "" {
		return false
	}
	if relativePath == filter.artifact {
		return true
	}
	return path.Dir(relativePath) == path.Dir(filter.artifact) &&
		strings.HasPrefix(path.Base(relativePath), path.Base(filter.artifact)+utils.TemporaryFileInfix)
}

// Skip reports whether relativePath, or any directory above it, is excluded.
func (filter PathFilter) Skip(relativePath string, isDirectory bool) bool {
	relativePath = filepath.ToSlash(relativePath)
	if !isDirectory && filter.isArtifact(relativePath) {
		return true
	}
	segments := strings.Split(relativePath, "/")
	directorySegments := segments
	if !isDirectory {
		directorySegments = segments[:len(segments)-1]
	}
	for _, segment := range directorySegments {
		if _, isExcluded := filter.excluded[segment]; isExcluded {
			return true
		}
	}
	return utils.ShouldIgnoreByPath(relativePath, isDirectory, filter.patterns)
}

// NormalizeExtensions lower-cases extensions and adds the leading dot when missing.
func NormalizeExtensions(extensions []string) map[string]struct{} {
	normalized := make(map[string]struct{}, len(extensions))
	for _, extension := range extensions {
		trimmed := strings.ToLower(strings.TrimSpace(extension))
		if trimmed == "" || trimmed == extensionSeparator {
			continue
		}
		if !strings.HasPrefix(trimmed, extensionSeparator) {
			trimmed = extensionSeparator + trimmed
		}
		normalized[trimmed] = struct{}{}
	}
	return normalized
}

// IsIncluded reports whether a file name carries one of the normalized extensions.
func IsIncluded(fileName string, extensions map[string]struct{}) bool {
	extension := strings.ToLower(filepath.Ext(fileName))
	if extension == "" {
		return false
	}
	_, included := extensions[extension]
	return included
}
