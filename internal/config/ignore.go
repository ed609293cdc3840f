// Package config loads flatten configuration files and ignore files.
package config

import (
	"bufio"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/temirov/flatten/internal/utils"
)

const (
	// ignoreSectionHeader identifies the section listing ignore patterns.
	ignoreSectionHeader = "[ignore]"
	commentPrefix       = "#"
	negationPrefix      = "!"
	sectionOpen         = "["
	sectionClose        = "]"

	errorLoadIgnoreFormat = "loading %s from %s: %w"
)

// IgnoreOptions selects which ignore files are honored during pattern discovery.
type IgnoreOptions struct {
	UseGitignore        bool
	UseIgnoreFile       bool
	ExcludedDirectories []string
	ExclusionPatterns   []string
}

// LoadIgnoreFilePatterns reads a specified ignore file and returns its ignore patterns.
// Blank lines, comments, and negations are skipped. Lines inside a section other
// than [ignore] are skipped so that .ignore files shared with other tools load cleanly.
//
// #nosec G304
func LoadIgnoreFilePatterns(ignoreFilePath string) ([]string, error) {
	fileHandle, openFileError := os.Open(ignoreFilePath)
	if openFileError != nil {
		if os.IsNotExist(openFileError) {
			return nil, nil
		}
		return nil, openFileError
	}
	defer fileHandle.Close()

	var ignorePatterns []string
	inIgnoreSection := true
	scanner := bufio.NewScanner(fileHandle)
	for scanner.Scan() {
		trimmedLine := strings.TrimSpace(scanner.Text())
		if trimmedLine == "" || strings.HasPrefix(trimmedLine, commentPrefix) {
			continue
		}
		if strings.HasPrefix(trimmedLine, sectionOpen) && strings.HasSuffix(trimmedLine, sectionClose) {
			inIgnoreSection = strings.EqualFold(trimmedLine, ignoreSectionHeader)
			continue
		}
		if !inIgnoreSection || strings.HasPrefix(trimmedLine, negationPrefix) {
			continue
		}
		ignorePatterns = append(ignorePatterns, trimmedLine)
	}
	if scanError := scanner.Err(); scanError != nil {
		return nil, scanError
	}
	return ignorePatterns, nil
}

// LoadRecursiveIgnorePatterns walks rootDirectoryPath and aggregates ignore patterns.
// Patterns from utils.IgnoreFileName and utils.GitIgnoreFileName in each nested directory are prefixed with that
// directory's path relative to rootDirectoryPath. Directories listed in ExcludedDirectories are never entered, so
// ignore files beneath them have no effect. ExclusionPatterns are appended to the result after deduplication.
func LoadRecursiveIgnorePatterns(rootDirectoryPath string, options IgnoreOptions) ([]string, error) {
	excluded := make(map[string]struct{}, len(options.ExcludedDirectories))
	for _, name := range options.ExcludedDirectories {
		excluded[name] = struct{}{}
	}

	var aggregatedPatterns []string
	if options.UseGitignore || options.UseIgnoreFile {
		walkFunction := func(currentDirectoryPath string, directoryEntry fs.DirEntry, walkError error) error {
			if walkError != nil {
				if currentDirectoryPath == rootDirectoryPath {
					return walkError
				}
				return filepath.SkipDir
			}
			if !directoryEntry.IsDir() {
				return nil
			}
			if currentDirectoryPath != rootDirectoryPath {
				if _, isExcluded := excluded[directoryEntry.Name()]; isExcluded {
					return filepath.SkipDir
				}
			}

			relativeDirectory := utils.RelativePathOrSelf(currentDirectoryPath, rootDirectoryPath)
			prefix := ""
			if relativeDirectory != "." {
				prefix = relativeDirectory + "/"
				if utils.ShouldIgnoreByPath(relativeDirectory, true, aggregatedPatterns) {
					return filepath.SkipDir
				}
			}

			if options.UseIgnoreFile {
				patterns, loadError := loadPrefixedPatterns(currentDirectoryPath, utils.IgnoreFileName, prefix)
				if loadError != nil {
					return loadError
				}
				aggregatedPatterns = append(aggregatedPatterns, patterns...)
			}
			if options.UseGitignore {
				patterns, loadError := loadPrefixedPatterns(currentDirectoryPath, utils.GitIgnoreFileName, prefix)
				if loadError != nil {
					return loadError
				}
				aggregatedPatterns = append(aggregatedPatterns, patterns...)
			}
			return nil
		}

		if walkError := filepath.WalkDir(rootDirectoryPath, walkFunction); walkError != nil {
			return nil, walkError
		}
	}

	aggregatedPatterns = append(aggregatedPatterns, options.ExclusionPatterns...)
	return utils.DeduplicatePatterns(aggregatedPatterns), nil
}

func loadPrefixedPatterns(directoryPath string, fileName string, prefix string) ([]string, error) {
	patterns, loadError := LoadIgnoreFilePatterns(filepath.Join(directoryPath, fileName))
	if loadError != nil {
		return nil, fmt.Errorf(errorLoadIgnoreFormat, fileName, directoryPath, loadError)
	}
	prefixed := make([]string, 0, len(patterns))
	for _, pattern := range patterns {
		prefixed = append(prefixed, prefix+strings.TrimPrefix(pattern, "/"))
	}
	return prefixed, nil
}
