package flatten

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/temirov/flatten/internal/types"
)

const (
	rootRelativePath = "."

	errorAbsolutePathFormat = "getting absolute path for %s: %w"
	errorRootMissingFormat  = "root path '%s' does not exist"
	errorRootStatFormat     = "stat failed for root '%s': %w"
	errorRootNotDirFormat   = "root path '%s' is not a directory"
	errorReadRootFormat     = "reading root directory %s: %w"

	warningSkipSubdirMessage = "skipping unreadable directory"
	warningStatPathMessage   = "unable to stat entry"
)

// PlannedFile is an included file discovered by Walk.
type PlannedFile struct {
	AbsolutePath string
	RelativePath string
	SizeBytes    int64
}

// Plan is the deterministic result of a walk: the rendered tree and the
// included files in traversal order.
type Plan struct {
	Root  string
	Tree  *types.TreeOutputNode
	Files []PlannedFile
}

type walker struct {
	filter     PathFilter
	extensions map[string]struct{}
	logger     *zap.Logger
	files      []PlannedFile
}

// Walk renders the directory tree rooted at options.Root and collects included
// files. Entries are visited depth-first in lexicographic order. Directories
// whose name is in ExcludedDirectories, and paths matching IgnorePatterns, are
// pruned before descending and do not appear in the tree. A missing or
// unreadable root is an error; unreadable subdirectories are logged and skipped.
func Walk(options Options) (Plan, error) {
	absoluteRoot, absoluteError := filepath.Abs(options.Root)
	if absoluteError != nil {
		return Plan{}, fmt.Errorf(errorAbsolutePathFormat, options.Root, absoluteError)
	}
	absoluteRoot = filepath.Clean(absoluteRoot)

	rootInfo, statError := os.Stat(absoluteRoot)
	if statError != nil {
		if errors.Is(statError, fs.ErrNotExist) {
			return Plan{}, fmt.Errorf(errorRootMissingFormat, options.Root)
		}
		return Plan{}, fmt.Errorf(errorRootStatFormat, options.Root, statError)
	}
	if !rootInfo.IsDir() {
		return Plan{}, fmt.Errorf(errorRootNotDirFormat, options.Root)
	}

	treeWalker := &walker{
		filter:     NewPathFilter(options),
		extensions: NormalizeExtensions(options.IncludedExtensions),
		logger:     options.logger(),
	}

	rootNode := &types.TreeOutputNode{
		Path: rootRelativePath,
		Name: filepath.Base(absoluteRoot),
		Type: types.NodeTypeDirectory,
	}
	if walkError := treeWalker.walkDirectory(absoluteRoot, rootRelativePath, rootNode); walkError != nil {
		return Plan{}, fmt.Errorf(errorReadRootFormat, absoluteRoot, walkError)
	}

	return Plan{Root: absoluteRoot, Tree: rootNode, Files: treeWalker.files}, nil
}

func (treeWalker *walker) walkDirectory(absolutePath string, relativePath string, node *types.TreeOutputNode) error {
	entries, readError := os.ReadDir(absolutePath)
	if readError != nil {
		return readError
	}

	for _, entry := range entries {
		entryName := entry.Name()
		childRelative := entryName
		if relativePath != rootRelativePath {
			childRelative = path.Join(relativePath, entryName)
		}
		childAbsolute := filepath.Join(absolutePath, entryName)

		if entry.IsDir() {
			if treeWalker.filter.Skip(childRelative, true) {
				continue
			}
			childNode := &types.TreeOutputNode{
				Path: childRelative,
				Name: entryName,
				Type: types.NodeTypeDirectory,
			}
			if childError := treeWalker.walkDirectory(childAbsolute, childRelative, childNode); childError != nil {
				treeWalker.logger.Warn(warningSkipSubdirMessage, zap.String("path", childAbsolute), zap.Error(childError))
				childNode.Children = nil
			}
			node.Children = append(node.Children, childNode)
			continue
		}

		if treeWalker.filter.Skip(childRelative, false) {
			continue
		}

		fileNode := &types.TreeOutputNode{
			Path: childRelative,
			Name: entryName,
			Type: types.NodeTypeFile,
		}
		node.Children = append(node.Children, fileNode)

		fileInfo, infoError := os.Stat(childAbsolute)
		if infoError != nil {
			treeWalker.logger.Warn(warningStatPathMessage, zap.String("path", childAbsolute), zap.Error(infoError))
			continue
		}
		fileNode.SizeBytes = fileInfo.Size()
		if !fileInfo.Mode().IsRegular() || !IsIncluded(entryName, treeWalker.extensions) {
			continue
		}
		fileNode.Included = true
		treeWalker.files = append(treeWalker.files, PlannedFile{
			AbsolutePath: childAbsolute,
			RelativePath: childRelative,
			SizeBytes:    fileInfo.Size(),
		})
	}
	return nil
}
