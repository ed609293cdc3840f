// Package output renders a flattened repository as raw text, JSON or XML and
// writes the resulting artifact.
package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/temirov/flatten/internal/flatten"
	"github.com/temirov/flatten/internal/types"
	"github.com/temirov/flatten/internal/utils"
)

const (
	indentPrefix = ""
	indentSpacer = "  "

	treeHeading      = "Directory Tree:"
	treeSeparator    = "================================================================================"
	separatorLine    = "----------------------------------------"
	fileHeaderFormat = "File: %s"
	fileTokensFormat = "File: %s (%d tokens)"

	treeBranchConnector = "├── "
	treeLastConnector   = "└── "
	treeBranchPadding   = "│   "
	treeLastPadding     = "    "
	directorySuffix     = "/"

	errorUnsupportedFormat = "unsupported output format %q (expected raw, json or xml)"
)

// Settings controls optional parts of the rendered artifact.
type Settings struct {
	IncludeSummary bool
}

// NewRenderer returns the renderer for format writing to writer.
func NewRenderer(format string, writer io.Writer, settings Settings) (flatten.Renderer, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", types.FormatRaw:
		return newRawRenderer(writer, settings), nil
	case types.FormatJSON:
		return newJSONRenderer(writer, settings), nil
	case types.FormatXML:
		return newXMLRenderer(writer, settings), nil
	default:
		return nil, fmt.Errorf(errorUnsupportedFormat, format)
	}
}

// IsSupportedFormat reports whether NewRenderer accepts format.
func IsSupportedFormat(format string) bool {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", types.FormatRaw, types.FormatJSON, types.FormatXML:
		return true
	}
	return false
}

func treeNodeLinePrefix(prefix string, isRoot bool, isLast bool) (string, string) {
	if isRoot {
		return "", ""
	}
	connector := treeBranchConnector
	childPrefix := prefix + treeBranchPadding
	if isLast {
		connector = treeLastConnector
		childPrefix = prefix + treeLastPadding
	}
	return prefix + connector, childPrefix
}

func renderTreeNode(writer io.Writer, node *types.TreeOutputNode, prefix string, isRoot bool, isLast bool) error {
	if node == nil {
		return nil
	}
	linePrefix, childPrefix := treeNodeLinePrefix(prefix, isRoot, isLast)
	label := node.Name
	if node.Type == types.NodeTypeDirectory && !isRoot {
		label += directorySuffix
	}
	if _, err := fmt.Fprintf(writer, "%s%s\n", linePrefix, label); err != nil {
		return err
	}
	for index, child := range node.Children {
		if child == nil {
			continue
		}
		if err := renderTreeNode(writer, child, childPrefix, false, index == len(node.Children)-1); err != nil {
			return err
		}
	}
	return nil
}

// WriteTreeRaw renders a directory tree with box-drawing connectors.
func WriteTreeRaw(writer io.Writer, node *types.TreeOutputNode) error {
	if node == nil {
		return nil
	}
	return renderTreeNode(writer, node, "", true, true)
}

// FormatSummaryLine formats an OutputSummary into the raw summary line.
func FormatSummaryLine(summary types.OutputSummary) string {
	size := summary.TotalSize
	if size == "" {
		size = utils.FormatFileSize(summary.TotalBytes)
	}
	extra := ""
	if summary.TotalTokens > 0 {
		extra = fmt.Sprintf(", %d tokens", summary.TotalTokens)
	}
	modelSuffix := ""
	if summary.Model != "" {
		modelSuffix = fmt.Sprintf(" (model: %s)", summary.Model)
	}
	return fmt.Sprintf("Summary: %d %s, %s%s%s", summary.TotalFiles, utils.Pluralize(summary.TotalFiles, "file", "files"), size, extra, modelSuffix)
}
