// Package types defines every cross‑package data structure used by the flatten CLI.
package types

import "encoding/xml"

const (
	NodeTypeFile      = "file"
	NodeTypeDirectory = "directory"

	FormatRaw  = "raw"
	FormatJSON = "json"
	FormatXML  = "xml"
)

// ValidatedPath is an absolute input path that already passed existence checks.
type ValidatedPath struct {
	AbsolutePath string
	IsDir        bool
}

// TreeOutputNode represents a node of the rendered directory tree.
type TreeOutputNode struct {
	XMLName   xml.Name          `json:"-" xml:"node"`
	Path      string            `json:"path" xml:"path"`
	Name      string            `json:"name" xml:"name"`
	Type      string            `json:"type" xml:"type"`
	Included  bool              `json:"included,omitempty" xml:"included,omitempty"`
	SizeBytes int64             `json:"sizeBytes,omitempty" xml:"sizeBytes,omitempty"`
	Children  []*TreeOutputNode `json:"children,omitempty" xml:"children>node,omitempty"`
}

// FileOutput represents one flattened file section.
type FileOutput struct {
	Path      string `json:"path" xml:"path"`
	Content   string `json:"content" xml:"content"`
	Size      string `json:"size,omitempty" xml:"size,omitempty"`
	SizeBytes int64  `json:"-" xml:"-"`
	Tokens    int    `json:"tokens,omitempty" xml:"tokens,omitempty"`
}

// OutputSummary captures aggregate information about rendered files.
type OutputSummary struct {
	TotalFiles  int    `json:"totalFiles" xml:"totalFiles"`
	TotalSize   string `json:"totalSize" xml:"totalSize"`
	TotalBytes  int64  `json:"-" xml:"-"`
	TotalTokens int    `json:"totalTokens,omitempty" xml:"totalTokens,omitempty"`
	Model       string `json:"model,omitempty" xml:"model,omitempty"`
}
