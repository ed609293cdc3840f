package output_test

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/temirov/flatten/internal/flatten"
	"github.com/temirov/flatten/internal/output"
	"github.com/temirov/flatten/internal/types"
)

const rawScenarioExpected = `Directory Tree:
repo
├── a/
│   └── x.ts
└── b.md

================================================================================

File: a/x.ts
----------------------------------------
const x=1
----------------------------------------

File: b.md
----------------------------------------
# hi
----------------------------------------

Summary: 2 files, 15b
`

func createScenarioRepository(t *testing.T) string {
	t.Helper()
	root := filepath.Join(t.TempDir(), "repo")
	files := map[string]string{
		"a/x.ts":              "const x=1\n",
		"a/node_modules/y.ts": "export const y = 2\n",
		"b.md":                "# hi\n",
	}
	for relativePath, content := range files {
		absolutePath := filepath.Join(root, filepath.FromSlash(relativePath))
		if err := os.MkdirAll(filepath.Dir(absolutePath), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(absolutePath, []byte(content), 0o600); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	return root
}

func renderRepository(t *testing.T, root string, format string, settings output.Settings) string {
	t.Helper()
	var buffer bytes.Buffer
	renderer, err := output.NewRenderer(format, &buffer, settings)
	if err != nil {
		t.Fatalf("NewRenderer error: %v", err)
	}
	options := flatten.Options{
		Root:                root,
		ExcludedDirectories: flatten.DefaultExcludedDirectories(),
		IncludedExtensions:  flatten.DefaultIncludedExtensions(),
	}
	if _, err := flatten.Flatten(context.Background(), options, renderer); err != nil {
		t.Fatalf("Flatten error: %v", err)
	}
	return buffer.String()
}

// TestRawRendererScenario verifies the complete raw artifact for a small repository.
func TestRawRendererScenario(t *testing.T) {
	root := createScenarioRepository(t)
	actual := renderRepository(t, root, types.FormatRaw, output.Settings{IncludeSummary: true})
	if diff := cmp.Diff(rawScenarioExpected, actual); diff != "" {
		t.Fatalf("unexpected raw output (-want +got):\n%s", diff)
	}
	if strings.Contains(actual, "node_modules") {
		t.Fatalf("excluded directory leaked into output")
	}
}

// TestRawRendererIsIdempotent verifies two renders of an unchanged tree are identical.
func TestRawRendererIsIdempotent(t *testing.T) {
	root := createScenarioRepository(t)
	first := renderRepository(t, root, types.FormatRaw, output.Settings{})
	second := renderRepository(t, root, types.FormatRaw, output.Settings{})
	if first != second {
		t.Fatalf("renders differ:\n%s", cmp.Diff(first, second))
	}
}

// TestRawRendererEmptyTree verifies an empty root still yields a tree and no sections.
func TestRawRendererEmptyTree(t *testing.T) {
	root := filepath.Join(t.TempDir(), "empty")
	if err := os.Mkdir(root, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	actual := renderRepository(t, root, types.FormatRaw, output.Settings{})
	expected := "Directory Tree:\nempty\n\n================================================================================\n\n"
	if diff := cmp.Diff(expected, actual); diff != "" {
		t.Fatalf("unexpected output (-want +got):\n%s", diff)
	}
}

// TestRawRendererSectionFormatting verifies headers, token annotations and trailing newlines.
func TestRawRendererSectionFormatting(t *testing.T) {
	testCases := []struct {
		name     string
		section  types.FileOutput
		expected string
	}{
		{
			name:     "content without trailing newline",
			section:  types.FileOutput{Path: "a.go", Content: "package a"},
			expected: "File: a.go\n----------------------------------------\npackage a\n----------------------------------------\n\n",
		},
		{
			name:     "empty content",
			section:  types.FileOutput{Path: "empty.md"},
			expected: "File: empty.md\n----------------------------------------\n----------------------------------------\n\n",
		},
		{
			name:     "token annotation",
			section:  types.FileOutput{Path: "b.go", Content: "package b\n", Tokens: 3},
			expected: "File: b.go (3 tokens)\n----------------------------------------\npackage b\n----------------------------------------\n\n",
		},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			var buffer bytes.Buffer
			renderer, err := output.NewRenderer(types.FormatRaw, &buffer, output.Settings{})
			if err != nil {
				t.Fatalf("NewRenderer error: %v", err)
			}
			if err := renderer.Section(testCase.section); err != nil {
				t.Fatalf("Section error: %v", err)
			}
			if err := renderer.Flush(types.OutputSummary{}); err != nil {
				t.Fatalf("Flush error: %v", err)
			}
			if diff := cmp.Diff(testCase.expected, buffer.String()); diff != "" {
				t.Fatalf("unexpected section (-want +got):\n%s", diff)
			}
		})
	}
}

type jsonDocument struct {
	Root    string                `json:"root"`
	Tree    *types.TreeOutputNode `json:"tree"`
	Files   []types.FileOutput    `json:"files"`
	Summary *types.OutputSummary  `json:"summary"`
}

// TestJSONRendererProducesValidDocument verifies the streamed JSON parses into the expected document.
func TestJSONRendererProducesValidDocument(t *testing.T) {
	root := createScenarioRepository(t)
	testCases := []struct {
		name           string
		includeSummary bool
	}{
		{name: "with summary", includeSummary: true},
		{name: "without summary", includeSummary: false},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			rendered := renderRepository(t, root, types.FormatJSON, output.Settings{IncludeSummary: testCase.includeSummary})
			var document jsonDocument
			if err := json.Unmarshal([]byte(rendered), &document); err != nil {
				t.Fatalf("invalid JSON: %v\n%s", err, rendered)
			}
			if document.Root != "repo" || document.Tree == nil || document.Tree.Name != "repo" {
				t.Fatalf("unexpected root %q / tree %+v", document.Root, document.Tree)
			}
			expectedFiles := []types.FileOutput{
				{Path: "a/x.ts", Content: "const x=1\n", Size: "10b"},
				{Path: "b.md", Content: "# hi\n", Size: "5b"},
			}
			if diff := cmp.Diff(expectedFiles, document.Files); diff != "" {
				t.Fatalf("unexpected files (-want +got):\n%s", diff)
			}
			if testCase.includeSummary {
				if document.Summary == nil || document.Summary.TotalFiles != 2 || document.Summary.TotalSize != "15b" {
					t.Fatalf("unexpected summary %+v", document.Summary)
				}
			} else if document.Summary != nil {
				t.Fatalf("summary present although not requested")
			}
		})
	}
}

// TestJSONRendererEmptyFiles verifies the files array is valid when nothing is included.
func TestJSONRendererEmptyFiles(t *testing.T) {
	root := filepath.Join(t.TempDir(), "empty")
	if err := os.Mkdir(root, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	rendered := renderRepository(t, root, types.FormatJSON, output.Settings{})
	var document jsonDocument
	if err := json.Unmarshal([]byte(rendered), &document); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, rendered)
	}
	if document.Files == nil || len(document.Files) != 0 {
		t.Fatalf("expected empty files array, got %v", document.Files)
	}
}

type xmlDocument struct {
	XMLName xml.Name             `xml:"flatten"`
	Root    string               `xml:"root,attr"`
	Tree    xmlTree              `xml:"tree"`
	Files   []types.FileOutput   `xml:"files>file"`
	Summary *types.OutputSummary `xml:"summary"`
}

type xmlTree struct {
	Node types.TreeOutputNode `xml:"node"`
}

// TestXMLRendererProducesValidDocument verifies the streamed XML parses into the expected document.
func TestXMLRendererProducesValidDocument(t *testing.T) {
	root := createScenarioRepository(t)
	rendered := renderRepository(t, root, types.FormatXML, output.Settings{IncludeSummary: true})
	if !strings.HasPrefix(rendered, xml.Header) {
		t.Fatalf("missing XML header: %s", rendered)
	}
	var document xmlDocument
	if err := xml.Unmarshal([]byte(rendered), &document); err != nil {
		t.Fatalf("invalid XML: %v\n%s", err, rendered)
	}
	if document.Root != "repo" || document.Tree.Node.Name != "repo" {
		t.Fatalf("unexpected root %q / tree %+v", document.Root, document.Tree.Node)
	}
	if len(document.Tree.Node.Children) != 2 || document.Tree.Node.Children[0].Path != "a" {
		t.Fatalf("unexpected tree children %+v", document.Tree.Node.Children)
	}
	if len(document.Files) != 2 || document.Files[0].Path != "a/x.ts" || document.Files[1].Content != "# hi\n" {
		t.Fatalf("unexpected files %+v", document.Files)
	}
	if document.Summary == nil || document.Summary.TotalFiles != 2 {
		t.Fatalf("unexpected summary %+v", document.Summary)
	}
}

// TestStructuredRenderersKeepExactContent verifies content without a trailing
// newline survives JSON and XML rendering unchanged.
func TestStructuredRenderersKeepExactContent(t *testing.T) {
	root := filepath.Join(t.TempDir(), "repo")
	if err := os.Mkdir(root, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	const content = "package a\n\nfunc A() {}"
	if err := os.WriteFile(filepath.Join(root, "a.go"), []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	var jsonParsed jsonDocument
	if err := json.Unmarshal([]byte(renderRepository(t, root, types.FormatJSON, output.Settings{})), &jsonParsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	var xmlParsed xmlDocument
	if err := xml.Unmarshal([]byte(renderRepository(t, root, types.FormatXML, output.Settings{})), &xmlParsed); err != nil {
		t.Fatalf("invalid XML: %v", err)
	}
	for format, files := range map[string][]types.FileOutput{"json": jsonParsed.Files, "xml": xmlParsed.Files} {
		if len(files) != 1 || files[0].Content != content {
			t.Fatalf("%s: expected exact content %q, got %+v", format, content, files)
		}
	}
}

// TestNewRendererRejectsUnknownFormat verifies format validation.
func TestNewRendererRejectsUnknownFormat(t *testing.T) {
	if _, err := output.NewRenderer("yaml", &bytes.Buffer{}, output.Settings{}); err == nil {
		t.Fatalf("expected error for unsupported format")
	}
	for _, format := range []string{"", "raw", "JSON", " xml "} {
		if !output.IsSupportedFormat(format) {
			t.Errorf("expected %q to be supported", format)
		}
	}
}

// TestFormatSummaryLine verifies summary line formatting.
func TestFormatSummaryLine(t *testing.T) {
	testCases := []struct {
		name     string
		summary  types.OutputSummary
		expected string
	}{
		{name: "single file", summary: types.OutputSummary{TotalFiles: 1, TotalSize: "4b"}, expected: "Summary: 1 file, 4b"},
		{name: "size from bytes", summary: types.OutputSummary{TotalFiles: 2, TotalBytes: 2048}, expected: "Summary: 2 files, 2kb"},
		{name: "tokens and model", summary: types.OutputSummary{TotalFiles: 3, TotalSize: "1kb", TotalTokens: 42, Model: "gpt-4o"}, expected: "Summary: 3 files, 1kb, 42 tokens (model: gpt-4o)"},
	}
	for _, testCase := range testCases {
		if actual := output.FormatSummaryLine(testCase.summary); actual != testCase.expected {
			t.Errorf("%s: expected %q, got %q", testCase.name, testCase.expected, actual)
		}
	}
}
