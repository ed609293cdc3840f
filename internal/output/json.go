package output

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"

	"github.com/temirov/flatten/internal/types"
)

// jsonRenderer streams one document of the form
// {"root": ..., "tree": {...}, "files": [...], "summary": {...}}.
type jsonRenderer struct {
	writer         *bufio.Writer
	includeSummary bool
	fileCount      int
}

func newJSONRenderer(writer io.Writer, settings Settings) *jsonRenderer {
	return &jsonRenderer{writer: bufio.NewWriter(writer), includeSummary: settings.IncludeSummary}
}

func (renderer *jsonRenderer) Begin(tree *types.TreeOutputNode) error {
	rootName := ""
	if tree != nil {
		rootName = tree.Name
	}
	if _, err := io.WriteString(renderer.writer, "{\n"+indentSpacer+`"root": `+encodeJSONString(rootName)+",\n"+indentSpacer+`"tree": `); err != nil {
		return err
	}
	encodedTree, err := json.MarshalIndent(tree, indentPrefix, indentSpacer)
	if err != nil {
		return err
	}
	if err := renderer.writeIndentedBlock(1, encodedTree, false); err != nil {
		return err
	}
	_, err = io.WriteString(renderer.writer, ",\n"+indentSpacer+`"files": [`)
	return err
}

func (renderer *jsonRenderer) Section(section types.FileOutput) error {
	encodedFile, err := json.MarshalIndent(section, indentPrefix, indentSpacer)
	if err != nil {
		return err
	}
	if renderer.fileCount > 0 {
		if _, err := io.WriteString(renderer.writer, ","); err != nil {
			return err
		}
	}
	if _, err := io.WriteString(renderer.writer, "\n"); err != nil {
		return err
	}
	renderer.fileCount++
	return renderer.writeIndentedBlock(2, encodedFile, true)
}

func (renderer *jsonRenderer) Flush(summary types.OutputSummary) error {
	closing := "]"
	if renderer.fileCount > 0 {
		closing = "\n" + indentSpacer + "]"
	}
	if _, err := io.WriteString(renderer.writer, closing); err != nil {
		return err
	}
	if renderer.includeSummary {
		encodedSummary, err := json.MarshalIndent(summary, indentPrefix, indentSpacer)
		if err != nil {
			return err
		}
		if _, err := io.WriteString(renderer.writer, ",\n"+indentSpacer+`"summary": `); err != nil {
			return err
		}
		if err := renderer.writeIndentedBlock(1, encodedSummary, false); err != nil {
			return err
		}
	}
	if _, err := io.WriteString(renderer.writer, "\n}\n"); err != nil {
		return err
	}
	return renderer.writer.Flush()
}

// writeIndentedBlock writes block with every line after the first indented by
// indentLevel. indentFirst also indents the first line.
func (renderer *jsonRenderer) writeIndentedBlock(indentLevel int, block []byte, indentFirst bool) error {
	indent := bytes.Repeat([]byte(indentSpacer), indentLevel)
	lines := bytes.Split(block, []byte("\n"))
	for index, line := range lines {
		if index > 0 {
			if _, err := renderer.writer.Write([]byte("\n")); err != nil {
				return err
			}
		}
		if index > 0 || indentFirst {
			if _, err := renderer.writer.Write(indent); err != nil {
				return err
			}
		}
		if _, err := renderer.writer.Write(line); err != nil {
			return err
		}
	}
	return nil
}

func encodeJSONString(value string) string {
	encoded, err := json.Marshal(value)
	if err != nil {
		return `""`
	}
	return string(encoded)
}
