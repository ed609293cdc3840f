package output

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/temirov/flatten/internal/types"
)

type rawRenderer struct {
	writer         *bufio.Writer
	includeSummary bool
}

func newRawRenderer(writer io.Writer, settings Settings) *rawRenderer {
	return &rawRenderer{writer: bufio.NewWriter(writer), includeSummary: settings.IncludeSummary}
}

func (renderer *rawRenderer) Begin(tree *types.TreeOutputNode) error {
	if _, err := fmt.Fprintln(renderer.writer, treeHeading); err != nil {
		return err
	}
	if err := WriteTreeRaw(renderer.writer, tree); err != nil {
		return err
	}
	_, err := fmt.Fprintf(renderer.writer, "\n%s\n\n", treeSeparator)
	return err
}

func (renderer *rawRenderer) Section(section types.FileOutput) error {
	header := fmt.Sprintf(fileHeaderFormat, section.Path)
	if section.Tokens > 0 {
		header = fmt.Sprintf(fileTokensFormat, section.Path, section.Tokens)
	}
	if _, err := fmt.Fprintf(renderer.writer, "%s\n%s\n", header, separatorLine); err != nil {
		return err
	}
	if _, err := io.WriteString(renderer.writer, section.Content); err != nil {
		return err
	}
	// Content is written verbatim; the closing separator always starts its own line.
	if section.Content != "" && !strings.HasSuffix(section.Content, "\n") {
		if _, err := io.WriteString(renderer.writer, "\n"); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(renderer.writer, "%s\n\n", separatorLine)
	return err
}

func (renderer *rawRenderer) Flush(summary types.OutputSummary) error {
	if renderer.includeSummary {
		if _, err := fmt.Fprintln(renderer.writer, FormatSummaryLine(summary)); err != nil {
			return err
		}
	}
	return renderer.writer.Flush()
}
