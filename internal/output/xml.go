package output

import (
	"bufio"
	"encoding/xml"
	"io"

	"github.com/temirov/flatten/internal/types"
)

const (
	xmlRootElement    = "flatten"
	xmlRootAttribute  = "root"
	xmlTreeElement    = "tree"
	xmlFilesElement   = "files"
	xmlFileElement    = "file"
	xmlSummaryElement = "summary"
)

type xmlRenderer struct {
	writer         *bufio.Writer
	encoder        *xml.Encoder
	includeSummary bool
	root           xml.StartElement
	files          xml.StartElement
}

func newXMLRenderer(writer io.Writer, settings Settings) *xmlRenderer {
	bufferedWriter := bufio.NewWriter(writer)
	encoder := xml.NewEncoder(bufferedWriter)
	encoder.Indent(indentPrefix, indentSpacer)
	return &xmlRenderer{writer: bufferedWriter, encoder: encoder, includeSummary: settings.IncludeSummary}
}

func (renderer *xmlRenderer) Begin(tree *types.TreeOutputNode) error {
	if _, err := io.WriteString(renderer.writer, xml.Header); err != nil {
		return err
	}
	renderer.root = xml.StartElement{Name: xml.Name{Local: xmlRootElement}}
	if tree != nil {
		renderer.root.Attr = append(renderer.root.Attr, xml.Attr{Name: xml.Name{Local: xmlRootAttribute}, Value: tree.Name})
	}
	if err := renderer.encoder.EncodeToken(renderer.root); err != nil {
		return err
	}
	treeStart := xml.StartElement{Name: xml.Name{Local: xmlTreeElement}}
	if err := renderer.encoder.EncodeToken(treeStart); err != nil {
		return err
	}
	if tree != nil {
		if err := renderer.encoder.Encode(tree); err != nil {
			return err
		}
	}
	if err := renderer.encoder.EncodeToken(treeStart.End()); err != nil {
		return err
	}
	renderer.files = xml.StartElement{Name: xml.Name{Local: xmlFilesElement}}
	return renderer.encoder.EncodeToken(renderer.files)
}

func (renderer *xmlRenderer) Section(section types.FileOutput) error {
	return renderer.encoder.EncodeElement(section, xml.StartElement{Name: xml.Name{Local: xmlFileElement}})
}

func (renderer *xmlRenderer) Flush(summary types.OutputSummary) error {
	if err := renderer.encoder.EncodeToken(renderer.files.End()); err != nil {
		return err
	}
	if renderer.includeSummary {
		if err := renderer.encoder.EncodeElement(summary, xml.StartElement{Name: xml.Name{Local: xmlSummaryElement}}); err != nil {
			return err
		}
	}
	if err := renderer.encoder.EncodeToken(renderer.root.End()); err != nil {
		return err
	}
	if err := renderer.encoder.Flush(); err != nil {
		return err
	}
	if _, err := io.WriteString(renderer.writer, "\n"); err != nil {
		return err
	}
	return renderer.writer.Flush()
}
