package extract

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/poiesic/indexit/core"
)

// Docx extracts paragraph and table text from Word documents.
// A .docx file is a ZIP archive; the body lives in word/document.xml.
type Docx struct{}

// NewDocx creates the DOCX extractor.
func NewDocx() *Docx {
	return &Docx{}
}

// Method identifies the extraction technique.
func (d *Docx) Method() string {
	return "docx"
}

// Extract returns paragraphs followed by table content, one table row
// per line with cells joined by tabs.
func (d *Docx) Extract(ctx context.Context, path string) (string, error) {
	reader, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("%w: not a valid docx archive: %v", core.ErrCorruptFile, err)
	}
	defer reader.Close()

	content, err := readArchiveFile(&reader.Reader, "word/document.xml")
	if err != nil {
		return "", err
	}

	var doc docxDocument
	if err := xml.Unmarshal(content, &doc); err != nil {
		return "", fmt.Errorf("%w: malformed document.xml: %v", core.ErrCorruptFile, err)
	}

	var sb strings.Builder
	for _, para := range doc.Body.Paragraphs {
		text := para.text()
		if text == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(text)
	}

	for _, table := range doc.Body.Tables {
		for _, row := range table.Rows {
			cells := make([]string, 0, len(row.Cells))
			for _, cell := range row.Cells {
				var cellText strings.Builder
				for _, para := range cell.Paragraphs {
					if cellText.Len() > 0 {
						cellText.WriteString(" ")
					}
					cellText.WriteString(para.text())
				}
				cells = append(cells, strings.TrimSpace(cellText.String()))
			}
			line := strings.TrimSpace(strings.Join(cells, "\t"))
			if line == "" {
				continue
			}
			if sb.Len() > 0 {
				sb.WriteString("\n")
			}
			sb.WriteString(line)
		}
	}

	return sb.String(), nil
}

type docxDocument struct {
	Body struct {
		Paragraphs []docxParagraph `xml:"p"`
		Tables     []docxTable     `xml:"tbl"`
	} `xml:"body"`
}

type docxParagraph struct {
	Runs []struct {
		Text []struct {
			Content string `xml:",chardata"`
		} `xml:"t"`
	} `xml:"r"`
}

func (p docxParagraph) text() string {
	var sb strings.Builder
	for _, run := range p.Runs {
		for _, t := range run.Text {
			sb.WriteString(t.Content)
		}
	}
	return strings.TrimSpace(sb.String())
}

type docxTable struct {
	Rows []struct {
		Cells []struct {
			Paragraphs []docxParagraph `xml:"p"`
		} `xml:"tc"`
	} `xml:"tr"`
}

// readArchiveFile pulls one named entry out of a ZIP archive.
func readArchiveFile(reader *zip.Reader, name string) ([]byte, error) {
	for _, file := range reader.File {
		if file.Name != name {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return nil, fmt.Errorf("%w: opening %s: %v", core.ErrCorruptFile, name, err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("%w: reading %s: %v", core.ErrCorruptFile, name, err)
		}
		return content, nil
	}
	return nil, fmt.Errorf("%w: archive is missing %s", core.ErrCorruptFile, name)
}
