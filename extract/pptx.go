package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/poiesic/indexit/core"
)

// Pptx extracts slide text from PowerPoint presentations. Each slide
// becomes a marker line followed by its text runs.
type Pptx struct{}

// NewPptx creates the PPTX extractor.
func NewPptx() *Pptx {
	return &Pptx{}
}

// Method identifies the extraction technique.
func (p *Pptx) Method() string {
	return "pptx"
}

// Extract walks slides in numeric order and collects their text runs.
func (p *Pptx) Extract(ctx context.Context, path string) (string, error) {
	reader, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("%w: not a valid pptx archive: %v", core.ErrCorruptFile, err)
	}
	defer reader.Close()

	var slideNames []string
	for _, file := range reader.File {
		if strings.HasPrefix(file.Name, "ppt/slides/slide") && strings.HasSuffix(file.Name, ".xml") {
			slideNames = append(slideNames, file.Name)
		}
	}
	if len(slideNames) == 0 {
		return "", fmt.Errorf("%w: presentation has no slides", core.ErrCorruptFile)
	}
	sort.Slice(slideNames, func(i, j int) bool {
		return slideNumber(slideNames[i]) < slideNumber(slideNames[j])
	})

	var sb strings.Builder
	for i, name := range slideNames {
		content, err := readArchiveFile(&reader.Reader, name)
		if err != nil {
			return "", err
		}

		runs, err := slideTextRuns(content)
		if err != nil {
			return "", fmt.Errorf("%w: malformed %s: %v", core.ErrCorruptFile, name, err)
		}
		if len(runs) == 0 {
			continue
		}

		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "[Slide %d]\n", i+1)
		sb.WriteString(strings.Join(runs, "\n"))
	}

	return sb.String(), nil
}

// slideTextRuns scans the slide XML for DrawingML text elements.
// Token scanning sidesteps the deeply nested shape tree.
func slideTextRuns(content []byte) ([]string, error) {
	decoder := xml.NewDecoder(bytes.NewReader(content))
	var runs []string
	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		start, ok := token.(xml.StartElement)
		if !ok || start.Name.Local != "t" {
			continue
		}

		var text string
		if err := decoder.DecodeElement(&text, &start); err != nil {
			return nil, err
		}
		text = strings.TrimSpace(text)
		if text != "" {
			runs = append(runs, text)
		}
	}
	return runs, nil
}

func slideNumber(name string) int {
	digits := strings.TrimSuffix(strings.TrimPrefix(name, "ppt/slides/slide"), ".xml")
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0
	}
	return n
}
