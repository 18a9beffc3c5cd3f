package extract

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/poiesic/indexit/core"
)

// PDF extracts text by shelling out to pdftotext from poppler-utils.
type PDF struct {
	runner CommandRunner
}

// NewPDF creates the PDF extractor. Pass nil to run the real tool.
func NewPDF(runner CommandRunner) *PDF {
	if runner == nil {
		runner = execRunner{}
	}
	return &PDF{runner: runner}
}

// Method identifies the extraction technique.
func (p *PDF) Method() string {
	return "pdftotext"
}

// Extract converts the PDF to text with one marker line per page.
func (p *PDF) Extract(ctx context.Context, path string) (string, error) {
	if _, err := exec.LookPath("pdftotext"); err != nil {
		return "", fmt.Errorf("%w: pdftotext not found in PATH (install poppler-utils)", core.ErrMissingDependency)
	}

	// "-" sends output to stdout; pdftotext separates pages with
	// form feed characters.
	output, err := p.runner.Run(ctx, "pdftotext", "-layout", "-enc", "UTF-8", path, "-")
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("%w: pdftotext failed: %v", core.ErrCorruptFile, err)
	}

	pages := strings.Split(string(output), "\f")
	var sb strings.Builder
	for i, page := range pages {
		page = strings.TrimSpace(page)
		if page == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "[Page %d]\n", i+1)
		sb.WriteString(normalizeNewlines(page))
	}

	return sb.String(), nil
}
