package extract

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/poiesic/indexit/core"
)

// formulaPlaceholder replaces formula cells; formulas are never
// evaluated during extraction.
const formulaPlaceholder = "[FORMULA]"

// Xlsx extracts cell text from Excel workbooks. Each sheet becomes a
// marker line followed by tab-joined rows.
type Xlsx struct{}

// NewXlsx creates the XLSX extractor.
func NewXlsx() *Xlsx {
	return &Xlsx{}
}

// Method identifies the extraction technique.
func (x *Xlsx) Method() string {
	return "xlsx"
}

// Extract flattens every worksheet into delimiter-joined rows.
func (x *Xlsx) Extract(ctx context.Context, path string) (string, error) {
	reader, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("%w: not a valid xlsx archive: %v", core.ErrCorruptFile, err)
	}
	defer reader.Close()

	shared, err := readSharedStrings(&reader.Reader)
	if err != nil {
		return "", err
	}

	var sheetNames []string
	for _, file := range reader.File {
		if strings.HasPrefix(file.Name, "xl/worksheets/sheet") && strings.HasSuffix(file.Name, ".xml") {
			sheetNames = append(sheetNames, file.Name)
		}
	}
	if len(sheetNames) == 0 {
		return "", fmt.Errorf("%w: workbook has no worksheets", core.ErrCorruptFile)
	}
	sort.Slice(sheetNames, func(i, j int) bool {
		return sheetNumber(sheetNames[i]) < sheetNumber(sheetNames[j])
	})

	var sb strings.Builder
	for i, name := range sheetNames {
		content, err := readArchiveFile(&reader.Reader, name)
		if err != nil {
			return "", err
		}

		var sheet xlsxWorksheet
		if err := xml.Unmarshal(content, &sheet); err != nil {
			return "", fmt.Errorf("%w: malformed %s: %v", core.ErrCorruptFile, name, err)
		}

		rows := sheet.lines(shared)
		if len(rows) == 0 {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "[Sheet %d]\n", i+1)
		sb.WriteString(strings.Join(rows, "\n"))
	}

	return sb.String(), nil
}

type xlsxWorksheet struct {
	SheetData struct {
		Rows []struct {
			Cells []xlsxCell `xml:"c"`
		} `xml:"row"`
	} `xml:"sheetData"`
}

type xlsxCell struct {
	Type    string `xml:"t,attr"`
	Value   string `xml:"v"`
	Formula string `xml:"f"`
	Inline  struct {
		Text string `xml:"t"`
	} `xml:"is"`
}

func (w xlsxWorksheet) lines(shared []string) []string {
	var lines []string
	for _, row := range w.SheetData.Rows {
		cells := make([]string, 0, len(row.Cells))
		for _, cell := range row.Cells {
			cells = append(cells, cell.text(shared))
		}
		line := strings.TrimRight(strings.Join(cells, "\t"), "\t")
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

func (c xlsxCell) text(shared []string) string {
	if c.Formula != "" {
		return formulaPlaceholder
	}
	switch c.Type {
	case "s":
		idx, err := strconv.Atoi(c.Value)
		if err != nil || idx < 0 || idx >= len(shared) {
			return ""
		}
		return shared[idx]
	case "inlineStr":
		return c.Inline.Text
	default:
		return c.Value
	}
}

type xlsxSharedStrings struct {
	Items []struct {
		Text string `xml:"t"`
		Runs []struct {
			Text string `xml:"t"`
		} `xml:"r"`
	} `xml:"si"`
}

func readSharedStrings(reader *zip.Reader) ([]string, error) {
	content, err := readArchiveFile(reader, "xl/sharedStrings.xml")
	if err != nil {
		// The shared string table is optional.
		return nil, nil
	}

	var sst xlsxSharedStrings
	if err := xml.Unmarshal(content, &sst); err != nil {
		return nil, fmt.Errorf("%w: malformed sharedStrings.xml: %v", core.ErrCorruptFile, err)
	}

	strs := make([]string, len(sst.Items))
	for i, item := range sst.Items {
		if item.Text != "" {
			strs[i] = item.Text
			continue
		}
		var sb strings.Builder
		for _, run := range item.Runs {
			sb.WriteString(run.Text)
		}
		strs[i] = sb.String()
	}
	return strs, nil
}

func sheetNumber(name string) int {
	digits := strings.TrimSuffix(strings.TrimPrefix(name, "xl/worksheets/sheet"), ".xml")
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0
	}
	return n
}
