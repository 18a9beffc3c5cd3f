package extract

import (
	"archive/zip"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/indexit/core"
)

// mockRunner is a test double for CommandRunner.
type mockRunner struct {
	output []byte
	err    error
}

func (m *mockRunner) Run(_ context.Context, _ string, _ ...string) ([]byte, error) {
	return m.output, m.err
}

func writeTempFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

// writeZipFixture builds an in-memory office archive on disk.
func writeZipFixture(t *testing.T, name string, entries map[string]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	f, err := os.Create(path)
	require.NoError(t, err)
	w := zip.NewWriter(f)
	for entry, content := range entries {
		ew, err := w.Create(entry)
		require.NoError(t, err)
		_, err = ew.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())
	return path
}

func TestRegistryDispatch(t *testing.T) {
	registry := DefaultRegistry(nil)

	tests := []struct {
		filename string
		method   string
	}{
		{"notes.txt", "plaintext"},
		{"README.md", "plaintext"},
		{"report.PDF", "pdftotext"},
		{"contract.docx", "docx"},
		{"budget.xlsx", "xlsx"},
		{"deck.pptx", "pptx"},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			extractor, err := registry.ForFile(tt.filename)
			require.NoError(t, err)
			assert.Equal(t, tt.method, extractor.Method())
		})
	}
}

func TestRegistryUnsupportedFormat(t *testing.T) {
	registry := DefaultRegistry(nil)

	_, err := registry.ForFile("archive.tar.gz")
	assert.ErrorIs(t, err, core.ErrUnsupportedFormat)

	_, err = registry.ForFile("no-extension")
	assert.ErrorIs(t, err, core.ErrUnsupportedFormat)
}

func TestPlainTextUTF8(t *testing.T) {
	path := writeTempFile(t, "a.txt", []byte("hello\r\nworld\r"))

	text, err := NewPlainText().Extract(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "hello\nworld\n", text)
}

func TestPlainTextWindows1252Fallback(t *testing.T) {
	// "café" with 0xE9, invalid as UTF-8.
	path := writeTempFile(t, "legacy.txt", []byte{'c', 'a', 'f', 0xE9})

	text, err := NewPlainText().Extract(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "café", text)
}

func TestPlainTextRejectsBinary(t *testing.T) {
	path := writeTempFile(t, "bin.txt", []byte{0x00, 0x01, 0x02, 'a'})

	_, err := NewPlainText().Extract(context.Background(), path)
	assert.ErrorIs(t, err, core.ErrEncoding)
}

func TestPDFWithMockRunner(t *testing.T) {
	if _, err := exec.LookPath("pdftotext"); err != nil {
		t.Skip("pdftotext not in PATH, skipping mock runner test")
	}

	runner := &mockRunner{output: []byte("first page\fsecond page")}
	path := writeTempFile(t, "doc.pdf", []byte("%PDF-1.4"))

	text, err := NewPDF(runner).Extract(context.Background(), path)
	require.NoError(t, err)
	assert.Contains(t, text, "[Page 1]\nfirst page")
	assert.Contains(t, text, "[Page 2]\nsecond page")
}

func TestPDFRunnerError(t *testing.T) {
	if _, err := exec.LookPath("pdftotext"); err != nil {
		t.Skip("pdftotext not in PATH, skipping runner error test")
	}

	runner := &mockRunner{err: exec.ErrNotFound}
	path := writeTempFile(t, "doc.pdf", []byte("%PDF-1.4"))

	_, err := NewPDF(runner).Extract(context.Background(), path)
	assert.ErrorIs(t, err, core.ErrCorruptFile)
}

func TestDocxParagraphsAndTables(t *testing.T) {
	document := `<?xml version="1.0"?>
<document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <body>
    <p><r><t>First paragraph.</t></r></p>
    <p><r><t>Second </t></r><r><t>paragraph.</t></r></p>
    <tbl>
      <tr><tc><p><r><t>Name</t></r></p></tc><tc><p><r><t>Value</t></r></p></tc></tr>
      <tr><tc><p><r><t>alpha</t></r></p></tc><tc><p><r><t>1</t></r></p></tc></tr>
    </tbl>
  </body>
</document>`
	path := writeZipFixture(t, "doc.docx", map[string]string{
		"word/document.xml": document,
	})

	text, err := NewDocx().Extract(context.Background(), path)
	require.NoError(t, err)
	assert.Contains(t, text, "First paragraph.\nSecond paragraph.")
	assert.Contains(t, text, "Name\tValue")
	assert.Contains(t, text, "alpha\t1")
}

func TestDocxNotAnArchive(t *testing.T) {
	path := writeTempFile(t, "doc.docx", []byte("not a zip"))

	_, err := NewDocx().Extract(context.Background(), path)
	assert.ErrorIs(t, err, core.ErrCorruptFile)
}

func TestDocxMissingDocumentXML(t *testing.T) {
	path := writeZipFixture(t, "doc.docx", map[string]string{
		"word/other.xml": "<x/>",
	})

	_, err := NewDocx().Extract(context.Background(), path)
	assert.ErrorIs(t, err, core.ErrCorruptFile)
}

func TestXlsxSharedStringsAndFormulas(t *testing.T) {
	sharedStrings := `<?xml version="1.0"?>
<sst><si><t>Region</t></si><si><t>Total</t></si><si><t>North</t></si></sst>`
	sheet := `<?xml version="1.0"?>
<worksheet>
  <sheetData>
    <row><c t="s"><v>0</v></c><c t="s"><v>1</v></c></row>
    <row><c t="s"><v>2</v></c><c><f>SUM(B2:B9)</f><v>1200</v></c></row>
    <row><c><v>42</v></c></row>
  </sheetData>
</worksheet>`
	path := writeZipFixture(t, "book.xlsx", map[string]string{
		"xl/sharedStrings.xml":     sharedStrings,
		"xl/worksheets/sheet1.xml": sheet,
	})

	text, err := NewXlsx().Extract(context.Background(), path)
	require.NoError(t, err)
	assert.Contains(t, text, "[Sheet 1]")
	assert.Contains(t, text, "Region\tTotal")
	assert.Contains(t, text, "North\t[FORMULA]")
	assert.Contains(t, text, "42")
}

func TestXlsxNoWorksheets(t *testing.T) {
	path := writeZipFixture(t, "book.xlsx", map[string]string{
		"xl/workbook.xml": "<workbook/>",
	})

	_, err := NewXlsx().Extract(context.Background(), path)
	assert.ErrorIs(t, err, core.ErrCorruptFile)
}

func TestPptxSlideMarkers(t *testing.T) {
	slide1 := `<?xml version="1.0"?>
<sld xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main">
  <a:t>Welcome</a:t><a:t>Agenda</a:t>
</sld>`
	slide2 := `<?xml version="1.0"?>
<sld xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main">
  <a:t>Conclusions</a:t>
</sld>`
	path := writeZipFixture(t, "deck.pptx", map[string]string{
		"ppt/slides/slide1.xml": slide1,
		"ppt/slides/slide2.xml": slide2,
	})

	text, err := NewPptx().Extract(context.Background(), path)
	require.NoError(t, err)
	assert.Contains(t, text, "[Slide 1]\nWelcome\nAgenda")
	assert.Contains(t, text, "[Slide 2]\nConclusions")
}

func TestPptxSlideOrderIsNumeric(t *testing.T) {
	entries := map[string]string{}
	for _, n := range []string{"10", "2", "1"} {
		entries["ppt/slides/slide"+n+".xml"] = `<sld xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main"><a:t>slide ` + n + `</a:t></sld>`
	}
	path := writeZipFixture(t, "deck.pptx", entries)

	text, err := NewPptx().Extract(context.Background(), path)
	require.NoError(t, err)

	first := "[Slide 1]\nslide 1"
	second := "[Slide 2]\nslide 2"
	third := "[Slide 3]\nslide 10"
	assert.Contains(t, text, first)
	assert.Contains(t, text, second)
	assert.Contains(t, text, third)
	assert.Less(t, strings.Index(text, first), strings.Index(text, second))
	assert.Less(t, strings.Index(text, second), strings.Index(text, third))
}
