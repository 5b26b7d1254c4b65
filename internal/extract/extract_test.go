package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	appErr "github.com/xxxsen/caseindex/internal/pkg/errors"
)

func TestFileType(t *testing.T) {
	require.Equal(t, ".pdf", FileType("Brief.PDF"))
	require.Equal(t, ".md", FileType("notes/readme.md"))
	require.Equal(t, "", FileType("Makefile"))
	require.Equal(t, ".txt", NormalizeExt("TXT"))
}

func TestRegisteredDefaults(t *testing.T) {
	require.Equal(t, []string{".docx", ".md", ".pdf", ".txt", ".xlsx"}, Registered())
}

func TestExtractPlainText(t *testing.T) {
	text, err := Extract(context.Background(), []byte("hello\nworld"), ".txt")
	require.NoError(t, err)
	require.Equal(t, "hello\nworld", text)
}

func TestExtractMarkdown(t *testing.T) {
	src := "# Title\n\nSome *emphasis* here.\n\n```go\nfmt.Println(1)\n```\n\n- one\n- two\n"
	text, err := Extract(context.Background(), []byte(src), ".md")
	require.NoError(t, err)
	require.Contains(t, text, "Title")
	require.Contains(t, text, "Some emphasis here.")
	require.Contains(t, text, "fmt.Println(1)")
	require.Contains(t, text, "one")
	require.Contains(t, text, "two")
	require.NotContains(t, text, "```")
}

func TestExtractMarkdownKeepsHTMLAndAutolinks(t *testing.T) {
	src := "# Exhibit\n\n<div>Sealed settlement amount 500000</div>\n\nSee <https://court.example/doc/42> for filing.\n"
	text, err := Extract(context.Background(), []byte(src), ".md")
	require.NoError(t, err)
	require.Equal(t, "Exhibit\n\n<div>Sealed settlement amount 500000</div>\n\nSee https://court.example/doc/42 for filing.", text)

	text, err = Extract(context.Background(), []byte("Filed <span>under seal</span> today.\n"), ".md")
	require.NoError(t, err)
	require.Equal(t, "Filed <span>under seal</span> today.", text)

	text, err = Extract(context.Background(), []byte("<pre>\nexhibit 7\n</pre>\n"), ".md")
	require.NoError(t, err)
	require.Contains(t, text, "exhibit 7")
	require.Contains(t, text, "<pre>")
	require.Contains(t, text, "</pre>")
}

func buildDOCX(t *testing.T, documentXML string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(documentXML))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestExtractDOCXMalformedXML(t *testing.T) {
	data := buildDOCX(t, `<?xml version="1.0"?><w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body><w:p><w:r><w:t>First</w:t></w:r></w:p><w:p><w:r><w:t>Sec`)
	_, err := Extract(context.Background(), data, ".docx")
	require.Error(t, err)
	require.True(t, errors.Is(err, appErr.ErrExtraction))

	data = buildDOCX(t, `<w:document xmlns:w="x"><w:body><w:p><w:t>ok</w:t></w:p></w:bogus></w:document>`)
	_, err = Extract(context.Background(), data, ".docx")
	require.True(t, errors.Is(err, appErr.ErrExtraction))
}

func TestExtractDOCX(t *testing.T) {
	data := buildDOCX(t, `<?xml version="1.0"?><w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body><w:p><w:r><w:t>First paragraph</w:t></w:r></w:p><w:p><w:r><w:t>Second</w:t></w:r></w:p></w:body></w:document>`)

	text, err := Extract(context.Background(), data, ".docx")
	require.NoError(t, err)
	require.Equal(t, "First paragraph\nSecond\n", text)
}

func TestExtractXLSX(t *testing.T) {
	f := excelize.NewFile()
	require.NoError(t, f.SetCellValue("Sheet1", "A1", "name"))
	require.NoError(t, f.SetCellValue("Sheet1", "B1", "amount"))
	require.NoError(t, f.SetCellValue("Sheet1", "A2", "filing"))
	require.NoError(t, f.SetCellValue("Sheet1", "B2", 42))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	text, err := Extract(context.Background(), buf.Bytes(), ".xlsx")
	require.NoError(t, err)
	require.Contains(t, text, "Sheet: Sheet1")
	require.Contains(t, text, "name\tamount")
	require.Contains(t, text, "filing\t42")
}

func TestExtractFailuresAreExtractionErrors(t *testing.T) {
	_, err := Extract(context.Background(), []byte("not a pdf"), ".pdf")
	require.Error(t, err)
	require.True(t, errors.Is(err, appErr.ErrExtraction))

	_, err = Extract(context.Background(), []byte("x"), ".rtf")
	require.True(t, errors.Is(err, appErr.ErrExtraction))

	_, err = Extract(context.Background(), []byte("not a zip"), ".docx")
	require.True(t, errors.Is(err, appErr.ErrExtraction))
}
