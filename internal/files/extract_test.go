package files

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

var binaryBlob = []byte{0x00, 0x01, 0x02, 0x03, 0xde, 0xad, 0xbe, 0xef, 0x00, 0x7f}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name string
		file File
		want Format
	}{
		{"declared csv", File{Name: "upload", MimeType: "text/csv; charset=utf-8"}, FormatCSV},
		{"declared xlsx", File{Name: "upload", MimeType: xlsxMime}, FormatXLSX},
		{"declared json", File{Name: "upload", MimeType: "application/json"}, FormatText},
		{"extension pdf", File{Name: "Survey.PDF"}, FormatPDF},
		{"extension tsv", File{Name: "heights.tsv"}, FormatTSV},
		{"extension markdown", File{Name: "notes.md", MimeType: "application/octet-stream"}, FormatText},
		{"sniffed pdf", File{Name: "upload", Content: []byte("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n")}, FormatPDF},
		{"sniffed text", File{Name: "upload", Content: []byte("plain words about soil")}, FormatText},
		{"binary", File{Name: "blob.bin", MimeType: "application/octet-stream", Content: binaryBlob}, FormatUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectFormat(tt.file))
		})
	}
}

func TestExtractText_CSV(t *testing.T) {
	f := File{
		Name:     "trees.csv",
		MimeType: "text/csv",
		Content:  []byte("\ufeffspecies,height\r\n\"Oak, English\",12\r\n,\r\nBirch,9\r\n"),
	}
	text, err := ExtractText(f)
	require.NoError(t, err)
	assert.Equal(t, "species | height\nOak, English | 12\nBirch | 9", text)
}

func TestExtractText_TSVWithRaggedRows(t *testing.T) {
	text, err := ExtractText(File{Name: "heights.tsv", Content: []byte("species\theight\tnote\nAsh\t7\n")})
	require.NoError(t, err)
	assert.Equal(t, "species | height | note\nAsh | 7", text)
}

func TestExtractText_BinaryIsUnsupported(t *testing.T) {
	_, err := ExtractText(File{Name: "blob.bin", MimeType: "application/octet-stream", Content: binaryBlob})
	require.ErrorIs(t, err, ErrUnsupportedFormat)
	assert.Contains(t, err.Error(), "blob.bin")
}

func TestExtractText_BlankTextFile(t *testing.T) {
	_, err := ExtractText(File{Name: "blank.txt", Content: []byte("  \n\t\n")})
	assert.ErrorIs(t, err, ErrNoText)
}

func TestExtractText_InvalidUTF8IsDropped(t *testing.T) {
	text, err := ExtractText(File{Name: "notes.txt", Content: []byte("clay \xff\xfesoil")})
	require.NoError(t, err)
	assert.Equal(t, "clay soil", text)
}

func TestExtractText_XLSX(t *testing.T) {
	book := excelize.NewFile()
	defer book.Close()
	require.NoError(t, book.SetSheetRow("Sheet1", "A1", &[]any{"species", "height"}))
	require.NoError(t, book.SetSheetRow("Sheet1", "A2", &[]any{"Oak", 12}))
	buf, err := book.WriteToBuffer()
	require.NoError(t, err)

	text, err := ExtractText(File{Name: "trees.xlsx", MimeType: xlsxMime, Content: buf.Bytes()})
	require.NoError(t, err)
	assert.Equal(t, "Sheet: Sheet1\nspecies | height\nOak | 12", text)
}

func TestExtractText_MalformedPDF(t *testing.T) {
	f := File{Name: "survey.pdf", MimeType: "application/pdf", Content: []byte("%PDF-1.4\nthis is not a real document")}
	require.NotPanics(t, func() {
		_, err := ExtractText(f)
		assert.Error(t, err)
		assert.NotErrorIs(t, err, ErrUnsupportedFormat)
	})
}

func TestPrepare(t *testing.T) {
	f, err := Prepare(File{ID: "n", Name: "notes.txt", Content: []byte("  pruning: 150  \n")}, DefaultLimits())
	require.NoError(t, err)
	assert.True(t, f.Prepared())
	assert.Equal(t, "pruning: 150", f.Text)
	assert.False(t, f.Truncated)

	_, err = Prepare(File{ID: "b", Name: "blob.bin", Content: binaryBlob}, DefaultLimits())
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestExcerpt(t *testing.T) {
	t.Run("short text is kept whole", func(t *testing.T) {
		got, truncated, err := Excerpt("Oak | 12", DefaultLimits())
		require.NoError(t, err)
		assert.False(t, truncated)
		assert.Equal(t, "Oak | 12", got)
	})

	t.Run("multi-byte text is cut on rune boundaries", func(t *testing.T) {
		text := strings.Repeat("é🌳 ", 60)
		got, truncated, err := Excerpt(text, Limits{MaxRunes: 50, ChunkSize: 20})
		require.NoError(t, err)
		assert.True(t, truncated)
		assert.NotEmpty(t, got)
		assert.True(t, utf8.ValidString(got))
		assert.LessOrEqual(t, utf8.RuneCountInString(got), 50)
		assert.True(t, strings.HasPrefix(got, "é🌳"))
	})

	t.Run("paragraphs are kept in order", func(t *testing.T) {
		text := "First paragraph about oaks.\n\nSecond paragraph about ash.\n\nThird paragraph about birch."
		got, truncated, err := Excerpt(text, Limits{MaxRunes: 60, ChunkSize: 30})
		require.NoError(t, err)
		assert.True(t, truncated)
		assert.True(t, strings.HasPrefix(got, "First paragraph about oaks."))
		assert.NotContains(t, got, "birch")
	})
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "aé🌳", truncateRunes("aé🌳b", 3))
	assert.Equal(t, "aé", truncateRunes("aé", 5))
	assert.Equal(t, "", truncateRunes("aé", 0))
}
