package ingest

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractPlainText(t *testing.T) {
	ext, err := Extract("plan.txt", []byte("06:00 - 07:00 Workout"))
	require.NoError(t, err)
	assert.Equal(t, "06:00 - 07:00 Workout", ext.Text)
	assert.Nil(t, ext.Rows)
	assert.Nil(t, ext.Pages)
}

func TestExtractCSV(t *testing.T) {
	data := []byte("day,time,activity\nMonday,09:00 - 10:30,Algorithms class\n")

	ext, err := Extract("plan.csv", data)
	require.NoError(t, err)
	require.Len(t, ext.Rows, 2)
	assert.Equal(t, []string{"Monday", "09:00 - 10:30", "Algorithms class"}, ext.Rows[1])
}

func TestExtractCSVMalformed(t *testing.T) {
	// Unclosed quote makes the CSV reader fail.
	_, err := Extract("plan.csv", []byte("a,\"b\nc,d"))
	require.Error(t, err)

	var pe *ParseError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "plan.csv", pe.Filename)
	assert.Contains(t, pe.Error(), "could not read schedule")
}

func TestExtractUnsupportedExtension(t *testing.T) {
	_, err := Extract("plan.docx", []byte("whatever"))
	require.Error(t, err)

	var pe *ParseError
	require.True(t, errors.As(err, &pe))
	assert.Contains(t, pe.Reason, "unsupported file type")
}

func TestExtractCorruptPDF(t *testing.T) {
	_, err := Extract("plan.pdf", []byte("not actually a pdf"))
	require.Error(t, err)

	var pe *ParseError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "plan.pdf", pe.Filename)
	// Multi-line, human-readable message.
	assert.Contains(t, pe.Error(), "\n")
}

func TestParseErrorUnwrap(t *testing.T) {
	inner := errors.New("boom")
	pe := &ParseError{Filename: "f", Reason: "r", Err: inner}
	assert.ErrorIs(t, pe, inner)
}
