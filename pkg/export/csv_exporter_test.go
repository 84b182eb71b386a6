package export

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSVExporterRender(t *testing.T) {
	exporter := NewCSVExporter()
	data := Dataset{
		Headers: []string{"Subject", "Final Grade"},
		Rows: []map[string]string{
			{"Subject": "Math", "Final Grade": "5.50"},
			{"Subject": "History"}, // missing cell renders empty
		},
	}

	out, err := exporter.Render(data)
	require.NoError(t, err)
	assert.Equal(t, "Subject,Final Grade\nMath,5.50\nHistory,\n", string(out))
}

func TestCSVExporterRequiresHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	require.Error(t, err)
}

func TestPDFExporterRender(t *testing.T) {
	exporter := NewPDFExporter()
	data := Dataset{
		Headers: []string{"Subject", "Final Grade"},
		Rows:    []map[string]string{{"Subject": "Math", "Final Grade": "5.50"}},
	}

	out, err := exporter.Render(data, "Report Card 2026/S1")
	require.NoError(t, err)
	assert.True(t, len(out) > 0)
	assert.Equal(t, "%PDF", string(out[:4]))
}
