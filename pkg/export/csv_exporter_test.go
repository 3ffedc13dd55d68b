package export

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSVExporterRender(t *testing.T) {
	exporter := NewCSVExporter()
	data := Dataset{
		Headers: []string{"Start", "Reference", "Carrier"},
		Rows: []map[string]string{
			{"Start": "09:00", "Reference": "PO-1", "Carrier": "Acme"},
			{"Start": "10:30", "Reference": "PO-2"},
		},
	}

	out, err := exporter.Render(data)
	require.NoError(t, err)
	assert.Equal(t, "Start,Reference,Carrier\n09:00,PO-1,Acme\n10:30,PO-2,\n", string(out))
}

func TestCSVExporterRequiresHeaders(t *testing.T) {
	exporter := NewCSVExporter()
	_, err := exporter.Render(Dataset{})
	require.Error(t, err)
}

func TestPDFExporterRender(t *testing.T) {
	exporter := NewPDFExporter()
	data := Dataset{
		Headers: []string{"Start", "Reference"},
		Rows:    []map[string]string{{"Start": "09:00", "Reference": "PO-1"}},
	}

	out, err := exporter.Render(data, "Dock Day Sheet", "North Dock — 2025-06-09")
	require.NoError(t, err)
	assert.True(t, len(out) > 0)
	assert.Equal(t, "%PDF", string(out[:4]))
}

func TestPDFExporterRequiresHeaders(t *testing.T) {
	exporter := NewPDFExporter()
	_, err := exporter.Render(Dataset{}, "title", "")
	require.Error(t, err)
}
