package export

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/samanhappy/selectly/pkg/storage"
)

func sampleRecords() []storage.CollectionRecord {
	created := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	return []storage.CollectionRecord{
		{
			ID:          "01J6XK2Z8QW4N5M3P2R1T0V9X8",
			Content:     `He said "hello", then left`,
			Translation: "他说\"你好\"，然后离开了",
			Note:        "line one\nline two",
			SourceURL:   "https://example.com/a",
			SourceTitle: "Example, Inc.",
			Language:    "en",
			CreatedAt:   created,
		},
		{
			ID:        "01J6XK3A9RW4N5M3P2R1T0V9Y1",
			Content:   "plain text",
			CreatedAt: created.Add(time.Minute),
		},
	}
}

func TestWriteRecordsCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteRecordsCSV(&buf, sampleRecords()))

	out := buf.String()
	assert.Contains(t, out, `"He said ""hello"", then left"`, "embedded quotes are doubled")

	rows, err := csv.NewReader(bytes.NewReader(buf.Bytes())).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3, "header plus two records")
	assert.Equal(t, recordHeader, rows[0])
	assert.Equal(t, `He said "hello", then left`, rows[1][1])
	assert.Equal(t, "line one\nline two", rows[1][3], "newlines survive quoting")
	assert.Equal(t, "plain text", rows[2][1])
}

func TestWriteRecordsCSVEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteRecordsCSV(&buf, nil))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 1, "header only")
}

func TestWriteRecordsXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteRecordsXLSX(&buf, sampleRecords()))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(recordsSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "content", rows[0][1])
	assert.Equal(t, `He said "hello", then left`, rows[1][1])
	assert.Equal(t, "plain text", rows[2][1])
}
