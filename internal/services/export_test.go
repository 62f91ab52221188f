package services

import (
	"bytes"
	"encoding/csv"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestExportCSV(t *testing.T) {
	f := newFixture(t)
	alice, bob := seedMarch(f)
	svc := NewExportService(f.performanceService(), f.clock)

	out, err := svc.CSV(f.ctx, "2024-03")
	require.NoError(t, err)
	assert.Equal(t, "agent_performance_2024_03.csv", out.Filename)
	assert.Equal(t, "text/csv", out.ContentType)

	records, err := csv.NewReader(bytes.NewReader(out.Data)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"ID", "Name", "Clients", "Products", "Events", "PresenceRate", "Revenue", "Score", "Rank"}, records[0])
	assert.Equal(t, []string{uintString(alice.ID), "alice", "2", "3", "3", "75.00", "300.00", "87.50", "1"}, records[1])
	assert.Equal(t, uintString(bob.ID), records[2][0])
	assert.Equal(t, "2", records[2][8])
}

func TestExportCSVRejectsBadMonth(t *testing.T) {
	f := newFixture(t)
	_, err := NewExportService(f.performanceService(), f.clock).CSV(f.ctx, "2024-13")
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestExportXLSX(t *testing.T) {
	f := newFixture(t)
	seedMarch(f)
	svc := NewExportService(f.performanceService(), f.clock)

	out, err := svc.XLSX(f.ctx, "2024-03")
	require.NoError(t, err)
	assert.Equal(t, "agent_performance_2024_03.xlsx", out.Filename)

	book, err := excelize.OpenReader(bytes.NewReader(out.Data))
	require.NoError(t, err)
	defer func() { _ = book.Close() }()

	rows, err := book.GetRows(exportSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "PresenceRate", rows[0][5])
	assert.Equal(t, "alice", rows[1][1])
	assert.Equal(t, "87.5", rows[1][7])
}

func uintString(v uint) string {
	return strconv.FormatUint(uint64(v), 10)
}
