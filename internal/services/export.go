package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"

	"nva-backoffice/internal/utils"

	"github.com/xuri/excelize/v2"
)

var exportHeader = []string{"ID", "Name", "Clients", "Products", "Events", "PresenceRate", "Revenue", "Score", "Rank"}

const exportSheet = "Performance"

// Export is a rendered file ready to be sent as an attachment.
type Export struct {
	Filename    string
	ContentType string
	Data        []byte
}

type ExportService struct {
	perf  *PerformanceService
	clock Clock
}

func NewExportService(perf *PerformanceService, clock Clock) *ExportService {
	return &ExportService{perf: perf, clock: clock}
}

func (s *ExportService) snapshot(ctx context.Context, rawMonth string) (utils.Month, *Snapshot, error) {
	month, err := s.clock.Month(rawMonth)
	if err != nil {
		return utils.Month{}, nil, err
	}
	snap, err := s.perf.snapshot(ctx, month)
	if err != nil {
		return utils.Month{}, nil, err
	}
	return month, snap, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// CSV renders the month's live snapshot as agent_performance_YYYY_MM.csv.
func (s *ExportService) CSV(ctx context.Context, rawMonth string) (*Export, error) {
	month, snap, err := s.snapshot(ctx, rawMonth)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(exportHeader); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	for _, p := range snap.Agents {
		record := []string{
			strconv.FormatUint(uint64(p.AgentID), 10),
			p.Name,
			strconv.Itoa(p.Clients),
			strconv.Itoa(p.Products),
			strconv.Itoa(p.Events),
			formatFloat(p.PresenceRate),
			formatFloat(p.Revenue),
			formatFloat(p.Score),
			strconv.Itoa(p.Rank),
		}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}

	return &Export{
		Filename:    fmt.Sprintf("agent_performance_%s.csv", month.FileSuffix()),
		ContentType: "text/csv",
		Data:        buf.Bytes(),
	}, nil
}

// XLSX renders the same table as CSV in a single sheet workbook.
func (s *ExportService) XLSX(ctx context.Context, rawMonth string) (*Export, error) {
	month, snap, err := s.snapshot(ctx, rawMonth)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(0), exportSheet); err != nil {
		return nil, fmt.Errorf("name sheet: %w", err)
	}

	header := make([]interface{}, len(exportHeader))
	for i, h := range exportHeader {
		header[i] = h
	}
	if err := f.SetSheetRow(exportSheet, "A1", &header); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}
	if err := f.SetCellStyle(exportSheet, "A1", "I1", bold); err != nil {
		return nil, fmt.Errorf("style header: %w", err)
	}

	for i, p := range snap.Agents {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		row := []interface{}{p.AgentID, p.Name, p.Clients, p.Products, p.Events, p.PresenceRate, p.Revenue, p.Score, p.Rank}
		if err := f.SetSheetRow(exportSheet, cell, &row); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+2, err)
		}
	}
	if err := f.SetColWidth(exportSheet, "B", "B", 28); err != nil {
		return nil, fmt.Errorf("size columns: %w", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("render workbook: %w", err)
	}
	return &Export{
		Filename:    fmt.Sprintf("agent_performance_%s.xlsx", month.FileSuffix()),
		ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		Data:        buf.Bytes(),
	}, nil
}
