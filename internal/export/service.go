package export

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/mining-enricher/internal/entity"
	"github.com/joseph-ayodele/mining-enricher/internal/repository"
	"github.com/joseph-ayodele/mining-enricher/internal/utils"
)

const sheet = "Projects"

var headers = []string{
	"Project ID",
	"Name",
	"Company",
	"NPV (USD M)",
	"IRR (%)",
	"CAPEX (USD M)",
	"OPEX",
	"Mine Life (yrs)",
	"Stage",
	"Location",
	"Commodities",
	"Resource",
	"Reserve",
	"Description",
	"Updated At",
}

// Service is a tiny façade over the project store that produces XLSX bytes for exports.
type Service struct {
	projects repository.ProjectStore
	logger   *slog.Logger
}

func NewService(projects repository.ProjectStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{projects: projects, logger: logger}
}

// ExportProjectsXLSX returns a workbook with one row per project record.
// Absent fields are left blank, never written as zero.
func (s *Service) ExportProjectsXLSX(ctx context.Context) ([]byte, error) {
	start := time.Now()

	recs, err := s.projects.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("query projects: %w", err)
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	// rename the default sheet rather than leaving an empty one behind
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	for i, r := range recs {
		row := i + 2
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheet, cell, v)
		}
		num := func(col int, v *float64) {
			if v != nil {
				write(col, *v)
			}
		}
		str := func(col int, v *string) {
			if v != nil {
				write(col, *v)
			}
		}

		write(1, r.ID)
		write(2, r.Name)
		write(3, r.Company)
		num(4, r.NPV)
		num(5, r.IRR)
		num(6, r.Capex)
		num(7, r.Opex)
		num(8, r.MineLife)
		str(9, r.Stage)
		str(10, r.Location)
		write(11, strings.Join(r.Commodities, ", "))
		str(12, r.Resource)
		str(13, r.Reserve)
		write(14, utils.Truncate(utils.StrOrEmpty(r.Description), 500))
		if r.UpdatedAt != nil {
			write(15, r.UpdatedAt.UTC().Format(time.RFC3339))
		}
	}

	_ = f.SetColWidth(sheet, "A", "A", 18)
	_ = f.SetColWidth(sheet, "B", "C", 28)
	_ = f.SetColWidth(sheet, "D", "H", 14)
	_ = f.SetColWidth(sheet, "I", "K", 22)
	_ = f.SetColWidth(sheet, "L", "M", 36)
	_ = f.SetColWidth(sheet, "N", "N", 60)
	_ = f.SetColWidth(sheet, "O", "O", 22)
	_ = f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"rows", len(recs),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

// FieldSummary renders the known fields of r for terminal output.
func FieldSummary(r entity.ExtractionResult) []string {
	var out []string
	add := func(name string, v *float64) {
		if v != nil {
			out = append(out, fmt.Sprintf("%s=%g", name, *v))
		}
	}
	add("npv", r.NPV)
	add("irr", r.IRR)
	add("capex", r.Capex)
	add("opex", r.Opex)
	add("mine_life", r.MineLife)
	for _, kv := range []struct {
		name string
		v    *string
	}{{"stage", r.Stage}, {"location", r.Location}, {"resource", r.Resource}, {"reserve", r.Reserve}, {"description", r.Description}} {
		if kv.v != nil {
			out = append(out, fmt.Sprintf("%s=%q", kv.name, utils.Truncate(*kv.v, 60)))
		}
	}
	if len(r.Commodities) > 0 {
		out = append(out, "commodities="+strings.Join(r.Commodities, "|"))
	}
	return out
}
