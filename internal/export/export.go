// Package export renders rental requests as an XLSX workbook.
package export

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"farmrent/internal/models"
	"farmrent/internal/pricing"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

const sheetName = "Requests"

var columns = []struct {
	title string
	width float64
}{
	{"Request ID", 38},
	{"Machinery", 24},
	{"Farmer", 22},
	{"Provider", 22},
	{"Start", 12},
	{"End", 12},
	{"Days", 8},
	{"Daily rate", 12},
	{"Total price", 14},
	{"Fuel", 10},
	{"Fuel cost", 12},
	{"Status", 12},
	{"Agreement", 24},
	{"Dispute", 30},
}

var statusFill = map[models.RequestStatus]string{
	models.StatusPending:   "#FFF2CC",
	models.StatusConfirmed: "#E2EFDA",
	models.StatusRejected:  "#F8CBAD",
	models.StatusCompleted: "#DDEBF7",
	models.StatusCancelled: "#EDEDED",
}

// WriteRequests writes one sheet with a row per request and a totals row.
func WriteRequests(w io.Writer, title string, requests []*models.RentalRequest) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return fmt.Errorf("error creating sheet: %w", err)
	}
	f.SetActiveSheet(index)
	_ = f.DeleteSheet("Sheet1")

	lastCol, _ := excelize.ColumnNumberToName(len(columns))
	_ = f.SetCellValue(sheetName, "A1", title)
	_ = f.MergeCell(sheetName, "A1", lastCol+"1")
	titleStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	_ = f.SetCellStyle(sheetName, "A1", "A1", titleStyle)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#BDD7EE"}, Pattern: 1},
		Font: &excelize.Font{Bold: true},
	})
	for i, c := range columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 2)
		_ = f.SetCellValue(sheetName, cell, c.title)
		name, _ := excelize.ColumnNumberToName(i + 1)
		_ = f.SetColWidth(sheetName, name, name, c.width)
	}
	_ = f.SetCellStyle(sheetName, "A2", lastCol+"2", headerStyle)

	styles := make(map[models.RequestStatus]int, len(statusFill))
	for status, color := range statusFill {
		id, err := f.NewStyle(&excelize.Style{
			Fill: excelize.Fill{Type: "pattern", Color: []string{color}, Pattern: 1},
		})
		if err == nil {
			styles[status] = id
		}
	}

	var totalPrice, totalFuel int64
	row := 3
	for _, req := range requests {
		values := []any{
			req.ID,
			req.MachineryName,
			req.FarmerName + " <" + req.FarmerEmail + ">",
			req.ProviderName + " <" + req.ProviderEmail + ">",
			req.StartDate.Format(models.DateLayout),
			req.EndDate.Format(models.DateLayout),
			req.TotalDays,
			req.DailyRate,
			req.TotalPrice,
			fuelLabel(req),
			req.EstimatedFuelCost,
			string(req.Status),
			req.AgreementID,
			disputeLabel(req),
		}
		start, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(sheetName, start, &values); err != nil {
			return fmt.Errorf("error writing row %d: %w", row, err)
		}
		if style, ok := styles[req.Status]; ok {
			end, _ := excelize.CoordinatesToCellName(len(columns), row)
			_ = f.SetCellStyle(sheetName, start, end, style)
		}
		totalPrice += req.TotalPrice
		totalFuel += req.EstimatedFuelCost
		row++
	}

	totalStyle, _ := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	labelCell, _ := excelize.CoordinatesToCellName(1, row)
	priceCell, _ := excelize.CoordinatesToCellName(9, row)
	fuelCell, _ := excelize.CoordinatesToCellName(11, row)
	_ = f.SetCellValue(sheetName, labelCell, fmt.Sprintf("Total (%d requests)", len(requests)))
	_ = f.SetCellValue(sheetName, priceCell, totalPrice)
	_ = f.SetCellValue(sheetName, fuelCell, totalFuel)
	endCell, _ := excelize.CoordinatesToCellName(len(columns), row)
	_ = f.SetCellStyle(sheetName, labelCell, endCell, totalStyle)

	_ = f.SetPanes(sheetName, &excelize.Panes{Freeze: true, YSplit: 2, TopLeftCell: "A3", ActivePane: "bottomLeft"})

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("error writing workbook: %w", err)
	}
	return nil
}

func fuelLabel(req *models.RentalRequest) string {
	if !req.FuelIncluded {
		return "excluded"
	}
	return string(req.FuelPaidBy)
}

func disputeLabel(req *models.RentalRequest) string {
	if !req.DisputeReported {
		return ""
	}
	return req.DisputeDetails
}

// Exporter saves workbooks under a directory.
type Exporter struct {
	dir    string
	logger *zerolog.Logger
	now    func() time.Time
}

func NewExporter(dir string, logger *zerolog.Logger) *Exporter {
	return &Exporter{dir: dir, logger: logger, now: time.Now}
}

// Export writes the requests of one party to <dir>/requests_<email>_<timestamp>.xlsx.
func (e *Exporter) Export(email string, requests []*models.RentalRequest) (string, error) {
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return "", fmt.Errorf("error creating export directory: %w", err)
	}

	fileName := fmt.Sprintf("requests_%s_%s.xlsx", sanitize(email), e.now().Format("20060102_150405"))
	filePath := filepath.Join(e.dir, fileName)

	file, err := os.Create(filePath)
	if err != nil {
		return "", fmt.Errorf("error creating file: %w", err)
	}
	defer file.Close()

	title := fmt.Sprintf("Rental requests of %s, exported %s", email, e.now().Format("02 Jan 2006 15:04"))
	if err := WriteRequests(file, title, requests); err != nil {
		return "", err
	}

	var total int64
	for _, r := range requests {
		total += r.TotalPrice
	}
	e.logger.Info().
		Str("file_path", filePath).
		Int("requests", len(requests)).
		Str("total", pricing.FormatAmount(total)).
		Msg("Excel file created")
	return filePath, nil
}

func sanitize(email string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '.':
			return r
		}
		return '_'
	}, email)
}
