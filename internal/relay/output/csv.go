package output

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/autopeer-io/fleetrelay/internal/relay/core/model"
)

var csvHeaders = map[model.Category][]string{
	model.CategoryGPS:       {"Vehicle Serial Number", "Date", "Longitude", "Latitude", "Speed"},
	model.CategoryStatus:    {"Vehicle Serial Number", "Date", "Diagnostic", "Value"},
	model.CategoryFault:     {"Vehicle Serial Number", "Date", "Diagnostic", "Failure Mode", "Fault State"},
	model.CategoryTrip:      {"Vehicle Serial Number", "Start", "Stop", "Distance"},
	model.CategoryException: {"Vehicle Serial Number", "Rule", "Active From", "Active To", "Distance"},
}

// CSV appends each category to its own file under a directory.
type CSV struct {
	dir string
}

var _ Writer = (*CSV)(nil)

// NewCSV creates dir if needed.
func NewCSV(dir string) (*CSV, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	return &CSV{dir: dir}, nil
}

// Path returns the file a category is written to.
func (c *CSV) Path(cat model.Category) string {
	return filepath.Join(c.dir, string(cat)+".csv")
}

func (c *CSV) Write(_ context.Context, res *model.Result) error {
	_, err := c.write(res)
	return err
}

// write appends every non-empty category and returns the categories touched.
func (c *CSV) write(res *model.Result) ([]model.Category, error) {
	rows := map[model.Category][][]string{}
	for _, r := range res.GPSRecords {
		rows[model.CategoryGPS] = append(rows[model.CategoryGPS], []string{
			r.Device.SerialNumber, formatTime(r.DateTime), formatFloat(r.Longitude), formatFloat(r.Latitude), formatFloat(r.Speed),
		})
	}
	for _, r := range res.StatusData {
		rows[model.CategoryStatus] = append(rows[model.CategoryStatus], []string{
			r.Device.SerialNumber, formatTime(r.DateTime), r.Diagnostic, formatFloat(r.Data),
		})
	}
	for _, r := range res.FaultData {
		rows[model.CategoryFault] = append(rows[model.CategoryFault], []string{
			r.Device.SerialNumber, formatTime(r.DateTime), r.Diagnostic, r.FailureMode, r.FaultState,
		})
	}
	for _, r := range res.Trips {
		rows[model.CategoryTrip] = append(rows[model.CategoryTrip], []string{
			r.Device.SerialNumber, formatTime(r.Start), formatTime(r.Stop), formatFloat(r.Distance),
		})
	}
	for _, r := range res.ExceptionEvents {
		rows[model.CategoryException] = append(rows[model.CategoryException], []string{
			r.Device.SerialNumber, r.Rule, formatTime(r.ActiveFrom), formatTime(r.ActiveTo), formatFloat(r.Distance),
		})
	}

	var (
		touched []model.Category
		errs    []error
	)
	for _, cat := range model.Categories {
		if len(rows[cat]) == 0 {
			continue
		}
		if err := c.appendRows(cat, rows[cat]); err != nil {
			errs = append(errs, err)
			continue
		}
		touched = append(touched, cat)
	}
	return touched, errors.Join(errs...)
}

func (c *CSV) appendRows(cat model.Category, rows [][]string) (err error) {
	path := c.Path(cat)
	_, statErr := os.Stat(path)
	fresh := errors.Is(statErr, os.ErrNotExist)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", path, cerr)
		}
	}()

	w := csv.NewWriter(f)
	if fresh {
		if err := w.Write(csvHeaders[cat]); err != nil {
			return fmt.Errorf("write %s header: %w", path, err)
		}
	}
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
