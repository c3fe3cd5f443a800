package output

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/gosuri/uitable"

	"github.com/autopeer-io/fleetrelay/internal/relay/core/model"
)

// Console prints GPS, status and fault records as tables.
type Console struct {
	out io.Writer
}

var _ Writer = (*Console)(nil)

// NewConsole writes to out, or stdout when out is nil.
func NewConsole(out io.Writer) *Console {
	if out == nil {
		out = os.Stdout
	}
	return &Console{out: out}
}

func (c *Console) Write(_ context.Context, res *model.Result) error {
	if len(res.GPSRecords) > 0 {
		t := newTable("VEHICLE SERIAL NUMBER", "DATE", "LONGITUDE", "LATITUDE", "SPEED")
		for _, r := range res.GPSRecords {
			t.AddRow(r.Device.SerialNumber, r.DateTime.UTC().Format(timeLayout), r.Longitude, r.Latitude, r.Speed)
		}
		if err := c.print(t); err != nil {
			return err
		}
	}

	if len(res.StatusData) > 0 {
		t := newTable("VEHICLE SERIAL NUMBER", "DATE", "DIAGNOSTIC", "VALUE")
		for _, r := range res.StatusData {
			t.AddRow(r.Device.SerialNumber, r.DateTime.UTC().Format(timeLayout), r.Diagnostic, r.Data)
		}
		if err := c.print(t); err != nil {
			return err
		}
	}

	if len(res.FaultData) > 0 {
		t := newTable("VEHICLE SERIAL NUMBER", "DATE", "DIAGNOSTIC", "FAILURE MODE", "FAULT STATE")
		for _, r := range res.FaultData {
			t.AddRow(r.Device.SerialNumber, r.DateTime.UTC().Format(timeLayout), r.Diagnostic, r.FailureMode, r.FaultState)
		}
		if err := c.print(t); err != nil {
			return err
		}
	}
	return nil
}

func newTable(header ...any) *uitable.Table {
	t := uitable.New()
	t.MaxColWidth = 40
	t.AddRow(header...)
	return t
}

func (c *Console) print(t *uitable.Table) error {
	if _, err := fmt.Fprintln(c.out, t); err != nil {
		return fmt.Errorf("write console table: %w", err)
	}
	return nil
}
