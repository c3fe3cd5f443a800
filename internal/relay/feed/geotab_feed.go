package feed

import (
	"context"
	"fmt"
	"time"

	"github.com/autopeer-io/fleetrelay/internal/relay/core/model"
)

var typeNames = map[model.Category]string{
	model.CategoryGPS:       "LogRecord",
	model.CategoryStatus:    "StatusData",
	model.CategoryFault:     "FaultData",
	model.CategoryTrip:      "Trip",
	model.CategoryException: "ExceptionEvent",
}

type entityRef struct {
	ID string `json:"id"`
}

type feedPage[T any] struct {
	Data      []T    `json:"data"`
	ToVersion string `json:"toVersion"`
}

type logRecordJSON struct {
	ID        string    `json:"id"`
	Device    entityRef `json:"device"`
	DateTime  time.Time `json:"dateTime"`
	Longitude float64   `json:"longitude"`
	Latitude  float64   `json:"latitude"`
	Speed     float64   `json:"speed"`
}

type statusDataJSON struct {
	ID         string    `json:"id"`
	Device     entityRef `json:"device"`
	DateTime   time.Time `json:"dateTime"`
	Diagnostic entityRef `json:"diagnostic"`
	Data       float64   `json:"data"`
}

type faultDataJSON struct {
	ID          string    `json:"id"`
	Device      entityRef `json:"device"`
	DateTime    time.Time `json:"dateTime"`
	Diagnostic  entityRef `json:"diagnostic"`
	FailureMode entityRef `json:"failureMode"`
	FaultState  string    `json:"faultState"`
}

type tripJSON struct {
	ID       string    `json:"id"`
	Device   entityRef `json:"device"`
	Start    time.Time `json:"start"`
	Stop     time.Time `json:"stop"`
	Distance float64   `json:"distance"`
}

type exceptionEventJSON struct {
	ID         string    `json:"id"`
	Device     entityRef `json:"device"`
	Rule       entityRef `json:"rule"`
	ActiveFrom time.Time `json:"activeFrom"`
	ActiveTo   time.Time `json:"activeTo"`
	Distance   float64   `json:"distance"`
}

type deviceJSON struct {
	ID                          string `json:"id"`
	Name                        string `json:"name"`
	SerialNumber                string `json:"serialNumber"`
	VehicleIdentificationNumber string `json:"vehicleIdentificationNumber"`
	LicensePlate                string `json:"licensePlate"`
	LicenseState                string `json:"licenseState"`
}

// Fetch calls GetFeed once per configured category. Any failure discards the
// whole cycle so that no cursor advances past undelivered data.
func (c *GeotabClient) Fetch(ctx context.Context, cursors model.Cursors) (*model.Result, model.Cursors, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	next := cursors.Clone()
	res := &model.Result{}
	var err error

	for _, cat := range model.Categories {
		if !enabled(c.cfg.Categories, cat) {
			continue
		}
		switch cat {
		case model.CategoryGPS:
			err = fetchCategory(ctx, c, cat, next, func(r logRecordJSON) error {
				dev, err := c.device(ctx, r.Device.ID)
				res.GPSRecords = append(res.GPSRecords, model.LogRecord{
					ID: r.ID, Device: dev, DateTime: r.DateTime,
					Longitude: r.Longitude, Latitude: r.Latitude, Speed: r.Speed,
				})
				return err
			})
		case model.CategoryStatus:
			err = fetchCategory(ctx, c, cat, next, func(r statusDataJSON) error {
				dev, err := c.device(ctx, r.Device.ID)
				res.StatusData = append(res.StatusData, model.StatusData{
					ID: r.ID, Device: dev, DateTime: r.DateTime,
					Diagnostic: r.Diagnostic.ID, Data: r.Data,
				})
				return err
			})
		case model.CategoryFault:
			err = fetchCategory(ctx, c, cat, next, func(r faultDataJSON) error {
				dev, err := c.device(ctx, r.Device.ID)
				res.FaultData = append(res.FaultData, model.FaultData{
					ID: r.ID, Device: dev, DateTime: r.DateTime,
					Diagnostic: r.Diagnostic.ID, FailureMode: r.FailureMode.ID, FaultState: r.FaultState,
				})
				return err
			})
		case model.CategoryTrip:
			err = fetchCategory(ctx, c, cat, next, func(r tripJSON) error {
				dev, err := c.device(ctx, r.Device.ID)
				res.Trips = append(res.Trips, model.Trip{
					ID: r.ID, Device: dev, Start: r.Start, Stop: r.Stop, Distance: r.Distance,
				})
				return err
			})
		case model.CategoryException:
			err = fetchCategory(ctx, c, cat, next, func(r exceptionEventJSON) error {
				dev, err := c.device(ctx, r.Device.ID)
				res.ExceptionEvents = append(res.ExceptionEvents, model.ExceptionEvent{
					ID: r.ID, Device: dev, Rule: r.Rule.ID,
					ActiveFrom: r.ActiveFrom, ActiveTo: r.ActiveTo, Distance: r.Distance,
				})
				return err
			})
		}
		if err != nil {
			return nil, cursors, fmt.Errorf("%w: %s: %w", ErrFetch, cat, err)
		}
	}

	c.logger.Debug("Feed fetched", "gps", len(res.GPSRecords), "status", len(res.StatusData),
		"fault", len(res.FaultData), "trips", len(res.Trips), "exceptions", len(res.ExceptionEvents))
	return res, next, nil
}

// fetchCategory reads one page of a category and advances its cursor in next.
func fetchCategory[T any](ctx context.Context, c *GeotabClient, cat model.Category, next model.Cursors, each func(T) error) error {
	params := map[string]any{
		"typeName":     typeNames[cat],
		"resultsLimit": c.cfg.ResultsLimit,
	}
	if v := next[cat]; v != "" {
		params["fromVersion"] = v
	}

	var page feedPage[T]
	if err := c.call(ctx, "GetFeed", params, &page); err != nil {
		return err
	}
	for _, item := range page.Data {
		if err := each(item); err != nil {
			return err
		}
	}
	if page.ToVersion != "" {
		next[cat] = page.ToVersion
	}
	return nil
}

// device resolves metadata through a cache. Unknown devices fall back to their
// ID as serial number and carry no vehicle metadata. Must be called with mu
// held.
func (c *GeotabClient) device(ctx context.Context, id string) (model.Device, error) {
	if d, ok := c.devices[id]; ok {
		return d, nil
	}

	var found []deviceJSON
	params := map[string]any{
		"typeName": "Device",
		"search":   map[string]any{"id": id},
	}
	if err := c.call(ctx, "Get", params, &found); err != nil {
		return model.Device{ID: id}, fmt.Errorf("resolve device %s: %w", id, err)
	}

	d := model.Device{ID: id, SerialNumber: id}
	if len(found) > 0 {
		j := found[0]
		if j.SerialNumber != "" {
			d.SerialNumber = j.SerialNumber
		}
		d.Vehicle = &model.Vehicle{
			Name:         j.Name,
			VIN:          j.VehicleIdentificationNumber,
			LicensePlate: j.LicensePlate,
			LicenseState: j.LicenseState,
		}
	}
	c.devices[id] = d
	return d, nil
}
