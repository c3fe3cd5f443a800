package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autopeer-io/fleetrelay/internal/relay/core/model"
)

type fakeGeotab struct {
	t *testing.T

	mu           sync.Mutex
	auths        int
	deviceGets   map[string]int
	fromVersions map[string][]string
	rejectNext   bool
	failFeed     bool
}

func (g *fakeGeotab) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Method string `json:"method"`
		Params struct {
			TypeName     string             `json:"typeName"`
			FromVersion  string             `json:"fromVersion"`
			ResultsLimit int                `json:"resultsLimit"`
			Search       map[string]string  `json:"search"`
			Database     string             `json:"database"`
			Credentials  *geotabCredentials `json:"credentials"`
		} `json:"params"`
	}
	if !assert.NoError(g.t, json.NewDecoder(r.Body).Decode(&req)) {
		return
	}
	assert.Equal(g.t, "/apiv1", r.URL.Path)

	g.mu.Lock()
	defer g.mu.Unlock()

	reply := func(v string) { _, _ = w.Write([]byte(v)) }

	if req.Method == "Authenticate" {
		g.auths++
		assert.Equal(g.t, "fleet", req.Params.Database)
		reply(`{"result":{"credentials":{"database":"fleet","sessionId":"` + fmt.Sprintf("s%d", g.auths) + `","userName":"ops"},"path":"ThisServer"}}`)
		return
	}

	if !assert.NotNil(g.t, req.Params.Credentials) {
		return
	}
	assert.NotEmpty(g.t, req.Params.Credentials.SessionID)

	if g.rejectNext {
		g.rejectNext = false
		reply(`{"error":{"name":"JSONRPCError","message":"Incorrect login credentials","errors":[{"name":"InvalidUserException","message":"Incorrect login credentials"}]}}`)
		return
	}

	switch req.Method {
	case "GetFeed":
		if g.failFeed {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		assert.Equal(g.t, 50000, req.Params.ResultsLimit)
		g.fromVersions[req.Params.TypeName] = append(g.fromVersions[req.Params.TypeName], req.Params.FromVersion)
		switch req.Params.TypeName {
		case "LogRecord":
			reply(`{"result":{"toVersion":"000000000000000a","data":[
				{"id":"g1","device":{"id":"b1"},"dateTime":"2024-03-01T20:30:15.123Z","longitude":-117.19,"latitude":34.05,"speed":55.6},
				{"id":"g2","device":{"id":"b2"},"dateTime":"2024-03-01T20:30:16Z","longitude":-117.2,"latitude":34.06,"speed":0},
				{"id":"g3","device":{"id":"b1"},"dateTime":"2024-03-01T20:30:17Z","longitude":-117.21,"latitude":34.07,"speed":12}]}}`)
		case "StatusData":
			reply(`{"result":{"toVersion":"0000000000000003","data":[
				{"id":"s1","device":{"id":"b1"},"dateTime":"2024-03-01T20:30:15Z","diagnostic":{"id":"DiagnosticEngineSpeedId"},"data":1800}]}}`)
		default:
			reply(`{"result":{"toVersion":"","data":[]}}`)
		}
	case "Get":
		id := req.Params.Search["id"]
		g.deviceGets[id]++
		if id == "b1" {
			reply(`{"result":[{"id":"b1","name":"Truck 7","serialNumber":"G9A1B2C3","vehicleIdentificationNumber":"1FT","licensePlate":"7ABC123","licenseState":"CA"}]}`)
			return
		}
		reply(`{"result":[]}`)
	default:
		g.t.Errorf("unexpected method %s", req.Method)
	}
}

func newGeotab(t *testing.T, categories ...model.Category) (*fakeGeotab, *GeotabClient) {
	t.Helper()
	g := &fakeGeotab{t: t, deviceGets: map[string]int{}, fromVersions: map[string][]string{}}
	srv := httptest.NewServer(g)
	t.Cleanup(srv.Close)

	c := NewGeotabClient(GeotabConfig{
		Server:       strings.TrimPrefix(srv.URL, "http://"),
		Scheme:       "http",
		Database:     "fleet",
		Username:     "ops",
		Password:     "secret",
		Categories:   categories,
		ResultsLimit: 50000,
		Timeout:      5 * time.Second,
	}, nil)
	return g, c
}

func TestGeotabFetch(t *testing.T) {
	g, c := newGeotab(t, model.CategoryGPS, model.CategoryStatus)
	ctx := context.Background()

	res, next, err := c.Fetch(ctx, model.Cursors{})
	require.NoError(t, err)

	require.Len(t, res.GPSRecords, 3)
	first := res.GPSRecords[0]
	assert.Equal(t, "g1", first.ID)
	assert.Equal(t, "G9A1B2C3", first.Device.SerialNumber)
	assert.Equal(t, "Truck 7", first.Device.Name())
	assert.Equal(t, "CA", first.Device.LicenseState())
	assert.Equal(t, int64(1709325015123), first.DateTime.UnixMilli())
	assert.Equal(t, 55.6, first.Speed)

	unknown := res.GPSRecords[1]
	assert.Equal(t, "b2", unknown.Device.SerialNumber)
	assert.Nil(t, unknown.Device.Vehicle)

	require.Len(t, res.StatusData, 1)
	assert.Equal(t, "DiagnosticEngineSpeedId", res.StatusData[0].Diagnostic)

	assert.Equal(t, "000000000000000a", next[model.CategoryGPS])
	assert.Equal(t, "0000000000000003", next[model.CategoryStatus])

	_, _, err = c.Fetch(ctx, next)
	require.NoError(t, err)

	g.mu.Lock()
	defer g.mu.Unlock()
	assert.Equal(t, 1, g.auths)
	assert.Equal(t, []string{"", "000000000000000a"}, g.fromVersions["LogRecord"])
	assert.Equal(t, 1, g.deviceGets["b1"])
	assert.Equal(t, 1, g.deviceGets["b2"])
	assert.Empty(t, g.fromVersions["Trip"])
}

func TestGeotabReauthenticates(t *testing.T) {
	g, c := newGeotab(t)
	ctx := context.Background()
	require.NoError(t, c.Authenticate(ctx))

	g.mu.Lock()
	g.rejectNext = true
	g.mu.Unlock()

	res, _, err := c.Fetch(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, res.GPSRecords, 3)

	g.mu.Lock()
	defer g.mu.Unlock()
	assert.Equal(t, 2, g.auths)
}

func TestGeotabFetchFailureKeepsCursors(t *testing.T) {
	g, c := newGeotab(t)
	g.failFeed = true

	in := model.Cursors{model.CategoryGPS: "0000000000000001"}
	res, out, err := c.Fetch(context.Background(), in)
	assert.ErrorIs(t, err, ErrFetch)
	assert.Nil(t, res)
	assert.Equal(t, in, out)
}
