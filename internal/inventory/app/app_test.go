//
// Copyright (C) 2021 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

package inventoryapp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/edgexfoundry/go-mod-core-contracts/clients/logger"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.impcloud.net/RSP-Inventory-Suite/cf591-driver/internal/cf591"
	"github.impcloud.net/RSP-Inventory-Suite/cf591-driver/internal/inventory"
)

func getTestingLogger() logger.LoggingClient {
	if testing.Verbose() {
		return logger.NewClientStdOut("test", false, "DEBUG")
	}

	return logger.NewMockClient()
}

// stubDevice satisfies ReaderDevice with canned answers. Setting err makes
// every operation fail with it.
type stubDevice struct {
	mu sync.Mutex

	status  cf591.SessionStatus
	info    cf591.DeviceInfo
	params  cf591.DeviceParameters
	power   int
	mask    uint8
	region  cf591.Region
	readTag *cf591.TagRecord
	err     error

	starts, stops, closes int
}

func (s *stubDevice) StartInventory(uint8) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.starts++
	s.status.State = cf591.StateActive
	return nil
}

func (s *stubDevice) StopInventory(time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.stops++
	s.status.State = cf591.StateIdle
	return nil
}

func (s *stubDevice) Poll(time.Duration) (*cf591.TagRecord, error) {
	return nil, nil
}

func (s *stubDevice) ReadOnce(context.Context, time.Duration) (*cf591.TagRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return s.readTag, nil
}

func (s *stubDevice) SessionStatus() cf591.SessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *stubDevice) Info() (cf591.DeviceInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.info, s.err
}

func (s *stubDevice) Parameters() (cf591.DeviceParameters, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.params, s.err
}

func (s *stubDevice) SetParameters(p cf591.DeviceParameters) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.params = p
	return nil
}

func (s *stubDevice) Power() (uint8, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return uint8(s.power), s.err
}

func (s *stubDevice) SetPower(power int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.power = power
	return nil
}

func (s *stubDevice) AntennaMask() (uint8, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mask, s.err
}

func (s *stubDevice) SetAntennaMask(mask uint8) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.mask = mask
	return nil
}

func (s *stubDevice) SetRegion(region cf591.Region) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.region = region
	return nil
}

func (s *stubDevice) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	return nil
}

func newTestApp(t *testing.T) (*InventoryApp, *stubDevice, *mux.Router) {
	t.Helper()

	stub := &stubDevice{}
	app := NewInventoryApp(getTestingLogger(), inventory.NewServiceConfig(), stub)
	app.cacheDir = t.TempDir()

	router := mux.NewRouter()
	app.addRoutes(router)
	return app, stub, router
}

func doRequest(router *mux.Router, method, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(method, path, strings.NewReader(body)))
	return w
}

func TestApplyDeviceSettings(t *testing.T) {
	app, stub, _ := newTestApp(t)
	app.config.Device.Power = 26
	app.config.Device.AntennaMask = 0x03
	app.config.Device.Region = 2

	require.NoError(t, app.applyDeviceSettings())
	assert.Equal(t, 26, stub.power)
	assert.Equal(t, uint8(0x03), stub.mask)
	assert.Equal(t, cf591.RegionETSI, stub.region)
}

func TestApplyDeviceSettingsLeavesDefaultsAlone(t *testing.T) {
	app, stub, _ := newTestApp(t)
	app.config.Device.Power = -1

	require.NoError(t, app.applyDeviceSettings())
	assert.Zero(t, stub.power)
	assert.Zero(t, stub.mask)
	assert.Zero(t, stub.region)
}

func TestApplyDeviceSettingsSurfacesErrors(t *testing.T) {
	app, stub, _ := newTestApp(t)
	app.config.Device.Power = 26
	stub.err = &cf591.StatusError{Op: "set power", Status: cf591.StatusCommTimeout}

	assert.Error(t, app.applyDeviceSettings())
}

func TestIndexRoute(t *testing.T) {
	_, stub, router := newTestApp(t)
	stub.status.State = cf591.StateIdle

	w := doRequest(router, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, serviceKey, body["service"])
}

func TestGetInfoRoute(t *testing.T) {
	_, stub, router := newTestApp(t)
	stub.info = cf591.DeviceInfo{
		Firmware: "CF591 FW 2.3",
		Hardware: "CF591 HW 1.0",
		Serial:   "0123456789ABCDEF01234567",
	}

	w := doRequest(router, http.MethodGet, infoRoute, "")
	require.Equal(t, http.StatusOK, w.Code)

	var info cf591.DeviceInfo
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &info))
	assert.Equal(t, stub.info, info)
}

func TestGetInfoRouteTimeout(t *testing.T) {
	_, stub, router := newTestApp(t)
	stub.err = &cf591.StatusError{Op: "get info", Status: cf591.StatusCommTimeout}

	w := doRequest(router, http.MethodGet, infoRoute, "")
	assert.Equal(t, http.StatusGatewayTimeout, w.Code)
	assert.Contains(t, w.Body.String(), "Failed to query reader info")
}

func TestParametersRoutes(t *testing.T) {
	_, stub, router := newTestApp(t)
	stub.params = cf591.DeviceParameters{
		Region:       2,
		FreqStartInt: 902,
		ChannelCount: 50,
		Power:        26,
		QValue:       4,
		Session:      cf591.SessionS1,
	}

	w := doRequest(router, http.MethodGet, paramsRoute, "")
	require.Equal(t, http.StatusOK, w.Code)

	var got cf591.DeviceParameters
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, stub.params, got)

	got.Power = 20
	data, err := json.Marshal(got)
	require.NoError(t, err)

	w = doRequest(router, http.MethodPut, paramsRoute, string(data))
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 20, stub.params.Power)

	w = doRequest(router, http.MethodPut, paramsRoute, "{not json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSetPowerRoute(t *testing.T) {
	_, stub, router := newTestApp(t)

	w := doRequest(router, http.MethodPut, powerRoute, `{"power": 26}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 26, stub.power)

	w = doRequest(router, http.MethodPut, powerRoute, `{"power": "high"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSetAntennaRoute(t *testing.T) {
	_, stub, router := newTestApp(t)

	w := doRequest(router, http.MethodPut, antennaRoute, `{"mask": 3}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, uint8(3), stub.mask)

	stub.err = &cf591.StatusError{Op: "set antenna", Status: cf591.StatusCmdParamErr}
	w = doRequest(router, http.MethodPut, antennaRoute, `{"mask": 0}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStartStopReading(t *testing.T) {
	app, stub, router := newTestApp(t)

	w := doRequest(router, http.MethodPut, cmdStartRoute, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, stub.starts)
	assert.True(t, app.reading.Load())

	stub.err = cf591.ErrSessionActive
	w = doRequest(router, http.MethodPut, cmdStartRoute, "")
	assert.Equal(t, http.StatusConflict, w.Code)

	stub.err = nil
	w = doRequest(router, http.MethodPut, cmdStopRoute, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, stub.stops)
	assert.False(t, app.reading.Load())
}

func TestSnapshotRoute(t *testing.T) {
	app, _, router := newTestApp(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		app.taskLoop(ctx)
	}()
	defer func() {
		cancel()
		<-done
	}()

	app.reports <- &cf591.TagRecord{
		RSSI:    -653,
		Antenna: 1,
		Channel: 4,
		PC:      [2]byte{0x30, 0x00},
		EPC:     []byte{0xE2, 0x00, 0x00, 0x11, 0x22, 0x33},
	}

	w := doRequest(router, http.MethodGet, snapshotRoute, "")
	require.Equal(t, http.StatusOK, w.Code)

	var snap []inventory.StaticTag
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	require.Len(t, snap, 1)
	assert.Equal(t, "E20000112233", snap[0].EPC)
	assert.Equal(t, "antenna_1", snap[0].Location)
	assert.Equal(t, inventory.Present, snap[0].State)
}

func TestReadOnceRoute(t *testing.T) {
	_, stub, router := newTestApp(t)
	stub.readTag = &cf591.TagRecord{
		RSSI:    -700,
		Antenna: 2,
		Channel: 5,
		PC:      [2]byte{0x30, 0x00},
		EPC:     []byte{0xE2, 0x11},
	}

	w := doRequest(router, http.MethodPost, cmdReadRoute, "")
	require.Equal(t, http.StatusOK, w.Code)

	var got tagReadResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "E211", got.EPC)
	assert.Equal(t, "3000", got.PC)
	assert.Equal(t, uint8(2), got.Antenna)
	assert.InDelta(t, -70.0, got.RSSI, 0.001)

	stub.readTag = nil
	w = doRequest(router, http.MethodPost, cmdReadRoute, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(router, http.MethodPost, cmdReadRoute+"?budget_ms=nope", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeviceErrorCode(t *testing.T) {
	tests := []struct {
		Name     string
		Err      error
		Expected int
	}{
		{"Inventory running", cf591.ErrInventoryRunning, http.StatusConflict},
		{"Session active", cf591.ErrSessionActive, http.StatusConflict},
		{"Wrapped session active", errors.Wrap(cf591.ErrSessionActive, "start"), http.StatusConflict},
		{"Comm timeout", &cf591.StatusError{Status: cf591.StatusCommTimeout}, http.StatusGatewayTimeout},
		{"Bad parameter", &cf591.StatusError{Status: cf591.StatusCmdParamErr}, http.StatusBadRequest},
		{"Anything else", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tc := range tests {
		t.Run(tc.Name, func(t *testing.T) {
			assert.Equal(t, tc.Expected, deviceErrorCode(tc.Err))
		})
	}
}
