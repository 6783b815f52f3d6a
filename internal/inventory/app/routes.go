//
// Copyright (C) 2021 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

package inventoryapp

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.impcloud.net/RSP-Inventory-Suite/cf591-driver/internal/cf591"
)

const (
	maxBodyBytes = 100 * 1024

	apiBase = "/api/v1"

	infoRoute     = apiBase + "/device/info"
	paramsRoute   = apiBase + "/device/parameters"
	powerRoute    = apiBase + "/device/power"
	antennaRoute  = apiBase + "/device/antenna"
	snapshotRoute = apiBase + "/inventory/snapshot"
	cmdStartRoute = apiBase + "/command/inventory/start"
	cmdStopRoute  = apiBase + "/command/inventory/stop"
	cmdReadRoute  = apiBase + "/command/read-once"

	defaultReadOnceBudget = 3 * time.Second
)

func (app *InventoryApp) addRoutes(r *mux.Router) {
	r.HandleFunc("/", app.index).Methods(http.MethodGet)
	r.HandleFunc(infoRoute, app.getInfo).Methods(http.MethodGet)
	r.HandleFunc(paramsRoute, app.getParameters).Methods(http.MethodGet)
	r.HandleFunc(paramsRoute, app.setParameters).Methods(http.MethodPut)
	r.HandleFunc(powerRoute, app.setPower).Methods(http.MethodPut)
	r.HandleFunc(antennaRoute, app.setAntenna).Methods(http.MethodPut)
	r.HandleFunc(snapshotRoute, app.getSnapshot).Methods(http.MethodGet)
	r.HandleFunc(cmdStartRoute, app.startReading).Methods(http.MethodPut)
	r.HandleFunc(cmdStopRoute, app.stopReading).Methods(http.MethodPut)
	r.HandleFunc(cmdReadRoute, app.readOnce).Methods(http.MethodPost)
}

// deviceErrorCode picks the HTTP status for a reader error.
func deviceErrorCode(err error) int {
	switch {
	case errors.Is(err, cf591.ErrInventoryRunning), errors.Is(err, cf591.ErrSessionActive):
		return http.StatusConflict
	case cf591.IsStatus(err, cf591.StatusCmdParamErr):
		return http.StatusBadRequest
	case cf591.IsTimeout(err):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (app *InventoryApp) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		app.lc.Error("Failed to write response.", "error", err.Error())
	}
}

// Routes
func (app *InventoryApp) index(w http.ResponseWriter, _ *http.Request) {
	app.writeJSON(w, map[string]interface{}{
		"service": serviceKey,
		"session": app.device.SessionStatus(),
		"tags":    app.processor.Len(),
	})
}

func (app *InventoryApp) getInfo(w http.ResponseWriter, _ *http.Request) {
	info, err := app.device.Info()
	if err != nil {
		msg := fmt.Sprintf("Failed to query reader info: %v", err)
		app.lc.Error(msg)
		http.Error(w, msg, deviceErrorCode(err))
		return
	}
	app.writeJSON(w, info)
}

func (app *InventoryApp) getParameters(w http.ResponseWriter, _ *http.Request) {
	params, err := app.device.Parameters()
	if err != nil {
		msg := fmt.Sprintf("Failed to read parameter block: %v", err)
		app.lc.Error(msg)
		http.Error(w, msg, deviceErrorCode(err))
		return
	}
	app.writeJSON(w, params)
}

func (app *InventoryApp) setParameters(w http.ResponseWriter, req *http.Request) {
	data, err := io.ReadAll(io.LimitReader(req.Body, maxBodyBytes))
	if err != nil {
		msg := fmt.Sprintf("Failed to read parameter data: %v", err)
		app.lc.Error(msg)
		http.Error(w, msg, http.StatusInternalServerError)
		return
	}

	var p cf591.DeviceParameters
	if err := json.Unmarshal(data, &p); err != nil {
		msg := fmt.Sprintf("Failed to unmarshal parameter data: %v. Body: %s", err, string(data))
		app.lc.Error(msg)
		http.Error(w, msg, http.StatusBadRequest)
		return
	}

	if err := app.device.SetParameters(p); err != nil {
		msg := fmt.Sprintf("Failed to write parameter block: %v", err)
		app.lc.Error(msg)
		http.Error(w, msg, deviceErrorCode(err))
		return
	}

	app.lc.Info("Updated reader parameters.")
}

func (app *InventoryApp) setPower(w http.ResponseWriter, req *http.Request) {
	var body struct {
		Power int `json:"power"`
	}
	if err := json.NewDecoder(io.LimitReader(req.Body, maxBodyBytes)).Decode(&body); err != nil {
		msg := fmt.Sprintf("Failed to unmarshal power setting: %v", err)
		app.lc.Error(msg)
		http.Error(w, msg, http.StatusBadRequest)
		return
	}

	if err := app.device.SetPower(body.Power); err != nil {
		msg := fmt.Sprintf("Failed to set transmit power: %v", err)
		app.lc.Error(msg)
		http.Error(w, msg, deviceErrorCode(err))
		return
	}

	app.lc.Info("Updated transmit power.", "dBm", body.Power)
}

func (app *InventoryApp) setAntenna(w http.ResponseWriter, req *http.Request) {
	var body struct {
		Mask uint8 `json:"mask"`
	}
	if err := json.NewDecoder(io.LimitReader(req.Body, maxBodyBytes)).Decode(&body); err != nil {
		msg := fmt.Sprintf("Failed to unmarshal antenna mask: %v", err)
		app.lc.Error(msg)
		http.Error(w, msg, http.StatusBadRequest)
		return
	}

	if err := app.device.SetAntennaMask(body.Mask); err != nil {
		msg := fmt.Sprintf("Failed to set antenna mask: %v", err)
		app.lc.Error(msg)
		http.Error(w, msg, deviceErrorCode(err))
		return
	}

	app.lc.Info("Updated antenna mask.", "mask", fmt.Sprintf("%#02x", body.Mask))
}

func (app *InventoryApp) getSnapshot(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := app.requestInventorySnapshot(w); err != nil {
		msg := fmt.Sprintf("Failed to write inventory snapshot: %v", err)
		app.lc.Error(msg)
		http.Error(w, msg, http.StatusInternalServerError)
	}
}

func (app *InventoryApp) startReading(w http.ResponseWriter, _ *http.Request) {
	if err := app.device.StartInventory(0); err != nil {
		msg := fmt.Sprintf("Failed to start reading: %v", err)
		app.lc.Error(msg)
		http.Error(w, msg, deviceErrorCode(err))
		return
	}

	app.reading.Store(true)
	app.lc.Info("Continuous reading started.")
}

func (app *InventoryApp) stopReading(w http.ResponseWriter, _ *http.Request) {
	app.reading.Store(false)
	if err := app.device.StopInventory(app.config.Device.StopTimeout()); err != nil {
		msg := fmt.Sprintf("Failed to stop reading: %v", err)
		app.lc.Error(msg)
		http.Error(w, msg, deviceErrorCode(err))
		return
	}

	app.lc.Info("Continuous reading stopped.")
}

type tagReadResponse struct {
	EPC     string  `json:"epc"`
	PC      string  `json:"pc"`
	Antenna uint8   `json:"antenna"`
	Channel uint8   `json:"channel"`
	RSSI    float64 `json:"rssi"`
}

// readOnce runs a bounded single-tag read. The budget defaults to 3s and
// can be overridden with ?budget_ms=N.
func (app *InventoryApp) readOnce(w http.ResponseWriter, req *http.Request) {
	budget := defaultReadOnceBudget
	if raw := req.URL.Query().Get("budget_ms"); raw != "" {
		ms, err := strconv.Atoi(raw)
		if err != nil || ms <= 0 {
			msg := fmt.Sprintf("Invalid budget_ms value: %q", raw)
			app.lc.Error(msg)
			http.Error(w, msg, http.StatusBadRequest)
			return
		}
		budget = time.Duration(ms) * time.Millisecond
	}

	tag, err := app.device.ReadOnce(req.Context(), budget)
	if err != nil {
		msg := fmt.Sprintf("Read-once failed: %v", err)
		app.lc.Error(msg)
		http.Error(w, msg, deviceErrorCode(err))
		return
	}
	if tag == nil {
		http.Error(w, "no tag in range", http.StatusNotFound)
		return
	}

	app.writeJSON(w, tagReadResponse{
		EPC:     tag.EPCString(),
		PC:      fmt.Sprintf("%02X%02X", tag.PC[0], tag.PC[1]),
		Antenna: tag.Antenna,
		Channel: tag.Channel,
		RSSI:    tag.RSSIdBm(),
	})
}
