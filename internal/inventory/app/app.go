//
// Copyright (C) 2021 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

// Package inventoryapp ties the reader driver to the inventory processor
// and serves the REST API. One task loop owns all inventory mutations; a
// poll loop drains tag reports from the reader while continuous reading
// is enabled.
package inventoryapp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/edgexfoundry/go-mod-core-contracts/clients/logger"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.impcloud.net/RSP-Inventory-Suite/cf591-driver/internal/cf591"
	"github.impcloud.net/RSP-Inventory-Suite/cf591-driver/internal/inventory"
)

const (
	serviceKey = "cf591-inventory"

	cacheFolder  = "cache"
	tagCacheFile = "tags.json"
	folderPerm   = 0755 // folders require the execute flag in order to create new files
	filePerm     = 0644

	eventChSz = 100

	// idlePollInterval is how often the poll loop rechecks for an active
	// session while there is nothing to read.
	idlePollInterval = 250 * time.Millisecond

	httpShutdownTimeout = 10 * time.Second
)

// ReaderDevice is the slice of the reader driver this service drives.
// *cf591.Device satisfies it; tests substitute a stub.
type ReaderDevice interface {
	StartInventory(roundCount uint8) error
	StopInventory(timeout time.Duration) error
	Poll(timeout time.Duration) (*cf591.TagRecord, error)
	ReadOnce(ctx context.Context, budget time.Duration) (*cf591.TagRecord, error)
	SessionStatus() cf591.SessionStatus

	Info() (cf591.DeviceInfo, error)
	Parameters() (cf591.DeviceParameters, error)
	SetParameters(p cf591.DeviceParameters) error
	Power() (uint8, error)
	SetPower(power int) error
	AntennaMask() (uint8, error)
	SetAntennaMask(mask uint8) error
	SetRegion(region cf591.Region) error

	Close() error
}

type snapshotDest struct {
	w      io.Writer
	result chan error
}

type InventoryApp struct {
	lc     logger.LoggingClient
	config inventory.ServiceConfig

	device    ReaderDevice
	processor *inventory.TagProcessor

	// reading is whether continuous reading was commanded; the poll loop
	// only drives the session while it is set.
	reading atomic.Bool

	reports      chan *cf591.TagRecord
	snapshotReqs chan snapshotDest

	cacheDir string
}

func NewInventoryApp(lc logger.LoggingClient, cfg inventory.ServiceConfig, device ReaderDevice) *InventoryApp {
	return &InventoryApp{
		lc:           lc,
		config:       cfg,
		device:       device,
		processor:    inventory.NewTagProcessor(lc, cfg),
		reports:      make(chan *cf591.TagRecord),
		snapshotReqs: make(chan snapshotDest),
		cacheDir:     cacheFolder,
	}
}

// applyDeviceSettings pushes the configured radio settings to the reader.
// Values left at their "do not touch" defaults are not written.
func (app *InventoryApp) applyDeviceSettings() error {
	if app.config.Device.Power >= 0 {
		if err := app.device.SetPower(app.config.Device.Power); err != nil {
			return errors.Wrap(err, "failed to set transmit power")
		}
		app.lc.Info("Applied transmit power.", "dBm", app.config.Device.Power)
	}

	if mask := app.config.Device.AntennaMask; mask != 0 {
		if err := app.device.SetAntennaMask(mask); err != nil {
			return errors.Wrap(err, "failed to set antenna mask")
		}
		app.lc.Info("Applied antenna mask.", "mask", fmt.Sprintf("%#02x", mask))
	}

	if region := app.config.Device.Region; region != 0 {
		if err := app.device.SetRegion(cf591.Region(region)); err != nil {
			return errors.Wrap(err, "failed to set frequency region")
		}
		app.lc.Info("Applied frequency region.", "region", region)
	}

	return nil
}

// RunUntilCancelled starts the task loop, poll loop, and HTTP server, and
// blocks until the process receives SIGINT or SIGTERM. On the way out it
// drains the HTTP server, lets the loops finish, stops any running
// inventory, and closes the reader.
func (app *InventoryApp) RunUntilCancelled() error {
	if err := os.MkdirAll(app.cacheDir, folderPerm); err != nil {
		app.lc.Error("Failed to create cache directory.", "directory", app.cacheDir, "error", err.Error())
	}

	if err := app.applyDeviceSettings(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		app.taskLoop(ctx)
		app.lc.Info("Task loop has exited.")
	}()
	go func() {
		defer wg.Done()
		app.pollLoop(ctx)
		app.lc.Info("Poll loop has exited.")
	}()

	router := mux.NewRouter()
	app.addRoutes(router)
	srv := &http.Server{
		Addr:              app.config.HTTP.Bind,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	httpErr := make(chan error, 1)
	go func() {
		app.lc.Info("Starting HTTP server.", "bind", app.config.HTTP.Bind)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			httpErr <- err
		}
	}()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case s := <-signals:
		app.lc.Info(fmt.Sprintf("Received '%s' signal from OS.", s.String()))
	case err := <-httpErr:
		runErr = errors.Wrap(err, "http server failed")
	}

	// Drain in-flight requests while the loops are still alive to answer
	// them, then stop the loops.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), httpShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		app.lc.Warn("HTTP server shutdown was not clean.", "error", err.Error())
	}

	cancel()
	wg.Wait()

	if err := app.device.StopInventory(app.config.Device.StopTimeout()); err != nil {
		app.lc.Warn("Failed to stop inventory during shutdown.", "error", err.Error())
	}
	if err := app.device.Close(); err != nil {
		app.lc.Warn("Failed to close reader.", "error", err.Error())
	}

	app.lc.Info("Exiting.")
	return runErr
}

// pollLoop drives the reader while continuous reading is enabled. After a
// start command the reader streams report frames on its own; this loop is
// their only consumer, handing each tag to the task loop.
func (app *InventoryApp) pollLoop(ctx context.Context) {
	idle := time.NewTicker(idlePollInterval)
	defer idle.Stop()

	for ctx.Err() == nil {
		if !app.reading.Load() || app.device.SessionStatus().State != cf591.StateActive {
			select {
			case <-ctx.Done():
				return
			case <-idle.C:
			}
			continue
		}

		tag, err := app.device.Poll(0)
		if err != nil {
			app.lc.Error("Inventory poll failed.", "error", err.Error())
			if app.device.SessionStatus().State != cf591.StateActive {
				app.lc.Warn("Inventory session dropped; continuous reading disabled.")
				app.reading.Store(false)
			}
			continue
		}
		if tag == nil {
			// Quiet air, or the end of an anti-collision round.
			continue
		}

		select {
		case app.reports <- tag:
		case <-ctx.Done():
			return
		}
	}
}

// taskLoop is the main event loop for everything that touches the
// inventory. Since nearly every round through this loop must read or
// write tag state, funneling the work through one goroutine keeps the
// mutations ordered without lock contention on the hot read path.
func (app *InventoryApp) taskLoop(ctx context.Context) {
	departedCheckSeconds := app.config.Inventory.DepartedCheckIntervalSeconds
	aggregateDepartedTicker := time.NewTicker(time.Duration(departedCheckSeconds) * time.Second)
	ageoutTicker := time.NewTicker(1 * time.Hour)
	eventCh := make(chan []inventory.Event, eventChSz)

	defer func() {
		aggregateDepartedTicker.Stop()
		ageoutTicker.Stop()
	}()

	app.restoreSnapshot()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		app.lc.Info("Starting event processor.")
		for events := range eventCh {
			app.publishEvents(events)
		}
		app.lc.Info("Event processor stopped.")
	}()

	app.lc.Info("Starting task loop.")
	for {
		select {
		case <-ctx.Done():
			app.lc.Info("Stopping task loop.")
			close(eventCh)
			app.persistSnapshot()
			wg.Wait()
			app.lc.Info("Task loop stopped.")
			return

		case report := <-app.reports:
			if event := app.processor.Process(report); event != nil {
				// only persist when the read changed the inventory
				app.persistSnapshot()
				eventCh <- []inventory.Event{event}
			}

		case t := <-aggregateDepartedTicker.C:
			app.lc.Debug("Running AggregateDeparted.", "time", fmt.Sprintf("%v", t))
			if events := app.processor.AggregateDeparted(); len(events) > 0 {
				app.persistSnapshot()
				eventCh <- events
			}

		case t := <-ageoutTicker.C:
			app.lc.Debug("Running AgeOut.", "time", fmt.Sprintf("%v", t))
			if removed := app.processor.AgeOut(); removed > 0 {
				app.persistSnapshot()
			}

		case req := <-app.snapshotReqs:
			data, err := json.Marshal(app.processor.Snapshot())
			if err == nil {
				_, err = req.w.Write(data) // only write if there was no error already
			}
			req.result <- err
		}
	}
}

// requestInventorySnapshot asks the task loop to write the current
// inventory snapshot to w and waits for it to finish. Funneling the
// request through the loop gives REST callers a race-free result without
// handlers contending on the inventory itself.
func (app *InventoryApp) requestInventorySnapshot(w io.Writer) error {
	writeErr := make(chan error, 1)
	app.snapshotReqs <- snapshotDest{w, writeErr}
	return <-writeErr
}

// publishEvents reports inventory events. With no message broker attached
// the events go to the log as JSON; current state is always available via
// the snapshot endpoint.
func (app *InventoryApp) publishEvents(events []inventory.Event) {
	for _, event := range events {
		payload, err := json.Marshal(event)
		if err != nil {
			app.lc.Error("Failed to marshal inventory event.", "error", err.Error())
			continue
		}
		app.lc.Info("Inventory event.", "type", string(event.OfType()), "payload", string(payload))
	}
}

func (app *InventoryApp) restoreSnapshot() {
	data, err := os.ReadFile(filepath.Join(app.cacheDir, tagCacheFile))
	if err != nil {
		if !os.IsNotExist(err) {
			app.lc.Warn("Failed to load inventory snapshot.", "error", err.Error())
		}
		return
	}

	var snapshot []inventory.StaticTag
	if err := json.Unmarshal(data, &snapshot); err != nil {
		app.lc.Warn("Failed to unmarshal inventory snapshot.", "error", err.Error())
		return
	}

	if len(snapshot) > 0 {
		app.processor.Restore(snapshot)
		app.lc.Info(fmt.Sprintf("Restored %d tags from cache.", len(snapshot)))
	}
}

func (app *InventoryApp) persistSnapshot() {
	app.lc.Debug("Persisting inventory snapshot.")
	snapshot := app.processor.Snapshot()
	data, err := json.Marshal(snapshot)
	if err != nil {
		app.lc.Warn("Failed to marshal inventory snapshot.", "error", err.Error())
		return
	}

	if err := os.WriteFile(filepath.Join(app.cacheDir, tagCacheFile), data, filePerm); err != nil {
		app.lc.Warn("Failed to persist inventory snapshot.", "error", err.Error())
		return
	}
	app.lc.Debug("Persisted inventory snapshot.", "tags", len(snapshot))
}
