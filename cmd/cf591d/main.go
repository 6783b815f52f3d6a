//
// Copyright (C) 2021 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

// Command cf591d connects to a CHAFON CF591 UHF reader and runs the
// inventory service on top of it.
package main

import (
	"flag"
	"os"

	"github.com/edgexfoundry/go-mod-core-contracts/clients/logger"

	"github.impcloud.net/RSP-Inventory-Suite/cf591-driver/internal/cf591"
	"github.impcloud.net/RSP-Inventory-Suite/cf591-driver/internal/inventory"
	inventoryapp "github.impcloud.net/RSP-Inventory-Suite/cf591-driver/internal/inventory/app"
)

const serviceKey = "cf591d"

type logWrap struct {
	logger.LoggingClient
}

type lg struct {
	key string
	val interface{}
}

func (lgr logWrap) errIf(cond bool, msg string, params ...lg) bool {
	if !cond {
		return false
	}

	if len(params) > 0 {
		parts := make([]interface{}, len(params)*2)
		for i := range params {
			parts[i*2] = params[i].key
			parts[i*2+1] = params[i].val
		}
		lgr.Error(msg, parts...)
	} else {
		lgr.Error(msg)
	}

	return true
}

func (lgr logWrap) exitIf(cond bool, msg string, params ...lg) {
	if lgr.errIf(cond, msg, params...) {
		os.Exit(1)
	}
}

func (lgr logWrap) exitIfErr(err error, msg string, params ...lg) {
	lgr.exitIf(err != nil, msg, append(params, lg{"error", err})...)
}

func main() {
	configPath := flag.String("config", "cf591d.toml", "path to the service configuration file")
	logLevel := flag.String("log", "INFO", "log level (TRACE, DEBUG, INFO, WARN, ERROR)")
	flag.Parse()

	lgr := logWrap{logger.NewClientStdOut(serviceKey, false, *logLevel)}
	lgr.Info("Starting.")

	cfg, err := inventory.LoadServiceConfig(*configPath)
	lgr.exitIfErr(err, "Failed to load configuration.", lg{"path", *configPath})

	device, err := cf591.Connect(cfg.Device.Target, cfg.Device.Baud, cf591.Options{
		Logger:         lgr.LoggingClient,
		CommandTimeout: cfg.Device.CommandTimeout(),
		PollTimeout:    cfg.Device.PollTimeout(),
		StopTimeout:    cfg.Device.StopTimeout(),
	})
	lgr.exitIfErr(err, "Failed to open reader.", lg{"target", cfg.Device.Target})

	app := inventoryapp.NewInventoryApp(lgr.LoggingClient, cfg, device)
	lgr.exitIfErr(app.RunUntilCancelled(), "Service stopped with an error.")
}
