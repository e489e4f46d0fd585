// The MIT License (MIT)
//
// # Copyright (c) 2016 xtaci
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/urfave/cli"

	"github.com/sindlinger/pyshared-hub/internal/config"
	"github.com/sindlinger/pyshared-hub/internal/metrics"
	"github.com/sindlinger/pyshared-hub/internal/supervisor"

	_ "github.com/sindlinger/pyshared-hub/internal/transform/dominantwave"
	_ "github.com/sindlinger/pyshared-hub/internal/transform/fftwave"
)

// VERSION is injected by buildflags.
var VERSION = "SELFBUILD"

func main() {
	if VERSION == "SELFBUILD" {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	}

	myApp := cli.NewApp()
	myApp.Name = "pyshared-hub"
	myApp.Usage = "dominant-cycle compute hub for the shared-memory bridge"
	myApp.Version = VERSION
	myApp.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "dll",
			Value: "",
			Usage: "path to the host's shared-memory bridge library (windows only)",
		},
		cli.StringFlag{
			Name:  "channel",
			Value: "",
			Usage: "restrict to a single channel name, overriding the config file's list",
		},
		cli.Int64Flag{
			Name:  "capacity",
			Value: 0,
			Usage: "override bridge.capacity_bytes from the config file, 0 to use the file's value",
		},
		cli.StringFlag{
			Name:  "config",
			Value: "",
			Usage: "path to the hub's YAML configuration file",
		},
		cli.IntFlag{
			Name:  "sleep_ms",
			Value: 0,
			Usage: "override bridge.sleep_ms (idle poll interval), 0 to use the file's value",
		},
		cli.BoolFlag{
			Name:  "verbose",
			Usage: "recorded in the startup log; no per-frame logging is emitted by this build",
		},
		cli.StringFlag{
			Name:  "backend",
			Value: "cpu",
			Usage: "cpu or gpu (gpu is accepted but falls back to cpu in this build)",
		},
		cli.StringFlag{
			Name:  "metrics_addr",
			Value: "",
			Usage: "address to serve Prometheus metrics on, empty to disable",
		},
	}

	myApp.Action = func(c *cli.Context) error {
		return run(c)
	}

	if err := myApp.Run(os.Args); err != nil {
		log.Printf("%+v\n", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	logger := log.New(os.Stderr, "", log.LstdFlags)

	path, err := config.ResolvePath(c.String("config"))
	if err != nil {
		color.Red("config resolution failed: %v", err)
		os.Exit(2)
	}
	logger.Println("config path:", path)

	backend := c.String("backend")
	if backend == "gpu" {
		color.Yellow("backend=gpu requested but this build only implements the cpu reference pipeline; continuing on cpu")
	}
	logger.Println("backend:", backend)
	logger.Println("verbose:", c.Bool("verbose"))

	reg := metrics.NewRegistry()
	if addr := c.String("metrics_addr"); addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", reg.Handler())
		go func() {
			if err := http.ListenAndServe(addr, mux); err != nil {
				logger.Printf("metrics server stopped: %v", err)
			}
		}()
		logger.Println("metrics listening on:", addr)
	}

	maxDoubles := 8192
	newClient := supervisor.NativeOrFallback(logger, c.String("dll"), maxDoubles)

	sup := supervisor.New(logger, newClient, path)
	sup.ChannelFilter = c.String("channel")
	if capacity := c.Int64("capacity"); capacity > 0 {
		sup.CapacityOverride = capacity
	}
	if sleepMs := c.Int("sleep_ms"); sleepMs > 0 {
		sup.SleepOverride = time.Duration(sleepMs) * time.Millisecond
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := sup.Start(ctx); err != nil {
		color.Red("startup failed: %v", err)
		os.Exit(2)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logger.Println("shutting down")
	sup.Stop()
	return nil
}
