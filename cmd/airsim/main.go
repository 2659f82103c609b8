// Command airsim runs a simulated Philips air purifier for development
// and testing against real driver code without hardware.
//
// Usage:
//
//	airsim [flags]
//
// Flags:
//
//	-listen string     UDP listen address (default ":5683")
//	-device-id string  Simulated device ID (default "sim0001")
//	-model string      Simulated model (default "AC4236")
//	-name string       Simulated device name (default "Simulated Purifier")
//	-simulate          Vary air quality readings over time (default true)
//	-interval duration Interval between simulated readings (default 10s)
//
// Examples:
//
//	# Run on the well-known port
//	airsim
//
//	# Run on an alternate port with static readings
//	airsim -listen :15683 -simulate=false
package main

import (
	"flag"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/mertbulan/philips-airpurifier/pkg/purifier"
	"github.com/mertbulan/philips-airpurifier/pkg/transport"
	"github.com/mertbulan/philips-airpurifier/pkg/wire"
)

var config struct {
	Listen   string
	DeviceID string
	Model    string
	Name     string
	Simulate bool
	Interval time.Duration
}

func init() {
	flag.StringVar(&config.Listen, "listen", ":5683", "UDP listen address")
	flag.StringVar(&config.DeviceID, "device-id", "sim0001", "Simulated device ID")
	flag.StringVar(&config.Model, "model", "AC4236", "Simulated model")
	flag.StringVar(&config.Name, "name", "Simulated Purifier", "Simulated device name")
	flag.BoolVar(&config.Simulate, "simulate", true, "Vary air quality readings over time")
	flag.DurationVar(&config.Interval, "interval", 10*time.Second, "Interval between simulated readings")
}

func main() {
	flag.Parse()
	log.SetFlags(log.Ltime | log.Lmicroseconds)

	srv, err := transport.NewServer(transport.ServerConfig{
		Listen: config.Listen,
		Status: initialStatus(),
	})
	if err != nil {
		log.Fatalf("Failed to start simulator: %v", err)
	}
	defer srv.Close()

	log.Printf("Simulated %s listening on %s:%d", config.Model, srv.Host(), srv.Port())
	log.Printf("Session token: %s", srv.Token())

	stopSim := make(chan struct{})
	if config.Simulate {
		go runSimulation(srv, stopSim)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh

	log.Printf("Received signal: %v", sig)
	close(stopSim)
	log.Println("Goodbye!")
}

func initialStatus() wire.Status {
	return wire.Status{
		purifier.KeyPower:            "1",
		purifier.KeyMode:             "AG",
		purifier.KeySpeed:            "1",
		purifier.KeyPM25:             "6",
		purifier.KeyAllergenIndex:    "2",
		purifier.KeyTVOC:             "1",
		purifier.KeyLightBrightness:  "50",
		purifier.KeyDisplayBacklight: "1",
		purifier.KeyPreferredIndex:   "1",
		purifier.KeyChildLock:        "False",
		purifier.KeyLanguage:         "EN",
		purifier.KeyName:             config.Name,
		purifier.KeyType:             config.Model,
		purifier.KeyModelID:          config.Model,
		purifier.KeyDeviceID:         config.DeviceID,
		purifier.KeySoftwareVersion:  "0.2.1",
		purifier.KeyDeviceVersion:    "2.1.0",
		purifier.KeyWifiVersion:      "AWS_Philips_AIR@62.1",
		purifier.KeyProductID:        "simulated",
		purifier.KeyRuntime:          "0",
	}
}

// runSimulation drifts the air quality readings so observers see
// regular pushes.
func runSimulation(srv *transport.Server, stop <-chan struct{}) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	start := time.Now()

	ticker := time.NewTicker(config.Interval)
	defer ticker.Stop()

	pm25 := 6
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			pm25 += rng.Intn(5) - 2
			if pm25 < 1 {
				pm25 = 1
			}
			if pm25 > 60 {
				pm25 = 60
			}

			srv.SetStatus(purifier.KeyPM25, strconv.Itoa(pm25))
			srv.SetStatus(purifier.KeyAllergenIndex, strconv.Itoa(1+pm25/10))
			srv.SetStatus(purifier.KeyRuntime,
				strconv.FormatInt(time.Since(start).Milliseconds(), 10))
		}
	}
}
