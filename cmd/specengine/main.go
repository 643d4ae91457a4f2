// Command specengine runs the real-time spectrum analysis server: it tunes
// a receiver, runs IQ through the DSP pipeline, tracks signals, and streams
// results to WebSocket clients.
package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cwsl/specengine/internal/config"
	appmetrics "github.com/cwsl/specengine/internal/metrics"
	"github.com/cwsl/specengine/internal/receiver"
	"github.com/cwsl/specengine/internal/signaldb"
	"github.com/cwsl/specengine/internal/stream"
	"github.com/cwsl/specengine/internal/wsapi"
)

var startTime time.Time

func main() {
	startTime = time.Now()

	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	listen := flag.String("listen", ":8080", "HTTP/WebSocket listen address")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	debugMode := *debug
	if v := os.Getenv("DEBUG"); v != "" {
		debugMode = v == "true" || v == "1" || v == "yes"
	}
	if debugMode {
		log.Println("debug mode enabled")
	}

	var cfg *config.Config
	if _, err := os.Stat(*configPath); err == nil {
		cfg, err = config.Load(*configPath)
		if err != nil {
			log.Fatalf("loading configuration: %v", err)
		}
	} else {
		log.Printf("no config file at %s, using built-in defaults", *configPath)
		cfg = config.Default()
	}

	logger := log.Default()

	store, err := signaldb.Open(cfg.SignalStore.Path, cfg.SignalStore.MatchBandwidthHz)
	if err != nil {
		log.Fatalf("opening signal store: %v", err)
	}
	defer store.Close()

	reg := prometheus.NewRegistry()
	m := appmetrics.New(reg)
	go sampleHostResourcesPeriodically(m)

	dev := receiver.NewSimDevice(1)
	rx := receiver.New(dev, cfg.Receiver.CenterFreq, cfg.Receiver.Gain, cfg.Receiver.SampleRate, cfg.Receiver.Bandwidth, logger)

	mgr, err := stream.New(cfg, rx, store, m, logger)
	if err != nil {
		log.Fatalf("building streaming orchestrator: %v", err)
	}

	wsServer := wsapi.New(mgr, logger)

	mux := http.NewServeMux()
	mux.Handle("/ws", wsServer)
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "ok uptime=%s\n", time.Since(startTime).Round(time.Second))
	})

	server := &http.Server{
		Addr:    *listen,
		Handler: mux,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		log.Println("shutting down")
		mgr.Stop()
		if err := server.Close(); err != nil {
			log.Printf("error closing server: %v", err)
		}
	}()

	log.Printf("specengine listening on %s", *listen)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server error: %v", err)
	}
}

func sampleHostResourcesPeriodically(m *appmetrics.Metrics) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for range ticker.C {
		if err := m.SampleHostResources(); err != nil {
			log.Printf("metrics: sampling host resources: %v", err)
		}
	}
}
