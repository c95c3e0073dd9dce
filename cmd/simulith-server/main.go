// Command simulith-server runs a standalone time-synchronization
// server: it broadcasts monotonic ticks to a fixed number of
// participants and gates each tick behind an ACK barrier.
package main

import (
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jlucas9/simulith/metrics"
	"github.com/jlucas9/simulith/timesync"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

func main() {
	broadcastAddr := flag.String("broadcast-addr", ":5555", "address to bind the tick broadcast channel")
	replyAddr := flag.String("reply-addr", ":5556", "address to bind the request/reply channel")
	expected := flag.Int("expected", 1, "number of participants to wait for before starting")
	tickNS := flag.Uint64("tick-ns", 1_000_000, "virtual-time advance per tick, in nanoseconds")
	metricsAddr := flag.String("metrics-addr", "", "if set, serve Prometheus metrics on this address")
	verbose := flag.Bool("verbose", false, "enable debug logging")
	flag.Parse()

	logger := logrus.New()
	if *verbose {
		logger.SetLevel(logrus.DebugLevel)
	}

	var collector *metrics.ServerCollector
	if *metricsAddr != "" {
		collector = metrics.NewServerCollector(*expected, prometheus.Labels{"app": "simulith-server"})
		prometheus.MustRegister(collector)
		go func() {
			http.Handle("/metrics", promhttp.Handler())
			logger.WithField("addr", *metricsAddr).Info("serving metrics")
			if err := http.ListenAndServe(*metricsAddr, nil); err != nil {
				logger.WithError(err).Error("metrics server stopped")
			}
		}()
	}

	srv, err := timesync.NewServer(timesync.ServerConfig{
		BroadcastAddr:   *broadcastAddr,
		ReplyAddr:       *replyAddr,
		ExpectedCount:   *expected,
		TickIncrementNS: *tickNS,
		Logger:          logger,
		Collector:       collector,
	})
	if err != nil {
		logger.WithError(err).Fatal("failed to start server")
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		logger.Info("shutting down")
		srv.Shutdown()
	}()

	if err := srv.Run(); err != nil {
		logger.WithError(err).Fatal("server exited")
	}
}
