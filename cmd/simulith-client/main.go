// Command simulith-client connects to a simulith-server, completes the
// handshake, and logs every tick it receives — a minimal embedder used
// for smoke-testing a running server.
package main

import (
	"flag"

	"github.com/jlucas9/simulith/timesync"
	"github.com/sirupsen/logrus"
)

func main() {
	broadcastAddr := flag.String("broadcast-addr", "127.0.0.1:5555", "address of the server's tick broadcast channel")
	replyAddr := flag.String("reply-addr", "127.0.0.1:5556", "address of the server's request/reply channel")
	id := flag.String("id", "", "this client's identity (required)")
	rateNS := flag.Uint64("rate-ns", 1_000_000, "this client's nominal update rate, in nanoseconds")
	verbose := flag.Bool("verbose", false, "enable debug logging")
	flag.Parse()

	logger := logrus.New()
	if *verbose {
		logger.SetLevel(logrus.DebugLevel)
	}
	if *id == "" {
		logger.Fatal("-id is required")
	}

	cli, err := timesync.NewClient(timesync.ClientConfig{
		BroadcastAddr: *broadcastAddr,
		ReplyAddr:     *replyAddr,
		ID:            *id,
		RateNS:        *rateNS,
		Logger:        logger,
	})
	if err != nil {
		logger.WithError(err).Fatal("failed to connect")
	}
	defer cli.Shutdown()

	if err := cli.Handshake(); err != nil {
		logger.WithError(err).Fatal("handshake failed")
	}

	err = cli.RunLoop(func(t uint64) {
		logger.WithField("time_ns", t).Info("tick")
	})
	if err != nil {
		logger.WithError(err).Error("client loop exited")
	}
}
