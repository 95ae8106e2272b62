package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	udpsrv "github.com/Nexxado/UDP-Server"
)

const usage = "Usage: server [flags] <port>\n"

var (
	dscp          = flag.Int("dscp", 0, "DSCP value for responses, 0 leaves the default")
	rcvbuf        = flag.Int("rcvbuf", 0, "socket receive buffer in bytes, 0 leaves the default")
	sndbuf        = flag.Int("sndbuf", 0, "socket send buffer in bytes, 0 leaves the default")
	qcap          = flag.Int("qcap", 0, "pending response limit, 0 is unbounded")
	overflow      = flag.String("overflow", "none", "policy when -qcap is reached: none, drop-oldest, drop-newest, reject-new")
	sendErrors    = flag.String("send-errors", "fatal", "on a failed send: fatal or log")
	quitToken     = flag.String("quit-token", "", "datagrams starting with this text stop the server, empty disables")
	statsFile     = flag.String("statsfile", "", "write counters to this xlsx file on exit")
	statsInterval = flag.Duration("statsinterval", 0, "log counters at this interval, 0 disables")
	verbose       = flag.Bool("v", false, "log every read and write")
)

func main() {
	flag.Usage = func() {
		fmt.Print(usage)
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Print(usage)
		os.Exit(1)
	}
	port, err := udpsrv.ParsePort(flag.Arg(0))
	if err != nil {
		fmt.Print(usage)
		os.Exit(1)
	}

	level := zerolog.InfoLevel
	if *verbose {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(level).With().Timestamp().Logger()

	cfg := udpsrv.DefaultConfig()
	cfg.Logger = &logger
	cfg.QueueCap = *qcap
	cfg.Signals = []os.Signal{os.Interrupt, syscall.SIGTERM}
	if *quitToken != "" {
		cfg.ShutdownToken = []byte(*quitToken)
	}
	if cfg.Overflow, err = udpsrv.ParseOverflow(*overflow); err != nil {
		logger.Error().Err(err).Msg("flags")
		os.Exit(1)
	}
	if cfg.SendErrors, err = udpsrv.ParseSendErrorPolicy(*sendErrors); err != nil {
		logger.Error().Err(err).Msg("flags")
		os.Exit(1)
	}

	os.Exit(run(port, cfg, logger))
}

func run(port int, cfg udpsrv.Config, logger zerolog.Logger) int {
	ep, err := udpsrv.Bind(port)
	if err != nil {
		logger.Error().Err(err).Int("port", port).Msg("bind")
		return 1
	}
	defer ep.Close()
	tune(ep, logger)

	mux, err := udpsrv.NewPoller(ep)
	if err != nil {
		logger.Error().Err(err).Msg("poller")
		return 1
	}
	defer mux.Close()

	if *statsInterval > 0 {
		sched := udpsrv.NewTimedSched()
		defer sched.Close()
		reporter := udpsrv.NewStatsReporter(sched, *statsInterval, func(st *udpsrv.Stats) {
			logger.Info().
				Uint64("in", st.InDatagrams).
				Uint64("out", st.OutDatagrams).
				Uint64("dropped", st.Dropped).
				Uint64("maxqueue", st.MaxQueueLen).
				Msg("stats")
		})
		defer reporter.Stop()
	}

	status := 0
	if err := udpsrv.NewServer(ep, mux, cfg).Serve(context.Background()); err != nil {
		logger.Error().Err(err).Msg("server stopped")
		status = 1
	}

	if *statsFile != "" {
		if err := udpsrv.DefaultStats.WriteXLSX(*statsFile); err != nil {
			logger.Error().Err(err).Str("file", *statsFile).Msg("write stats")
		}
	}
	return status
}

func tune(ep *udpsrv.Endpoint, logger zerolog.Logger) {
	if *dscp > 0 {
		if err := ep.SetDSCP(*dscp); err != nil {
			logger.Warn().Err(err).Msg("SetDSCP")
		}
	}
	if *rcvbuf > 0 {
		if err := ep.SetReadBuffer(*rcvbuf); err != nil {
			logger.Warn().Err(err).Msg("SetReadBuffer")
		}
	}
	if *sndbuf > 0 {
		if err := ep.SetWriteBuffer(*sndbuf); err != nil {
			logger.Warn().Err(err).Msg("SetWriteBuffer")
		}
	}
}
