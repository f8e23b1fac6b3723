/*
Stand-alone relay router service.
*/
package main

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/relay-rt/relay/broker"
	"github.com/relay-rt/relay/gate"
	"github.com/relay-rt/relay/permission"
	"github.com/relay-rt/relay/server"
)

const version = "0.3.0"

func usage() {
	fmt.Fprintf(os.Stderr, "usage: %s [-c relay.yaml]\n", os.Args[0])
}

func main() {
	var cfgFile string
	var showVersion bool
	fs := flag.NewFlagSet("relayd", flag.ExitOnError)
	fs.StringVar(&cfgFile, "c", "etc/relay.yaml", "Path to config file")
	fs.BoolVar(&showVersion, "version", false, "print version")
	fs.Usage = usage
	if err := fs.Parse(os.Args[1:]); err != nil {
		os.Exit(1)
	}
	if showVersion {
		fmt.Println("version", version)
		os.Exit(0)
	}

	conf, err := LoadConfig(cfgFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	var zl *zap.Logger
	if conf.Debug {
		zl, err = zap.NewDevelopment()
	} else {
		zl, err = zap.NewProduction()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer zl.Sync()
	// The gate packages log through the minimal stdlog interface, which the
	// zap standard-logger bridge satisfies.
	logger := zap.NewStdLog(zl)

	authenticator, err := conf.Authenticator()
	if err != nil {
		logger.Print(err)
		os.Exit(1)
	}

	// Wire the gate: permission worker pool -> dispatcher/correlator ->
	// event broker.
	pool := permission.NewPool(conf.Evaluator(), conf.Permission.Workers)
	metrics := gate.NewMetrics(prometheus.DefaultRegisterer)
	brk := broker.New(logger)
	correlator := gate.NewCorrelator(brk, logger, metrics)
	dispatcher := gate.NewDispatcher(pool, correlator, logger, metrics)

	wss := server.NewWebsocketServer(dispatcher, authenticator, logger)
	wss.OutQueueSize = conf.WebSocket.OutQueueSize
	wss.OnDisconnect = brk.RemoveConnection

	var closers []io.Closer
	var closer io.Closer
	if conf.WebSocket.CertFile != "" && conf.WebSocket.KeyFile != "" {
		closer, err = wss.ListenAndServeTLS(conf.WebSocket.Address, nil,
			conf.WebSocket.CertFile, conf.WebSocket.KeyFile)
		if err == nil {
			logger.Printf("listening for TLS websocket connections on %s",
				conf.WebSocket.Address)
		}
	} else {
		closer, err = wss.ListenAndServe(conf.WebSocket.Address)
		if err == nil {
			logger.Printf("listening for websocket connections on %s",
				conf.WebSocket.Address)
		}
	}
	if err != nil {
		logger.Print(err)
		os.Exit(1)
	}
	closers = append(closers, closer)

	if conf.Metrics.Address != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		msrv := &http.Server{Addr: conf.Metrics.Address, Handler: mux}
		go msrv.ListenAndServe()
		closers = append(closers, msrv)
		logger.Printf("serving metrics on %s/metrics", conf.Metrics.Address)
	}

	// Shut down on SIGINT (CTRL-c) or SIGTERM.
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	<-shutdown

	for i := range closers {
		closers[i].Close()
	}
	pool.Close()
	brk.Close()
	logger.Print("shutdown complete")
}
