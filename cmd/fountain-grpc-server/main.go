package main

import (
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"

	"github.com/streamdna/biasedlt/internal/metrics"
	"github.com/streamdna/biasedlt/internal/session"
)

func main() {
	var (
		addr        = flag.String("addr", ":50051", "gRPC listen address")
		metricsAddr = flag.String("metrics", ":9102", "prometheus listen address (empty disables)")
	)
	flag.Parse()

	reg := prometheus.NewRegistry()
	m, err := metrics.NewDecoder(reg, "biasedlt")
	if err != nil {
		fmt.Fprintln(os.Stderr, "metrics:", err)
		os.Exit(1)
	}
	srv := session.NewServer(m)

	ln, err := net.Listen("tcp", *addr)
	if err != nil {
		fmt.Fprintln(os.Stderr, "listen:", err)
		os.Exit(1)
	}
	grpcSrv := grpc.NewServer()
	session.RegisterSessionServer(grpcSrv, session.NewGRPC(srv))

	// Trap signals to stop cleanly
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	go func() { <-c; grpcSrv.GracefulStop() }()

	if *metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		go func() {
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
				fmt.Fprintln(os.Stderr, "metrics serve:", err)
			}
		}()
		fmt.Println("metrics on", *metricsAddr+"/metrics")
	}

	fmt.Println("biasedlt session gRPC listening on", *addr)
	if err := grpcSrv.Serve(ln); err != nil {
		fmt.Println("grpc serve:", err)
	}
}
