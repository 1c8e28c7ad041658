package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mbocsi/kiosk/config"
	"github.com/mbocsi/kiosk/discovery"
	"github.com/mbocsi/kiosk/receiver"
)

// udp-listener stands in for the exhibit player. It prints every command it
// receives and can advertise itself so the kiosk's discovery finds it.
func main() {
	addr := flag.String("addr", "0.0.0.0:5000", "UDP address to listen on")
	name := flag.String("name", "exhibit-player", "instance name")
	advertise := flag.Bool("advertise", false, "advertise the listener over mDNS")
	service := flag.String("service", discovery.DefaultService, "mDNS service type")
	level := flag.String("log-level", "info", "log level")
	flag.Parse()

	closer, err := config.SetupLogger(config.LogConfig{Level: *level, Format: "text"}, true)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer closer.Close()

	r := receiver.NewReceiver(*addr)
	r.SetName(*name)
	r.OnCommand(func(d receiver.Datagram) {
		fmt.Printf("%s %s %s\n", d.Received.Format("15:04:05.000"), d.From, d.Command)
	})
	if err := r.Listen(); err != nil {
		slog.Error("Failed to listen", "error", err.Error())
		os.Exit(1)
	}

	if *advertise {
		adv, err := discovery.Advertise(*name, *service, r.Port(), nil, []string{"name=" + *name})
		if err != nil {
			slog.Error("Failed to advertise", "error", err.Error())
		} else {
			defer adv.Shutdown()
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		r.Shutdown()
	}()

	if err := r.Start(); err != nil {
		slog.Error("Receiver stopped with error", "error", err.Error())
	}
}
