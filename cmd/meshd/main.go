package main

/*------------------------------------------------------------------
 *
 * Purpose:	meshd — a standalone process hosting one NWK stack
 *		against a real or loopback PHY transceiver link.
 *
 * Description:	Flags select a config file and optionally override the
 *		transport; everything else (addressing, security, table
 *		sizing) comes from the YAML config, mirroring the
 *		teacher's pattern of pflag-over-config-file.
 *
 *------------------------------------------------------------------*/

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"

	"github.com/tklabs/lwmesh/src"
	"github.com/tklabs/lwmesh/transport"
	"github.com/tklabs/lwmesh/transport/serial"
	"github.com/tklabs/lwmesh/transport/tcp"
)

func main() {
	configPath := pflag.StringP("config", "c", "meshd.yaml", "path to config file")
	transportOverride := pflag.String("transport", "", "override transport kind: serial or tcp")
	serialPath := pflag.String("serial-path", "", "override serial device path")
	tcpAddr := pflag.String("tcp-addr", "", "override tcp transport address")
	verbose := pflag.BoolP("verbose", "v", false, "debug-level logging")
	pflag.Parse()

	logger := log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true})
	if *verbose {
		logger.SetLevel(log.DebugLevel)
	}

	if err := run(logger, *configPath, *transportOverride, *serialPath, *tcpAddr); err != nil {
		logger.Error("meshd exiting", "err", err)
		os.Exit(1)
	}
}

func run(logger *log.Logger, configPath, transportOverride, serialPath, tcpAddr string) error {
	cfg, err := nwk.LoadConfig(configPath)
	if err != nil {
		return err
	}

	if transportOverride != "" {
		cfg.Transport.Kind = transportOverride
	}
	if serialPath != "" {
		cfg.Transport.SerialPath = serialPath
	}
	if tcpAddr != "" {
		cfg.Transport.TCPAddr = tcpAddr
	}

	key, err := cfg.Key()
	if err != nil {
		return err
	}

	link, err := dial(cfg.Transport, logger)
	if err != nil {
		return err
	}
	defer link.Close()

	stack := nwk.NewStack(link, cfg.StackConfig())
	stack.SetLogger(logger)

	if cfg.Trace.Path != "" {
		traceFile, err := os.OpenFile(cfg.Trace.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("meshd: open trace file: %w", err)
		}
		defer traceFile.Close()
		stack.SetFrameTracer(nwk.NewFrameTracer(traceFile, cfg.Trace.TimestampFormat))
	}

	stack.SetAddr(cfg.Addr)
	stack.SetPanID(cfg.PanID)
	stack.SetTxPower(cfg.TxPwr)
	stack.SetSecurityMode(cfg.Security)
	stack.SetKey(key)

	link.BindCallbacks(stack)
	go func() {
		if err := link.Run(); err != nil {
			logger.Warn("transport link closed", "err", err)
		}
	}()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt, syscall.SIGTERM)

	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()

	logger.Info("meshd started", "addr", fmt.Sprintf("0x%04X", cfg.Addr), "pan_id", fmt.Sprintf("0x%04X", cfg.PanID))

	for {
		select {
		case <-sigc:
			logger.Info("meshd shutting down")
			return nil
		case <-ticker.C:
			stack.Tick(1)
			stack.TaskHandler()
		}
	}
}

func dial(cfg nwk.TransportConfig, logger *log.Logger) (*transport.Link, error) {
	switch cfg.Kind {
	case "tcp":
		return tcp.Dial(cfg.TCPAddr, logger)
	case "serial", "":
		return serial.Open(cfg.SerialPath, cfg.SerialBaud, logger)
	default:
		return nil, fmt.Errorf("meshd: unknown transport kind %q", cfg.Kind)
	}
}
