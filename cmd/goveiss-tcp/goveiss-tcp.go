package main

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"net"
	"os"
	"strconv"

	"github.com/jessevdk/go-flags"

	"goveiss/internal/bridge"
	"goveiss/internal/common"
	"goveiss/internal/config"
	"goveiss/internal/session"
)

type server struct {
	db       *sql.DB
	cfg      *config.Config
	logger   *slog.Logger
	notifier *common.Notifier
}

func (this *server) handleRequest(conn net.Conn) {
	defer conn.Close()

	hello, err := bridge.ReadMessage(conn)
	if err != nil {
		this.logger.Error("could not fetch hello", "remote", conn.RemoteAddr().String(), "error", err)
		conn.Write([]byte{bridge.ERR_CLSD})
		return
	}
	deviceId, err := hello.DeviceId()
	if err != nil {
		this.logger.Error("invalid hello", "remote", conn.RemoteAddr().String(), "error", err)
		conn.Write([]byte{bridge.ERR_VAL})
		return
	}
	device, err := common.GetDevice(this.db, deviceId)
	if err != nil {
		this.logger.Error("unknown device", "device", deviceId, "error", err)
		conn.Write([]byte{bridge.ERR_VAL})
		return
	}
	conn.Write([]byte{bridge.STATUS_HELLO_OK})

	logger := this.logger.With("device", device.Id, "name", device.Name)
	engine := session.NewEngine(session.Options{Tuning: this.cfg.Tuning, Logger: logger})
	_, outputs := engine.Subscribe()
	recorder := &common.Recorder{
		Db:       this.db,
		DeviceId: device.Id,
		Notify:   this.notifier.Notify,
		Logger:   logger,
	}
	recorded := make(chan struct{})
	go func() {
		recorder.Run(outputs)
		close(recorded)
	}()

	status := bridge.STATUS_SUCCESS
	for {
		m, err := bridge.ReadMessage(conn)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			logger.Error("could not fetch message", "error", err)
			status = bridge.ERR_VAL
			break
		}
		ev, err := m.Event()
		if err != nil {
			logger.Warn("dropping message", "kind", m.Kind, "error", err)
			continue
		}
		if f, ok := ev.(*session.FrameEvent); ok {
			f.Format = device.Format
		}
		if err := engine.Submit(context.Background(), ev); err != nil {
			logger.Error("could not submit event", "error", err)
			status = bridge.ERR_CLSD
			break
		}
	}

	engine.Close()
	<-recorded
	conn.Write([]byte{status})
	logger.Info("bridge disconnected")
}

func main() {
	var opts struct {
		ConfigFile   string `short:"c" long:"config" description:"YAML config file path"`
		DatabaseFile string `short:"d" long:"database" description:"SQLite3 database file path"`
		Host         string `short:"h" long:"host" description:"Host to bind on"`
		Port         int    `short:"p" long:"port" description:"Port to bind on"`
	}
	_, err := flags.Parse(&opts)
	if err != nil {
		return
	}

	cfg, err := config.Load(opts.ConfigFile)
	if err != nil {
		slog.Error("could not load config", "error", err)
		os.Exit(1)
	}
	if opts.DatabaseFile != "" {
		cfg.Database.Path = opts.DatabaseFile
	}
	if opts.Host != "" {
		cfg.Server.Host = opts.Host
	}
	if opts.Port != 0 {
		cfg.Server.Port = opts.Port
	}
	logger := cfg.Log.NewLogger()

	db, err := common.Open(cfg.Database.Path)
	if err != nil {
		logger.Error("could not open database", "path", cfg.Database.Path, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	n := common.NewNotifier(cfg.Notify, logger)
	defer n.Close()

	l, err := net.Listen("tcp", net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)))
	if err != nil {
		logger.Error("could not listen", "error", err)
		os.Exit(1)
	}
	defer l.Close()
	logger.Info("listening", "address", l.Addr().String())

	s := &server{db: db, cfg: cfg, logger: logger, notifier: n}
	for {
		conn, err := l.Accept()
		if err != nil {
			logger.Error("could not accept connection", "error", err)
			continue
		}
		go s.handleRequest(conn)
	}
}
