package common

import (
	"log/slog"
	"strconv"
	"sync"

	"github.com/pebbe/zmq4"

	"goveiss/internal/config"
)

// Notifier pushes the ids of stored sets to a ZMQ PULL socket. It is safe
// for concurrent use, and a nil Notifier or one without a socket does nothing.
type Notifier struct {
	mu     sync.Mutex
	socket *zmq4.Socket
	logger *slog.Logger
}

// NewNotifier connects to the configured endpoint. Notifications are
// disabled when notify.host is empty or the socket cannot be set up.
func NewNotifier(cfg config.NotifyConfig, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	n := &Notifier{logger: logger}
	if cfg.Host == "" {
		return n
	}
	soc, err := zmq4.NewSocket(zmq4.PUSH)
	if err != nil {
		logger.Warn("could not create ZMQ socket (notifications disabled)", "error", err)
		return n
	}
	if err = soc.Connect("tcp://" + cfg.Host + ":" + strconv.Itoa(cfg.Port)); err != nil {
		logger.Warn("could not connect to ZMQ server (notifications disabled)", "error", err)
		soc.Close()
		return n
	}
	n.socket = soc
	return n
}

func (this *Notifier) Enabled() bool {
	if this == nil {
		return false
	}
	this.mu.Lock()
	defer this.mu.Unlock()
	return this.socket != nil
}

func (this *Notifier) Notify(setId int) {
	if this == nil {
		return
	}
	this.mu.Lock()
	defer this.mu.Unlock()
	if this.socket == nil {
		return
	}
	if _, err := this.socket.Send(strconv.Itoa(setId), zmq4.DONTWAIT); err != nil {
		this.logger.Warn("could not send set notification", "set", setId, "error", err)
	}
}

func (this *Notifier) Close() {
	if this == nil {
		return
	}
	this.mu.Lock()
	defer this.mu.Unlock()
	if this.socket != nil {
		this.socket.Close()
		this.socket = nil
	}
}
