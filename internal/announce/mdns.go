package announce

import (
	"fmt"

	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"
)

// MDNS advertises the control endpoint as an _http._tcp service under
// the configured hostname.
type MDNS struct {
	server *zeroconf.Server
	log    *zap.Logger
}

// StartMDNS begins advertising hostname on the local network.
func StartMDNS(hostname string, port int, log *zap.Logger) (*MDNS, error) {
	if log == nil {
		log = zap.NewNop()
	}

	server, err := zeroconf.Register(hostname, "_http._tcp", "local.", port,
		[]string{"path=/"}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to register mDNS service: %w", err)
	}

	log.Info("mDNS advertisement started", zap.String("hostname", hostname), zap.Int("port", port))
	return &MDNS{server: server, log: log}, nil
}

// Stop withdraws the advertisement.
func (m *MDNS) Stop() {
	m.server.Shutdown()
	m.log.Info("mDNS advertisement stopped")
}
