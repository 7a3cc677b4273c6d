package query

import (
	"strings"
	"time"

	"github.com/dogmatiq/dodeca/logging"

	"github.com/quietwire/madns/ifevent"
	"github.com/quietwire/madns/internal/protocol"
)

// Option configures a Stream call using the standard functional-options
// pattern.
type Option func(*config)

type config struct {
	family            protocol.Family
	anyFamily         bool
	ifIndex           int
	ifName            string
	timeout           time.Duration
	interfacePrefixes []string
	eventSource       ifevent.Source
	logger            logging.Logger
}

func defaultConfig() *config {
	return &config{
		anyFamily: true,
		timeout:   5 * time.Second,
	}
}

// WithFamily restricts the query to one address family. The default,
// when this option is omitted, is "any" (both families).
func WithFamily(f protocol.Family) Option {
	return func(c *config) {
		c.family = f
		c.anyFamily = false
	}
}

// WithInterfaceIndex restricts the query to a single interface by
// index. Mutually exclusive with WithInterfaceName; whichever is
// applied last wins.
func WithInterfaceIndex(index int) Option {
	return func(c *config) { c.ifIndex = index; c.ifName = "" }
}

// WithInterfaceName restricts the query to a single interface by name.
func WithInterfaceName(name string) Option {
	return func(c *config) { c.ifName = name; c.ifIndex = 0 }
}

// WithTimeout overrides the default 5-second overall deadline.
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// WithInterfacePrefixes restricts eligible interfaces to those whose
// name starts with one of prefixes. When this option is never applied,
// the driver falls back to a default VPN/Docker exclusion list (see
// isVPNInterface/isDockerInterface) rather than matching literally
// every interface on the host.
func WithInterfacePrefixes(prefixes ...string) Option {
	return func(c *config) { c.interfacePrefixes = prefixes }
}

// WithEventSource wires an ifevent.Source so the driver can react to
// link_down/del_addr by withdrawing cache entries for a vanished
// interface. Optional; without one, Stream only runs until its
// deadline or the caller cancels the context.
func WithEventSource(s ifevent.Source) Option {
	return func(c *config) { c.eventSource = s }
}

// WithLogger sets the logging.Logger workers and the passive listener
// use. A nil logger (the default) discards all log output.
func WithLogger(l logging.Logger) Option {
	return func(c *config) { c.logger = l }
}

func (c *config) interfaceAllowed(name string) bool {
	if len(c.interfacePrefixes) > 0 {
		for _, p := range c.interfacePrefixes {
			if strings.HasPrefix(name, p) {
				return true
			}
		}
		return false
	}
	return !isVPNInterface(name) && !isDockerInterface(name)
}

// isVPNInterface matches the common VPN client naming conventions:
// utun (macOS system VPNs, Tunnelblick, OpenVPN), tun (Linux OpenVPN,
// generic TUN devices), ppp (PPTP/L2TP), wg and wireguard (WireGuard),
// tailscale.
func isVPNInterface(name string) bool {
	for _, prefix := range []string{"utun", "tun", "ppp", "wg", "tailscale", "wireguard"} {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

// isDockerInterface matches the default bridge (docker0), veth pairs,
// and custom bridge networks (br-*).
func isDockerInterface(name string) bool {
	if name == "docker0" {
		return true
	}
	for _, prefix := range []string{"veth", "br-"} {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}
