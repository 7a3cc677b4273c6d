// Package transport owns the per-interface multicast UDP sockets:
// platform socket options (socket_linux.go / socket_darwin.go /
// socket_windows.go), pooled receive buffers (buffer_pool.go), and here,
// the IPv4/IPv6 PacketConn setup itself — join group, pin the outgoing
// interface, disable loopback, raise TTL/hop-limit to 255, and turn on
// per-packet interface ancillary data so a passive listener can tell
// which interface a datagram arrived on.
package transport

import (
	"context"
	"fmt"
	"net"

	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"

	"github.com/quietwire/madns/internal/errors"
	"github.com/quietwire/madns/internal/protocol"
)

// Family distinguishes an IPv4 from an IPv6 multicast conn.
type Family = protocol.Family

const (
	FamilyIPv4 = protocol.FamilyIPv4
	FamilyIPv6 = protocol.FamilyIPv6
)

// Conn is a multicast UDP socket bound for one interface and address
// family, per InterfaceWorker's requirements (spec §4.7): SO_REUSEADDR/
// SO_REUSEPORT, loopback disabled, TTL/hop-limit 255, outgoing
// interface pinned, group joined, control messages enabled.
type Conn struct {
	family Family
	iface  net.Interface
	pc     net.PacketConn
	v4     *ipv4.PacketConn
	v6     *ipv6.PacketConn
	group  *net.UDPAddr
}

// Listen opens an ephemeral-port UDP socket on iface's address (family
// ipv4 or ipv6), joins the mDNS multicast group on iface, and configures
// it per spec §4.7 step 2.
func Listen(ctx context.Context, iface net.Interface, family Family) (*Conn, error) {
	network, bindAddr, group, err := addrsFor(iface, family)
	if err != nil {
		return nil, err
	}

	lc := net.ListenConfig{Control: PlatformControl}
	pc, err := lc.ListenPacket(ctx, network, bindAddr)
	if err != nil {
		return nil, &errors.SocketError{Operation: "bind", Err: err, Details: fmt.Sprintf("%s %s on %s", network, bindAddr, iface.Name)}
	}

	c := &Conn{family: family, iface: iface, pc: pc, group: group}

	ifaceCopy := iface
	switch family {
	case FamilyIPv4:
		c.v4 = ipv4.NewPacketConn(pc)
		if err := c.v4.JoinGroup(&ifaceCopy, &net.UDPAddr{IP: group.IP}); err != nil {
			_ = pc.Close()
			return nil, &errors.SocketError{Operation: "join group", Err: err, Details: iface.Name}
		}
		if err := c.v4.SetMulticastInterface(&ifaceCopy); err != nil {
			_ = pc.Close()
			return nil, &errors.SocketError{Operation: "set multicast interface", Err: err, Details: iface.Name}
		}
		if err := c.v4.SetMulticastTTL(255); err != nil {
			_ = pc.Close()
			return nil, &errors.SocketError{Operation: "set multicast ttl", Err: err}
		}
		if err := c.v4.SetMulticastLoopback(false); err != nil {
			_ = pc.Close()
			return nil, &errors.SocketError{Operation: "disable multicast loopback", Err: err}
		}
		if err := c.v4.SetControlMessage(ipv4.FlagInterface|ipv4.FlagDst, true); err != nil {
			_ = pc.Close()
			return nil, &errors.SocketError{Operation: "enable control messages", Err: err}
		}

	case FamilyIPv6:
		c.v6 = ipv6.NewPacketConn(pc)
		if err := c.v6.JoinGroup(&ifaceCopy, &net.UDPAddr{IP: group.IP}); err != nil {
			_ = pc.Close()
			return nil, &errors.SocketError{Operation: "join group", Err: err, Details: iface.Name}
		}
		if err := c.v6.SetMulticastInterface(&ifaceCopy); err != nil {
			_ = pc.Close()
			return nil, &errors.SocketError{Operation: "set multicast interface", Err: err, Details: iface.Name}
		}
		if err := c.v6.SetHopLimit(255); err != nil {
			_ = pc.Close()
			return nil, &errors.SocketError{Operation: "set hop limit", Err: err}
		}
		if err := c.v6.SetMulticastLoopback(false); err != nil {
			_ = pc.Close()
			return nil, &errors.SocketError{Operation: "disable multicast loopback", Err: err}
		}
		if err := c.v6.SetControlMessage(ipv6.FlagInterface|ipv6.FlagDst, true); err != nil {
			_ = pc.Close()
			return nil, &errors.SocketError{Operation: "enable control messages", Err: err}
		}
	}

	return c, nil
}

func addrsFor(iface net.Interface, family Family) (network, bindAddr string, group *net.UDPAddr, err error) {
	addrs, err := iface.Addrs()
	if err != nil {
		return "", "", nil, &errors.SocketError{Operation: "enumerate interface addresses", Err: err, Details: iface.Name}
	}

	var ip net.IP
	for _, a := range addrs {
		ipnet, ok := a.(*net.IPNet)
		if !ok {
			continue
		}
		is4 := ipnet.IP.To4() != nil
		if family == FamilyIPv4 && is4 {
			ip = ipnet.IP
			break
		}
		if family == FamilyIPv6 && !is4 && ipnet.IP.IsLinkLocalUnicast() {
			ip = ipnet.IP
			break
		}
	}
	if ip == nil {
		return "", "", nil, &errors.SocketError{Operation: "select interface address", Err: fmt.Errorf("no usable address"), Details: iface.Name}
	}

	if family == FamilyIPv4 {
		return "udp4", net.JoinHostPort(ip.String(), "0"), protocol.MulticastGroupIPv4(), nil
	}
	return "udp6", net.JoinHostPort(ip.String()+"%"+iface.Name, "0"), protocol.MulticastGroupIPv6(), nil
}

// Send writes payload to the mDNS multicast group on this conn's
// interface.
func (c *Conn) Send(payload []byte) error {
	switch c.family {
	case FamilyIPv4:
		cm := &ipv4.ControlMessage{IfIndex: c.iface.Index}
		_, err := c.v4.WriteTo(payload, cm, c.group)
		if err != nil {
			return &errors.SocketError{Operation: "send", Err: err, Details: c.iface.Name}
		}
	case FamilyIPv6:
		cm := &ipv6.ControlMessage{IfIndex: c.iface.Index}
		dest := &net.UDPAddr{IP: c.group.IP, Port: c.group.Port, Zone: c.iface.Name}
		_, err := c.v6.WriteTo(payload, cm, dest)
		if err != nil {
			return &errors.SocketError{Operation: "send", Err: err, Details: c.iface.Name}
		}
	}
	return nil
}

// Receive blocks until a datagram arrives or ctx's deadline (if it has
// one) passes, returning the payload and the interface index it was
// received on (useful for the always-on passive listener, which is not
// bound to a single interface). Canceling a ctx that has no deadline
// does not interrupt a read in progress; closing the conn does.
func (c *Conn) Receive(ctx context.Context) (payload []byte, ifIndex int, src net.Addr, err error) {
	if deadline, ok := ctx.Deadline(); ok {
		_ = c.pc.SetReadDeadline(deadline)
	} else {
		_ = c.pc.SetReadDeadline(zeroTime)
	}

	bufPtr := GetBuffer()
	defer PutBuffer(bufPtr)
	buf := *bufPtr

	switch c.family {
	case FamilyIPv4:
		n, cm, srcAddr, readErr := c.v4.ReadFrom(buf)
		if readErr != nil {
			return nil, 0, nil, &errors.SocketError{Operation: "receive", Err: readErr, Details: c.iface.Name}
		}
		result := make([]byte, n)
		copy(result, buf[:n])
		idx := c.iface.Index
		if cm != nil {
			idx = cm.IfIndex
		}
		return result, idx, srcAddr, nil

	case FamilyIPv6:
		n, cm, srcAddr, readErr := c.v6.ReadFrom(buf)
		if readErr != nil {
			return nil, 0, nil, &errors.SocketError{Operation: "receive", Err: readErr, Details: c.iface.Name}
		}
		result := make([]byte, n)
		copy(result, buf[:n])
		idx := c.iface.Index
		if cm != nil {
			idx = cm.IfIndex
		}
		return result, idx, srcAddr, nil
	}
	return nil, 0, nil, &errors.SocketError{Operation: "receive", Err: fmt.Errorf("unknown family")}
}

// Close releases the underlying socket.
func (c *Conn) Close() error {
	if err := c.pc.Close(); err != nil {
		return &errors.SocketError{Operation: "close", Err: err, Details: c.iface.Name}
	}
	return nil
}

// Interface returns the network interface this conn is bound to.
func (c *Conn) Interface() net.Interface { return c.iface }

// ListenPassive opens the fixed-port (5353) socket the always-on
// passive listener uses, joining the mDNS group on every interface in
// ifaces. Unlike Listen, it does not pin an outgoing interface — it is
// receive-only ingestion, never a query sender.
func ListenPassive(ctx context.Context, ifaces []net.Interface, family Family) (*Conn, error) {
	network, group := "udp4", protocol.MulticastGroupIPv4()
	if family == FamilyIPv6 {
		network, group = "udp6", protocol.MulticastGroupIPv6()
	}

	lc := net.ListenConfig{Control: PlatformControl}
	pc, err := lc.ListenPacket(ctx, network, net.JoinHostPort("", fmt.Sprint(protocol.Port)))
	if err != nil {
		return nil, &errors.SocketError{Operation: "bind passive listener", Err: err}
	}

	c := &Conn{family: family, pc: pc, group: group}

	switch family {
	case FamilyIPv4:
		c.v4 = ipv4.NewPacketConn(pc)
		for _, iface := range ifaces {
			ifaceCopy := iface
			if err := c.v4.JoinGroup(&ifaceCopy, &net.UDPAddr{IP: group.IP}); err != nil {
				_ = pc.Close()
				return nil, &errors.SocketError{Operation: "join group", Err: err, Details: iface.Name}
			}
		}
		if err := c.v4.SetControlMessage(ipv4.FlagInterface|ipv4.FlagDst, true); err != nil {
			_ = pc.Close()
			return nil, &errors.SocketError{Operation: "enable control messages", Err: err}
		}
	case FamilyIPv6:
		c.v6 = ipv6.NewPacketConn(pc)
		for _, iface := range ifaces {
			ifaceCopy := iface
			if err := c.v6.JoinGroup(&ifaceCopy, &net.UDPAddr{IP: group.IP}); err != nil {
				_ = pc.Close()
				return nil, &errors.SocketError{Operation: "join group", Err: err, Details: iface.Name}
			}
		}
		if err := c.v6.SetControlMessage(ipv6.FlagInterface|ipv6.FlagDst, true); err != nil {
			_ = pc.Close()
			return nil, &errors.SocketError{Operation: "enable control messages", Err: err}
		}
	}

	return c, nil
}
