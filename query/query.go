// Package query is the public API: Stream issues an mDNS service query
// across every eligible interface and yields decoded responses as they
// arrive, until the deadline or the caller cancels.
package query

import (
	"context"
	"net"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/dogmatiq/dodeca/logging"

	"github.com/quietwire/madns/ifevent"
	"github.com/quietwire/madns/internal/cache"
	"github.com/quietwire/madns/internal/protocol"
	"github.com/quietwire/madns/internal/transport"
	"github.com/quietwire/madns/internal/wire"
	"github.com/quietwire/madns/internal/worker"
)

// DecodedResponse is one message yielded on a Stream's channel, tagged
// with the interface and family it arrived on.
type DecodedResponse struct {
	Family  protocol.Family
	IfIndex int
	Message wire.Message
}

// Driver holds the shared cache and the passive listeners backing every
// Stream call made through it. The zero value is not usable; construct
// one with New.
type Driver struct {
	cache   *cache.Cache
	logger  logging.Logger
	mu      sync.Mutex
	passive map[protocol.Family]*transport.Conn
	cancel  map[protocol.Family]context.CancelFunc
}

// New constructs a Driver with its own Cache. Call Close when done to
// release the Cache's goroutine and any running passive listeners.
func New(opts ...Option) *Driver {
	c := defaultConfig()
	for _, opt := range opts {
		opt(c)
	}
	return &Driver{
		cache:   cache.New(),
		logger:  c.logger,
		passive: make(map[protocol.Family]*transport.Conn),
		cancel:  make(map[protocol.Family]context.CancelFunc),
	}
}

// Close stops the Cache actor and any passive listeners started by
// Stream calls on this Driver. cancel and conn.Close must go together
// here: the passive listener's Receive has no read deadline (it isn't
// tied to a query timeout), so it's the socket close, not ctx.Done,
// that unblocks a listener goroutine parked in a read.
func (d *Driver) Close() {
	d.mu.Lock()
	for family, cancel := range d.cancel {
		cancel()
		if conn, ok := d.passive[family]; ok {
			_ = conn.Close()
		}
	}
	d.mu.Unlock()
	d.cache.Close()
}

// Stream issues a query for (name, recordType) across every interface
// matching opts and returns a channel of decoded responses. The channel
// closes when the deadline (default 5s) elapses or ctx is canceled.
func (d *Driver) Stream(ctx context.Context, name string, recordType protocol.TypeCode, opts ...Option) (<-chan DecodedResponse, error) {
	c := defaultConfig()
	for _, opt := range opts {
		opt(c)
	}

	if err := protocol.ValidateName(name); err != nil {
		return nil, err
	}
	if err := protocol.ValidateRecordType(recordType); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)

	targets, err := d.eligibleTargets(c)
	if err != nil {
		cancel()
		return nil, err
	}

	d.ensurePassiveListeners(targets)

	out := make(chan DecodedResponse)
	g, gctx := errgroup.WithContext(ctx)
	questions := worker.BuildQuestions(name, recordType)

	spawn := func(t target) {
		g.Go(func() error {
			w, err := worker.New(gctx, t.iface, t.family, d.cache, d.logger)
			if err != nil {
				// A bind failure is fatal to this worker only;
				// sibling workers keep running.
				logging.Log(d.logger, "worker for %s/%s failed to start: %s", t.iface.Name, t.family, err)
				return nil
			}
			defer w.Close()

			responses := make(chan worker.Response)
			done := make(chan error, 1)
			go func() { done <- w.Run(gctx, questions, responses) }()

			for {
				select {
				case resp, ok := <-responses:
					if !ok {
						logWorkerFailure(d.logger, t, <-done)
						return nil
					}
					select {
					case out <- DecodedResponse{Family: resp.Family, IfIndex: resp.IfIndex, Message: resp.Message}:
					case <-gctx.Done():
						return nil
					}
				case err := <-done:
					// A send or receive failure here is fatal to this
					// worker only; returning it through g.Go would cancel
					// gctx and tear down every sibling worker.
					logWorkerFailure(d.logger, t, err)
					return nil
				case <-gctx.Done():
					return nil
				}
			}
		})
	}

	for _, t := range targets {
		spawn(t)
	}

	if c.eventSource != nil {
		d.watchEvents(gctx, c, spawn)
	}

	go func() {
		_ = g.Wait()
		cancel()
		close(out)
	}()

	return out, nil
}

// logWorkerFailure reports a worker's post-bind failure (send or
// receive) without propagating it — that failure is fatal to this
// (interface, family) pair only. err is nil on a clean shutdown
// (ctx canceled or deadline reached), in which case nothing is logged.
func logWorkerFailure(logger logging.Logger, t target, err error) {
	if err == nil {
		return
	}
	logging.Log(logger, "worker for %s/%s stopped: %s", t.iface.Name, t.family, err)
}

// watchEvents reacts to link/address changes for the lifetime of gctx:
// DelAddr withdraws that family's cache entries for the interface,
// LinkDown withdraws both families (the interface itself is gone), and
// NewAddr spawns a worker for the newly usable (interface, family) pair
// if it still passes the query's filters. LinkUp alone carries no
// family/address and is not actionable on its own; the NewAddr that
// follows is.
func (d *Driver) watchEvents(gctx context.Context, c *config, spawn func(target)) {
	events, err := c.eventSource.Events(gctx)
	if err != nil {
		logging.Log(d.logger, "event source failed to start: %s", err)
		return
	}
	go func() {
		for {
			select {
			case <-gctx.Done():
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				d.handleEvent(gctx, c, ev, spawn)
			}
		}
	}()
}

func (d *Driver) handleEvent(gctx context.Context, c *config, ev ifevent.Event, spawn func(target)) {
	switch ev.Kind {
	case ifevent.LinkDown:
		d.cache.WithdrawInterface(protocol.FamilyIPv4, ev.IfIndex)
		d.cache.WithdrawInterface(protocol.FamilyIPv6, ev.IfIndex)
	case ifevent.DelAddr:
		d.cache.WithdrawInterface(ev.Family, ev.IfIndex)
	case ifevent.NewAddr:
		iface, err := net.InterfaceByIndex(ev.IfIndex)
		if err != nil {
			logging.Log(d.logger, "event source: interface %d vanished before it could be queried: %s", ev.IfIndex, err)
			return
		}
		if c.ifIndex != 0 && iface.Index != c.ifIndex {
			return
		}
		if c.ifName != "" && iface.Name != c.ifName {
			return
		}
		if !c.interfaceAllowed(iface.Name) {
			return
		}
		if !c.anyFamily && c.family != ev.Family {
			return
		}
		select {
		case <-gctx.Done():
		default:
			spawn(target{iface: *iface, family: ev.Family})
		}
	}
}

type target struct {
	iface  net.Interface
	family protocol.Family
}

// eligibleTargets enumerates (interface, family) pairs matching the
// query's filters: up, multicast-capable, not loopback, and passing
// the family/ifindex/ifname/prefix filters.
func (d *Driver) eligibleTargets(c *config) ([]target, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	var targets []target
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagMulticast == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		if c.ifIndex != 0 && iface.Index != c.ifIndex {
			continue
		}
		if c.ifName != "" && iface.Name != c.ifName {
			continue
		}
		if !c.interfaceAllowed(iface.Name) {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		hasV4, hasV6 := false, false
		for _, a := range addrs {
			if ipnet, ok := a.(*net.IPNet); ok {
				if ipnet.IP.To4() != nil {
					hasV4 = true
				} else if ipnet.IP.IsLinkLocalUnicast() {
					hasV6 = true
				}
			}
		}

		wantV4 := c.anyFamily || c.family == protocol.FamilyIPv4
		wantV6 := c.anyFamily || c.family == protocol.FamilyIPv6
		if wantV4 && hasV4 {
			targets = append(targets, target{iface: iface, family: protocol.FamilyIPv4})
		}
		if wantV6 && hasV6 {
			targets = append(targets, target{iface: iface, family: protocol.FamilyIPv6})
		}
	}
	return targets, nil
}

// ensurePassiveListeners starts the always-on passive listener for each
// family present in targets, once per Driver lifetime.
func (d *Driver) ensurePassiveListeners(targets []target) {
	byFamily := make(map[protocol.Family][]net.Interface)
	for _, t := range targets {
		byFamily[t.family] = append(byFamily[t.family], t.iface)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	for family, ifaces := range byFamily {
		if _, ok := d.passive[family]; ok {
			continue
		}
		listenCtx, cancel := context.WithCancel(context.Background())
		conn, err := transport.ListenPassive(listenCtx, ifaces, family)
		if err != nil {
			logging.Log(d.logger, "passive listener for %s failed to start: %s", family, err)
			cancel()
			continue
		}
		d.passive[family] = conn
		d.cancel[family] = cancel
		go func(family protocol.Family, conn *transport.Conn) {
			_ = worker.Listen(listenCtx, conn, family, d.cache, d.logger)
		}(family, conn)
	}
}
