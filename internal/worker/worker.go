// Package worker implements InterfaceWorker: the per-(interface, family)
// task that owns one multicast socket, seeds and sends the initial
// query, and feeds every received datagram to the Cache and (for active
// workers) to the caller's stream.
package worker

import (
	"context"
	"net"

	"github.com/dogmatiq/dodeca/logging"

	"github.com/quietwire/madns/internal/cache"
	"github.com/quietwire/madns/internal/protocol"
	"github.com/quietwire/madns/internal/recordset"
	"github.com/quietwire/madns/internal/transport"
	"github.com/quietwire/madns/internal/wire"
)

// Response is one decoded message forwarded by an active worker,
// tagged with where it came from.
type Response struct {
	Family  protocol.Family
	IfIndex int
	Message wire.Message
}

// InterfaceWorker owns one multicast socket bound to a single
// (interface, family) pair.
type InterfaceWorker struct {
	iface  net.Interface
	family protocol.Family
	cache  *cache.Cache
	logger logging.Logger
	conn   *transport.Conn
}

func resolveLogger(l logging.Logger) logging.Logger {
	if l == nil {
		return logging.DiscardLogger
	}
	return l
}

// New opens and configures the worker's socket. A SocketError here is
// fatal to this worker only; callers should start sibling workers
// regardless.
func New(ctx context.Context, iface net.Interface, family protocol.Family, c *cache.Cache, logger logging.Logger) (*InterfaceWorker, error) {
	conn, err := transport.Listen(ctx, iface, family)
	if err != nil {
		return nil, err
	}
	return &InterfaceWorker{
		iface:  iface,
		family: family,
		cache:  c,
		logger: resolveLogger(logger),
		conn:   conn,
	}, nil
}

// Close releases the worker's socket.
func (w *InterfaceWorker) Close() error {
	return w.conn.Close()
}

// Run sends the initial query (seeded with known answers from the
// cache) and then receives until ctx is canceled, feeding every
// datagram to the cache and forwarding decoded messages on out. Run
// returns when ctx is done or the socket fails; a decode error for a
// single datagram is logged and does not stop the loop.
func (w *InterfaceWorker) Run(ctx context.Context, questions []wire.Question, out chan<- Response) error {
	if err := w.sendQuery(questions); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		payload, ifIndex, _, err := w.conn.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logging.Log(w.logger, "worker on %s: receive failed: %s", w.iface.Name, err)
			return err
		}

		msg, _, err := wire.DecodeMessage(payload)
		if err != nil {
			logging.DebugString(w.logger, "worker on "+w.iface.Name+": dropping undecodable datagram: "+err.Error())
			continue
		}
		if err := protocol.ValidateResponse(msg.Header.Flags()); err != nil {
			logging.DebugString(w.logger, "worker on "+w.iface.Name+": dropping non-conformant response: "+err.Error())
			continue
		}

		w.cache.Ingest(msg, w.family, ifIndex)

		select {
		case out <- Response{Family: w.family, IfIndex: ifIndex, Message: msg}:
		case <-ctx.Done():
			return nil
		}
	}
}

func (w *InterfaceWorker) sendQuery(questions []wire.Question) error {
	known := w.cache.Lookup(questions, w.family, w.iface.Index)

	msg := wire.Message{
		Header:    wire.Header{RD: true},
		Questions: questions,
		Answers:   known,
	}

	payload, err := wire.EncodeMessage(msg)
	if err != nil {
		return err
	}
	return w.conn.Send(payload)
}

// Listen runs the always-on passive listener's ingestion-only loop on
// conn: it decodes and ingests every datagram into the cache but
// forwards nothing.
func Listen(ctx context.Context, conn *transport.Conn, family protocol.Family, c *cache.Cache, logger logging.Logger) error {
	logger = resolveLogger(logger)
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		payload, ifIndex, _, err := conn.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		msg, _, err := wire.DecodeMessage(payload)
		if err != nil {
			logging.DebugString(logger, "passive listener: dropping undecodable datagram: "+err.Error())
			continue
		}
		if err := protocol.ValidateResponse(msg.Header.Flags()); err != nil {
			logging.DebugString(logger, "passive listener: dropping non-conformant response: "+err.Error())
			continue
		}

		c.Ingest(msg, family, ifIndex)
	}
}

// BuildQuestions is a thin convenience used by QueryDriver to turn a
// single service name/type pair into the question slice InterfaceWorker
// expects.
func BuildQuestions(name string, t protocol.TypeCode) []wire.Question {
	return []wire.Question{recordset.BuildQuestion(name, t)}
}
