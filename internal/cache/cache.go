// Package cache implements the shared, process-wide mDNS record store.
// It is a single-owner actor per the design this system follows: one
// goroutine owns the record table and every read or write is a request
// sent over a channel, so cache-flush/goodbye ordering is trivial and
// there is no reader/writer lock contention on the datagram-handling
// hot path.
package cache

import (
	"strings"
	"time"

	"github.com/quietwire/madns/internal/protocol"
	"github.com/quietwire/madns/internal/wire"
)

// Family identifies the address family a record or interface belongs
// to; it is part of the cache key so a record learned on one network
// cannot satisfy a lookup scoped to another.
type Family = protocol.Family

const (
	FamilyIPv4 = protocol.FamilyIPv4
	FamilyIPv6 = protocol.FamilyIPv6
)

type key struct {
	name    string
	typ     protocol.TypeCode
	class   protocol.ClassCode
	family  Family
	ifIndex int
}

type entry struct {
	rdata       wire.Rdata
	originalTTL uint32
	expiresAt   time.Time
}

// Cache is a handle to the running cache actor. The zero value is not
// usable; construct one with New.
type Cache struct {
	lookupCh    chan lookupRequest
	ingestCh    chan ingestRequest
	withdrawCh  chan withdrawRequest
	closeCh     chan struct{}
	now         func() time.Time
}

type lookupRequest struct {
	questions []wire.Question
	family    Family
	ifIndex   int
	result    chan []wire.ResourceRecord
}

type ingestRequest struct {
	msg     wire.Message
	family  Family
	ifIndex int
}

type withdrawRequest struct {
	family  Family
	ifIndex int
}

// New starts the cache's owning goroutine and returns a handle to it.
// Call Close to stop the goroutine and release its resources.
func New() *Cache {
	c := &Cache{
		lookupCh:   make(chan lookupRequest),
		ingestCh:   make(chan ingestRequest),
		withdrawCh: make(chan withdrawRequest),
		closeCh:    make(chan struct{}),
		now:        time.Now,
	}
	table := make(map[key]map[string]entry)
	go c.run(table)
	return c
}

func (c *Cache) run(table map[key]map[string]entry) {
	for {
		select {
		case req := <-c.ingestCh:
			c.ingest(table, req)
		case req := <-c.lookupCh:
			req.result <- c.lookup(table, req)
		case req := <-c.withdrawCh:
			c.withdraw(table, req)
		case <-c.closeCh:
			return
		}
	}
}

// Close stops the cache's owning goroutine. It is safe to call once;
// further use of the Cache after Close is undefined.
func (c *Cache) Close() {
	close(c.closeCh)
}

// Ingest applies a received message's answer/authority/additional
// records to the cache table, in that order, per RFC 6762 ingestion
// semantics (cache-flush, goodbye, refresh-by-equal-rdata).
func (c *Cache) Ingest(msg wire.Message, family Family, ifIndex int) {
	c.ingestCh <- ingestRequest{msg: msg, family: family, ifIndex: ifIndex}
}

// Lookup returns the fresh records matching any of questions on
// (family, ifIndex), including related-question expansion
// (PTR -> SRV -> {TXT, A/AAAA}).
func (c *Cache) Lookup(questions []wire.Question, family Family, ifIndex int) []wire.ResourceRecord {
	result := make(chan []wire.ResourceRecord, 1)
	c.lookupCh <- lookupRequest{questions: questions, family: family, ifIndex: ifIndex, result: result}
	return <-result
}

// WithdrawInterface drops every cache entry keyed to (family, ifIndex),
// in response to a link_down or del_addr event for that interface.
func (c *Cache) WithdrawInterface(family Family, ifIndex int) {
	c.withdrawCh <- withdrawRequest{family: family, ifIndex: ifIndex}
}

func (c *Cache) ingest(table map[key]map[string]entry, req ingestRequest) {
	for _, section := range [][]wire.ResourceRecord{req.msg.Answers, req.msg.Authorities, req.msg.Additionals} {
		for _, rr := range section {
			c.ingestOne(table, rr, req.family, req.ifIndex)
		}
	}
}

func (c *Cache) ingestOne(table map[key]map[string]entry, rr wire.ResourceRecord, family Family, ifIndex int) {
	if !rr.Type.IsSupported() {
		return
	}
	k := key{name: strings.ToLower(rr.Name), typ: rr.Type, class: rr.Class, family: family, ifIndex: ifIndex}

	if rr.CacheFlush {
		delete(table, k)
	}

	rk := rdataKey(rr.Rdata)

	if rr.TTL == 0 {
		if set, ok := table[k]; ok {
			delete(set, rk)
			if len(set) == 0 {
				delete(table, k)
			}
		}
		return
	}

	set := table[k]
	if set == nil {
		set = make(map[string]entry)
		table[k] = set
	}
	set[rk] = entry{
		rdata:       rr.Rdata,
		originalTTL: rr.TTL,
		expiresAt:   c.now().Add(time.Duration(rr.TTL) * time.Second),
	}
}

func (c *Cache) withdraw(table map[key]map[string]entry, req withdrawRequest) {
	for k := range table {
		if k.family == req.family && k.ifIndex == req.ifIndex {
			delete(table, k)
		}
	}
}

func (c *Cache) lookup(table map[key]map[string]entry, req lookupRequest) []wire.ResourceRecord {
	visited := make(map[wire.Question]bool)
	queue := append([]wire.Question(nil), req.questions...)
	var result []wire.ResourceRecord

	for len(queue) > 0 {
		q := queue[0]
		queue = queue[1:]
		if visited[q] {
			continue
		}
		visited[q] = true

		matches := c.matchQuestion(table, q, req.family, req.ifIndex)
		for _, rr := range matches {
			result = append(result, rr)
			for _, next := range relatedQuestions(rr) {
				if !visited[next] {
					queue = append(queue, next)
				}
			}
		}
	}

	return result
}

func (c *Cache) matchQuestion(table map[key]map[string]entry, q wire.Question, family Family, ifIndex int) []wire.ResourceRecord {
	name := strings.ToLower(q.Name)
	var matches []wire.ResourceRecord
	now := c.now()

	for k, set := range table {
		if k.family != family || k.ifIndex != ifIndex || k.name != name {
			continue
		}
		if q.Type != protocol.TypeANY && k.typ != q.Type {
			continue
		}
		if q.Class != protocol.ClassANY && k.class != q.Class {
			continue
		}
		for rk, e := range set {
			if now.After(e.expiresAt) || now.Equal(e.expiresAt) {
				delete(set, rk) // lazy eviction of fully-expired entries
				continue
			}
			halfLife := e.expiresAt.Add(-time.Duration(e.originalTTL) * time.Second / 2)
			if now.Before(halfLife) {
				matches = append(matches, wire.ResourceRecord{
					Name: k.name, Type: k.typ, Class: k.class, TTL: e.originalTTL, Rdata: e.rdata,
				})
			}
		}
		if len(set) == 0 {
			delete(table, k)
		}
	}
	return matches
}

// relatedQuestions implements the PTR -> SRV -> {TXT, A, AAAA}
// known-answer expansion chain.
func relatedQuestions(rr wire.ResourceRecord) []wire.Question {
	switch rdata := rr.Rdata.(type) {
	case wire.PTRData:
		return []wire.Question{{Name: rdata.Name, Type: protocol.TypeSRV, Class: protocol.ClassIN}}
	case wire.SRVData:
		return []wire.Question{
			{Name: rr.Name, Type: protocol.TypeTXT, Class: protocol.ClassIN},
			{Name: rdata.Target, Type: protocol.TypeA, Class: protocol.ClassIN},
			{Name: rdata.Target, Type: protocol.TypeAAAA, Class: protocol.ClassIN},
		}
	default:
		return nil
	}
}

// rdataKey produces a canonical byte-string key for rdata equality, so
// the cache set's "no two tuples share the same rdata" invariant can be
// enforced with a plain map even though Rdata itself isn't comparable
// (TXTData/NSECData/UnknownData hold slices).
func rdataKey(r wire.Rdata) string {
	buf := make([]byte, 0, 32)
	suffixMap := make(wire.SuffixMap)
	// EncodeRdata only fails on a name exceeding label limits, which
	// cannot happen for rdata already accepted by the decoder; any
	// error here would mean a malformed in-memory Rdata was ingested
	// and the best we can do is key it on its pre-error partial bytes.
	_, _ = wire.EncodeRdata(&buf, r, suffixMap)
	return string(buf)
}
