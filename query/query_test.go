package query

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quietwire/madns/ifevent"
	"github.com/quietwire/madns/internal/protocol"
	"github.com/quietwire/madns/internal/wire"
)

func TestStreamClosesAtDeadline(t *testing.T) {
	driver := New()
	defer driver.Close()

	ctx := context.Background()
	responses, err := driver.Stream(ctx, "_http._tcp.local", protocol.TypePTR, WithTimeout(200*time.Millisecond))
	require.NoError(t, err)

	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-responses:
			if !ok {
				return // channel closed at deadline, as required
			}
		case <-deadline:
			t.Fatal("stream did not close within the expected window")
		}
	}
}

func TestStreamHonorsInterfaceFilter(t *testing.T) {
	driver := New()
	defer driver.Close()

	targets, err := driver.eligibleTargets(&config{
		anyFamily:         true,
		timeout:           time.Second,
		interfacePrefixes: []string{"nonexistent-prefix-"},
	})
	require.NoError(t, err)
	assert.Empty(t, targets, "no interface should match an impossible prefix")
}

type fakeEventSource struct {
	events chan ifevent.Event
}

func (f *fakeEventSource) Events(ctx context.Context) (<-chan ifevent.Event, error) {
	return f.events, nil
}

func TestHandleEventWithdrawsOnLinkDown(t *testing.T) {
	driver := New()
	defer driver.Close()

	driver.cache.Ingest(
		wireMessageWithA("host.local", net.ParseIP("10.0.0.9")),
		protocol.FamilyIPv4,
		7,
	)

	c := defaultConfig()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	driver.handleEvent(ctx, c, ifevent.Event{Kind: ifevent.LinkDown, IfIndex: 7}, func(target) {
		t.Fatal("LinkDown must not spawn a worker")
	})

	got := driver.cache.Lookup([]wire.Question{{Name: "host.local", Type: protocol.TypeA}}, protocol.FamilyIPv4, 7)
	assert.Empty(t, got, "LinkDown should withdraw every cache entry for that interface")
}

func TestHandleEventDelAddrWithdrawsOnlyThatFamily(t *testing.T) {
	driver := New()
	defer driver.Close()

	driver.cache.Ingest(wireMessageWithA("host.local", net.ParseIP("10.0.0.9")), protocol.FamilyIPv4, 7)
	driver.cache.Ingest(wireMessageWithA("host.local", net.ParseIP("10.0.0.9")), protocol.FamilyIPv6, 7)

	c := defaultConfig()
	driver.handleEvent(context.Background(), c, ifevent.Event{Kind: ifevent.DelAddr, Family: protocol.FamilyIPv4, IfIndex: 7}, nil)

	got := driver.cache.Lookup([]wire.Question{{Name: "host.local", Type: protocol.TypeA}}, protocol.FamilyIPv4, 7)
	assert.Empty(t, got, "DelAddr should withdraw that family's entries")

	other := driver.cache.Lookup([]wire.Question{{Name: "host.local", Type: protocol.TypeA}}, protocol.FamilyIPv6, 7)
	assert.Len(t, other, 1, "DelAddr should leave the other family's entries in place")
}

func TestStreamWiresEventSource(t *testing.T) {
	driver := New()
	defer driver.Close()

	driver.cache.Ingest(wireMessageWithA("host.local", net.ParseIP("10.0.0.9")), protocol.FamilyIPv4, 7)

	src := &fakeEventSource{events: make(chan ifevent.Event, 1)}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	responses, err := driver.Stream(ctx, "_http._tcp.local", protocol.TypePTR, WithEventSource(src))
	require.NoError(t, err)
	src.events <- ifevent.Event{Kind: ifevent.LinkDown, IfIndex: 7}

	require.Eventually(t, func() bool {
		got := driver.cache.Lookup([]wire.Question{{Name: "host.local", Type: protocol.TypeA}}, protocol.FamilyIPv4, 7)
		return len(got) == 0
	}, 500*time.Millisecond, 10*time.Millisecond, "Stream should react to a LinkDown event from its configured source")

	for range responses {
	}
}

func wireMessageWithA(name string, ip net.IP) wire.Message {
	v4 := ip.To4()
	var addr [4]byte
	copy(addr[:], v4)
	return wire.Message{
		Answers: []wire.ResourceRecord{
			{
				Name:  name,
				Type:  protocol.TypeA,
				TTL:   120,
				Rdata: wire.AData{Addr: addr},
			},
		},
	}
}
