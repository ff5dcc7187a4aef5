package proxy

import (
	"io"
	"net"
	"sync"

	"github.com/thushan/warren/internal/core/ports"
	"github.com/thushan/warren/pkg/pool"
)

const relayBufferSize = 32 * 1024

type relayBuffer struct {
	data []byte
}

func (b *relayBuffer) Reset() {}

var relayBuffers = pool.NewLitePool(func() *relayBuffer {
	return &relayBuffer{data: make([]byte, relayBufferSize)}
})

// TunnelGuard scopes one in-flight use of a proxy's connection slot to the
// lifetime of a relay. Acquire happens at construction; Release fires
// exactly once no matter how many exit paths close the tunnel.
type TunnelGuard struct {
	selector ports.SelectionStrategy
	id       int64
	once     sync.Once
}

func NewTunnelGuard(selector ports.SelectionStrategy, id int64) *TunnelGuard {
	selector.Acquire(id)
	return &TunnelGuard{selector: selector, id: id}
}

func (g *TunnelGuard) Release() {
	g.once.Do(func() {
		g.selector.Release(g.id)
	})
}

// Relay copies bytes bidirectionally between client and upstream until
// either side closes or errors, then tears both down. The guard is
// released when the relay finishes.
func Relay(client, upstream net.Conn, guard *TunnelGuard) {
	defer guard.Release()

	var wg sync.WaitGroup
	wg.Add(2)

	copyHalf := func(dst, src net.Conn) {
		defer wg.Done()

		buf := relayBuffers.Get()
		defer relayBuffers.Put(buf)

		_, _ = io.CopyBuffer(dst, src, buf.data)

		// Half-close where supported so the peer sees EOF; fall back to a
		// full close to unblock the opposite copy.
		if tc, ok := dst.(*net.TCPConn); ok {
			_ = tc.CloseWrite()
		} else {
			_ = dst.Close()
		}
		if tc, ok := src.(*net.TCPConn); ok {
			_ = tc.CloseRead()
		}
	}

	go copyHalf(upstream, client)
	go copyHalf(client, upstream)
	wg.Wait()

	_ = client.Close()
	_ = upstream.Close()
}
