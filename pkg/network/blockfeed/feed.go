package blockfeed

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/quic-go/quic-go"

	"github.com/bramblenode/bramble/internal/block"
	"github.com/bramblenode/bramble/internal/receipt"
	"github.com/bramblenode/bramble/pkg/log"
)

// maxIdleTimeout defines the maximum duration a feed connection can be
// idle before timing out.
const maxIdleTimeout = 30 * time.Minute

// Receiver consumes blocks arriving over the feed. The import pipeline
// implements it.
type Receiver interface {
	Import(b *block.Block, receipts []*receipt.Receipt) error
}

// envelope is the wire form of one feed message: a block together with
// the receipts its execution produced.
type envelope struct {
	Block    *block.Block       `cbor:"0,keyasint"`
	Receipts []*receipt.Receipt `cbor:"1,keyasint"`
}

// Listener accepts QUIC connections from trusted block producers and
// feeds every received block into the import pipeline. It is the
// network-fed counterpart of the dev sealer.
type Listener struct {
	addr     string
	receiver Receiver

	listener *quic.Listener
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
}

func NewListener(addr string, receiver Receiver) *Listener {
	return &Listener{
		addr:     addr,
		receiver: receiver,
	}
}

// Start begins listening and accepting feed connections.
func (l *Listener) Start() error {
	identity, err := newIdentity()
	if err != nil {
		return fmt.Errorf("create feed identity: %w", err)
	}

	tlsConfig := &tls.Config{
		Certificates: []tls.Certificate{identity},
		NextProtos:   []string{alpnProtocol},
		ClientAuth:   tls.RequireAnyClientCert,
		MinVersion:   tls.VersionTLS13,
		VerifyPeerCertificate: func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
			return verifyPeer(rawCerts)
		},
	}

	listener, err := quic.ListenAddr(l.addr, tlsConfig, &quic.Config{
		MaxIdleTimeout: maxIdleTimeout,
	})
	if err != nil {
		return fmt.Errorf("listen on %s: %w", l.addr, err)
	}

	l.listener = listener
	l.ctx, l.cancel = context.WithCancel(context.Background())
	l.done = make(chan struct{})
	go func() {
		l.acceptLoop()
		close(l.done)
	}()

	log.Network.Info().Str("addr", l.Addr()).Msg("block feed listening")
	return nil
}

// Stop shuts the listener down and waits for the accept loop to finish.
// In-flight streams are torn down with their connections.
func (l *Listener) Stop() error {
	l.cancel()
	if err := l.listener.Close(); err != nil {
		return fmt.Errorf("close feed listener: %w", err)
	}
	<-l.done
	return nil
}

// Addr returns the bound UDP address.
func (l *Listener) Addr() string {
	return l.listener.Addr().String()
}

func (l *Listener) acceptLoop() {
	for {
		conn, err := l.listener.Accept(l.ctx)
		if err != nil {
			if l.ctx.Err() != nil {
				return
			}
			log.Network.Warn().Err(err).Msg("accept feed connection")
			continue
		}
		go l.handleConnection(conn)
	}
}

func (l *Listener) handleConnection(conn quic.Connection) {
	remote := conn.RemoteAddr().String()
	log.Network.Info().Str("peer", remote).Msg("feed producer connected")

	for {
		stream, err := conn.AcceptStream(l.ctx)
		if err != nil {
			if l.ctx.Err() == nil {
				log.Network.Debug().Err(err).Str("peer", remote).Msg("feed connection closed")
			}
			return
		}
		go l.handleStream(stream, remote)
	}
}

// handleStream reads envelopes off one stream until it ends and imports
// each block in arrival order.
func (l *Listener) handleStream(stream quic.Stream, remote string) {
	defer stream.Close()

	for {
		content, err := readMessage(l.ctx, stream)
		if err != nil {
			if !errors.Is(err, io.EOF) && l.ctx.Err() == nil {
				log.Network.Debug().Err(err).Str("peer", remote).Msg("feed stream ended")
			}
			return
		}

		var env envelope
		if err := cbor.Unmarshal(content, &env); err != nil {
			log.Network.Warn().Err(err).Str("peer", remote).Msg("malformed feed message")
			return
		}
		if env.Block == nil {
			log.Network.Warn().Str("peer", remote).Msg("feed message without block")
			return
		}

		if err := l.receiver.Import(env.Block, env.Receipts); err != nil {
			log.Network.Error().Err(err).
				Uint64("number", env.Block.Header.Number).
				Msg("import fed block")
			return
		}
	}
}

// Client streams blocks to a feed listener. Used by a producer node and
// by tests.
type Client struct {
	conn   quic.Connection
	stream quic.Stream
}

// Dial connects to a feed listener and opens the block stream.
func Dial(ctx context.Context, addr string) (*Client, error) {
	identity, err := newIdentity()
	if err != nil {
		return nil, fmt.Errorf("create client identity: %w", err)
	}

	tlsConfig := &tls.Config{
		Certificates:       []tls.Certificate{identity},
		NextProtos:         []string{alpnProtocol},
		MinVersion:         tls.VersionTLS13,
		InsecureSkipVerify: true,
		VerifyPeerCertificate: func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
			return verifyPeer(rawCerts)
		},
	}

	conn, err := quic.DialAddr(ctx, addr, tlsConfig, &quic.Config{
		MaxIdleTimeout: maxIdleTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("dial feed %s: %w", addr, err)
	}

	stream, err := conn.OpenStreamSync(ctx)
	if err != nil {
		_ = conn.CloseWithError(0, "open stream failed")
		return nil, fmt.Errorf("open feed stream: %w", err)
	}
	return &Client{conn: conn, stream: stream}, nil
}

// Send transmits one block and its receipts.
func (c *Client) Send(ctx context.Context, b *block.Block, receipts []*receipt.Receipt) error {
	content, err := cbor.Marshal(envelope{Block: b, Receipts: receipts})
	if err != nil {
		return fmt.Errorf("marshal feed envelope: %w", err)
	}
	return writeMessage(ctx, c.stream, content)
}

func (c *Client) Close() error {
	if err := c.stream.Close(); err != nil {
		log.Network.Debug().Err(err).Msg("close feed stream")
	}
	return c.conn.CloseWithError(0, "done")
}
