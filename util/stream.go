package util

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"net"
	"strings"

	log "github.com/sirupsen/logrus"
)

type BufferPool struct {
	Empty chan *bytes.Buffer
}

func NewBufferPool() *BufferPool {
	m := new(BufferPool)
	m.Empty = make(chan *bytes.Buffer, 50)

	for i := 0; i < 50; i++ {
		m.Empty <- bytes.NewBuffer(make([]byte, 0, 2048))
	}
	return m
}

// Parser turns a framed message into a typed one.
type Parser interface {
	Parse(b []byte) (message Message, err error)
}

type MessageStream struct {
	conn net.Conn
	pool *BufferPool
	// Message parser
	parser Parser
	// Channel to shut down the parser goroutine
	parserShutdown chan bool
	// Frames awaiting parsing, in arrival order
	full chan *bytes.Buffer
	// OpenFlow Version
	Version uint8
	// Channel on which to publish connection errors
	Error chan error
	// Channel on which to publish inbound messages
	Inbound chan Message
	// Channel on which to receive outbound messages
	Outbound chan Message
	// Channel on which to receive a shutdown command
	Shutdown chan bool
}

// Returns a pointer to a new MessageStream. Used to parse
// OpenFlow messages from conn.
func NewMessageStream(conn net.Conn, parser Parser) *MessageStream {
	m := &MessageStream{
		conn:           conn,
		pool:           NewBufferPool(),
		parser:         parser,
		parserShutdown: make(chan bool, 1),
		full:           make(chan *bytes.Buffer, 8),
		Error:          make(chan error, 1),
		Inbound:        make(chan Message, 1),
		Outbound:       make(chan Message, 1),
		Shutdown:       make(chan bool, 1),
	}

	// A single parser goroutine keeps messages from one connection
	// in arrival order.
	go m.parse()
	go m.outbound()
	go m.inbound()

	return m
}

func (m *MessageStream) GetAddr() net.Addr {
	return m.conn.RemoteAddr()
}

func (m *MessageStream) GetLocalAddr() net.Addr {
	return m.conn.LocalAddr()
}

// Close tears the stream down even when the outbound goroutine is
// wedged in a write: the transport is closed directly and the
// shutdown signal left for whichever goroutine drains it next.
func (m *MessageStream) Close() {
	select {
	case m.Shutdown <- true:
	default:
	}
	m.conn.Close()
}

func (m *MessageStream) parse() {
	for {
		select {
		case b := <-m.full:
			msg, err := m.parser.Parse(b.Bytes())
			if errors.Is(err, ErrBadVersion) {
				log.WithError(err).Warnln("Closing stream")
				m.Error <- err
				m.Shutdown <- true
				return
			} else if err != nil {
				log.WithError(err).Warnf("Failed to parse received message")
			} else if msg != nil {
				m.Inbound <- msg
			}
			b.Reset()
			m.pool.Empty <- b
		case <-m.parserShutdown:
			return
		}
	}
}

// Listen for a Shutdown signal or Outbound messages.
func (m *MessageStream) outbound() {
	for {
		select {
		case <-m.Shutdown:
			log.Debugln("Closing OpenFlow message stream.")
			m.conn.Close()
			close(m.parserShutdown)
			return
		case msg := <-m.Outbound:
			// Forward outbound messages to conn
			data, _ := msg.MarshalBinary()
			if _, err := m.conn.Write(data); err != nil {
				log.WithError(err).Warnln("OutboundError")
				m.Error <- err
				m.Shutdown <- true
			}

			log.Debugf("Sent (%d): %v", len(data), data)
		}
	}
}

// Handle inbound messages
func (m *MessageStream) inbound() {
	hdr := make([]byte, 8)
	for {
		if _, err := io.ReadFull(m.conn, hdr); err != nil {
			m.inboundError(err)
			return
		}

		// MessageStream is not protocol agnostic. Reading length based
		// on the OpenFlow header field.
		msgLen := int(binary.BigEndian.Uint16(hdr[2:4]))
		if msgLen < 8 {
			log.Warnf("Received OpenFlow frame with bad length %d; dropping", msgLen)
			continue
		}

		buf := <-m.pool.Empty
		buf.Write(hdr)
		if msgLen > 8 {
			if _, err := io.CopyN(buf, m.conn, int64(msgLen-8)); err != nil {
				m.inboundError(err)
				return
			}
		}
		m.full <- buf
	}
}

func (m *MessageStream) inboundError(err error) {
	// Handle explicitly disconnecting by closing connection
	if strings.Contains(err.Error(), "use of closed network connection") {
		return
	}
	log.WithError(err).Debugln("InboundError")
	m.Error <- err
	m.Shutdown <- true
}
