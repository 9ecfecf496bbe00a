// Package gossip is the envelope of every datagram exchanged between peers.
//
// Protocol
// +--------------+----------------------------------+
// | Discriminant |             Payload              |
// +--------------+----------------------------------+
// (bytes)
// Discriminant 4
//
// Payload by discriminant
// 0 PullRequest    CrdsFilter | CrdsValue (the requester's contact info)
// 1 PullResponse   From(32) | Values (u64 n) CrdsValue
// 2 PushMessage    From(32) | Values (u64 n) CrdsValue
// 3 PruneMessage   From(32)
// 4 PingMessage    Ping
// 5 PongMessage    Pong
package gossip

import (
	"fmt"

	"github.com/996BC/996.Gossip/crypto"
	"github.com/996BC/996.Gossip/serialize/crds"
	"github.com/996BC/996.Gossip/serialize/ping"
	"github.com/996BC/996.Gossip/serialize/wire"
	"github.com/cockroachdb/errors"
)

// MaxPacketSize is the payload budget of one datagram
const MaxPacketSize = 1232

// MaxValuesSize is what is left for values in a push or pull response packet
const MaxValuesSize = MaxPacketSize - 4 - crypto.PubkeySize - 8

var (
	ErrPacketTooLarge = errors.New("message exceeds packet size")
)

type MsgType uint32

const (
	MsgPullRequest = MsgType(iota)
	MsgPullResponse
	MsgPushMessage
	MsgPruneMessage
	MsgPingMessage
	MsgPongMessage

	numMsgTypes
)

var msgTypeNames = [numMsgTypes]string{
	"PullRequest",
	"PullResponse",
	"PushMessage",
	"PruneMessage",
	"PingMessage",
	"PongMessage",
}

func (t MsgType) String() string {
	if t < numMsgTypes {
		return msgTypeNames[t]
	}
	return "Unknown"
}

// Message is one of the six envelope variants in this package
type Message interface {
	Type() MsgType
	// Sanitize rejects out of range content before any signature is checked
	Sanitize() error
	// Verify checks every signature the message carries
	Verify() bool

	encode(w *wire.Writer)
}

// PullRequest asks for the values of Filter's shard the requester lacks.
// Value is the requester's own contact info.
type PullRequest struct {
	Filter *crds.CrdsFilter
	Value  *crds.CrdsValue
}

func (m *PullRequest) Type() MsgType { return MsgPullRequest }

func (m *PullRequest) Sanitize() error {
	if m.Filter == nil || m.Value == nil {
		return errors.Wrap(crds.ErrSanitize, "incomplete pull request")
	}
	if err := m.Filter.Sanitize(); err != nil {
		return err
	}
	return m.Value.Sanitize()
}

func (m *PullRequest) Verify() bool {
	return m.Value != nil && m.Value.VerifySelf()
}

func (m *PullRequest) encode(w *wire.Writer) {
	if m.Filter == nil || m.Value == nil {
		w.Fail(errors.New("incomplete pull request"))
		return
	}
	m.Filter.Encode(w)
	m.Value.Encode(w)
}

// PullResponse answers a PullRequest
type PullResponse struct {
	From   crypto.Pubkey
	Values []*crds.CrdsValue
}

func (m *PullResponse) Type() MsgType { return MsgPullResponse }
func (m *PullResponse) Sanitize() error { return sanitizeValues(m.Values) }
func (m *PullResponse) Verify() bool { return verifyValues(m.Values) }
func (m *PullResponse) encode(w *wire.Writer) { encodeValues(w, m.From, m.Values) }

// PushMessage relays values From learned to its push peers
type PushMessage struct {
	From   crypto.Pubkey
	Values []*crds.CrdsValue
}

func (m *PushMessage) Type() MsgType { return MsgPushMessage }
func (m *PushMessage) Sanitize() error { return sanitizeValues(m.Values) }
func (m *PushMessage) Verify() bool { return verifyValues(m.Values) }
func (m *PushMessage) encode(w *wire.Writer) { encodeValues(w, m.From, m.Values) }

// PruneMessage asks the receiver to stop pushing values of From on this path
type PruneMessage struct {
	From crypto.Pubkey
}

func (m *PruneMessage) Type() MsgType { return MsgPruneMessage }
func (m *PruneMessage) Sanitize() error { return nil }

// Verify always passes, the message carries no signature
func (m *PruneMessage) Verify() bool { return true }
func (m *PruneMessage) encode(w *wire.Writer) { w.Fixed(m.From[:]) }

type PingMessage struct {
	Ping *ping.Ping
}

func (m *PingMessage) Type() MsgType { return MsgPingMessage }
func (m *PingMessage) Sanitize() error { return nil }
func (m *PingMessage) Verify() bool { return m.Ping != nil && m.Ping.Verify() }

func (m *PingMessage) encode(w *wire.Writer) {
	if m.Ping == nil {
		w.Fail(errors.New("nil ping"))
		return
	}
	m.Ping.Encode(w)
}

type PongMessage struct {
	Pong *ping.Pong
}

func (m *PongMessage) Type() MsgType { return MsgPongMessage }
func (m *PongMessage) Sanitize() error { return nil }
func (m *PongMessage) Verify() bool { return m.Pong != nil && m.Pong.Verify() }

func (m *PongMessage) encode(w *wire.Writer) {
	if m.Pong == nil {
		w.Fail(errors.New("nil pong"))
		return
	}
	m.Pong.Encode(w)
}

func sanitizeValues(values []*crds.CrdsValue) error {
	for i, v := range values {
		if v == nil {
			return errors.Wrapf(crds.ErrSanitize, "nil value %d", i)
		}
		if err := v.Sanitize(); err != nil {
			return err
		}
	}
	return nil
}

func verifyValues(values []*crds.CrdsValue) bool {
	for _, v := range values {
		if !v.VerifySelf() {
			return false
		}
	}
	return true
}

// SaneValues keeps the values whose content is in range, so one bad
// record does not cost the rest of its packet
func SaneValues(values []*crds.CrdsValue) []*crds.CrdsValue {
	result := make([]*crds.CrdsValue, 0, len(values))
	for _, v := range values {
		if v != nil && v.Sanitize() == nil {
			result = append(result, v)
		}
	}
	return result
}

// VerifiedValues keeps the values signed by the origin they name
func VerifiedValues(values []*crds.CrdsValue) []*crds.CrdsValue {
	result := make([]*crds.CrdsValue, 0, len(values))
	for _, v := range values {
		if v != nil && v.VerifySelf() {
			result = append(result, v)
		}
	}
	return result
}

func encodeValues(w *wire.Writer, from crypto.Pubkey, values []*crds.CrdsValue) {
	w.Fixed(from[:])
	w.Len(len(values))
	for _, v := range values {
		if v == nil {
			w.Fail(errors.New("nil crds value"))
			return
		}
		v.Encode(w)
	}
}

// signature plus discriminant
const minValueSize = crypto.SignatureSize + 4

func decodeValues(r *wire.Reader) (crypto.Pubkey, []*crds.CrdsValue) {
	var from crypto.Pubkey
	r.Fixed(from[:])
	values := make([]*crds.CrdsValue, r.Len(minValueSize))
	for i := range values {
		values[i] = crds.DecodeValue(r)
		if r.Err() != nil {
			return from, nil
		}
	}
	return from, values
}

// Marshal encodes msg, refusing messages that do not fit a datagram
func Marshal(msg Message) ([]byte, error) {
	if msg == nil {
		return nil, errors.Mark(errors.New("marshal nil message"), crds.ErrEncoding)
	}
	w := wire.NewWriter()
	w.Discriminant(uint32(msg.Type()))
	msg.encode(w)
	data, err := w.Data()
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "marshal %s", msg.Type()), crds.ErrEncoding)
	}
	if len(data) > MaxPacketSize {
		return nil, errors.Wrapf(ErrPacketTooLarge, "%s of %d bytes", msg.Type(), len(data))
	}
	return data, nil
}

// Unmarshal decodes exactly one message from a datagram
func Unmarshal(data []byte) (Message, error) {
	r := wire.NewReader(data)
	msgType := MsgType(r.Discriminant())

	var msg Message
	switch msgType {
	case MsgPullRequest:
		msg = &PullRequest{Filter: crds.DecodeFilter(r), Value: crds.DecodeValue(r)}
	case MsgPullResponse:
		from, values := decodeValues(r)
		msg = &PullResponse{From: from, Values: values}
	case MsgPushMessage:
		from, values := decodeValues(r)
		msg = &PushMessage{From: from, Values: values}
	case MsgPruneMessage:
		m := &PruneMessage{}
		r.Fixed(m.From[:])
		msg = m
	case MsgPingMessage:
		msg = &PingMessage{Ping: ping.DecodePing(r)}
	case MsgPongMessage:
		msg = &PongMessage{Pong: ping.DecodePong(r)}
	default:
		r.Fail(errors.Wrapf(wire.ErrUnknownDiscriminant, "protocol %d", msgType))
	}

	if err := r.Finish(); err != nil {
		return nil, errors.Wrap(err, "unmarshal message")
	}
	return msg, nil
}

// SplitValues groups values into batches whose encoded size stays within
// budget. A value that can not be encoded, or is larger than budget on its
// own, is left out.
func SplitValues(values []*crds.CrdsValue, budget int) [][]*crds.CrdsValue {
	var result [][]*crds.CrdsValue
	var batch []*crds.CrdsValue
	size := 0
	for _, v := range values {
		data, err := v.Marshal()
		if err != nil || len(data) > budget {
			continue
		}
		if size+len(data) > budget {
			result = append(result, batch)
			batch, size = nil, 0
		}
		batch = append(batch, v)
		size += len(data)
	}
	if len(batch) != 0 {
		result = append(result, batch)
	}
	return result
}

// Describe is a one line summary of msg for logs
func Describe(msg Message) string {
	switch m := msg.(type) {
	case *PullRequest:
		return fmt.Sprintf("%s mask %016x/%d from %s", m.Type(), m.Filter.Mask, m.Filter.MaskBits, m.Value.Pubkey())
	case *PullResponse:
		return fmt.Sprintf("%s %d values from %s", m.Type(), len(m.Values), m.From)
	case *PushMessage:
		return fmt.Sprintf("%s %d values from %s", m.Type(), len(m.Values), m.From)
	case *PruneMessage:
		return fmt.Sprintf("%s from %s", m.Type(), m.From)
	case *PingMessage:
		return fmt.Sprintf("%s %v", m.Type(), m.Ping)
	case *PongMessage:
		return fmt.Sprintf("%s %v", m.Type(), m.Pong)
	default:
		return "unknown message"
	}
}
