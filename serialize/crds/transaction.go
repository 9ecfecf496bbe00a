package crds

import (
	"github.com/996BC/996.Gossip/crypto"
	"github.com/996BC/996.Gossip/serialize/wire"
	"github.com/cockroachdb/errors"
)

type MessageHeader struct {
	NumRequiredSignatures       uint8
	NumReadonlySignedAccounts   uint8
	NumReadonlyUnsignedAccounts uint8
}

type CompiledInstruction struct {
	ProgramIDIndex uint8
	Accounts       []uint8
	Data           []byte
}

type Message struct {
	Header          MessageHeader
	AccountKeys     []crypto.Pubkey
	RecentBlockhash crypto.Hash
	Instructions    []CompiledInstruction
}

// Transaction is the vote transaction a validator gossips. Signatures[i] is
// made by AccountKeys[i] over the serialized Message.
type Transaction struct {
	Signatures []crypto.Signature
	Message    Message
}

// SignTransaction signs msg with keypairs, which must match the leading
// account keys in order
func SignTransaction(msg Message, keypairs ...*crypto.Keypair) (*Transaction, error) {
	if len(keypairs) > len(msg.AccountKeys) {
		return nil, errors.Newf("%d signers for %d accounts", len(keypairs), len(msg.AccountKeys))
	}
	for i, kp := range keypairs {
		if kp.Pubkey() != msg.AccountKeys[i] {
			return nil, errors.Newf("signer %d is not account %s", i, msg.AccountKeys[i])
		}
	}

	data, err := msg.Marshal()
	if err != nil {
		return nil, err
	}
	tx := &Transaction{Message: msg}
	for _, kp := range keypairs {
		tx.Signatures = append(tx.Signatures, kp.Sign(data))
	}
	return tx, nil
}

// Verify checks every signature against its account key
func (t *Transaction) Verify() bool {
	if len(t.Signatures) > len(t.Message.AccountKeys) {
		return false
	}
	data, err := t.Message.Marshal()
	if err != nil {
		return false
	}
	for i, sig := range t.Signatures {
		if !sig.Verify(t.Message.AccountKeys[i], data) {
			return false
		}
	}
	return true
}

// Sanitize checks the message indexes against its account keys
func (t *Transaction) Sanitize() error {
	h := t.Message.Header
	if int(h.NumRequiredSignatures) != len(t.Signatures) {
		return sanitizeErrorf("%d signatures, header requires %d", len(t.Signatures), h.NumRequiredSignatures)
	}
	if h.NumReadonlySignedAccounts >= h.NumRequiredSignatures {
		return sanitizeErrorf("no writable signer")
	}
	numKeys := len(t.Message.AccountKeys)
	if numKeys < int(h.NumRequiredSignatures)+int(h.NumReadonlyUnsignedAccounts) {
		return sanitizeErrorf("%d account keys for header %+v", numKeys, h)
	}
	for _, ix := range t.Message.Instructions {
		// the payer can not be a program
		if ix.ProgramIDIndex == 0 || int(ix.ProgramIDIndex) >= numKeys {
			return sanitizeErrorf("program index %d out of bounds", ix.ProgramIDIndex)
		}
		for _, a := range ix.Accounts {
			if int(a) >= numKeys {
				return sanitizeErrorf("account index %d out of bounds", a)
			}
		}
	}
	return nil
}

// Marshal returns the bytes the transaction signatures cover
func (m *Message) Marshal() ([]byte, error) {
	w := wire.NewWriter()
	m.marshal(w)
	return w.Data()
}

func (m *Message) marshal(w *wire.Writer) {
	w.U8(m.Header.NumRequiredSignatures)
	w.U8(m.Header.NumReadonlySignedAccounts)
	w.U8(m.Header.NumReadonlyUnsignedAccounts)
	w.ShortVecLen(len(m.AccountKeys))
	for _, k := range m.AccountKeys {
		w.Fixed(k[:])
	}
	w.Fixed(m.RecentBlockhash[:])
	w.ShortVecLen(len(m.Instructions))
	for _, ix := range m.Instructions {
		w.U8(ix.ProgramIDIndex)
		w.ShortVecLen(len(ix.Accounts))
		w.Fixed(ix.Accounts)
		w.ShortVecLen(len(ix.Data))
		w.Fixed(ix.Data)
	}
}

func unmarshalMessage(r *wire.Reader) Message {
	var m Message
	m.Header.NumRequiredSignatures = r.U8()
	m.Header.NumReadonlySignedAccounts = r.U8()
	m.Header.NumReadonlyUnsignedAccounts = r.U8()
	m.AccountKeys = make([]crypto.Pubkey, r.ShortVecLen(crypto.PubkeySize))
	for i := range m.AccountKeys {
		r.Fixed(m.AccountKeys[i][:])
	}
	r.Fixed(m.RecentBlockhash[:])
	// program index plus two empty short_vec counts
	m.Instructions = make([]CompiledInstruction, r.ShortVecLen(3))
	for i := range m.Instructions {
		ix := &m.Instructions[i]
		ix.ProgramIDIndex = r.U8()
		ix.Accounts = make([]uint8, r.ShortVecLen(1))
		r.Fixed(ix.Accounts)
		ix.Data = make([]byte, r.ShortVecLen(1))
		r.Fixed(ix.Data)
	}
	return m
}

func (t *Transaction) marshal(w *wire.Writer) {
	w.ShortVecLen(len(t.Signatures))
	for _, s := range t.Signatures {
		w.Fixed(s[:])
	}
	t.Message.marshal(w)
}

func unmarshalTransaction(r *wire.Reader) Transaction {
	var t Transaction
	t.Signatures = make([]crypto.Signature, r.ShortVecLen(crypto.SignatureSize))
	for i := range t.Signatures {
		r.Fixed(t.Signatures[i][:])
	}
	t.Message = unmarshalMessage(r)
	return t
}
