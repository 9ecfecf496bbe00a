package crds

import (
	"crypto/sha256"
	"encoding/binary"
	"net/netip"
	"testing"

	"github.com/996BC/996.Gossip/crypto"
	"github.com/996BC/996.Gossip/serialize/wire"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newKeypair(t *testing.T) *crypto.Keypair {
	kp, err := crypto.NewKeypair()
	require.NoError(t, err)
	return kp
}

func TestDataRoundTrip(t *testing.T) {
	kp := newKeypair(t)
	kinds := map[DataKind]bool{}

	for _, d := range GenSignableData(kp) {
		kinds[d.Kind()] = true
		require.NoError(t, d.Sanitize(), d.Kind().String())

		data, err := MarshalData(d)
		require.NoError(t, err)
		require.Equal(t, uint32(d.Kind()), binary.LittleEndian.Uint32(data[:4]))

		result, err := UnmarshalData(data)
		require.NoError(t, err, d.Kind().String())
		require.Equal(t, d, result)
		require.Equal(t, kp.Pubkey(), result.Pubkey())
		require.Equal(t, d.GetWallclock(), result.GetWallclock())

		again, err := MarshalData(result)
		require.NoError(t, err)
		require.Equal(t, data, again)
	}

	for k := DataKind(0); k < numDataKinds; k++ {
		if !k.IsReserved() {
			assert.True(t, kinds[k], "no sample of %s", k)
		}
	}
}

func TestValueRoundTrip(t *testing.T) {
	kp := newKeypair(t)
	for _, v := range GenSignedValues(kp) {
		data, err := v.Marshal()
		require.NoError(t, err)

		result, err := UnmarshalValue(data)
		require.NoError(t, err)
		require.Equal(t, v, result)
		require.True(t, result.VerifySelf())
		require.NoError(t, result.Sanitize())

		hash, err := result.Hash()
		require.NoError(t, err)
		require.Equal(t, crypto.Hash(sha256.Sum256(data)), hash)
	}
}

func TestDefaultContactInfoSignature(t *testing.T) {
	k := newKeypair(t)
	other := newKeypair(t)

	v, err := NewSignedValue(NewLegacyContactInfo(crypto.Pubkey{}, 0), k)
	require.NoError(t, err)
	require.True(t, v.Verify(k.Pubkey()))
	require.False(t, v.Verify(other.Pubkey()))
	// the record names the zero key as origin, not k
	require.False(t, v.VerifySelf())
}

func TestLegacyContactInfoLayout(t *testing.T) {
	id := RandPubkey()
	c := NewLegacyContactInfo(id, 0x0102)
	c.Gossip = netip.MustParseAddrPort("10.0.0.1:8001")
	c.ShredVersion = 7

	data, err := MarshalData(c)
	require.NoError(t, err)
	require.Len(t, data, 4+32+10*(4+4+2)+8+2)
	require.Equal(t, []byte{0, 0, 0, 0}, data[:4])
	require.Equal(t, id[:], data[4:36])
	// gossip address: V4 tag, ip, little-endian port
	require.Equal(t, []byte{0, 0, 0, 0, 10, 0, 0, 1, 0x41, 0x1f}, data[36:46])
	require.Equal(t, []byte{0x02, 0x01, 0, 0, 0, 0, 0, 0, 7, 0}, data[len(data)-10:])

	c.TVU = netip.MustParseAddrPort("[2001:db8::1]:9000")
	data, err = MarshalData(c)
	require.NoError(t, err)
	require.Equal(t, 4+32+9*(4+4+2)+(4+16+2)+8+2, len(data))

	result, err := UnmarshalData(data)
	require.NoError(t, err)
	require.Equal(t, c, result)
}

func TestSignatureByteFlip(t *testing.T) {
	kp := newKeypair(t)
	for _, v := range GenSignedValues(kp) {
		data, err := v.Marshal()
		require.NoError(t, err)

		for i := range data {
			flipped := append([]byte(nil), data...)
			flipped[i] ^= 0x01
			result, err := UnmarshalValue(flipped)
			if err != nil {
				continue
			}
			require.False(t, result.Verify(kp.Pubkey()), "%s byte %d", v.Data.Kind(), i)
		}
	}
}

func TestCheck(t *testing.T) {
	kp := newKeypair(t)
	for _, v := range GenSignedValues(kp) {
		require.NoError(t, v.Check(), "%s", v.Data.Kind())

		forged := *v
		forged.Signature[0] ^= 0x01
		err := forged.Check()
		require.True(t, errors.Is(err, ErrSignatureInvalid), "%s: %v", v.Data.Kind(), err)
	}

	insane, err := NewSignedValue(NewLegacyContactInfo(kp.Pubkey(), MaxWallclock), kp)
	require.NoError(t, err)
	require.True(t, errors.Is(insane.Check(), ErrSanitize))

	reserved := &CrdsValue{Data: &DuplicateShred{}}
	require.True(t, errors.Is(reserved.Check(), ErrUnimplementedVariant))
}

func TestReservedVariants(t *testing.T) {
	kp := newKeypair(t)
	for _, d := range []CrdsData{&DuplicateShred{}, &ContactInfo{}} {
		data, err := MarshalData(d)
		require.NoError(t, err)
		require.Equal(t, 4, len(data))

		result, err := UnmarshalData(data)
		require.NoError(t, err)
		require.Equal(t, d, result)

		_, err = NewSignedValue(d, kp)
		require.True(t, errors.Is(err, ErrUnimplementedVariant))
		require.True(t, errors.Is(d.Sanitize(), ErrUnimplementedVariant))

		// forwarded as received
		v := &CrdsValue{Signature: kp.Sign([]byte("opaque")), Data: d}
		raw, err := v.Marshal()
		require.NoError(t, err)
		require.Equal(t, crypto.SignatureSize+4, len(raw))
		forwarded, err := UnmarshalValue(raw)
		require.NoError(t, err)
		require.Equal(t, v, forwarded)
	}
}

func TestUnmarshalRejects(t *testing.T) {
	kp := newKeypair(t)
	v := GenSignedValues(kp)[0]
	data, err := v.Marshal()
	require.NoError(t, err)

	_, err = UnmarshalValue(append(data, 0))
	require.True(t, errors.Is(err, wire.ErrTrailingBytes))

	_, err = UnmarshalValue(data[:len(data)-1])
	require.Error(t, err)

	unknown := make([]byte, crypto.SignatureSize+4)
	binary.LittleEndian.PutUint32(unknown[crypto.SignatureSize:], numDataKinds)
	_, err = UnmarshalValue(unknown)
	require.True(t, errors.Is(err, wire.ErrUnknownDiscriminant))

	_, err = MarshalData(nil)
	require.True(t, errors.Is(err, ErrEncoding))
}

func TestSanitize(t *testing.T) {
	from := RandPubkey()
	base := SlotHash{Slot: 10}

	tests := []struct {
		name string
		data CrdsData
	}{
		{"wallclock", NewLegacyContactInfo(from, MaxWallclock)},
		{"vote index", &Vote{Index: MaxVotes, From: from}},
		{"lowest index", &LowestSlot{Index: 1, From: from}},
		{"lowest slot", NewLowestSlot(from, MaxSlot, 0)},
		{"snapshot slot", &SnapshotHashes{From: from, Hashes: []SlotHash{{Slot: MaxSlot}}}},
		{"accounts slot", &AccountsHashes{From: from, Hashes: []SlotHash{{Slot: MaxSlot + 1}}}},
		{"epoch index", NewEpochSlots(MaxEpochSlots, from, 0)},
		{"incremental below base", &IncrementalSnapshotHashes{From: from, Base: base, Hashes: []SlotHash{{Slot: 10}}}},
		{"incremental base", &IncrementalSnapshotHashes{From: from, Base: SlotHash{Slot: MaxSlot}}},
		{"version wallclock", &Version{From: from, Wallclock: MaxWallclock}},
		{"instance wallclock", &NodeInstance{From: from, Wallclock: MaxWallclock + 1}},
	}
	for _, tt := range tests {
		err := tt.data.Sanitize()
		require.True(t, errors.Is(err, ErrSanitize), "%s: %v", tt.name, err)
	}

	epoch := NewEpochSlots(0, from, 0)
	epoch.Slots = []CompressedSlots{&Uncompressed{Num: 9, Slots: NewUncompressed(1).Slots}}
	require.True(t, errors.Is(epoch.Sanitize(), ErrSanitize))
	epoch.Slots = []CompressedSlots{&Flate2{Num: MaxSlotsPerEntry}}
	require.True(t, errors.Is(epoch.Sanitize(), ErrSanitize))
}

func TestVoteTransaction(t *testing.T) {
	kp := newKeypair(t)
	tx := RandVoteTransaction(kp)
	require.True(t, tx.Verify())
	require.NoError(t, tx.Sanitize())

	tx.Message.RecentBlockhash[0] ^= 0xff
	require.False(t, tx.Verify())

	tx = RandVoteTransaction(kp)
	tx.Message.Instructions[0].ProgramIDIndex = 3
	require.True(t, errors.Is(tx.Sanitize(), ErrSanitize))

	tx = RandVoteTransaction(kp)
	tx.Signatures = nil
	require.True(t, errors.Is(tx.Sanitize(), ErrSanitize))

	_, err := SignTransaction(tx.Message, newKeypair(t))
	require.Error(t, err)
}

func TestLowestSlotOrder(t *testing.T) {
	l := NewLowestSlot(RandPubkey(), 5, 1)
	l.Slots = []uint64{4, 4}
	_, err := MarshalData(l)
	require.True(t, errors.Is(err, ErrEncoding))

	l.Slots = []uint64{4, 9}
	data, err := MarshalData(l)
	require.NoError(t, err)
	// swap the two slots in place
	i := 4 + 1 + 32 + 8 + 8 + 8
	copy(data[i:i+8], []byte{9, 0, 0, 0, 0, 0, 0, 0})
	copy(data[i+8:i+16], []byte{4, 0, 0, 0, 0, 0, 0, 0})
	_, err = UnmarshalData(data)
	require.Error(t, err)
}

func TestNodeInstance(t *testing.T) {
	from := RandPubkey()
	a, err := NewNodeInstance(from, 100)
	require.NoError(t, err)
	b, err := NewNodeInstance(from, 200)
	require.NoError(t, err)
	require.NotEqual(t, a.Token, b.Token)

	require.True(t, a.CheckDuplicate(b))
	require.False(t, b.CheckDuplicate(a))
	require.False(t, a.CheckDuplicate(a.WithWallclock(300)))

	other := *b
	other.From = RandPubkey()
	require.False(t, a.CheckDuplicate(&other))

	refreshed := a.WithWallclock(300)
	require.Equal(t, uint64(300), refreshed.Wallclock)
	require.Equal(t, uint64(100), a.Wallclock)
	require.Equal(t, a.Token, refreshed.Token)
}

func TestLabel(t *testing.T) {
	kp := newKeypair(t)
	seen := map[Label]bool{}
	for _, v := range GenSignedValues(kp) {
		l := v.Label()
		require.Equal(t, kp.Pubkey(), l.Pubkey)
		require.False(t, seen[l])
		seen[l] = true
	}

	vote := NewVote(3, kp.Pubkey(), RandVoteTransaction(kp), 1)
	v, err := NewSignedValue(vote, kp)
	require.NoError(t, err)
	require.Equal(t, Label{Kind: KindVote, Pubkey: kp.Pubkey(), Index: 3}, v.Label())
	require.Contains(t, v.Label().String(), "Vote(3, ")
}

func TestParseDataKind(t *testing.T) {
	tests := []struct {
		in     string
		expect DataKind
	}{
		{"0", KindLegacyContactInfo},
		{"vote", KindVote},
		{"NodeInstance", KindNodeInstance},
		{"11", KindContactInfo},
	}
	for _, tt := range tests {
		kind, err := ParseDataKind(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.expect, kind, tt.in)
	}

	for _, bad := range []string{"12", "Unknown", "", "-1"} {
		_, err := ParseDataKind(bad)
		assert.Error(t, err, bad)
	}
}
