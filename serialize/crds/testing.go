package crds

// testing.go contains some test helpers

import (
	"math/rand"
	"net/netip"

	"github.com/996BC/996.Gossip/crypto"
)

func randBytes(n int) []byte {
	result := make([]byte, n)
	rand.Read(result)
	return result
}

func RandPubkey() crypto.Pubkey {
	var p crypto.Pubkey
	copy(p[:], randBytes(crypto.PubkeySize))
	return p
}

func RandHash() crypto.Hash {
	var h crypto.Hash
	copy(h[:], randBytes(crypto.HashSize))
	return h
}

func randWallclock() uint64 {
	return uint64(rand.Int63n(int64(MaxWallclock)))
}

func randSlot() uint64 {
	return uint64(rand.Int63n(int64(MaxSlot) / 2))
}

func randAddr() netip.AddrPort {
	if rand.Intn(2) == 0 {
		var b [4]byte
		copy(b[:], randBytes(4))
		return netip.AddrPortFrom(netip.AddrFrom4(b), uint16(rand.Intn(65536)))
	}
	var b [16]byte
	copy(b[:], randBytes(16))
	// keep it out of the 4in6 range so it stays a V6 address
	b[0] = 0x20
	return netip.AddrPortFrom(netip.AddrFrom16(b), uint16(rand.Intn(65536)))
}

// RandVoteTransaction returns a transaction signed by keypair with one
// instruction, shaped like a vote
func RandVoteTransaction(keypair *crypto.Keypair) *Transaction {
	msg := Message{
		Header: MessageHeader{
			NumRequiredSignatures:       1,
			NumReadonlySignedAccounts:   0,
			NumReadonlyUnsignedAccounts: 1,
		},
		AccountKeys:     []crypto.Pubkey{keypair.Pubkey(), RandPubkey(), RandPubkey()},
		RecentBlockhash: RandHash(),
		Instructions: []CompiledInstruction{
			{ProgramIDIndex: 2, Accounts: []uint8{1, 0}, Data: randBytes(1 + rand.Intn(64))},
		},
	}
	tx, err := SignTransaction(msg, keypair)
	if err != nil {
		panic(err)
	}
	return tx
}

// GenSignableData returns one random, sanitized instance of every variant
// that can be signed, each naming keypair as its origin
func GenSignableData(keypair *crypto.Keypair) []CrdsData {
	from := keypair.Pubkey()

	contact := NewLegacyContactInfo(from, randWallclock())
	for _, addr := range contact.addrs() {
		*addr = randAddr()
	}
	contact.ShredVersion = uint16(rand.Intn(65536))

	lowest := NewLowestSlot(from, randSlot(), randWallclock())
	lowest.Root = randSlot()
	lowest.Slots = []uint64{3, 5, 8}
	lowest.Stash = []EpochIncompleteSlots{{First: 7, Compression: CompressionGZip, CompressedList: randBytes(5)}}

	uncompressed := NewUncompressed(16)
	uncompressed.Add([]uint64{100, 101, 105, 127})
	compressed := NewUncompressed(64)
	compressed.Add([]uint64{200, 300, 400})
	flate2, err := Deflate(compressed)
	if err != nil {
		panic(err)
	}
	epochSlots := NewEpochSlots(uint8(rand.Intn(MaxEpochSlots)), from, randWallclock())
	epochSlots.Slots = []CompressedSlots{uncompressed, flate2}

	commit := rand.Uint32()
	base := randSlot()

	instance, err := NewNodeInstance(from, randWallclock())
	if err != nil {
		panic(err)
	}

	return []CrdsData{
		contact,
		NewVote(uint8(rand.Intn(MaxVotes)), from, RandVoteTransaction(keypair), randWallclock()),
		lowest,
		&SnapshotHashes{
			From:      from,
			Hashes:    []SlotHash{{Slot: randSlot(), Hash: RandHash()}},
			Wallclock: randWallclock(),
		},
		&AccountsHashes{
			From:      from,
			Hashes:    []SlotHash{{Slot: randSlot(), Hash: RandHash()}, {Slot: randSlot(), Hash: RandHash()}},
			Wallclock: randWallclock(),
		},
		epochSlots,
		&LegacyVersion{
			From:      from,
			Wallclock: randWallclock(),
			Release:   Release{Major: 1, Minor: 14, Patch: uint16(rand.Intn(30))},
		},
		&Version{
			From:       from,
			Wallclock:  randWallclock(),
			Release:    Release{Major: 1, Minor: 16, Patch: 3, Commit: &commit},
			FeatureSet: rand.Uint32(),
		},
		instance,
		&IncrementalSnapshotHashes{
			From:      from,
			Base:      SlotHash{Slot: base, Hash: RandHash()},
			Hashes:    []SlotHash{{Slot: base + 100, Hash: RandHash()}},
			Wallclock: randWallclock(),
		},
	}
}

// GenSignedValues signs every variant of GenSignableData
func GenSignedValues(keypair *crypto.Keypair) []*CrdsValue {
	var result []*CrdsValue
	for _, d := range GenSignableData(keypair) {
		v, err := NewSignedValue(d, keypair)
		if err != nil {
			panic(err)
		}
		result = append(result, v)
	}
	return result
}
