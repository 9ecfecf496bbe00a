package db

import (
	"encoding/binary"

	"github.com/996BC/996.Gossip/crypto"
	"github.com/996BC/996.Gossip/serialize/crds"
)

var (
	valuePrefix  = []byte("v") // valuePrefix + hash -> serialized value
	originPrefix = []byte("o") // originPrefix + pubkey + hash -> wallclock
	kindPrefix   = []byte("k") // kindPrefix + kind + hash -> placeholder

	// meta data key should begin with 'm'
	mCount = []byte("mCount")
)

func u64byte(v uint64) []byte {
	result := make([]byte, 8)
	binary.BigEndian.PutUint64(result, v)
	return result
}

func byteu64(data []byte) uint64 {
	if len(data) != 8 {
		return 0
	}
	return binary.BigEndian.Uint64(data)
}

func join(parts ...[]byte) []byte {
	var result []byte
	for _, p := range parts {
		result = append(result, p...)
	}
	return result
}

// v..
func getValueKey(hash crypto.Hash) []byte {
	return join(valuePrefix, hash[:])
}

// o..
func getOriginKeyPrefix(origin crypto.Pubkey) []byte {
	return join(originPrefix, origin[:])
}

// o....
func getOriginKey(origin crypto.Pubkey, hash crypto.Hash) []byte {
	return join(originPrefix, origin[:], hash[:])
}

// k..
func getKindKeyPrefix(kind crds.DataKind) []byte {
	k := make([]byte, 4)
	binary.BigEndian.PutUint32(k, uint32(kind))
	return join(kindPrefix, k)
}

// k....
func getKindKey(kind crds.DataKind, hash crypto.Hash) []byte {
	return join(getKindKeyPrefix(kind), hash[:])
}
