package crds

import (
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

// DataKind is the wire discriminant of a CrdsData variant
type DataKind uint32

const (
	KindLegacyContactInfo         = DataKind(0)
	KindVote                      = DataKind(1)
	KindLowestSlot                = DataKind(2)
	KindSnapshotHashes            = DataKind(3)
	KindAccountsHashes            = DataKind(4)
	KindEpochSlots                = DataKind(5)
	KindLegacyVersion             = DataKind(6)
	KindVersion                   = DataKind(7)
	KindNodeInstance              = DataKind(8)
	KindDuplicateShred            = DataKind(9) // reserved
	KindIncrementalSnapshotHashes = DataKind(10)
	KindContactInfo               = DataKind(11) // reserved

	numDataKinds = 12
)

var kindNames = [numDataKinds]string{
	"LegacyContactInfo",
	"Vote",
	"LowestSlot",
	"SnapshotHashes",
	"AccountsHashes",
	"EpochSlots",
	"LegacyVersion",
	"Version",
	"NodeInstance",
	"DuplicateShred",
	"IncrementalSnapshotHashes",
	"ContactInfo",
}

func (k DataKind) String() string {
	if k < numDataKinds {
		return kindNames[k]
	}
	return "Unknown"
}

// ParseDataKind accepts a kind by name, case insensitive, or by discriminant
func ParseDataKind(s string) (DataKind, error) {
	if n, err := strconv.ParseUint(s, 10, 32); err == nil {
		if n >= numDataKinds {
			return 0, errors.Newf("invalid kind %d", n)
		}
		return DataKind(n), nil
	}

	for k := DataKind(0); k < numDataKinds; k++ {
		if strings.EqualFold(kindNames[k], s) {
			return k, nil
		}
	}
	return 0, errors.Newf("unknown kind %q", s)
}

// IsReserved reports kinds that have a discriminant but no defined content yet
func (k DataKind) IsReserved() bool {
	return k == KindDuplicateShred || k == KindContactInfo
}

const (
	// MaxWallclock bounds every record timestamp (milliseconds)
	MaxWallclock = uint64(1000000000000000)
	// MaxSlot bounds every slot number carried by a record
	MaxSlot = uint64(1000000000000000)
	// MaxVotes is the number of vote indexes a node may use
	MaxVotes = 32
	// MaxEpochSlots is the number of epoch slots indexes a node may use
	MaxEpochSlots = 255
	// MaxSlotsPerEntry bounds one compressed slots entry
	MaxSlotsPerEntry = 2048 * 8
)

/*
All integers are little-endian. (u64 n) marks a sequence prefixed by its
u64 element count; (sv n) marks a compact-u16 count.

CrdsValue
+-------------+-----------------------+
| Signature   |       CrdsData        |
+-------------+-----------------------+
(bytes)
Signature   64
CrdsData    -

CrdsData
+--------------+---------------------+
| Discriminant |      Payload        |
+--------------+---------------------+
(bytes)
Discriminant    4
Payload         - (empty for the reserved DuplicateShred and ContactInfo)

SocketAddr
+-----+-------------+------+
| Tag |     IP      | Port |
+-----+-------------+------+
(bytes)
Tag     4 (0 IPv4, 1 IPv6)
IP      4 or 16
Port    2

LegacyContactInfo
+----+--------+-----+-------------+--------+-----+-------------+---------+-----+-----------+-------------+-----------+--------------+
| ID | Gossip | TVU | TVUForwards | Repair | TPU | TPUForwards | TPUVote | RPC | RPCPubsub | ServeRepair | Wallclock | ShredVersion |
+----+--------+-----+-------------+--------+-----+-------------+---------+-----+-----------+-------------+-----------+--------------+
(bytes)
ID              32
addresses       sizeof(SocketAddr) * 10
Wallclock       8
ShredVersion    2

Vote
+-------+------+---------------+-----------+
| Index | From |  Transaction  | Wallclock |
+-------+------+---------------+-----------+
(bytes)
Index       1
From        32
Transaction -
Wallclock   8

Transaction
+----------------------+------------------------------------------------+
| Signatures (sv n)    | Header(3) | AccountKeys (sv n) | RecentBlockhash |
+----------------------+------------------------------------------------+
| Instructions (sv n): ProgramIDIndex(1) Accounts(sv n) Data(sv n)     |
+-----------------------------------------------------------------------+

LowestSlot
+-------+------+------+--------+-------------+-------------+-----------+
| Index | From | Root | Lowest | Slots (u64) | Stash (u64) | Wallclock |
+-------+------+------+--------+-------------+-------------+-----------+
(bytes)
Index   1
From    32
Root    8
Lowest  8
Slots   8 + 8 * n (ascending)
Stash   8 + n * (First(8) Compression(4) CompressedList(8 + m))
Wallclock 8

SnapshotHashes / AccountsHashes
+------+------------------------------+-----------+
| From | Hashes (u64): Slot(8) Hash(32) | Wallclock |
+------+------------------------------+-----------+

IncrementalSnapshotHashes
+------+--------------------+------------------------------+-----------+
| From | Base: Slot Hash    | Hashes (u64): Slot(8) Hash(32) | Wallclock |
+------+--------------------+------------------------------+-----------+

EpochSlots
+-------+------+----------------------------+-----------+
| Index | From | Slots (u64): CompressedSlots | Wallclock |
+-------+------+----------------------------+-----------+

CompressedSlots
+-----+-----------+-----+---------------------------------------------+
| Tag | FirstSlot | Num | Flate2: Compressed (u64) / Uncompressed: BitVec |
+-----+-----------+-----+---------------------------------------------+
(bytes)
Tag         4 (0 Flate2, 1 Uncompressed)
FirstSlot   8
Num         8
BitVec      OptionTag(1) [Blocks (u64)] BitLength(8)

LegacyVersion
+------+-----------+-------+-------+-------+------------------+
| From | Wallclock | Major | Minor | Patch | Commit (option)  |
+------+-----------+-------+-------+-------+------------------+
(bytes)
Major Minor Patch   2 each
Commit              1 or 1 + 4

Version
+----------------+------------+
| LegacyVersion  | FeatureSet |
+----------------+------------+
(bytes)
FeatureSet  4

NodeInstance
+------+-----------+-----------+-------+
| From | Wallclock | Timestamp | Token |
+------+-----------+-----------+-------+
(bytes)
8 each after From

CrdsFilter
+-----------------+------+----------+
|     (Bloom)     | Mask | MaskBits |
+-----------------+------+----------+
(bytes)
Mask        8
MaskBits    4
*/
