package db

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/996BC/996.Gossip/crypto"
	"github.com/996BC/996.Gossip/serialize/crds"
	"github.com/996BC/996.Gossip/utils"
	"github.com/cockroachdb/errors"
)

var dbTestVar = &struct {
	dbPath string

	keyA    *crypto.Keypair
	keyB    *crypto.Keypair
	valuesA []*crds.CrdsValue
	valuesB []*crds.CrdsValue
}{}

func init() {
	tv := dbTestVar

	tv.keyA, _ = crypto.NewKeypair()
	tv.keyB, _ = crypto.NewKeypair()
	tv.valuesA = crds.GenSignedValues(tv.keyA)
	tv.valuesB = crds.GenSignedValues(tv.keyB)[:3]
}

func setup(t *testing.T) {
	tv := dbTestVar

	tv.dbPath = filepath.Join(t.TempDir(), "db_test_tmp")
	if err := os.MkdirAll(tv.dbPath, 0700); err != nil {
		t.Fatalf("create tmp directory failed:%v\n", err)
	}

	if err := Init(tv.dbPath); err != nil {
		t.Fatalf("initialize db failed:%v\n", err)
	}
}

func cleanup() {
	Close()
}

func insertTestData(t *testing.T) {
	tv := dbTestVar

	for i, v := range append(tv.valuesA, tv.valuesB...) {
		added, err := PutValue(v)
		if err != nil {
			t.Fatalf("[%d] put value failed:%v\n", i, err)
		}
		if !added {
			t.Fatalf("[%d] expect a new value\n", i)
		}
	}
}

func hashOf(t *testing.T, v *crds.CrdsValue) crypto.Hash {
	h, err := v.Hash()
	if err != nil {
		t.Fatal(err)
	}
	return h
}

func TestPutValue(t *testing.T) {
	tv := dbTestVar
	setup(t)
	defer cleanup()

	count, err := GetCount()
	if err != nil {
		t.Fatal(err)
	}
	if err := utils.TCheckUint64("empty count", 0, count); err != nil {
		t.Fatal(err)
	}

	insertTestData(t)

	// stored once
	added, err := PutValue(tv.valuesA[0])
	if err != nil {
		t.Fatal(err)
	}
	if err := utils.TCheckBool("put again", false, added); err != nil {
		t.Fatal(err)
	}

	count, err = GetCount()
	if err != nil {
		t.Fatal(err)
	}
	expect := uint64(len(tv.valuesA) + len(tv.valuesB))
	if err := utils.TCheckUint64("count", expect, count); err != nil {
		t.Fatal(err)
	}
}

func TestPutUnverified(t *testing.T) {
	tv := dbTestVar
	setup(t)
	defer cleanup()

	forged := *tv.valuesA[0]
	forged.Signature[5] ^= 0x10
	_, err := PutValue(&forged)
	if !errors.Is(err, ErrUnverified) || !errors.Is(err, crds.ErrSignatureInvalid) {
		t.Fatalf("expect unverified error, result %v\n", err)
	}
	if HasValue(hashOf(t, &forged)) {
		t.Fatal("expect forged value not stored")
	}
}

func TestGetValue(t *testing.T) {
	tv := dbTestVar
	setup(t)
	defer cleanup()
	insertTestData(t)

	for i, v := range tv.valuesA {
		hash := hashOf(t, v)
		if !HasValue(hash) {
			t.Fatalf("[%d] expect value exists\n", i)
		}

		result, err := GetValue(hash)
		if err != nil {
			t.Fatal(err)
		}

		expect, _ := v.Marshal()
		data, _ := result.Marshal()
		if err := utils.TCheckBytes(fmt.Sprintf("[%d] value", i), expect, data); err != nil {
			t.Fatal(err)
		}
		if !result.VerifySelf() {
			t.Fatalf("[%d] expect stored value verifies\n", i)
		}
	}

	missing := crds.RandHash()
	if HasValue(missing) {
		t.Fatal("expect not found")
	}
	if _, err := GetValue(missing); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expect not found error, result %v\n", err)
	}
}

func TestGetValuesViaOrigin(t *testing.T) {
	tv := dbTestVar
	setup(t)
	defer cleanup()
	insertTestData(t)

	cases := []struct {
		origin crypto.Pubkey
		values []*crds.CrdsValue
	}{
		{tv.keyA.Pubkey(), tv.valuesA},
		{tv.keyB.Pubkey(), tv.valuesB},
		{crds.RandPubkey(), nil},
	}

	for i, cs := range cases {
		hashes, wallclocks, err := GetValuesViaOrigin(cs.origin)
		if err != nil {
			t.Fatal(err)
		}

		if err := utils.TCheckInt(fmt.Sprintf("[%d] value size", i), len(cs.values), len(hashes)); err != nil {
			t.Fatal(err)
		}
		if err := utils.TCheckInt(fmt.Sprintf("[%d] wallclock size", i), len(hashes), len(wallclocks)); err != nil {
			t.Fatal(err)
		}

		expect := map[crypto.Hash]uint64{}
		for _, v := range cs.values {
			expect[hashOf(t, v)] = v.Wallclock()
		}
		for j, h := range hashes {
			w, ok := expect[h]
			if !ok {
				t.Fatalf("[%d-%d] unexpected hash %s\n", i, j, h)
			}
			if err := utils.TCheckUint64(fmt.Sprintf("[%d-%d] wallclock", i, j), w, wallclocks[j]); err != nil {
				t.Fatal(err)
			}
		}
	}
}

func TestGetValuesViaKind(t *testing.T) {
	setup(t)
	defer cleanup()
	insertTestData(t)

	hashes, err := GetValuesViaKind(crds.KindLegacyContactInfo)
	if err != nil {
		t.Fatal(err)
	}
	// one from each origin
	if err := utils.TCheckInt("contact info size", 2, len(hashes)); err != nil {
		t.Fatal(err)
	}

	hashes, err = GetValuesViaKind(crds.KindContactInfo)
	if err != nil {
		t.Fatal(err)
	}
	if err := utils.TCheckInt("reserved size", 0, len(hashes)); err != nil {
		t.Fatal(err)
	}
}
