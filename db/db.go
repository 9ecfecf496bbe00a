package db

import (
	"github.com/996BC/996.Gossip/crypto"
	"github.com/996BC/996.Gossip/serialize/crds"
	"github.com/996BC/996.Gossip/utils"
)

// db archives the signed records a node has received. It keeps every
// distinct value; which one is current is up to the caller.
type db interface {
	Init(path string) error
	PutValue(v *crds.CrdsValue) (bool, error)
	GetValue(hash crypto.Hash) (*crds.CrdsValue, error)
	HasValue(hash crypto.Hash) bool
	GetValuesViaOrigin(origin crypto.Pubkey) ([]crypto.Hash, []uint64, error)
	GetValuesViaKind(kind crds.DataKind) ([]crypto.Hash, error)
	GetCount() (uint64, error)
	Close()
}

var (
	logger   = utils.NewLogger("db")
	instance db
)

func Init(path string) error {
	instance = newBadger()
	return instance.Init(path)
}

// PutValue stores a verified value, reporting false if it was already stored
func PutValue(v *crds.CrdsValue) (bool, error) {
	return instance.PutValue(v)
}

func GetValue(hash crypto.Hash) (*crds.CrdsValue, error) {
	return instance.GetValue(hash)
}

func HasValue(hash crypto.Hash) bool {
	return instance.HasValue(hash)
}

// GetValuesViaOrigin lists the hashes of the values signed by origin with
// their wallclocks, in hash order
func GetValuesViaOrigin(origin crypto.Pubkey) ([]crypto.Hash, []uint64, error) {
	return instance.GetValuesViaOrigin(origin)
}

func GetValuesViaKind(kind crds.DataKind) ([]crypto.Hash, error) {
	return instance.GetValuesViaKind(kind)
}

func GetCount() (uint64, error) {
	return instance.GetCount()
}

func Close() {
	if instance != nil {
		instance.Close()
	}
}
