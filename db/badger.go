package db

import (
	"path/filepath"
	"time"

	"github.com/996BC/996.Gossip/crypto"
	"github.com/996BC/996.Gossip/serialize/crds"
	"github.com/996BC/996.Gossip/utils"
	"github.com/cockroachdb/errors"
	"github.com/dgraph-io/badger"
)

var placeHolder = []byte("0")

const gcInterval = 10 * time.Minute

type badgerDB struct {
	*badger.DB
	lm *utils.LoopMode
}

func newBadger() *badgerDB {
	return &badgerDB{
		lm: utils.NewLoop(1),
	}
}

func (b *badgerDB) Init(path string) error {
	var dbpath string
	var err error

	if dbpath, err = filepath.Abs(path); err != nil {
		return err
	}

	if err = utils.AccessCheck(dbpath); err != nil {
		return err
	}

	opts := badger.DefaultOptions(dbpath)
	opts = opts.WithLogger(nil)
	opts = opts.WithValueLogFileSize(64 << 20)
	opts = opts.WithMaxTableSize(16 << 20)

	b.DB, err = badger.Open(opts)
	if err != nil {
		return b.wrapError(err)
	}

	b.start()
	return nil
}

func (b *badgerDB) Close() {
	b.stop()
	b.DB.Close()
}

func (b *badgerDB) PutValue(v *crds.CrdsValue) (bool, error) {
	if !v.VerifySelf() {
		err := errors.Wrapf(crds.ErrSignatureInvalid, "%s", v.Label())
		return false, errors.Mark(err, ErrUnverified)
	}
	data, err := v.Marshal()
	if err != nil {
		return false, err
	}
	hash := crypto.HashV(data)

	added := false
	wf := func(tx *badger.Txn) error {
		_, err := tx.Get(getValueKey(hash))
		if err == nil {
			return nil
		}
		if err != badger.ErrKeyNotFound {
			return err
		}

		if err := tx.Set(getValueKey(hash), data); err != nil {
			return err
		}
		if err := tx.Set(getOriginKey(v.Pubkey(), hash), u64byte(v.Wallclock())); err != nil {
			return err
		}
		if err := tx.Set(getKindKey(v.Data.Kind(), hash), placeHolder); err != nil {
			return err
		}
		if err := b.updateCountTX(tx); err != nil {
			return err
		}

		added = true
		return nil
	}

	if err := b.update(wf); err != nil {
		return false, err
	}
	return added, nil
}

func (b *badgerDB) GetValue(hash crypto.Hash) (*crds.CrdsValue, error) {
	var result *crds.CrdsValue

	rf := func(tx *badger.Txn) error {
		item, err := tx.Get(getValueKey(hash))
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			result, err = crds.UnmarshalValue(val)
			return err
		})
	}

	return result, b.view(rf)
}

func (b *badgerDB) HasValue(hash crypto.Hash) bool {
	rf := func(tx *badger.Txn) error {
		_, err := tx.Get(getValueKey(hash))
		return err
	}

	err := b.View(rf)
	if err == nil {
		return true
	} else if err == badger.ErrKeyNotFound {
		return false
	} else {
		logger.Warn("check value failed:%v\n", err)
		return false
	}
}

func (b *badgerDB) GetValuesViaOrigin(origin crypto.Pubkey) ([]crypto.Hash, []uint64, error) {
	var hashes []crypto.Hash
	var wallclocks []uint64

	rf := func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := getOriginKeyPrefix(origin)
		prefixLen := len(prefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()

			var hash crypto.Hash
			copy(hash[:], item.Key()[prefixLen:])
			hashes = append(hashes, hash)

			err := item.Value(func(v []byte) error {
				wallclocks = append(wallclocks, byteu64(v))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	}

	if err := b.view(rf); err != nil {
		return nil, nil, err
	}
	return hashes, wallclocks, nil
}

func (b *badgerDB) GetValuesViaKind(kind crds.DataKind) ([]crypto.Hash, error) {
	var hashes []crypto.Hash

	rf := func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := getKindKeyPrefix(kind)
		prefixLen := len(prefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var hash crypto.Hash
			copy(hash[:], it.Item().Key()[prefixLen:])
			hashes = append(hashes, hash)
		}
		return nil
	}

	if err := b.view(rf); err != nil {
		return nil, err
	}
	return hashes, nil
}

func (b *badgerDB) GetCount() (uint64, error) {
	var result uint64

	rf := func(tx *badger.Txn) error {
		item, err := tx.Get(mCount)
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			result = byteu64(val)
			return nil
		})
	}

	err := b.View(rf)
	if err == badger.ErrKeyNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, b.wrapError(err)
	}
	return result, nil
}

func (b *badgerDB) updateCountTX(tx *badger.Txn) error {
	item, err := tx.Get(mCount)
	if err != nil && err != badger.ErrKeyNotFound {
		return err
	}

	origin := uint64(0)
	if err != badger.ErrKeyNotFound {
		if err := item.Value(func(val []byte) error {
			origin = byteu64(val)
			return nil
		}); err != nil {
			return err
		}
	}

	origin++
	return tx.Set(mCount, u64byte(origin))
}

func (b *badgerDB) view(fn func(txn *badger.Txn) error) error {
	return b.wrapError(b.View(fn))
}

func (b *badgerDB) update(fn func(txn *badger.Txn) error) error {
	return b.wrapError(b.Update(fn))
}

// wrap the error directly get from badger
func (b *badgerDB) wrapError(err error) error {
	if err == nil {
		return nil
	}

	if err == badger.ErrKeyNotFound {
		return ErrNotFound
	}

	logger.Warn("badger got unexpect err:%v\n", err)
	return errors.Mark(err, ErrInternal)
}

func (b *badgerDB) start() {
	go b.gcLoop()
	b.lm.StartWorking()
}

func (b *badgerDB) stop() {
	b.lm.Stop()
}

func (b *badgerDB) gcLoop() {
	b.lm.Add()
	defer b.lm.Done()

	ticker := time.NewTicker(gcInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.lm.D:
			return
		case <-ticker.C:
			for b.RunValueLogGC(0.5) == nil {
			}
		}
	}
}
