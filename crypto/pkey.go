package crypto

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/996BC/996.Gossip/utils"
)

/*
The pkey is the plain node keypair stored on the disk as hex.
*/

const (
	PlainKeyType = 1
	PlainKey     = ".pKey"
)

// NewPKey generates a node keypair, then saves it under path
func NewPKey(path string) (*Keypair, error) {
	keyFile := filepath.Join(path, PlainKey)
	if err := checkBeforeNewKey(path, keyFile); err != nil {
		return nil, err
	}

	kp, err := NewKeypair()
	if err != nil {
		return nil, err
	}

	if err = saveOnDisk([]byte(utils.ToHex(kp.Bytes())), keyFile); err != nil {
		return nil, err
	}
	return kp, nil
}

// OpenSKey decrypts the sKey under skeyPath and saves it as a pKey under outputPath
func OpenSKey(skeyPath string, outputPath string) error {
	keyFile := filepath.Join(outputPath, PlainKey)
	if err := checkBeforeNewKey(outputPath, keyFile); err != nil {
		return err
	}

	kp, err := RestoreSKey(skeyPath)
	if err != nil {
		return err
	}

	return saveOnDisk([]byte(utils.ToHex(kp.Bytes())), keyFile)
}

// RestorePKey restores the keypair from the pKey under path
func RestorePKey(path string) (*Keypair, error) {
	keyFile := filepath.Join(path, PlainKey)
	hexKey, err := readKeyFile(keyFile)
	if err != nil {
		return nil, err
	}

	raw, err := utils.FromHex(string(hexKey))
	if err != nil {
		return nil, errors.Wrapf(err, "decode %s", keyFile)
	}

	return KeypairFromBytes(raw)
}

// RestoreKey loads the keypair of the given type (PlainKeyType or SealKeyType)
func RestoreKey(keyType int, path string) (*Keypair, error) {
	switch keyType {
	case PlainKeyType:
		return RestorePKey(path)
	case SealKeyType:
		return RestoreSKey(path)
	}
	return nil, errors.Newf("unknown key type %d", keyType)
}

func checkBeforeNewKey(path string, file string) error {
	if err := utils.AccessCheck(path); err != nil {
		return err
	}

	if err := utils.AccessCheck(file); err == nil {
		return errors.Newf("File %s already exists. "+
			"You should remove it before creating a new one in the same directory",
			file)
	}

	return nil
}

func readKeyFile(file string) ([]byte, error) {
	if err := utils.AccessCheck(file); err != nil {
		return nil, err
	}

	content, err := os.ReadFile(file)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", file)
	}

	return []byte(strings.TrimSpace(string(content))), nil
}

func saveOnDisk(content []byte, file string) error {
	return errors.Wrapf(os.WriteFile(file, content, 0600), "write %s", file)
}
