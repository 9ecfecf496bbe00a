package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"github.com/howeyc/gopass"
	"golang.org/x/crypto/scrypt"

	"github.com/996BC/996.Gossip/utils"
)

/*
The skey is the sealed node keypair stored on the disk.
It's safer than plain key storage. Users can export a skey from a pkey and vice versa.
The aes key used to encrypt the keypair is derived by scrypt.
*/

const (
	SealKeyType = 2
	SealKey     = ".sKey"

	version1   = 1
	kdfName    = "scrypt"
	dkLen      = 32
	scryptN    = 262144
	scryptP    = 1
	scryptR    = 8
	saltLen    = 32
	nonceLen   = 12
	cryptoName = "aes-256-gcm"

	minPassphraseLen = 8
)

// readPassphrase prompts on the terminal; replaced in tests
var readPassphrase = func(prompt string) ([]byte, error) {
	fmt.Print(prompt)
	return gopass.GetPasswdMasked()
}

// scryptCost is the N parameter used when sealing; lowered in tests
var scryptCost = scryptN

type skeyJSON struct {
	Version    int         `json:"version"`
	KdfName    string      `json:"kdfName"`
	KDF        interface{} `json:"kdf"`
	CryptoName string      `json:"cryptoName"`
	Crypto     interface{} `json:"crypto"`
}

type scryptKDF struct {
	DkLen int    `json:"dkLen"`
	N     int    `json:"n"`
	P     int    `json:"p"`
	R     int    `json:"r"`
	Salt  string `json:"salt"`
}

type aes256GcmCrypto struct {
	CipherText string `json:"cipherText"`
	Nonce      string `json:"nonce"`
}

// NewSKey generates a node keypair, then seals and saves it under path
func NewSKey(path string) (*Keypair, error) {
	keyFile := filepath.Join(path, SealKey)
	if err := checkBeforeNewKey(path, keyFile); err != nil {
		return nil, err
	}

	kp, err := NewKeypair()
	if err != nil {
		return nil, err
	}

	if err = genSKeyAndSaveIt(kp, keyFile); err != nil {
		return nil, err
	}
	return kp, nil
}

// SealPKey seals the pKey under pkeyPath and saves it as a sKey under outputPath
func SealPKey(pkeyPath string, outputPath string) error {
	keyFile := filepath.Join(outputPath, SealKey)
	if err := checkBeforeNewKey(outputPath, keyFile); err != nil {
		return err
	}

	kp, err := RestorePKey(pkeyPath)
	if err != nil {
		return err
	}

	return genSKeyAndSaveIt(kp, keyFile)
}

// ReNewSKey seals the keypair of an existing sKey with a new passphrase
func ReNewSKey(oldKeyPath string, newKeyPath string) error {
	newKeyFile := filepath.Join(newKeyPath, SealKey)
	if err := utils.AccessCheck(newKeyPath); err != nil {
		return err
	}

	kp, err := RestoreSKey(oldKeyPath)
	if err != nil {
		return err
	}

	return genSKeyAndSaveIt(kp, newKeyFile)
}

// RestoreSKey asks for the passphrase and decrypts the sKey under path
func RestoreSKey(path string) (*Keypair, error) {
	keyFile := filepath.Join(path, SealKey)
	jsonBytes, err := readKeyFile(keyFile)
	if err != nil {
		return nil, err
	}

	kdf, aesCrypto, err := jsonUnMarshal(jsonBytes)
	if err != nil {
		return nil, err
	}

	pass, err := readPassphrase("Input your passphrase to decrypt your key:")
	if err != nil {
		return nil, errors.Wrap(err, "get passphrase")
	}

	plain, err := aesDecrypt(pass, kdf, aesCrypto)
	if err != nil {
		return nil, err
	}
	return KeypairFromBytes(plain)
}

// three steps:
// 1. get user's passphrase
// 2. use passphrase to seal the keypair
// 3. save the sealed content on the disk
func genSKeyAndSaveIt(kp *Keypair, outputFile string) error {
	pass, err := getPassphrase()
	if err != nil {
		return err
	}

	sealedContent, err := seal(pass, kp.Bytes())
	if err != nil {
		return err
	}

	return saveOnDisk(sealedContent, outputFile)
}

func getPassphrase() ([]byte, error) {
	pass1, err := readPassphrase("Input your passphrase(Please Remember it):")
	if err != nil {
		return nil, errors.Wrap(err, "get passphrase")
	} else if len(pass1) < minPassphraseLen {
		return nil, errors.Newf("Password should be at least %d characters", minPassphraseLen)
	}
	pass2, err := readPassphrase("Repeat it:")
	if err != nil {
		return nil, errors.Wrap(err, "get passphrase")
	}
	if !bytes.Equal(pass1, pass2) {
		return nil, errors.New("Inconsistent input")
	}

	return pass1, nil
}

func seal(passphrase []byte, key []byte) ([]byte, error) {
	salt := make([]byte, saltLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, errors.Wrap(err, "read salt")
	}

	dk, err := scrypt.Key(passphrase, salt, scryptCost, scryptR, scryptP, dkLen)
	if err != nil {
		return nil, errors.Wrap(err, "derive key")
	}

	nonce, cipherText, err := aesEncrypt(key, dk)
	if err != nil {
		return nil, err
	}

	return jsonMarshal(utils.ToHex(nonce), utils.ToHex(cipherText), utils.ToHex(salt))
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != dkLen {
		return nil, errors.Newf("AES key must be %d bytes", dkLen)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.Wrap(err, "aes")
	}
	return cipher.NewGCM(block)
}

func aesEncrypt(plaintext []byte, key []byte) (nonce, cipherText []byte, err error) {
	aesgcm, err := newGCM(key)
	if err != nil {
		return nil, nil, err
	}

	nonce = make([]byte, nonceLen)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, nil, errors.Wrap(err, "read nonce")
	}

	return nonce, aesgcm.Seal(nil, nonce, plaintext, nil), nil
}

func jsonMarshal(nonce, cipherText, salt string) ([]byte, error) {
	ks := skeyJSON{
		Version: version1,
		KdfName: kdfName,
		KDF: &scryptKDF{
			DkLen: dkLen,
			N:     scryptCost,
			P:     scryptP,
			R:     scryptR,
			Salt:  salt,
		},
		CryptoName: cryptoName,
		Crypto: &aes256GcmCrypto{
			CipherText: cipherText,
			Nonce:      nonce,
		},
	}

	jsonBytes, err := json.MarshalIndent(ks, "", "  ")
	return jsonBytes, errors.Wrap(err, "marshal sKey")
}

func jsonUnMarshal(jsonBytes []byte) (*scryptKDF, *aes256GcmCrypto, error) {
	kdf := &scryptKDF{}
	aesCrypto := &aes256GcmCrypto{}
	ks := &skeyJSON{KDF: kdf, Crypto: aesCrypto}
	if err := json.Unmarshal(jsonBytes, ks); err != nil {
		return nil, nil, errors.Wrap(err, "unmarshal sKey")
	}
	if err := checkSealParams(ks, kdf, aesCrypto); err != nil {
		return nil, nil, err
	}

	return kdf, aesCrypto, nil
}

func checkSealParams(ks *skeyJSON, kdf *scryptKDF, aesCrypto *aes256GcmCrypto) error {
	if ks.Version != version1 {
		return errors.Newf("unrecognized version:%d", ks.Version)
	}
	if ks.KdfName != kdfName {
		return errors.Newf("unrecognized kdf:%s", ks.KdfName)
	}
	if ks.CryptoName != cryptoName {
		return errors.Newf("unrecognized crypto:%s", ks.CryptoName)
	}
	if kdf.DkLen != dkLen {
		return errors.Newf("unrecognized dkLen:%d", kdf.DkLen)
	}
	// N is a power of two no larger than the default cost
	if kdf.N <= 1 || kdf.N > scryptN || kdf.N&(kdf.N-1) != 0 {
		return errors.Newf("unrecognized n:%d", kdf.N)
	}
	if kdf.P != scryptP {
		return errors.Newf("unrecognized p:%d", kdf.P)
	}
	if kdf.R != scryptR {
		return errors.Newf("unrecognized r:%d", kdf.R)
	}
	if len(kdf.Salt) == 0 || len(aesCrypto.CipherText) == 0 ||
		len(aesCrypto.Nonce) == 0 {
		return errors.New("the essential content is missed")
	}
	return nil
}

func aesDecrypt(pass []byte, kdf *scryptKDF, aesCrypto *aes256GcmCrypto) ([]byte, error) {
	salt, err := utils.FromHex(kdf.Salt)
	if err != nil {
		return nil, errors.Wrap(err, "decode salt")
	}
	nonce, err := utils.FromHex(aesCrypto.Nonce)
	if err != nil || len(nonce) != nonceLen {
		return nil, errors.New("invalid nonce")
	}
	cipherText, err := utils.FromHex(aesCrypto.CipherText)
	if err != nil {
		return nil, errors.Wrap(err, "decode cipher text")
	}

	dk, err := scrypt.Key(pass, salt, kdf.N, kdf.R, kdf.P, kdf.DkLen)
	if err != nil {
		return nil, errors.Wrap(err, "derive key")
	}

	aesgcm, err := newGCM(dk)
	if err != nil {
		return nil, err
	}

	plainText, err := aesgcm.Open(nil, nonce, cipherText, nil)
	if err != nil {
		return nil, errors.Wrap(err, "decrypt key, wrong passphrase?")
	}
	return plainText, nil
}
