package crypto

import (
	"testing"

	"github.com/cockroachdb/errors"

	"github.com/996BC/996.Gossip/utils"
)

const testPassword = "test_password"

// feedPassphrases answers the prompts with the given inputs in order
func feedPassphrases(t *testing.T, inputs ...string) {
	savedRead, savedCost := readPassphrase, scryptCost
	scryptCost = 1 << 10
	readPassphrase = func(string) ([]byte, error) {
		if len(inputs) == 0 {
			return nil, errors.New("no more input")
		}
		in := inputs[0]
		inputs = inputs[1:]
		return []byte(in), nil
	}
	t.Cleanup(func() {
		readPassphrase, scryptCost = savedRead, savedCost
	})
}

func TestNewSKey(t *testing.T) {
	dir := t.TempDir()

	feedPassphrases(t, testPassword, testPassword+"error")
	if _, err := NewSKey(dir); err == nil {
		t.Fatal("Expect inconsistent input error")
	}

	feedPassphrases(t, "short", "short")
	if _, err := NewSKey(dir); err == nil {
		t.Fatal("Expect too short passphrase error")
	}

	feedPassphrases(t, testPassword, testPassword)
	if _, err := NewSKey(dir); err != nil {
		t.Fatal(err)
	}
}

func TestRestoreSKey(t *testing.T) {
	dir := t.TempDir()

	feedPassphrases(t, testPassword, testPassword, testPassword+"error", testPassword)
	generated, err := NewSKey(dir)
	if err != nil {
		t.Fatal(err)
	}

	if _, err = RestoreSKey(dir); err == nil {
		t.Fatal("Expect restore failed cause error passphrase input")
	}

	restored, err := RestoreSKey(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := utils.TCheckBytes("RestoreSKey", generated.Bytes(), restored.Bytes()); err != nil {
		t.Fatal(err)
	}
}

func TestSealAndOpen(t *testing.T) {
	plainDir := t.TempDir()
	sealDir := t.TempDir()
	openDir := t.TempDir()

	pKey, err := NewPKey(plainDir)
	if err != nil {
		t.Fatal(err)
	}

	feedPassphrases(t, testPassword, testPassword, testPassword)
	if err := SealPKey(plainDir, sealDir); err != nil {
		t.Fatal(err)
	}
	if err := OpenSKey(sealDir, openDir); err != nil {
		t.Fatal(err)
	}

	opened, err := RestorePKey(openDir)
	if err != nil {
		t.Fatal(err)
	}
	if err := utils.TCheckBytes("SealPKey then OpenSKey", pKey.Bytes(), opened.Bytes()); err != nil {
		t.Fatal(err)
	}
}

func TestReNewSKey(t *testing.T) {
	oldDir := t.TempDir()
	newDir := t.TempDir()
	newPassword := "new_test_password"

	feedPassphrases(t,
		testPassword, testPassword, // NewSKey
		testPassword, newPassword, newPassword, // ReNewSKey
		newPassword, // RestoreSKey
	)

	oldKey, err := NewSKey(oldDir)
	if err != nil {
		t.Fatal(err)
	}
	if err := ReNewSKey(oldDir, newDir); err != nil {
		t.Fatal(err)
	}
	newKey, err := RestoreSKey(newDir)
	if err != nil {
		t.Fatal(err)
	}

	if err := utils.TCheckBytes("ReNewSKey", oldKey.Bytes(), newKey.Bytes()); err != nil {
		t.Fatal(err)
	}
}
