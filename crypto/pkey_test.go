package crypto

import (
	"testing"

	"github.com/996BC/996.Gossip/utils"
)

func TestNewPKey(t *testing.T) {
	dir := t.TempDir()

	if _, err := NewPKey(dir); err != nil {
		t.Fatal(err)
	}

	// refuse to overwrite
	if _, err := NewPKey(dir); err == nil {
		t.Fatal("expect existing key file error")
	}
}

func TestRestorePKey(t *testing.T) {
	dir := t.TempDir()

	generated, err := NewPKey(dir)
	if err != nil {
		t.Fatal(err)
	}

	restored, err := RestorePKey(dir)
	if err != nil {
		t.Fatal(err)
	}

	if err := utils.TCheckBytes("restored pKey", generated.Bytes(), restored.Bytes()); err != nil {
		t.Fatal(err)
	}

	byType, err := RestoreKey(PlainKeyType, dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := utils.TCheckBytes("restored by type", generated.Bytes(), byType.Bytes()); err != nil {
		t.Fatal(err)
	}

	if _, err := RestoreKey(3, dir); err == nil {
		t.Fatal("expect unknown key type error")
	}
}
