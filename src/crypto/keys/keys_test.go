package keys

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestSimpleKeyfile(t *testing.T) {
	dir := t.TempDir()

	simpleKeyfile := NewSimpleKeyfile(filepath.Join(dir, "keys", "priv_key"))

	// Try a read, should get nothing
	key, err := simpleKeyfile.ReadKey()
	if err == nil {
		t.Fatalf("ReadKey should generate an error")
	}
	if key != nil {
		t.Fatalf("key is not nil")
	}

	key, _ = GenerateECDSAKey()

	if err := simpleKeyfile.WriteKey(key); err != nil {
		t.Fatalf("err: %v", err)
	}

	nKey, err := simpleKeyfile.ReadKey()
	if err != nil {
		t.Fatalf("err: %v", err)
	}

	if !reflect.DeepEqual(nKey.D, key.D) || nKey.X.Cmp(key.X) != 0 || nKey.Y.Cmp(key.Y) != 0 {
		t.Fatalf("Keys do not match")
	}
}

func TestFilePermissions(t *testing.T) {
	dir := t.TempDir()

	key, _ := GenerateECDSAKey()
	rawKey := PrivateKeyHex(key)

	badKeyPath := filepath.Join(dir, "priv_key_bad")

	for _, fm := range []os.FileMode{0777, 0766, 0744, 0644, 0640, 0604} {
		os.WriteFile(badKeyPath, []byte(rawKey), 0600)
		os.Chmod(badKeyPath, fm)

		if _, err := NewSimpleKeyfile(badKeyPath).ReadKey(); err == nil {
			t.Fatalf("%o || ReadKey should return a permissions error", fm)
		}
	}

	goodKeyPath := filepath.Join(dir, "priv_key_good")

	for _, fm := range []os.FileMode{0700, 0600, 0400} {
		os.WriteFile(goodKeyPath, []byte(rawKey), 0600)
		os.Chmod(goodKeyPath, fm)

		if _, err := NewSimpleKeyfile(goodKeyPath).ReadKey(); err != nil {
			t.Fatalf("%o || ReadKey should not return an error. Got %v", fm, err)
		}
	}
}

func TestLoadOrGenerate(t *testing.T) {
	keyfile := NewSimpleKeyfile(filepath.Join(t.TempDir(), "priv_key"))

	first, created, err := keyfile.LoadOrGenerate()
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if !created {
		t.Fatalf("first call should create the key")
	}

	second, created, err := keyfile.LoadOrGenerate()
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if created {
		t.Fatalf("second call should load the existing key")
	}
	if PrivateKeyHex(first) != PrivateKeyHex(second) {
		t.Fatalf("loaded key differs from generated key")
	}
}

func TestPublicKeyHex(t *testing.T) {
	key, _ := GenerateECDSAKey()

	s := PublicKeyHex(&key.PublicKey)
	if s[:2] != "0X" {
		t.Fatalf("expected 0X prefix, got %s", s)
	}

	pub, err := ParsePublicKeyHex(s)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if pub.X.Cmp(key.X) != 0 || pub.Y.Cmp(key.Y) != 0 {
		t.Fatalf("public keys do not match")
	}

	if _, err := ParsePublicKeyHex("0X0102"); err == nil {
		t.Fatalf("expected an error for garbage bytes")
	}
}

func TestParsePrivateKeyBounds(t *testing.T) {
	if _, err := ParsePrivateKey(make([]byte, 32)); err == nil {
		t.Fatalf("zero key should be rejected")
	}
	if _, err := ParsePrivateKey(make([]byte, 16)); err == nil {
		t.Fatalf("short key should be rejected")
	}
	if _, err := ParsePrivateKey(secp256k1N.Bytes()); err == nil {
		t.Fatalf("key equal to N should be rejected")
	}
}
