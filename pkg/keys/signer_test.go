package keys

import (
	"path/filepath"
	"testing"
)

func TestSignVerify(t *testing.T) {
	w, err := Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	msg := []byte("place_order:1001")
	sig, err := w.Sign(msg)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	if !Verify(w.Identity(), msg, sig) {
		t.Fatal("valid signature rejected")
	}
	if Verify(w.Identity(), []byte("tampered"), sig) {
		t.Fatal("signature verified against wrong message")
	}

	other, _ := Generate()
	if Verify(other.Identity(), msg, sig) {
		t.Fatal("signature verified against wrong identity")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	w, err := Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	path := filepath.Join(t.TempDir(), "id.key")
	if err := w.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Identity() != w.Identity() {
		t.Fatalf("identity changed across save/load: %s != %s", loaded.Identity(), w.Identity())
	}

	// Loaded key must produce signatures the original identity accepts.
	sig, _ := loaded.Sign([]byte("hello"))
	if !Verify(w.Identity(), []byte("hello"), sig) {
		t.Fatal("loaded key signature rejected")
	}
}
