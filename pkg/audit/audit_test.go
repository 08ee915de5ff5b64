package audit

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func testKey() []byte {
	return bytes.Repeat([]byte{0x42}, 32)
}

func TestLogAndVerify(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	l := NewLogger(path)
	if err := l.SetKey(testKey()); err != nil {
		t.Fatalf("SetKey() error = %v", err)
	}

	ops := []string{OpVaultUnlock, OpCredentialAdd, OpCredentialDelete, OpVaultLock}
	for _, op := range ops {
		if err := l.Log(op, ResultSuccess, ""); err != nil {
			t.Fatalf("Log(%s) error = %v", op, err)
		}
	}

	if err := l.Verify(); err != nil {
		t.Errorf("Verify() error = %v", err)
	}
}

func TestLogWithoutKeyIsNoop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	l := NewLogger(path)

	if err := l.Log(OpVaultUnlock, ResultSuccess, ""); err != nil {
		t.Fatalf("Log() error = %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("expected no log file without a key")
	}
}

func TestChainResumesAcrossLoggers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")

	l1 := NewLogger(path)
	if err := l1.SetKey(testKey()); err != nil {
		t.Fatalf("SetKey() error = %v", err)
	}
	if err := l1.Log(OpVaultInit, ResultSuccess, ""); err != nil {
		t.Fatalf("Log() error = %v", err)
	}
	l1.ClearKey()

	// A fresh logger must pick up the chain where the last one stopped.
	l2 := NewLogger(path)
	if err := l2.SetKey(testKey()); err != nil {
		t.Fatalf("SetKey() error = %v", err)
	}
	if err := l2.Log(OpVaultUnlock, ResultSuccess, ""); err != nil {
		t.Fatalf("Log() error = %v", err)
	}
	if err := l2.Verify(); err != nil {
		t.Errorf("Verify() error = %v", err)
	}
}

func TestVerifyDetectsTampering(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	l := NewLogger(path)
	if err := l.SetKey(testKey()); err != nil {
		t.Fatalf("SetKey() error = %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := l.Log(OpCredentialAdd, ResultSuccess, "svc"); err != nil {
			t.Fatalf("Log() error = %v", err)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	tampered := bytes.Replace(data, []byte(`"detail":"svc"`), []byte(`"detail":"evil"`), 1)
	if bytes.Equal(data, tampered) {
		t.Fatal("tampering had no effect")
	}
	if err := os.WriteFile(path, tampered, 0600); err != nil {
		t.Fatal(err)
	}

	if err := l.Verify(); err == nil {
		t.Error("Verify() passed on a tampered log")
	}
}

func TestVerifyDetectsDeletedRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	l := NewLogger(path)
	if err := l.SetKey(testKey()); err != nil {
		t.Fatalf("SetKey() error = %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := l.Log(OpCredentialAdd, ResultSuccess, ""); err != nil {
			t.Fatalf("Log() error = %v", err)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := bytes.SplitAfter(data, []byte("\n"))
	// Drop the middle record.
	trimmed := append(append([]byte{}, lines[0]...), lines[2]...)
	if err := os.WriteFile(path, trimmed, 0600); err != nil {
		t.Fatal(err)
	}

	if err := l.Verify(); err == nil {
		t.Error("Verify() passed after a record was removed")
	}
}

func TestVerifyWrongKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	l := NewLogger(path)
	if err := l.SetKey(testKey()); err != nil {
		t.Fatalf("SetKey() error = %v", err)
	}
	if err := l.Log(OpVaultUnlock, ResultSuccess, ""); err != nil {
		t.Fatalf("Log() error = %v", err)
	}

	other := NewLogger(path)
	if err := other.SetKey(bytes.Repeat([]byte{0x99}, 32)); err != nil {
		t.Fatalf("SetKey() error = %v", err)
	}
	if err := other.Verify(); err == nil {
		t.Error("Verify() passed with the wrong key")
	}
}
