package audit

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestInitFile_EmptyPathDisables(t *testing.T) {
	t.Cleanup(func() { _ = Close() })

	if err := InitFile(""); err != nil {
		t.Fatalf("InitFile(\"\") error = %v", err)
	}
	if Enabled() {
		t.Error("audit logging should be disabled when no path is given")
	}
	if err := LogSign("COSE_Sign1", "ES256", "", "", false, true); err != nil {
		t.Errorf("Log should succeed against NopWriter: %v", err)
	}
}

func TestInitFile_WritesEvents(t *testing.T) {
	t.Cleanup(func() { _ = Close() })

	dir := t.TempDir()
	path := filepath.Join(dir, "audit.jsonl")

	if err := InitFile(path); err != nil {
		t.Fatalf("InitFile() error = %v", err)
	}
	if !Enabled() {
		t.Error("audit logging should be enabled")
	}

	if err := LogSign("COSE_Sign1", "ES256", "deadbeef", "out.cbor", false, true); err != nil {
		t.Fatalf("LogSign() error = %v", err)
	}
	if err := LogVerify("COSE_Sign1", "ES256", "deadbeef", "in.cbor", false, false, "signature mismatch"); err != nil {
		t.Fatalf("LogVerify() error = %v", err)
	}
	if err := LogKeyAccessed("signer.pem", true, ""); err != nil {
		t.Fatalf("LogKeyAccessed() error = %v", err)
	}
	if err := LogAuthFailed("hsm:slot0", "PIN rejected"); err != nil {
		t.Fatalf("LogAuthFailed() error = %v", err)
	}

	if err := Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	count, err := VerifyChain(path)
	if err != nil {
		t.Fatalf("VerifyChain() error = %v", err)
	}
	if count != 4 {
		t.Errorf("VerifyChain() count = %d, want 4", count)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}

	lines := splitNonEmptyLines(string(data))
	if len(lines) != 4 {
		t.Fatalf("expected 4 JSONL lines, got %d", len(lines))
	}

	var first Event
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("failed to parse first event: %v", err)
	}
	if first.EventType != EventCOSESign {
		t.Errorf("first event type = %s, want %s", first.EventType, EventCOSESign)
	}
	if first.HashPrev != GenesisHash {
		t.Errorf("first event hash_prev = %s, want %s", first.HashPrev, GenesisHash)
	}

	var second Event
	if err := json.Unmarshal([]byte(lines[1]), &second); err != nil {
		t.Fatalf("failed to parse second event: %v", err)
	}
	if second.Result != ResultFailure {
		t.Errorf("second event result = %s, want %s", second.Result, ResultFailure)
	}
	if second.HashPrev != first.Hash {
		t.Error("hash chain broken between first and second event")
	}
}

func TestFileWriter_ResumesChainAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "audit.jsonl")

	w1, err := NewFileWriter(path)
	if err != nil {
		t.Fatalf("NewFileWriter() error = %v", err)
	}
	if err := w1.Write(NewEvent(EventCOSESign, ResultSuccess)); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	lastHash := w1.LastHash()
	if err := w1.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	w2, err := NewFileWriter(path)
	if err != nil {
		t.Fatalf("reopen NewFileWriter() error = %v", err)
	}
	if w2.LastHash() != lastHash {
		t.Errorf("reopened writer LastHash() = %s, want %s", w2.LastHash(), lastHash)
	}
	if err := w2.Write(NewEvent(EventCOSEVerify, ResultSuccess)); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := w2.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	count, err := VerifyChain(path)
	if err != nil {
		t.Fatalf("VerifyChain() error = %v", err)
	}
	if count != 2 {
		t.Errorf("VerifyChain() count = %d, want 2", count)
	}
}

func TestVerifyChain_DetectsTamper(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "audit.jsonl")

	w, err := NewFileWriter(path)
	if err != nil {
		t.Fatalf("NewFileWriter() error = %v", err)
	}
	if err := w.Write(NewEvent(EventCOSESign, ResultSuccess)); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := w.Write(NewEvent(EventCOSEVerify, ResultSuccess)); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	tampered := strings.Replace(string(data), string(EventCOSEVerify), string(EventKeyAccessed), 1)
	if err := os.WriteFile(path, []byte(tampered), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	if _, err := VerifyChain(path); err == nil {
		t.Error("expected VerifyChain to detect tampering")
	}
}

func TestVerifyChain_EmptyFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.jsonl")
	if err := os.WriteFile(path, nil, 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	count, err := VerifyChain(path)
	if err != nil {
		t.Fatalf("VerifyChain() error = %v", err)
	}
	if count != 0 {
		t.Errorf("VerifyChain() count = %d, want 0", count)
	}
}

func splitNonEmptyLines(s string) []string {
	var lines []string
	scanner := bufio.NewScanner(strings.NewReader(s))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
