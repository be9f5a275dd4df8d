package main

import (
	"strings"
	"testing"
)

func TestVerifyCmd_ValidSign1Message(t *testing.T) {
	tc := newTestContext(t)
	keyPath, pubPath := tc.setupSigningPair()
	dataPath := tc.writeFile("doc.txt", "round trip payload")
	signedPath := tc.path("signed.cbor")

	if _, err := executeCommand(rootCmd, "sign", "--data", dataPath, "--key", keyPath, "--out", signedPath); err != nil {
		t.Fatalf("sign command failed: %v", err)
	}

	out, err := executeCommand(rootCmd, "verify", signedPath, "--key", pubPath)
	if err != nil {
		t.Fatalf("verify command failed: %v\noutput: %s", err, out)
	}
	if !strings.Contains(out, "VALID") {
		t.Fatalf("expected VALID in output, got: %s", out)
	}
}

func TestVerifyCmd_TamperedMessageFails(t *testing.T) {
	tc := newTestContext(t)
	keyPath, pubPath := tc.setupSigningPair()
	dataPath := tc.writeFile("doc.txt", "payload to tamper with")
	signedPath := tc.path("signed.cbor")

	if _, err := executeCommand(rootCmd, "sign", "--data", dataPath, "--key", keyPath, "--out", signedPath); err != nil {
		t.Fatalf("sign command failed: %v", err)
	}

	if _, err := readAndFlip(signedPath); err != nil {
		t.Fatalf("tamper with signed message: %v", err)
	}

	if _, err := executeCommand(rootCmd, "verify", signedPath, "--key", pubPath); err == nil {
		t.Fatal("expected verify to fail for a tampered message")
	}
}

func TestVerifyCmd_DetachedPayloadRequiresData(t *testing.T) {
	tc := newTestContext(t)
	keyPath, pubPath := tc.setupSigningPair()
	dataPath := tc.writeFile("doc.txt", "detached verify payload")
	signedPath := tc.path("signed.sig.cbor")

	if _, err := executeCommand(rootCmd, "sign", "--data", dataPath, "--key", keyPath, "--detached", "--out", signedPath); err != nil {
		t.Fatalf("sign command failed: %v", err)
	}

	if _, err := executeCommand(rootCmd, "verify", signedPath, "--key", pubPath); err == nil {
		t.Fatal("expected verify without --data to fail for a detached signature")
	}

	out, err := executeCommand(rootCmd, "verify", signedPath, "--key", pubPath, "--data", dataPath)
	if err != nil {
		t.Fatalf("verify command failed: %v\noutput: %s", err, out)
	}
	if !strings.Contains(out, "VALID") {
		t.Fatalf("expected VALID in output, got: %s", out)
	}
}

func TestVerifyCmd_WrongKeyFails(t *testing.T) {
	tc := newTestContext(t)
	keyPath, _ := tc.setupSigningPair()
	_, otherPub := tc.setupSigningPair()
	dataPath := tc.writeFile("doc.txt", "signed with one key, checked with another")
	signedPath := tc.path("signed.cbor")

	if _, err := executeCommand(rootCmd, "sign", "--data", dataPath, "--key", keyPath, "--out", signedPath); err != nil {
		t.Fatalf("sign command failed: %v", err)
	}

	if _, err := executeCommand(rootCmd, "verify", signedPath, "--key", otherPub); err == nil {
		t.Fatal("expected verify to fail against an unrelated public key")
	}
}
