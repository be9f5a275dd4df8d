package main

import (
	"strings"
	"testing"
)

func TestInfoCmd_Sign1Message(t *testing.T) {
	tc := newTestContext(t)
	keyPath, _ := tc.setupSigningPair()
	dataPath := tc.writeFile("doc.txt", "info command payload")
	signedPath := tc.path("signed.cbor")

	if _, err := executeCommand(rootCmd, "sign", "--data", dataPath, "--key", keyPath, "--out", signedPath); err != nil {
		t.Fatalf("sign command failed: %v", err)
	}

	out, err := executeCommand(rootCmd, "info", signedPath)
	if err != nil {
		t.Fatalf("info command failed: %v\noutput: %s", err, out)
	}
	if !strings.Contains(out, "COSE_Sign1") {
		t.Fatalf("expected output to mention COSE_Sign1, got: %s", out)
	}
	if !strings.Contains(out, "Algorithm: ES256") {
		t.Fatalf("expected output to report ES256, got: %s", out)
	}
}

func TestInfoCmd_SignMultiMessage(t *testing.T) {
	tc := newTestContext(t)
	keyA, _ := tc.setupSigningPair()
	keyB, _ := tc.setupSigningPair()
	dataPath := tc.writeFile("doc.txt", "multi-signer info payload")
	signedPath := tc.path("signed.cbor")

	if _, err := executeCommand(rootCmd, "sign", "--data", dataPath, "--key", keyA, "--key", keyB, "--out", signedPath); err != nil {
		t.Fatalf("sign command failed: %v", err)
	}

	out, err := executeCommand(rootCmd, "info", signedPath)
	if err != nil {
		t.Fatalf("info command failed: %v\noutput: %s", err, out)
	}
	if !strings.Contains(out, "COSE_Sign") {
		t.Fatalf("expected output to mention COSE_Sign, got: %s", out)
	}
	if !strings.Contains(out, "Signers: 2") {
		t.Fatalf("expected output to report 2 signers, got: %s", out)
	}
}

func TestInfoCmd_MissingFileFails(t *testing.T) {
	tc := newTestContext(t)
	if _, err := executeCommand(rootCmd, "info", tc.path("does-not-exist.cbor")); err == nil {
		t.Fatal("expected info to fail for a missing message file")
	}
}
