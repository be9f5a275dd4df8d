package main

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// executeCommand executes a Cobra command with the given args and
// returns its combined output, grounded on the reference repository's
// cmd/qpki/testhelper_test.go helper of the same name. root is a
// shared singleton across the whole test binary, so its flag package
// vars are reset to their zero values first; otherwise a repeatable
// flag like --key would keep appending onto values a previous test
// left behind, since pflag's stringArrayValue only resets on a fresh
// Flag object, not a fresh Execute call.
func executeCommand(root *cobra.Command, args ...string) (output string, err error) {
	resetCLIFlags()
	for _, sub := range root.Commands() {
		sub.Flags().VisitAll(func(f *pflag.Flag) { f.Changed = false })
	}

	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)

	err = root.Execute()
	return buf.String(), err
}

// resetCLIFlags restores every sign, verify and root flag package
// variable to its zero value between test invocations of the shared
// rootCmd. The serve flags are not reset.
func resetCLIFlags() {
	signData, signKeys, signAlg, signKID, signOut = "", nil, "", "", ""
	signDetached, signOmitTag, signHSMConfig, signSizeOnly = false, false, "", false
	verifyKeys, verifyAlg, verifyData, verifyRequireAll, verifyStrict = nil, "", "", false, false
	auditLogPath = ""
}

// testContext holds test resources.
type testContext struct {
	t         *testing.T
	tempDir   string
	signerSeq int
}

// newTestContext creates a new test context with a temp directory.
func newTestContext(t *testing.T) *testContext {
	t.Helper()
	dir, err := os.MkdirTemp("", "cosectl-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp directory: %v", err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(dir) })
	return &testContext{t: t, tempDir: dir}
}

// path returns a path within the temp directory.
func (tc *testContext) path(name string) string {
	return filepath.Join(tc.tempDir, name)
}

// writeFile writes content to a file in the temp directory.
func (tc *testContext) writeFile(name, content string) string {
	tc.t.Helper()
	path := tc.path(name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		tc.t.Fatalf("Failed to write file: %v", err)
	}
	return path
}

// generateECDSAKeyPair generates a P-256 key pair.
func generateECDSAKeyPair(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("Failed to generate ECDSA key: %v", err)
	}
	return priv
}

// writeECKeyPEM writes an EC private key to a SEC1 PEM file.
func (tc *testContext) writeECKeyPEM(name string, key *ecdsa.PrivateKey) string {
	tc.t.Helper()
	path := tc.path(name)
	der, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		tc.t.Fatalf("Failed to marshal EC key: %v", err)
	}
	pemData := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: der})
	if err := os.WriteFile(path, pemData, 0600); err != nil {
		tc.t.Fatalf("Failed to write EC key: %v", err)
	}
	return path
}

// writeECPubPEM writes an EC public key to a PEM file.
func (tc *testContext) writeECPubPEM(name string, key *ecdsa.PrivateKey) string {
	tc.t.Helper()
	path := tc.path(name)
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		tc.t.Fatalf("Failed to marshal EC public key: %v", err)
	}
	pemData := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})
	if err := os.WriteFile(path, pemData, 0644); err != nil {
		tc.t.Fatalf("Failed to write EC public key: %v", err)
	}
	return path
}

// setupSigningPair creates an EC key pair, writing both halves to PEM
// files under the test context's temp directory. Repeat calls use a
// distinct name prefix so unrelated key pairs don't collide on disk.
func (tc *testContext) setupSigningPair() (keyPath, pubPath string) {
	tc.t.Helper()
	tc.signerSeq++
	priv := generateECDSAKeyPair(tc.t)
	prefix := "signer"
	if tc.signerSeq > 1 {
		prefix = filepath.Join("extra", fmt.Sprintf("signer%d", tc.signerSeq))
		if err := os.MkdirAll(tc.path("extra"), 0700); err != nil {
			tc.t.Fatalf("Failed to create extra key directory: %v", err)
		}
	}
	keyPath = tc.writeECKeyPEM(prefix+".key", priv)
	pubPath = tc.writeECPubPEM(prefix+".pub", priv)
	return keyPath, pubPath
}

// readAndFlip flips the final byte of the file at path in place,
// simulating signature/payload corruption for negative test cases.
func readAndFlip(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	data[len(data)-1] ^= 0xFF
	return data, os.WriteFile(path, data, 0644)
}
