//go:build cgo

package coseadapter

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/miekg/pkcs11"

	"github.com/qcose/qcose/pkg/cose"
)

const (
	testTokenLabel = "cose-test-token"
	testTokenPIN   = "1234"
	testSOPIN      = "12345678"
)

// setupSoftHSM creates a temporary SoftHSM token, grounded on the
// reference repository's internal/crypto/pkcs11_test.go helper of the
// same name. Skips the test if softhsm2-util or its library are absent.
func setupSoftHSM(t *testing.T) (modulePath string) {
	t.Helper()

	if _, err := exec.LookPath("softhsm2-util"); err != nil {
		t.Skip("softhsm2-util not found, skipping PKCS#11 tests")
	}
	modulePath = findSoftHSMLib()
	if modulePath == "" {
		t.Skip("SoftHSM library not found, skipping PKCS#11 tests")
	}

	tokenDir := t.TempDir()
	tokensDir := filepath.Join(tokenDir, "tokens")
	if err := os.MkdirAll(tokensDir, 0700); err != nil {
		t.Fatalf("create token directory: %v", err)
	}
	configFile := filepath.Join(tokenDir, "softhsm2.conf")
	configContent := "directories.tokendir = " + tokensDir + "\nobjectstore.backend = file\nlog.level = ERROR\n"
	if err := os.WriteFile(configFile, []byte(configContent), 0600); err != nil {
		t.Fatalf("write SoftHSM config: %v", err)
	}
	t.Setenv("SOFTHSM2_CONF", configFile)

	cmd := exec.Command("softhsm2-util", "--init-token", "--free",
		"--label", testTokenLabel, "--pin", testTokenPIN, "--so-pin", testSOPIN)
	cmd.Env = append(os.Environ(), "SOFTHSM2_CONF="+configFile)
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("init SoftHSM token: %v\n%s", err, out)
	}
	return modulePath
}

func findSoftHSMLib() string {
	paths := []string{
		"/usr/local/lib/softhsm/libsofthsm2.so",
		"/usr/lib/softhsm/libsofthsm2.so",
		"/usr/lib64/softhsm/libsofthsm2.so",
		"/usr/lib/x86_64-linux-gnu/softhsm/libsofthsm2.so",
		"/opt/homebrew/lib/softhsm/libsofthsm2.so",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// generateTokenECKey generates a CKM_EC_KEY_PAIR_GEN P-256 key pair
// directly on the token under label, grounded on the reference
// repository's pkg/crypto/pkcs11.go generateECKeyPair.
func generateTokenECKey(t *testing.T, modulePath, label string) {
	t.Helper()
	ctx := pkcs11.New(modulePath)
	if ctx == nil || ctx.Initialize() != nil {
		t.Fatalf("initialize PKCS#11 module for key generation")
	}
	defer ctx.Destroy()

	slots, err := ctx.GetSlotList(true)
	if err != nil || len(slots) == 0 {
		t.Fatalf("get slot list: %v", err)
	}
	session, err := ctx.OpenSession(slots[0], pkcs11.CKF_SERIAL_SESSION|pkcs11.CKF_RW_SESSION)
	if err != nil {
		t.Fatalf("open session: %v", err)
	}
	defer ctx.CloseSession(session)
	if err := ctx.Login(session, pkcs11.CKU_USER, testTokenPIN); err != nil {
		t.Fatalf("login: %v", err)
	}
	defer ctx.Logout(session)

	p256OID := []byte{0x06, 0x08, 0x2A, 0x86, 0x48, 0xCE, 0x3D, 0x03, 0x01, 0x07}
	pubTemplate := []*pkcs11.Attribute{
		pkcs11.NewAttribute(pkcs11.CKA_CLASS, pkcs11.CKO_PUBLIC_KEY),
		pkcs11.NewAttribute(pkcs11.CKA_KEY_TYPE, pkcs11.CKK_EC),
		pkcs11.NewAttribute(pkcs11.CKA_TOKEN, true),
		pkcs11.NewAttribute(pkcs11.CKA_VERIFY, true),
		pkcs11.NewAttribute(pkcs11.CKA_EC_PARAMS, p256OID),
		pkcs11.NewAttribute(pkcs11.CKA_LABEL, label),
	}
	privTemplate := []*pkcs11.Attribute{
		pkcs11.NewAttribute(pkcs11.CKA_CLASS, pkcs11.CKO_PRIVATE_KEY),
		pkcs11.NewAttribute(pkcs11.CKA_KEY_TYPE, pkcs11.CKK_EC),
		pkcs11.NewAttribute(pkcs11.CKA_TOKEN, true),
		pkcs11.NewAttribute(pkcs11.CKA_PRIVATE, true),
		pkcs11.NewAttribute(pkcs11.CKA_SIGN, true),
		pkcs11.NewAttribute(pkcs11.CKA_LABEL, label),
	}
	mech := []*pkcs11.Mechanism{pkcs11.NewMechanism(pkcs11.CKM_EC_KEY_PAIR_GEN, nil)}
	if _, _, err := ctx.GenerateKeyPair(session, mech, pubTemplate, privTemplate); err != nil {
		t.Fatalf("generate EC key pair: %v", err)
	}
}

func TestPKCS11Signer_SignAndVerify(t *testing.T) {
	modulePath := setupSoftHSM(t)
	generateTokenECKey(t, modulePath, "cose-ec-signer")

	signer, err := NewPKCS11Signer(PKCS11Config{
		ModulePath: modulePath,
		TokenLabel: testTokenLabel,
		PIN:        testTokenPIN,
		KeyLabel:   "cose-ec-signer",
	}, []byte("hsm-kid"))
	if err != nil {
		t.Fatalf("NewPKCS11Signer: %v", err)
	}
	defer signer.Close()

	if signer.Algorithm() != cose.AlgES256 {
		t.Fatalf("Algorithm() = %v, want AlgES256", signer.Algorithm())
	}

	out, err := cose.Sign1([]byte("hsm-signed payload"), nil, signer, cose.Options{})
	if err != nil {
		t.Fatalf("Sign1: %v", err)
	}
	if len(out) == 0 {
		t.Fatal("Sign1 produced no output")
	}
}

func TestPKCS11Signer_MissingConfig(t *testing.T) {
	if _, err := NewPKCS11Signer(PKCS11Config{}, nil); err == nil {
		t.Fatal("expected NewPKCS11Signer to fail without a module path")
	}
}
