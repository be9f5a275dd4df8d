//go:build cgo

package coseadapter

import (
	"crypto/elliptic"
	"encoding/asn1"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/miekg/pkcs11"

	"github.com/qcose/qcose/pkg/cose"
)

// PKCS11Config identifies the module, token, and key a PKCS11Signer
// should use. Grounded on the reference repository's
// pkg/crypto/pkcs11.go PKCS11Config, narrowed to the EC-only, sign-only
// surface a COSE signer needs — no key generation, listing, or
// KEM/decrypt operations (those stay in the reference PKI, out of scope
// for SPEC_FULL.md's COSE engine).
type PKCS11Config struct {
	ModulePath  string
	TokenLabel  string
	TokenSerial string
	SlotID      *uint
	PIN         string
	KeyLabel    string
	KeyID       string
}

// PKCS11Signer implements cose.Signer by delegating the signing
// operation to a PKCS#11 HSM. Only ECDSA keys (ES256/384/512) are
// supported: COSE's raw R||S signature encoding is exactly what
// CKM_ECDSA already returns, so unlike the reference PKI's DER-output
// signer, no ASN.1 re-encoding step is needed.
type PKCS11Signer struct {
	ctx       *pkcs11.Ctx
	session   pkcs11.SessionHandle
	keyHandle pkcs11.ObjectHandle
	alg       cose.AlgorithmID
	curve     elliptic.Curve
	kid       []byte

	mu     sync.Mutex
	closed bool
}

// NewPKCS11Signer opens a dedicated session against cfg's token, logs
// in, and locates the signing key named by KeyLabel/KeyID. kid is the
// COSE key identifier to embed in the message header, independent of
// the PKCS#11 CKA_ID used to locate the key.
func NewPKCS11Signer(cfg PKCS11Config, kid []byte) (*PKCS11Signer, error) {
	if cfg.ModulePath == "" {
		return nil, fmt.Errorf("coseadapter: PKCS#11 module path is required")
	}
	if cfg.KeyLabel == "" && cfg.KeyID == "" {
		return nil, fmt.Errorf("coseadapter: at least one of key label or key ID is required")
	}

	ctx := pkcs11.New(cfg.ModulePath)
	if ctx == nil {
		return nil, fmt.Errorf("coseadapter: failed to load PKCS#11 module %s", cfg.ModulePath)
	}

	if err := ctx.Initialize(); err != nil {
		if p11err, ok := err.(pkcs11.Error); !ok || p11err != pkcs11.CKR_CRYPTOKI_ALREADY_INITIALIZED {
			ctx.Destroy()
			return nil, fmt.Errorf("coseadapter: initialize PKCS#11 module: %w", err)
		}
	}

	slotID, err := findSlot(ctx, cfg)
	if err != nil {
		ctx.Destroy()
		return nil, err
	}

	session, err := ctx.OpenSession(slotID, pkcs11.CKF_SERIAL_SESSION|pkcs11.CKF_RW_SESSION)
	if err != nil {
		ctx.Destroy()
		return nil, fmt.Errorf("coseadapter: open PKCS#11 session: %w", err)
	}

	if err := ctx.Login(session, pkcs11.CKU_USER, cfg.PIN); err != nil {
		ctx.CloseSession(session)
		ctx.Destroy()
		return nil, fmt.Errorf("coseadapter: PKCS#11 login: %w", err)
	}

	keyHandle, err := findECPrivateKey(ctx, session, cfg)
	if err != nil {
		ctx.Logout(session)
		ctx.CloseSession(session)
		ctx.Destroy()
		return nil, err
	}

	curve, alg, err := ecCurveForPrivateKey(ctx, session, keyHandle)
	if err != nil {
		ctx.Logout(session)
		ctx.CloseSession(session)
		ctx.Destroy()
		return nil, err
	}

	return &PKCS11Signer{
		ctx:       ctx,
		session:   session,
		keyHandle: keyHandle,
		alg:       alg,
		curve:     curve,
		kid:       kid,
	}, nil
}

func (s *PKCS11Signer) Algorithm() cose.AlgorithmID { return s.alg }

func (s *PKCS11Signer) HeaderCallback() *cose.ParameterList {
	p := cose.NewParameterList()
	p.MustAdd(cose.IntLabel(cose.LabelAlg), int64(s.alg), cose.Protected)
	if len(s.kid) > 0 {
		p.MustAdd(cose.IntLabel(cose.LabelKID), s.kid, cose.Unprotected)
	}
	return p
}

func (s *PKCS11Signer) SignCallback(bodyProtected, signProtected, aad, payload []byte) ([]byte, error) {
	context := "Signature1"
	if signProtected != nil {
		context = "Signature"
	}
	tbs, err := cose.BuildTBS(context, bodyProtected, signProtected, aad, payload)
	if err != nil {
		return nil, err
	}
	digest := cose.DigestTBS(s.alg, tbs)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, fmt.Errorf("coseadapter: PKCS#11 signer is closed")
	}

	mech := []*pkcs11.Mechanism{pkcs11.NewMechanism(pkcs11.CKM_ECDSA, nil)}
	if err := s.ctx.SignInit(s.session, mech, s.keyHandle); err != nil {
		return nil, fmt.Errorf("coseadapter: PKCS#11 sign init: %w", err)
	}

	sig, err := s.ctx.Sign(s.session, digest)
	if err != nil {
		return nil, fmt.Errorf("coseadapter: PKCS#11 sign: %w", err)
	}

	size := (s.curve.Params().BitSize + 7) / 8
	if len(sig) != 2*size {
		return nil, fmt.Errorf("coseadapter: HSM returned %d-byte signature, want %d", len(sig), 2*size)
	}
	return sig, nil
}

// Close logs out and releases the PKCS#11 session. Safe to call once
// after the signer is no longer needed.
func (s *PKCS11Signer) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	_ = s.ctx.Logout(s.session)
	_ = s.ctx.CloseSession(s.session)
	s.ctx.Destroy()
	return nil
}

func findSlot(ctx *pkcs11.Ctx, cfg PKCS11Config) (uint, error) {
	if cfg.SlotID != nil {
		return *cfg.SlotID, nil
	}

	slots, err := ctx.GetSlotList(true)
	if err != nil {
		return 0, fmt.Errorf("coseadapter: get PKCS#11 slot list: %w", err)
	}
	if len(slots) == 0 {
		return 0, fmt.Errorf("coseadapter: no PKCS#11 slots with tokens found")
	}

	for _, slot := range slots {
		info, err := ctx.GetTokenInfo(slot)
		if err != nil {
			continue
		}
		if cfg.TokenLabel != "" && info.Label == cfg.TokenLabel {
			return slot, nil
		}
		if cfg.TokenSerial != "" && info.SerialNumber == cfg.TokenSerial {
			return slot, nil
		}
	}

	if cfg.TokenLabel != "" {
		return 0, fmt.Errorf("coseadapter: token with label %q not found", cfg.TokenLabel)
	}
	if cfg.TokenSerial != "" {
		return 0, fmt.Errorf("coseadapter: token with serial %q not found", cfg.TokenSerial)
	}
	return slots[0], nil
}

func findECPrivateKey(ctx *pkcs11.Ctx, session pkcs11.SessionHandle, cfg PKCS11Config) (pkcs11.ObjectHandle, error) {
	template := []*pkcs11.Attribute{
		pkcs11.NewAttribute(pkcs11.CKA_CLASS, pkcs11.CKO_PRIVATE_KEY),
		pkcs11.NewAttribute(pkcs11.CKA_KEY_TYPE, pkcs11.CKK_EC),
	}
	if cfg.KeyLabel != "" {
		template = append(template, pkcs11.NewAttribute(pkcs11.CKA_LABEL, cfg.KeyLabel))
	}
	if cfg.KeyID != "" {
		id, err := hex.DecodeString(cfg.KeyID)
		if err != nil {
			return 0, fmt.Errorf("coseadapter: invalid key ID hex: %w", err)
		}
		template = append(template, pkcs11.NewAttribute(pkcs11.CKA_ID, id))
	}

	if err := ctx.FindObjectsInit(session, template); err != nil {
		return 0, fmt.Errorf("coseadapter: init PKCS#11 find objects: %w", err)
	}
	defer func() { _ = ctx.FindObjectsFinal(session) }()

	objs, _, err := ctx.FindObjects(session, 2)
	if err != nil {
		return 0, fmt.Errorf("coseadapter: PKCS#11 find objects: %w", err)
	}
	if len(objs) == 0 {
		return 0, fmt.Errorf("coseadapter: EC private key not found on token")
	}
	if len(objs) > 1 {
		return 0, fmt.Errorf("coseadapter: multiple matching keys found, specify both key label and key ID")
	}
	return objs[0], nil
}

// ecCurveForPrivateKey reads CKA_EC_PARAMS from the private key object
// to determine the curve, and maps it to the matching COSE algorithm.
func ecCurveForPrivateKey(ctx *pkcs11.Ctx, session pkcs11.SessionHandle, keyHandle pkcs11.ObjectHandle) (elliptic.Curve, cose.AlgorithmID, error) {
	attrs, err := ctx.GetAttributeValue(session, keyHandle, []*pkcs11.Attribute{
		pkcs11.NewAttribute(pkcs11.CKA_EC_PARAMS, nil),
	})
	if err != nil {
		return nil, 0, fmt.Errorf("coseadapter: read EC params from HSM key: %w", err)
	}

	var oid asn1.ObjectIdentifier
	if _, err := asn1.Unmarshal(attrs[0].Value, &oid); err != nil {
		return nil, 0, fmt.Errorf("coseadapter: parse EC params OID: %w", err)
	}

	switch {
	case oid.Equal(asn1.ObjectIdentifier{1, 2, 840, 10045, 3, 1, 7}):
		return elliptic.P256(), cose.AlgES256, nil
	case oid.Equal(asn1.ObjectIdentifier{1, 3, 132, 0, 34}):
		return elliptic.P384(), cose.AlgES384, nil
	case oid.Equal(asn1.ObjectIdentifier{1, 3, 132, 0, 35}):
		return elliptic.P521(), cose.AlgES512, nil
	default:
		return nil, 0, fmt.Errorf("coseadapter: unsupported HSM key curve OID %v", oid)
	}
}
