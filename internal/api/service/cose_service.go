// Package service provides business logic for the REST API.
package service

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"path/filepath"

	"github.com/fxamacker/cbor/v2"

	"github.com/qcose/qcose/internal/api/dto"
	pkgaudit "github.com/qcose/qcose/pkg/audit"
	"github.com/qcose/qcose/pkg/cose"
	"github.com/qcose/qcose/pkg/coseadapter"
)

// COSEService provides COSE sign/verify/info operations for the demo
// REST API (SPEC_FULL.md §6). Keys are read from PEM files on disk;
// there is no credential store or certificate-chain trust evaluation,
// per the core spec's Non-goals.
type COSEService struct {
	keyDir string
}

// NewCOSEService creates a new COSEService. keyDir, if non-empty,
// relative key_path/key_paths entries are resolved against it.
func NewCOSEService(keyDir string) *COSEService {
	return &COSEService{keyDir: keyDir}
}

func (s *COSEService) resolvePath(p string) string {
	if p == "" || filepath.IsAbs(p) || s.keyDir == "" {
		return p
	}
	return filepath.Join(s.keyDir, p)
}

// Sign handles POST /api/v1/cose/sign.
func (s *COSEService) Sign(ctx context.Context, req *dto.COSESignRequest) (*dto.COSESignResponse, error) {
	payload, err := req.Payload.Decode()
	if err != nil {
		return nil, fmt.Errorf("cose: invalid payload encoding: %w", err)
	}

	opts := cose.Options{DetachedPayload: req.Detached}
	body, err := headersFromRequest(req.Protected, req.Unprotected)
	if err != nil {
		return nil, err
	}

	if req.MultiSign {
		return s.signMulti(payload, body, req, opts)
	}
	return s.sign1(payload, body, req, opts)
}

func (s *COSEService) sign1(payload []byte, body *cose.ParameterList, req *dto.COSESignRequest, opts cose.Options) (*dto.COSESignResponse, error) {
	if req.KeyPath == "" {
		return nil, fmt.Errorf("cose: key_path is required")
	}

	signer, alg, err := s.loadSigner(req.KeyPath, req.Algorithm, req.KeyID)
	if err != nil {
		_ = pkgaudit.LogKeyAccessed(req.KeyPath, false, err.Error())
		return nil, err
	}
	_ = pkgaudit.LogKeyAccessed(req.KeyPath, true, "")

	out, err := cose.Sign1(payload, body, signer, opts)
	success := err == nil
	_ = pkgaudit.LogSign("COSE_Sign1", cose.AlgorithmName(alg), req.KeyID, "", req.Detached, success)
	if err != nil {
		return nil, err
	}

	return &dto.COSESignResponse{
		Message:   dto.BinaryData{Data: encodeBase64(out), Encoding: "base64"},
		Algorithm: dto.AlgorithmInfo{ID: int64(alg), Name: cose.AlgorithmName(alg), PQC: cose.IsPQC(alg)},
		Type:      "COSE_Sign1",
	}, nil
}

func (s *COSEService) signMulti(payload []byte, body *cose.ParameterList, req *dto.COSESignRequest, opts cose.Options) (*dto.COSESignResponse, error) {
	if len(req.KeyPaths) == 0 {
		return nil, fmt.Errorf("cose: key_paths is required for multi_sign")
	}

	signers := make([]cose.Signer, 0, len(req.KeyPaths))
	var firstAlg cose.AlgorithmID
	for i, path := range req.KeyPaths {
		signer, alg, err := s.loadSigner(path, req.Algorithm, "")
		if err != nil {
			_ = pkgaudit.LogKeyAccessed(path, false, err.Error())
			return nil, err
		}
		_ = pkgaudit.LogKeyAccessed(path, true, "")
		if i == 0 {
			firstAlg = alg
		}
		signers = append(signers, signer)
	}

	out, err := cose.SignMulti(payload, body, signers, opts)
	success := err == nil
	_ = pkgaudit.LogSign("COSE_Sign", cose.AlgorithmName(firstAlg), "", "", req.Detached, success)
	if err != nil {
		return nil, err
	}

	return &dto.COSESignResponse{
		Message:   dto.BinaryData{Data: encodeBase64(out), Encoding: "base64"},
		Algorithm: dto.AlgorithmInfo{ID: int64(firstAlg), Name: cose.AlgorithmName(firstAlg), PQC: cose.IsPQC(firstAlg)},
		Type:      "COSE_Sign",
	}, nil
}

// loadSigner reads the private key at path and builds a cose.Signer.
// algName is required for RSA keys (which support multiple PS*
// algorithms) and optional for EC/Ed25519 keys, whose algorithm the
// curve/key type determines uniquely.
func (s *COSEService) loadSigner(path, algName, kidHex string) (cose.Signer, cose.AlgorithmID, error) {
	key, err := coseadapter.LoadPrivateKeyFile(s.resolvePath(path))
	if err != nil {
		return nil, 0, err
	}

	alg, err := resolveAlgorithm(algName, key.Public())
	if err != nil {
		return nil, 0, err
	}

	var kid []byte
	if kidHex != "" {
		kid, err = hex.DecodeString(kidHex)
		if err != nil {
			return nil, 0, fmt.Errorf("cose: invalid kid hex: %w", err)
		}
	}

	signer, err := coseadapter.NewStandardSigner(alg, key, kid)
	if err != nil {
		return nil, 0, err
	}
	return signer, alg, nil
}

func resolveAlgorithm(algName string, pub any) (cose.AlgorithmID, error) {
	if algName != "" {
		return coseadapter.ParseAlgorithmName(algName)
	}
	return coseadapter.AlgorithmForKey(pub)
}

// Verify handles POST /api/v1/cose/verify.
func (s *COSEService) Verify(ctx context.Context, req *dto.COSEVerifyRequest) (*dto.COSEVerifyResponse, error) {
	data, err := req.Message.Decode()
	if err != nil {
		return nil, fmt.Errorf("cose: invalid message encoding: %w", err)
	}
	if len(req.KeyPaths) == 0 {
		return nil, fmt.Errorf("cose: key_paths is required")
	}

	var detached []byte
	if req.Payload != nil {
		detached, err = req.Payload.Decode()
		if err != nil {
			return nil, fmt.Errorf("cose: invalid detached payload encoding: %w", err)
		}
	}

	verifiers := make([]cose.Verifier, 0, len(req.KeyPaths))
	for _, path := range req.KeyPaths {
		pub, err := coseadapter.LoadPublicKeyFile(s.resolvePath(path))
		if err != nil {
			return nil, err
		}
		for _, alg := range candidateAlgorithms(pub) {
			v, err := coseadapter.NewStandardVerifier(alg, pub, nil)
			if err != nil {
				continue
			}
			verifiers = append(verifiers, v)
		}
	}
	if len(verifiers) == 0 {
		return nil, fmt.Errorf("cose: no usable verifier key in key_paths")
	}

	opts := cose.Options{RequireAllSignaturesValid: req.RequireAllSignatures, StrictMode: req.StrictMode}

	msgType, tagged, err := peekMessageType(data)
	if err != nil {
		return &dto.COSEVerifyResponse{Valid: false, Error: err.Error()}, nil
	}
	if !tagged {
		opts.TagPolicy = cose.TagOptional
	}

	switch msgType {
	case "COSE_Sign1":
		return s.verify1(data, verifiers, detached, opts)
	default:
		return s.verifyMulti(data, verifiers, detached, opts)
	}
}

func (s *COSEService) verify1(data []byte, verifiers []cose.Verifier, detached []byte, opts cose.Options) (*dto.COSEVerifyResponse, error) {
	msg, err := cose.Verify1(data, verifiers, detached, opts)
	if err != nil {
		_ = pkgaudit.LogVerify("COSE_Sign1", "", "", "", detached != nil, false, err.Error())
		return &dto.COSEVerifyResponse{Valid: false, Error: err.Error(), Type: "COSE_Sign1"}, nil
	}

	alg, _ := msg.Headers.Alg()
	kidHex := kidHexFromHeaders(msg.Headers)
	_ = pkgaudit.LogVerify("COSE_Sign1", cose.AlgorithmName(alg), kidHex, "", detached != nil, true, "")

	return &dto.COSEVerifyResponse{
		Valid:   true,
		Type:    "COSE_Sign1",
		Payload: &dto.BinaryData{Data: encodeBase64(msg.Payload), Encoding: "base64"},
		Signers: []dto.COSESignerInfo{{
			Algorithm:     int64(alg),
			AlgorithmName: cose.AlgorithmName(alg),
			KeyID:         kidHex,
		}},
		Warnings: msg.Warnings,
	}, nil
}

func (s *COSEService) verifyMulti(data []byte, verifiers []cose.Verifier, detached []byte, opts cose.Options) (*dto.COSEVerifyResponse, error) {
	msg, err := cose.VerifyMulti(data, verifiers, detached, opts)
	if err != nil {
		_ = pkgaudit.LogVerify("COSE_Sign", "", "", "", detached != nil, false, err.Error())
		return &dto.COSEVerifyResponse{Valid: false, Error: err.Error(), Type: "COSE_Sign"}, nil
	}

	signers := make([]dto.COSESignerInfo, 0, len(msg.Signatures))
	for _, sig := range msg.Signatures {
		alg, _ := sig.Headers.Alg()
		signers = append(signers, dto.COSESignerInfo{
			Algorithm:     int64(alg),
			AlgorithmName: cose.AlgorithmName(alg),
			KeyID:         kidHexFromHeaders(sig.Headers),
		})
	}
	_ = pkgaudit.LogVerify("COSE_Sign", "", "", "", detached != nil, true, "")

	return &dto.COSEVerifyResponse{
		Valid:    true,
		Type:     "COSE_Sign",
		Payload:  &dto.BinaryData{Data: encodeBase64(msg.Payload), Encoding: "base64"},
		Signers:  signers,
		Warnings: msg.Warnings,
	}, nil
}

// Info handles POST /api/v1/cose/info. It decodes headers and
// structure without evaluating any signature, using a pass-through
// verifier that accepts everything and skips the cryptographic check.
func (s *COSEService) Info(ctx context.Context, req *dto.COSEInfoRequest) (*dto.COSEInfoResponse, error) {
	data, err := req.Data.Decode()
	if err != nil {
		return nil, fmt.Errorf("cose: invalid data encoding: %w", err)
	}

	msgType, _, err := peekMessageType(data)
	if err != nil {
		return nil, err
	}

	opts := cose.Options{DecodeOnly: true, TagPolicy: cose.TagOptional}
	verifiers := []cose.Verifier{passthroughVerifier{}}

	if msgType == "COSE_Sign1" {
		msg, err := cose.Verify1(data, verifiers, []byte{}, opts)
		if err != nil {
			return nil, err
		}
		alg, _ := msg.Headers.Alg()
		return &dto.COSEInfoResponse{
			Type:        "COSE_Sign1",
			PayloadSize: len(msg.Payload),
			HasPayload:  !msg.Detached,
			Signers: []dto.COSESignerInfo{{
				Algorithm:     int64(alg),
				AlgorithmName: cose.AlgorithmName(alg),
				KeyID:         kidHexFromHeaders(msg.Headers),
			}},
		}, nil
	}

	msg, err := cose.VerifyMulti(data, verifiers, []byte{}, opts)
	if err != nil {
		return nil, err
	}
	signers := make([]dto.COSESignerInfo, 0, len(msg.Signatures))
	for _, sig := range msg.Signatures {
		alg, _ := sig.Headers.Alg()
		signers = append(signers, dto.COSESignerInfo{
			Algorithm:     int64(alg),
			AlgorithmName: cose.AlgorithmName(alg),
			KeyID:         kidHexFromHeaders(sig.Headers),
		})
	}
	return &dto.COSEInfoResponse{
		Type:        "COSE_Sign",
		PayloadSize: len(msg.Payload),
		HasPayload:  !msg.Detached,
		Signers:     signers,
	}, nil
}

// passthroughVerifier accepts every algorithm/kid and never fails the
// cryptographic check; used only with Options.DecodeOnly for the Info
// endpoint, which inspects structure and headers but never verifies.
type passthroughVerifier struct{}

func (passthroughVerifier) Accepts(cose.AlgorithmID, []byte) bool { return true }
func (passthroughVerifier) Verify1(_, _, _, _ []byte, _ bool) error { return nil }
func (passthroughVerifier) VerifySignature(_, _, _, _, _ []byte, _ bool) error { return nil }

func kidHexFromHeaders(headers *cose.ParameterList) string {
	param, ok := headers.Get(cose.IntLabel(cose.LabelKID))
	if !ok {
		return ""
	}
	kid, ok := param.Value.([]byte)
	if !ok {
		return ""
	}
	return hex.EncodeToString(kid)
}

// candidateAlgorithms returns the COSE algorithms pub could plausibly
// have signed with, broadest first: RSA keys support three PS*
// strengths since the verifier dispatch tries each until one accepts.
func candidateAlgorithms(pub any) []cose.AlgorithmID {
	if alg, err := coseadapter.AlgorithmForKey(pub); err == nil {
		return []cose.AlgorithmID{alg}
	}
	if _, ok := pub.(*rsa.PublicKey); ok {
		return []cose.AlgorithmID{cose.AlgPS256, cose.AlgPS384, cose.AlgPS512}
	}
	return nil
}

// peekMessageType inspects the outer CBOR tag (18 = COSE_Sign1, 98 =
// COSE_Sign) to decide which verify pipeline to run, falling back to
// COSE_Sign1 for untagged input.
func peekMessageType(data []byte) (msgType string, tagged bool, err error) {
	var tag cbor.Tag
	if decErr := cbor.Unmarshal(data, &tag); decErr == nil && tag.Number != 0 {
		switch tag.Number {
		case cose.CBORTagSign1:
			return "COSE_Sign1", true, nil
		case cose.CBORTagSign:
			return "COSE_Sign", true, nil
		default:
			return "", true, fmt.Errorf("cose: unrecognized CBOR tag %d", tag.Number)
		}
	}
	return "COSE_Sign1", false, nil
}

// headersFromRequest builds a ParameterList from the request's raw
// protected/unprotected label maps. Only integer labels are supported
// over the wire, matching the core header model's IANA registry focus.
func headersFromRequest(protected, unprotected map[string]interface{}) (*cose.ParameterList, error) {
	if len(protected) == 0 && len(unprotected) == 0 {
		return nil, nil
	}
	out := cose.NewParameterList()
	if err := addHeaders(out, protected, cose.Protected); err != nil {
		return nil, err
	}
	if err := addHeaders(out, unprotected, cose.Unprotected); err != nil {
		return nil, err
	}
	return out, nil
}

func addHeaders(list *cose.ParameterList, raw map[string]interface{}, bucket cose.Bucket) error {
	for k, v := range raw {
		label, err := parseLabelKey(k)
		if err != nil {
			return err
		}
		if err := list.Add(label, v, bucket); err != nil {
			return fmt.Errorf("cose: header %s: %w", k, err)
		}
	}
	return nil
}

func parseLabelKey(k string) (cose.Label, error) {
	var n int64
	if _, err := fmt.Sscanf(k, "%d", &n); err == nil {
		return cose.IntLabel(n), nil
	}
	return cose.TextLabel(k), nil
}

func encodeBase64(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}
