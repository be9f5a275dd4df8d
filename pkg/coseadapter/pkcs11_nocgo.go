//go:build !cgo

package coseadapter

import (
	"fmt"

	"github.com/qcose/qcose/pkg/cose"
)

// PKCS11Config mirrors the cgo build's configuration so callers compile
// either way. HSM support itself requires CGO.
type PKCS11Config struct {
	ModulePath  string
	TokenLabel  string
	TokenSerial string
	SlotID      *uint
	PIN         string
	KeyLabel    string
	KeyID       string
}

// PKCS11Signer is a stub used when CGO is unavailable.
type PKCS11Signer struct{}

var errNoCGO = fmt.Errorf("coseadapter: HSM support requires CGO (build with CGO_ENABLED=1)")

// NewPKCS11Signer returns errNoCGO in a build without CGO.
func NewPKCS11Signer(_ PKCS11Config, _ []byte) (*PKCS11Signer, error) {
	return nil, errNoCGO
}

func (s *PKCS11Signer) Algorithm() cose.AlgorithmID { return 0 }

func (s *PKCS11Signer) HeaderCallback() *cose.ParameterList { return cose.NewParameterList() }

func (s *PKCS11Signer) SignCallback(_, _, _, _ []byte) ([]byte, error) {
	return nil, errNoCGO
}

func (s *PKCS11Signer) Close() error { return nil }
