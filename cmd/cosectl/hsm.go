package main

import (
	"fmt"

	"github.com/qcose/qcose/pkg/audit"
	"github.com/qcose/qcose/pkg/cose"
	"github.com/qcose/qcose/pkg/coseadapter"
)

// loadHSMSigner builds a PKCS#11-backed signer from a YAML HSM
// configuration file. algName is accepted for symmetry with
// loadSigners' file-key path but is currently unused: the HSM key's
// own EC curve determines the algorithm.
func loadHSMSigner(hsmConfigPath, algName string, kid []byte) (cose.Signer, error) {
	hsmCfg, err := coseadapter.LoadHSMConfig(hsmConfigPath)
	if err != nil {
		return nil, err
	}
	pin, err := hsmCfg.GetPIN()
	if err != nil {
		return nil, err
	}

	cfg := coseadapter.PKCS11Config{
		ModulePath:  hsmCfg.PKCS11.Lib,
		TokenLabel:  hsmCfg.PKCS11.Token,
		TokenSerial: hsmCfg.PKCS11.TokenSerial,
		SlotID:      hsmCfg.PKCS11.Slot,
		PIN:         pin,
		KeyLabel:    hsmCfg.PKCS11.KeyLabel,
		KeyID:       hsmCfg.PKCS11.KeyID,
	}

	signer, err := coseadapter.NewPKCS11Signer(cfg, kid)
	if err != nil {
		_ = audit.LogKeyAccessed(hsmConfigPath, false, err.Error())
		return nil, fmt.Errorf("failed to open HSM signer: %w", err)
	}
	_ = audit.LogKeyAccessed(hsmConfigPath, true, "")
	return signer, nil
}
