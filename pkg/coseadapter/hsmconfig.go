package coseadapter

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// HSMConfig is the YAML configuration for a PKCS#11-backed signer,
// grounded on the reference repository's internal/crypto/hsmconfig.go.
// Narrowed to the fields a COSE signer needs: key material identifies a
// single signing key rather than a CA/key-management hierarchy.
type HSMConfig struct {
	Type   string         `yaml:"type"`
	PKCS11 PKCS11Settings `yaml:"pkcs11"`
}

// PKCS11Settings holds the PKCS#11 module, token, key, and PIN location.
type PKCS11Settings struct {
	// Lib is the path to the PKCS#11 module (.so/.dylib/.dll).
	Lib string `yaml:"lib"`

	// Token identifies the token by label (recommended).
	Token string `yaml:"token"`

	// TokenSerial identifies the token by serial number (more precise).
	TokenSerial string `yaml:"token_serial"`

	// Slot identifies the token by slot ID (less portable).
	Slot *uint `yaml:"slot"`

	// KeyLabel is the CKA_LABEL of the signing key.
	KeyLabel string `yaml:"key_label"`

	// KeyID is the hex-encoded CKA_ID of the signing key.
	KeyID string `yaml:"key_id"`

	// PinEnv is the name of the environment variable holding the PIN.
	PinEnv string `yaml:"pin_env"`
}

// LoadHSMConfig loads and validates an HSM configuration from a YAML file.
func LoadHSMConfig(path string) (*HSMConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("coseadapter: read HSM config: %w", err)
	}

	var cfg HSMConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("coseadapter: parse HSM config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("coseadapter: invalid HSM config: %w", err)
	}

	return &cfg, nil
}

// Validate checks that the configuration is complete enough to open a
// PKCS#11 session and locate a single signing key.
func (c *HSMConfig) Validate() error {
	if c.Type != "pkcs11" {
		return fmt.Errorf("unsupported HSM type %q (only \"pkcs11\" is supported)", c.Type)
	}
	if c.PKCS11.Lib == "" {
		return fmt.Errorf("pkcs11.lib is required")
	}
	if c.PKCS11.Token == "" && c.PKCS11.TokenSerial == "" && c.PKCS11.Slot == nil {
		return fmt.Errorf("at least one of pkcs11.token, pkcs11.token_serial, or pkcs11.slot is required")
	}
	if c.PKCS11.KeyLabel == "" && c.PKCS11.KeyID == "" {
		return fmt.Errorf("at least one of pkcs11.key_label or pkcs11.key_id is required")
	}
	if c.PKCS11.PinEnv == "" {
		return fmt.Errorf("pkcs11.pin_env is required (the PIN must come from an environment variable)")
	}
	return nil
}

// GetPIN retrieves the PIN from the configured environment variable.
func (c *HSMConfig) GetPIN() (string, error) {
	pin := os.Getenv(c.PKCS11.PinEnv)
	if pin == "" {
		return "", fmt.Errorf("environment variable %s is not set or empty", c.PKCS11.PinEnv)
	}
	return pin, nil
}
