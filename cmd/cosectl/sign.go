package main

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/qcose/qcose/pkg/audit"
	"github.com/qcose/qcose/pkg/cose"
	"github.com/qcose/qcose/pkg/coseadapter"
)

var (
	signData     string
	signKeys     []string
	signAlg      string
	signKID      string
	signOut      string
	signDetached bool
	signOmitTag  bool
	signHSMConfig string
	signSizeOnly bool
)

var signCmd = &cobra.Command{
	Use:   "sign",
	Short: "Create a COSE_Sign1 or COSE_Sign message",
	Long: `Create a COSE_Sign1 message from a single --key, or a COSE_Sign
message with multiple signatures when --key is repeated.

Examples:
  cosectl sign --data doc.txt --key signer.key --out doc.cbor
  cosectl sign --data doc.txt --key a.key --key b.key --out doc.cbor
  cosectl sign --data doc.txt --key signer.key --detached --out doc.sig.cbor`,
	RunE: runSign,
}

func init() {
	signCmd.Flags().StringVar(&signData, "data", "", "data file to sign (required)")
	signCmd.Flags().StringArrayVar(&signKeys, "key", nil, "signer private key (PEM); repeat for COSE_Sign")
	signCmd.Flags().StringVar(&signAlg, "alg", "", "COSE algorithm name (required for RSA keys)")
	signCmd.Flags().StringVar(&signKID, "kid", "", "key identifier to embed, hex-encoded")
	signCmd.Flags().StringVarP(&signOut, "out", "o", "", "output file (required)")
	signCmd.Flags().BoolVar(&signDetached, "detached", false, "produce a detached signature")
	signCmd.Flags().BoolVar(&signOmitTag, "omit-tag", false, "omit the leading CBOR tag (18/98)")
	signCmd.Flags().StringVar(&signHSMConfig, "hsm-config", "", "HSM configuration file (YAML) in place of --key")
	signCmd.Flags().BoolVar(&signSizeOnly, "size-only", false, "report the output size without signing or writing (--key only, not --hsm-config)")
	_ = signCmd.MarkFlagRequired("data")
	_ = signCmd.MarkFlagRequired("out")
}

func runSign(cmd *cobra.Command, args []string) error {
	payload, err := os.ReadFile(signData)
	if err != nil {
		return fmt.Errorf("failed to read data file: %w", err)
	}

	var kid []byte
	if signKID != "" {
		kid, err = hex.DecodeString(signKID)
		if err != nil {
			return fmt.Errorf("invalid --kid: %w", err)
		}
	}

	opts := cose.Options{DetachedPayload: signDetached, OmitCBORTag: signOmitTag}

	signers, err := loadSigners(signKeys, signHSMConfig, signAlg, kid)
	if err != nil {
		return err
	}

	if signSizeOnly {
		return runSignSizeOnly(cmd, payload, signers, opts)
	}

	var out []byte
	var msgType string
	if len(signers) == 1 {
		out, err = cose.Sign1(payload, nil, signers[0], opts)
		msgType = "COSE_Sign1"
	} else {
		out, err = cose.SignMulti(payload, nil, signers, opts)
		msgType = "COSE_Sign"
	}
	success := err == nil
	_ = audit.LogSign(msgType, signAlg, signKID, signOut, signDetached, success)
	if err != nil {
		return fmt.Errorf("failed to create %s message: %w", msgType, err)
	}

	if err := os.WriteFile(signOut, out, 0644); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Created %s message: %s\n", msgType, signOut)
	return nil
}

// runSignSizeOnly reports the output size Sign1/SignMulti would
// produce for signers, without performing any cryptographic operation
// (cose.Sign1Size/SignMultiSize, §4.5 "Two-pass emission"). It re-loads
// the raw keys from signKeys rather than threading them through
// loadSigners, since StandardAdapter's SigSize only needs the key's
// public half.
func runSignSizeOnly(cmd *cobra.Command, payload []byte, signers []cose.Signer, opts cose.Options) error {
	if signHSMConfig != "" {
		return fmt.Errorf("--size-only does not support --hsm-config")
	}
	keys := make([]any, len(signKeys))
	for i, path := range signKeys {
		key, err := coseadapter.LoadPrivateKeyFile(path)
		if err != nil {
			return fmt.Errorf("failed to read key for size calculation %s: %w", path, err)
		}
		keys[i] = key
	}

	adapter := coseadapter.StandardAdapter{}
	var size int
	var err error
	var msgType string
	if len(signers) == 1 {
		size, err = cose.Sign1Size(payload, nil, signers[0], adapter, keys[0], opts)
		msgType = "COSE_Sign1"
	} else {
		size, err = cose.SignMultiSize(payload, nil, signers, adapter, keys, opts)
		msgType = "COSE_Sign"
	}
	if err != nil {
		return fmt.Errorf("failed to compute %s size: %w", msgType, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s would be %d bytes\n", msgType, size)
	return nil
}

// loadSigners builds one cose.Signer per key path, or a single HSM
// signer when hsmConfig is set (mutually exclusive with --key).
func loadSigners(keyPaths []string, hsmConfig, algName string, kid []byte) ([]cose.Signer, error) {
	if hsmConfig != "" {
		signer, err := loadHSMSigner(hsmConfig, algName, kid)
		if err != nil {
			return nil, err
		}
		return []cose.Signer{signer}, nil
	}
	if len(keyPaths) == 0 {
		return nil, fmt.Errorf("--key or --hsm-config is required")
	}

	signers := make([]cose.Signer, 0, len(keyPaths))
	for _, path := range keyPaths {
		signer, _, err := coseadapter.LoadSignerFile(path, algName, kid)
		if err != nil {
			_ = audit.LogKeyAccessed(path, false, err.Error())
			return nil, fmt.Errorf("failed to load private key %s: %w", path, err)
		}
		_ = audit.LogKeyAccessed(path, true, "")
		signers = append(signers, signer)
	}
	return signers, nil
}
