package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/qcose/qcose/pkg/audit"
	"github.com/qcose/qcose/pkg/cose"
	"github.com/qcose/qcose/pkg/coseadapter"
)

var (
	verifyKeys       []string
	verifyAlg        string
	verifyData       string
	verifyRequireAll bool
	verifyStrict     bool
)

var verifyCmd = &cobra.Command{
	Use:   "verify <message-file>",
	Short: "Verify a COSE_Sign1 or COSE_Sign message",
	Long: `Verify a COSE_Sign1 or COSE_Sign message against one or more
public keys. Each signature is checked against the first key whose
algorithm matches the message's "alg" header; the "kid" header is not
consulted, and no further key of the same algorithm is tried.

Examples:
  cosectl verify signed.cbor --key signer.pub
  cosectl verify signed.cbor --key a.pub --key b.pub --require-all
  cosectl verify doc.sig.cbor --key signer.pub --data doc.txt`,
	Args: cobra.ExactArgs(1),
	RunE: runVerify,
}

func init() {
	verifyCmd.Flags().StringArrayVar(&verifyKeys, "key", nil, "verifier public key or certificate (PEM); repeatable")
	verifyCmd.Flags().StringVar(&verifyAlg, "alg", "", "COSE algorithm name, required when a key supports more than one")
	verifyCmd.Flags().StringVar(&verifyData, "data", "", "original payload file, for a detached signature")
	verifyCmd.Flags().BoolVar(&verifyRequireAll, "require-all", false, "for COSE_Sign, require every signature to verify, not just one")
	verifyCmd.Flags().BoolVar(&verifyStrict, "strict", false, "reject a protected header encoded as an explicit empty map instead of warning")
	_ = verifyCmd.MarkFlagRequired("key")
}

func runVerify(cmd *cobra.Command, args []string) error {
	inputFile := args[0]

	data, err := os.ReadFile(inputFile)
	if err != nil {
		return fmt.Errorf("failed to read message file: %w", err)
	}

	var detached []byte
	if verifyData != "" {
		detached, err = os.ReadFile(verifyData)
		if err != nil {
			return fmt.Errorf("failed to read detached payload file: %w", err)
		}
	}

	verifiers, err := loadVerifiers(verifyKeys, verifyAlg)
	if err != nil {
		return err
	}

	msgType, _, err := peekMessageType(data)
	if err != nil {
		return fmt.Errorf("failed to inspect message: %w", err)
	}
	opts := cose.Options{RequireAllSignaturesValid: verifyRequireAll, StrictMode: verifyStrict}

	var algName string
	var warnings []string
	var verifyErr error
	if msgType == "COSE_Sign" {
		msg, vErr := cose.VerifyMulti(data, verifiers, detached, opts)
		verifyErr = vErr
		if vErr == nil {
			warnings = msg.Warnings
			for i, sig := range msg.Signatures {
				alg, _ := sig.Headers.Alg()
				if i == 0 {
					algName = cose.AlgorithmName(alg)
				}
			}
		}
	} else {
		msg, vErr := cose.Verify1(data, verifiers, detached, opts)
		verifyErr = vErr
		if vErr == nil {
			warnings = msg.Warnings
			if alg, ok := msg.Headers.Alg(); ok {
				algName = cose.AlgorithmName(alg)
			}
		}
	}

	success := verifyErr == nil
	reason := ""
	if verifyErr != nil {
		reason = verifyErr.Error()
	}
	_ = audit.LogVerify(msgType, algName, "", inputFile, verifyData != "", success, reason)

	out := cmd.OutOrStdout()
	if verifyErr != nil {
		fmt.Fprintln(out, "Verification: INVALID")
		return fmt.Errorf("%s", verifyErr)
	}

	fmt.Fprintln(out, "Verification: VALID")
	fmt.Fprintf(out, "Type: %s\n", msgType)
	if algName != "" {
		fmt.Fprintf(out, "Algorithm: %s\n", algName)
	}
	for _, w := range warnings {
		fmt.Fprintf(out, "Warning: %s\n", w)
	}
	return nil
}

func loadVerifiers(keyPaths []string, algName string) ([]cose.Verifier, error) {
	if len(keyPaths) == 0 {
		return nil, fmt.Errorf("--key is required")
	}
	verifiers := make([]cose.Verifier, 0, len(keyPaths))
	for _, path := range keyPaths {
		verifier, _, err := coseadapter.LoadVerifierFile(path, algName, nil)
		if err != nil {
			_ = audit.LogKeyAccessed(path, false, err.Error())
			return nil, fmt.Errorf("failed to load public key %s: %w", path, err)
		}
		_ = audit.LogKeyAccessed(path, true, "")
		verifiers = append(verifiers, verifier)
	}
	return verifiers, nil
}
