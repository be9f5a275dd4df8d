// Command cosectl is a CLI for creating and verifying COSE_Sign1 and
// COSE_Sign messages (RFC 9052).
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/qcose/qcose/pkg/audit"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var auditLogPath string

var rootCmd = &cobra.Command{
	Use:   "cosectl",
	Short: "cosectl - sign and verify COSE_Sign1/COSE_Sign messages",
	Long: `cosectl creates and verifies CBOR Object Signing and Encryption
(COSE) Sign1 and Sign messages as defined in RFC 9052.

Supports classical algorithms (ECDSA, Ed25519, RSA-PSS) and the
post-quantum extension (ML-DSA, SLH-DSA).

Examples:
  # Sign a file with a single signer
  cosectl sign --data message.txt --key signer.key --out signed.cbor

  # Sign with multiple signers (COSE_Sign)
  cosectl sign --data message.txt --key alice.key --key bob.key --out signed.cbor

  # Verify a signature
  cosectl verify signed.cbor --key signer.pub

  # Inspect a COSE message's headers
  cosectl info signed.cbor`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if auditLogPath == "" {
			auditLogPath = os.Getenv("COSE_AUDIT_LOG")
		}
		if auditLogPath != "" {
			if err := audit.InitFile(auditLogPath); err != nil {
				return fmt.Errorf("failed to initialize audit log: %w", err)
			}
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return audit.Close()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&auditLogPath, "audit-log", "",
		"path to audit log file (or set COSE_AUDIT_LOG env var)")

	rootCmd.AddCommand(signCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(infoCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
