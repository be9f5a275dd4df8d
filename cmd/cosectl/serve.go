package main

import (
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/qcose/qcose/internal/api/server"
)

// Serve command flags, grounded on the reference CLI's serve.go
// env-var-backed flag pattern, trimmed to the COSE demo API's single
// port/host/key-dir/TLS surface.
var (
	servePort    int
	serveHost    string
	serveKeyDir  string
	serveTLSCert string
	serveTLSKey  string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the COSE demo HTTP API",
	Long: `Run the ambient HTTP demo API exposing /api/v1/cose/{sign,verify,info}
alongside /health and /ready. key_path/key_paths in request bodies are
resolved relative to --key-dir.

Environment variables:
  COSE_API_PORT     Listen port (default: 8443)
  COSE_API_HOST     Bind address (default: all interfaces)
  COSE_API_KEY_DIR  Base directory for relative key paths
  COSE_API_TLS_CERT TLS certificate file
  COSE_API_TLS_KEY  TLS private key file

Examples:
  cosectl serve --port 8443 --key-dir ./keys
  cosectl serve --port 8443 --tls-cert server.crt --tls-key server.key`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "port to listen on (default: 8443)")
	serveCmd.Flags().StringVar(&serveHost, "host", "", "address to bind to (default: all interfaces)")
	serveCmd.Flags().StringVar(&serveKeyDir, "key-dir", "", "base directory for relative key paths")
	serveCmd.Flags().StringVar(&serveTLSCert, "tls-cert", "", "TLS certificate file")
	serveCmd.Flags().StringVar(&serveTLSKey, "tls-key", "", "TLS private key file")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	applyServeEnvVars()

	cfg := server.DefaultConfig()
	if servePort != 0 {
		cfg.Port = servePort
	}
	cfg.Host = serveHost
	cfg.KeyDir = serveKeyDir
	cfg.TLSCert = serveTLSCert
	cfg.TLSKey = serveTLSKey

	srv := server.New(cfg, version)
	return srv.Start()
}

func applyServeEnvVars() {
	if servePort == 0 {
		if v := os.Getenv("COSE_API_PORT"); v != "" {
			if p, err := strconv.Atoi(v); err == nil {
				servePort = p
			}
		}
	}
	if serveHost == "" {
		serveHost = os.Getenv("COSE_API_HOST")
	}
	if serveKeyDir == "" {
		serveKeyDir = os.Getenv("COSE_API_KEY_DIR")
	}
	if serveTLSCert == "" {
		serveTLSCert = os.Getenv("COSE_API_TLS_CERT")
	}
	if serveTLSKey == "" {
		serveTLSKey = os.Getenv("COSE_API_TLS_KEY")
	}
}
