package main

import (
	"fmt"
	"os"

	"github.com/google/uuid"

	"github.com/voltgrid/ocpi-gateway/internal/auth"
	"github.com/voltgrid/ocpi-gateway/internal/core/domain"
)

func main() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: go run cmd/keygen/main.go <tenant-subdomain> <cpo|emsp> [plain|base64]")
		fmt.Println("Issues a partner credential and prints the token entry for config.yaml")
		os.Exit(1)
	}

	subdomain := os.Args[1]
	role, err := domain.ParseRole(os.Args[2])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	enc := auth.EncodingBase64
	if len(os.Args) > 3 {
		if enc, err = auth.ParseEncoding(os.Args[3]); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}

	issued, err := auth.Issue(auth.NewCodec(enc), subdomain)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	fmt.Printf("Credential: %s\n", issued.Credential)
	fmt.Printf("Authorization: %s\n", issued.Header)
	fmt.Printf("SHA-256 Hash: %s\n", issued.Hash)
	fmt.Println("\nAdd this to the tenant in your config.yaml:")
	fmt.Printf("  tokens:\n")
	fmt.Printf("    - id: %s\n", uuid.NewString())
	fmt.Printf("      role: %s\n", role)
	fmt.Printf("      token_hash: \"%s\"\n", issued.Hash)
	fmt.Printf("      country_code: \"\"\n")
	fmt.Printf("      party_id: \"\"\n")
}
