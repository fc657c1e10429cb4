// Package main provides a CLI tool for generating caller tokens for the
// registry API. Tokens are signed with the dev key unless -key is given and
// will NOT work against a server configured with a different JWT_SIGNING_KEY.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	jwttoken "vcregistry/internal/jwt_token"
	id "vcregistry/pkg/domain"
)

const (
	// Dev signing key - matches config.go when JWT_SIGNING_KEY is not set
	devSigningKey = "dev-secret-key-change-in-production"

	// Defaults matching config.FromEnv
	defaultIssuer   = "vcregistry"
	defaultAudience = "vcregistry-callers"
	defaultTokenTTL = 15 * time.Minute
)

type tokenOutput struct {
	Token     string            `json:"token"`
	Type      string            `json:"type"`
	Caller    string            `json:"caller"`
	ExpiresIn string            `json:"expires_in"`
	Usage     map[string]string `json:"usage"`
}

func main() {
	callerCmd := flag.NewFlagSet("caller", flag.ExitOnError)
	address := callerCmd.String("address", "", "Caller address (0x + 40 hex chars). Required.")
	key := callerCmd.String("key", devSigningKey, "HS256 signing key")
	issuer := callerCmd.String("issuer", defaultIssuer, "Token issuer")
	audience := callerCmd.String("audience", defaultAudience, "Token audience")
	ttl := callerCmd.Duration("ttl", defaultTokenTTL, "Token time-to-live")
	env := callerCmd.String("env", "local", "Environment claim")
	jsonOut := callerCmd.Bool("json", false, "Output as JSON")

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "caller":
		callerCmd.Parse(os.Args[2:]) //nolint:errcheck // ExitOnError
		generateCallerToken(*address, *key, *issuer, *audience, *env, *ttl, *jsonOut)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`tokengen - Generate caller tokens for the registry API

WARNING: The default signing key is the dev key. Only use for local
         development and testing.

Usage:
  tokengen <command> [flags]

Commands:
  caller    Generate a caller token (JWT) for an address

Examples:
  # Token for the owner account configured in OWNER_ADDRESS
  tokengen caller -address 0x00000000000000000000000000000000000000a1

  # Custom TTL and JSON output
  tokengen caller -address 0x...b2 -ttl 1h -json

Use "tokengen <command> -h" for more information about a command.`)
}

func generateCallerToken(rawAddress, key, issuer, audience, env string, ttl time.Duration, jsonOutput bool) {
	caller, err := id.ParseAddress(rawAddress)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid -address %q: %v\n", rawAddress, err)
		os.Exit(1)
	}

	svc := jwttoken.NewJWTService(key, issuer, audience, ttl)
	svc.SetEnv(env)

	token, err := svc.GenerateCallerToken(context.Background(), caller)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating token: %v\n", err)
		os.Exit(1)
	}

	if jsonOutput {
		printJSON(tokenOutput{
			Token:     token,
			Type:      "caller_token",
			Caller:    caller.String(),
			ExpiresIn: ttl.String(),
			Usage: map[string]string{
				"header": "Authorization: Bearer <token>",
			},
		})
		return
	}

	fmt.Println("Caller Token (JWT)")
	fmt.Println("==================")
	fmt.Printf("Caller:     %s\n", caller)
	fmt.Printf("Expires In: %s\n", ttl)
	fmt.Println()
	fmt.Println("Token:")
	fmt.Println(token)
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  curl -H \"Authorization: Bearer <token>\" http://localhost:8080/registry/state")
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding JSON: %v\n", err)
		os.Exit(1)
	}
}
