package cli

import (
	"encoding/json"
	"fmt"

	"github.com/clicktrail/clicktrail/internal/auth"
)

type hashTokenJSON struct {
	Token string `json:"token,omitempty"`
	Hash  string `json:"hash"`
}

// Execute implements the go-flags Commander interface for HashTokenCommand.
func (c *HashTokenCommand) Execute(args []string) error {
	var out hashTokenJSON

	if c.Token != "" {
		hash, err := auth.HashToken(c.Token)
		if err != nil {
			return fmt.Errorf("hash token: %w", err)
		}
		out.Hash = hash
	} else {
		generated, err := auth.GenerateAdminToken()
		if err != nil {
			return err
		}
		out.Token = generated.Plaintext
		out.Hash = generated.Hash
	}

	if c.globals != nil && c.globals.JSON {
		return json.NewEncoder(c.out).Encode(out)
	}

	if out.Token != "" {
		fmt.Fprintf(c.out, "Token:  %s\n", out.Token)
		fmt.Fprintln(c.out, "        Store it now; it cannot be recovered from the hash.")
	} else if !auth.ValidateTokenFormat(c.Token) {
		fmt.Fprintln(c.out, "Note:   token does not use the generated ct_admin_ format")
	}
	fmt.Fprintf(c.out, "ADMIN_TOKEN_HASH=%s\n", out.Hash)
	return nil
}
