package cli

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/seoinsight/seoinsight/internal/vault"
)

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a credential encryption key",
	Long: `Generate a random 32-byte key, hex encoded, for CREDENTIAL_ENCRYPTION_KEY.

Rotating the key makes every stored provider key unreadable; tenants must
re-enter them.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := vault.GenerateKey()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), key)
		return nil
	},
}

var encryptCmd = &cobra.Command{
	Use:   "encrypt",
	Short: "Encrypt a provider API key read from stdin",
	Long: `Encrypt a provider API key with CREDENTIAL_ENCRYPTION_KEY and print the
stored form (iv:tag:ciphertext). The key is read from the first line of
stdin so it never appears in shell history.

Examples:
  printf '%s' "$OPENAI_API_KEY" | seoinsight encrypt`,
	Args: cobra.NoArgs,
	RunE: runEncrypt,
}

func runEncrypt(cmd *cobra.Command, args []string) error {
	v, err := vault.New(cfg.EncryptionKey)
	if err != nil {
		return err
	}

	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && line == "" {
		return fmt.Errorf("read key from stdin: %w", err)
	}
	plaintext := strings.TrimSpace(line)
	if plaintext == "" {
		return fmt.Errorf("no key on stdin")
	}

	sealed, err := v.Encrypt(plaintext)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), sealed)
	return nil
}
