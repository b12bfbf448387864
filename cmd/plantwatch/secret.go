package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mikeyg42/plantwatch/internal/config"
	"github.com/mikeyg42/plantwatch/internal/crypto"
)

var secretCmd = &cobra.Command{
	Use:   "secret",
	Short: "Generate a master key or encrypt config secrets",
}

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Print a new master key for PLANTWATCH_MASTER_KEY",
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := crypto.GenerateMasterKey()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), key)
		return nil
	},
}

var encryptCmd = &cobra.Command{
	Use:   "encrypt [value]",
	Short: `Encrypt a secret into an "enc:" config value (reads stdin without an argument)`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env := config.EnvPrefix + "_MASTER_KEY"
		key := os.Getenv(env)
		if key == "" {
			return fmt.Errorf("%s is not set", env)
		}

		var plain string
		if len(args) == 1 {
			plain = args[0]
		} else {
			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && line == "" {
				return errors.New("no secret on stdin")
			}
			plain = strings.TrimRight(line, "\r\n")
		}

		sealed, err := crypto.EncryptSecret(plain, key)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), sealed)
		return nil
	},
}

func init() {
	secretCmd.AddCommand(keygenCmd, encryptCmd)
	rootCmd.AddCommand(secretCmd)
}
