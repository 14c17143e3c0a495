// Command gen-token mints HS256 bearer tokens signed with the configured secret.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"taskBoard/internal/auth"
	"taskBoard/internal/config"
	"taskBoard/internal/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	configPath string
	secret     string
	ttl        time.Duration
	email      string
	count      int
	prefix     string
	start      int
	output     string
)

var rootCmd = &cobra.Command{
	Use:   "gen-token [user-id]",
	Short: "Mint HS256 bearer tokens for local use",
	Long: `Mint bearer tokens signed with auth.secret from the config file, or with --secret.

With --count greater than one, user IDs are generated as <prefix>-<n> starting at --start.
The first token is printed; --output writes all of them as a JSON array.`,
	Args:         cobra.MaximumNArgs(1),
	SilenceUsage: true,
	RunE:         runGenToken,
}

func init() {
	rootCmd.Flags().StringVar(&configPath, "config", "config.yml", "config file holding auth.secret")
	rootCmd.Flags().StringVar(&secret, "secret", "", "signing secret, overrides the config file")
	rootCmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	rootCmd.Flags().StringVar(&email, "email", "", "email claim for a single token")
	rootCmd.Flags().IntVar(&count, "count", 1, "number of tokens to generate")
	rootCmd.Flags().StringVar(&prefix, "prefix", "dev-user", "prefix for generated user IDs when count > 1")
	rootCmd.Flags().IntVar(&start, "start", 1, "starting index for generated user IDs when count > 1")
	rootCmd.Flags().StringVar(&output, "output", "", "file to write generated tokens as a JSON array")
}

func main() {
	_ = logger.Init(true)
	defer logger.Sync()

	if err := rootCmd.Execute(); err != nil {
		logger.Error("gen-token failed", err)
		os.Exit(1)
	}
}

func runGenToken(cmd *cobra.Command, args []string) error {
	if count < 1 {
		return errors.New("count must be at least 1")
	}
	if start < 1 {
		return errors.New("start index must be at least 1")
	}
	if len(args) > 0 && count > 1 {
		return errors.New("explicit user ID cannot be provided when generating multiple tokens")
	}

	key, err := signingSecret(configPath, secret)
	if err != nil {
		return fmt.Errorf("no signing secret: %w", err)
	}

	tokens, err := generateTokens(key, ttl, email, count, prefix, start, args)
	if err != nil {
		return fmt.Errorf("generate token: %w", err)
	}

	if output != "" {
		if err := writeTokens(output, tokens); err != nil {
			return fmt.Errorf("write tokens: %w", err)
		}
		logger.Info("Tokens written", zap.String("path", output), zap.Int("count", len(tokens)))
	}

	fmt.Fprint(cmd.OutOrStdout(), tokens[0])
	return nil
}

func signingSecret(configPath, override string) ([]byte, error) {
	if override != "" {
		return []byte(override), nil
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if cfg.Auth.Secret == "" {
		return nil, fmt.Errorf("auth.secret is empty in %s", configPath)
	}
	return []byte(cfg.Auth.Secret), nil
}

func generateTokens(secret []byte, ttl time.Duration, email string, count int, prefix string, start int, args []string) ([]string, error) {
	tokens := make([]string, count)
	now := time.Now()

	for i := 0; i < count; i++ {
		user := auth.User{Email: email}
		switch {
		case len(args) > 0:
			user.ID = args[0]
		case count == 1:
			user.ID = prefix
		default:
			user.ID = fmt.Sprintf("%s-%d", prefix, start+i)
			user.Email = ""
		}

		tok, err := auth.Issue(secret, auth.NewClaims(user, ttl, now))
		if err != nil {
			return nil, err
		}
		tokens[i] = tok
	}

	return tokens, nil
}

func writeTokens(path string, tokens []string) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	data, err := json.Marshal(tokens)
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o600)
}
