package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/threadline/internal/core/domain"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage tenant provider credentials",
	Long: `View and configure the Intercom access token of each tenant. Settings
are stored in tenants.toml in the data directory; a running server picks up
changes without a restart.`,
	RunE: runSettingsList,
}

var settingsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured tenants",
	RunE:  runSettingsList,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show [app-id]",
	Short: "Show the settings of a tenant",
	Args:  cobra.ExactArgs(1),
	RunE:  runSettingsShow,
}

var settingsSetKeyCmd = &cobra.Command{
	Use:   "set-key [app-id]",
	Short: "Store the Intercom access token of a tenant",
	Long: `Store the Intercom access token of a tenant and enable imports for it.
The token is read from --key, or prompted for without echo, or read from
standard input when it is not a terminal.`,
	Args: cobra.ExactArgs(1),
	RunE: runSettingsSetKey,
}

var settingsEnableCmd = &cobra.Command{
	Use:   "enable [app-id]",
	Short: "Enable imports for a tenant",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setEnabled(cmd, args[0], true)
	},
}

var settingsDisableCmd = &cobra.Command{
	Use:   "disable [app-id]",
	Short: "Disable imports for a tenant, keeping its token",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setEnabled(cmd, args[0], false)
	},
}

var settingsVerifyCmd = &cobra.Command{
	Use:   "verify [app-id]",
	Short: "Check a tenant's token against Intercom",
	Args:  cobra.ExactArgs(1),
	RunE:  runSettingsVerify,
}

var settingsKey string

func init() {
	settingsSetKeyCmd.Flags().StringVar(&settingsKey, "key", "", "Access token (avoid: it is kept in shell history)")

	settingsCmd.AddCommand(settingsListCmd)
	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsSetKeyCmd)
	settingsCmd.AddCommand(settingsEnableCmd)
	settingsCmd.AddCommand(settingsDisableCmd)
	settingsCmd.AddCommand(settingsVerifyCmd)
	rootCmd.AddCommand(settingsCmd)
}

func runSettingsList(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	all, err := settingsService.List(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list settings: %w", err)
	}

	if len(all) == 0 {
		cmd.Println("No tenants configured.")
		cmd.Println("Run 'threadline settings set-key <app-id>' to add one.")
		return nil
	}

	cmd.Println(title("Tenants"))
	for i := range all {
		printSettingsLine(cmd, &all[i])
	}
	return nil
}

func runSettingsShow(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	s, err := settingsService.Get(cmd.Context(), args[0])
	if errors.Is(err, domain.ErrNotFound) {
		cmd.Printf("Tenant %s is not configured.\n", args[0])
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	cmd.Println(title("Tenant " + s.AppID))
	cmd.Println(field("API Key", orNone(s.APIKey)))
	cmd.Println(field("Enabled", yesNo(s.Enabled)))
	return nil
}

func printSettingsLine(cmd *cobra.Command, s *domain.ProviderSettings) {
	state := successStyle.Render("enabled")
	if !s.Enabled {
		state = mutedStyle.Render("disabled")
	}
	cmd.Printf("  %-24s %-10s %s\n", s.AppID, state, s.APIKey)
}

func runSettingsSetKey(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	key := strings.TrimSpace(settingsKey)
	if key == "" {
		var err error
		key, err = readSecret(cmd, "Intercom access token: ")
		if err != nil {
			return fmt.Errorf("failed to read token: %w", err)
		}
	}
	if key == "" {
		return errors.New("access token is required")
	}

	if err := settingsService.SetAPIKey(cmd.Context(), args[0], key); err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}

	cmd.Printf("Saved token for %s.\n", args[0])
	return nil
}

func setEnabled(cmd *cobra.Command, appID string, enabled bool) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	if err := settingsService.SetEnabled(cmd.Context(), appID, enabled); err != nil {
		return fmt.Errorf("failed to update settings: %w", err)
	}

	state := "disabled"
	if enabled {
		state = "enabled"
	}
	cmd.Printf("Imports %s for %s.\n", state, appID)
	return nil
}

func runSettingsVerify(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	cmd.Printf("Verifying token for %s...\n", args[0])
	if err := settingsService.Verify(cmd.Context(), args[0]); err != nil {
		cmd.Println(errorStyle.Render("✗ " + err.Error()))
		return errors.New("verification failed")
	}

	cmd.Println(successStyle.Render("✓ Token accepted by Intercom"))
	return nil
}

// readSecret prompts without echo on a terminal and reads one line otherwise.
func readSecret(cmd *cobra.Command, prompt string) (string, error) {
	if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		cmd.Print(prompt)
		b, err := term.ReadPassword(int(f.Fd()))
		cmd.Println()
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(b)), nil
	}

	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
