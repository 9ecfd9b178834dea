package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var flagServer string

var rootCmd = &cobra.Command{
	Use:   "meetctl",
	Short: "Command-line client for the confab meeting server",
	Long: `meetctl talks to a confab server: manage meetings from the terminal and
join one as a live mesh participant over WebRTC signaling.`,
}

// Execute runs the root command. Called by main.main().
func Execute() {
	rootCmd.SilenceUsage = true

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagServer, "server", "http://localhost:8080", "confab server base URL")

	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(scheduleCmd)
	rootCmd.AddCommand(meetingsCmd)
	rootCmd.AddCommand(joinCmd)
}

// credentials are what login leaves behind for later commands.
type credentials struct {
	Server string `json:"server"`
	UserID string `json:"userId"`
	Token  string `json:"token"`
}

func credentialsPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".confab", "credentials.json"), nil
}

func saveCredentials(c credentials) error {
	path, err := credentialsPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o600)
}

func loadCredentials() (credentials, error) {
	path, err := credentialsPath()
	if err != nil {
		return credentials{}, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return credentials{}, fmt.Errorf("not logged in, run `meetctl login` first")
	}
	var c credentials
	if err := json.Unmarshal(b, &c); err != nil {
		return credentials{}, err
	}
	return c, nil
}
