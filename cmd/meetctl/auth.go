package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ostrenko/confab/internal/domain"
)

var (
	flagUsername string
	flagEmail    string
)

type authResult struct {
	User  domain.User `json:"user"`
	Token string      `json:"token"`
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account and log in",
	RunE: func(cmd *cobra.Command, args []string) error {
		if flagUsername == "" || flagEmail == "" {
			return fmt.Errorf("--username and --email are required")
		}
		api := newAPIClient(flagServer, "")
		var res authResult
		if err := api.do("POST", "/api/auth/register", map[string]string{
			"username": flagUsername,
			"email":    flagEmail,
		}, &res); err != nil {
			return err
		}
		return finishLogin(res)
	},
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in with a registered email",
	RunE: func(cmd *cobra.Command, args []string) error {
		if flagEmail == "" {
			return fmt.Errorf("--email is required")
		}
		api := newAPIClient(flagServer, "")
		var res authResult
		if err := api.do("POST", "/api/auth/login", map[string]string{
			"email": flagEmail,
		}, &res); err != nil {
			return err
		}
		return finishLogin(res)
	},
}

func finishLogin(res authResult) error {
	if err := saveCredentials(credentials{
		Server: flagServer,
		UserID: string(res.User.ID),
		Token:  res.Token,
	}); err != nil {
		return err
	}
	fmt.Printf("logged in as %s <%s>\n", res.User.Username, res.User.Email)
	return nil
}

func init() {
	registerCmd.Flags().StringVar(&flagUsername, "username", "", "display name")
	registerCmd.Flags().StringVar(&flagEmail, "email", "", "account email")
	loginCmd.Flags().StringVar(&flagEmail, "email", "", "account email")
}
