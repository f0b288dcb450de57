package client

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var stdin io.Reader = os.Stdin

// User represents an account returned by the API.
type User struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	Username    string `json:"username"`
	IsActive    bool   `json:"is_active"`
	IsSuperuser bool   `json:"is_superuser"`
	IsVerified  bool   `json:"is_verified"`
	CreatedAt   string `json:"created_at"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// AuthCmd creates the auth parent command
func AuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage authentication",
		Long:  "Register, login, logout, and check authentication status for the todo CLI",
	}

	cmd.AddCommand(AuthRegisterCmd())
	cmd.AddCommand(AuthLoginCmd())
	cmd.AddCommand(AuthLogoutCmd())
	cmd.AddCommand(AuthStatusCmd())

	return cmd
}

func AuthRegisterCmd() *cobra.Command {
	var email, username, password string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		Long:  "Create an account on the server. A verification email is sent when the server has mail configured.",
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runAuthRegister(cmd.OutOrStdout(), NewAPIClientWithCmd(cmd), email, username, password, outputJSON)
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Account email")
	cmd.Flags().StringVar(&username, "username", "", "Username")
	cmd.Flags().StringVar(&password, "password", "", "Password (prompted when omitted)")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("username")

	return cmd
}

// AuthLoginCmd creates the auth login command
func AuthLoginCmd() *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Login with email and password",
		Long:  "Exchange credentials for an access token and store it in the global config (~/.config/todoapi/config.json)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAuthLogin(cmd.OutOrStdout(), NewAPIClientWithCmd(cmd), email, password)
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Account email (prompted when omitted)")
	cmd.Flags().StringVar(&password, "password", "", "Password (prompted when omitted)")

	return cmd
}

// AuthLogoutCmd creates the auth logout command
func AuthLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Logout and clear credentials",
		Long:  "Notify the server and remove the stored token from the global config",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAuthLogout(cmd.OutOrStdout(), NewAPIClientWithCmd(cmd))
		},
	}
}

// AuthStatusCmd creates the auth status command
func AuthStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show authentication status",
		Long:  "Display the current token source, API URL and token expiry",
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			flagToken, _ := cmd.Flags().GetString("token")
			flagURL, _ := cmd.Flags().GetString("api-url")
			return runAuthStatus(cmd.OutOrStdout(), flagToken, flagURL, outputJSON, time.Now())
		},
	}
}

// WhoamiCmd shows the account behind the current token.
func WhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the current user",
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runWhoami(cmd.OutOrStdout(), NewAPIClientWithCmd(cmd), outputJSON)
		},
	}
}

func prompt(out io.Writer, reader *bufio.Reader, label string) (string, error) {
	fmt.Fprint(out, label)
	input, err := reader.ReadString('\n')
	if err != nil && input == "" {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(input), nil
}

func runAuthRegister(out io.Writer, api *APIClient, email, username, password string, outputJSON bool) error {
	if password == "" {
		var err error
		if password, err = prompt(out, bufio.NewReader(stdin), "Password: "); err != nil {
			return err
		}
	}

	resp, err := api.Post("/v1/auth/register", map[string]string{
		"email":    email,
		"username": username,
		"password": password,
	})
	if err != nil {
		return fmt.Errorf("failed to register: %w", err)
	}

	var user User
	if err := json.Unmarshal(resp.Data, &user); err != nil {
		return fmt.Errorf("failed to parse user: %w", err)
	}

	if outputJSON {
		return printJSON(out, user)
	}
	fmt.Fprintf(out, "Registered %s (%s)\n", user.Email, user.ID)
	fmt.Fprintln(out, "Run 'todo auth login' to sign in")
	return nil
}

func runAuthLogin(out io.Writer, api *APIClient, email, password string) error {
	reader := bufio.NewReader(stdin)
	var err error
	if email == "" {
		if email, err = prompt(out, reader, "Email: "); err != nil {
			return err
		}
	}
	if password == "" {
		if password, err = prompt(out, reader, "Password: "); err != nil {
			return err
		}
	}
	if email == "" || password == "" {
		return fmt.Errorf("email and password are required")
	}

	form := url.Values{}
	form.Set("username", email)
	form.Set("password", password)

	resp, err := api.PostForm("/v1/auth/jwt/login", form)
	if err != nil {
		return fmt.Errorf("failed to login: %w", err)
	}

	var token tokenResponse
	if err := json.Unmarshal(resp.Data, &token); err != nil {
		return fmt.Errorf("failed to parse token: %w", err)
	}
	if token.AccessToken == "" {
		return fmt.Errorf("server returned an empty token")
	}

	config := &GlobalConfig{
		Token:  token.AccessToken,
		APIURL: api.BaseURL(),
		Email:  email,
	}
	if err := SaveGlobalConfig(config); err != nil {
		return fmt.Errorf("failed to save credentials: %w", err)
	}

	fmt.Fprintln(out, "Successfully logged in")
	return nil
}

func runAuthLogout(out io.Writer, api *APIClient) error {
	if api.token != "" {
		// Tokens are stateless; the call only lets the server log the event.
		_, _ = api.Post("/v1/auth/jwt/logout", nil)
	}

	if err := DeleteGlobalConfig(); err != nil {
		return fmt.Errorf("failed to logout: %w", err)
	}

	fmt.Fprintln(out, "Successfully logged out")
	return nil
}

func runAuthStatus(out io.Writer, flagToken, flagURL string, outputJSON bool, now time.Time) error {
	source, token, apiURL := GetCredentialSource(flagToken, flagURL)
	expiry, hasExpiry := TokenExpiry(token)
	expired := hasExpiry && !now.Before(expiry)

	if outputJSON {
		status := map[string]any{
			"authenticated": source != SourceNone && !expired,
			"source":        string(source),
			"api_url":       apiURL,
		}
		if source != SourceNone {
			status["token"] = maskToken(token)
		}
		if hasExpiry {
			status["expires_at"] = expiry.UTC().Format(time.RFC3339)
			status["expired"] = expired
		}
		return printJSON(out, status)
	}

	if source == SourceNone {
		fmt.Fprintln(out, "Not authenticated")
		fmt.Fprintln(out, "Run 'todo auth login' to authenticate")
		return nil
	}

	fmt.Fprintf(out, "Authenticated: %s\n", yesNo(!expired))
	fmt.Fprintf(out, "Source: %s\n", source)
	fmt.Fprintf(out, "Token: %s\n", maskToken(token))
	fmt.Fprintf(out, "API URL: %s\n", apiURL)
	if hasExpiry {
		if expired {
			fmt.Fprintf(out, "Expired: %s\n", expiry.Local().Format(time.RFC1123))
		} else {
			fmt.Fprintf(out, "Expires: %s\n", expiry.Local().Format(time.RFC1123))
		}
	}

	return nil
}

func runWhoami(out io.Writer, api *APIClient, outputJSON bool) error {
	resp, err := api.Get("/v1/users/me")
	if err != nil {
		return fmt.Errorf("failed to get current user: %w", err)
	}

	var user User
	if err := json.Unmarshal(resp.Data, &user); err != nil {
		return fmt.Errorf("failed to parse user: %w", err)
	}

	if outputJSON {
		return printJSON(out, user)
	}

	fmt.Fprintf(out, "ID: %s\n", user.ID)
	fmt.Fprintf(out, "Email: %s\n", user.Email)
	fmt.Fprintf(out, "Username: %s\n", user.Username)
	fmt.Fprintf(out, "Verified: %s\n", yesNo(user.IsVerified))
	if user.IsSuperuser {
		fmt.Fprintln(out, "Superuser: yes")
	}
	return nil
}

func maskToken(token string) string {
	if len(token) < 16 {
		return "***"
	}
	return token[:8] + "..." + token[len(token)-4:]
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func printJSON(out io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	fmt.Fprintln(out, string(data))
	return nil
}
