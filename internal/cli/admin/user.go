package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/izpodvypodvert/todoapi/internal/config"
	"github.com/izpodvypodvert/todoapi/internal/domain"
	"github.com/izpodvypodvert/todoapi/internal/pagination"
	"github.com/izpodvypodvert/todoapi/internal/repository"
	"github.com/spf13/cobra"
)

func UserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage users",
		Long:  "Create and list user accounts",
	}

	cmd.AddCommand(UserCreateCmd())
	cmd.AddCommand(UserListCmd())

	return cmd
}

func UserCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create <email>",
		Short: "Create a new user",
		Long:  "Create a user account directly in the database, bypassing email verification",
		Args:  cobra.ExactArgs(1),
		RunE:  runUserCreate,
	}

	cmd.Flags().StringP("output", "o", "text", "Output format (text or json)")
	cmd.Flags().String("username", "", "Username (defaults to the email local part)")
	cmd.Flags().String("password", "", "Password for the new account")
	cmd.Flags().Bool("superuser", false, "Grant superuser rights")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}

func runUserCreate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	email := args[0]
	outputFormat, _ := cmd.Flags().GetString("output")
	username, _ := cmd.Flags().GetString("username")
	password, _ := cmd.Flags().GetString("password")
	superuser, _ := cmd.Flags().GetBool("superuser")

	if username == "" {
		username, _, _ = strings.Cut(email, "@")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	pool, err := getDBPool(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	tx, err := newTxManager(pool)
	if err != nil {
		return err
	}
	users, err := newUserManager(cfg, tx)
	if err != nil {
		return err
	}

	user, err := users.Register(ctx, domain.UserCreate{
		Email:       email,
		Username:    username,
		Password:    password,
		IsSuperuser: superuser,
		IsVerified:  true,
	})
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	out := cmd.OutOrStdout()
	if outputFormat == "json" {
		return writeJSON(out, userView(user))
	}
	fmt.Fprintf(out, "User created: %s (%s)\n", user.Email, user.ID)
	return nil
}

func UserListCmd() *cobra.Command {
	var (
		limit  int
		cursor string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List users",
		Long:  "List user accounts, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			outputFormat, _ := cmd.Flags().GetString("output")
			return runUserList(cmd.OutOrStdout(), outputFormat, limit, cursor)
		},
	}

	cmd.Flags().StringP("output", "o", "text", "Output format (text or json)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of results")
	cmd.Flags().StringVar(&cursor, "cursor", "", "Pagination cursor from previous response")

	return cmd
}

func runUserList(out io.Writer, outputFormat string, limit int, cursorStr string) error {
	ctx := context.Background()

	cursor, err := pagination.DecodeCursor(cursorStr)
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	pool, err := getDBPool(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	result, err := repository.NewUserRepository(pool).ListWithCursor(ctx, cursor, limit)
	if err != nil {
		return fmt.Errorf("failed to list users: %w", err)
	}

	return printUserPage(out, outputFormat, result)
}

func printUserPage(out io.Writer, outputFormat string, result *pagination.PageResult[*domain.User]) error {
	if outputFormat == "json" {
		items := make([]map[string]any, len(result.Items))
		for i, user := range result.Items {
			items[i] = userView(user)
		}
		return writeJSON(out, map[string]any{
			"items":    items,
			"cursor":   result.Cursor,
			"has_more": result.HasMore,
		})
	}

	if len(result.Items) == 0 {
		fmt.Fprintln(out, "No users found")
		return nil
	}
	fmt.Fprintln(out, "Users:")
	for _, user := range result.Items {
		flags := ""
		if user.IsSuperuser {
			flags += " [superuser]"
		}
		if !user.IsActive {
			flags += " [inactive]"
		}
		fmt.Fprintf(out, "  %s: %s <%s>%s (created: %s)\n",
			user.ID, user.Username, user.Email, flags, user.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	if result.HasMore && result.Cursor != "" {
		fmt.Fprintf(out, "\nMore results available. Use --cursor %s\n", result.Cursor)
	}
	return nil
}

func userView(user *domain.User) map[string]any {
	return map[string]any{
		"id":           user.ID,
		"email":        user.Email,
		"username":     user.Username,
		"is_active":    user.IsActive,
		"is_superuser": user.IsSuperuser,
		"is_verified":  user.IsVerified,
		"created_at":   user.CreatedAt,
	}
}

func writeJSON(out io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(out, string(data))
	return nil
}
