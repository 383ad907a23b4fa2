package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	auth "github.com/mind-engage/skillway/internal/auth/middleware"
	"github.com/mind-engage/skillway/internal/content"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage accounts",
}

var userAddCmd = &cobra.Command{
	Use:   "add <email>",
	Short: "Create an account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		password, _ := cmd.Flags().GetString("password")
		name, _ := cmd.Flags().GetString("name")
		role, _ := cmd.Flags().GetString("role")
		grade, _ := cmd.Flags().GetInt("grade")

		r := content.Role(role)
		if !r.Valid() {
			return fmt.Errorf("unknown role %q", role)
		}
		if len(password) < 6 {
			return errors.New("password must be at least 6 characters")
		}
		if grade < 1 || grade > 11 {
			return fmt.Errorf("grade %d is outside 1..11", grade)
		}
		hash, err := auth.HashPassword(password)
		if err != nil {
			return err
		}

		cfg := loadConfig(cmd)
		dbh, err := openDB(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer dbh.Close()

		u := content.User{
			UID:          uuid.NewString(),
			Email:        strings.ToLower(strings.TrimSpace(args[0])),
			DisplayName:  name,
			PasswordHash: hash,
			Role:         r,
			Grade:        grade,
			CreatedAt:    time.Now().UTC(),
		}
		if err := content.NewSQLStore(dbh).CreateUser(cmd.Context(), u); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", u.UID, u.Email, u.Role)
		return nil
	},
}

var userRoleCmd = &cobra.Command{
	Use:   "role <email> <student|teacher|admin>",
	Short: "Change an account's role",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		r := content.Role(args[1])
		if !r.Valid() {
			return fmt.Errorf("unknown role %q", args[1])
		}
		cfg := loadConfig(cmd)
		dbh, err := openDB(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer dbh.Close()

		store := content.NewSQLStore(dbh)
		u, err := store.GetUserByEmail(cmd.Context(), strings.ToLower(args[0]))
		if errors.Is(err, content.ErrNotFound) {
			return fmt.Errorf("no account for %s", args[0])
		}
		if err != nil {
			return err
		}
		if u, err = store.UpdateUser(cmd.Context(), u.UID, content.UserPatch{Role: &r}); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", u.UID, u.Email, u.Role)
		return nil
	},
}

var userListCmd = &cobra.Command{
	Use:   "list",
	Short: "List accounts",
	RunE: func(cmd *cobra.Command, args []string) error {
		role, _ := cmd.Flags().GetString("role")
		cfg := loadConfig(cmd)
		dbh, err := openDB(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer dbh.Close()

		users, err := content.NewSQLStore(dbh).ListUsers(cmd.Context(), content.Role(role))
		if err != nil {
			return err
		}
		for _, u := range users {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\t%d\n", u.UID, u.Email, u.Role, u.Grade)
		}
		return nil
	},
}

func init() {
	userAddCmd.Flags().String("password", "", "Initial password")
	userAddCmd.Flags().String("name", "", "Display name")
	userAddCmd.Flags().String("role", string(content.RoleStudent), "Role: student, teacher or admin")
	userAddCmd.Flags().Int("grade", 5, "Grade 1..11")
	_ = userAddCmd.MarkFlagRequired("password")

	userListCmd.Flags().String("role", "", "Only list accounts with this role")

	userCmd.AddCommand(userAddCmd)
	userCmd.AddCommand(userRoleCmd)
	userCmd.AddCommand(userListCmd)
}
