package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rushroster/rushroster-cloud/internal/repository"
	"github.com/rushroster/rushroster-cloud/internal/service"
)

func UserCmd() *cobra.Command {
	userCmd := &cobra.Command{
		Use:   "user",
		Short: "Manage dashboard users",
	}

	var (
		email    string
		password string
		fullName string
		admin    bool
	)

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a user, even when self-registration is disabled",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, database, err := openMigrated()
			if err != nil {
				return err
			}
			defer database.Close()

			auth := service.NewAuthService(repository.NewUserRepository(database), cfg.JWTSecret, cfg.JWTExpiry, cfg.AllowRegistration)
			user, err := auth.CreateUser(cmd.Context(), service.RegisterInput{
				Email:    email,
				Password: password,
				FullName: fullName,
			}, admin)
			if errors.Is(err, service.ErrEmailAlreadyExists) {
				return fmt.Errorf("a user with email %s already exists", email)
			}
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "created user %s (%s, admin=%t)\n", user.ID, user.Email, user.IsAdmin)
			return nil
		},
	}
	createCmd.Flags().StringVar(&email, "email", "", "email address (required)")
	createCmd.Flags().StringVar(&password, "password", "", "password, 12 to 72 characters (required)")
	createCmd.Flags().StringVar(&fullName, "name", "", "full name")
	createCmd.Flags().BoolVar(&admin, "admin", false, "grant administrator rights")
	_ = createCmd.MarkFlagRequired("email")
	_ = createCmd.MarkFlagRequired("password")

	userCmd.AddCommand(createCmd)
	return userCmd
}
