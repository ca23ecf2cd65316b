package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spec-kit/bug-tracker/internal/app"
	"github.com/spec-kit/bug-tracker/internal/config"
	"github.com/spec-kit/bug-tracker/internal/domain"
	"github.com/spec-kit/bug-tracker/internal/observability"
	"github.com/spec-kit/bug-tracker/internal/repository"
	"github.com/spec-kit/bug-tracker/internal/service"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage accounts",
}

var (
	createName     string
	createEmail    string
	createPassword string
	createRole     string
	listRole       string
)

// userCreateCmd provisions an account of any role, including the first admin.
var userCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an account",
	RunE: func(cmd *cobra.Command, _ []string) error {
		env, err := loadEnv()
		if err != nil {
			return err
		}
		defer env.close()

		stores, closeStores, err := app.OpenStores(cmd.Context(), env.cfg, env.logger)
		if err != nil {
			return err
		}
		defer closeStores()

		user, err := service.NewAuthService(*env.cfg, stores.Users).Provision(cmd.Context(), service.RegisterInput{
			Name:     createName,
			Email:    createEmail,
			Password: createPassword,
			Role:     createRole,
		})
		if err != nil {
			return err
		}
		cmd.Printf("created %s %s (%s)\n", user.Role, user.Email, user.ID)
		return nil
	},
}

var userListCmd = &cobra.Command{
	Use:   "list",
	Short: "List accounts",
	RunE: func(cmd *cobra.Command, _ []string) error {
		env, err := loadEnv()
		if err != nil {
			return err
		}
		defer env.close()

		filter := repository.UserFilter{}
		if listRole != "" {
			role, ok := domain.ParseRole(listRole)
			if !ok {
				return fmt.Errorf("unknown role %q", listRole)
			}
			filter.Role = &role
		}

		stores, closeStores, err := app.OpenStores(cmd.Context(), env.cfg, env.logger)
		if err != nil {
			return err
		}
		defer closeStores()

		users, err := stores.Users.List(cmd.Context(), filter)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tEMAIL\tROLE\tCREATED")
		for _, u := range users {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", u.ID, u.Name, u.Email, u.Role, u.CreatedAt.Format("2006-01-02"))
		}
		return w.Flush()
	},
}

func init() {
	userCreateCmd.Flags().StringVar(&createName, "name", "", "display name")
	userCreateCmd.Flags().StringVar(&createEmail, "email", "", "login email")
	userCreateCmd.Flags().StringVar(&createPassword, "password", "", "initial password (min 6 characters)")
	userCreateCmd.Flags().StringVar(&createRole, "role", string(domain.RoleDeveloper), "one of "+roleNames())
	_ = userCreateCmd.MarkFlagRequired("name")
	_ = userCreateCmd.MarkFlagRequired("email")
	_ = userCreateCmd.MarkFlagRequired("password")

	userListCmd.Flags().StringVar(&listRole, "role", "", "only list accounts with this role")

	userCmd.AddCommand(userCreateCmd, userListCmd)
}

func roleNames() string {
	names := make([]string, 0, len(domain.Roles))
	for _, r := range domain.Roles {
		names = append(names, string(r))
	}
	return strings.Join(names, ", ")
}

type cliEnv struct {
	cfg    *config.Config
	logger *zap.Logger
}

func (e cliEnv) close() {
	_ = e.logger.Sync()
}

// loadEnv reads configuration and builds a quiet logger for CLI use.
func loadEnv() (cliEnv, error) {
	cfg, err := config.Load()
	if err != nil {
		return cliEnv{}, err
	}
	loggerCfg := cfg.Logger
	if loggerCfg.Level == "info" {
		loggerCfg.Level = "warn"
	}
	logger, err := observability.NewLogger(cfg.App, loggerCfg)
	if err != nil {
		return cliEnv{}, err
	}
	return cliEnv{cfg: cfg, logger: logger}, nil
}
