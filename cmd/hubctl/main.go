package main

import (
	"fmt"
	"os"

	"github.com/huangang/projecthub/backend/internal/config"
	"github.com/huangang/projecthub/backend/pkg/logger"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var configPath string

func main() {
	cmdHub := &cobra.Command{
		Use:   "hubctl",
		Short: "operator tool for the project hub",
		Long: "hubctl manages the project hub database: migrations, accounts,\n" +
			"bearer tokens and re-running side effects of a submission.",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			_ = godotenv.Load()
		},
	}
	cmdHub.PersistentFlags().StringVar(&configPath, "config", os.Getenv("CONFIG_PATH"), "path to config.yaml")

	cmdMigrate := &cobra.Command{
		Use:   "migrate",
		Short: "create or update the database schema",
		RunE:  CommandMigrate,
	}
	cmdHub.AddCommand(cmdMigrate)

	cmdUser := &cobra.Command{
		Use:   "user",
		Short: "manage accounts",
	}
	cmdUserAdd := &cobra.Command{
		Use:   "add <email>",
		Short: "add an account so roster emails resolve to it",
		Args:  cobra.ExactArgs(1),
		RunE:  CommandUserAdd,
	}
	cmdUserAdd.Flags().String("name", "", "display name")
	cmdUserAdd.Flags().String("role", "student", "role: student or admin")
	cmdUser.AddCommand(cmdUserAdd)
	cmdHub.AddCommand(cmdUser)

	cmdToken := &cobra.Command{
		Use:   "token <email>",
		Short: "mint a bearer token for an existing account",
		Args:  cobra.ExactArgs(1),
		RunE:  CommandToken,
	}
	cmdToken.Flags().Int("hours", 0, "token lifetime in hours (default: jwt.expire_hour)")
	cmdHub.AddCommand(cmdToken)

	cmdList := &cobra.Command{
		Use:   "list",
		Short: "list submissions",
		RunE:  CommandList,
	}
	cmdList.Flags().String("kind", "project", "project or workshop")
	cmdList.Flags().String("status", "", "only list submissions in this status")
	cmdHub.AddCommand(cmdList)

	cmdResend := &cobra.Command{
		Use:   "resend <id>",
		Short: "re-run notification and registration for a submission",
		Long: "   Re-sends the notification for the current status and, for an\n" +
			"   approved project, retries the external registration even if one\n" +
			"   is already on record.",
		Args: cobra.ExactArgs(1),
		RunE: CommandResend,
	}
	cmdResend.Flags().String("kind", "project", "project or workshop")
	cmdHub.AddCommand(cmdResend)

	if err := cmdHub.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	logger.Init(cfg.Log.Level)
	return cfg, nil
}
