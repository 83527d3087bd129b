package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/huangang/projecthub/backend/internal/config"
	"github.com/huangang/projecthub/backend/internal/models"
	"github.com/huangang/projecthub/backend/internal/services"
	"github.com/huangang/projecthub/backend/internal/utils"
	"github.com/huangang/projecthub/backend/internal/workflow"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

func openDB() (*config.Config, *gorm.DB, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	db, err := models.Open(&cfg.Database, cfg.Log.Level)
	if err != nil {
		return nil, nil, err
	}
	return cfg, db, nil
}

func kindFlag(cmd *cobra.Command) (workflow.Kind, error) {
	raw, _ := cmd.Flags().GetString("kind")
	kind, ok := workflow.ParseKind(raw)
	if !ok {
		return "", fmt.Errorf("unknown kind %q (expected project or workshop)", raw)
	}
	return kind, nil
}

func CommandMigrate(cmd *cobra.Command, args []string) error {
	_, db, err := openDB()
	if err != nil {
		return err
	}
	if err := models.Migrate(db); err != nil {
		return fmt.Errorf("migrating: %w", err)
	}
	fmt.Println("schema is up to date")
	return nil
}

func CommandUserAdd(cmd *cobra.Command, args []string) error {
	_, db, err := openDB()
	if err != nil {
		return err
	}

	name, _ := cmd.Flags().GetString("name")
	rawRole, _ := cmd.Flags().GetString("role")
	role := workflow.Role(rawRole)
	if role != workflow.RoleStudent && role != workflow.RoleAdmin {
		return fmt.Errorf("unknown role %q (expected student or admin)", rawRole)
	}

	user, err := services.NewUserService(db).Create(cmd.Context(), args[0], name, role)
	if err != nil {
		return fmt.Errorf("adding user: %w", err)
	}
	fmt.Printf("added %s (%s) with id %s\n", user.Email, user.Role, user.ID)
	return nil
}

func CommandToken(cmd *cobra.Command, args []string) error {
	cfg, db, err := openDB()
	if err != nil {
		return err
	}

	user, err := services.NewUserService(db).GetByEmail(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("no account for %s: %w", args[0], err)
	}

	hours, _ := cmd.Flags().GetInt("hours")
	if hours <= 0 {
		hours = cfg.JWT.ExpireHour
	}

	utils.SetJWTSecret(cfg.JWT.Secret)
	token, err := utils.GenerateToken(user.ID, user.Name, user.Email, user.Role, hours)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}

func CommandList(cmd *cobra.Command, args []string) error {
	_, db, err := openDB()
	if err != nil {
		return err
	}
	kind, err := kindFlag(cmd)
	if err != nil {
		return err
	}

	rawStatus, _ := cmd.Flags().GetString("status")
	var status workflow.Status
	if rawStatus != "" {
		st, ok := workflow.ParseStatus(rawStatus)
		if !ok {
			return fmt.Errorf("unknown status %q", rawStatus)
		}
		status = st
	}

	subs, err := services.NewSubmissionStore(db).FindByStatus(cmd.Context(), kind, status)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tTITLE\tSUBMITTER\tMEMBERS\tCREATED")
	for _, sub := range subs {
		base := sub.Base()
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
			base.ID, base.Status, sub.Title(), base.Submitter.Email, base.MemberCount,
			base.CreatedAt.Format("2006-01-02 15:04"))
	}
	return w.Flush()
}

func CommandResend(cmd *cobra.Command, args []string) error {
	cfg, db, err := openDB()
	if err != nil {
		return err
	}
	kind, err := kindFlag(cmd)
	if err != nil {
		return err
	}

	services.InitSystemLogger(db)

	timeout := cfg.SideEffectTimeout()
	store := services.NewSubmissionStore(db)
	dispatcher := services.NewDispatcher(store, services.NewNotifier(cfg),
		services.NewRegistrar(cfg.Registrar, timeout), cfg.App.FrontendURL, timeout)

	// always inline, so the outcome can be printed
	queue := services.NewSyncQueue()
	queue.SetProcessor(dispatcher.Process)

	sub, err := services.NewSubmissionService(store, services.NewUserService(db), queue).Resend(cmd.Context(), kind, args[0])
	if err != nil {
		return err
	}

	fmt.Printf("side effects re-run for %s %s (%s)\n", kind, sub.Base().ID, sub.Base().Status)
	if p, ok := sub.(*models.Project); ok && p.ExternalRequest != nil {
		if p.ExternalRequest.Sent {
			fmt.Printf("registered at %s\n", p.ExternalRequest.SentAt.Format("2006-01-02 15:04:05"))
		} else {
			fmt.Printf("registration failed: %s\n", p.ExternalRequest.Error)
		}
	}
	return nil
}
