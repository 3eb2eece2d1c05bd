// cleanup 删除指定天数之前已读的通知
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"messaging-app/config"
	"messaging-app/models"
	"messaging-app/services"

	"github.com/gookit/color"
	"gorm.io/gorm"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		color.Error.Println(err)
		os.Exit(1)
	}
	days := flag.Int("days", cfg.NotificationRetentionDays, "delete read notifications older than this many days")
	dryRun := flag.Bool("dry-run", false, "only report how many notifications would be deleted")
	flag.Parse()

	log := config.NewLogger(cfg.LogLevel)
	if err := config.InitDB(cfg, log); err != nil {
		color.Error.Println(err)
		os.Exit(1)
	}
	if err := models.Migrate(config.DB); err != nil {
		color.Error.Println(err)
		os.Exit(1)
	}
	if err := cleanup(os.Stdout, config.DB, *days, *dryRun); err != nil {
		color.Error.Println(err)
		os.Exit(1)
	}
}

func cleanup(out io.Writer, db *gorm.DB, days int, dryRun bool) error {
	n, err := services.CleanupOldNotifications(db, days, dryRun)
	if err != nil {
		return err
	}
	switch {
	case dryRun:
		fmt.Fprintln(out, color.New(color.FgYellow).Render(
			fmt.Sprintf("Would delete %d notifications older than %d days", n, days)))
	case n == 0:
		fmt.Fprintln(out, color.New(color.FgYellow).Render("No old notifications to delete"))
	default:
		fmt.Fprintln(out, color.New(color.FgGreen).Render(
			fmt.Sprintf("Successfully deleted %d old notifications", n)))
	}
	return nil
}
