package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"time"

	"github.com/fiffu/mangawatch/app"
	"github.com/fiffu/mangawatch/config"
	"github.com/fiffu/mangawatch/lib/document"
	"github.com/fiffu/mangawatch/lib/notifier"
	"github.com/fiffu/mangawatch/lib/scraper"
	"github.com/fiffu/mangawatch/senders"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "mangawatch",
		Short:        "Telegram bot that follows mangas and announces new chapters",
		SilenceUsage: true,
		RunE:         runServe,
	}
	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the bot, the notifier and the ops API (default)",
			RunE:  runServe,
		},
		&cobra.Command{
			Use:   "reconcile",
			Short: "Run one notifier pass and print its report",
			RunE:  runReconcile,
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Create or update the database schema",
			RunE:  runMigrate,
		},
	)
	return root
}

func baseOptions() fx.Option {
	return fx.Options(
		fx.Provide(config.NewConfig),
		fx.Provide(NewLogger),
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log.Named("fx")}
		}),

		fx.Provide(app.NewDatabase),
		fx.Provide(app.NewService),
	)
}

func domainOptions() fx.Option {
	return fx.Options(
		baseOptions(),

		fx.Provide(app.NewTransport),
		fx.Provide(app.NewBotAPI),
		fx.Provide(scraper.NewWeebCentral),
		fx.Provide(document.NewAssembler),

		fx.Provide(senders.NewTelegram),
		fx.Provide(senders.NewSenderRegistry),
		fx.Provide(senders.NewReporter),

		fx.Provide(app.NewNotifier),
	)
}

func runServe(cmd *cobra.Command, args []string) error {
	fxApp := fx.New(
		domainOptions(),

		fx.Provide(app.NewEngine),
		fx.Provide(app.NewBot),
		fx.Provide(app.NewAPI),

		fx.Invoke(notifier.RunNotifier),
		fx.Invoke(func(*http.Server, *app.Bot) {}),
	)
	if err := fxApp.Err(); err != nil {
		return err
	}
	fxApp.Run()
	return nil
}

func runReconcile(cmd *cobra.Command, args []string) error {
	var n *notifier.Notifier
	fxApp := fx.New(domainOptions(), fx.Populate(&n))

	return withApp(cmd.Context(), fxApp, func(ctx context.Context) error {
		report := n.Reconcile(ctx)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(app.PassReportView{}.From(report))
	})
}

func runMigrate(cmd *cobra.Command, args []string) error {
	var log *zap.Logger
	var db *gorm.DB // NewDatabase migrates, so it has to be requested
	fxApp := fx.New(baseOptions(), fx.Populate(&log, &db))

	return withApp(cmd.Context(), fxApp, func(ctx context.Context) error {
		log.Sugar().Infow("Migrations completed", "dialect", db.Dialector.Name())
		return nil
	})
}

// withApp starts a short-lived application, runs fn and stops it again.
func withApp(ctx context.Context, fxApp *fx.App, fn func(ctx context.Context) error) error {
	if ctx == nil {
		ctx = context.Background()
	}

	startCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := fxApp.Start(startCtx); err != nil {
		return err
	}

	runErr := fn(ctx)

	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := fxApp.Stop(stopCtx); err != nil && runErr == nil {
		return err
	}
	return runErr
}
