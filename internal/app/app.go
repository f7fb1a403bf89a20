package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/cxbot/core/bootstrap"
	corecmd "github.com/m3rciful/cxbot/core/cmd"
	"github.com/m3rciful/cxbot/core/logger"
	coretelegram "github.com/m3rciful/cxbot/core/telegram"
	"github.com/m3rciful/cxbot/core/telegram/commands"
	tghelpers "github.com/m3rciful/cxbot/core/telegram/helpers"
	"github.com/m3rciful/cxbot/core/telegram/keyboard"
	"github.com/m3rciful/cxbot/core/telegram/router"
	"github.com/m3rciful/cxbot/internal/delivery"
	"github.com/m3rciful/cxbot/internal/quiz"
	"github.com/m3rciful/cxbot/internal/results"
	"github.com/m3rciful/cxbot/internal/session"
)

// App owns the assembled bot: session storage, the outbound client, the
// results pipeline, and the quiz engine.
type App struct {
	cfg        *Config
	db         *sqlx.DB
	store      session.Store
	client     *delivery.Client
	dispatcher *results.Dispatcher
	engine     *quiz.Engine
	health     *healthServer
}

// Bootstrap initializes infrastructure and assembles the application.
// Without a database host the bot runs on in-memory sessions, which is the
// single-instance deployment mode.
func Bootstrap(carrier corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
	cfg, ok := carrier.(*Config)
	if !ok {
		return nil, fmt.Errorf("app: unexpected config type %T", carrier)
	}

	var db *sqlx.DB
	var store session.Store
	if cfg.Database.Host != "" {
		res, err := bootstrap.Run(bootstrap.Options{
			Config:   cfg.CoreConfig(),
			Database: cfg.Database,
		})
		if err != nil {
			return nil, err
		}
		db = res.DB
		store = session.NewPostgresStore(db)
	} else {
		if err := logger.InitLogger(cfg.CoreConfig()); err != nil {
			return nil, fmt.Errorf("app: logger init failed: %w", err)
		}
		store = session.NewMemoryStore()
		logger.L.With("component", "app").Warn("no database configured, sessions are in-memory",
			slog.String("event", "session.store.memory"),
		)
	}

	content, err := quiz.LoadContent(cfg.Quiz.ContentPath)
	if err != nil {
		return nil, fmt.Errorf("app: quiz content: %w", err)
	}

	client := delivery.NewClient(delivery.DefaultPolicy(), buildMarkups(content))

	var sink results.Sink = results.NopSink{}
	if cfg.Sheets.SpreadsheetID != "" {
		s, err := results.NewSheetsSink(context.Background(), cfg.Sheets, delivery.DefaultPolicy())
		if err != nil {
			// Results are best-effort: a broken sheets setup must not keep
			// the bot from answering users.
			logger.Warn(context.Background(), "service.results", "sink.init.failed",
				slog.String("err", err.Error()),
			)
		} else {
			sink = s
		}
	}
	dispatcher := results.NewDispatcher(sink, results.DispatcherOptions{})

	engine, err := quiz.NewEngine(quiz.Options{
		Content:        content,
		Store:          store,
		Sender:         client,
		Results:        dispatcher,
		Contact:        cfg.Quiz.ContactUsername,
		RepromptWindow: time.Duration(cfg.Quiz.RepromptWindowMS) * time.Millisecond,
	})
	if err != nil {
		return nil, err
	}

	return &App{
		cfg:        cfg,
		db:         db,
		store:      store,
		client:     client,
		dispatcher: dispatcher,
		engine:     engine,
	}, nil
}

// buildMarkups derives the two reply keyboards from the content table: one
// row per role button plus the exit row, and the fixed answer row.
func buildMarkups(content *quiz.Content) delivery.Markups {
	var roleRows [][]string
	for _, label := range content.ButtonLabels() {
		roleRows = append(roleRows, []string{label})
	}
	roleRows = append(roleRows, []string{quiz.ExitButton})

	return delivery.Markups{
		Roles: keyboard.ReplyButtons(roleRows...),
		Answers: keyboard.ReplyButtons(
			[]string{"A", "B", "C"},
			[]string{quiz.ExitButton},
		),
	}
}

// HandleText feeds a text update into the quiz engine.
func (a *App) HandleText(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	ctx := tghelpers.BuildContext(c)
	return a.engine.Handle(ctx, quiz.Event{
		ID:       int64(c.Update().ID),
		UserID:   sender.ID,
		Username: sender.Username,
		Text:     c.Text(),
	})
}

func (a *App) statsHandler(c tele.Context) error {
	sessions := -1
	if counter, ok := a.store.(interface{ Len() int }); ok {
		sessions = counter.Len()
	}
	text := fmt.Sprintf(
		"sessions: %d\nresults recorded: %d\nresults failed: %d",
		sessions, a.dispatcher.RecordedCount(), a.dispatcher.ErrorCount(),
	)
	return tghelpers.SendText(c, text)
}

// TelegramRunOptions assembles routes, middlewares, and lifecycle hooks.
func (a *App) TelegramRunOptions() (coretelegram.RunOptions, error) {
	reg := coretelegram.NewRegistry()
	reg.RegisterCommand("/start", commands.Command{
		Handler:     a.HandleText,
		Description: "Почати тест",
	})
	reg.RegisterCommand("/cancel", commands.Command{
		Handler:     a.HandleText,
		Description: "Завершити сесію",
		Aliases:     []string{"stop"},
	})
	reg.RegisterCommand("/stats", commands.Command{
		Handler:     a.statsHandler,
		Description: "Service counters",
		AdminOnly:   true,
		Hidden:      true,
	})

	routes := router.TextRoutes(a, reg, router.TextOptions{})
	routes = append(routes, router.CommandRoutes(reg, router.CommandRouteOptions{
		AdminID: a.cfg.Telegram.AdminID,
	})...)

	return coretelegram.RunOptions{
		Config:      a.cfg.CoreConfig(),
		Registry:    reg,
		Middlewares: coretelegram.DefaultMiddlewares(a.cfg.CoreConfig(), nil),
		Routes:      routes,
		OnStart: func(ctx context.Context, rt coretelegram.Runtime) error {
			a.client.Bind(rt.Bot)
			if a.cfg.Health.Listen != "" {
				a.health = startHealth(a.cfg.Health.Listen)
			}
			return nil
		},
		OnStop: func(ctx context.Context, rt coretelegram.Runtime) error {
			a.dispatcher.Close()
			if a.health != nil {
				a.health.Close(ctx)
			}
			if a.db != nil {
				_ = a.db.Close()
			}
			return nil
		},
	}, nil
}
