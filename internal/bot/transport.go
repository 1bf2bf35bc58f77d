package bot

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/robfig/cron/v3"
)

// CommandFromUpdate extracts a command from a Telegram update.
func CommandFromUpdate(update tgbotapi.Update) (Command, bool) {
	m := update.Message
	if m == nil || m.Chat == nil || !m.IsCommand() {
		return Command{}, false
	}
	raw := m.CommandArguments()
	return Command{
		Name:      strings.ToLower(m.Command()),
		Args:      strings.Fields(raw),
		RawArgs:   raw,
		ChatID:    m.Chat.ID,
		MessageID: m.MessageID,
	}, true
}

// UpdateSource is the long polling side of the Bot API client.
type UpdateSource interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Poll handles updates from src until ctx is cancelled. Commands are
// handled one at a time in arrival order.
func (b *Bot) Poll(ctx context.Context, src UpdateSource, timeout int) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = timeout
	updates := src.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			src.StopReceivingUpdates()
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			cmd, ok := CommandFromUpdate(update)
			if !ok {
				continue
			}
			if err := b.Handle(ctx, cmd); err != nil {
				log.Printf("Warning: failed to reply to /%s: %v", cmd.Name, err)
			}
		}
	}
}

// Router serves Telegram webhook updates on path and a /health check.
func (b *Bot) Router(path string) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	if b.opts.Verbose {
		router.Use(gin.Logger())
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   b.opts.Now(),
		})
	})

	router.POST(path, func(c *gin.Context) {
		var update tgbotapi.Update
		if err := c.ShouldBindJSON(&update); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if cmd, ok := CommandFromUpdate(update); ok {
			if err := b.Handle(c.Request.Context(), cmd); err != nil {
				log.Printf("Warning: failed to reply to /%s: %v", cmd.Name, err)
			}
		}
		c.Status(http.StatusOK)
	})

	return router
}

// Serve runs the webhook server on addr until ctx is cancelled.
func (b *Bot) Serve(ctx context.Context, addr, path string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           b.Router(path),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Printf("Starting webhook server on %s", addr)
		errc <- server.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}

// StartScheduler runs RunScheduled on spec (standard 5-field cron) in the
// bot's timezone. Stop the returned scheduler on shutdown.
func (b *Bot) StartScheduler(ctx context.Context, spec string) (*cron.Cron, error) {
	c := cron.New(cron.WithLocation(b.opts.Location))
	if _, err := c.AddFunc(spec, func() { b.RunScheduled(ctx) }); err != nil {
		return nil, err
	}
	c.Start()
	log.Printf("Scheduled automatic send: %s (%s)", spec, b.opts.Location)
	return c, nil
}
