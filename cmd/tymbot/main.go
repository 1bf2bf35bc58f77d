package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/theyoungmaker/schedule-bot/internal/auth"
	"github.com/theyoungmaker/schedule-bot/internal/bot"
	"github.com/theyoungmaker/schedule-bot/internal/calendar"
	"github.com/theyoungmaker/schedule-bot/internal/config"
	"github.com/theyoungmaker/schedule-bot/internal/export"
	"github.com/theyoungmaker/schedule-bot/internal/schedule"
)

func printHelp() {
	fmt.Fprintf(os.Stderr, `Schedule Bot

A Telegram bot that posts weekly lesson schedules from Google Calendar (or
iCalendar feeds) to a group chat, and builds payment spreadsheets from the
teacher assignments written in each lesson's description.

USAGE:
    %s [OPTIONS]

OPTIONS:
    -h, --help                    Show this help message and exit
    -v, --verbose                 Enable verbose output (show DEBUG logs)
    --config FILE                 Path to JSON or YAML config file (optional)
    --env-file FILE               Path to a .env file (default: ".env", ignored when missing)
    --headless                    Paste the Google authorization code instead of
                                  using a local browser redirect
    --bot-token TOKEN             Telegram bot token (overrides BOT_TOKEN)
    --group-chat-id ID            Chat receiving pushed schedules (overrides GROUPCHAT_ID)
    --admin-chat-id ID            Chat told the ID of every pushed schedule (overrides ADMIN_CHAT_ID)
    --token-path PATH             Path to store the Google OAuth token (overrides TOKEN_PATH)
    --google-credentials-path PATH Path to Google OAuth credentials JSON file
                                  (overrides GOOGLE_CREDENTIALS_PATH)
    --timezone NAME               IANA timezone for windows and messages (overrides TIMEZONE)
    --default-venue KEY           Venue used when a command names none (overrides DEFAULT_VENUE)
    --schedule-cron SPEC          Cron spec for automatic schedule pushes (overrides SCHEDULE_CRON)
    --webhook-url URL             Public webhook URL; long polling when empty (overrides WEBHOOK_URL)
    --listen-addr ADDR            Webhook listen address (overrides LISTEN_ADDR)

CONFIGURATION PRECEDENCE (highest to lowest):
    1. Command-line flags
    2. Environment variables (the .env file is loaded into the environment first)
    3. Config file (--config)
    4. Defaults

ENVIRONMENT VARIABLES:
    BOT_TOKEN, GROUPCHAT_ID, ADMIN_CHAT_ID, TOKEN_PATH, GOOGLE_CREDENTIALS_PATH,
    TIMEZONE, DEFAULT_VENUE, REMINDER, MESSAGE_LOG_PATH, REPORT_DIR, SCHEDULE_CRON,
    WEBHOOK_URL, LISTEN_ADDR, PREMIUM_HANDLES
    <VENUE>_CALENDAR_ID, <VENUE>_ICS_URL    Calendar of each venue (e.g. SOK_CALENDAR_ID)
    MINIO_ENDPOINT, MINIO_ACCESS_KEY, MINIO_SECRET_KEY, MINIO_BUCKET, MINIO_REGION,
    MINIO_PREFIX, MINIO_USE_SSL            Upload reports to object storage

COMMANDS:
    /schedule, /send, /edit, /report, /add_event, /postpone_event, /helpme

EXAMPLES:
    # Run with a .env file in the working directory
    %s

    # Run with a config file and verbose logging
    %s --config /path/to/config.yaml --verbose

    # Authorize on a server without a browser
    %s --headless

`, os.Args[0], os.Args[0], os.Args[0], os.Args[0])
}

func main() {
	// Parse command-line flags
	helpFlag := flag.Bool("help", false, "Show help message")
	helpFlagShort := flag.Bool("h", false, "Show help message (shorthand)")
	verboseFlag := flag.Bool("verbose", false, "Enable verbose output (show DEBUG logs)")
	verboseFlagShort := flag.Bool("v", false, "Enable verbose output (shorthand)")
	configFile := flag.String("config", "", "Path to JSON or YAML config file (optional)")
	envFile := flag.String("env-file", ".env", "Path to a .env file")
	headless := flag.Bool("headless", false, "Paste the Google authorization code instead of using a browser redirect")

	var overrides config.Overrides
	flag.StringVar(&overrides.BotToken, "bot-token", "", "Telegram bot token (overrides BOT_TOKEN)")
	flag.Int64Var(&overrides.GroupChatID, "group-chat-id", 0, "Chat receiving pushed schedules (overrides GROUPCHAT_ID)")
	flag.Int64Var(&overrides.AdminChatID, "admin-chat-id", 0, "Chat told the ID of every pushed schedule (overrides ADMIN_CHAT_ID)")
	flag.StringVar(&overrides.TokenPath, "token-path", "", "Path to store the Google OAuth token (overrides TOKEN_PATH)")
	flag.StringVar(&overrides.GoogleCredentialsPath, "google-credentials-path", "", "Path to Google OAuth credentials JSON file (overrides GOOGLE_CREDENTIALS_PATH)")
	flag.StringVar(&overrides.Timezone, "timezone", "", "IANA timezone (overrides TIMEZONE)")
	flag.StringVar(&overrides.DefaultVenue, "default-venue", "", "Venue used when a command names none (overrides DEFAULT_VENUE)")
	flag.StringVar(&overrides.ScheduleCron, "schedule-cron", "", "Cron spec for automatic schedule pushes (overrides SCHEDULE_CRON)")
	flag.StringVar(&overrides.WebhookURL, "webhook-url", "", "Public webhook URL (overrides WEBHOOK_URL)")
	flag.StringVar(&overrides.ListenAddr, "listen-addr", "", "Webhook listen address (overrides LISTEN_ADDR)")
	flag.Parse()

	verbose := *verboseFlag || *verboseFlagShort

	// Show help if requested
	if *helpFlag || *helpFlagShort {
		printHelp()
		os.Exit(0)
	}

	// Set up logging
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load configuration (precedence: flags > env vars > config file > defaults)
	if err := config.LoadDotEnv(*envFile); err != nil {
		log.Fatalf("Failed to load env file: %v", err)
	}
	cfg, err := config.LoadConfig(*configFile, overrides)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	loc := cfg.Location()

	// Google Calendar is only needed when a venue is not an ICS feed
	var googleClient calendar.CalendarClient
	if needsGoogle(cfg.Venues) {
		httpClient, err := googleHTTPClient(ctx, cfg, *headless)
		if err != nil {
			log.Fatalf("Failed to authenticate Google account: %v", err)
		}
		client, err := calendar.NewClient(ctx, httpClient)
		if err != nil {
			log.Fatalf("Failed to create calendar client: %v", err)
		}
		googleClient = client
	}
	icsClient := calendar.NewICSClient(nil, loc)

	api, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		log.Fatalf("Failed to create Telegram client: %v", err)
	}
	api.Debug = verbose
	log.Printf("Authorized on account %s", api.Self.UserName)

	sinks, err := reportSinks(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to set up report storage: %v", err)
	}

	reminder := cfg.Reminder
	if reminder == "" {
		reminder = schedule.DefaultReminder
	}

	b := bot.New(bot.Options{
		GroupChatID:  cfg.GroupChatID,
		AdminChatID:  cfg.AdminChatID,
		Venues:       cfg.Venues,
		DefaultVenue: cfg.DefaultVenue,
		Location:     loc,
		Reminder:     reminder,
		Rates:        cfg.Rates.Table(),
		Sinks:        sinks,
		Log:          bot.NewMessageLog(cfg.MessageLogPath, loc),
		Verbose:      verbose,
	}, bot.NewTelegramMessenger(api), googleClient, icsClient)

	if cfg.ScheduleCron != "" {
		scheduler, err := b.StartScheduler(ctx, cfg.ScheduleCron)
		if err != nil {
			log.Fatalf("Failed to schedule automatic send: %v", err)
		}
		defer scheduler.Stop()
	}

	if cfg.WebhookURL != "" {
		err = runWebhook(ctx, api, b, cfg)
	} else {
		err = runPolling(ctx, api, b, cfg)
	}
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Bot stopped: %v", err)
	}

	log.Println("Bot stopped.")
}

func needsGoogle(venues []config.Venue) bool {
	for _, v := range venues {
		if !v.IsICS() {
			return true
		}
	}
	return false
}

func googleHTTPClient(ctx context.Context, cfg *config.Config, headless bool) (*http.Client, error) {
	// Load Google OAuth credentials from the credentials file
	clientID, clientSecret, err := config.LoadGoogleCredentials(cfg.GoogleCredentialsPath)
	if err != nil {
		return nil, err
	}
	oauthConfig := auth.NewOAuthConfig(clientID, clientSecret)
	tokenStore := auth.NewFileTokenStore(cfg.TokenPath)

	if headless {
		return auth.GetAuthenticatedClientWithReader(ctx, oauthConfig, tokenStore, os.Stdin, os.Stdout)
	}
	return auth.GetAuthenticatedClient(ctx, oauthConfig, tokenStore, os.Stdout)
}

func reportSinks(ctx context.Context, cfg *config.Config) ([]export.Sink, error) {
	var sinks []export.Sink
	if cfg.ReportDir != "" {
		sinks = append(sinks, export.DirSink{Dir: cfg.ReportDir})
	}
	if cfg.MinIO != nil {
		m := cfg.MinIO
		sink, err := export.NewMinIOSink(export.MinIOOptions{
			Endpoint:  m.Endpoint,
			AccessKey: m.AccessKey,
			SecretKey: m.SecretKey,
			Bucket:    m.Bucket,
			Region:    m.Region,
			Prefix:    m.Prefix,
			UseSSL:    m.UseSSL,
			URLTTL:    m.URLTTL(),
		})
		if err != nil {
			return nil, err
		}
		if err := sink.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		sinks = append(sinks, sink)
	}
	return sinks, nil
}

func runWebhook(ctx context.Context, api *tgbotapi.BotAPI, b *bot.Bot, cfg *config.Config) error {
	u, err := url.Parse(cfg.WebhookURL)
	if err != nil {
		return fmt.Errorf("invalid webhook url: %w", err)
	}
	path := u.Path
	if path == "" {
		path = "/"
	}

	wh, err := tgbotapi.NewWebhook(cfg.WebhookURL)
	if err != nil {
		return fmt.Errorf("failed to build webhook: %w", err)
	}
	if _, err := api.Request(wh); err != nil {
		return fmt.Errorf("failed to register webhook: %w", err)
	}
	log.Printf("Webhook registered at %s", cfg.WebhookURL)

	return b.Serve(ctx, cfg.ListenAddr, path)
}

func runPolling(ctx context.Context, api *tgbotapi.BotAPI, b *bot.Bot, cfg *config.Config) error {
	// A registered webhook blocks getUpdates
	if _, err := api.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		log.Printf("Warning: failed to delete webhook: %v", err)
	}
	log.Println("Polling for updates...")
	return b.Poll(ctx, api, cfg.PollTimeout)
}
