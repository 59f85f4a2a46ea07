package telegram

import (
	"context"
	"errors"
	"net"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/yungbote/medreport-backend/internal/config"
	"github.com/yungbote/medreport-backend/internal/pipeline"
	"github.com/yungbote/medreport-backend/internal/platform/httpx"
	"github.com/yungbote/medreport-backend/internal/platform/logger"
)

// botAPI is the subset of *tgbotapi.BotAPI the bot uses.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdates(cfg tgbotapi.UpdateConfig) ([]tgbotapi.Update, error)
	GetFileDirectURL(fileID string) (string, error)
}

// Bot is a chat frontend over the report pipeline. Each chat holds at most
// one active report; a new upload replaces it.
type Bot struct {
	api      botAPI
	svc      *pipeline.Service
	log      *logger.Logger
	client   *http.Client
	maxBytes int64

	mu       sync.Mutex
	sessions map[int64]string
}

func New(cfg config.TelegramConfig, svc *pipeline.Service, maxBytes int64, log *logger.Logger) (*Bot, error) {
	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, errors.New("telegram: bot token is required")
	}
	logger.RegisterSecret(token)
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, errors.New("telegram: " + logger.Scrub(err.Error()))
	}
	api.Debug = cfg.Debug
	b := newBot(api, svc, maxBytes, log)
	b.log.Info("telegram bot authorized", "username", api.Self.UserName)
	return b, nil
}

func newBot(api botAPI, svc *pipeline.Service, maxBytes int64, log *logger.Logger) *Bot {
	if log == nil {
		log = logger.Nop()
	}
	return &Bot{
		api:      api,
		svc:      svc,
		log:      log.With("service", "TelegramBot"),
		client:   &http.Client{Timeout: 60 * time.Second},
		maxBytes: maxBytes,
		sessions: map[int64]string{},
	}
}

func (b *Bot) sessionFor(chatID int64) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id, ok := b.sessions[chatID]
	return id, ok
}

func (b *Bot) setSession(chatID int64, id string) {
	b.mu.Lock()
	b.sessions[chatID] = id
	b.mu.Unlock()
}

func (b *Bot) dropSession(chatID int64) {
	b.mu.Lock()
	delete(b.sessions, chatID)
	b.mu.Unlock()
}

var reRetryAfter = regexp.MustCompile(`(?i)retry after\s+(\d+)`)

func retryDelayFromError(err error) time.Duration {
	if err == nil {
		return 0
	}
	var tgErr *tgbotapi.Error
	if errors.As(err, &tgErr) && tgErr.RetryAfter > 0 {
		return time.Duration(tgErr.RetryAfter) * time.Second
	}
	s := strings.ToLower(err.Error())
	if strings.Contains(s, "too many requests") {
		if m := reRetryAfter.FindStringSubmatch(s); len(m) == 2 {
			if n, _ := strconv.Atoi(m[1]); n > 0 {
				return time.Duration(n) * time.Second
			}
		}
		return 3 * time.Second
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return 2 * time.Second
	}
	return time.Second
}

// Run long-polls for updates until ctx is cancelled. Updates are handled
// sequentially in arrival order.
func (b *Bot) Run(ctx context.Context) error {
	offset := 0
	baseDelay := time.Second
	maxDelay := 15 * time.Second

	b.log.Info("telegram polling started")
	for {
		if err := ctx.Err(); err != nil {
			b.log.Info("telegram polling stopped")
			return nil
		}

		u := tgbotapi.NewUpdate(offset)
		u.Timeout = 30

		updates, err := b.api.GetUpdates(u)
		if err != nil {
			d := retryDelayFromError(err)
			if d < baseDelay {
				d = baseDelay
			}
			if d > maxDelay {
				d = maxDelay
			}
			b.log.Warn("telegram polling error", "error", err, "retry_in", d.String())
			if err := httpx.Sleep(ctx, d); err != nil {
				return nil
			}
			continue
		}

		for _, upd := range updates {
			if upd.UpdateID >= offset {
				offset = upd.UpdateID + 1
			}
			b.HandleUpdate(ctx, upd)
		}
	}
}
