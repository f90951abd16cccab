package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"TradeSentinel/internal/engine"
	"TradeSentinel/internal/model"
)

// CommandHandler is called when a user command is received.
type CommandHandler func(ctx context.Context, command string) string

// Bot is the engine surface the chat commands need.
type Bot interface {
	Status() engine.Status
	Trades(limit int) []model.Trade
	RunCycle(ctx context.Context) (*model.CycleResult, error)
}

// NewCommandHandler answers /status, /portfolio, /trades, /risk, /run and /help.
func NewCommandHandler(bot Bot) CommandHandler {
	return func(ctx context.Context, command string) string {
		fields := strings.Fields(command)
		if len(fields) == 0 {
			return ""
		}
		// "/status@MyBot" in group chats
		cmd, _, _ := strings.Cut(strings.ToLower(fields[0]), "@")

		switch cmd {
		case "/status":
			return FormatStatus(bot.Status())
		case "/portfolio":
			s := bot.Status()
			return FormatPortfolio(s.Portfolio, s.InitialUSD)
		case "/trades":
			return FormatTrades(bot.Trades(10))
		case "/risk":
			s := bot.Status()
			return FormatRisk(s.RiskStatistics, s.Positions)
		case "/run":
			result, err := bot.RunCycle(ctx)
			if errors.Is(err, engine.ErrCycleInProgress) {
				return "⏳ A cycle is already running."
			}
			if err != nil {
				return "❌ Cycle failed: " + err.Error()
			}
			return FormatCycleSummary(result)
		case "/help", "/start":
			return "Commands: /status /portfolio /trades /risk /run"
		default:
			return ""
		}
	}
}

// telegramUpdate represents a Telegram update from long polling.
type telegramUpdate struct {
	UpdateID int `json:"update_id"`
	Message  *struct {
		Text string `json:"text"`
	} `json:"message"`
}

// StartPolling begins long-polling for Telegram commands. Blocks until ctx is cancelled.
func (t *TelegramNotifier) StartPolling(ctx context.Context, handler CommandHandler) {
	offset := 0
	client := &http.Client{Timeout: 35 * time.Second, Transport: t.Client.Transport}

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("telegram polling stopped")
			return
		default:
		}

		apiURL := fmt.Sprintf("%s?offset=%d&timeout=30", t.endpoint("getUpdates"), offset)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
		if err != nil {
			log.Error().Err(err).Msg("create polling request")
			return
		}

		resp, err := client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				log.Info().Msg("telegram polling stopped")
				return
			}
			log.Warn().Err(err).Msg("polling request failed")
			sleep(ctx, 5*time.Second)
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			log.Warn().Err(err).Msg("read polling response")
			continue
		}

		var result struct {
			OK     bool             `json:"ok"`
			Result []telegramUpdate `json:"result"`
		}
		if err := json.Unmarshal(body, &result); err != nil {
			log.Warn().Err(err).Msg("decode polling response")
			sleep(ctx, 5*time.Second)
			continue
		}

		for _, update := range result.Result {
			offset = update.UpdateID + 1
			if update.Message == nil || update.Message.Text == "" {
				continue
			}
			text := strings.TrimSpace(update.Message.Text)
			log.Info().Str("command", text).Msg("received command")
			reply := handler(ctx, text)
			if reply != "" {
				if err := t.Send(ctx, reply); err != nil {
					log.Error().Err(err).Msg("send reply")
				}
			}
		}
	}
}

func sleep(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
