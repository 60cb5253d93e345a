package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/lumate/voicecoach/internal/channel"
	"github.com/lumate/voicecoach/internal/model/audio"
	"github.com/lumate/voicecoach/internal/service/pipeline"
)

const welcomeText = "Welcome to Lumate, your digital life coach. How can I help you today?"

const helpText = `I'm a voice chatbot, here to talk with you! Here's what you can do:

- Send me a voice message and I'll respond with a voice message.
- Use /list to see a list of available voices.
- Use /voice <voice_id> to change the voice I use to respond and reset the conversation.
- Use /who to see what voice I currently am.
- Use /help to see this help message again.`

// Adapter bridges Telegram updates to the pipeline orchestrator.
type Adapter struct {
	token        string
	orchestrator channel.Orchestrator
	bot          *tgbotapi.BotAPI
	client       *http.Client
	logger       zerolog.Logger
}

// New creates the Telegram adapter. It stays disabled without a token.
func New(token string, orchestrator channel.Orchestrator, logger zerolog.Logger) *Adapter {
	return &Adapter{
		token:        token,
		orchestrator: orchestrator,
		client:       &http.Client{Timeout: 60 * time.Second},
		logger:       logger.With().Str("component", "telegram").Logger(),
	}
}

func (a *Adapter) Name() string {
	return "telegram"
}

func (a *Adapter) Enabled() bool {
	return a.token != ""
}

// Start connects to the Bot API and consumes updates until ctx is canceled.
// Each update is handled in its own goroutine; per-user ordering is the
// orchestrator's job, not the transport's.
func (a *Adapter) Start(ctx context.Context) error {
	bot, err := tgbotapi.NewBotAPI(a.token)
	if err != nil {
		return fmt.Errorf("connect bot API: %w", err)
	}
	a.bot = bot
	a.logger.Info().Str("username", bot.Self.UserName).Msg("bot authorized")

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := bot.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil {
				continue
			}
			go a.handleMessage(ctx, update.Message)
		}
	}
}

// Stop halts the update polling loop.
func (a *Adapter) Stop() error {
	if a.bot != nil {
		a.bot.StopReceivingUpdates()
	}
	return nil
}

func (a *Adapter) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	userID := strconv.FormatInt(msg.Chat.ID, 10)

	if msg.IsCommand() {
		a.handleCommand(ctx, userID, msg)
		return
	}
	a.handleUtterance(ctx, userID, msg)
}

func (a *Adapter) handleCommand(ctx context.Context, userID string, msg *tgbotapi.Message) {
	switch msg.Command() {
	case "start":
		a.sendText(userID, welcomeText)
		a.sendTyping(userID)
		reply, err := a.orchestrator.StartSession(ctx, userID)
		a.deliver(userID, reply, err)

	case "voice":
		arg := strings.TrimSpace(msg.CommandArguments())
		if arg == "" {
			a.sendText(userID, "You must include a voice id. Use /list to list available voices")
			return
		}
		reply, err := a.orchestrator.SelectPersona(ctx, userID, arg)
		if err != nil && !errors.Is(err, pipeline.ErrSynthesisFailed) {
			a.deliver(userID, reply, err)
			return
		}
		a.sendText(userID, "Voice changed successfully!")
		a.sendTyping(userID)
		a.deliver(userID, reply, err)

	case "list":
		personas, err := a.orchestrator.ListPersonas(ctx, userID)
		if err != nil {
			if errors.Is(err, pipeline.ErrSessionBusy) {
				a.sendText(userID, "I'm still working on your previous message, give me a moment.")
				return
			}
			a.logger.Error().Err(err).Str("user", userID).Msg("list personas failed")
			a.sendText(userID, "Sorry, something went wrong. Please try again.")
			return
		}
		var b strings.Builder
		b.WriteString("Available voices:\n")
		for i, p := range personas {
			b.WriteString(strconv.Itoa(i))
			b.WriteString(": ")
			b.WriteString(p.Name)
			if p.Description != "" {
				b.WriteString(" - ")
				b.WriteString(p.Description)
			}
			b.WriteString("\n")
		}
		a.sendText(userID, strings.TrimRight(b.String(), "\n"))

	case "who":
		current, err := a.orchestrator.Current(ctx, userID)
		if err != nil {
			if errors.Is(err, pipeline.ErrSessionBusy) {
				a.sendText(userID, "I'm still working on your previous message, give me a moment.")
				return
			}
			a.logger.Error().Err(err).Str("user", userID).Msg("who failed")
			a.sendText(userID, "Sorry, something went wrong. Please try again.")
			return
		}
		a.sendText(userID, fmt.Sprintf("I am currently '%s'.", current.Label()))

	case "help":
		a.sendText(userID, helpText)

	default:
		a.sendText(userID, "Sorry, I didn't understand that command. Use /help to see available commands")
	}
}

func (a *Adapter) handleUtterance(ctx context.Context, userID string, msg *tgbotapi.Message) {
	a.sendTyping(userID)

	var input pipeline.Utterance
	switch {
	case msg.Voice != nil:
		clip, err := a.downloadVoice(ctx, msg.Voice.FileID)
		if err != nil {
			a.logger.Error().Err(err).Str("user", userID).Msg("voice download failed")
			a.sendText(userID, "Sorry, I couldn't fetch that voice message. Please try again.")
			return
		}
		input.Clip = clip
	case msg.Text != "":
		input.Text = msg.Text
	default:
		a.sendText(userID, "Sorry, I only respond to commands, voice, or text messages. Use /help for more information.")
		return
	}

	reply, err := a.orchestrator.HandleUtterance(ctx, userID, input)
	a.deliver(userID, reply, err)
}

// deliver maps pipeline outcomes onto user-facing messages. A synthesis
// failure still delivers the generated text.
func (a *Adapter) deliver(userID string, reply pipeline.Reply, err error) {
	switch {
	case err == nil:
		a.sendText(userID, reply.Text)
		a.sendVoice(userID, reply.Clip)

	case errors.Is(err, pipeline.ErrSynthesisFailed):
		a.logger.Warn().Err(err).Str("user", userID).Msg("synthesis failed, sending text only")
		a.sendText(userID, reply.Text)

	case errors.Is(err, pipeline.ErrSessionBusy):
		a.sendText(userID, "I'm still working on your previous message, give me a moment.")

	case errors.Is(err, pipeline.ErrTranscriptionFailed):
		a.sendText(userID, "Sorry, I couldn't make out that voice message. Could you try again?")

	case errors.Is(err, pipeline.ErrGenerationFailed):
		a.sendText(userID, "Sorry, I'm having trouble thinking of a response right now. Please try again.")

	case errors.Is(err, pipeline.ErrInvalidPersonaIndex):
		a.sendText(userID, "Sorry, I do not recognize that voice. Use /list to list available voices.")

	default:
		a.logger.Error().Err(err).Str("user", userID).Msg("pipeline run failed")
		a.sendText(userID, "Sorry, something went wrong. Please try again.")
	}
}

// downloadVoice fetches the raw OGG/Opus bytes of a Telegram voice note.
func (a *Adapter) downloadVoice(ctx context.Context, fileID string) (*audio.Clip, error) {
	url, err := a.bot.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("resolve file URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create download request: %w", err)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download voice file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("voice download returned %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read voice file: %w", err)
	}

	return &audio.Clip{Data: data, Format: "ogg"}, nil
}

func (a *Adapter) sendText(userID, text string) {
	if text == "" {
		return
	}
	chatID, _ := strconv.ParseInt(userID, 10, 64)
	if _, err := a.bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		a.logger.Error().Err(err).Str("user", userID).Msg("send text failed")
	}
}

func (a *Adapter) sendVoice(userID string, clip *audio.Clip) {
	if clip.Empty() {
		return
	}
	chatID, _ := strconv.ParseInt(userID, 10, 64)
	voice := tgbotapi.NewVoice(chatID, tgbotapi.FileBytes{
		Name:  "reply." + clip.Format,
		Bytes: clip.Data,
	})
	if _, err := a.bot.Send(voice); err != nil {
		a.logger.Error().Err(err).Str("user", userID).Msg("send voice failed")
	}
}

func (a *Adapter) sendTyping(userID string) {
	chatID, _ := strconv.ParseInt(userID, 10, 64)
	action := tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)
	if _, err := a.bot.Request(action); err != nil {
		a.logger.Debug().Err(err).Str("user", userID).Msg("typing action failed")
	}
}
