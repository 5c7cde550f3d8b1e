package telegram

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"photo-quiz-service/internal/app"
	"photo-quiz-service/internal/domain"
)

// ImageResolver finds the file behind a pool image reference.
type ImageResolver interface {
	Resolve(ref string) (string, bool)
}

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Bot plays the quiz in Telegram chats. Updates and deadline ticks are handled
// on one goroutine, so per-chat rendering never interleaves.
type Bot struct {
	api     *tgbotapi.BotAPI
	out     sender
	service *app.QuizService
	images  ImageResolver
	tick    time.Duration
	active  map[int64]struct{}
}

func NewBot(token string, debug bool, service *app.QuizService, images ImageResolver, tick time.Duration) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram auth: %w", err)
	}
	api.Debug = debug
	b := newBot(api, service, images, tick)
	b.api = api
	return b, nil
}

func newBot(out sender, service *app.QuizService, images ImageResolver, tick time.Duration) *Bot {
	if tick <= 0 {
		tick = 500 * time.Millisecond
	}
	return &Bot{
		out:     out,
		service: service,
		images:  images,
		tick:    tick,
		active:  make(map[int64]struct{}),
	}
}

// Run polls Telegram until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	log.Printf("telegram: authorised as %s", b.api.Self.UserName)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.api.GetUpdatesChan(u)
	defer b.api.StopReceivingUpdates()

	ticker := time.NewTicker(b.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.handleUpdate(ctx, update)
		case <-ticker.C:
			b.tickAll(ctx)
		}
	}
}

func playerID(chatID int64) string {
	return "tg:" + strconv.FormatInt(chatID, 10)
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	if update.Message != nil && update.Message.IsCommand() {
		chatID := update.Message.Chat.ID
		switch update.Message.Command() {
		case "start", "quiz":
			b.sendIntro(ctx, chatID)
		default:
			b.sendText(chatID, "Unknown command. Use /start.")
		}
		return
	}
	if update.CallbackQuery != nil {
		b.handleCallback(ctx, update.CallbackQuery)
	}
}

func (b *Bot) handleCallback(ctx context.Context, callback *tgbotapi.CallbackQuery) {
	if _, err := b.out.Request(tgbotapi.NewCallback(callback.ID, "")); err != nil {
		log.Printf("telegram: answer callback: %v", err)
	}
	if callback.Message == nil {
		return
	}
	chatID := callback.Message.Chat.ID
	player := playerID(chatID)

	switch data := callback.Data; {
	case data == "begin":
		snap, err := b.service.Begin(ctx, player)
		if err != nil {
			b.sendText(chatID, "Could not start the quiz: "+err.Error())
			return
		}
		b.active[chatID] = struct{}{}
		b.render(chatID, snap)
	case data == "restart":
		delete(b.active, chatID)
		// a missing session is recreated by the intro's Join
		_, _ = b.service.Restart(ctx, player)
		b.sendIntro(ctx, chatID)
	case strings.HasPrefix(data, "answer:"):
		index, option, ok := parseAnswer(data)
		if !ok {
			return
		}
		snap, err := b.service.Snapshot(ctx, player)
		// buttons of an earlier question are stale clicks
		if err != nil || snap.Phase != domain.PhaseAnswering || snap.Index != index || snap.Question == nil {
			return
		}
		snap, outcome, err := b.service.Submit(ctx, player, snap.Question.Options[option])
		if err != nil || outcome == nil {
			return
		}
		// with no feedback dwell the session has already moved on
		if snap.Phase != domain.PhaseFeedback {
			b.sendText(chatID, feedbackText(*outcome))
		}
		b.render(chatID, snap)
	}
}

// tickAll drives deadlines and feedback dwell for every chat with a running quiz.
func (b *Bot) tickAll(ctx context.Context) {
	for chatID := range b.active {
		snap, changed, err := b.service.Tick(ctx, playerID(chatID))
		if err != nil {
			delete(b.active, chatID)
			continue
		}
		if changed {
			b.render(chatID, snap)
		}
	}
}

func (b *Bot) render(chatID int64, snap domain.Snapshot) {
	switch snap.Phase {
	case domain.PhaseAnswering:
		b.sendQuestion(chatID, snap)
	case domain.PhaseFeedback:
		if snap.Feedback != nil {
			b.sendText(chatID, feedbackText(*snap.Feedback))
		}
	case domain.PhaseFinished:
		delete(b.active, chatID)
		msg := tgbotapi.NewMessage(chatID, finishedText(snap))
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("🔄 Play again", "restart")),
		)
		b.send(msg)
	}
}

func (b *Bot) sendIntro(ctx context.Context, chatID int64) {
	snap, err := b.service.Join(ctx, playerID(chatID))
	if err != nil {
		b.sendText(chatID, "❌ Quiz data is unavailable: "+err.Error())
		return
	}
	questions := min(b.service.Rules().Size, snap.PoolSize)
	msg := tgbotapi.NewMessage(chatID, fmt.Sprintf(
		"🎓 Who is this?\n%d people in the pool, %d questions.\nAnswer faster to score more!",
		snap.PoolSize, questions,
	))
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("Start", "begin")),
	)
	b.send(msg)
}

func (b *Bot) sendQuestion(chatID int64, snap domain.Snapshot) {
	q := snap.Question
	if q == nil {
		return
	}
	caption := fmt.Sprintf("Question %d / %d: who is this? (%.0fs)", q.Number, q.Total, snap.Remaining)
	keyboard := optionsKeyboard(snap.Index, q.Options)

	if path, ok := b.resolve(q.ImageRef); ok {
		photo := tgbotapi.NewPhoto(chatID, tgbotapi.FilePath(path))
		photo.Caption = caption
		photo.ReplyMarkup = keyboard
		b.send(photo)
		return
	}
	msg := tgbotapi.NewMessage(chatID, caption)
	msg.ReplyMarkup = keyboard
	b.send(msg)
}

func (b *Bot) resolve(ref string) (string, bool) {
	if b.images == nil {
		return "", false
	}
	return b.images.Resolve(ref)
}

func (b *Bot) sendText(chatID int64, text string) {
	b.send(tgbotapi.NewMessage(chatID, text))
}

func (b *Bot) send(c tgbotapi.Chattable) {
	if _, err := b.out.Send(c); err != nil {
		log.Printf("telegram: send: %v", err)
	}
}

// optionsKeyboard lays the four options out two per row.
func optionsKeyboard(index int, options [4]string) tgbotapi.InlineKeyboardMarkup {
	button := func(i int) tgbotapi.InlineKeyboardButton {
		return tgbotapi.NewInlineKeyboardButtonData(options[i], fmt.Sprintf("answer:%d:%d", index, i))
	}
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(button(0), button(1)),
		tgbotapi.NewInlineKeyboardRow(button(2), button(3)),
	)
}

func parseAnswer(data string) (index, option int, ok bool) {
	parts := strings.Split(data, ":")
	if len(parts) != 3 || parts[0] != "answer" {
		return 0, 0, false
	}
	index, err := strconv.Atoi(parts[1])
	if err != nil || index < 0 {
		return 0, 0, false
	}
	option, err = strconv.Atoi(parts[2])
	if err != nil || option < 0 || option > 3 {
		return 0, 0, false
	}
	return index, option, true
}

func feedbackText(o domain.Outcome) string {
	switch {
	case o.TimedOut:
		return "⏰ Time's up! It was " + o.CorrectAnswer
	case o.Correct:
		return fmt.Sprintf("⭕ Correct! +%.0f", o.Awarded)
	default:
		return "❌ Wrong! It was " + o.CorrectAnswer
	}
}

func finishedText(snap domain.Snapshot) string {
	correct := 0
	for _, r := range snap.Results {
		if r.Correct {
			correct++
		}
	}
	return fmt.Sprintf("🏆 Final score: %d\n%d of %d correct.\n📸 Take a screenshot to share your result!",
		snap.DisplayScore, correct, len(snap.Results))
}
