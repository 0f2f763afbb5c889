package telegram

import (
	"context"
	"errors"
	"time"

	"housemanship_bot/internal/app"
	"housemanship_bot/internal/domain/vacancy"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

// OTPReceiver accepts operator OTP replies.
type OTPReceiver interface {
	SubmitOTP(text string) bool
	AwaitingOTP() bool
}

// VacancyLister fetches the current listing on demand.
type VacancyLister interface {
	CurrentVacancies(ctx context.Context) (vacancy.Snapshot, error)
}

const listTimeout = 2 * time.Minute

// OperatorHandlers serves the operator's private chat with the bot.
type OperatorHandlers struct {
	otp        OTPReceiver
	vacancies  VacancyLister
	operatorID int64
	logger     *logrus.Entry
}

func NewOperatorHandlers(otp OTPReceiver, vacancies VacancyLister, operatorID int64, baseLogger *logrus.Entry) *OperatorHandlers {
	return &OperatorHandlers{
		otp:        otp,
		vacancies:  vacancies,
		operatorID: operatorID,
		logger:     baseLogger.WithField("handler_group", "operator"),
	}
}

// Register wires the handlers into the bot.
func (h *OperatorHandlers) Register(ctx context.Context, b *telebot.Bot) {
	b.Handle("/vacancies", func(c telebot.Context) error {
		if c.Sender() == nil || c.Sender().ID != h.operatorID {
			return nil
		}
		h.logger.WithField("command", "/vacancies").Info("Processing /vacancies command")
		if err := c.Send("Fetching available housemanship vacancies..."); err != nil {
			return err
		}
		reply, markdown := h.listVacancies(ctx)
		if markdown {
			return c.Send(reply, telebot.ModeMarkdown)
		}
		return c.Send(reply)
	})

	b.Handle(telebot.OnText, func(c telebot.Context) error {
		if c.Sender() == nil {
			return nil
		}
		reply := h.handleText(c.Sender().ID, c.Text())
		if reply == "" {
			return nil
		}
		return c.Send(reply)
	})
}

// handleText returns the reply for a plain text message, or "" for none.
func (h *OperatorHandlers) handleText(senderID int64, text string) string {
	logCtx := h.logger.WithField("sender_id", senderID)
	if senderID != h.operatorID {
		logCtx.Debug("Ignoring message from non-operator")
		return ""
	}

	if !app.IsOTPReply(text) {
		if h.otp.AwaitingOTP() {
			return "An OTP is pending. Reply with the 6-digit code only."
		}
		return ""
	}

	if h.otp.SubmitOTP(text) {
		logCtx.Info("OTP reply accepted")
		return "✅ OTP received, completing portal login."
	}
	logCtx.Info("OTP reply received with no pending session")
	return "No OTP is pending right now."
}

func (h *OperatorHandlers) listVacancies(ctx context.Context) (string, bool) {
	ctx, cancel := context.WithTimeout(ctx, listTimeout)
	defer cancel()

	current, err := h.vacancies.CurrentVacancies(ctx)
	if errors.Is(err, app.ErrEmptySnapshot) {
		return app.FormatVacancyList(nil), false
	}
	if err != nil {
		h.logger.WithError(err).Error("Error fetching vacancies for operator")
		return "❌ Error fetching vacancies.", false
	}
	return app.FormatVacancyList(current), len(current) > 0
}
