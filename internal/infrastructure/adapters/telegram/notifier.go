package telegram

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/raffle-service/raffle_service/internal/domain/entities"
	"github.com/raffle-service/raffle_service/pkg/logger"
)

// EmailSender interface for the fallback operator channel
type EmailSender interface {
	SendOperatorAlert(ctx context.Context, subject, body string) error
}

// OperatorNotifier delivers structured payout instructions to the admin
// chat, with an email fallback when the chat delivery fails. Delivery is
// best-effort; the engine never blocks on it.
type OperatorNotifier struct {
	client      *Client
	adminChatID int64
	email       EmailSender
	printer     *message.Printer
	logger      *logger.Logger
}

// NewOperatorNotifier creates the admin notification channel
func NewOperatorNotifier(client *Client, adminChatID int64, email EmailSender, log *logger.Logger) *OperatorNotifier {
	return &OperatorNotifier{
		client:      client,
		adminChatID: adminChatID,
		email:       email,
		printer:     message.NewPrinter(language.English),
		logger:      log,
	}
}

// Notify sends a manual-send instruction to the operator
func (n *OperatorNotifier) Notify(ctx context.Context, instruction *entities.OperatorInstruction) error {
	amount := n.formatAmount(instruction.Amount, instruction.Currency)
	text := fmt.Sprintf(
		"<b>Manual payout required</b>\n\n"+
			"Withdrawal: <code>%s</code>\n"+
			"User: <code>%d</code>\n"+
			"Amount to send: <b>%s</b>\n\n"+
			"Transfer the amount to the user out of band, then confirm it "+
			"through the admin panel with the exact amount.",
		instruction.WithdrawalID, instruction.UserID, amount)

	if err := n.client.SendMessage(ctx, n.adminChatID, text); err != nil {
		n.logger.Warn("Admin chat delivery failed, trying email fallback",
			"withdrawal_id", instruction.WithdrawalID.String(),
			"error", err)
		if n.email == nil {
			return err
		}
		subject := fmt.Sprintf("Manual payout required: %s", instruction.WithdrawalID)
		body := fmt.Sprintf("Withdrawal %s for user %d needs a manual transfer of %s.",
			instruction.WithdrawalID, instruction.UserID, amount)
		return n.email.SendOperatorAlert(ctx, subject, body)
	}
	return nil
}

// NotifyRaffleWon tells the winner their prize has been credited
func (n *OperatorNotifier) NotifyRaffleWon(ctx context.Context, userID int64, raffleID uuid.UUID, prize decimal.Decimal, currency entities.Currency) error {
	text := fmt.Sprintf(
		"<b>Congratulations!</b>\n\n"+
			"You won raffle <code>%s</code>.\n"+
			"Prize: <b>%s</b> has been credited to your balance.",
		raffleID, n.formatAmount(prize, currency))
	return n.client.SendMessage(ctx, userID, text)
}

func (n *OperatorNotifier) formatAmount(amount decimal.Decimal, currency entities.Currency) string {
	switch currency {
	case entities.CurrencyStars:
		return n.printer.Sprintf("%d ⭐", amount.IntPart())
	case entities.CurrencyRub:
		return n.printer.Sprintf("%.2f ₽", amount.InexactFloat64())
	default:
		return fmt.Sprintf("%s %s", amount.String(), currency)
	}
}
