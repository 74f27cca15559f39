package chat

import (
	"fmt"
	"strings"

	"gitlab.com/yelinaung/ledger-chat/internal/categories"
	"gitlab.com/yelinaung/ledger-chat/internal/models"
)

const (
	replyNotUnderstood   = "❌ I couldn't understand that. Please try again.\n\nExample: 'Paid 500 for groceries today'"
	replyReadFailed      = "⚠️ Could not retrieve data from the ledger right now. Please try again later."
	replyCancelled       = "🗑️ Pending expense cancelled."
	replyNothingToCancel = "Nothing to cancel. Send me an expense whenever you're ready."
	replyNoExpenses      = "No expenses recorded yet."

	// "today" is the stats command, so date prompts only offer explicit forms.
	promptDate = "📅 What date was this expense?\n" +
		"Reply with 'yesterday', '18 Oct', '18 Oct 2025' or '18/10/2025'."
	promptDateRetry = "❓ I couldn't understand that date.\n" +
		"Reply with 'yesterday', '18 Oct', '18 Oct 2025' or '18/10/2025', or 'cancel' to discard."
	promptCustomCategory = "✏️ Please type a name for the new category (2-50 characters)."
	promptCustomRetry    = "❓ Category names must be 2-50 characters and cannot be \"Other\".\n" +
		"Please type a name for the new category, or 'cancel' to discard."

	helpText = "💰 *Expense Tracker*\n\n" +
		"Send an expense in plain words, for example:\n" +
		"• Paid 4000 rs for labour work on 2nd Oct 2025\n" +
		"• Diesel 1200 today\n\n" +
		"If something is missing I will ask for it.\n\n" +
		"Commands:\n" +
		"• today / week / month - spending summary\n" +
		"• last - most recent expense\n" +
		"• cancel - discard the pending expense\n" +
		"• help - this message"
)

func confirmation(e models.Expense, currency string) string {
	return fmt.Sprintf("⏳ Adding expense...\n\nDate: %s\nAmount: %s%s\nDescription: %s\nCategory: %s",
		e.FormattedDate(), currency, e.Amount.String(), e.Description, e.Category)
}

func categoryPrompt(menu []string, retry bool) string {
	var sb strings.Builder
	if retry {
		sb.WriteString("❓ I couldn't match that to a category.\n\n")
	}
	sb.WriteString("🏷️ Which category is this?\n\n")
	sb.WriteString(categories.RenderMenu(menu))
	sb.WriteString("\n\nReply with a number or a category name.")
	return sb.String()
}

func lastExpense(row models.LedgerRow, currency string) string {
	return fmt.Sprintf("🧾 Last expense:\n\nDate: %s\nAmount: %s%s\nDescription: %s\nCategory: %s",
		row.Date, currency, row.Amount, row.Description, row.Category)
}
