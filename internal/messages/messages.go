package messages

import (
	"fmt"
	"strings"
	"time"

	"github.com/avbocharov/chatpass-bot/types"
)

const ParseModeHTML = "HTML"

const dateTimeLayout = "2006-01-02 15:04 UTC"

func Escape(s string) string {
	replacer := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		"\"", "&quot;",
		"'", "&#39;",
	)
	return replacer.Replace(strings.TrimSpace(s))
}

func formatEnd(t time.Time) string {
	return t.UTC().Format(dateTimeLayout)
}

func StartWelcome() string {
	return "👋 <b>Welcome to the Subscription Bot!</b>\nUse /help to see available commands."
}

func Help() string {
	return "Available commands:\n" +
		"/start — welcome message\n" +
		"/help — show this help message\n" +
		"/panel — open the user panel"
}

func PanelTitle() string {
	return "<b>User panel</b>"
}

func NoChatsAvailable() string {
	return "No chats available for subscription at the moment."
}

func SelectChatPrompt() string {
	return "Please select a chat to subscribe to:"
}

func ChatButton(c *types.Chat) string {
	return fmt.Sprintf("%s — %s %s", c.Title, c.PriceAmount, c.PriceCurrency)
}

func PaymentInstructions(c *types.Chat, days int, wallet, network, ref string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "To subscribe to <b>%s</b> for <b>%s %s</b> (%d days):\n\n",
		Escape(c.Title), Escape(c.PriceAmount), Escape(c.PriceCurrency), days)
	b.WriteString("Please send the payment to:\n")
	fmt.Fprintf(&b, "<b>Wallet address:</b> <code>%s</code>\n", Escape(wallet))
	fmt.Fprintf(&b, "<b>Network:</b> %s\n\n", Escape(network))
	fmt.Fprintf(&b, "Your unique payment reference: <code>%s</code>\n", Escape(ref))
	b.WriteString("Keep it for your records.\n\n")
	b.WriteString("After making the payment, press the button below.")
	return b.String()
}

func SubscriptionActivated(title string, end time.Time) string {
	return fmt.Sprintf("Thank you! Your payment is confirmed and your subscription to <b>%s</b> is now active until <b>%s</b>.",
		Escape(title), formatEnd(end))
}

func SubscriptionAlreadyActive(title string, end time.Time) string {
	return fmt.Sprintf("Your subscription to <b>%s</b> is already active until <b>%s</b>.",
		Escape(title), formatEnd(end))
}

func SubscriptionNotFound() string {
	return "Subscription not found. Please contact support."
}

func NotYourSubscription() string {
	return "This subscription does not belong to you."
}

func NoActiveSubscriptions() string {
	return "You have no active subscriptions."
}

func ActiveSubscriptionsList(subs []*types.Subscription) string {
	var b strings.Builder
	b.WriteString("Your active subscriptions:\n")
	for _, s := range subs {
		title := "unknown chat"
		if s.Chat != nil {
			title = s.Chat.Title
		}
		fmt.Fprintf(&b, "• <b>%s</b> — expires on %s\n", Escape(title), formatEnd(s.EndDate))
	}
	return b.String()
}

func RenewHint() string {
	return "To renew, pick the chat again under «Subscribe to a chat» — a new subscription window starts once it is paid."
}

func RenewalReminder(title string, end time.Time) string {
	return fmt.Sprintf("Friendly reminder! Your subscription to <b>%s</b> ends on <b>%s</b>. Use /panel to renew.",
		Escape(title), end.UTC().Format("2006-01-02"))
}

func SubscriptionExpired(title string) string {
	return fmt.Sprintf("Your subscription to <b>%s</b> has expired.", Escape(title))
}

func ChatInvitePlaceholder(title string) string {
	return fmt.Sprintf("You would now be added to the chat «%s». (Simulated action.)", Escape(title))
}

func ChatRemovePlaceholder(title string) string {
	return fmt.Sprintf("You would now be removed from the chat «%s». (Simulated action.)", Escape(title))
}

func PendingCancelled(title string) string {
	return fmt.Sprintf("Your unpaid subscription request for <b>%s</b> was cancelled. Use /panel to start over.", Escape(title))
}

func ErrorDefault() string {
	return "🚫 A problem occurred. Please try again later."
}

func InvalidSelection() string {
	return "Invalid selection. Please try again."
}

// --- admin ---

func NotAuthorized() string {
	return "You are not authorized to use this command."
}

func AdminPanelTitle() string {
	return "<b>Admin panel</b>"
}

func AdminNoChats() string {
	return "No managed chats yet. Add one first."
}

func AdminChatLine(c *types.Chat) string {
	state := "active"
	if !c.IsActive {
		state = "inactive"
	}
	return fmt.Sprintf("<b>%s</b> — %s %s — %s (tg id %d)",
		Escape(c.Title), Escape(c.PriceAmount), Escape(c.PriceCurrency), state, c.TelegramChatID)
}

func PromptChatID() string {
	return "Adding a chat. Send the Telegram chat id (an integer):"
}

func PromptTitle() string {
	return "Send the chat title:"
}

func PromptAmount() string {
	return "Send the subscription price amount (e.g. 10.00):"
}

func PromptCurrency() string {
	return "Send the price currency code (e.g. USDT):"
}

func PromptWallet() string {
	return "Send the wallet address for this chat, or «-» to use the global default:"
}

func PromptNetwork() string {
	return "Send the crypto network label (e.g. TRC20), or «-» to use the global default:"
}

func InvalidChatID() string {
	return "Invalid chat id format. Send an integer:"
}

func InvalidTitle() string {
	return "Title must not be empty. Send the chat title:"
}

func InvalidAmount() string {
	return "Invalid amount. Send a positive decimal, e.g. 10.00:"
}

func InvalidCurrency() string {
	return "Invalid currency code. Send 1-10 characters, e.g. USDT:"
}

func DraftSummary(d *types.ChatDraft) string {
	wallet := d.WalletAddress
	if wallet == "" {
		wallet = "(global default)"
	}
	network := d.Network
	if network == "" {
		network = "(global default)"
	}
	var b strings.Builder
	b.WriteString("<b>New chat</b>\n")
	fmt.Fprintf(&b, "Telegram chat id: %d\n", d.TelegramChatID)
	fmt.Fprintf(&b, "Title: %s\n", Escape(d.Title))
	fmt.Fprintf(&b, "Price: %s %s\n", Escape(d.PriceAmount), Escape(d.PriceCurrency))
	fmt.Fprintf(&b, "Wallet: %s\n", Escape(wallet))
	fmt.Fprintf(&b, "Network: %s\n\n", Escape(network))
	b.WriteString("Save it?")
	return b.String()
}

func ChatSaved(title string) string {
	return fmt.Sprintf("Chat <b>%s</b> saved.", Escape(title))
}

func DraftCancelled() string {
	return "Chat creation cancelled."
}

func RemoveConfirm(title string) string {
	return fmt.Sprintf("Remove chat <b>%s</b>? This deletes the listing permanently.", Escape(title))
}

func RemoveBlocked(title string) string {
	return fmt.Sprintf("Cannot remove <b>%s</b>: subscriptions still reference it. Deactivate the chat instead.", Escape(title))
}

func ChatRemoved(title string) string {
	return fmt.Sprintf("Chat <b>%s</b> removed.", Escape(title))
}

func ChatToggled(title string, active bool) string {
	if active {
		return fmt.Sprintf("Chat <b>%s</b> is now active and visible to subscribers.", Escape(title))
	}
	return fmt.Sprintf("Chat <b>%s</b> is now hidden from subscribers.", Escape(title))
}

func ChatNotFound() string {
	return "Chat not found. It may have been removed already."
}

func UsersList(users []*types.User) string {
	if len(users) == 0 {
		return "No users yet."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "<b>Users</b> (%d most recent):\n", len(users))
	for _, u := range users {
		name := strings.TrimSpace(u.FirstName + " " + u.LastName)
		if u.Username != "" {
			name = "@" + u.Username
		}
		if name == "" {
			name = "(no name)"
		}
		fmt.Fprintf(&b, "• %s — tg id %d\n", Escape(name), u.TelegramID)
	}
	return b.String()
}

func WalletInfo(wallet, network string) string {
	if wallet == "" {
		return "No global default wallet configured. Set DEFAULT_WALLET_ADDRESS and DEFAULT_NETWORK."
	}
	if network == "" {
		network = "(not set)"
	}
	return fmt.Sprintf("Global default wallet:\n<code>%s</code>\nNetwork: %s\n\nChats without their own wallet fall back to this one.",
		Escape(wallet), Escape(network))
}
