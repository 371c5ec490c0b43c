package bot

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"gradwatch/models"
	"gradwatch/storage"
)

// Telegram rejects messages longer than 4096 characters.
const maxMessageLen = 4096

const helpText = `Commands:
/jobs - total number of tracked listings
/days N - listings posted in the last N days with an application link
/job ID - details for one listing
/apply ID - mark a listing as applied
/unapply ID - unmark a listing
/myapps - listings you applied to`

// Bot answers listing queries and application commands over Telegram
// long polling. Command handling is separated from transport so it
// can be tested without an API token.
type Bot struct {
	api          *tgbotapi.BotAPI
	store        storage.Store
	notifyChatID int64
	now          func() time.Time
}

func New(token string, notifyChatID int64, store storage.Store) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("creating bot api: %w", err)
	}
	return &Bot{
		api:          api,
		store:        store,
		notifyChatID: notifyChatID,
		now:          time.Now,
	}, nil
}

// Run polls for updates until the context is cancelled.
func (b *Bot) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.api.GetUpdatesChan(u)

	log.Printf("Bot started as @%s", b.api.Self.UserName)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message == nil || !update.Message.IsCommand() {
				continue
			}
			for _, reply := range b.handleCommand(ctx, update.Message) {
				msg := tgbotapi.NewMessage(update.Message.Chat.ID, reply)
				if _, err := b.api.Send(msg); err != nil {
					log.Printf("Failed to send reply: %v", err)
				}
			}
		}
	}
}

// NotifyNew pushes freshly inserted listings to the configured chat,
// split across messages so a large first scrape stays sendable.
func (b *Bot) NotifyNew(ctx context.Context, listings []models.Listing) error {
	if b.notifyChatID == 0 || len(listings) == 0 {
		return nil
	}
	header := fmt.Sprintf("%d new listing(s):", len(listings))
	for _, text := range listingMessages(listings, header) {
		msg := tgbotapi.NewMessage(b.notifyChatID, text)
		if _, err := b.api.Send(msg); err != nil {
			return fmt.Errorf("sending notification: %w", err)
		}
	}
	return nil
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) []string {
	switch msg.Command() {
	case "jobs":
		return []string{b.cmdJobs(ctx)}
	case "days":
		return b.cmdDays(ctx, msg.CommandArguments())
	case "job":
		return []string{b.cmdJob(ctx, msg.CommandArguments())}
	case "apply":
		return []string{b.cmdApply(ctx, msg.From.ID, msg.CommandArguments())}
	case "unapply":
		return []string{b.cmdUnapply(ctx, msg.From.ID, msg.CommandArguments())}
	case "myapps":
		return b.cmdMyApps(ctx, msg.From.ID)
	case "start", "help":
		return []string{helpText}
	default:
		return []string{helpText}
	}
}

func (b *Bot) cmdJobs(ctx context.Context) string {
	count, err := b.store.CountListings(ctx)
	if err != nil {
		log.Printf("Counting listings: %v", err)
		return "Something went wrong, try again later."
	}
	return fmt.Sprintf("Tracking %d listings.", count)
}

func (b *Bot) cmdDays(ctx context.Context, args string) []string {
	days, err := strconv.Atoi(strings.TrimSpace(args))
	if err != nil || days <= 0 {
		return []string{"Usage: /days N (N must be a positive number)"}
	}
	threshold := b.now().AddDate(0, 0, -days)
	listings, err := b.store.FindListingsByAge(ctx, threshold, true)
	if err != nil {
		log.Printf("Finding listings: %v", err)
		return []string{"Something went wrong, try again later."}
	}
	if len(listings) == 0 {
		return []string{fmt.Sprintf("No listings with an application link in the last %d day(s).", days)}
	}
	return listingMessages(listings, "")
}

func (b *Bot) cmdJob(ctx context.Context, args string) string {
	id, ok := parseID(args)
	if !ok {
		return "Usage: /job ID"
	}
	listing, err := b.store.GetListingByID(ctx, id)
	if err != nil {
		log.Printf("Fetching listing %d: %v", id, err)
		return "Something went wrong, try again later."
	}
	if listing == nil {
		return fmt.Sprintf("Job ID %d not found.", id)
	}
	return formatListing(listing)
}

func (b *Bot) cmdApply(ctx context.Context, userID int64, args string) string {
	id, ok := parseID(args)
	if !ok {
		return "Usage: /apply ID"
	}
	listing, err := b.store.GetListingByID(ctx, id)
	if err != nil {
		log.Printf("Fetching listing %d: %v", id, err)
		return "Something went wrong, try again later."
	}
	if listing == nil {
		return fmt.Sprintf("Job ID %d not found.", id)
	}
	if err := b.store.Apply(ctx, userID, id); err != nil {
		log.Printf("Recording application for %d/%d: %v", userID, id, err)
		return "Something went wrong, try again later."
	}
	return fmt.Sprintf("Marked %s at %s as applied.", listing.Role, listing.Company)
}

func (b *Bot) cmdUnapply(ctx context.Context, userID int64, args string) string {
	id, ok := parseID(args)
	if !ok {
		return "Usage: /unapply ID"
	}
	if err := b.store.Unapply(ctx, userID, id); err != nil {
		log.Printf("Removing application for %d/%d: %v", userID, id, err)
		return "Something went wrong, try again later."
	}
	return fmt.Sprintf("Removed application for job ID %d.", id)
}

func (b *Bot) cmdMyApps(ctx context.Context, userID int64) []string {
	listings, err := b.store.ApplicationsFor(ctx, userID)
	if err != nil {
		log.Printf("Fetching applications for %d: %v", userID, err)
		return []string{"Something went wrong, try again later."}
	}
	if len(listings) == 0 {
		return []string{"You have not marked any listings as applied."}
	}
	return listingMessages(listings, "")
}

func parseID(args string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(args), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// listingMessages packs formatted listings into as few messages as
// fit under the Telegram size limit.
func listingMessages(listings []models.Listing, header string) []string {
	var msgs []string
	var sb strings.Builder
	if header != "" {
		sb.WriteString(header)
		sb.WriteString("\n\n")
	}
	for i := range listings {
		entry := formatListing(&listings[i]) + "\n"
		if sb.Len() > 0 && sb.Len()+len(entry) > maxMessageLen {
			msgs = append(msgs, strings.TrimRight(sb.String(), "\n"))
			sb.Reset()
		}
		sb.WriteString(entry)
	}
	if sb.Len() > 0 {
		msgs = append(msgs, strings.TrimRight(sb.String(), "\n"))
	}
	return msgs
}

func formatListing(l *models.Listing) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "ID: %d\n", l.ID)
	fmt.Fprintf(&sb, "Company: %s\n", l.Company)
	fmt.Fprintf(&sb, "Role: %s\n", l.Role)
	if l.Location != "" {
		fmt.Fprintf(&sb, "Location: %s\n", l.Location)
	}
	if l.ApplicationLink != "" {
		fmt.Fprintf(&sb, "Application Link: %s\n", l.ApplicationLink)
	}
	fmt.Fprintf(&sb, "Date Posted: %s\n", l.DatePosted.Format("2006-01-02"))
	return sb.String()
}
