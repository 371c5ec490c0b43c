package bot

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/require"

	"gradwatch/models"
	"gradwatch/storage"
)

type fakeStore struct {
	listings     map[int64]*models.Listing
	applications map[int64][]int64
	byAge        []models.Listing
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		listings:     make(map[int64]*models.Listing),
		applications: make(map[int64][]int64),
	}
}

func (f *fakeStore) InTx(ctx context.Context, fn func(storage.Tx) error) error { return nil }

func (f *fakeStore) CountListings(ctx context.Context) (int, error) {
	return len(f.listings), nil
}

func (f *fakeStore) FindListingsByAge(ctx context.Context, threshold time.Time, requireLink bool) ([]models.Listing, error) {
	return f.byAge, nil
}

func (f *fakeStore) GetListingByID(ctx context.Context, id int64) (*models.Listing, error) {
	return f.listings[id], nil
}

func (f *fakeStore) Apply(ctx context.Context, userID, listingID int64) error {
	f.applications[userID] = append(f.applications[userID], listingID)
	return nil
}

func (f *fakeStore) Unapply(ctx context.Context, userID, listingID int64) error {
	kept := f.applications[userID][:0]
	for _, id := range f.applications[userID] {
		if id != listingID {
			kept = append(kept, id)
		}
	}
	f.applications[userID] = kept
	return nil
}

func (f *fakeStore) ApplicationsFor(ctx context.Context, userID int64) ([]models.Listing, error) {
	var out []models.Listing
	for _, id := range f.applications[userID] {
		if l := f.listings[id]; l != nil {
			out = append(out, *l)
		}
	}
	return out, nil
}

func (f *fakeStore) CreateRun(ctx context.Context, run *models.ScrapeRun) (int64, error) {
	return 1, nil
}

func (f *fakeStore) UpdateRun(ctx context.Context, run *models.ScrapeRun) error { return nil }

func (f *fakeStore) Close() error { return nil }

func newTestBot(store storage.Store) *Bot {
	return &Bot{
		store: store,
		now:   func() time.Time { return time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC) },
	}
}

func commandMessage(text string) *tgbotapi.Message {
	length := len(text)
	if i := strings.IndexByte(text, ' '); i >= 0 {
		length = i
	}
	return &tgbotapi.Message{
		Text: text,
		Entities: []tgbotapi.MessageEntity{
			{Type: "bot_command", Offset: 0, Length: length},
		},
		From: &tgbotapi.User{ID: 42},
		Chat: &tgbotapi.Chat{ID: 1},
	}
}

func TestHandleCommand_Jobs(t *testing.T) {
	store := newFakeStore()
	store.listings[1] = &models.Listing{ID: 1, Company: "Stripe", Role: "SWE"}
	store.listings[2] = &models.Listing{ID: 2, Company: "Datadog", Role: "SWE I"}
	b := newTestBot(store)

	replies := b.handleCommand(context.Background(), commandMessage("/jobs"))
	require.Equal(t, []string{"Tracking 2 listings."}, replies)
}

func TestHandleCommand_DaysRejectsBadArgs(t *testing.T) {
	b := newTestBot(newFakeStore())

	for _, text := range []string{"/days", "/days abc", "/days 0", "/days -3"} {
		replies := b.handleCommand(context.Background(), commandMessage(text))
		require.Len(t, replies, 1, "input %q", text)
		require.Contains(t, replies[0], "Usage: /days", "input %q", text)
	}
}

func TestHandleCommand_DaysListsRecent(t *testing.T) {
	store := newFakeStore()
	store.byAge = []models.Listing{
		{
			ID:              1,
			Company:         "Stripe",
			Role:            "Software Engineer, New Grad",
			Location:        "Seattle, WA",
			ApplicationLink: "https://stripe.com/jobs/12345",
			DatePosted:      time.Date(2026, 1, 8, 0, 0, 0, 0, time.UTC),
		},
	}
	b := newTestBot(store)

	replies := b.handleCommand(context.Background(), commandMessage("/days 7"))
	require.Len(t, replies, 1)
	require.Contains(t, replies[0], "Company: Stripe")
	require.Contains(t, replies[0], "Application Link: https://stripe.com/jobs/12345")
	require.Contains(t, replies[0], "Date Posted: 2026-01-08")
}

func TestHandleCommand_DaysSplitsLongOutput(t *testing.T) {
	store := newFakeStore()
	for i := 1; i <= 300; i++ {
		store.byAge = append(store.byAge, models.Listing{
			ID:              int64(i),
			Company:         fmt.Sprintf("Company %d With A Fairly Long Name", i),
			Role:            "Software Engineer, New Grad (Backend Infrastructure)",
			Location:        "San Francisco, CA / New York, NY / Remote",
			ApplicationLink: fmt.Sprintf("https://example.com/careers/apply/%d", i),
			DatePosted:      time.Date(2026, 1, 8, 0, 0, 0, 0, time.UTC),
		})
	}
	b := newTestBot(store)

	replies := b.handleCommand(context.Background(), commandMessage("/days 30"))
	require.Greater(t, len(replies), 1, "large result sets must be split")
	for i, reply := range replies {
		require.LessOrEqual(t, len(reply), 4096, "reply %d exceeds the Telegram limit", i)
	}
	require.Contains(t, replies[0], "Company 1 With A Fairly Long Name")
	require.Contains(t, replies[len(replies)-1], "Company 300 With A Fairly Long Name")
}

func TestListingMessages_HeaderAndLimit(t *testing.T) {
	var listings []models.Listing
	for i := 1; i <= 200; i++ {
		listings = append(listings, models.Listing{
			ID:         int64(i),
			Company:    fmt.Sprintf("Company %d", i),
			Role:       "Role with enough text to push messages over the size cap quickly",
			DatePosted: time.Date(2026, 1, 8, 0, 0, 0, 0, time.UTC),
		})
	}

	msgs := listingMessages(listings, "200 new listing(s):")
	require.Greater(t, len(msgs), 1)
	require.Contains(t, msgs[0], "200 new listing(s):")
	for i, msg := range msgs {
		require.LessOrEqual(t, len(msg), 4096, "message %d exceeds the Telegram limit", i)
	}
}

func TestHandleCommand_ApplyUnknownID(t *testing.T) {
	b := newTestBot(newFakeStore())

	replies := b.handleCommand(context.Background(), commandMessage("/apply 999"))
	require.Equal(t, []string{"Job ID 999 not found."}, replies)
}

func TestHandleCommand_ApplyThenMyApps(t *testing.T) {
	store := newFakeStore()
	store.listings[7] = &models.Listing{
		ID:         7,
		Company:    "Datadog",
		Role:       "Software Engineer I",
		DatePosted: time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC),
	}
	b := newTestBot(store)

	replies := b.handleCommand(context.Background(), commandMessage("/apply 7"))
	require.Equal(t, []string{"Marked Software Engineer I at Datadog as applied."}, replies)

	replies = b.handleCommand(context.Background(), commandMessage("/myapps"))
	require.Len(t, replies, 1)
	require.Contains(t, replies[0], "Company: Datadog")

	replies = b.handleCommand(context.Background(), commandMessage("/unapply 7"))
	require.Equal(t, []string{"Removed application for job ID 7."}, replies)

	replies = b.handleCommand(context.Background(), commandMessage("/myapps"))
	require.Equal(t, []string{"You have not marked any listings as applied."}, replies)
}

func TestHandleCommand_UnknownShowsHelp(t *testing.T) {
	b := newTestBot(newFakeStore())

	replies := b.handleCommand(context.Background(), commandMessage("/bogus"))
	require.Len(t, replies, 1)
	require.Contains(t, replies[0], "/jobs")
	require.Contains(t, replies[0], "/apply ID")
}
