package identity

import (
	"testing"
	"time"

	"gradwatch/models"
)

func sample() *models.Listing {
	return &models.Listing{
		Company:         "Acme",
		Role:            "SWE",
		Location:        "NYC",
		ApplicationLink: "https://x/1",
		DatePosted:      time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC),
	}
}

func TestFingerprint_Deterministic(t *testing.T) {
	a := Fingerprint(sample())
	b := Fingerprint(sample())
	if a != b {
		t.Fatalf("fingerprint not deterministic: %s vs %s", a, b)
	}
	if len(a) != 32 {
		t.Fatalf("expected 32 hex chars, got %d", len(a))
	}
}

func TestFingerprint_IgnoresCaseAndWhitespace(t *testing.T) {
	base := Fingerprint(sample())

	l := sample()
	l.Company = "  ACME "
	l.Role = "swe"
	l.Location = "NYC  "
	if got := Fingerprint(l); got != base {
		t.Fatalf("case/whitespace variants should collide: %s vs %s", got, base)
	}
}

func TestFingerprint_FieldChange(t *testing.T) {
	base := Fingerprint(sample())

	cases := []func(*models.Listing){
		func(l *models.Listing) { l.Company = "Globex" },
		func(l *models.Listing) { l.Role = "SRE" },
		func(l *models.Listing) { l.Location = "SF" },
		func(l *models.Listing) { l.ApplicationLink = "https://x/2" },
		func(l *models.Listing) { l.DatePosted = l.DatePosted.AddDate(0, 0, 1) },
	}
	for i, mutate := range cases {
		l := sample()
		mutate(l)
		if got := Fingerprint(l); got == base {
			t.Errorf("case %d: field change did not change fingerprint", i)
		}
	}
}

func TestFingerprintDateless_StableAcrossScrapeDays(t *testing.T) {
	tile := func(scrapeDay time.Time) *models.Listing {
		return &models.Listing{
			Company:         "Apple Certified Refurbished",
			Role:            "Refurbished MacBook Air 13-inch",
			Location:        "$849.00",
			ApplicationLink: "https://www.apple.com/shop/product/G1XYZ",
			DatePosted:      scrapeDay,
		}
	}

	day1 := FingerprintDateless(tile(time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)))
	day2 := FingerprintDateless(tile(time.Date(2026, 1, 11, 0, 0, 0, 0, time.UTC)))
	if day1 != day2 {
		t.Fatalf("same product scraped on consecutive days should collide: %s vs %s", day1, day2)
	}

	changed := tile(time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC))
	changed.Location = "$799.00"
	if got := FingerprintDateless(changed); got == day1 {
		t.Fatal("price change should produce a different identity")
	}
}

func TestNormalizeField_Diacritics(t *testing.T) {
	if got := NormalizeField("Café  Düsseldorf"); got != "cafe dusseldorf" {
		t.Fatalf("expected folded text, got %q", got)
	}
}
