package certificate

import (
	"strings"
	"testing"
	"time"

	"github.com/yourusername/nikah-service/internal/models"
)

func mehr(v float64) *float64 { return &v }

func sampleRoom() *models.Room {
	return &models.Room{
		ID: "room-123",
		Users: map[string]models.User{
			"b": {Name: "Sara", Gender: "female", KabulCount: 3, Wali: "Yusuf", Mehr: mehr(500), JoinedAt: 2},
			"a": {Name: "Ali", Gender: "male", KabulCount: 3, Wali: "Ibrahim", Mehr: mehr(1000), JoinedAt: 1},
		},
		WitnessCount: 2,
		Witnesses: map[string]models.Witness{
			"w2": {ID: "w2", Name: "Huda", Timestamp: time.Date(2025, 3, 2, 14, 10, 0, 0, time.UTC).UnixMilli()},
			"w1": {ID: "w1", Name: "Omar", Timestamp: time.Date(2025, 3, 2, 14, 5, 0, 0, time.UTC).UnixMilli()},
		},
		IsCompleted:  true,
		MarriageDate: time.Date(2025, 3, 2, 14, 0, 0, 0, time.UTC).UnixMilli(),
		Location:     "Cairo",
	}
}

func TestFormatting(t *testing.T) {
	day := time.Date(2025, 3, 2, 9, 7, 0, 0, time.UTC)
	if got := FormatCeremonyDate(day); got != "2nd of March, 2025" {
		t.Errorf("FormatCeremonyDate = %q", got)
	}
	if got := FormatGeneratedDate(day); got != "March 2nd, 2025" {
		t.Errorf("FormatGeneratedDate = %q", got)
	}
	if got := FormatWitnessTime(day); got != "09:07, 02 Mar 2025" {
		t.Errorf("FormatWitnessTime = %q", got)
	}
	if got := FormatMehr(1000); got != "1000 units" {
		t.Errorf("FormatMehr = %q", got)
	}
	if got := FormatMehr(2.5); got != "2.5 units" {
		t.Errorf("FormatMehr = %q", got)
	}
}

func TestNew(t *testing.T) {
	generated := time.Date(2025, 3, 3, 8, 0, 0, 0, time.UTC)
	c := New(sampleRoom(), generated)

	if c.ID != "room-123" || c.Location != "Cairo" {
		t.Fatalf("certificate = %+v", c)
	}
	if len(c.Parties) != 2 || c.Parties[0].Role != "Groom" || c.Parties[0].Name != "Ali" || c.Parties[1].Role != "Bride" {
		t.Fatalf("parties = %+v", c.Parties)
	}
	if len(c.Witnesses) != 2 || c.Witnesses[0].Name != "Omar" {
		t.Fatalf("witnesses not in attendance order: %+v", c.Witnesses)
	}
	if !c.CeremonyDate.Equal(time.Date(2025, 3, 2, 14, 0, 0, 0, time.UTC)) {
		t.Fatalf("ceremony date = %v", c.CeremonyDate)
	}
}

func TestNewWithoutMarriageDate(t *testing.T) {
	room := sampleRoom()
	room.MarriageDate = 0
	generated := time.Date(2025, 3, 3, 8, 0, 0, 0, time.UTC)

	if c := New(room, generated); !c.CeremonyDate.Equal(generated) {
		t.Fatalf("ceremony date = %v, want generation time", c.CeremonyDate)
	}
}

func TestPartyRoleFallsBackToJoinOrder(t *testing.T) {
	if got := partyRole("other", 0); got != "Groom" {
		t.Errorf("index 0 = %s", got)
	}
	if got := partyRole("", 1); got != "Bride" {
		t.Errorf("index 1 = %s", got)
	}
	if got := partyRole("FEMALE", 0); got != "Bride" {
		t.Errorf("female first = %s", got)
	}
}

func TestMarkdown(t *testing.T) {
	md := New(sampleRoom(), time.Date(2025, 3, 3, 8, 0, 0, 0, time.UTC)).Markdown()

	for _, want := range []string{
		"# Marriage Certificate",
		Bismillah,
		"on the 2nd of March, 2025, in Cairo, a marriage was solemnized between:",
		"## Groom",
		"- Name: Ali",
		"- Wali: Ibrahim",
		"- Mehr: 1000 units",
		"## Bride",
		"- Omar, witnessed at 14:05, 02 Mar 2025",
		"Certificate ID: room-123",
		"Generated on: March 3rd, 2025",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q:\n%s", want, md)
		}
	}
	if strings.Index(md, "## Groom") > strings.Index(md, "## Bride") {
		t.Errorf("groom should be listed first")
	}
}

func TestHTMLEscapesNames(t *testing.T) {
	room := sampleRoom()
	u := room.Users["a"]
	u.Name = "<script>alert(1)</script>"
	room.Users["a"] = u

	page, err := New(room, time.Now()).HTML()
	if err != nil {
		t.Fatalf("HTML: %v", err)
	}
	html := string(page)
	if strings.Contains(html, "<script>") {
		t.Fatalf("name rendered as markup:\n%s", html)
	}
	if !strings.Contains(html, "<h1>Marriage Certificate</h1>") {
		t.Fatalf("missing heading:\n%s", html)
	}
	if !strings.Contains(html, "<title>Marriage Certificate</title>") {
		t.Fatalf("missing title:\n%s", html)
	}
}
