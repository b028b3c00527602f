package certificate

import (
	"bytes"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/yourusername/nikah-service/internal/models"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

const (
	Title     = "Marriage Certificate"
	Bismillah = "بِسْمِ ٱللَّٰهِ ٱلرَّحْمَٰنِ ٱلرَّحِيمِ"

	witnessTimeLayout = "15:04, 02 Jan 2006"
)

// Party is one side of the marriage as printed on the certificate.
type Party struct {
	Role string   `json:"role"` // Groom or Bride
	Name string   `json:"name"`
	Wali string   `json:"wali,omitempty"`
	Mehr *float64 `json:"mehr,omitempty"`
}

type WitnessEntry struct {
	Name        string    `json:"name"`
	WitnessedAt time.Time `json:"witnessedAt"`
}

// Certificate is the record of a completed ceremony. Its ID is the room id.
type Certificate struct {
	ID           string         `json:"id"`
	Location     string         `json:"location,omitempty"`
	CeremonyDate time.Time      `json:"ceremonyDate"`
	GeneratedAt  time.Time      `json:"generatedAt"`
	Parties      []Party        `json:"parties"`
	Witnesses    []WitnessEntry `json:"witnesses"`
}

// New builds the certificate of room. The ceremony date is the stored
// marriage date, or generatedAt when none was stamped. Times are UTC.
func New(room *models.Room, generatedAt time.Time) *Certificate {
	generatedAt = generatedAt.UTC()
	c := &Certificate{
		ID:           room.ID,
		Location:     strings.TrimSpace(room.Location),
		CeremonyDate: generatedAt,
		GeneratedAt:  generatedAt,
		Parties:      []Party{},
		Witnesses:    []WitnessEntry{},
	}
	if room.MarriageDate > 0 {
		c.CeremonyDate = time.UnixMilli(room.MarriageDate).UTC()
	}

	for i, p := range room.Participants() {
		c.Parties = append(c.Parties, Party{
			Role: partyRole(p.Gender, i),
			Name: p.Name,
			Wali: p.Wali,
			Mehr: p.Mehr,
		})
	}
	for _, w := range room.SortedWitnesses() {
		c.Witnesses = append(c.Witnesses, WitnessEntry{
			Name:        w.Name,
			WitnessedAt: time.UnixMilli(w.Timestamp).UTC(),
		})
	}
	return c
}

// partyRole picks the title by gender and falls back to join order.
func partyRole(gender string, index int) string {
	switch strings.ToLower(gender) {
	case "male":
		return "Groom"
	case "female":
		return "Bride"
	}
	if index == 0 {
		return "Groom"
	}
	return "Bride"
}

// FormatCeremonyDate renders t as "2nd of March, 2025".
func FormatCeremonyDate(t time.Time) string {
	return humanize.Ordinal(t.Day()) + " of " + t.Format("January, 2006")
}

// FormatGeneratedDate renders t as "March 2nd, 2025".
func FormatGeneratedDate(t time.Time) string {
	return t.Format("January") + " " + humanize.Ordinal(t.Day()) + t.Format(", 2006")
}

// FormatWitnessTime renders t as "14:05, 02 Mar 2025".
func FormatWitnessTime(t time.Time) string {
	return t.Format(witnessTimeLayout)
}

// FormatMehr renders an amount as "N units".
func FormatMehr(amount float64) string {
	return humanize.Ftoa(amount) + " units"
}

var markdownEscaper = strings.NewReplacer(
	`\`, `\\`,
	"*", `\*`,
	"_", `\_`,
	"`", "\\`",
	"[", `\[`,
	"]", `\]`,
	"#", `\#`,
	"<", `\<`,
	">", `\>`,
	"|", `\|`,
)

func escape(s string) string {
	return markdownEscaper.Replace(s)
}

// Markdown renders the certificate as a Markdown document
func (c *Certificate) Markdown() string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", Title)
	fmt.Fprintf(&b, "%s\n\n", Bismillah)

	b.WriteString("This is to certify that on the ")
	b.WriteString(FormatCeremonyDate(c.CeremonyDate))
	b.WriteString(",")
	if c.Location != "" {
		fmt.Fprintf(&b, " in %s,", escape(c.Location))
	}
	b.WriteString(" a marriage was solemnized between:\n\n")

	for _, p := range c.Parties {
		fmt.Fprintf(&b, "## %s\n\n", p.Role)
		fmt.Fprintf(&b, "- Name: %s\n", escape(p.Name))
		if p.Wali != "" {
			fmt.Fprintf(&b, "- Wali: %s\n", escape(p.Wali))
		}
		if p.Mehr != nil {
			fmt.Fprintf(&b, "- Mehr: %s\n", FormatMehr(*p.Mehr))
		}
		b.WriteString("\n")
	}

	b.WriteString("## Witnesses\n\n")
	if len(c.Witnesses) == 0 {
		b.WriteString("None recorded.\n\n")
	}
	for _, w := range c.Witnesses {
		fmt.Fprintf(&b, "- %s, witnessed at %s\n", escape(w.Name), FormatWitnessTime(w.WitnessedAt))
	}
	if len(c.Witnesses) > 0 {
		b.WriteString("\n")
	}

	b.WriteString("---\n\n")
	fmt.Fprintf(&b, "Certificate ID: %s\n\n", escape(c.ID))
	fmt.Fprintf(&b, "Generated on: %s\n", FormatGeneratedDate(c.GeneratedAt))

	return b.String()
}

var (
	markdownOnce sync.Once
	markdown     goldmark.Markdown
)

func renderer() goldmark.Markdown {
	markdownOnce.Do(func() {
		markdown = goldmark.New(
			goldmark.WithExtensions(extension.GFM),
		)
	})
	return markdown
}

// HTML renders the certificate as a standalone HTML page
func (c *Certificate) HTML() ([]byte, error) {
	var body bytes.Buffer
	if err := renderer().Convert([]byte(c.Markdown()), &body); err != nil {
		return nil, fmt.Errorf("failed to render certificate: %w", err)
	}

	var page bytes.Buffer
	page.WriteString("<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&page, "<title>%s</title>\n", Title)
	page.WriteString("</head>\n<body>\n<article class=\"certificate\">\n")
	page.Write(body.Bytes())
	page.WriteString("</article>\n</body>\n</html>\n")
	return page.Bytes(), nil
}
