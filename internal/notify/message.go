package notify

import (
	"fmt"
	"html"
	"strings"
	"time"
	"unicode/utf8"

	"linkpage-backend/internal/domain"
)

var platformIcons = map[string]string{
	string(domain.SourceInstagram): "📸",
	string(domain.SourceThreads):   "🧵",
	string(domain.SourceFacebook):  "📘",
	string(domain.SourceTwitter):   "𝕏",
}

const (
	// MaxMessageLength is Telegram's sendMessage text limit.
	MaxMessageLength = 4096
	// maxFieldLength caps each visitor supplied value.
	maxFieldLength = 256
)

// FormatMessage renders the Telegram HTML text for an event received at.
// Payload values are truncated and escaped; the result never exceeds
// MaxMessageLength characters.
func FormatMessage(e *domain.Event, at time.Time) string {
	var b strings.Builder
	location := html.EscapeString(truncate(e.Location(), maxFieldLength))
	timestamp := at.UTC().Format(time.RFC3339)

	switch e.EventType {
	case domain.EventPageView:
		b.WriteString("🔔 <b>New Visitor!</b>\n\n")
		if e.IsNewVisitor != nil && !*e.IsNewVisitor && e.VisitCount != nil {
			fmt.Fprintf(&b, "🔁 <b>Returning visitor:</b> visit #%d\n", *e.VisitCount)
		}
		fmt.Fprintf(&b, "📍 <b>Location:</b> %s\n", location)
		fmt.Fprintf(&b, "📱 <b>Device:</b> %s\n", text(e.DeviceType))
		fmt.Fprintf(&b, "🌐 <b>Browser:</b> %s\n", text(e.Browser))
		fmt.Fprintf(&b, "🔗 <b>From:</b> %s\n", platform(e.SourcePlatform))
		fmt.Fprintf(&b, "⏰ <b>Time:</b> %s\n", timestamp)

	case domain.EventLinkClick:
		name := text(e.LinkName)
		b.WriteString("🎯 <b>Link Clicked!</b>\n\n")
		fmt.Fprintf(&b, "%s <b>Link:</b> %s\n", linkIcon(name), name)
		fmt.Fprintf(&b, "📍 <b>Visitor from:</b> %s\n", location)
		if e.AgeVerified != nil {
			verdict := "Cancelled"
			if *e.AgeVerified {
				verdict = "Yes"
			}
			fmt.Fprintf(&b, "✅ <b>Age verified:</b> %s\n", verdict)
		}
		fmt.Fprintf(&b, "⏰ <b>Time:</b> %s\n", timestamp)
		fmt.Fprintf(&b, "🔗 <b>URL:</b> %s\n", text(e.LinkURL))

	case domain.EventAgeWarning:
		b.WriteString("⚠️ <b>Age Warning Shown</b>\n\n")
		fmt.Fprintf(&b, "📍 <b>Visitor from:</b> %s\n", location)
		fmt.Fprintf(&b, "⏰ <b>Time:</b> %s\n", timestamp)

	case domain.EventBounce:
		b.WriteString("👋 <b>Visitor Bounced</b>\n\n")
		fmt.Fprintf(&b, "📍 <b>Visitor from:</b> %s\n", location)
		fmt.Fprintf(&b, "⏱ <b>Time on page:</b> %s\n", seconds(e.TimeOnPage))
		fmt.Fprintf(&b, "⏰ <b>Time:</b> %s\n", timestamp)

	case domain.EventSessionEnd:
		b.WriteString("🏁 <b>Session Ended</b>\n\n")
		fmt.Fprintf(&b, "📍 <b>Visitor from:</b> %s\n", location)
		fmt.Fprintf(&b, "⏱ <b>Time on page:</b> %s\n", seconds(e.TimeOnPage))
		if e.TimeToInteraction != nil {
			fmt.Fprintf(&b, "👆 <b>First interaction after:</b> %s\n", seconds(e.TimeToInteraction))
		}
		fmt.Fprintf(&b, "⏰ <b>Time:</b> %s\n", timestamp)
	}

	return capMessage(b.String())
}

func text(s *string) string {
	if s == nil || *s == "" {
		return "Unknown"
	}
	return html.EscapeString(truncate(*s, maxFieldLength))
}

// truncate cuts s to n runes, marking the cut with an ellipsis.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-1]) + "…"
}

// capMessage drops whole trailing lines so no tag or entity is cut.
func capMessage(msg string) string {
	if utf8.RuneCountInString(msg) <= MaxMessageLength {
		return msg
	}
	cut := string([]rune(msg)[:MaxMessageLength-1])
	if i := strings.LastIndexByte(cut, '\n'); i > 0 {
		cut = cut[:i+1]
	}
	return cut + "…"
}

func platform(s *string) string {
	if s == nil || *s == "" {
		return string(domain.SourceDirect)
	}
	if icon, ok := platformIcons[*s]; ok {
		return html.EscapeString(*s) + " " + icon
	}
	return html.EscapeString(truncate(*s, maxFieldLength))
}

func linkIcon(name string) string {
	switch {
	case strings.Contains(name, "Exclusive"), strings.Contains(name, "OnlyFans"):
		return "💗"
	case strings.Contains(name, "Telegram"):
		return "✈️"
	case strings.Contains(name, "X"), strings.Contains(name, "Twitter"):
		return "𝕏"
	default:
		return "🔗"
	}
}

func seconds(v *int) string {
	if v == nil {
		return "Unknown"
	}
	return fmt.Sprintf("%ds", *v)
}
