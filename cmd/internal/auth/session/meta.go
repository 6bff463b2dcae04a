package session

import (
	"strings"
	"unicode/utf8"

	"github.com/mssola/useragent"
)

// Bounds applied to client metadata on write.
const (
	MaxClientAddressLen = 64
	MaxClientAgentLen   = 512
	MaxDeviceSummaryLen = 128
)

// ClientMeta is descriptive request metadata captured at login.
// None of it takes part in authorization.
type ClientMeta struct {
	Address       string
	Agent         string
	DeviceSummary string
}

// normalize trims and bounds every field and derives DeviceSummary from Agent when absent.
func (m ClientMeta) normalize() ClientMeta {
	out := ClientMeta{
		Address:       truncateRunes(strings.TrimSpace(m.Address), MaxClientAddressLen),
		Agent:         truncateRunes(strings.TrimSpace(m.Agent), MaxClientAgentLen),
		DeviceSummary: strings.TrimSpace(m.DeviceSummary),
	}
	if out.DeviceSummary == "" {
		out.DeviceSummary = DescribeDevice(out.Agent)
	}
	out.DeviceSummary = truncateRunes(out.DeviceSummary, MaxDeviceSummaryLen)
	return out
}

// DescribeDevice turns a User-Agent header into a short label such as
// "Firefox 128.0 on Linux x86_64". Empty input yields "unknown device".
func DescribeDevice(agent string) string {
	agent = strings.TrimSpace(agent)
	if agent == "" {
		return "unknown device"
	}

	ua := useragent.New(agent)
	if ua.Bot() {
		name, _ := ua.Browser()
		if name == "" {
			return "bot"
		}
		return "bot: " + name
	}

	name, version := ua.Browser()
	var b strings.Builder
	if name != "" {
		b.WriteString(name)
		if version != "" {
			b.WriteString(" ")
			b.WriteString(version)
		}
	}
	if platform := ua.OS(); platform != "" {
		if b.Len() > 0 {
			b.WriteString(" on ")
		}
		b.WriteString(platform)
	}
	if b.Len() == 0 {
		return "unknown device"
	}
	if ua.Mobile() {
		b.WriteString(" (mobile)")
	}
	return b.String()
}

func truncateRunes(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	n := 0
	for i := range s {
		if n == max {
			return s[:i]
		}
		n++
	}
	return s
}
