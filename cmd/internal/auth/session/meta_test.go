package session

import (
	"strings"
	"testing"
)

func TestDescribeDevice(t *testing.T) {
	cases := []struct {
		agent string
		want  string
	}{
		{"", "unknown device"},
		{"   ", "unknown device"},
		{"Mozilla/5.0 (X11; Linux x86_64; rv:128.0) Gecko/20100101 Firefox/128.0", "Firefox 128.0 on Linux x86_64"},
	}
	for _, tc := range cases {
		if got := DescribeDevice(tc.agent); got != tc.want {
			t.Fatalf("DescribeDevice(%q) = %q, want %q", tc.agent, got, tc.want)
		}
	}

	bot := DescribeDevice("Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)")
	if !strings.HasPrefix(bot, "bot") {
		t.Fatalf("crawler summary = %q, want bot prefix", bot)
	}

	phone := DescribeDevice("Mozilla/5.0 (iPhone; CPU iPhone OS 17_5 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.5 Mobile/15E148 Safari/604.1")
	if !strings.HasSuffix(phone, "(mobile)") {
		t.Fatalf("phone summary = %q, want (mobile) suffix", phone)
	}
}

func TestClientMeta_Normalize(t *testing.T) {
	m := ClientMeta{Address: "  10.0.0.1  ", Agent: ""}.normalize()
	if m.Address != "10.0.0.1" {
		t.Fatalf("Address = %q", m.Address)
	}
	if m.DeviceSummary != "unknown device" {
		t.Fatalf("DeviceSummary = %q", m.DeviceSummary)
	}

	m = ClientMeta{DeviceSummary: "kiosk 3"}.normalize()
	if m.DeviceSummary != "kiosk 3" {
		t.Fatalf("explicit summary should win, got %q", m.DeviceSummary)
	}
}

func TestTruncateRunes(t *testing.T) {
	cases := []struct {
		in   string
		max  int
		want string
	}{
		{"héllo", 4, "héll"},
		{"hi", 4, "hi"},
		{"hi", 0, ""},
	}
	for _, tc := range cases {
		if got := truncateRunes(tc.in, tc.max); got != tc.want {
			t.Fatalf("truncateRunes(%q, %d) = %q, want %q", tc.in, tc.max, got, tc.want)
		}
	}
}
