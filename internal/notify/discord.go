// Package notify delivers roll alerts to a Discord channel.
package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/contactkeval/roll-monitor/internal/display"
	"github.com/contactkeval/roll-monitor/internal/roll"
)

const discordAPIBase = "https://discord.com/api/v10"

// DiscordNotifier posts messages to one channel with a bot token.
// A nil notifier is valid and drops everything, so callers need no
// "notifications enabled" branching.
type DiscordNotifier struct {
	Token     string
	ChannelID string
	client    *http.Client
}

// NewDiscordNotifier returns nil when token or channel is unset.
func NewDiscordNotifier(token, channelID string) *DiscordNotifier {
	if token == "" || channelID == "" {
		return nil
	}
	return &DiscordNotifier{
		Token:     token,
		ChannelID: channelID,
		client:    &http.Client{Timeout: 10 * time.Second},
	}
}

// SendMessage posts raw content to the channel.
func (d *DiscordNotifier) SendMessage(content string) error {
	if d == nil {
		return nil
	}

	url := fmt.Sprintf("%s/channels/%s/messages", discordAPIBase, d.ChannelID)

	payload := map[string]string{"content": content}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}
	req.Header.Set("Authorization", "Bot "+d.Token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("discord API error: %d", resp.StatusCode)
	}
	return nil
}

// FormatRollAlert renders one report as a Discord message, top candidates
// in a code block.
func FormatRollAlert(r roll.Report) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("**Roll alert: %s $%.2f exp %s (%d DTE)**\n",
		r.Position.Symbol, r.Position.Strike, r.Position.Expiry, r.CurrentDTE))
	sb.WriteString(fmt.Sprintf("buyback %.2f | pnl so far %+.2f | rolling to %s\n",
		r.Buyback, r.CurrentPnL, r.RollExpiry))

	sb.WriteString("```\n")
	for i, c := range r.Candidates {
		if i >= 3 {
			break
		}
		sb.WriteString(fmt.Sprintf("%-18s $%-8.2f net %.2f  cap %.2f%%  ann %.1f%%\n",
			display.KindLabel(c), c.Quote.Strike, c.NetCredit, c.CapitalROI, c.AnnualizedROI))
	}
	sb.WriteString("```")
	return sb.String()
}
