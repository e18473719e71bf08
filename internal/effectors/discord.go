package effectors

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"

	"github.com/donnabot/donna/internal/logging"
)

// Discord's hard limit on message length.
const maxMessageLen = 2000

// DiscordEffector sends replies and attachments back to Discord. It shares
// the sense's session.
type DiscordEffector struct {
	session *discordgo.Session
}

// NewDiscordEffector creates a Discord effector on an existing session.
func NewDiscordEffector(session *discordgo.Session) *DiscordEffector {
	return &DiscordEffector{session: session}
}

// Send delivers text to a channel, splitting messages that exceed the
// transport limit.
func (e *DiscordEffector) Send(channelID, text string) error {
	for _, chunk := range splitMessage(text, maxMessageLen) {
		if _, err := e.session.ChannelMessageSend(channelID, chunk); err != nil {
			return fmt.Errorf("send message: %w", err)
		}
	}
	return nil
}

// SendFile uploads a named document to a channel.
func (e *DiscordEffector) SendFile(channelID, name, content string) error {
	_, err := e.session.ChannelFileSend(channelID, name, strings.NewReader(content))
	if err != nil {
		return fmt.Errorf("send file %s: %w", name, err)
	}
	logging.Debug("discord", "sent file %s (%d bytes)", name, len(content))
	return nil
}

// Typing shows the typing indicator while a turn is being processed. Failures
// are ignored; it's cosmetic.
func (e *DiscordEffector) Typing(channelID string) {
	_ = e.session.ChannelTyping(channelID)
}

// splitMessage breaks text into chunks of at most limit bytes, preferring
// newline boundaries and never cutting inside a multi-byte rune.
func splitMessage(text string, limit int) []string {
	if len(text) <= limit {
		return []string{text}
	}

	var chunks []string
	for len(text) > limit {
		cut := strings.LastIndex(text[:limit], "\n")
		if cut <= 0 {
			cut = limit
			for cut > 0 && !utf8.RuneStart(text[cut]) {
				cut--
			}
			if cut == 0 {
				cut = limit
			}
		}
		chunks = append(chunks, strings.TrimRight(text[:cut], "\n"))
		text = strings.TrimLeft(text[cut:], "\n")
	}
	if text != "" {
		chunks = append(chunks, text)
	}
	return chunks
}
