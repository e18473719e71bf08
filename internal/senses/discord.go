package senses

import (
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/donnabot/donna/internal/logging"
)

// Message is one inbound operator message, normalized away from the
// transport's own types.
type Message struct {
	ConversationID string
	AuthorID       string
	AuthorName     string
	Text           string
}

// DiscordConfig holds Discord connection settings.
type DiscordConfig struct {
	Token     string
	ChannelID string // if set, only this channel is listened to
	OwnerID   string // if set, only this user is listened to
}

// DiscordSense listens to Discord and delivers operator messages through a
// callback. It filters to the configured owner and channel; everything else
// on the server is ignored.
type DiscordSense struct {
	session   *discordgo.Session
	channelID string
	ownerID   string
	botID     string
	onMessage func(Message)
}

// NewDiscordSense creates a Discord sense.
func NewDiscordSense(cfg DiscordConfig, onMessage func(Message)) (*DiscordSense, error) {
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("create Discord session: %w", err)
	}

	sense := &DiscordSense{
		session:   session,
		channelID: cfg.ChannelID,
		ownerID:   cfg.OwnerID,
		onMessage: onMessage,
	}

	session.AddHandler(sense.handleMessage)
	session.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentsDirectMessages | discordgo.IntentsMessageContent

	return sense, nil
}

// Start connects to Discord and begins listening.
func (d *DiscordSense) Start() error {
	if err := d.session.Open(); err != nil {
		return fmt.Errorf("open Discord connection: %w", err)
	}

	d.botID = d.session.State.User.ID
	logging.Info("discord", "connected as %s", d.session.State.User.Username)
	return nil
}

// Stop disconnects from Discord.
func (d *DiscordSense) Stop() error {
	return d.session.Close()
}

// Session returns the underlying session for sharing with the effector.
func (d *DiscordSense) Session() *discordgo.Session {
	return d.session
}

func (d *DiscordSense) handleMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author.ID == d.botID {
		return
	}
	if d.channelID != "" && m.ChannelID != d.channelID {
		return
	}
	if d.ownerID != "" && m.Author.ID != d.ownerID {
		logging.Debug("discord", "ignoring message from %s", m.Author.Username)
		return
	}

	logging.Debug("discord", "message from %s: %s", m.Author.Username, logging.Truncate(m.Content, 50))

	if d.onMessage != nil {
		d.onMessage(Message{
			ConversationID: m.ChannelID,
			AuthorID:       m.Author.ID,
			AuthorName:     displayName(m),
			Text:           m.Content,
		})
	}
}

func displayName(m *discordgo.MessageCreate) string {
	if m.Member != nil && m.Member.Nick != "" {
		return m.Member.Nick
	}
	if m.Author.GlobalName != "" {
		return m.Author.GlobalName
	}
	return m.Author.Username
}
