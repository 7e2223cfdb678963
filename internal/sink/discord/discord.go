// Package discord posts classified events to a Discord channel.
package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/blightveil/sclog/pkg/sclog/event"
)

// messageSender is the subset of *discordgo.Session used to post messages.
type messageSender interface {
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Consumer sends one message per event to a single channel.
type Consumer struct {
	sender    messageSender
	session   *discordgo.Session
	channelID string
	allowed   map[event.Type]bool
}

// Option configures a Consumer.
type Option func(*Consumer)

// WithEvents limits the consumer to the given event types.
// With no types every formatted event is posted.
func WithEvents(types ...event.Type) Option {
	return func(c *Consumer) {
		if len(types) == 0 {
			c.allowed = nil
			return
		}
		c.allowed = make(map[event.Type]bool, len(types))
		for _, t := range types {
			c.allowed[t] = true
		}
	}
}

// New creates a bot session for token. The session only uses the REST API;
// no gateway connection is opened.
func New(token, channelID string, opts ...Option) (*Consumer, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("discordgo session: %w", err)
	}
	c := newConsumer(session, channelID, opts)
	c.session = session
	return c, nil
}

func newConsumer(sender messageSender, channelID string, opts []Option) *Consumer {
	c := &Consumer{sender: sender, channelID: channelID}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Consumer) Name() string { return "discord" }

// Consume posts ev unless its type is filtered out or has no message format.
func (c *Consumer) Consume(ctx context.Context, ev event.Event) error {
	if c.allowed != nil && !c.allowed[ev.Type] {
		return nil
	}
	msg := Format(ev)
	if msg == "" {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if _, err := c.sender.ChannelMessageSend(c.channelID, msg, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("send to Discord: %w", err)
	}
	return nil
}

// Close releases the bot session.
func (c *Consumer) Close() error {
	if c.session == nil {
		return nil
	}
	return c.session.Close()
}

// Format renders ev as a Discord message. It returns "" for events that are
// not posted.
func Format(ev event.Event) string {
	switch ev.Type {
	case event.ActorDeath:
		return fmt.Sprintf("💀 **%s** killed by **%s** in %s (%s, %s)",
			ev.Victim, ev.Killer, orUnknown(ev.Zone), orUnknown(ev.Weapon), orUnknown(ev.DamageType))
	case event.VehicleDestroyed:
		return fmt.Sprintf("💥 **%s** destroyed by **%s** in %s (level %d, %s)",
			ev.Vehicle, ev.Destroyer, orUnknown(ev.Zone), ev.DestroyLevel, orUnknown(ev.Cause))
	case event.QuantumTravelAttempt:
		return fmt.Sprintf("🌀 **%s** is spooling quantum travel", ev.Entity)
	case event.JumpDriveStateChanged:
		return fmt.Sprintf("🌌 Jump drive is now **%s**", ev.JumpDriveState)
	case event.DoorStateChanged:
		return fmt.Sprintf("🚪 %s door **%s**", ev.StructureID, ev.DoorState)
	case event.ZoneAlert:
		return fmt.Sprintf("🚨 Traffic at **%s** (%s)", ev.AlertKind, ev.StructureID)
	default:
		return ""
	}
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
