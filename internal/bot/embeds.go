package bot

import (
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"warden/internal/duration"
	"warden/internal/moderation"
)

func (b *Bot) commandEmbed(title, description string, color int, fields []*discordgo.MessageEmbedField) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       title,
		Description: description,
		Color:       color,
		Timestamp:   time.Now().Format(time.RFC3339),
		Fields:      fields,
	}
}

func (b *Bot) errorEmbed(description string) *discordgo.MessageEmbed {
	return b.commandEmbed("Error", description, b.cfg.EmbedColors.Error, nil)
}

func (b *Bot) successEmbed(title, description string) *discordgo.MessageEmbed {
	return b.commandEmbed(title, description, b.cfg.EmbedColors.Success, nil)
}

// caseEmbed renders a recorded action with its case number in the footer.
func (b *Bot) caseEmbed(title string, action moderation.Action, extra string) *discordgo.MessageEmbed {
	fields := []*discordgo.MessageEmbedField{
		{Name: "User", Value: mention(action.TargetID), Inline: true},
		{Name: "Moderator", Value: mention(action.ModeratorID), Inline: true},
		{Name: "Reason", Value: action.Reason},
	}
	if action.DurationMs > 0 {
		fields = append(fields, &discordgo.MessageEmbedField{
			Name:   "Duration",
			Value:  duration.Format(action.DurationMs),
			Inline: true,
		})
	}
	embed := b.commandEmbed(title, "", b.cfg.EmbedColors.Action, fields)
	embed.Footer = &discordgo.MessageEmbedFooter{Text: fmt.Sprintf("Case #%d", action.ID)}
	if extra != "" {
		embed.Description = extra
	}
	return embed
}

func (b *Bot) levelUpEmbed(userID string, level int) *discordgo.MessageEmbed {
	return b.commandEmbed(
		"Level Up",
		fmt.Sprintf("%s reached level **%d**!", mention(userID), level),
		b.cfg.EmbedColors.Success,
		nil,
	)
}

// progressBar renders a ten-segment bar for leveling embeds.
func progressBar(current, needed int64) string {
	if needed <= 0 {
		return strings.Repeat("█", 10)
	}
	filled := int(current * 10 / needed)
	if filled > 10 {
		filled = 10
	}
	if filled < 0 {
		filled = 0
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", 10-filled)
}

func formatActionLine(action moderation.Action) string {
	state := "inactive"
	if action.IsActive {
		state = "active"
	}
	line := fmt.Sprintf("`#%d` **%s** (%s) <t:%d:R> by %s: %s",
		action.ID, action.Kind, state, action.CreatedAt.Unix(), mention(action.ModeratorID), action.Reason)
	if action.DurationMs > 0 {
		line += fmt.Sprintf(" [%s]", duration.Format(action.DurationMs))
	}
	return line
}
