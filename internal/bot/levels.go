package bot

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"warden/internal/leveling"
)

func (b *Bot) handleLevelCommand(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	data := interaction.ApplicationCommandData()
	switch data.Name {
	case "levels":
		b.respondLevels(ctx, session, interaction)
	case "messages":
		b.respondLeaderboard(ctx, session, interaction)
	}
}

func (b *Bot) respondLevels(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	target := b.invoker(interaction)
	opts := optionMap(interaction.ApplicationCommandData().Options)
	if opt, ok := opts["user"]; ok {
		target = opt.UserValue(session)
	}

	progress, err := b.leveling.GetProgress(ctx, target.ID)
	if err != nil {
		b.logger.Error("progress lookup failed", zap.Error(err))
		b.respondEmbed(session, interaction, b.errorEmbed("Could not load level progress."), true)
		return
	}

	fields := []*discordgo.MessageEmbedField{
		{Name: "Level", Value: fmt.Sprintf("%d / %d", progress.Level, leveling.MaxLevel), Inline: true},
		{Name: "Messages", Value: fmt.Sprintf("%d", progress.MessageCount), Inline: true},
	}
	if progress.AtMax {
		fields = append(fields, &discordgo.MessageEmbedField{
			Name:  "Progress",
			Value: progressBar(1, 1) + " max level reached",
		})
	} else {
		fields = append(fields, &discordgo.MessageEmbedField{
			Name: "Progress",
			Value: fmt.Sprintf("%s %d / %d to level %d",
				progressBar(progress.ProgressToNext, progress.NeededForNext),
				progress.ProgressToNext, progress.NeededForNext, progress.Level+1),
		})
	}

	embed := b.commandEmbed(fmt.Sprintf("Level progress for %s", target.Username), "", b.cfg.EmbedColors.Success, fields)
	b.respondEmbed(session, interaction, embed, false)
}

func (b *Bot) respondLeaderboard(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	top, err := b.leveling.Leaderboard(ctx, 10)
	if err != nil {
		b.logger.Error("leaderboard failed", zap.Error(err))
		b.respondEmbed(session, interaction, b.errorEmbed("Could not load the leaderboard."), true)
		return
	}

	lines := make([]string, 0, len(top))
	for i, profile := range top {
		name := mention(profile.DiscordID)
		if profile.RobloxUsername != "" {
			name += " (" + profile.RobloxUsername + ")"
		}
		lines = append(lines, fmt.Sprintf("**%d.** %s: level %d, %d messages",
			i+1, name, profile.Level, profile.MessageCount))
	}
	description := "Nobody has sent a message yet."
	if len(lines) > 0 {
		description = strings.Join(lines, "\n")
	}

	embed := b.commandEmbed("Message Leaderboard", description, b.cfg.EmbedColors.Success, nil)
	if stats, err := b.leveling.Stats(ctx); err == nil {
		embed.Footer = &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf("%d chatters, %d messages, avg %d per user",
				stats.TotalUsers, stats.TotalMessages, stats.AverageMessages),
		}
	}
	b.respondEmbed(session, interaction, embed, false)
}
