package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"warden/internal/roblox"
)

func (b *Bot) handleCheck(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	if !b.hasStaffRole(interaction) {
		b.respondEmbed(session, interaction, b.errorEmbed("You do not have permission to use this command."), true)
		return
	}

	opts := optionMap(interaction.ApplicationCommandData().Options)
	username := strings.TrimSpace(opts["username"].StringValue())

	// The report needs several Roblox API round trips.
	b.deferResponse(session, interaction, false)

	report, err := b.resolver.CheckPlayer(ctx, interaction.GuildID, username, b.cfg.Roblox.CommunityGroupIDs)
	if err != nil {
		if errors.Is(err, roblox.ErrUserNotFound) {
			b.editResponse(session, interaction, b.errorEmbed(fmt.Sprintf("No Roblox user named **%s** exists.", username)))
			return
		}
		b.logger.Error("player check failed", zap.String("username", username), zap.Error(err))
		b.editResponse(session, interaction, b.errorEmbed("Could not look up that player, try again later."))
		return
	}

	profile := report.Profile
	fields := []*discordgo.MessageEmbedField{
		{Name: "User ID", Value: fmt.Sprintf("%d", profile.ID), Inline: true},
		{Name: "Account age", Value: accountAge(profile.Created), Inline: true},
	}
	if profile.IsBanned {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Platform status", Value: "Banned from Roblox", Inline: true})
	}

	if len(report.Groups) > 0 {
		lines := make([]string, 0, len(report.Groups))
		for _, group := range report.Groups {
			lines = append(lines, fmt.Sprintf("%s (%s)", group.Name, group.Role))
		}
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Community groups", Value: strings.Join(lines, "\n")})
	} else {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Community groups", Value: "None"})
	}

	if report.Linked != nil {
		fields = append(fields, &discordgo.MessageEmbedField{
			Name:   "Discord",
			Value:  mention(report.Linked.DiscordID),
			Inline: true,
		})
	} else {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Discord", Value: "Not verified here", Inline: true})
	}

	if summary := report.Summary; summary != nil {
		fields = append(fields, &discordgo.MessageEmbedField{
			Name: "Moderation summary",
			Value: fmt.Sprintf("Warnings: %d\nCommunity bans: %d\nGame bans: %d",
				summary.Warnings, summary.CommunityBans, summary.GameBans),
			Inline: true,
		})
		if len(summary.Recent) > 0 {
			lines := make([]string, 0, len(summary.Recent))
			for _, action := range summary.Recent {
				lines = append(lines, formatActionLine(action))
			}
			fields = append(fields, &discordgo.MessageEmbedField{Name: "Recent actions", Value: strings.Join(lines, "\n")})
		}
	}

	title := profile.Username
	if profile.DisplayName != "" && profile.DisplayName != profile.Username {
		title = profile.DisplayName + " (@" + profile.Username + ")"
	}
	embed := b.commandEmbed(title, profile.Description, b.cfg.EmbedColors.Action, fields)
	embed.URL = fmt.Sprintf("https://www.roblox.com/users/%d/profile", profile.ID)
	if report.AvatarURL != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: report.AvatarURL}
	}
	b.editResponse(session, interaction, embed)
}

func accountAge(created time.Time) string {
	if created.IsZero() {
		return "unknown"
	}
	days := int(time.Since(created).Hours() / 24)
	switch {
	case days >= 365:
		return fmt.Sprintf("%.1f years", float64(days)/365)
	case days >= 30:
		return fmt.Sprintf("%d months", days/30)
	default:
		return fmt.Sprintf("%d days", days)
	}
}
