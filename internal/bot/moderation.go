package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"warden/internal/duration"
	"warden/internal/moderation"
	"warden/internal/modules/audit"
)

func (b *Bot) handleModerationCommand(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	data := interaction.ApplicationCommandData()
	name := data.Name
	options := data.Options

	// warning/communityban/gameban carry add|remove subcommands.
	removing := false
	if len(options) == 1 && options[0].Type == discordgo.ApplicationCommandOptionSubCommand {
		removing = options[0].Name == "remove"
		options = options[0].Options
	}

	if !b.allowedFor(interaction, name) {
		b.respondEmbed(session, interaction, b.errorEmbed("You do not have permission to use this command."), true)
		return
	}

	opts := optionMap(options)
	targetOpt, ok := opts["user"]
	if !ok {
		b.respondEmbed(session, interaction, b.errorEmbed("A user is required."), true)
		return
	}
	target := targetOpt.UserValue(session)
	reason := ""
	if opt, ok := opts["reason"]; ok {
		reason = strings.TrimSpace(opt.StringValue())
	}

	var durationMs int64
	if opt, ok := opts["duration"]; ok && opt.StringValue() != "" {
		parsed, err := duration.Parse(opt.StringValue(), unitsFor(name)...)
		if err != nil {
			b.respondEmbed(session, interaction, b.errorEmbed(err.Error()), true)
			return
		}
		durationMs = parsed
	}

	kind := kindFor(name, durationMs)
	moderator := b.invoker(interaction)

	if removing || strings.HasPrefix(name, "un") {
		b.reverseAction(ctx, session, interaction, kind, target, moderator, reason)
		return
	}
	b.recordAction(ctx, session, interaction, moderation.Request{
		GuildID:     interaction.GuildID,
		TargetID:    target.ID,
		ModeratorID: moderator.ID,
		Kind:        kind,
		Reason:      reason,
		DurationMs:  durationMs,
	})
}

func (b *Bot) recordAction(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, req moderation.Request) {
	if req.Kind == moderation.KindTimeout && time.Duration(req.DurationMs)*time.Millisecond > moderation.TimeoutCeiling {
		b.respondEmbed(session, interaction, b.errorEmbed("Timeouts cannot exceed 28 days. Use /ban or /mute for longer punishments."), true)
		return
	}

	action, err := b.ledger.Record(ctx, req)
	if err != nil {
		b.respondEmbed(session, interaction, b.ledgerErrorEmbed(err), true)
		return
	}

	// DM before the platform action so a kicked or banned user still
	// receives the notice.
	b.dmUser(req.TargetID, b.commandEmbed(
		fmt.Sprintf("You received a %s", titleFor(action.Kind)),
		fmt.Sprintf("Reason: %s", action.Reason),
		b.cfg.EmbedColors.Action,
		nil,
	))

	note := ""
	if err := b.applyPlatform(session, action); err != nil {
		b.logger.Warn("platform action failed",
			zap.String("guild_id", action.GuildID),
			zap.String("kind", string(action.Kind)),
			zap.Error(err))
		note = "The action was recorded but could not be applied on Discord: " + err.Error()
	}

	b.audit.Log(ctx, audit.LevelWarn, action.GuildID, action.TargetID, "moderation",
		fmt.Sprintf("%s by %s: %s (case #%d)", action.Kind, action.ModeratorID, action.Reason, action.ID))

	embed := b.caseEmbed(titleFor(action.Kind), action, note)
	b.respondEmbed(session, interaction, embed, false)
	b.sendModLog(action.GuildID, embed)
}

func (b *Bot) reverseAction(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, kind moderation.Kind, target *discordgo.User, moderator *discordgo.User, reason string) {
	action, err := b.ledger.Reverse(ctx, interaction.GuildID, target.ID, moderator.ID, kind, reason)
	if err != nil {
		b.respondEmbed(session, interaction, b.ledgerErrorEmbed(err), true)
		return
	}

	note := ""
	if err := b.applyPlatform(session, action); err != nil {
		b.logger.Warn("platform action failed",
			zap.String("guild_id", action.GuildID),
			zap.String("kind", string(action.Kind)),
			zap.Error(err))
		note = "The reversal was recorded but could not be applied on Discord: " + err.Error()
	}

	b.audit.Log(ctx, audit.LevelInfo, action.GuildID, action.TargetID, "moderation",
		fmt.Sprintf("%s by %s: %s (case #%d)", action.Kind, action.ModeratorID, action.Reason, action.ID))

	embed := b.caseEmbed(titleFor(action.Kind), action, note)
	b.respondEmbed(session, interaction, embed, false)
	b.sendModLog(action.GuildID, embed)
}

// applyPlatform mirrors a ledger record onto Discord. Warnings and the
// Roblox-side kinds have no platform counterpart.
func (b *Bot) applyPlatform(session *discordgo.Session, action moderation.Action) error {
	switch action.Kind {
	case moderation.KindBan:
		return session.GuildBanCreateWithReason(action.GuildID, action.TargetID, action.Reason, 0)
	case moderation.KindUnban:
		return session.GuildBanDelete(action.GuildID, action.TargetID)
	case moderation.KindKick:
		return session.GuildMemberDeleteWithReason(action.GuildID, action.TargetID, action.Reason)
	case moderation.KindTimeout:
		until := time.Now().Add(time.Duration(action.DurationMs) * time.Millisecond)
		return session.GuildMemberTimeout(action.GuildID, action.TargetID, &until)
	case moderation.KindUntimeout:
		return session.GuildMemberTimeout(action.GuildID, action.TargetID, nil)
	case moderation.KindMute:
		roleID, err := b.mutedRoleID(session, action.GuildID)
		if err != nil {
			return err
		}
		return session.GuildMemberRoleAdd(action.GuildID, action.TargetID, roleID)
	case moderation.KindUnmute:
		roleID, err := b.mutedRoleID(session, action.GuildID)
		if err != nil {
			return err
		}
		return session.GuildMemberRoleRemove(action.GuildID, action.TargetID, roleID)
	default:
		return nil
	}
}

func (b *Bot) mutedRoleID(session *discordgo.Session, guildID string) (string, error) {
	roles, err := session.GuildRoles(guildID)
	if err != nil {
		return "", err
	}
	for _, role := range roles {
		if strings.EqualFold(role.Name, "Muted") {
			return role.ID, nil
		}
	}
	return "", errors.New("no Muted role found in this server")
}

func (b *Bot) ledgerErrorEmbed(err error) *discordgo.MessageEmbed {
	var conflict *moderation.ConflictError
	var reversal *moderation.ReversalError
	var invalid *moderation.ValidationError
	switch {
	case errors.As(err, &conflict):
		existing := conflict.Existing
		return b.errorEmbed(fmt.Sprintf(
			"This user already has an active %s (case #%d): %s",
			existing.Kind, existing.ID, existing.Reason))
	case errors.As(err, &reversal):
		return b.errorEmbed(fmt.Sprintf("This user has no active %s to remove.", reversal.Kind))
	case errors.As(err, &invalid):
		return b.errorEmbed(invalid.Detail)
	default:
		return b.errorEmbed("Something went wrong recording the action.")
	}
}

// allowedFor maps command names to the Discord permission they require.
func (b *Bot) allowedFor(interaction *discordgo.InteractionCreate, command string) bool {
	switch command {
	case "ban", "unban":
		return b.hasPermission(interaction, discordgo.PermissionBanMembers)
	case "kick":
		return b.hasPermission(interaction, discordgo.PermissionKickMembers)
	case "mute", "unmute", "timeout", "untimeout":
		return b.hasPermission(interaction, discordgo.PermissionModerateMembers)
	default:
		return b.hasStaffRole(interaction)
	}
}

func kindFor(command string, durationMs int64) moderation.Kind {
	switch command {
	case "mute":
		return moderation.SelectMuteKind(durationMs)
	case "unmute":
		return moderation.KindMute
	case "untimeout":
		return moderation.KindTimeout
	case "unban":
		return moderation.KindBan
	default:
		return moderation.Kind(command)
	}
}

func unitsFor(command string) []duration.Unit {
	switch command {
	case "ban":
		return duration.BanUnits
	case "timeout":
		return duration.TimeoutUnits
	default:
		return duration.MuteUnits
	}
}

func titleFor(kind moderation.Kind) string {
	switch kind {
	case moderation.KindBan:
		return "Ban"
	case moderation.KindUnban:
		return "Ban Lifted"
	case moderation.KindMute:
		return "Mute"
	case moderation.KindUnmute:
		return "Mute Lifted"
	case moderation.KindTimeout:
		return "Timeout"
	case moderation.KindUntimeout:
		return "Timeout Lifted"
	case moderation.KindKick:
		return "Kick"
	case moderation.KindWarning:
		return "Warning"
	case moderation.KindCommunityBan:
		return "Community Ban"
	case moderation.KindGameBan:
		return "Game Ban"
	default:
		return string(kind)
	}
}

func (b *Bot) handleHistoryCommand(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	if !b.hasStaffRole(interaction) {
		b.respondEmbed(session, interaction, b.errorEmbed("You do not have permission to use this command."), true)
		return
	}

	data := interaction.ApplicationCommandData()
	opts := optionMap(data.Options)

	switch data.Name {
	case "history":
		target := opts["user"].UserValue(session)
		filter := moderation.Filter{TargetID: target.ID}
		if opt, ok := opts["kind"]; ok {
			filter.Kind = moderation.Kind(opt.StringValue())
		}
		b.respondHistory(ctx, session, interaction,
			fmt.Sprintf("History for %s", target.Username), filter)
	case "cmdhistory":
		mod := opts["moderator"].UserValue(session)
		b.respondHistory(ctx, session, interaction,
			fmt.Sprintf("Actions issued by %s", mod.Username),
			moderation.Filter{ModeratorID: mod.ID})
	case "modstats":
		b.respondModStats(ctx, session, interaction, opts)
	}
}

func (b *Bot) respondHistory(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, title string, filter moderation.Filter) {
	actions, err := b.ledger.History(ctx, interaction.GuildID, filter, moderation.HistoryCap)
	if err != nil {
		b.logger.Error("history lookup failed", zap.Error(err))
		b.respondEmbed(session, interaction, b.errorEmbed("Could not load the history."), true)
		return
	}
	if len(actions) == 0 {
		b.respondEmbed(session, interaction, b.commandEmbed(title, "No recorded actions.", b.cfg.EmbedColors.Action, nil), true)
		return
	}

	lines := make([]string, 0, len(actions))
	for _, action := range actions {
		lines = append(lines, formatActionLine(action))
	}
	embed := b.commandEmbed(title, strings.Join(lines, "\n"), b.cfg.EmbedColors.Action, nil)
	embed.Footer = &discordgo.MessageEmbedFooter{Text: fmt.Sprintf("%d records shown", len(actions))}
	b.respondEmbed(session, interaction, embed, true)
}

func (b *Bot) respondModStats(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, opts map[string]*discordgo.ApplicationCommandInteractionDataOption) {
	period := "30d"
	if opt, ok := opts["period"]; ok {
		period = opt.StringValue()
	}

	var since time.Time
	switch period {
	case "1d":
		since = time.Now().AddDate(0, 0, -1)
	case "7d":
		since = time.Now().AddDate(0, 0, -7)
	case "30d":
		since = time.Now().AddDate(0, 0, -30)
	case "90d":
		since = time.Now().AddDate(0, 0, -90)
	}

	report, err := b.analytics.ModerationReport(ctx, interaction.GuildID, since)
	if err != nil {
		b.logger.Error("modstats failed", zap.Error(err))
		b.respondEmbed(session, interaction, b.errorEmbed("Could not compute moderation statistics."), true)
		return
	}

	fields := []*discordgo.MessageEmbedField{
		{Name: "Total actions", Value: fmt.Sprintf("%d", report.Total), Inline: true},
	}
	if len(report.ByKind) > 0 {
		lines := make([]string, 0, len(report.ByKind))
		for _, kc := range report.ByKind {
			lines = append(lines, fmt.Sprintf("%s: %d", kc.Kind, kc.Count))
		}
		fields = append(fields, &discordgo.MessageEmbedField{Name: "By kind", Value: strings.Join(lines, "\n")})
	}
	if len(report.TopModerators) > 0 {
		lines := make([]string, 0, len(report.TopModerators))
		for _, mc := range report.TopModerators {
			lines = append(lines, fmt.Sprintf("%s: %d", mention(mc.ModeratorID), mc.Count))
		}
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Top moderators", Value: strings.Join(lines, "\n")})
	}

	title := "Moderation Statistics"
	if period != "all" {
		title += " (" + period + ")"
	}
	b.respondEmbed(session, interaction, b.commandEmbed(title, "", b.cfg.EmbedColors.Action, fields), true)
}
