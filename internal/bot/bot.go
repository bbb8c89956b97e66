package bot

import (
	"context"
	"strings"
	"sync"

	"warden/internal/analytics"
	"warden/internal/config"
	"warden/internal/leveling"
	"warden/internal/moderation"
	"warden/internal/modules/audit"
	"warden/internal/resolver"
	"warden/internal/roblox"
	"warden/internal/storage"
	"warden/internal/verification"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

type Bot struct {
	cfg       config.Config
	logger    *zap.Logger
	store     *storage.Store
	ledger    *moderation.Ledger
	leveling  *leveling.Engine
	resolver  *resolver.Resolver
	roblox    *roblox.Client
	verify    *verification.Service
	audit     *audit.Logger
	analytics *analytics.Service
	session   *discordgo.Session

	modLogMu    sync.Mutex
	modLogCache map[string]string
}

func New(cfg config.Config, logger *zap.Logger, store *storage.Store, ledger *moderation.Ledger, levelEngine *leveling.Engine, res *resolver.Resolver, robloxClient *roblox.Client, verifySvc *verification.Service, auditLogger *audit.Logger, analyticsSvc *analytics.Service) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, err
	}

	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsGuildBans |
		discordgo.IntentsMessageContent

	b := &Bot{
		cfg:         cfg,
		logger:      logger,
		store:       store,
		ledger:      ledger,
		leveling:    levelEngine,
		resolver:    res,
		roblox:      robloxClient,
		verify:      verifySvc,
		audit:       auditLogger,
		analytics:   analyticsSvc,
		session:     session,
		modLogCache: make(map[string]string),
	}

	if b.audit != nil {
		b.audit.SetNotifier(func(ctx context.Context, entry storage.AuditLog) {
			b.notifyAudit(ctx, entry)
		})
	}

	return b, nil
}

func (b *Bot) Start() error {
	b.session.AddHandler(b.onReady)
	b.session.AddHandler(b.onMessageCreate)
	b.session.AddHandler(b.onGuildMemberAdd)
	b.session.AddHandler(b.onInteractionCreate)

	if err := b.session.Open(); err != nil {
		return err
	}

	return b.registerCommands()
}

func (b *Bot) Close(ctx context.Context) {
	_ = ctx
	if b.session != nil {
		_ = b.session.Close()
	}
}

func (b *Bot) onReady(session *discordgo.Session, event *discordgo.Ready) {
	b.logger.Info("discord ready", zap.String("user", session.State.User.Username))
}

func (b *Bot) onMessageCreate(session *discordgo.Session, msg *discordgo.MessageCreate) {
	if msg.Author == nil || msg.Author.Bot {
		return
	}
	if msg.GuildID == "" {
		return
	}

	ctx := context.Background()
	result, err := b.leveling.IngestMessage(ctx, msg.Author.ID)
	if err != nil {
		b.logger.Warn("message ingest failed", zap.String("user_id", msg.Author.ID), zap.Error(err))
		return
	}
	if !result.LeveledUp {
		return
	}

	b.announceLevelUp(session, msg, result)
}

func (b *Bot) announceLevelUp(session *discordgo.Session, msg *discordgo.MessageCreate, result leveling.Result) {
	if roleID, ok := b.leveling.RoleForLevel(result.NewLevel); ok {
		if err := session.GuildMemberRoleAdd(msg.GuildID, msg.Author.ID, roleID); err != nil {
			b.logger.Warn("level role grant failed",
				zap.String("user_id", msg.Author.ID),
				zap.Int("level", result.NewLevel),
				zap.Error(err))
		}
	}

	embed := b.levelUpEmbed(msg.Author.ID, result.NewLevel)
	if _, err := session.ChannelMessageSendEmbed(msg.ChannelID, embed); err != nil {
		b.logger.Warn("level-up announcement failed", zap.String("channel_id", msg.ChannelID), zap.Error(err))
	}
}

// onGuildMemberAdd syncs the nickname of returning verified members to
// their Roblox username, best effort.
func (b *Bot) onGuildMemberAdd(session *discordgo.Session, event *discordgo.GuildMemberAdd) {
	if event.GuildID == "" || event.User == nil {
		return
	}

	profile, linked, err := b.resolver.RobloxIdentity(context.Background(), event.User.ID)
	if err != nil || !linked {
		return
	}
	if err := session.GuildMemberNickname(event.GuildID, event.User.ID, profile.RobloxUsername); err != nil {
		b.logger.Debug("nickname sync failed", zap.String("user_id", event.User.ID), zap.Error(err))
	}
}

func (b *Bot) onInteractionCreate(session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	ctx := context.Background()

	switch interaction.Type {
	case discordgo.InteractionApplicationCommand:
		b.handleCommand(ctx, session, interaction)
	case discordgo.InteractionMessageComponent:
		customID := interaction.MessageComponentData().CustomID
		if userID, ok := strings.CutPrefix(customID, "verify_complete_"); ok {
			b.handleVerifyButton(ctx, session, interaction, userID)
		}
	case discordgo.InteractionModalSubmit:
		customID := interaction.ModalSubmitData().CustomID
		if userID, ok := strings.CutPrefix(customID, "verify_username_"); ok {
			b.handleVerifyModal(ctx, session, interaction, userID)
		}
	}
}

func (b *Bot) handleCommand(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	if interaction.GuildID == "" {
		b.respondEmbed(session, interaction, b.errorEmbed("Commands only work in a server."), true)
		return
	}

	data := interaction.ApplicationCommandData()
	switch data.Name {
	case "ban", "unban", "mute", "unmute", "timeout", "untimeout", "kick",
		"warning", "communityban", "gameban":
		b.handleModerationCommand(ctx, session, interaction)
	case "history", "cmdhistory", "modstats":
		b.handleHistoryCommand(ctx, session, interaction)
	case "check":
		b.handleCheck(ctx, session, interaction)
	case "levels", "messages":
		b.handleLevelCommand(ctx, session, interaction)
	case "verify":
		b.handleVerifyCommand(ctx, session, interaction)
	case "unverify":
		b.handleUnverifyCommand(ctx, session, interaction)
	}
}

func (b *Bot) invoker(interaction *discordgo.InteractionCreate) *discordgo.User {
	if interaction.Member != nil && interaction.Member.User != nil {
		return interaction.Member.User
	}
	return interaction.User
}

// hasPermission checks a Discord permission bit on the invoking member.
func (b *Bot) hasPermission(interaction *discordgo.InteractionCreate, permission int64) bool {
	return interaction.Member != nil && interaction.Member.Permissions&permission != 0
}

// hasStaffRole checks the configured staff roles, falling back to the
// moderate-members permission when none are configured.
func (b *Bot) hasStaffRole(interaction *discordgo.InteractionCreate) bool {
	if len(b.cfg.StaffRoleIDs) == 0 {
		return b.hasPermission(interaction, discordgo.PermissionModerateMembers)
	}
	if interaction.Member == nil {
		return false
	}
	for _, roleID := range interaction.Member.Roles {
		for _, staffID := range b.cfg.StaffRoleIDs {
			if roleID == staffID {
				return true
			}
		}
	}
	return false
}

// modLogChannelID resolves the guild's moderation log channel: the
// configured channel if set, otherwise the first text channel whose name
// looks like a mod log. Discovery results are cached per guild.
func (b *Bot) modLogChannelID(guildID string) string {
	if b.cfg.ModLogChannel != "" {
		return b.cfg.ModLogChannel
	}

	b.modLogMu.Lock()
	if cached, ok := b.modLogCache[guildID]; ok {
		b.modLogMu.Unlock()
		return cached
	}
	b.modLogMu.Unlock()

	channels, err := b.session.GuildChannels(guildID)
	if err != nil {
		b.logger.Warn("channel list failed", zap.String("guild_id", guildID), zap.Error(err))
		return ""
	}

	found := ""
	for _, channel := range channels {
		if channel.Type != discordgo.ChannelTypeGuildText {
			continue
		}
		name := strings.ToLower(channel.Name)
		if strings.Contains(name, "mod-log") || strings.Contains(name, "moderation-log") || strings.Contains(name, "audit-log") {
			found = channel.ID
			break
		}
	}

	b.modLogMu.Lock()
	b.modLogCache[guildID] = found
	b.modLogMu.Unlock()
	return found
}

func (b *Bot) sendModLog(guildID string, embed *discordgo.MessageEmbed) {
	channelID := b.modLogChannelID(guildID)
	if channelID == "" {
		return
	}
	if _, err := b.session.ChannelMessageSendEmbed(channelID, embed); err != nil {
		b.logger.Warn("mod log send failed", zap.String("channel_id", channelID), zap.Error(err))
	}
}

func (b *Bot) notifyAudit(_ context.Context, entry storage.AuditLog) {
	if entry.GuildID == "" {
		return
	}
	b.sendModLog(entry.GuildID, b.commandEmbed("Audit: "+entry.Event, entry.Details, b.cfg.EmbedColors.Action, []*discordgo.MessageEmbedField{
		{Name: "User", Value: mention(entry.UserID), Inline: true},
		{Name: "Level", Value: entry.Level, Inline: true},
	}))
}

// dmUser sends a best-effort direct message; failures are logged, never
// surfaced.
func (b *Bot) dmUser(userID string, embed *discordgo.MessageEmbed) {
	channel, err := b.session.UserChannelCreate(userID)
	if err != nil {
		b.logger.Debug("dm channel create failed", zap.String("user_id", userID), zap.Error(err))
		return
	}
	if _, err := b.session.ChannelMessageSendEmbed(channel.ID, embed); err != nil {
		b.logger.Debug("dm send failed", zap.String("user_id", userID), zap.Error(err))
	}
}

func (b *Bot) respondEmbed(session *discordgo.Session, interaction *discordgo.InteractionCreate, embed *discordgo.MessageEmbed, ephemeral bool) {
	flags := discordgo.MessageFlags(0)
	if ephemeral {
		flags = discordgo.MessageFlagsEphemeral
	}
	err := session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{embed},
			Flags:  flags,
		},
	})
	if err != nil {
		b.logger.Warn("interaction respond failed", zap.Error(err))
	}
}

func (b *Bot) deferResponse(session *discordgo.Session, interaction *discordgo.InteractionCreate, ephemeral bool) {
	flags := discordgo.MessageFlags(0)
	if ephemeral {
		flags = discordgo.MessageFlagsEphemeral
	}
	err := session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: flags},
	})
	if err != nil {
		b.logger.Warn("interaction defer failed", zap.Error(err))
	}
}

func (b *Bot) editResponse(session *discordgo.Session, interaction *discordgo.InteractionCreate, embed *discordgo.MessageEmbed) {
	embeds := []*discordgo.MessageEmbed{embed}
	if _, err := session.InteractionResponseEdit(interaction.Interaction, &discordgo.WebhookEdit{Embeds: &embeds}); err != nil {
		b.logger.Warn("interaction edit failed", zap.Error(err))
	}
}

func optionMap(options []*discordgo.ApplicationCommandInteractionDataOption) map[string]*discordgo.ApplicationCommandInteractionDataOption {
	out := make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(options))
	for _, option := range options {
		out[option.Name] = option
	}
	return out
}

func mention(userID string) string {
	if userID == "" {
		return "-"
	}
	return "<@" + userID + ">"
}
