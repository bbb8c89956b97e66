package bot

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"warden/internal/modules/audit"
	"warden/internal/roblox"
	"warden/internal/verification"
)

func (b *Bot) handleVerifyCommand(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	user := b.invoker(interaction)

	profile, err := b.store.GetProfile(ctx, user.ID)
	if err == nil && profile.RobloxID != nil {
		b.respondEmbed(session, interaction, b.errorEmbed(fmt.Sprintf(
			"You are already verified as **%s**. Use /unverify first to link a different account.",
			profile.RobloxUsername)), true)
		return
	}
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		b.logger.Error("profile lookup failed", zap.Error(err))
		b.respondEmbed(session, interaction, b.errorEmbed("Could not start verification."), true)
		return
	}

	pending := b.verify.Begin(user.ID)
	embed := b.commandEmbed(
		"Roblox Verification",
		fmt.Sprintf("1. Open your Roblox profile and edit your **About** section.\n"+
			"2. Paste this code anywhere in it:\n\n```%s```\n"+
			"3. Press the button below and enter your username.\n\n"+
			"The code expires in %d minutes. You can remove it once you are verified.",
			pending.Code, b.cfg.Verification.CodeTTLMinutes),
		b.cfg.EmbedColors.Action,
		nil,
	)

	err = session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{embed},
			Flags:  discordgo.MessageFlagsEphemeral,
			Components: []discordgo.MessageComponent{
				discordgo.ActionsRow{
					Components: []discordgo.MessageComponent{
						discordgo.Button{
							Label:    "Complete Verification",
							Style:    discordgo.PrimaryButton,
							CustomID: "verify_complete_" + user.ID,
						},
					},
				},
			},
		},
	})
	if err != nil {
		b.logger.Warn("verification prompt failed", zap.Error(err))
	}
}

func (b *Bot) handleVerifyButton(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, userID string) {
	if b.invoker(interaction).ID != userID {
		b.respondEmbed(session, interaction, b.errorEmbed("This verification belongs to someone else. Run /verify yourself."), true)
		return
	}

	err := session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseModal,
		Data: &discordgo.InteractionResponseData{
			CustomID: "verify_username_" + userID,
			Title:    "Roblox Verification",
			Components: []discordgo.MessageComponent{
				discordgo.ActionsRow{
					Components: []discordgo.MessageComponent{
						discordgo.TextInput{
							CustomID:    "username",
							Label:       "Your Roblox username",
							Style:       discordgo.TextInputShort,
							Placeholder: "builderman",
							Required:    true,
							MaxLength:   20,
						},
					},
				},
			},
		},
	})
	if err != nil {
		b.logger.Warn("verification modal failed", zap.Error(err))
	}
}

func (b *Bot) handleVerifyModal(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, userID string) {
	if b.invoker(interaction).ID != userID {
		b.respondEmbed(session, interaction, b.errorEmbed("This verification belongs to someone else."), true)
		return
	}

	username := modalTextValue(interaction.ModalSubmitData(), "username")
	if username == "" {
		b.respondEmbed(session, interaction, b.errorEmbed("Enter a Roblox username."), true)
		return
	}

	// Profile fetches go to the Roblox API, so acknowledge first.
	b.deferResponse(session, interaction, true)

	profile, err := b.verify.Complete(ctx, userID, username)
	if err != nil {
		b.editResponse(session, interaction, b.verificationErrorEmbed(err))
		return
	}

	if interaction.GuildID != "" {
		if err := session.GuildMemberNickname(interaction.GuildID, userID, profile.Username); err != nil {
			b.logger.Debug("nickname sync failed",
				zap.String("user_id", userID), zap.Error(err))
		}
	}
	b.audit.Log(ctx, audit.LevelInfo, interaction.GuildID, userID, "verification",
		fmt.Sprintf("linked to Roblox account %s (%d)", profile.Username, profile.ID))

	b.editResponse(session, interaction, b.successEmbed(
		"Verified",
		fmt.Sprintf("You are now linked to **%s** (ID %d). You can remove the code from your profile.",
			profile.Username, profile.ID)))
}

func (b *Bot) handleUnverifyCommand(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	user := b.invoker(interaction)
	if err := b.verify.Unverify(ctx, user.ID); err != nil {
		if errors.Is(err, verification.ErrNotVerified) {
			b.respondEmbed(session, interaction, b.errorEmbed("You are not verified."), true)
			return
		}
		b.logger.Error("unverify failed", zap.Error(err))
		b.respondEmbed(session, interaction, b.errorEmbed("Could not unlink your account."), true)
		return
	}

	b.audit.Log(ctx, audit.LevelInfo, interaction.GuildID, user.ID, "verification", "unlinked Roblox account")
	b.respondEmbed(session, interaction, b.successEmbed("Unverified", "Your Roblox account has been unlinked."), true)
}

func (b *Bot) verificationErrorEmbed(err error) *discordgo.MessageEmbed {
	switch {
	case errors.Is(err, verification.ErrNoPending):
		return b.errorEmbed("No verification in progress, or the code expired. Run /verify again.")
	case errors.Is(err, verification.ErrCodeMissing):
		return b.errorEmbed("The code was not found in that profile's description. Save the profile and try again.")
	case errors.Is(err, verification.ErrAlreadyLinked):
		return b.errorEmbed("That Roblox account is already linked to a different Discord user.")
	case errors.Is(err, roblox.ErrUserNotFound):
		return b.errorEmbed("No Roblox user with that username exists.")
	default:
		return b.errorEmbed("Verification failed, try again later.")
	}
}

func modalTextValue(data discordgo.ModalSubmitInteractionData, customID string) string {
	for _, row := range data.Components {
		actionsRow, ok := row.(*discordgo.ActionsRow)
		if !ok {
			continue
		}
		for _, component := range actionsRow.Components {
			input, ok := component.(*discordgo.TextInput)
			if ok && input.CustomID == customID {
				return input.Value
			}
		}
	}
	return ""
}
