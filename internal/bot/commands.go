package bot

import "github.com/bwmarrin/discordgo"

func userOption(description string) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionUser,
		Name:        "user",
		Description: description,
		Required:    true,
	}
}

func reasonOption() *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        "reason",
		Description: "Reason for the action",
		Required:    true,
	}
}

func durationOption(description string, required bool) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        "duration",
		Description: description,
		Required:    required,
	}
}

func addRemoveSubcommands(noun string) []*discordgo.ApplicationCommandOption {
	return []*discordgo.ApplicationCommandOption{
		{
			Type:        discordgo.ApplicationCommandOptionSubCommand,
			Name:        "add",
			Description: "Give a " + noun + " to a user",
			Options: []*discordgo.ApplicationCommandOption{
				userOption("User to mark"),
				reasonOption(),
			},
		},
		{
			Type:        discordgo.ApplicationCommandOptionSubCommand,
			Name:        "remove",
			Description: "Remove the most recent " + noun + " from a user",
			Options: []*discordgo.ApplicationCommandOption{
				userOption("User to clear"),
				reasonOption(),
			},
		},
	}
}

func (b *Bot) registerCommands() error {
	commands := []*discordgo.ApplicationCommand{
		{
			Name:        "ban",
			Description: "Ban a user from the server",
			Options: []*discordgo.ApplicationCommandOption{
				userOption("User to ban"),
				reasonOption(),
				durationOption("Ban length (e.g. 3d, 2w, 1mo, 1y); empty is permanent", false),
			},
		},
		{
			Name:        "unban",
			Description: "Lift a user's ban",
			Options: []*discordgo.ApplicationCommandOption{
				userOption("User to unban"),
				reasonOption(),
			},
		},
		{
			Name:        "mute",
			Description: "Mute a user",
			Options: []*discordgo.ApplicationCommandOption{
				userOption("User to mute"),
				reasonOption(),
				durationOption("Mute length (e.g. 2h, 3d, 1w); empty is permanent", false),
			},
		},
		{
			Name:        "unmute",
			Description: "Lift a user's mute or timeout",
			Options: []*discordgo.ApplicationCommandOption{
				userOption("User to unmute"),
				reasonOption(),
			},
		},
		{
			Name:        "timeout",
			Description: "Time a user out",
			Options: []*discordgo.ApplicationCommandOption{
				userOption("User to time out"),
				reasonOption(),
				durationOption("Timeout length (e.g. 30m, 2h, 1d), up to 28 days", true),
			},
		},
		{
			Name:        "untimeout",
			Description: "Lift a user's timeout",
			Options: []*discordgo.ApplicationCommandOption{
				userOption("User to release"),
				reasonOption(),
			},
		},
		{
			Name:        "kick",
			Description: "Kick a user from the server",
			Options: []*discordgo.ApplicationCommandOption{
				userOption("User to kick"),
				reasonOption(),
			},
		},
		{
			Name:        "warning",
			Description: "Manage user warnings",
			Options:     addRemoveSubcommands("warning"),
		},
		{
			Name:        "communityban",
			Description: "Manage community bans",
			Options:     addRemoveSubcommands("community ban"),
		},
		{
			Name:        "gameban",
			Description: "Manage game bans",
			Options:     addRemoveSubcommands("game ban"),
		},
		{
			Name:        "history",
			Description: "Show a user's moderation history",
			Options: []*discordgo.ApplicationCommandOption{
				userOption("User to look up"),
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "kind",
					Description: "Only show one kind of action",
					Required:    false,
					Choices: []*discordgo.ApplicationCommandOptionChoice{
						{Name: "ban", Value: "ban"},
						{Name: "mute", Value: "mute"},
						{Name: "timeout", Value: "timeout"},
						{Name: "kick", Value: "kick"},
						{Name: "warning", Value: "warning"},
						{Name: "communityban", Value: "communityban"},
						{Name: "gameban", Value: "gameban"},
					},
				},
			},
		},
		{
			Name:        "cmdhistory",
			Description: "Show actions issued by a moderator",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "moderator",
					Description: "Moderator to look up",
					Required:    true,
				},
			},
		},
		{
			Name:        "modstats",
			Description: "Show moderation activity statistics",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "period",
					Description: "Time window",
					Required:    false,
					Choices: []*discordgo.ApplicationCommandOptionChoice{
						{Name: "last day", Value: "1d"},
						{Name: "last week", Value: "7d"},
						{Name: "last month", Value: "30d"},
						{Name: "last 90 days", Value: "90d"},
						{Name: "all time", Value: "all"},
					},
				},
			},
		},
		{
			Name:        "check",
			Description: "Look up a Roblox player",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "username",
					Description: "Roblox username",
					Required:    true,
				},
			},
		},
		{
			Name:        "levels",
			Description: "Show level progress",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "user",
					Description: "User to look up (defaults to you)",
					Required:    false,
				},
			},
		},
		{
			Name:        "messages",
			Description: "Show message counts and the leaderboard",
		},
		{
			Name:        "verify",
			Description: "Link your Roblox account",
		},
		{
			Name:        "unverify",
			Description: "Unlink your Roblox account",
		},
	}

	for _, command := range commands {
		if _, err := b.session.ApplicationCommandCreate(b.session.State.User.ID, "", command); err != nil {
			return err
		}
	}
	return nil
}
