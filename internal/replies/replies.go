// Package replies holds every user-visible text the relay sends. Deployments
// localize by pointing REPLIES_FILE at a YAML file; unset keys keep the
// built-in defaults.
package replies

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Templates is the full reply-template set.
type Templates struct {
	Start   StartTemplates   `yaml:"start"`
	Link    LinkTemplates    `yaml:"link"`
	Welcome WelcomeTemplates `yaml:"welcome"`
	Delete  DeleteTemplates  `yaml:"delete"`
	Reveal  RevealTemplates  `yaml:"reveal"`
	Ban     BanTemplates     `yaml:"ban"`
	Event   EventTemplates   `yaml:"event"`

	RecipientGone  string `yaml:"recipientGone"`
	ReplyToDeleted string `yaml:"replyToDeleted"`
	Error          string `yaml:"error"`
}

type StartTemplates struct {
	NoLink           string `yaml:"noLink"`
	Default          string `yaml:"default"`
	AnonymousMessage string `yaml:"anonymousMessage"`
}

type LinkTemplates struct {
	NoLink       string `yaml:"noLink"`
	Default      string `yaml:"default"`
	Denied       string `yaml:"denied"`
	AlreadyExist string `yaml:"alreadyExist"`
	Success      string `yaml:"success"`
}

type WelcomeTemplates struct {
	Default string `yaml:"default"`
	Denied  string `yaml:"denied"`
	Success string `yaml:"success"`
	Deleted string `yaml:"deleted"`
}

type DeleteTemplates struct {
	AlreadyDeleted string `yaml:"alreadyDeleted"`
	Success        string `yaml:"success"`
}

type RevealTemplates struct {
	NeedReply string `yaml:"needReply"`
}

type BanTemplates struct {
	NeedReply string `yaml:"needReply"`
	Success   string `yaml:"success"`
}

type EventTemplates struct {
	AnonymousMessageSent     string `yaml:"anonymousMessageSent"`
	AnonymousMessageReceived string `yaml:"anonymousMessageReceived"`
}

// Defaults returns the built-in English template set.
func Defaults() Templates {
	return Templates{
		Start: StartTemplates{
			NoLink:           "You have no link yet. Use /link <name> to claim one.",
			Default:          "Share this link to receive anonymous messages:\nhttps://t.me/{bot_username}?start={link}",
			AnonymousMessage: "Now send the message you want to deliver anonymously.",
		},
		Link: LinkTemplates{
			NoLink:       "You have no link yet. Use /link <name> to claim one.",
			Default:      "Your current link:\nhttps://t.me/{bot_username}?start={link}",
			Denied:       "Only latin letters, digits and underscore are allowed, 6 to 32 characters.",
			AlreadyExist: "That link is already taken. Try another one.",
			Success:      "Your new link:\nhttps://t.me/{bot_username}?start={link}",
		},
		Welcome: WelcomeTemplates{
			Default: "Send /welcome <text> to set a greeting shown to people opening your link, or /welcome clear to remove it.",
			Denied:  "The welcome message must be 6 to 256 characters long.",
			Success: "Your welcome message is set. This is what senders will see:",
			Deleted: "Your welcome message was removed.",
		},
		Delete: DeleteTemplates{
			AlreadyDeleted: "You have no link to delete.",
			Success:        "Your link was deleted. Nobody can message you anonymously anymore.",
		},
		Reveal: RevealTemplates{
			NeedReply: "Reply to the anonymous message you want revealed and use this command at the same time.",
		},
		Ban: BanTemplates{
			NeedReply: "Reply to the anonymous message whose author you want banned and use this command at the same time.",
			Success:   "The author of that message is banned.",
		},
		Event: EventTemplates{
			AnonymousMessageSent:     "Your anonymous message is on its way.",
			AnonymousMessageReceived: "You received a new *anonymous message*!",
		},
		RecipientGone:  "Looks like the recipient changed or removed their link.",
		ReplyToDeleted: "You were replied to a *deleted message*!",
		Error:          "Something went wrong. Please try again later.",
	}
}

// Load returns the defaults overlaid with the YAML file at path. An empty
// path means defaults only.
func Load(path string) (Templates, error) {
	templates := Defaults()
	if strings.TrimSpace(path) == "" {
		return templates, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return Templates{}, fmt.Errorf("replies: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &templates); err != nil {
		return Templates{}, fmt.Errorf("replies: parse %s: %w", path, err)
	}
	return templates, nil
}

// Fill substitutes {name} placeholders in a template.
func Fill(template string, vars map[string]string) string {
	pairs := make([]string, 0, len(vars)*2)
	for name, value := range vars {
		pairs = append(pairs, "{"+name+"}", value)
	}
	return strings.NewReplacer(pairs...).Replace(template)
}
