package slack

import (
	"regexp"
	"strings"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
)

var mentionPattern = regexp.MustCompile(`<@[A-Z0-9]+(\|[^>]*)?>`)

// removeBotMention strips user mentions such as <@U012ABC> from text.
func removeBotMention(text string) string {
	return strings.Join(strings.Fields(mentionPattern.ReplaceAllString(text, " ")), " ")
}

// messageFromEvent gathers the parts of a message event that may carry text.
func messageFromEvent(ev *slackevents.MessageEvent) slack.Message {
	msg := slack.Message{}
	if ev.Message != nil {
		msg.Msg = *ev.Message
	}
	if msg.Text == "" {
		msg.Text = ev.Text
	}
	return msg
}

// extractMessageText returns the readable text of a message. Plain text wins,
// then attachments, then Block Kit blocks, then file names.
func extractMessageText(msg slack.Message) string {
	if msg.Text != "" {
		return msg.Text
	}

	var parts []string
	for _, att := range msg.Attachments {
		parts = append(parts, attachmentText(att)...)
	}
	if len(parts) > 0 {
		return strings.Join(parts, "\n")
	}

	for _, block := range msg.Blocks.BlockSet {
		switch b := block.(type) {
		case *slack.HeaderBlock:
			if b.Text != nil && b.Text.Text != "" {
				parts = append(parts, b.Text.Text)
			}
		case *slack.SectionBlock:
			if b.Text != nil && b.Text.Text != "" {
				parts = append(parts, b.Text.Text)
			}
			for _, f := range b.Fields {
				if f != nil && f.Text != "" {
					parts = append(parts, f.Text)
				}
			}
		case *slack.RichTextBlock:
			parts = append(parts, extractRichTextBlock(b)...)
		}
	}
	if len(parts) > 0 {
		return strings.Join(parts, "\n")
	}

	for _, f := range msg.Files {
		name := f.Title
		if name == "" {
			name = f.Name
		}
		parts = append(parts, "[File: "+name+"]")
	}
	return strings.Join(parts, "\n")
}

func attachmentText(att slack.Attachment) []string {
	var parts []string
	for _, s := range []string{att.Pretext, att.Title, att.Text} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	for _, f := range att.Fields {
		switch {
		case f.Title != "" && f.Value != "":
			parts = append(parts, f.Title+": "+f.Value)
		case f.Value != "":
			parts = append(parts, f.Value)
		}
	}
	if len(parts) == 0 && att.Fallback != "" {
		parts = append(parts, att.Fallback)
	}
	return parts
}

func extractRichTextBlock(block *slack.RichTextBlock) []string {
	parts := []string{}
	for _, el := range block.Elements {
		switch e := el.(type) {
		case *slack.RichTextSection:
			if s := sectionText(e.Elements); s != "" {
				parts = append(parts, s)
			}
		case *slack.RichTextList:
			for _, item := range e.Elements {
				if section, ok := item.(*slack.RichTextSection); ok {
					parts = append(parts, "- "+sectionText(section.Elements))
				}
			}
		case *slack.RichTextQuote:
			parts = append(parts, "> "+sectionText(e.Elements))
		case *slack.RichTextPreformatted:
			parts = append(parts, "```\n"+sectionText(e.Elements)+"\n```")
		}
	}
	return parts
}

func sectionText(elements []slack.RichTextSectionElement) string {
	var b strings.Builder
	for _, el := range elements {
		switch e := el.(type) {
		case *slack.RichTextSectionTextElement:
			b.WriteString(e.Text)
		case *slack.RichTextSectionLinkElement:
			if e.Text != "" {
				b.WriteString(e.Text)
			} else {
				b.WriteString(e.URL)
			}
		}
	}
	return b.String()
}
