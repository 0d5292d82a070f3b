// Package extract decomposes inbound messages into a canonical structured
// form, caches the result, and projects it back into a renderable message.
package extract

import (
	"fmt"

	"github.com/mymmrac/telego"

	"github.com/vigarepo2/elixir/pkg/grid"
)

type Entity struct {
	Type   string `json:"type"`
	Offset int    `json:"offset"`
	Length int    `json:"length"`
}

type Button struct {
	Label   string    `json:"label"`
	Kind    grid.Kind `json:"kind"`
	Payload string    `json:"payload"`
}

type Media struct {
	Kind    string `json:"kind"`
	FileRef string `json:"fileRef"`
	Caption string `json:"caption,omitempty"`
}

type Forward struct {
	OriginalSenderID   int64  `json:"originalSenderId"`
	OriginalSenderName string `json:"originalSenderName"`
}

// ExtractedMessage is the canonical decomposition of an inbound message.
// Field order here fixes the export JSON order; immutable once produced.
type ExtractedMessage struct {
	SourceID int       `json:"sourceId"`
	Text     string    `json:"text"`
	Entities []Entity  `json:"entities"`
	Buttons  []Button  `json:"buttons"`
	Media    *Media    `json:"media"`
	Forward  *Forward  `json:"forward"`
}

// MediaKinds is the full recognized media set, in the default probe order.
var MediaKinds = []string{"photo", "video", "document", "audio", "voice", "sticker"}

// Extractor turns messages into ExtractedMessages. The media probe order is
// fixed at construction; Extract itself is a pure function of its input.
type Extractor struct {
	mediaOrder []string
}

func NewExtractor(mediaOrder []string) (*Extractor, error) {
	if len(mediaOrder) == 0 {
		mediaOrder = MediaKinds
	}
	for _, name := range mediaOrder {
		if !knownMediaKind(name) {
			return nil, fmt.Errorf("unknown media kind %q in media order", name)
		}
	}
	return &Extractor{mediaOrder: append([]string(nil), mediaOrder...)}, nil
}

func knownMediaKind(name string) bool {
	for _, k := range MediaKinds {
		if k == name {
			return true
		}
	}
	return false
}

// Extract decomposes msg. It never mutates msg and calling it twice on the
// same message yields structurally identical results.
func (e *Extractor) Extract(msg *telego.Message) *ExtractedMessage {
	out := &ExtractedMessage{
		SourceID: msg.MessageID,
		Text:     msg.Text,
		Entities: []Entity{},
		Buttons:  []Button{},
	}

	if out.Text == "" {
		out.Text = msg.Caption
	}

	source := msg.Entities
	if len(source) == 0 {
		source = msg.CaptionEntities
	}
	for _, ent := range source {
		out.Entities = append(out.Entities, Entity{
			Type:   string(ent.Type),
			Offset: ent.Offset,
			Length: ent.Length,
		})
	}

	if msg.ReplyMarkup != nil {
		for _, row := range msg.ReplyMarkup.InlineKeyboard {
			for _, btn := range row {
				out.Buttons = append(out.Buttons, classifyButton(btn))
			}
		}
	}

	out.Media = e.extractMedia(msg)
	out.Forward = extractForward(msg)

	return out
}

// classifyButton resolves a keyboard cell: a direct link target wins, then
// an opaque action token; anything else keeps its best value under the
// "other" kind rather than being dropped.
func classifyButton(btn telego.InlineKeyboardButton) Button {
	switch {
	case btn.URL != "":
		return Button{Label: btn.Text, Kind: grid.KindURL, Payload: btn.URL}
	case btn.CallbackData != "":
		return Button{Label: btn.Text, Kind: grid.KindCallback, Payload: btn.CallbackData}
	}

	payload := ""
	switch {
	case btn.LoginURL != nil:
		payload = btn.LoginURL.URL
	case btn.WebApp != nil:
		payload = btn.WebApp.URL
	case btn.SwitchInlineQuery != nil:
		payload = *btn.SwitchInlineQuery
	case btn.SwitchInlineQueryCurrentChat != nil:
		payload = *btn.SwitchInlineQueryCurrentChat
	}
	return Button{Label: btn.Text, Kind: grid.KindOther, Payload: payload}
}

// extractMedia probes the configured media kinds in order and keeps the
// first match.
func (e *Extractor) extractMedia(msg *telego.Message) *Media {
	for _, kind := range e.mediaOrder {
		switch kind {
		case "photo":
			if len(msg.Photo) > 0 {
				// Telegram lists sizes small to large; keep the largest.
				return &Media{Kind: "photo", FileRef: msg.Photo[len(msg.Photo)-1].FileID, Caption: msg.Caption}
			}
		case "video":
			if msg.Video != nil {
				return &Media{Kind: "video", FileRef: msg.Video.FileID, Caption: msg.Caption}
			}
		case "document":
			if msg.Document != nil {
				return &Media{Kind: "document", FileRef: msg.Document.FileID, Caption: msg.Caption}
			}
		case "audio":
			if msg.Audio != nil {
				return &Media{Kind: "audio", FileRef: msg.Audio.FileID, Caption: msg.Caption}
			}
		case "voice":
			if msg.Voice != nil {
				return &Media{Kind: "voice", FileRef: msg.Voice.FileID, Caption: msg.Caption}
			}
		case "sticker":
			if msg.Sticker != nil {
				return &Media{Kind: "sticker", FileRef: msg.Sticker.FileID}
			}
		}
	}
	return nil
}

func extractForward(msg *telego.Message) *Forward {
	switch origin := msg.ForwardOrigin.(type) {
	case *telego.MessageOriginUser:
		return &Forward{
			OriginalSenderID:   origin.SenderUser.ID,
			OriginalSenderName: displayName(origin.SenderUser),
		}
	case *telego.MessageOriginHiddenUser:
		return &Forward{OriginalSenderName: origin.SenderUserName}
	case *telego.MessageOriginChat:
		return &Forward{
			OriginalSenderID:   origin.SenderChat.ID,
			OriginalSenderName: origin.SenderChat.Title,
		}
	case *telego.MessageOriginChannel:
		return &Forward{
			OriginalSenderID:   origin.Chat.ID,
			OriginalSenderName: origin.Chat.Title,
		}
	}
	return nil
}

func displayName(u telego.User) string {
	name := u.FirstName
	if u.LastName != "" {
		name += " " + u.LastName
	}
	return name
}
