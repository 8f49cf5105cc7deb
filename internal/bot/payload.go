package bot

import "github.com/whisprlink/relay/internal/relay"

// ExtractPayload turns an inbound message into a relayable payload,
// keeping only the media handle and the text/caption. Sender metadata
// never crosses this boundary. Returns false for message types the relay
// does not support (contacts, locations, ...).
func ExtractPayload(m *Message) (relay.Payload, bool) {
	switch {
	case m.Poll != nil:
		options := make([]string, 0, len(m.Poll.Options))
		for _, o := range m.Poll.Options {
			options = append(options, o.Text)
		}
		return relay.Payload{Kind: relay.KindPoll, Poll: &relay.Poll{
			Question:              m.Poll.Question,
			Options:               options,
			IsAnonymous:           m.Poll.IsAnonymous,
			Type:                  m.Poll.Type,
			AllowsMultipleAnswers: m.Poll.AllowsMultipleAnswers,
		}}, true
	case len(m.Photo) > 0:
		// Last entry is the largest rendition.
		return relay.Payload{Kind: relay.KindPhoto, FileID: m.Photo[len(m.Photo)-1].FileID, Text: m.Caption}, true
	case m.Video != nil:
		return relay.Payload{Kind: relay.KindVideo, FileID: m.Video.FileID, Text: m.Caption}, true
	case m.Document != nil:
		return relay.Payload{Kind: relay.KindDocument, FileID: m.Document.FileID, Text: m.Caption}, true
	case m.Audio != nil:
		return relay.Payload{Kind: relay.KindAudio, FileID: m.Audio.FileID, Text: m.Caption}, true
	case m.Voice != nil:
		return relay.Payload{Kind: relay.KindVoice, FileID: m.Voice.FileID, Text: m.Caption}, true
	case m.VideoNote != nil:
		return relay.Payload{Kind: relay.KindVideoNote, FileID: m.VideoNote.FileID, Text: m.Caption}, true
	case m.Sticker != nil:
		return relay.Payload{Kind: relay.KindSticker, FileID: m.Sticker.FileID, Text: m.Caption}, true
	case m.Text != "":
		return relay.Payload{Kind: relay.KindText, Text: m.Text}, true
	}
	return relay.Payload{}, false
}
