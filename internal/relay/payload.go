package relay

// Kind identifies what a relayed payload carries.
type Kind string

const (
	KindText      Kind = "text"
	KindPhoto     Kind = "photo"
	KindVideo     Kind = "video"
	KindDocument  Kind = "document"
	KindAudio     Kind = "audio"
	KindVoice     Kind = "voice"
	KindVideoNote Kind = "video_note"
	KindSticker   Kind = "sticker"
	KindPoll      Kind = "poll"
)

// Poll mirrors the fields of an inbound poll that get copied to the
// recipient. Votes are not carried over; the recipient gets a fresh poll.
type Poll struct {
	Question              string
	Options               []string
	IsAnonymous           bool
	Type                  string
	AllowsMultipleAnswers bool
}

// Payload is one relayable message, already stripped of anything that
// could identify the sender. FileID is Telegram's opaque media handle;
// Text holds the body for KindText and the caption for media kinds.
type Payload struct {
	Kind   Kind
	Text   string
	FileID string
	Poll   *Poll
}
