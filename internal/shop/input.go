package shop

// AttachmentKind classifies what came with an inbound message.
type AttachmentKind uint8

const (
	AttachNone AttachmentKind = iota
	AttachPhoto
	AttachDocument
	AttachVoice
	AttachOther
)

func (k AttachmentKind) String() string {
	switch k {
	case AttachNone:
		return "none"
	case AttachPhoto:
		return "photo"
	case AttachDocument:
		return "document"
	case AttachVoice:
		return "voice"
	default:
		return "other"
	}
}

// Attachment is an opaque platform file reference with its metadata.
// Size is zero when the platform did not report it.
type Attachment struct {
	Kind     AttachmentKind
	Ref      string
	Size     int64
	MIME     string
	FileName string
}

// Input is one inbound message reduced to what the workflows need.
type Input struct {
	Text       string
	Attachment Attachment
}
