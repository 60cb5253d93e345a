package audio

// Clip is a single voice utterance travelling through the pipeline. Telegram
// delivers OGG/Opus voice notes; synthesizers hand back MP3. The container
// codec itself is a connector concern, the core only moves bytes.
type Clip struct {
	Data   []byte
	Format string
}

// MIME returns the media type for the clip's container format.
func (c *Clip) MIME() string {
	switch c.Format {
	case "ogg":
		return "audio/ogg"
	case "mp3":
		return "audio/mpeg"
	case "wav":
		return "audio/wav"
	case "pcm":
		return "audio/L16"
	default:
		return "application/octet-stream"
	}
}

// Empty reports whether the clip carries no audio data.
func (c *Clip) Empty() bool {
	return c == nil || len(c.Data) == 0
}
