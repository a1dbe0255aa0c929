package security

const megabyte = 1024 * 1024

type Config struct {
	// Longest accepted string field, in characters
	MaxFieldLength int

	// Largest accepted upload, in bytes. A file of exactly this size passes.
	MaxFileSize int64

	AllowedFileTypes []string

	// Violations that move the gate into the blocked state
	BlockThreshold int
}

func DefaultConfig() Config {
	return Config{
		MaxFieldLength:   10000,
		MaxFileSize:      50 * megabyte,
		AllowedFileTypes: DefaultAllowedFileTypes(),
		BlockThreshold:   5,
	}
}

func DefaultAllowedFileTypes() []string {
	return []string{
		// audio
		"audio/mpeg",
		"audio/mp3",
		"audio/wav",
		"audio/x-wav",
		"audio/wave",
		"audio/flac",
		"audio/x-flac",
		"audio/aac",
		"audio/ogg",
		"audio/mp4",
		"audio/x-m4a",
		// images
		"image/jpeg",
		"image/png",
		"image/gif",
		"image/webp",
		// documents
		"application/pdf",
		"application/msword",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		"text/plain",
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxFieldLength <= 0 {
		c.MaxFieldLength = d.MaxFieldLength
	}
	if c.MaxFileSize <= 0 {
		c.MaxFileSize = d.MaxFileSize
	}
	if len(c.AllowedFileTypes) == 0 {
		c.AllowedFileTypes = d.AllowedFileTypes
	}
	if c.BlockThreshold <= 0 {
		c.BlockThreshold = d.BlockThreshold
	}
	return c
}
