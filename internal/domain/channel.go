package domain

// Channel is the client surface a session belongs to.
type Channel string

const (
	ChannelWebapp    Channel = "webapp"
	ChannelWhatsApp  Channel = "whatsapp"
	ChannelInstagram Channel = "instagram"
	ChannelTelegram  Channel = "telegram"
	ChannelX         Channel = "x"
)

// AllChannels lists every supported channel.
var AllChannels = []Channel{
	ChannelWebapp,
	ChannelWhatsApp,
	ChannelInstagram,
	ChannelTelegram,
	ChannelX,
}

// Valid reports whether c is a supported channel.
func (c Channel) Valid() bool {
	for _, known := range AllChannels {
		if c == known {
			return true
		}
	}
	return false
}

// ParseChannel converts a raw channel name. Empty input yields the webapp channel.
func ParseChannel(s string) (Channel, bool) {
	if s == "" {
		return ChannelWebapp, true
	}
	c := Channel(s)
	return c, c.Valid()
}
