package gateway

import "path"

// Topics is the bus topic layout used by the device.
type Topics struct {
	// Uploader -> device.
	Request string // free-space query, download-by-URL commands
	Chunk   string // START/CHUNK/END transfer messages

	// Device -> uploader.
	Response string // FREE:<free>:<current> replies
	Ack      string // ACK:<chunk index>

	// Control surface.
	Play     string // bare filename payload starts playback
	Commands string // plain-text command strings

	// Device -> observers.
	Status      string // plain-text status replies, "online" on connect
	AudioStatus string // playing / error / upload results
	Files       string // list_files replies

	// Sensor publishing.
	Temperature string
	Humidity    string
	Pressure    string
}

// DefaultTopics returns the topic layout rooted at prefix.
func DefaultTopics(prefix string) Topics {
	j := func(elem ...string) string {
		return path.Join(append([]string{prefix}, elem...)...)
	}
	return Topics{
		Request:     j("audio", "request"),
		Chunk:       j("audio", "chunk"),
		Response:    j("audio", "response"),
		Ack:         j("audio", "ack"),
		Play:        j("play_audio"),
		Commands:    j("commands"),
		Status:      j("status"),
		AudioStatus: j("audio", "status"),
		Files:       j("files"),
		Temperature: j("sensors", "temperature"),
		Humidity:    j("sensors", "humidity"),
		Pressure:    j("sensors", "pressure"),
	}
}
