package protocol

import "time"

// Utterance carries one captured voice turn from an edge device. The
// fingerprint lets the runtime drop stale re-deliveries of the same capture.
// Capture format is fixed by the runtime's stt configuration, so the wire
// message carries raw PCM only.
type Utterance struct {
	DeviceID    string    `json:"device_id"`
	Fingerprint string    `json:"fingerprint"`
	PCM         []byte    `json:"pcm"`
	CapturedAt  time.Time `json:"captured_at"`
}

// Selection carries one touch turn: the relationship label the user tapped
// instead of speaking.
type Selection struct {
	DeviceID    string    `json:"device_id"`
	Fingerprint string    `json:"fingerprint"`
	Label       string    `json:"label"`
	CapturedAt  time.Time `json:"captured_at"`
}

// Control is an out-of-band session command from a device or operator.
type Control struct {
	DeviceID  string    `json:"device_id,omitempty"`
	Action    string    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	ControlGreet = "greet"
	ControlNext  = "next"
	ControlReset = "reset"
)

// Reply is the runtime's answer to one turn, broadcast for displays.
type Reply struct {
	Text       string    `json:"text"`
	Phase      string    `json:"phase"`
	PhotoIndex int       `json:"photo_index"`
	Turn       int       `json:"turn"`
	Heard      string    `json:"heard,omitempty"`
	Correct    bool      `json:"correct"`
	Found      []string  `json:"found,omitempty"`
	Advanced   bool      `json:"advanced"`
	Completed  bool      `json:"completed"`
	Fallback   bool      `json:"fallback"`
	Timestamp  time.Time `json:"timestamp"`
}

// ReplyAudio carries the synthesized speech for the most recent reply.
// It is published separately so text-only displays need not download audio.
type ReplyAudio struct {
	Voice     string    `json:"voice"`
	Audio     []byte    `json:"audio"`
	Timestamp time.Time `json:"timestamp"`
}

// DeviceAnnounce registers an edge device and the input kinds it offers.
type DeviceAnnounce struct {
	DeviceID  string    `json:"device_id"`
	Kind      string    `json:"kind"`
	Inputs    []string  `json:"inputs,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// DeviceHeartbeat keeps an announced device marked live.
type DeviceHeartbeat struct {
	DeviceID  string    `json:"device_id"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	SubjectUtterance             = "companion.utterance"
	SubjectSelection             = "companion.selection"
	SubjectControl               = "companion.control"
	SubjectReply                 = "companion.reply"
	SubjectReplyAudio            = "companion.reply.audio"
	SubjectDeviceAnnounce        = "device.announce"
	SubjectDeviceHeartbeatPrefix = "device.heartbeat"
)
