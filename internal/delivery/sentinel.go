package delivery

import (
	"crypto/rand"
	"encoding/hex"
	"strconv"
	"strings"
)

const ackPrefix = "SPRITE-ACK"

func newToken() string {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		panic("delivery: read random token: " + err.Error())
	}
	return hex.EncodeToString(buf)
}

// ackMarker is the line the pane prints when attempt number of the tracking
// identified by token finishes.
func ackMarker(token string, number int) string {
	return ackPrefix + "-" + token + "-" + strconv.Itoa(number)
}

// sentinelCommand is typed as its own line after the command, so it runs once
// the command returns however the command line ends, trailing comment
// included. The typed text keeps the marker's parts separated, so the echo of
// the line itself never matches.
func sentinelCommand(token string, number int) string {
	return "printf '%s-%s-%s\\n' " + ackPrefix + " " + token + " " + strconv.Itoa(number)
}

// findAck returns the buffer line carrying marker as a whole word.
func findAck(buffer, marker string) (string, bool) {
	for _, line := range strings.Split(buffer, "\n") {
		if !strings.Contains(line, marker) {
			continue
		}
		for _, field := range strings.Fields(line) {
			if field == marker {
				return strings.TrimSpace(line), true
			}
		}
	}
	return "", false
}

// NewID returns a short random identifier for callers that build message ids.
func NewID() string {
	return newToken()
}
