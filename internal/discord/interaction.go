package discord

import (
	"crypto/ed25519"
	"encoding/hex"
	"strings"

	"github.com/tbourn/daily-reflections-bot/internal/apperr"
)

// Signature headers sent with every inbound interaction.
const (
	HeaderSignature = "X-Signature-Ed25519"
	HeaderTimestamp = "X-Signature-Timestamp"
)

// Interaction types.
const (
	InteractionPing               = 1
	InteractionApplicationCommand = 2
)

// Interaction response types.
const (
	ResponsePong                   = 1
	ResponseDeferredChannelMessage = 5
)

// Interaction is the subset of the inbound payload the bot reads.
type Interaction struct {
	ID            string       `json:"id"`
	ApplicationID string       `json:"application_id"`
	Type          int          `json:"type"`
	Token         string       `json:"token"`
	Data          *CommandData `json:"data,omitempty"`
}

// CommandData carries the invoked slash command.
type CommandData struct {
	Name string `json:"name"`
}

// CommandName returns the invoked command name or "".
func (i Interaction) CommandName() string {
	if i.Data == nil {
		return ""
	}
	return i.Data.Name
}

// InteractionResponse is the reply body for callbacks.
type InteractionResponse struct {
	Type int `json:"type"`
}

// ParsePublicKey decodes the application's hex-encoded Ed25519 public key.
func ParsePublicKey(hexKey string) (ed25519.PublicKey, error) {
	raw, err := hex.DecodeString(strings.TrimSpace(hexKey))
	if err != nil {
		return nil, apperr.Wrap(err, apperr.KindConfiguration, "discord.ParsePublicKey")
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, apperr.Newf(apperr.KindConfiguration, "discord.ParsePublicKey",
			"public key must be %d bytes, got %d", ed25519.PublicKeySize, len(raw))
	}
	return ed25519.PublicKey(raw), nil
}

// Verify checks the Ed25519 signature over timestamp||body. Malformed
// signatures and a missing key verify as false.
func Verify(key ed25519.PublicKey, signatureHex, timestamp string, body []byte) bool {
	if len(key) != ed25519.PublicKeySize || signatureHex == "" || timestamp == "" {
		return false
	}
	sig, err := hex.DecodeString(signatureHex)
	if err != nil || len(sig) != ed25519.SignatureSize {
		return false
	}
	msg := make([]byte, 0, len(timestamp)+len(body))
	msg = append(msg, timestamp...)
	msg = append(msg, body...)
	return ed25519.Verify(key, msg, sig)
}
