// Package state carries the came-from URL through the provider redirect.
//
// Decoding never fails: anything unusable becomes DefaultCameFrom.
package state

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// DefaultCameFrom is where users land when the state is missing or unusable.
const DefaultCameFrom = "/"

var (
	errEmptyState   = errors.New("empty state")
	errMissingField = errors.New("came_from missing")
)

type payload struct {
	CameFrom string `json:"came_from"`
}

// Codec is the plain encoding: base64url(JSON{"came_from": url}).
// It is not integrity protected; see SignedCodec.
type Codec struct {
	log zerolog.Logger
}

func NewCodec(lg zerolog.Logger) *Codec {
	return &Codec{log: lg}
}

func (c *Codec) Encode(cameFrom string) (string, error) {
	b, err := json.Marshal(payload{CameFrom: cameFrom})
	if err != nil {
		return "", fmt.Errorf("marshal state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func (c *Codec) Decode(token string) string {
	cameFrom, err := parse(token)
	if err != nil {
		c.log.Debug().Err(err).Msg("state decode failed, using default")
		return DefaultCameFrom
	}
	return cameFrom
}

// parse accepts unpadded url, padded url and standard alphabets so states
// minted by older deployments still decode.
func parse(token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", errEmptyState
	}

	raw, err := decodeBase64(token)
	if err != nil {
		return "", err
	}

	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return "", fmt.Errorf("unmarshal state: %w", err)
	}
	cameFrom, ok := m["came_from"].(string)
	if !ok || cameFrom == "" {
		return "", errMissingField
	}
	return cameFrom, nil
}

func decodeBase64(token string) ([]byte, error) {
	var firstErr error
	for _, enc := range []*base64.Encoding{
		base64.RawURLEncoding,
		base64.URLEncoding,
		base64.StdEncoding,
		base64.RawStdEncoding,
	} {
		b, err := enc.DecodeString(token)
		if err == nil {
			return b, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return nil, fmt.Errorf("decode state: %w", firstErr)
}
