package hcaptcha

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"unicode/utf8"
)

// PadBase64 pads s to a multiple of four. A remainder of one cannot be valid
// base64 and is passed through untouched so the decoder rejects it.
func PadBase64(s string) string {
	switch len(s) % 4 {
	case 2:
		return s + "=="
	case 3:
		return s + "="
	default:
		return s
	}
}

// PayloadSegment returns the middle part of a header.payload.signature token.
func PayloadSegment(token string) (string, error) {
	parts := strings.Split(token, ".")
	if len(parts) < 2 {
		return "", stageErr(StageLocate, KindMalformedToken, "token has %d part(s), want at least 2", len(parts))
	}
	return parts[1], nil
}

// DecodePayload decodes a token payload segment into a JSON object. The
// signature is not verified. Valid JSON that is not an object decodes to a
// nil map, so field lookups report the field as missing.
func DecodePayload(segment string) (map[string]any, error) {
	raw, err := base64.StdEncoding.DecodeString(PadBase64(segment))
	if err != nil {
		return nil, &StageError{Stage: StageLocate, Kind: KindDecode, Err: err}
	}
	if !utf8.Valid(raw) {
		return nil, stageErr(StageLocate, KindUTF8, "payload is not valid UTF-8")
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, &StageError{Stage: StageLocate, Kind: KindParse, Err: err}
	}
	payload, _ := doc.(map[string]any)
	return payload, nil
}

// ResourcePathFromToken pulls the "l" field out of a signed token.
func ResourcePathFromToken(token string) (string, error) {
	segment, err := PayloadSegment(token)
	if err != nil {
		return "", err
	}
	payload, err := DecodePayload(segment)
	if err != nil {
		return "", err
	}
	l, ok := payload["l"].(string)
	if !ok {
		return "", stageErr(StageLocate, KindMissingField, `payload has no string field "l"`)
	}
	return l, nil
}
