package coordstore

import "encoding/json"

func marshalChunk(c LogChunk) (string, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func unmarshalChunk(raw string) (LogChunk, error) {
	var c LogChunk
	err := json.Unmarshal([]byte(raw), &c)
	return c, err
}

// DecodeLogChunk decodes a raw pub/sub payload, for callers outside this
// package forwarding live messages from SubscribeLog's channel.
func DecodeLogChunk(raw string) (LogChunk, error) {
	return unmarshalChunk(raw)
}
