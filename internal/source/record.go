// Package source delivers samples to the meter from external transports:
// a websocket feed, a recorded CSV session or a sound device.
package source

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

var (
	// ErrChannelMissing indicates a record without the configured channel
	ErrChannelMissing = errors.New("record does not contain channel")
	// ErrNotARecord indicates a frame that carries no sample record
	ErrNotARecord = errors.New("frame is not a data record")
)

// ParseRecord extracts the value of channel from one JSON record such as
// {"c1": 12.5, "c2": -3.1}. Values may be numbers or numeric strings.
func ParseRecord(data []byte, channel string) (float64, error) {
	var record map[string]json.RawMessage
	if err := json.Unmarshal(data, &record); err != nil {
		return 0, fmt.Errorf("decode record: %w", err)
	}

	raw, ok := record[channel]
	if !ok {
		return 0, fmt.Errorf("%w %q", ErrChannelMissing, channel)
	}

	var value float64
	if err := json.Unmarshal(raw, &value); err == nil {
		return value, nil
	}

	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		return 0, fmt.Errorf("channel %q: not a number: %s", channel, raw)
	}
	value, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, fmt.Errorf("channel %q: %w", channel, err)
	}
	return value, nil
}

// ParseEvent decodes a ["event", payload] array as sent by socket.io servers
// and returns the record bytes. A string payload is itself a JSON document.
func ParseEvent(data []byte, event string) ([]byte, error) {
	var frame []json.RawMessage
	if err := json.Unmarshal(data, &frame); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	if len(frame) < 2 {
		return nil, ErrNotARecord
	}

	var name string
	if err := json.Unmarshal(frame[0], &name); err != nil || name != event {
		return nil, ErrNotARecord
	}

	payload := bytes.TrimSpace(frame[1])
	if len(payload) > 0 && payload[0] == '"' {
		var inner string
		if err := json.Unmarshal(payload, &inner); err != nil {
			return nil, fmt.Errorf("decode event payload: %w", err)
		}
		return []byte(inner), nil
	}
	return payload, nil
}
