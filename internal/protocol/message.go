// Package protocol implements the radiator wire format: a flat map with the
// three string keys FROM, TO and COMMAND, published on one shared topic.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const (
	// ControllerID is the device id the controller uses on the wire.
	ControllerID = "Django"
	// CommandState is the reserved query command; every other command is a mode.
	CommandState = "STATE"

	keyFrom    = "FROM"
	keyTo      = "TO"
	keyCommand = "COMMAND"
)

var (
	// ErrMalformed is returned by Decode for anything that is not a well-formed message.
	ErrMalformed = errors.New("protocol: malformed message")
	// ErrUnknownFormat is returned for an unsupported wire format name.
	ErrUnknownFormat = errors.New("protocol: unknown wire format")
)

// Format selects how outgoing messages are serialized.
type Format string

const (
	// FormatLiteral is the single-quoted map text deployed firmware speaks:
	// {'FROM': 'Django', 'TO': 'Salon', 'COMMAND': 'STATE'}
	FormatLiteral Format = "literal"
	// FormatJSON is a JSON object with the same keys.
	FormatJSON Format = "json"
)

// ParseFormat validates a format name from configuration. Empty means literal.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatLiteral:
		return FormatLiteral, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// Message is one protocol frame.
type Message struct {
	From    string `json:"FROM"`
	To      string `json:"TO"`
	Command string `json:"COMMAND"`
}

// StateRequest builds the controller's STATE query for a device.
func StateRequest(device string) Message {
	return Message{From: ControllerID, To: device, Command: CommandState}
}

// ModeCommand builds a mode assignment from the controller to a device.
func ModeCommand(device, mode string) Message {
	return Message{From: ControllerID, To: device, Command: mode}
}

// IsStateRequest reports whether the message is a STATE query.
func (m Message) IsStateRequest() bool {
	return m.Command == CommandState
}

// Encode serializes m in the given format.
func Encode(m Message, f Format) ([]byte, error) {
	if err := m.validate(); err != nil {
		return nil, err
	}
	switch f {
	case FormatLiteral, "":
		var b strings.Builder
		b.WriteByte('{')
		writeLiteralPair(&b, keyFrom, m.From)
		b.WriteString(", ")
		writeLiteralPair(&b, keyTo, m.To)
		b.WriteString(", ")
		writeLiteralPair(&b, keyCommand, m.Command)
		b.WriteByte('}')
		return []byte(b.String()), nil
	case FormatJSON:
		return json.Marshal(m)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, f)
	}
}

// Decode parses a payload in either wire format. Keys are matched by name;
// anything other than exactly FROM, TO and COMMAND with non-empty string
// values is rejected with ErrMalformed.
func Decode(payload []byte) (Message, error) {
	text := strings.TrimSpace(string(payload))
	if text == "" {
		return Message{}, fmt.Errorf("%w: empty payload", ErrMalformed)
	}

	var (
		fields map[string]string
		err    error
	)
	if isJSONObject(text) {
		fields, err = decodeJSON(text)
	} else {
		fields, err = decodeLiteral(text)
	}
	if err != nil {
		return Message{}, err
	}
	return fromFields(fields)
}

func (m Message) validate() error {
	if m.From == "" || m.To == "" || m.Command == "" {
		return fmt.Errorf("%w: FROM, TO and COMMAND are required", ErrMalformed)
	}
	return nil
}

func fromFields(fields map[string]string) (Message, error) {
	if len(fields) != 3 {
		return Message{}, fmt.Errorf("%w: expected 3 keys, got %d", ErrMalformed, len(fields))
	}
	m := Message{
		From:    fields[keyFrom],
		To:      fields[keyTo],
		Command: fields[keyCommand],
	}
	if err := m.validate(); err != nil {
		return Message{}, err
	}
	return m, nil
}

// isJSONObject reports whether the first key is double-quoted, which is how
// JSON payloads differ from the literal form in practice.
func isJSONObject(text string) bool {
	rest := strings.TrimSpace(strings.TrimPrefix(text, "{"))
	return strings.HasPrefix(text, "{") && strings.HasPrefix(rest, `"`) && json.Valid([]byte(text))
}

// decodeJSON walks the object token by token so a repeated key is rejected
// instead of silently overwriting the first value.
func decodeJSON(text string) (map[string]string, error) {
	dec := json.NewDecoder(strings.NewReader(text))
	if tok, err := dec.Token(); err != nil || tok != json.Delim('{') {
		return nil, fmt.Errorf("%w: not a JSON object", ErrMalformed)
	}
	fields := make(map[string]string, 3)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("%w: unexpected token %v", ErrMalformed, tok)
		}
		if _, dup := fields[key]; dup {
			return nil, fmt.Errorf("%w: duplicate key %q", ErrMalformed, key)
		}
		tok, err = dec.Token()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		val, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("%w: value of %q is not a string", ErrMalformed, key)
		}
		fields[key] = val
	}
	if tok, err := dec.Token(); err != nil || tok != json.Delim('}') {
		return nil, fmt.Errorf("%w: unterminated JSON object", ErrMalformed)
	}
	return fields, nil
}
