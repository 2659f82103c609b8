package wire

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
)

// Wire format delimiters.
const (
	// EntryDelim introduces every entry.
	EntryDelim = '|'

	// PairSep separates a key from its value.
	PairSep = '='

	// EndMarker terminates a message.
	EndMarker = '!'
)

// Envelope key tokens.
const (
	envType    = ".typ"
	envOp      = ".op"
	envID      = ".mid"
	envSession = ".sid"
	envResult  = ".sta"
)

// DecodeError reports a malformed wire message. Decoding fails as a
// whole: no partial message or status is returned alongside it.
type DecodeError struct {
	// Offset is the byte offset of the offending entry.
	Offset int

	// Reason describes what was malformed.
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("wire: malformed message at byte %d: %s", e.Offset, e.Reason)
}

// EncodeError reports a key or value that cannot be represented in the
// wire format.
type EncodeError struct {
	// Key is the offending payload key.
	Key string

	// Reason describes why encoding failed.
	Reason string
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("wire: cannot encode %q: %s", e.Key, e.Reason)
}

// validKey reports whether key is a legal payload key: ASCII letters
// and digits, at least one character.
func validKey(key string) bool {
	if key == "" {
		return false
	}
	for i := 0; i < len(key); i++ {
		c := key[i]
		if (c < 'a' || c > 'z') && (c < 'A' || c > 'Z') && (c < '0' || c > '9') {
			return false
		}
	}
	return true
}

// validValue reports whether value contains only legal value bytes:
// printable ASCII excluding the format delimiters.
func validValue(value string) bool {
	for i := 0; i < len(value); i++ {
		c := value[i]
		if c < 0x20 || c > 0x7e {
			return false
		}
		if c == EntryDelim || c == PairSep || c == EndMarker {
			return false
		}
	}
	return true
}

// Decode parses a complete wire message. Malformed input fails with
// *DecodeError; unknown payload keys are preserved verbatim.
func Decode(data []byte) (*Message, error) {
	if len(data) == 0 {
		return nil, &DecodeError{Reason: "empty message"}
	}
	if data[len(data)-1] != EndMarker {
		return nil, &DecodeError{Offset: len(data) - 1, Reason: "missing end marker"}
	}
	body := data[:len(data)-1]
	if len(body) == 0 || body[0] != EntryDelim {
		return nil, &DecodeError{Reason: "message does not start with an entry delimiter"}
	}

	msg := &Message{Fields: Status{}}
	offset := 0
	for len(body) > 0 {
		// body starts with the entry delimiter here.
		rest := body[1:]
		next := bytes.IndexByte(rest, EntryDelim)
		var entry []byte
		if next < 0 {
			entry = rest
			body = nil
		} else {
			entry = rest[:next]
			body = rest[next:]
		}
		entryOffset := offset + 1
		offset = entryOffset + len(entry)

		sep := bytes.IndexByte(entry, PairSep)
		if sep < 0 {
			return nil, &DecodeError{Offset: entryOffset, Reason: "entry without separator"}
		}
		key := string(entry[:sep])
		value := string(entry[sep+1:])
		if !validValue(value) {
			return nil, &DecodeError{Offset: entryOffset, Reason: fmt.Sprintf("illegal character in value of %q", key)}
		}

		if len(key) > 0 && key[0] == '.' {
			if err := decodeEnvelope(msg, key, value, entryOffset); err != nil {
				return nil, err
			}
			continue
		}
		if !validKey(key) {
			return nil, &DecodeError{Offset: entryOffset, Reason: fmt.Sprintf("illegal key %q", key)}
		}
		// Duplicate payload keys: last entry wins, matching device behavior.
		msg.Fields[key] = value
	}

	if msg.Type == TypeUnknown {
		return nil, &DecodeError{Reason: "message without type entry"}
	}
	if err := msg.Validate(); err != nil {
		return nil, &DecodeError{Reason: err.Error()}
	}
	return msg, nil
}

// decodeEnvelope applies one structural entry to msg.
func decodeEnvelope(msg *Message, key, value string, offset int) error {
	switch key {
	case envType:
		t, ok := parseMessageType(value)
		if !ok {
			return &DecodeError{Offset: offset, Reason: fmt.Sprintf("unknown message type %q", value)}
		}
		msg.Type = t
	case envOp:
		op, ok := parseOperation(value)
		if !ok {
			return &DecodeError{Offset: offset, Reason: fmt.Sprintf("unknown operation %q", value)}
		}
		msg.Op = op
	case envID:
		id, err := strconv.ParseUint(value, 10, 32)
		if err != nil {
			return &DecodeError{Offset: offset, Reason: fmt.Sprintf("invalid message ID %q", value)}
		}
		msg.ID = uint32(id)
	case envSession:
		msg.Session = value
	case envResult:
		r, ok := parseResult(value)
		if !ok {
			return &DecodeError{Offset: offset, Reason: fmt.Sprintf("unknown result %q", value)}
		}
		msg.Result = r
	default:
		return &DecodeError{Offset: offset, Reason: fmt.Sprintf("unknown structural marker %q", key)}
	}
	return nil
}

// DecodeStatus decodes a message and returns its payload fields.
// The returned Status is independent of the message.
func DecodeStatus(data []byte) (Status, error) {
	msg, err := Decode(data)
	if err != nil {
		return nil, err
	}
	return msg.Fields.Clone(), nil
}

// Encode produces the wire representation of a message. Envelope
// entries come first, payload entries follow in sorted key order, so
// encoding is deterministic.
func Encode(m *Message) ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, &EncodeError{Reason: err.Error()}
	}

	var buf bytes.Buffer
	writeEntry(&buf, envType, m.Type.token())
	if m.Op != OpNone {
		writeEntry(&buf, envOp, m.Op.token())
	}
	writeEntry(&buf, envID, strconv.FormatUint(uint64(m.ID), 10))
	if m.Session != "" {
		if !validValue(m.Session) {
			return nil, &EncodeError{Key: envSession, Reason: "illegal character in session token"}
		}
		writeEntry(&buf, envSession, m.Session)
	}
	if m.Result != ResultNone {
		writeEntry(&buf, envResult, m.Result.token())
	}

	keys := make([]string, 0, len(m.Fields))
	for k := range m.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		pair, err := EncodePair(k, m.Fields[k])
		if err != nil {
			return nil, err
		}
		buf.Write(pair)
	}

	buf.WriteByte(EndMarker)
	return buf.Bytes(), nil
}

// EncodePair produces the wire entry for a single key/value pair, the
// form a control mutation takes on the wire. Fails with *EncodeError
// if the key or value contains characters illegal in the format.
func EncodePair(key, value string) ([]byte, error) {
	if !validKey(key) {
		return nil, &EncodeError{Key: key, Reason: "illegal character in key"}
	}
	if !validValue(value) {
		return nil, &EncodeError{Key: key, Reason: "illegal character in value"}
	}
	entry := make([]byte, 0, len(key)+len(value)+2)
	entry = append(entry, EntryDelim)
	entry = append(entry, key...)
	entry = append(entry, PairSep)
	entry = append(entry, value...)
	return entry, nil
}

// writeEntry appends one pre-validated entry to buf.
func writeEntry(buf *bytes.Buffer, key, value string) {
	buf.WriteByte(EntryDelim)
	buf.WriteString(key)
	buf.WriteByte(PairSep)
	buf.WriteString(value)
}
