package assistant

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

type Kind string

const (
	KindCommand  Kind = "command"
	KindResponse Kind = "response"
)

// Classification is the backend's verdict for one turn. Exactly one variant
// is populated: Command/FailMessage for KindCommand, Content for KindResponse.
type Classification struct {
	Type        Kind   `json:"type"`
	Command     string `json:"command,omitempty"`
	FailMessage string `json:"fail_message,omitempty"`
	Content     string `json:"content,omitempty"`
}

const defaultFailMessage = "Command failed"

func Response(content string) Classification {
	return Classification{Type: KindResponse, Content: content}
}

func Command(command, failMessage string) Classification {
	return Classification{Type: KindCommand, Command: command, FailMessage: failMessage}
}

// wireClassification also accepts fail_audio, the field name the first
// prompt revision asked the model for.
type wireClassification struct {
	Type        *string `json:"type"`
	Command     *string `json:"command"`
	FailMessage *string `json:"fail_message"`
	FailAudio   *string `json:"fail_audio"`
	Content     *string `json:"content"`
}

// ParseClassification validates raw strictly against the two shapes. Any
// violation is reported as ErrInvalidClassification.
func ParseClassification(raw string) (Classification, error) {
	data := bytes.TrimSpace([]byte(raw))
	if len(data) == 0 || data[0] != '{' {
		return Classification{}, fmt.Errorf("%w: not a JSON object", ErrInvalidClassification)
	}

	var w wireClassification
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&w); err != nil {
		return Classification{}, fmt.Errorf("%w: %v", ErrInvalidClassification, err)
	}
	if dec.More() {
		return Classification{}, fmt.Errorf("%w: trailing data", ErrInvalidClassification)
	}
	if w.Type == nil {
		return Classification{}, fmt.Errorf("%w: missing type", ErrInvalidClassification)
	}

	switch Kind(*w.Type) {
	case KindCommand:
		if w.Command == nil || strings.TrimSpace(*w.Command) == "" {
			return Classification{}, fmt.Errorf("%w: command without command string", ErrInvalidClassification)
		}
		if w.Content != nil {
			return Classification{}, fmt.Errorf("%w: command carries content", ErrInvalidClassification)
		}
		fail := defaultFailMessage
		switch {
		case w.FailMessage != nil && *w.FailMessage != "":
			fail = *w.FailMessage
		case w.FailAudio != nil && *w.FailAudio != "":
			fail = *w.FailAudio
		}
		return Command(*w.Command, fail), nil

	case KindResponse:
		if w.Content == nil {
			return Classification{}, fmt.Errorf("%w: response without content", ErrInvalidClassification)
		}
		if w.Command != nil {
			return Classification{}, fmt.Errorf("%w: response carries command", ErrInvalidClassification)
		}
		return Response(*w.Content), nil

	default:
		return Classification{}, fmt.Errorf("%w: unknown type %q", ErrInvalidClassification, *w.Type)
	}
}

// ClassifyOrDegrade never fails: an invalid reply becomes a Response whose
// content is the raw text.
func ClassifyOrDegrade(raw string) (Classification, error) {
	c, err := ParseClassification(raw)
	if err != nil {
		return Response(raw), err
	}
	return c, nil
}

func (c Classification) String() string {
	b, err := json.Marshal(c)
	if err != nil {
		return string(c.Type)
	}
	return string(b)
}
