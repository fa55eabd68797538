package workout

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
)

var (
	// ErrMalformedResponse is returned when the model output is not valid JSON.
	ErrMalformedResponse = errors.New("malformed model response")
	// ErrNotAnObject is returned when the model output is JSON but not an object.
	ErrNotAnObject = errors.New("model response is not a JSON object")
)

// ParsePlan decodes the model output into a Plan. A surrounding markdown code
// fence is removed first. When the payload is not valid JSON on its own, the
// first JSON object embedded in the text is used instead.
func ParsePlan(content string) (Plan, error) {
	body := stripFence(strings.TrimSpace(content))
	if body == "" {
		return nil, ErrMalformedResponse
	}

	plan, err := decodePlan([]byte(body))
	if errors.Is(err, ErrMalformedResponse) {
		if inner, ok := embeddedPlan(body); ok {
			return inner, nil
		}
	}
	return plan, err
}

// embeddedPlan tries every '{' in s as the start of a JSON object, so braces
// in surrounding prose do not hide the plan. The first object holding at least
// one day wins; an empty object is only returned when nothing better exists.
func embeddedPlan(s string) (Plan, bool) {
	var (
		empty Plan
		found bool
	)
	for i := strings.IndexByte(s, '{'); i >= 0; {
		dec := json.NewDecoder(strings.NewReader(s[i:]))
		var raw json.RawMessage
		if err := dec.Decode(&raw); err == nil {
			if plan, err := decodePlan(raw); err == nil {
				if len(plan) > 0 {
					return plan, true
				}
				if !found {
					empty, found = plan, true
				}
			}
		}
		next := strings.IndexByte(s[i+1:], '{')
		if next < 0 {
			break
		}
		i += next + 1
	}
	return empty, found
}

func decodePlan(body []byte) (Plan, error) {
	var raw json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, ErrMalformedResponse
	}

	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return nil, ErrNotAnObject
	}

	var plan Plan
	if err := json.Unmarshal(raw, &plan); err != nil {
		return nil, ErrMalformedResponse
	}
	if plan == nil {
		plan = Plan{}
	}
	return plan, nil
}

// stripFence removes a ``` or ```json fence around the payload.
func stripFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if nl := strings.Index(s, "\n"); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "```")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
