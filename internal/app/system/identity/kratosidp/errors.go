package kratosidp

import (
	"encoding/json"
	"strings"

	"github.com/dalemusser/heard/internal/app/system/identity"
)

// Kratos UI message ids.
const (
	msgInvalidFormat      = 4000001
	msgPasswordPolicy     = 4000005
	msgInvalidCredentials = 4000006
	msgExistsAlready      = 4000007
)

type uiText struct {
	ID   int64  `json:"id"`
	Text string `json:"text"`
	Type string `json:"type"`
}

// errorBody covers both flow responses (ui.*) and generic errors (error.*).
type errorBody struct {
	UI struct {
		Messages []uiText `json:"messages"`
		Nodes    []struct {
			Messages []uiText `json:"messages"`
		} `json:"nodes"`
	} `json:"ui"`
	Error struct {
		Message string `json:"message"`
		Reason  string `json:"reason"`
	} `json:"error"`
}

func (b errorBody) texts() []uiText {
	out := append([]uiText(nil), b.UI.Messages...)
	for _, n := range b.UI.Nodes {
		out = append(out, n.Messages...)
	}
	if b.Error.Reason != "" {
		out = append(out, uiText{Text: b.Error.Reason})
	}
	if b.Error.Message != "" {
		out = append(out, uiText{Text: b.Error.Message})
	}
	return out
}

// classifyBody returns the first recognised failure in a Kratos error body.
func classifyBody(raw []byte) (identity.Code, bool) {
	var b errorBody
	if err := json.Unmarshal(raw, &b); err != nil {
		return classifyText(string(raw))
	}
	for _, t := range b.texts() {
		if code, ok := classifyID(t.ID); ok {
			return code, true
		}
		if code, ok := classifyText(t.Text); ok {
			return code, true
		}
	}
	return identity.CodeOther, false
}

func classifyID(id int64) (identity.Code, bool) {
	switch id {
	case msgExistsAlready:
		return identity.CodeEmailInUse, true
	case msgPasswordPolicy:
		return identity.CodeWeakPassword, true
	case msgInvalidFormat:
		return identity.CodeInvalidEmail, true
	case msgInvalidCredentials:
		return identity.CodeInvalidCredential, true
	}
	return identity.CodeOther, false
}

func classifyText(s string) (identity.Code, bool) {
	s = strings.ToLower(s)
	switch {
	case s == "":
		return identity.CodeOther, false
	case strings.Contains(s, "exists already"), strings.Contains(s, "already exists"):
		return identity.CodeEmailInUse, true
	case strings.Contains(s, "credentials are invalid"):
		return identity.CodeInvalidCredential, true
	case strings.Contains(s, "disabled"), strings.Contains(s, "inactive"):
		return identity.CodeUserDisabled, true
	case strings.Contains(s, "password"):
		return identity.CodeWeakPassword, true
	case strings.Contains(s, "is not valid"), strings.Contains(s, "email"):
		return identity.CodeInvalidEmail, true
	}
	return identity.CodeOther, false
}
