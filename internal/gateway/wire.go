package gateway

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"go-academic-portal/internal/model"
)

// flexString accepts a JSON string or number.
type flexString string

func (s *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*s = ""
		return nil
	}
	if data[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = flexString(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*s = flexString(n.String())
	return nil
}

// wireRole accepts "docente", {"id":2,"nombre":"docente"} or
// {"id":"2","name":"docente"}.
type wireRole struct {
	ID   string
	Name string
}

func (r *wireRole) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var name string
		if err := json.Unmarshal(data, &name); err != nil {
			return err
		}
		r.Name = name
		return nil
	}

	var obj struct {
		ID     flexString `json:"id"`
		Nombre string     `json:"nombre"`
		Name   string     `json:"name"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	r.ID = string(obj.ID)
	r.Name = obj.Nombre
	if r.Name == "" {
		r.Name = obj.Name
	}
	return nil
}

type wireUser struct {
	ID        flexString `json:"id"`
	Email     string     `json:"email"`
	Names     string     `json:"names"`
	Nombres   string     `json:"nombres"`
	Surnames  string     `json:"surnames"`
	Apellidos string     `json:"apellidos"`
	Roles     []wireRole `json:"roles"`
}

func (u wireUser) empty() bool {
	return u.ID == "" && u.Email == "" && len(u.Roles) == 0
}

type tokenResponse struct {
	AccessToken     string    `json:"accessToken"`
	Token           string    `json:"token"`
	RefreshToken    string    `json:"refreshToken"`
	TokenDurationMs int64     `json:"tokenDurationMs"`
	User            *wireUser `json:"user"`
	Usuario         *wireUser `json:"usuario"`
}

func (r tokenResponse) accessToken() string {
	if r.AccessToken != "" {
		return r.AccessToken
	}
	return r.Token
}

func (r tokenResponse) duration() time.Duration {
	if r.TokenDurationMs <= 0 {
		return 0
	}
	return time.Duration(r.TokenDurationMs) * time.Millisecond
}

func (r tokenResponse) user() *wireUser {
	if r.User != nil {
		return r.User
	}
	return r.Usuario
}

type verifyEnvelope struct {
	User    *wireUser `json:"user"`
	Usuario *wireUser `json:"usuario"`
}

type errorBody struct {
	Message string `json:"message"`
	Error   any    `json:"error"`
}

func (b errorBody) text() string {
	if b.Message != "" {
		return b.Message
	}
	switch v := b.Error.(type) {
	case string:
		return v
	case map[string]any:
		if msg, ok := v["message"].(string); ok {
			return msg
		}
	}
	return ""
}

// normalizeUser is the single place where backend user shapes become a
// UserProfile. Roles without a name are dropped, duplicate names (ignoring
// case) keep the first occurrence, and a role without id uses its name.
func normalizeUser(w wireUser) model.UserProfile {
	profile := model.UserProfile{
		ID:       strings.TrimSpace(string(w.ID)),
		Email:    strings.TrimSpace(w.Email),
		Names:    firstNonEmpty(w.Names, w.Nombres),
		Surnames: firstNonEmpty(w.Surnames, w.Apellidos),
	}

	seen := map[string]struct{}{}
	for _, r := range w.Roles {
		name := strings.TrimSpace(r.Name)
		if name == "" {
			continue
		}
		key := strings.ToLower(name)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		id := strings.TrimSpace(r.ID)
		if id == "" {
			id = name
		}
		profile.Roles = append(profile.Roles, model.Role{ID: id, Name: name})
	}

	return profile
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
