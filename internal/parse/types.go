package parse

import (
	"encoding/json"
	"fmt"
	"net/http"
)

type findResponse struct {
	Results []map[string]json.RawMessage `json:"results"`
}

// fileValue is a Parse File: {"__type":"File","name":...,"url":...}.
type fileValue struct {
	Type string `json:"__type"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

// userValue is either a bare _User pointer or the included object.
type userValue struct {
	Type      string `json:"__type"`
	ClassName string `json:"className"`
	ObjectID  string `json:"objectId"`
	Username  string `json:"username"`
}

// Error is an error reported by the server.
type Error struct {
	Status  int
	Code    int    `json:"code"`
	Message string `json:"error"`
}

func (e *Error) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s (code %d)", e.Message, e.Code)
	}
	return fmt.Sprintf("%s (HTTP %d)", e.Message, e.Status)
}

func decodeError(status int, body []byte) error {
	e := &Error{Status: status}
	if err := json.Unmarshal(body, e); err != nil || e.Message == "" {
		e.Code = 0
		e.Message = http.StatusText(status)
		if e.Message == "" {
			e.Message = "unexpected response"
		}
	}
	return e
}
