package backend

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// APIError is a non-2xx backend response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}

// decodeError extracts a readable message from a failed response. JSON
// bodies carry an "error" field; HTML error pages fall back to their
// heading and first paragraph.
func decodeError(status int, contentType string, body []byte) *APIError {
	apiErr := &APIError{Status: status}

	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		switch {
		case strings.TrimSpace(payload.Error) != "":
			apiErr.Message = strings.TrimSpace(payload.Error)
		case strings.TrimSpace(payload.Message) != "":
			apiErr.Message = strings.TrimSpace(payload.Message)
		}
	}

	if apiErr.Message == "" && isHTML(contentType, body) {
		apiErr.Message = htmlErrorText(body)
	}

	if apiErr.Message == "" {
		apiErr.Message = fmt.Sprintf("request failed (%d)", status)
	}
	return apiErr
}

func isHTML(contentType string, body []byte) bool {
	if strings.Contains(strings.ToLower(contentType), "text/html") {
		return true
	}
	trimmed := bytes.TrimSpace(body)
	return bytes.HasPrefix(trimmed, []byte("<")) && bytes.Contains(bytes.ToLower(trimmed), []byte("<html"))
}

func htmlErrorText(body []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return ""
	}

	heading := collapse(doc.Find("h1").First().Text())
	if heading == "" {
		heading = collapse(doc.Find("title").First().Text())
	}
	detail := collapse(doc.Find("p").First().Text())

	switch {
	case heading != "" && detail != "":
		return heading + ": " + detail
	case heading != "":
		return heading
	default:
		return detail
	}
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
