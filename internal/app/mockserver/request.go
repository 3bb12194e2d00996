package mockserver

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/form3tech-oss/pact-consumer/internal/app/plugin"
	log "github.com/sirupsen/logrus"
)

// requestDocument is the JSON-like view of a received request that
// constraints are evaluated against: method, path, query, headers and the
// body decoded for its content type.
type requestDocument map[string]any

func newRequestDocument(req *http.Request, body []byte, registry *plugin.Registry) requestDocument {
	headers := make(map[string]any, len(req.Header))
	for name, values := range req.Header {
		if len(values) > 0 {
			headers[name] = strings.Join(values, ", ")
		}
	}

	doc := requestDocument{
		"method":  req.Method,
		"path":    req.URL.Path,
		"query":   parseQueryValues(req.URL),
		"headers": headers,
		"body":    nil,
	}
	if len(body) > 0 {
		decoded, err := registry.Decode(requestContentType(req), body)
		if err != nil {
			log.WithError(err).Warn("keeping undecodable request body as text")
			decoded = string(body)
		}
		doc["body"] = decoded
	}
	return doc
}

func requestContentType(req *http.Request) string {
	if ct := req.Header.Get("Content-Type"); ct != "" {
		return ct
	}
	return "text/plain"
}

func parseQueryValues(u *url.URL) map[string]any {
	queryValues := make(map[string]any)
	for q, v := range u.Query() {
		if len(v) > 0 {
			escapeValue(queryValues, q, v[0])
		}
	}
	return queryValues
}

// encodeValues quotes bracketed query keys so JSONPath treats them as
// member names.
func (r requestDocument) encodeValues(val string) string {
	query, _ := r["query"].(map[string]any)
	return encodeMapValues(query, val)
}

func encodeMapValues(m map[string]any, val string) string {
	result := val
	for k, v := range m {
		result = strings.ReplaceAll(result, "["+k+"]", "[\""+k+"\"]")
		if nested, ok := v.(map[string]any); ok {
			result = encodeMapValues(nested, result)
		}
	}
	return result
}

// escapeValue nests bracketed query names: a[b][c]=v becomes
// {"a": {"b": {"c": "v"}}}.
func escapeValue(values map[string]any, query, val string) {
	open := strings.Index(query, "[")
	if open < 0 {
		values[query] = val
		return
	}

	key := query[:open]
	rest := query[open+1:]
	closing := strings.Index(rest, "]")
	if closing < 0 {
		values[query] = val
		return
	}

	subKey := rest[:closing]
	next := rest[closing+1:]

	valueMap, ok := values[key].(map[string]any)
	if !ok {
		valueMap = make(map[string]any)
		values[key] = valueMap
	}
	escapeValue(valueMap, subKey+next, val)
}
