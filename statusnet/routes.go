package statusnet

import (
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
)

// API paths, relative to the API root. The {id} placeholders use the
// same syntax as gorilla/mux so the proxy can route on them directly.
const (
	ConfigPath           = "/statusnet/config.json"
	ConversationPath     = "/statusnet/conversation/{id}.json"
	ConversationFeedPath = "/statusnet/conversation/{id}.atom"
	ShowStatusPath       = "/statuses/show/{id}.json"
)

const (
	acceptJSON = "application/json"
	acceptAtom = "application/atom+xml"
)

// route maps an operation to its HTTP method and path template
type route struct {
	op     string
	method string
	path   string
	accept string
}

var (
	configRoute           = route{op: "GetConfig", method: http.MethodGet, path: ConfigPath, accept: acceptJSON}
	conversationRoute     = route{op: "GetConversation", method: http.MethodGet, path: ConversationPath, accept: acceptJSON}
	conversationFeedRoute = route{op: "GetConversationFeed", method: http.MethodGet, path: ConversationFeedPath, accept: acceptAtom}
	showStatusRoute       = route{op: "ShowStatus", method: http.MethodGet, path: ShowStatusPath, accept: acceptJSON}
)

// placeholderPattern matches the {name} parameters of a path template
var placeholderPattern = regexp.MustCompile(`\{(\w+)\}`)

// expand substitutes path parameters, returning the plain and escaped paths.
// Every parameter of the template must have a non-blank value.
func (rt route) expand(params map[string]string) (string, string, error) {
	for _, m := range placeholderPattern.FindAllStringSubmatch(rt.path, -1) {
		if strings.TrimSpace(params[m[1]]) == "" {
			return "", "", fmt.Errorf("%s: %w", m[1], ErrMissingID)
		}
	}
	plain := placeholderPattern.ReplaceAllStringFunc(rt.path, func(p string) string {
		return params[p[1:len(p)-1]]
	})
	escaped := placeholderPattern.ReplaceAllStringFunc(rt.path, func(p string) string {
		return url.PathEscape(params[p[1:len(p)-1]])
	})
	return plain, escaped, nil
}

// resolve builds the full request URL under the API root
func (rt route) resolve(root *url.URL, params map[string]string, query url.Values) (*url.URL, error) {
	plain, escaped, err := rt.expand(params)
	if err != nil {
		return nil, err
	}
	u := *root
	u.Path = strings.TrimSuffix(root.Path, "/") + plain
	u.RawPath = strings.TrimSuffix(root.EscapedPath(), "/") + escaped
	u.RawQuery = ""
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return &u, nil
}
