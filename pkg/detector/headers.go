package detector

import (
	"net/http"
	"strings"
)

// HeadersFromHTTP flattens request headers for LookupHeaders. Repeated
// values are joined with ", ".
func HeadersFromHTTP(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for name, values := range h {
		if len(values) == 0 {
			continue
		}
		out[name] = strings.Join(values, ", ")
	}
	return out
}
