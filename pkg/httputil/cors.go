package httputil

import "net/http"

// SetCORS adds permissive cross-origin headers to a response.
// The relay serves browser clients on arbitrary origins, so the header
// set is wide open by contract.
func SetCORS(h http.Header) {
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	h.Set("Access-Control-Allow-Headers", "Content-Type")
}
