package admission

import (
	"encoding/json"
	"math"
	"net/http"
	"time"
)

const (
	HeaderAllowOrigin = "Access-Control-Allow-Origin"
	HeaderRetryAfter  = "Retry-After"
	// HeaderDelay informa, em segundos, o atraso de throttle aplicado.
	HeaderDelay = "X-Admission-Delay"

	MessageBlocked     = "Rate limit exceeded. Try again later."
	MessageUnavailable = "Admission control unavailable. Try again later."
	MessageBusy        = "Too many concurrent requests. Try again later."
	MessageThrottled   = "Request throttled past the response deadline. Try again later."
)

type blockedBody struct {
	Error    string `json:"error"`
	TimeLeft string `json:"time_left"`
}

type errorBody struct {
	Error string `json:"error"`
}

// writeBlocked escreve o 429 com o tempo restante humanizado.
func writeBlocked(w http.ResponseWriter, remaining time.Duration) {
	w.Header().Set(HeaderRetryAfter, retryAfterSeconds(remaining))
	writeJSON(w, http.StatusTooManyRequests, blockedBody{
		Error:    MessageBlocked,
		TimeLeft: HumanizeDuration(remaining),
	})
}

func writeError(w http.ResponseWriter, status int, msg string, retryAfter time.Duration) {
	if retryAfter > 0 {
		w.Header().Set(HeaderRetryAfter, retryAfterSeconds(retryAfter))
	}
	writeJSON(w, status, errorBody{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	h := w.Header()
	// o corpo do handler (se houve) foi descartado
	h.Del("Content-Length")
	h.Del("Content-Encoding")
	h.Set("Content-Type", "application/json")
	h.Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Retry-After em segundos inteiros, arredondado para cima, mínimo 1.
func retryAfterSeconds(d time.Duration) string {
	s := int(math.Ceil(d.Seconds()))
	if s < 1 {
		s = 1
	}
	return formatInt(s)
}
