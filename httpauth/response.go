package httpauth

import (
	"encoding/json"
	"net/http"

	"github.com/MrEthical07/pairauth"
)

// Envelope wraps every successful response.
type Envelope struct {
	StatusCode int    `json:"statusCode"`
	Data       any    `json:"data"`
	Message    string `json:"message"`
	Success    bool   `json:"success"`
}

// ErrorBody is the JSON body of every failed request.
type ErrorBody struct {
	StatusCode int    `json:"statusCode"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	Success    bool   `json:"success"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeOK(w http.ResponseWriter, data any, message string) {
	writeJSON(w, http.StatusOK, Envelope{
		StatusCode: http.StatusOK,
		Data:       data,
		Message:    message,
		Success:    true,
	})
}

// WriteError writes the public view of err. Causes never reach the client.
func WriteError(w http.ResponseWriter, err error) {
	pub := pairauth.PublicErrorOf(err)
	writeJSON(w, pub.Status, ErrorBody{
		StatusCode: pub.Status,
		Code:       pub.Code,
		Message:    pub.Message,
	})
}
