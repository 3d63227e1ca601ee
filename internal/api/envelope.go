package api

import (
	"bytes"
	"encoding/json"
)

// Сообщения об ошибках, на которые опирается клиент киоска.
const (
	msgInvalidJSON   = "Invalid JSON format"
	msgNotObject     = "Received JSON is not a dictionary"
	msgUnknownAction = "Unknown action"
	msgInternal      = "Internal server error"
)

// Имена действий.
const (
	ActionPing            = "ping"
	ActionDefectDetection = "defect_detection"
	ActionDefectStream    = "defect_stream"
	ActionStats           = "stats"

	actionPong            = "pong"
	actionDetectionResult = "defect_detection_result"
	actionStatsResult     = "stats_result"
)

// Request входящее сообщение. Поля с неверным JSON-типом считаются
// отсутствующими.
type Request struct {
	Action string
	Image  string
}

// ErrorResponse отправляется на каждое неудачное сообщение.
type ErrorResponse struct {
	Error string `json:"error"`
}

type PongResponse struct {
	Action string `json:"action"`
}

// DetectionResponse ответ на defect_detection.
type DetectionResponse struct {
	Action     string   `json:"action"`
	Defects    []string `json:"defects"`
	Confidence float64  `json:"confidence"`
	Image      string   `json:"image,omitempty"`
}

// StreamResponse ответ на потоковые кадры. Confidence в той же шкале 0..1,
// что и в DetectionResponse.
type StreamResponse struct {
	Defect     string  `json:"defect"`
	Confidence float64 `json:"confidence"`
	BBox       [4]int  `json:"bbox"`
}

type StatsResponse struct {
	Action         string         `json:"action"`
	ActiveSessions int            `json:"active_sessions"`
	Detections     map[string]int `json:"detections"`
}

type envelopeError string

func (e envelopeError) Error() string { return string(e) }

const (
	errInvalidJSON envelopeError = msgInvalidJSON
	errNotObject   envelopeError = msgNotObject
)

// parseRequest разбирает текстовое сообщение в Request.
func parseRequest(data []byte) (Request, error) {
	if !json.Valid(data) {
		return Request{}, errInvalidJSON
	}
	var fields map[string]interface{}
	if err := json.Unmarshal(data, &fields); err != nil || fields == nil {
		return Request{}, errNotObject
	}

	action, _ := fields["action"].(string)
	image, _ := fields["image"].(string)
	return Request{Action: action, Image: image}, nil
}

// isRawFrame сообщает, несёт ли текстовое сообщение, которое не является
// JSON, data URL для прямой классификации.
func isRawFrame(data []byte) bool {
	return bytes.HasPrefix(bytes.TrimSpace(data), []byte("data:"))
}
