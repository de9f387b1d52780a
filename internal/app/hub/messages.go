package hub

import "encoding/json"

// Envelope frames every message in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Client to server events.
const (
	EventPlacePixel     = "placePixel"
	EventPurchasePixels = "purchasePixels"
	EventGetBalance     = "getBalance"
)

// Server to client events.
const (
	EventCanvasState     = "canvasState"
	EventCanvasUpdate    = "canvasUpdate"
	EventBalanceUpdate   = "balanceUpdate"
	EventError           = "error"
	EventPurchaseSuccess = "purchaseSuccess"
	EventPurchaseError   = "purchaseError"
)

type placePixelRequest struct {
	X     int    `json:"x"`
	Y     int    `json:"y"`
	Color string `json:"color"`
}

type purchasePixelsRequest struct {
	PackSize int    `json:"packSize"`
	PIN      string `json:"pin"`
}

type errorPayload struct {
	Message string `json:"message"`
}

type purchaseSuccessPayload struct {
	PackSize   int `json:"packSize"`
	NewBalance int `json:"newBalance"`
}

func mustEnvelope(event string, payload interface{}) []byte {
	var data json.RawMessage
	if payload != nil {
		data, _ = json.Marshal(payload)
	}
	msg, _ := json.Marshal(Envelope{Event: event, Data: data})
	return msg
}
