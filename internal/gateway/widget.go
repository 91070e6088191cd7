package gateway

// Options is the configuration object handed to the external checkout
// widget. Field names follow the gateway's wire format; the frontend passes
// this through untouched.
type Options struct {
	Key         string            `json:"key"`
	Amount      int64             `json:"amount"`
	Currency    string            `json:"currency"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	OrderID     string            `json:"order_id"`
	Prefill     Prefill           `json:"prefill"`
	Notes       map[string]string `json:"notes,omitempty"`
	Theme       Theme             `json:"theme"`
}

// Prefill seeds the widget's contact form.
type Prefill struct {
	Name    string `json:"name,omitempty"`
	Email   string `json:"email,omitempty"`
	Contact string `json:"contact,omitempty"`
}

// Theme styles the hosted widget.
type Theme struct {
	Color string `json:"color,omitempty"`
}
