package models

type SendCodeRequest struct {
	Method  string `json:"method"` // "email" or "mobile"
	Contact string `json:"contact"`
}

type Delivery struct {
	Method   string `json:"method"`
	Mode     string `json:"mode"` // "live" or "demo"
	Provider string `json:"provider"`
}

type SendCodeResponse struct {
	Success     bool     `json:"success"`
	Message     string   `json:"message"`
	RequestId   string   `json:"requestId"`
	ExpiresInMs int64    `json:"expiresInMs"`
	Delivery    Delivery `json:"delivery"`

	// DemoCode is only present when no delivery channel accepted the code,
	// so constrained deployments can still complete the ceremony.
	DemoCode       string `json:"demoCode,omitempty"`
	DeliveryReason string `json:"deliveryReason,omitempty"`
}

type VerifyCodeRequest struct {
	RequestId string `json:"requestId"`
	Code      string `json:"code"` // exactly 4 digits
}

type VerifyCodeResponse struct {
	Success  bool   `json:"success"`
	Verified bool   `json:"verified"`
	Message  string `json:"message"`
}

type ResetPasswordRequest struct {
	NewPassword string `json:"newPassword"`
	RequestId   string `json:"requestId,omitempty"`
	Email       string `json:"email,omitempty"`
	Method      string `json:"method,omitempty"`
	Contact     string `json:"contact,omitempty"`
}

type ResetPasswordResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}
