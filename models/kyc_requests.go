package models

type VerifyIdRequest struct {
	IdType  string `json:"idType"`
	IdImage string `json:"idImage"` // data-URL encoded raster image
	DraftId string `json:"draftId,omitempty"`
}

type VerifyIdResponse struct {
	Verified          bool   `json:"verified"`
	Reason            string `json:"reason"`
	VerificationToken string `json:"verificationToken,omitempty"`
	Provenance        string `json:"provenance,omitempty"`
}

type VerifyFaceRequest struct {
	IdType            string `json:"idType"`
	IdImage           string `json:"idImage"`     // data-URL encoded raster image
	SelfieImage       string `json:"selfieImage"` // data-URL encoded raster image
	VerificationToken string `json:"verificationToken"`
	DraftId           string `json:"draftId,omitempty"`
}

type VerifyFaceResponse struct {
	Verified   bool     `json:"verified"`
	Reason     string   `json:"reason"`
	Distance   *float64 `json:"distance,omitempty"`
	Provenance string   `json:"provenance,omitempty"`
}
