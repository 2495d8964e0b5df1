// Package kycflow holds the applicant's verification draft and the stage
// machine that advances it. Stages only move forward; the single allowed
// regression is an explicit identity reset.
package kycflow

import "time"

// Stage is the applicant's position in the onboarding flow.
type Stage string

const (
	StageIDCapture    Stage = "id-capture"
	StageIDVerified   Stage = "id-verified"
	StageFaceVerified Stage = "face-verified"
	StageDemographics Stage = "demographics-submitted"
	StageEmployment   Stage = "employment-submitted"
	StageFinalized    Stage = "finalized"
)

// IDVerificationMaxAge is how long an ID verification stays usable for the
// follow-up face check.
const IDVerificationMaxAge = 20 * time.Minute

// Demographics is the personal-details step of the application.
type Demographics struct {
	FullName  string `json:"fullName"`
	BirthDate string `json:"birthDate"`
	Address   string `json:"address"`
	Email     string `json:"email"`
	Mobile    string `json:"mobile"`
}

// Employment is the income step of the application.
type Employment struct {
	Status        string  `json:"status"`
	Employer      string  `json:"employer"`
	MonthlyIncome float64 `json:"monthlyIncome"`
}

// IdentityDraft is one applicant's in-progress verification state.
type IdentityDraft struct {
	ID         string `json:"id"`
	Stage      Stage  `json:"stage"`
	TermsAgree bool   `json:"termsAgree"`

	IDType               string    `json:"idType,omitempty"`
	IDImage              string    `json:"idImage,omitempty"`
	IDVerified           bool      `json:"idVerified"`
	IDVerificationToken  string    `json:"idVerificationToken,omitempty"`
	IDVerificationSource string    `json:"idVerificationSource,omitempty"`
	IDVerifiedAt         time.Time `json:"idVerifiedAt,omitempty"`

	FaceVerified   bool      `json:"faceVerified"`
	FaceDistance   *float64  `json:"faceDistance,omitempty"`
	FaceVerifiedAt time.Time `json:"faceVerifiedAt,omitempty"`

	Demographics *Demographics `json:"demographics,omitempty"`
	Employment   *Employment   `json:"employment,omitempty"`
}

// idVerificationFresh reports whether the ID verification is recent enough
// to anchor a face check.
func (d *IdentityDraft) idVerificationFresh(now time.Time) bool {
	if !d.IDVerified || d.IDVerifiedAt.IsZero() {
		return false
	}
	return now.Sub(d.IDVerifiedAt) <= IDVerificationMaxAge
}

// resetIdentity clears every verification result while keeping consent. Used
// both for the explicit reset operation and when the applicant switches to a
// different document type.
func (d *IdentityDraft) resetIdentity() {
	d.Stage = StageIDCapture
	d.IDType = ""
	d.IDImage = ""
	d.IDVerified = false
	d.IDVerificationToken = ""
	d.IDVerificationSource = ""
	d.IDVerifiedAt = time.Time{}
	d.FaceVerified = false
	d.FaceDistance = nil
	d.FaceVerifiedAt = time.Time{}
	d.Demographics = nil
	d.Employment = nil
}

// Booking is the finalized application record appended when a draft
// completes the flow.
type Booking struct {
	ID           string       `json:"id"`
	DraftID      string       `json:"draftId"`
	IDType       string       `json:"idType"`
	Provenance   string       `json:"provenance"`
	Demographics Demographics `json:"demographics"`
	Employment   Employment   `json:"employment"`
	CreatedAt    time.Time    `json:"createdAt"`
}
