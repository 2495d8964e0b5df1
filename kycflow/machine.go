package kycflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/johnmichaeldizon211/APATECH1/models"

	"github.com/google/uuid"
)

// Verifier produces identity verdicts for the two verification steps.
type Verifier interface {
	VerifyID(ctx context.Context, idType, idImage string) (models.Verdict, error)
	VerifyFace(ctx context.Context, idType, idImage, selfieImage, verificationToken string) (models.Verdict, error)
}

// Machine advances identity drafts through the onboarding stages. It owns
// the guard rules; verification verdicts come from the injected Verifier.
type Machine struct {
	drafts   DraftStore
	bookings BookingStore
	verifier Verifier
	now      func() time.Time
}

func NewMachine(drafts DraftStore, bookings BookingStore, verifier Verifier) *Machine {
	return &Machine{
		drafts:   drafts,
		bookings: bookings,
		verifier: verifier,
		now:      time.Now,
	}
}

// StartDraft creates a fresh draft at the id-capture stage.
func (m *Machine) StartDraft() (*IdentityDraft, error) {
	draft := &IdentityDraft{
		ID:    uuid.NewString(),
		Stage: StageIDCapture,
	}
	if err := m.drafts.SaveDraft(draft); err != nil {
		return nil, fmt.Errorf("failed to save new draft: %w", err)
	}
	return draft, nil
}

// GetDraft loads a draft by ID.
func (m *Machine) GetDraft(id string) (*IdentityDraft, error) {
	return m.drafts.GetDraft(id)
}

// AgreeTerms records the applicant's consent on the draft. Verification
// cannot start without it.
func (m *Machine) AgreeTerms(draftID string) (*IdentityDraft, error) {
	draft, err := m.drafts.GetDraft(draftID)
	if err != nil {
		return nil, err
	}
	draft.TermsAgree = true
	if err := m.drafts.SaveDraft(draft); err != nil {
		return nil, err
	}
	return draft, nil
}

// VerifyID runs the document check and, on success, advances the draft to
// id-verified. Switching to a different document type first discards every
// earlier verification result.
func (m *Machine) VerifyID(ctx context.Context, draftID, idType, idImage string) (*IdentityDraft, models.Verdict, error) {
	draft, err := m.drafts.GetDraft(draftID)
	if err != nil {
		return nil, models.Verdict{}, err
	}
	if draft.Stage == StageFinalized {
		return nil, models.Verdict{}, fmt.Errorf("application is already finalized")
	}
	if !draft.TermsAgree {
		return nil, models.Verdict{}, fmt.Errorf("terms must be accepted before verification")
	}

	if draft.IDType != "" && draft.IDType != idType {
		slog.Info("ID type changed, discarding previous verification", "draft", draft.ID, "from", draft.IDType, "to", idType)
		draft.resetIdentity()
	}

	verdict, err := m.verifier.VerifyID(ctx, idType, idImage)
	if err != nil {
		return nil, models.Verdict{}, err
	}

	draft.IDType = idType
	if verdict.Verified {
		draft.IDImage = idImage
		draft.IDVerified = true
		draft.IDVerificationToken = verdict.VerificationToken
		draft.IDVerificationSource = verdict.Provenance
		draft.IDVerifiedAt = m.now()
		draft.Stage = StageIDVerified
	}
	if err := m.drafts.SaveDraft(draft); err != nil {
		return nil, models.Verdict{}, err
	}
	return draft, verdict, nil
}

// VerifyFace cross-checks a selfie against the verified document. A stale ID
// verification sends the draft back to id-capture instead of matching
// against an old document.
func (m *Machine) VerifyFace(ctx context.Context, draftID, selfieImage string) (*IdentityDraft, models.Verdict, error) {
	draft, err := m.drafts.GetDraft(draftID)
	if err != nil {
		return nil, models.Verdict{}, err
	}
	if draft.Stage == StageFinalized {
		return nil, models.Verdict{}, fmt.Errorf("application is already finalized")
	}
	if !draft.IDVerified {
		return nil, models.Verdict{}, fmt.Errorf("ID must be verified before the face check")
	}
	if !draft.idVerificationFresh(m.now()) {
		draft.resetIdentity()
		if err := m.drafts.SaveDraft(draft); err != nil {
			return nil, models.Verdict{}, err
		}
		return draft, models.Verdict{}, fmt.Errorf("ID verification expired, please verify your ID again")
	}

	verdict, err := m.verifier.VerifyFace(ctx, draft.IDType, draft.IDImage, selfieImage, draft.IDVerificationToken)
	if err != nil {
		return nil, models.Verdict{}, err
	}

	if verdict.Verified {
		draft.FaceVerified = true
		draft.FaceDistance = verdict.Distance
		draft.FaceVerifiedAt = m.now()
		draft.Stage = StageFaceVerified
	}
	if err := m.drafts.SaveDraft(draft); err != nil {
		return nil, models.Verdict{}, err
	}
	return draft, verdict, nil
}

// SubmitDemographics accepts personal details once both identity checks have
// passed.
func (m *Machine) SubmitDemographics(draftID string, demographics Demographics) (*IdentityDraft, error) {
	draft, err := m.drafts.GetDraft(draftID)
	if err != nil {
		return nil, err
	}
	if !draft.IDVerified || !draft.FaceVerified || draft.Stage != StageFaceVerified {
		return nil, fmt.Errorf("identity verification must be completed before demographics")
	}
	draft.Demographics = &demographics
	draft.Stage = StageDemographics
	if err := m.drafts.SaveDraft(draft); err != nil {
		return nil, err
	}
	return draft, nil
}

// SubmitEmployment accepts the income step after demographics.
func (m *Machine) SubmitEmployment(draftID string, employment Employment) (*IdentityDraft, error) {
	draft, err := m.drafts.GetDraft(draftID)
	if err != nil {
		return nil, err
	}
	if draft.Stage != StageDemographics {
		return nil, fmt.Errorf("demographics must be submitted before employment")
	}
	draft.Employment = &employment
	draft.Stage = StageEmployment
	if err := m.drafts.SaveDraft(draft); err != nil {
		return nil, err
	}
	return draft, nil
}

// Finalize turns a completed draft into a booking record and removes the
// draft. After this point the draft ID is no longer usable.
func (m *Machine) Finalize(draftID string) (*Booking, error) {
	draft, err := m.drafts.GetDraft(draftID)
	if err != nil {
		return nil, err
	}
	if draft.Stage != StageEmployment {
		return nil, fmt.Errorf("employment must be submitted before finalizing")
	}

	booking := Booking{
		ID:           uuid.NewString(),
		DraftID:      draft.ID,
		IDType:       draft.IDType,
		Provenance:   draft.IDVerificationSource,
		Demographics: *draft.Demographics,
		Employment:   *draft.Employment,
		CreatedAt:    m.now(),
	}
	if err := m.bookings.AppendBooking(booking); err != nil {
		return nil, fmt.Errorf("failed to record booking: %w", err)
	}
	if err := m.drafts.DeleteDraft(draft.ID); err != nil {
		slog.Warn("Failed to delete finalized draft", "draft", draft.ID, "error", err)
	}
	slog.Info("Application finalized", "draft", draft.ID, "booking", booking.ID)
	return &booking, nil
}

// ResetIdentity discards every verification result and returns the draft to
// id-capture. This is the only way a draft moves backwards.
func (m *Machine) ResetIdentity(draftID string) (*IdentityDraft, error) {
	draft, err := m.drafts.GetDraft(draftID)
	if err != nil {
		return nil, err
	}
	if draft.Stage == StageFinalized {
		return nil, fmt.Errorf("application is already finalized")
	}
	draft.resetIdentity()
	if err := m.drafts.SaveDraft(draft); err != nil {
		return nil, err
	}
	return draft, nil
}
