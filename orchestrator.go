package main

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/johnmichaeldizon211/APATECH1/document"
	"github.com/johnmichaeldizon211/APATECH1/facematch"
	"github.com/johnmichaeldizon211/APATECH1/images"
	"github.com/johnmichaeldizon211/APATECH1/models"
)

// VerificationOrchestrator runs each check against the remote authority and
// the local engines, then combines both answers. The remote authority is
// consulted first-class but never blindly trusted: a local rejection
// overturns a remote approval, and a remote outage degrades to a fully
// local decision.
type VerificationOrchestrator struct {
	remote   RemoteVerifier
	analyzer *document.Analyzer
	matcher  *facematch.Matcher
	tokens   TokenCreator
}

func NewVerificationOrchestrator(remote RemoteVerifier, analyzer *document.Analyzer, matcher *facematch.Matcher, tokens TokenCreator) *VerificationOrchestrator {
	return &VerificationOrchestrator{
		remote:   remote,
		analyzer: analyzer,
		matcher:  matcher,
		tokens:   tokens,
	}
}

// combineDocumentVerdict merges the remote and local document answers.
//
//   - remote unreachable: the local result decides, provenance local-fallback
//   - remote rejects: trusted as-is, provenance remote
//   - remote approves and local agrees: approved, provenance remote+local
//   - remote approves but local rejects: the local rejection wins with its
//     own reason, provenance local
func combineDocumentVerdict(remote *RemoteVerdict, remoteErr error, local document.Result, localErr error) (models.Verdict, error) {
	if remoteErr != nil {
		if localErr != nil {
			return models.Verdict{}, fmt.Errorf("remote authority unavailable and local analysis failed: %w", localErr)
		}
		return models.Verdict{
			Verified:   local.Verified,
			Reason:     local.Reason,
			Provenance: models.ProvenanceLocalFallback,
		}, nil
	}

	if !remote.Verified {
		return models.Verdict{
			Verified:   false,
			Reason:     remote.Reason,
			Provenance: models.ProvenanceRemote,
		}, nil
	}

	if localErr != nil {
		return models.Verdict{
			Verified:   true,
			Reason:     remote.Reason,
			Provenance: models.ProvenanceRemote,
		}, nil
	}

	if !local.Verified {
		return models.Verdict{
			Verified:   false,
			Reason:     local.Reason,
			Provenance: models.ProvenanceLocal,
		}, nil
	}

	return models.Verdict{
		Verified:   true,
		Reason:     local.Reason,
		Provenance: models.ProvenanceRemoteLocal,
	}, nil
}

// combineFaceVerdict follows the same policy as combineDocumentVerdict. When
// both sides report a distance the local measurement is the one returned.
func combineFaceVerdict(remote *RemoteVerdict, remoteErr error, local facematch.Result, localErr error) (models.Verdict, error) {
	if remoteErr != nil {
		if localErr != nil {
			return models.Verdict{}, fmt.Errorf("remote authority unavailable and local face match failed: %w", localErr)
		}
		return models.Verdict{
			Verified:   local.Verified,
			Reason:     local.Reason,
			Provenance: models.ProvenanceLocalFallback,
			Distance:   local.Distance,
		}, nil
	}

	if !remote.Verified {
		return models.Verdict{
			Verified:   false,
			Reason:     remote.Reason,
			Provenance: models.ProvenanceRemote,
			Distance:   remote.Distance,
		}, nil
	}

	if localErr != nil {
		return models.Verdict{
			Verified:   true,
			Reason:     remote.Reason,
			Provenance: models.ProvenanceRemote,
			Distance:   remote.Distance,
		}, nil
	}

	if !local.Verified {
		return models.Verdict{
			Verified:   false,
			Reason:     local.Reason,
			Provenance: models.ProvenanceLocal,
			Distance:   local.Distance,
		}, nil
	}

	return models.Verdict{
		Verified:   true,
		Reason:     local.Reason,
		Provenance: models.ProvenanceRemoteLocal,
		Distance:   local.Distance,
	}, nil
}

// VerifyID validates the document image, fans out to the remote authority
// and the local analyzer, and mints a verification token when the combined
// verdict approves.
func (o *VerificationOrchestrator) VerifyID(ctx context.Context, idType, idImage string) (models.Verdict, error) {
	frame, err := images.ValidateFrame(idImage)
	if err != nil {
		return models.Verdict{Reason: "ID image is too small or unclear. Please capture again.", Provenance: models.ProvenanceLocal}, nil
	}

	var (
		remoteVerdict *RemoteVerdict
		remoteErr     error
		localResult   document.Result
		localErr      error
		wg            sync.WaitGroup
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		if o.remote == nil {
			remoteErr = fmt.Errorf("remote authority not configured")
			return
		}
		remoteVerdict, remoteErr = o.remote.VerifyID(ctx, idType, idImage)
	}()

	localResult, localErr = o.analyzer.Analyze(ctx, document.ParseIDType(idType), frame)
	wg.Wait()

	if remoteErr != nil {
		slog.Warn("Remote ID verification unavailable, deciding locally", "error", remoteErr)
	}

	verdict, err := combineDocumentVerdict(remoteVerdict, remoteErr, localResult, localErr)
	if err != nil {
		return models.Verdict{}, err
	}

	if verdict.Verified {
		token, err := o.tokens.CreateVerificationToken(idType)
		if err != nil {
			return models.Verdict{}, err
		}
		verdict.VerificationToken = token
	}

	slog.Info("ID verification decided", "verified", verdict.Verified, "provenance", verdict.Provenance)
	return verdict, nil
}

// VerifyFace checks the verification token, then fans out the selfie match
// to the remote authority and the local matcher. The token is parsed and
// signature-checked before any matching work runs.
func (o *VerificationOrchestrator) VerifyFace(ctx context.Context, idType, idImage, selfieImage, verificationToken string) (models.Verdict, error) {
	claims, err := o.tokens.ParseVerificationToken(verificationToken)
	if err != nil {
		return models.Verdict{}, fmt.Errorf("invalid verification token: %w", err)
	}
	if claims.IDType != idType {
		return models.Verdict{}, fmt.Errorf("verification token was issued for a different document type")
	}

	selfieFrame, err := images.ValidateFrame(selfieImage)
	if err != nil {
		return models.Verdict{Reason: "Selfie image is too small or unclear. Please capture again.", Provenance: models.ProvenanceLocal}, nil
	}
	idFrame, err := images.DecodeDataURL(idImage)
	if err != nil {
		return models.Verdict{}, fmt.Errorf("failed to decode ID image: %w", err)
	}

	var (
		remoteVerdict *RemoteVerdict
		remoteErr     error
		wg            sync.WaitGroup
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		if o.remote == nil {
			remoteErr = fmt.Errorf("remote authority not configured")
			return
		}
		remoteVerdict, remoteErr = o.remote.VerifyFace(ctx, idType, idImage, selfieImage)
	}()

	localResult, localErr := o.matcher.Compare(ctx, idFrame, selfieFrame)
	wg.Wait()

	if remoteErr != nil {
		slog.Warn("Remote face verification unavailable, deciding locally", "error", remoteErr)
	}

	verdict, err := combineFaceVerdict(remoteVerdict, remoteErr, localResult, localErr)
	if err != nil {
		return models.Verdict{}, err
	}

	slog.Info("Face verification decided", "verified", verdict.Verified, "provenance", verdict.Provenance)
	return verdict, nil
}
