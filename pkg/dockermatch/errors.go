package dockermatch

import (
	stderrors "errors"

	domerrors "github.com/shaulab/dockertracer/pkg/domain/errors"
)

// IsCancelled reports whether err represents a match cancelled via context.
func IsCancelled(err error) bool { return hasCode(err, domerrors.CodeCancelled) }

// IsImageNotFound reports whether err represents an image that could not be
// found or pulled.
func IsImageNotFound(err error) bool { return hasCode(err, domerrors.CodeImageNotFound) }

// IsInvalidDockerfile reports whether err represents a Dockerfile that
// failed to parse or carried no FROM instruction.
func IsInvalidDockerfile(err error) bool {
	return hasCode(err, domerrors.CodeInvalidDockerfile) || hasCode(err, domerrors.CodeNoBaseImage)
}

func hasCode(err error, code domerrors.Code) bool {
	var de *domerrors.Error
	if stderrors.As(err, &de) {
		return de.Code == code
	}
	return false
}
