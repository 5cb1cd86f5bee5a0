package errors

import (
	"errors"
	"fmt"
)

var (
	ErrMalformedBook        = errors.New("malformed book document")
	ErrMissingLanguage      = errors.New("missing language metadata")
	ErrUnrecognizedLanguage = errors.New("unrecognized language identifier")
	ErrInvalidWord          = errors.New("word is not a valid file name")
	ErrWriteFailed          = errors.New("posting write failed")
	ErrVerifyFailed         = errors.New("posting verification failed")
)

// Stage names the pipeline step a translation failed in.
type Stage string

const (
	StageLoad    Stage = "load"
	StageResolve Stage = "resolve"
	StageBuild   Stage = "build"
	StageWrite   Stage = "write"
	StageVerify  Stage = "verify"
)

type IndexError struct {
	Translation string
	Stage       Stage
	Err         error
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("translation %s: %s: %s", e.Translation, e.Stage, e.Err.Error())
}

func (e *IndexError) Unwrap() error {
	return e.Err
}

func New(translation string, stage Stage, err error) *IndexError {
	return &IndexError{
		Translation: translation,
		Stage:       stage,
		Err:         err,
	}
}

func Newf(translation string, stage Stage, sentinel error, format string, args ...any) *IndexError {
	return &IndexError{
		Translation: translation,
		Stage:       stage,
		Err:         fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(format, args...)),
	}
}

// StageOf returns the stage recorded in err, or "" when err carries none.
func StageOf(err error) Stage {
	var idxErr *IndexError
	if errors.As(err, &idxErr) {
		return idxErr.Stage
	}
	return ""
}

func Is(err, target error) bool {
	return errors.Is(err, target)
}
