package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestIndexErrorWrapping(t *testing.T) {
	err := Newf("eng_kjv", StageLoad, ErrMalformedBook, "book %s has no chapters", "gen")
	wrapped := fmt.Errorf("running corpus: %w", err)

	if !Is(wrapped, ErrMalformedBook) {
		t.Error("errors.Is should see the sentinel through IndexError")
	}
	if got := StageOf(wrapped); got != StageLoad {
		t.Errorf("StageOf = %q, want %q", got, StageLoad)
	}
	var idxErr *IndexError
	if !errors.As(wrapped, &idxErr) || idxErr.Translation != "eng_kjv" {
		t.Errorf("errors.As did not recover translation: %+v", idxErr)
	}
	want := "translation eng_kjv: load: malformed book document: book gen has no chapters"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestStageOfPlainError(t *testing.T) {
	if got := StageOf(fmt.Errorf("boom")); got != "" {
		t.Errorf("StageOf(plain) = %q, want empty", got)
	}
}
