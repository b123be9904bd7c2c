package dohcommon

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToNSSOutcome(t *testing.T) {
	assert.Equal(t, NSSNotFound, ToNSSOutcome(KindEmptyReply))
	assert.Equal(t, NSSTryAgain, ToNSSOutcome(KindUpstreamError))
	assert.Equal(t, NSSUnavail, ToNSSOutcome(KindDNSErrorReply))
	assert.Equal(t, NSSUnavail, ToNSSOutcome(KindDatabaseError))
}

func TestKindOf_UnwrapsWrappedError(t *testing.T) {
	base := New(KindUpstreamError, errors.New("boom"))
	wrapped := fmt.Errorf("context: %w", base)
	assert.Equal(t, KindUpstreamError, KindOf(wrapped))
}

func TestKindOf_DefaultsToDatabaseError(t *testing.T) {
	assert.Equal(t, KindDatabaseError, KindOf(errors.New("unclassified")))
}

func TestError_MessageIncludesCause(t *testing.T) {
	err := New(KindDNSErrorReply, errors.New("bad status"))
	assert.Contains(t, err.Error(), "dns-error-reply")
	assert.Contains(t, err.Error(), "bad status")
}
