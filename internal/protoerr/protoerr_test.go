package protoerr_test

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/blukai/blockparty/internal/protoerr"
	"github.com/matryer/is"
)

func TestClassSurvivesWrapping(t *testing.T) {
	is := is.New(t)

	err := fmt.Errorf("could not decode: %w", protoerr.New(protoerr.ErrFraming, "", io.ErrUnexpectedEOF))
	is.True(errors.Is(err, protoerr.ErrFraming))
	is.True(errors.Is(err, io.ErrUnexpectedEOF))
	is.True(protoerr.Fatal(err))
}

func TestUnknownOpcodeIsNotFatal(t *testing.T) {
	is := is.New(t)

	is.True(!protoerr.Fatal(nil))
	is.True(!protoerr.Fatal(protoerr.Newf(protoerr.ErrUnknownOpcode, "", "opcode 0x%02x", 0x7f)))
	is.True(protoerr.Fatal(errors.New("boom")))
}

func TestReason(t *testing.T) {
	is := is.New(t)

	is.Equal(protoerr.Reason(protoerr.New(protoerr.ErrAuth, "Nope", nil)), "Nope")
	is.Equal(protoerr.Reason(protoerr.New(protoerr.ErrAuth, "", nil)), "Failed to verify username!")
	is.Equal(protoerr.Reason(protoerr.ErrProxyHeader), "Invalid proxy data")
	is.Equal(protoerr.Reason(protoerr.ErrStateViolation), "Unexpected packet")
	is.Equal(protoerr.Reason(protoerr.ErrTimeout), "Timed out")
	// internals never leak
	is.Equal(protoerr.Reason(errors.New("secret detail")), "Internal protocol error")
}
