package vault_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	errs "github.com/attachly/go-attach-client/internal/errors"
	"github.com/attachly/go-attach-client/vault"
)

func TestSealedCodecRoundTrip(t *testing.T) {
	codec := vault.NewSealedCodec("passphrase")

	sealed, err := codec.Encode("hunter2")
	require.NoError(t, err)
	require.NotEqual(t, "hunter2", sealed)

	opened, err := codec.Decode(sealed)
	require.NoError(t, err)
	require.Equal(t, "hunter2", opened)
}

func TestSealedCodecFreshSaltPerEncode(t *testing.T) {
	codec := vault.NewSealedCodec("passphrase")

	first, err := codec.Encode("hunter2")
	require.NoError(t, err)
	second, err := codec.Encode("hunter2")
	require.NoError(t, err)
	require.NotEqual(t, first, second)
}

func TestSealedCodecWrongPassphrase(t *testing.T) {
	sealed, err := vault.NewSealedCodec("right").Encode("hunter2")
	require.NoError(t, err)

	_, err = vault.NewSealedCodec("wrong").Decode(sealed)
	require.ErrorIs(t, err, errs.ErrSealedPayload)
}

func TestSealedCodecRejectsGarbage(t *testing.T) {
	codec := vault.NewSealedCodec("passphrase")

	_, err := codec.Decode("not-base64!!!")
	require.ErrorIs(t, err, errs.ErrSealedPayload)

	_, err = codec.Decode("dG9vLXNob3J0")
	require.ErrorIs(t, err, errs.ErrSealedPayload)
}

func TestPlainCodecPassthrough(t *testing.T) {
	codec := vault.PlainCodec{}

	encoded, err := codec.Encode("hunter2")
	require.NoError(t, err)
	require.Equal(t, "hunter2", encoded)

	decoded, err := codec.Decode("hunter2")
	require.NoError(t, err)
	require.Equal(t, "hunter2", decoded)
}
