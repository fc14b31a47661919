package vault

// Codec encodes the cached secret for storage. The flow never sees the
// codec; swapping PlainCodec for SealedCodec (or an OS keychain-backed
// implementation) changes nothing above the vault.
type Codec interface {
	Encode(secret string) (string, error)
	Decode(stored string) (string, error)
}

// PlainCodec stores the secret as-is. This preserves the behavior of
// the original surfaces, which cache the organization secret unencrypted
// as a deliberate usability trade-off for trusted devices.
type PlainCodec struct{}

func (PlainCodec) Encode(secret string) (string, error) { return secret, nil }
func (PlainCodec) Decode(stored string) (string, error) { return stored, nil }
