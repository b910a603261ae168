package encryption

import (
	"bytes"
	"fmt"
	"io"

	"bwkp-go/internal/bwkp"
)

// testMagic marks data "encrypted" by TestEncryptor.
var testMagic = []byte("BWKPTEST")

// TestEncryptor frames data with a fixed marker instead of encrypting it.
// Output differs from the input and round-trips without keys.
type TestEncryptor struct {
	passphrase string
}

var _ bwkp.Encryptor = (*TestEncryptor)(nil)

func NewTestEncryptor() *TestEncryptor {
	return &TestEncryptor{}
}

// Setup records passphrase so Unlock can reject a different one.
func (e *TestEncryptor) Setup(passphrase string) error {
	e.passphrase = passphrase
	return nil
}

func (e *TestEncryptor) Encrypt(r io.Reader, w io.Writer) error {
	if _, err := w.Write(testMagic); err != nil {
		return fmt.Errorf("writing marker: %w", err)
	}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("copying data: %w", err)
	}
	return nil
}

func (e *TestEncryptor) Unlock(passphrase string) (bwkp.DecryptionContext, error) {
	if e.passphrase != "" && passphrase != e.passphrase {
		return nil, fmt.Errorf("wrong passphrase")
	}
	return TestDecryptionContext{}, nil
}

func (e *TestEncryptor) IsConfigured() bool { return true }

// TestDecryptionContext strips the TestEncryptor marker.
type TestDecryptionContext struct{}

var _ bwkp.DecryptionContext = TestDecryptionContext{}

func (TestDecryptionContext) Decrypt(r io.Reader, w io.Writer) error {
	magic := make([]byte, len(testMagic))
	if _, err := io.ReadFull(r, magic); err != nil {
		return fmt.Errorf("reading marker: %w", err)
	}
	if !bytes.Equal(magic, testMagic) {
		return fmt.Errorf("data was not written by the test encryptor")
	}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("copying data: %w", err)
	}
	return nil
}
