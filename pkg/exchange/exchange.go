package exchange

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/passguard/passguard/pkg/crypto"
)

// Write serializes records into an encrypted export stream:
//
//	magic | header len | header JSON | ciphertext len | ciphertext | HMAC
//
// The passphrase is stretched with a fresh salt recorded in the header;
// the HMAC trailer covers everything before it, so both the metadata
// and the ciphertext are tamper-evident.
func Write(w io.Writer, passphrase []byte, records []Record) error {
	salt, err := crypto.NewSalt()
	if err != nil {
		return fmt.Errorf("failed to generate export salt: %w", err)
	}

	encKey, macKey, err := deriveKeys(passphrase, salt)
	if err != nil {
		return err
	}
	defer crypto.SecureWipe(encKey)
	defer crypto.SecureWipe(macKey)

	plaintext, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("failed to marshal records: %w", err)
	}
	defer crypto.SecureWipe(plaintext)

	ciphertext, err := crypto.Seal(encKey, plaintext)
	if err != nil {
		return fmt.Errorf("failed to encrypt records: %w", err)
	}

	header := &Header{
		Version:   FormatVersion,
		CreatedAt: time.Now().UTC(),
		KDFParams: KDFParams{
			Salt:        salt,
			Memory:      crypto.Argon2Memory,
			Iterations:  crypto.Argon2Time,
			Parallelism: crypto.Argon2Threads,
		},
		RecordCount: len(records),
	}

	// Build the whole file in memory so the HMAC can cover it.
	var buf bytes.Buffer
	if err := WriteHeader(&buf, header); err != nil {
		return err
	}
	if err := binary.Write(&buf, binary.BigEndian, uint32(len(ciphertext))); err != nil {
		return fmt.Errorf("failed to write ciphertext length: %w", err)
	}
	if _, err := buf.Write(ciphertext); err != nil {
		return fmt.Errorf("failed to write ciphertext: %w", err)
	}

	mac := computeHMAC(buf.Bytes(), macKey)
	if _, err := buf.Write(mac); err != nil {
		return fmt.Errorf("failed to write HMAC: %w", err)
	}

	if _, err := w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("failed to write export: %w", err)
	}
	return nil
}

// Read parses and decrypts an export stream produced by Write. The
// HMAC is verified before decryption is attempted.
func Read(r io.Reader, passphrase []byte) ([]Record, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read export: %w", err)
	}
	if len(data) < HMACLength {
		return nil, ErrInvalidMagic
	}

	body := data[:len(data)-HMACLength]
	mac := data[len(data)-HMACLength:]

	br := bytes.NewReader(body)
	header, err := ReadHeader(br)
	if err != nil {
		return nil, err
	}

	encKey, macKey, err := deriveKeys(passphrase, header.KDFParams.Salt)
	if err != nil {
		return nil, err
	}
	defer crypto.SecureWipe(encKey)
	defer crypto.SecureWipe(macKey)

	if !verifyHMAC(body, mac, macKey) {
		return nil, ErrIntegrityFailed
	}

	var ciphertextLen uint32
	if err := binary.Read(br, binary.BigEndian, &ciphertextLen); err != nil {
		return nil, fmt.Errorf("failed to read ciphertext length: %w", err)
	}
	ciphertext := make([]byte, ciphertextLen)
	if _, err := io.ReadFull(br, ciphertext); err != nil {
		return nil, fmt.Errorf("failed to read ciphertext: %w", err)
	}

	plaintext, err := crypto.Open(encKey, ciphertext)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	defer crypto.SecureWipe(plaintext)

	var records []Record
	if err := json.Unmarshal(plaintext, &records); err != nil {
		return nil, fmt.Errorf("failed to unmarshal records: %w", err)
	}
	if header.RecordCount != len(records) {
		return nil, fmt.Errorf("record count mismatch: header says %d, payload has %d",
			header.RecordCount, len(records))
	}
	return records, nil
}
