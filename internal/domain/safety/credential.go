package safety

import "time"

// CredentialStatus is the validity status of an issued tourist ID.
type CredentialStatus string

const (
	// CredentialActive marks a usable ID.
	CredentialActive CredentialStatus = "active"
	// CredentialExpired marks an ID that can no longer be used.
	CredentialExpired CredentialStatus = "expired"
)

// Credential is a tourist ID. It is created on issue, only its Status ever
// changes afterwards, and a reset supersedes it with a fresh instance.
type Credential struct {
	HolderName       string
	IssuedAt         time.Time
	ValidFrom        time.Time
	ValidTo          time.Time
	Status           CredentialStatus
	KYCType          string
	KYCNumber        string
	EmergencyContact string
	MedicalInfo      string
	// BlockID and BlockHash reference the ledger block the ID was recorded in.
	BlockID   uint64
	BlockHash string
}

// Clone returns a copy of the credential.
func (c *Credential) Clone() *Credential {
	if c == nil {
		return nil
	}

	cloned := *c

	return &cloned
}
