package scenario

import (
	"context"

	"github.com/oshokin/tourist-safety/internal/config"
	"github.com/oshokin/tourist-safety/internal/domain/safety"
	"github.com/oshokin/tourist-safety/internal/machine"
	"github.com/oshokin/tourist-safety/internal/scheduler"
)

// Credential states and triggers.
const (
	StateUnissued machine.State = "Unissued"
	StateIssuing  machine.State = "Issuing"
	StateIssued   machine.State = "Issued"
	StateExpired  machine.State = "Expired"

	TriggerIssue  machine.Trigger = "issue"
	TriggerExpire machine.Trigger = "expire"
)

// CredentialTable returns the credential transition table. Issuing is left
// automatically once the issue cascade has fully fired.
func CredentialTable(cfg config.CredentialConfig) machine.Table {
	return machine.Table{
		Name:    CredentialName,
		Initial: StateUnissued,
		Edges: []machine.Edge{
			{From: StateUnissued, Trigger: TriggerIssue, To: StateIssuing, Cascade: Steps(cfg.OnIssue), Then: StateIssued},
			{From: StateIssued, Trigger: TriggerExpire, To: StateExpired, Cascade: Steps(cfg.OnExpire)},
		},
	}
}

// CredentialLifecycle issues and expires one tourist ID at a time.
type CredentialLifecycle struct {
	base

	cfg        config.CredentialConfig
	credential *safety.Credential
}

// NewCredential creates the credential scenario in state Unissued.
func NewCredential(ctx context.Context, cfg config.CredentialConfig, queue *scheduler.Queue, l Listeners) (*CredentialLifecycle, error) {
	c := &CredentialLifecycle{cfg: cfg}

	b, err := newBase(ctx, CredentialTable(cfg), queue, l, c.onTransition)
	if err != nil {
		return nil, err
	}

	c.base = b

	return c, nil
}

// Issue starts issuing a fresh ID.
func (c *CredentialLifecycle) Issue(actor *safety.Actor) machine.Result {
	return c.Fire(TriggerIssue, actor)
}

// Expire marks the issued ID as expired.
func (c *CredentialLifecycle) Expire(actor *safety.Actor) machine.Result {
	return c.Fire(TriggerExpire, actor)
}

// Credential returns a copy of the current ID, or nil.
func (c *CredentialLifecycle) Credential() *safety.Credential {
	return c.credential.Clone()
}

// Snapshot returns a read-only view of the scenario.
func (c *CredentialLifecycle) Snapshot() Snapshot {
	s := c.snapshot()
	s.Credential = c.credential.Clone()

	return s
}

func (c *CredentialLifecycle) onTransition(t machine.Transition) {
	switch t.To {
	case StateIssuing:
		c.credential = &safety.Credential{
			HolderName:       c.cfg.Holder,
			IssuedAt:         t.At,
			ValidFrom:        c.cfg.ValidFrom,
			ValidTo:          c.cfg.ValidTo,
			Status:           safety.CredentialActive,
			KYCType:          c.cfg.KYCType,
			KYCNumber:        c.cfg.KYCNumber,
			EmergencyContact: c.cfg.EmergencyContact,
			MedicalInfo:      c.cfg.MedicalInfo,
			BlockID:          c.cfg.BlockID,
			BlockHash:        c.cfg.BlockHash,
		}
	case StateExpired:
		if c.credential != nil {
			c.credential.Status = safety.CredentialExpired
		}
	case StateUnissued:
		c.credential = nil
	}
}
