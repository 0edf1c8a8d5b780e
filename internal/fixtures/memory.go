// Package fixtures provides an in-memory UnitOfWork for service tests.
// One mutex serializes transactions, so concurrent Do calls observe the
// same isolation the row-locked store gives: a whole transaction commits
// or rolls back before the next one starts.
package fixtures

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/buildrail/escrow/pkg/domain/common"
	disputedomain "github.com/buildrail/escrow/pkg/domain/dispute"
	escrowdomain "github.com/buildrail/escrow/pkg/domain/escrow"
	milestonedomain "github.com/buildrail/escrow/pkg/domain/milestone"
	payoutdomain "github.com/buildrail/escrow/pkg/domain/payout"
	projectdomain "github.com/buildrail/escrow/pkg/domain/project"
	"github.com/buildrail/escrow/pkg/dto"
	"github.com/buildrail/escrow/pkg/repository"
	"github.com/google/uuid"
)

type state struct {
	seq int64

	projects     map[uuid.UUID]dto.ProjectRead
	accounts     map[uuid.UUID]dto.AccountRead
	transactions []dto.TransactionRead
	txByIdemKey  map[string]uuid.UUID
	releaseKeys  map[string]uuid.UUID
	milestones   map[uuid.UUID]dto.MilestoneRead
	msOrder      []uuid.UUID
	disputes     map[uuid.UUID]dto.DisputeRead
	dspOrder     []uuid.UUID
	payouts      map[uuid.UUID]dto.PayoutRead
	audits       []dto.AuditRead
}

func newState() *state {
	return &state{
		projects:    make(map[uuid.UUID]dto.ProjectRead),
		accounts:    make(map[uuid.UUID]dto.AccountRead),
		txByIdemKey: make(map[string]uuid.UUID),
		releaseKeys: make(map[string]uuid.UUID),
		milestones:  make(map[uuid.UUID]dto.MilestoneRead),
		disputes:    make(map[uuid.UUID]dto.DisputeRead),
		payouts:     make(map[uuid.UUID]dto.PayoutRead),
	}
}

func (s *state) clone() *state {
	c := newState()
	c.seq = s.seq
	for k, v := range s.projects {
		c.projects[k] = v
	}
	for k, v := range s.accounts {
		c.accounts[k] = v
	}
	c.transactions = append(c.transactions, s.transactions...)
	for k, v := range s.txByIdemKey {
		c.txByIdemKey[k] = v
	}
	for k, v := range s.releaseKeys {
		c.releaseKeys[k] = v
	}
	for k, v := range s.milestones {
		c.milestones[k] = v
	}
	c.msOrder = append(c.msOrder, s.msOrder...)
	for k, v := range s.disputes {
		c.disputes[k] = v
	}
	c.dspOrder = append(c.dspOrder, s.dspOrder...)
	for k, v := range s.payouts {
		c.payouts[k] = v
	}
	c.audits = append(c.audits, s.audits...)
	return c
}

// now returns a strictly increasing timestamp so insertion order survives
// sorting by time.
func (s *state) now() time.Time {
	s.seq++
	return time.Unix(0, s.seq)
}

// MemoryUoW is an in-memory repository.UnitOfWork. A Do call clones the
// committed state, runs fn against the clone and swaps it in only when fn
// returns nil, so rollback behavior matches the real store.
type MemoryUoW struct {
	mu        sync.Mutex
	committed *state
	tx        *state
}

// NewMemoryUoW creates an empty in-memory unit of work.
func NewMemoryUoW() *MemoryUoW {
	return &MemoryUoW{committed: newState()}
}

func (u *MemoryUoW) Do(ctx context.Context, fn func(uow repository.UnitOfWork) error) error {
	if u.tx != nil {
		return fn(u)
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	work := &MemoryUoW{committed: u.committed, tx: u.committed.clone()}
	if err := fn(work); err != nil {
		return err
	}
	u.committed = work.tx
	return nil
}

func (u *MemoryUoW) session() (*state, error) {
	if u.tx == nil {
		return nil, fmt.Errorf("repository requested outside a transaction")
	}
	return u.tx, nil
}

func (u *MemoryUoW) ProjectRepository() (repository.ProjectRepository, error) {
	s, err := u.session()
	if err != nil {
		return nil, err
	}
	return &memProjectRepo{s: s}, nil
}

func (u *MemoryUoW) EscrowAccountRepository() (repository.EscrowAccountRepository, error) {
	s, err := u.session()
	if err != nil {
		return nil, err
	}
	return &memAccountRepo{s: s}, nil
}

func (u *MemoryUoW) TransactionRepository() (repository.TransactionRepository, error) {
	s, err := u.session()
	if err != nil {
		return nil, err
	}
	return &memTransactionRepo{s: s}, nil
}

func (u *MemoryUoW) MilestoneRepository() (repository.MilestoneRepository, error) {
	s, err := u.session()
	if err != nil {
		return nil, err
	}
	return &memMilestoneRepo{s: s}, nil
}

func (u *MemoryUoW) DisputeRepository() (repository.DisputeRepository, error) {
	s, err := u.session()
	if err != nil {
		return nil, err
	}
	return &memDisputeRepo{s: s}, nil
}

func (u *MemoryUoW) PayoutRepository() (repository.PayoutRepository, error) {
	s, err := u.session()
	if err != nil {
		return nil, err
	}
	return &memPayoutRepo{s: s}, nil
}

func (u *MemoryUoW) AuditRepository() (repository.AuditRepository, error) {
	s, err := u.session()
	if err != nil {
		return nil, err
	}
	return &memAuditRepo{s: s}, nil
}

var _ repository.UnitOfWork = (*MemoryUoW)(nil)

type memProjectRepo struct {
	s *state
}

func (r *memProjectRepo) Create(ctx context.Context, create dto.ProjectCreate) error {
	if _, ok := r.s.projects[create.ID]; ok {
		return common.ErrDuplicateOperation
	}
	now := r.s.now()
	r.s.projects[create.ID] = dto.ProjectRead{
		ID:        create.ID,
		OwnerID:   create.OwnerID,
		Title:     create.Title,
		Currency:  create.Currency,
		Status:    create.Status,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return nil
}

func (r *memProjectRepo) Get(ctx context.Context, id uuid.UUID) (*dto.ProjectRead, error) {
	row, ok := r.s.projects[id]
	if !ok {
		return nil, projectdomain.ErrProjectNotFound
	}
	return &row, nil
}

func (r *memProjectRepo) Update(ctx context.Context, id uuid.UUID, update dto.ProjectUpdate) error {
	row, ok := r.s.projects[id]
	if !ok {
		return projectdomain.ErrProjectNotFound
	}
	if update.ContractorID != nil {
		row.ContractorID = update.ContractorID
	}
	if update.Status != nil {
		row.Status = *update.Status
	}
	row.UpdatedAt = r.s.now()
	r.s.projects[id] = row
	return nil
}

type memAccountRepo struct {
	s *state
}

func (r *memAccountRepo) Create(ctx context.Context, create dto.AccountCreate) error {
	if _, ok := r.s.accounts[create.ID]; ok {
		return common.ErrDuplicateOperation
	}
	for _, a := range r.s.accounts {
		if a.ProjectID == create.ProjectID {
			return common.ErrDuplicateOperation
		}
	}
	now := r.s.now()
	r.s.accounts[create.ID] = dto.AccountRead{
		ID:        create.ID,
		ProjectID: create.ProjectID,
		Currency:  create.Currency,
		Status:    create.Status,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return nil
}

func (r *memAccountRepo) Get(ctx context.Context, id uuid.UUID) (*dto.AccountRead, error) {
	row, ok := r.s.accounts[id]
	if !ok {
		return nil, escrowdomain.ErrAccountNotFound
	}
	return &row, nil
}

func (r *memAccountRepo) GetByProject(ctx context.Context, projectID uuid.UUID) (*dto.AccountRead, error) {
	for _, a := range r.s.accounts {
		if a.ProjectID == projectID {
			row := a
			return &row, nil
		}
	}
	return nil, escrowdomain.ErrAccountNotFound
}

// GetForUpdate is Get here; the unit-of-work mutex already serializes
// whole transactions.
func (r *memAccountRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*dto.AccountRead, error) {
	return r.Get(ctx, id)
}

func (r *memAccountRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	row, ok := r.s.accounts[id]
	if !ok {
		return escrowdomain.ErrAccountNotFound
	}
	row.Status = status
	row.UpdatedAt = r.s.now()
	r.s.accounts[id] = row
	return nil
}

type memTransactionRepo struct {
	s *state
}

func (r *memTransactionRepo) Append(ctx context.Context, create dto.TransactionCreate) error {
	if _, ok := r.s.txByIdemKey[create.IdempotencyKey]; ok {
		return common.ErrDuplicateOperation
	}
	if create.Type == string(escrowdomain.TxRelease) && create.MilestoneID != nil {
		key := fmt.Sprintf("%s:%s", create.AccountID, *create.MilestoneID)
		if _, ok := r.s.releaseKeys[key]; ok {
			return escrowdomain.ErrAlreadyReleased
		}
		r.s.releaseKeys[key] = create.ID
	}
	r.s.txByIdemKey[create.IdempotencyKey] = create.ID
	r.s.transactions = append(r.s.transactions, dto.TransactionRead{
		ID:             create.ID,
		AccountID:      create.AccountID,
		Type:           create.Type,
		Amount:         create.Amount,
		Currency:       create.Currency,
		MilestoneID:    create.MilestoneID,
		Reason:         create.Reason,
		IdempotencyKey: create.IdempotencyKey,
		CreatedAt:      r.s.now(),
	})
	return nil
}

func (r *memTransactionRepo) Get(ctx context.Context, id uuid.UUID) (*dto.TransactionRead, error) {
	for i := range r.s.transactions {
		if r.s.transactions[i].ID == id {
			row := r.s.transactions[i]
			return &row, nil
		}
	}
	return nil, common.ErrNotFound
}

func (r *memTransactionRepo) ListByAccount(ctx context.Context, accountID uuid.UUID) ([]*dto.TransactionRead, error) {
	var result []*dto.TransactionRead
	for i := range r.s.transactions {
		if r.s.transactions[i].AccountID == accountID {
			row := r.s.transactions[i]
			result = append(result, &row)
		}
	}
	return result, nil
}

func (r *memTransactionRepo) GetByIdempotencyKey(ctx context.Context, key string) (*dto.TransactionRead, error) {
	id, ok := r.s.txByIdemKey[key]
	if !ok {
		return nil, common.ErrNotFound
	}
	return r.Get(ctx, id)
}

func (r *memTransactionRepo) GetReleaseForMilestone(ctx context.Context, accountID, milestoneID uuid.UUID) (*dto.TransactionRead, error) {
	id, ok := r.s.releaseKeys[fmt.Sprintf("%s:%s", accountID, milestoneID)]
	if !ok {
		return nil, common.ErrNotFound
	}
	return r.Get(ctx, id)
}

type memMilestoneRepo struct {
	s *state
}

func (r *memMilestoneRepo) Create(ctx context.Context, create dto.MilestoneCreate) error {
	if _, ok := r.s.milestones[create.ID]; ok {
		return common.ErrDuplicateOperation
	}
	now := r.s.now()
	r.s.milestones[create.ID] = dto.MilestoneRead{
		ID:        create.ID,
		ProjectID: create.ProjectID,
		Title:     create.Title,
		Amount:    create.Amount,
		Currency:  create.Currency,
		DueDate:   create.DueDate,
		Status:    create.Status,
		CreatedAt: now,
		UpdatedAt: now,
	}
	r.s.msOrder = append(r.s.msOrder, create.ID)
	return nil
}

func (r *memMilestoneRepo) Get(ctx context.Context, id uuid.UUID) (*dto.MilestoneRead, error) {
	row, ok := r.s.milestones[id]
	if !ok {
		return nil, milestonedomain.ErrMilestoneNotFound
	}
	return &row, nil
}

func (r *memMilestoneRepo) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*dto.MilestoneRead, error) {
	var result []*dto.MilestoneRead
	for _, id := range r.s.msOrder {
		row := r.s.milestones[id]
		if row.ProjectID == projectID {
			row := row
			result = append(result, &row)
		}
	}
	return result, nil
}

func (r *memMilestoneRepo) Update(ctx context.Context, id uuid.UUID, update dto.MilestoneUpdate) error {
	row, ok := r.s.milestones[id]
	if !ok {
		return milestonedomain.ErrMilestoneNotFound
	}
	if update.Status != nil {
		row.Status = *update.Status
	}
	row.UpdatedAt = r.s.now()
	r.s.milestones[id] = row
	return nil
}

type memDisputeRepo struct {
	s *state
}

func (r *memDisputeRepo) Create(ctx context.Context, create dto.DisputeCreate) error {
	if _, ok := r.s.disputes[create.ID]; ok {
		return common.ErrDuplicateOperation
	}
	r.s.disputes[create.ID] = dto.DisputeRead{
		ID:        create.ID,
		ProjectID: create.ProjectID,
		RaisedBy:  create.RaisedBy,
		Reason:    create.Reason,
		Status:    create.Status,
		OpenedAt:  r.s.now(),
	}
	r.s.dspOrder = append(r.s.dspOrder, create.ID)
	return nil
}

func (r *memDisputeRepo) Get(ctx context.Context, id uuid.UUID) (*dto.DisputeRead, error) {
	row, ok := r.s.disputes[id]
	if !ok {
		return nil, disputedomain.ErrDisputeNotFound
	}
	return &row, nil
}

func (r *memDisputeRepo) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*dto.DisputeRead, error) {
	var result []*dto.DisputeRead
	for _, id := range r.s.dspOrder {
		row := r.s.disputes[id]
		if row.ProjectID == projectID {
			row := row
			result = append(result, &row)
		}
	}
	return result, nil
}

func (r *memDisputeRepo) AnyBlocking(ctx context.Context, projectID uuid.UUID) (bool, error) {
	for _, d := range r.s.disputes {
		if d.ProjectID != projectID {
			continue
		}
		if d.Status == string(disputedomain.StatusOpen) || d.Status == string(disputedomain.StatusUnderReview) {
			return true, nil
		}
	}
	return false, nil
}

func (r *memDisputeRepo) Update(ctx context.Context, id uuid.UUID, update dto.DisputeUpdate) error {
	row, ok := r.s.disputes[id]
	if !ok {
		return disputedomain.ErrDisputeNotFound
	}
	if update.Status != nil {
		row.Status = *update.Status
	}
	if update.ResolvedAt != nil {
		row.ResolvedAt = update.ResolvedAt
	}
	r.s.disputes[id] = row
	return nil
}

type memPayoutRepo struct {
	s *state
}

func (r *memPayoutRepo) Create(ctx context.Context, create dto.PayoutCreate) error {
	if _, ok := r.s.payouts[create.ID]; ok {
		return common.ErrDuplicateOperation
	}
	if create.ReleaseTransactionID != nil {
		for _, p := range r.s.payouts {
			if p.ReleaseTransactionID != nil && *p.ReleaseTransactionID == *create.ReleaseTransactionID {
				return common.ErrDuplicateOperation
			}
		}
	}
	now := r.s.now()
	r.s.payouts[create.ID] = dto.PayoutRead{
		ID:                   create.ID,
		ContractorID:         create.ContractorID,
		ReleaseTransactionID: create.ReleaseTransactionID,
		Amount:               create.Amount,
		Currency:             create.Currency,
		BankAccount:          create.BankAccount,
		Status:               create.Status,
		ScheduledDate:        create.ScheduledDate,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	return nil
}

func (r *memPayoutRepo) Get(ctx context.Context, id uuid.UUID) (*dto.PayoutRead, error) {
	row, ok := r.s.payouts[id]
	if !ok {
		return nil, payoutdomain.ErrPayoutNotFound
	}
	return &row, nil
}

func (r *memPayoutRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*dto.PayoutRead, error) {
	return r.Get(ctx, id)
}

func (r *memPayoutRepo) GetByReleaseTransaction(ctx context.Context, releaseTxID uuid.UUID) (*dto.PayoutRead, error) {
	for _, p := range r.s.payouts {
		if p.ReleaseTransactionID != nil && *p.ReleaseTransactionID == releaseTxID {
			row := p
			return &row, nil
		}
	}
	return nil, payoutdomain.ErrPayoutNotFound
}

func (r *memPayoutRepo) ListByStatus(ctx context.Context, status string, limit int) ([]*dto.PayoutRead, error) {
	var result []*dto.PayoutRead
	for _, p := range r.s.payouts {
		if p.Status == status {
			row := p
			result = append(result, &row)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].ScheduledDate.Equal(result[j].ScheduledDate) {
			return result[i].ScheduledDate.Before(result[j].ScheduledDate)
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (r *memPayoutRepo) Update(ctx context.Context, id uuid.UUID, update dto.PayoutUpdate) error {
	row, ok := r.s.payouts[id]
	if !ok {
		return payoutdomain.ErrPayoutNotFound
	}
	if update.Status != nil {
		row.Status = *update.Status
	}
	if update.Attempts != nil {
		row.Attempts = *update.Attempts
	}
	if update.LastError != nil {
		row.LastError = *update.LastError
	}
	if update.ProviderRef != nil {
		row.ProviderRef = *update.ProviderRef
	}
	if update.ProcessedAt != nil && row.ProcessedAt == nil {
		at := *update.ProcessedAt
		row.ProcessedAt = &at
	}
	row.UpdatedAt = r.s.now()
	r.s.payouts[id] = row
	return nil
}

type memAuditRepo struct {
	s *state
}

func (r *memAuditRepo) Append(ctx context.Context, create dto.AuditCreate) error {
	at := create.At
	if at.IsZero() {
		at = r.s.now()
	}
	r.s.audits = append(r.s.audits, dto.AuditRead{
		ID:        create.ID,
		ProjectID: create.ProjectID,
		Entity:    create.Entity,
		EntityID:  create.EntityID,
		Actor:     create.Actor,
		FromState: create.FromState,
		ToState:   create.ToState,
		Note:      create.Note,
		At:        at,
	})
	return nil
}

func (r *memAuditRepo) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*dto.AuditRead, error) {
	var result []*dto.AuditRead
	for i := range r.s.audits {
		if r.s.audits[i].ProjectID == projectID {
			row := r.s.audits[i]
			result = append(result, &row)
		}
	}
	return result, nil
}
