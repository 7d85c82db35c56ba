package redemption

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nft-marketplace/backend/internal/metrics"
	"github.com/nft-marketplace/backend/internal/models"
	"github.com/nft-marketplace/backend/internal/txexec"
	"go.uber.org/zap"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Redeemer submits the redeem transaction. *txexec.Executor satisfies it.
type Redeemer interface {
	Execute(ctx context.Context, action txexec.Action, params txexec.Params) (txexec.Result, error)
}

// Persister stores the delivery details off-chain once redemption confirms.
type Persister interface {
	PersistRedemptionDetails(ctx context.Context, record models.RedemptionRecord) error
}

type Deps struct {
	Redeemer  Redeemer
	Persister Persister
	Log       *zap.Logger
	Metrics   *metrics.Market
}

// Workflow walks one listing through size, shipping, payment and
// confirmation. Input is kept in memory until the redeem transaction
// confirms.
type Workflow struct {
	deps Deps

	mu         sync.Mutex
	draft      models.RedemptionDraft
	confirming bool
	pending    *models.RedemptionRecord
	result     txexec.Result
}

// Begin opens a workflow for listing on behalf of address. It refuses
// listings that are already redeemed, unsold, or bought by someone else.
func Begin(listing models.Listing, address string, deps Deps) (*Workflow, error) {
	if err := CheckEligible(listing, address); err != nil {
		return nil, err
	}
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}
	now := time.Now().UTC()
	w := &Workflow{
		deps: deps,
		draft: models.RedemptionDraft{
			ID:        uuid.New(),
			ListingID: listing.ID,
			Owner:     models.NormalizeAddress(address),
			Step:      models.StepSizeSelect,
			CreatedAt: now,
			UpdatedAt: now,
		},
	}
	deps.Metrics.ObserveRedemptionStep(models.StepSizeSelect)
	return w, nil
}

// CheckEligible reports why listing cannot be redeemed by address, if it
// cannot.
func CheckEligible(listing models.Listing, address string) error {
	switch {
	case listing.Redeemed:
		return fmt.Errorf("%w: listing %d has already been redeemed", models.ErrNotEligible, listing.ID)
	case models.NormalizeAddress(address) == "":
		return fmt.Errorf("%w: connect the buying wallet first", models.ErrNotEligible)
	case !listing.Sold:
		return fmt.Errorf("%w: listing %d has not been sold", models.ErrNotEligible, listing.ID)
	case !listing.OwnedBy(address):
		return fmt.Errorf("%w: only the buyer of listing %d can redeem it", models.ErrNotEligible, listing.ID)
	}
	return nil
}

func (w *Workflow) ID() uuid.UUID {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.draft.ID
}

// Draft returns a copy of the current state.
func (w *Workflow) Draft() models.RedemptionDraft {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.draft
}

func (w *Workflow) SelectSize(size string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.requireStep(models.StepSizeSelect); err != nil {
		return err
	}
	size = strings.ToUpper(strings.TrimSpace(size))
	if !models.IsValidSize(size) {
		return fmt.Errorf("%w: size %q is not one of %s", models.ErrValidationFailed, size, strings.Join(models.Sizes, ", "))
	}
	w.draft.Size = strings.Clone(size)
	w.touch()
	return nil
}

// SetShipping records the address as typed. It is validated on Next.
func (w *Workflow) SetShipping(addr models.ShippingAddress) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.requireStep(models.StepShipping); err != nil {
		return err
	}
	w.draft.Shipping = trimShipping(addr)
	w.touch()
	return nil
}

// Next advances one step when the current step's input is complete.
func (w *Workflow) Next() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.confirming {
		return fmt.Errorf("%w: confirmation in progress", models.ErrValidationFailed)
	}

	var to string
	switch w.draft.Step {
	case models.StepSizeSelect:
		if !models.IsValidSize(w.draft.Size) {
			return fmt.Errorf("%w: select a size", models.ErrValidationFailed)
		}
		to = models.StepShipping
	case models.StepShipping:
		if err := ValidateShipping(w.draft.Shipping); err != nil {
			return err
		}
		to = models.StepPayment
	case models.StepPayment:
		return fmt.Errorf("%w: payment is completed by confirming the redemption", models.ErrValidationFailed)
	default:
		return fmt.Errorf("%w: redemption already confirmed", models.ErrValidationFailed)
	}
	return w.move(to)
}

// Back returns to the previous step keeping entered values.
func (w *Workflow) Back() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.confirming {
		return fmt.Errorf("%w: confirmation in progress", models.ErrValidationFailed)
	}

	switch w.draft.Step {
	case models.StepShipping:
		return w.move(models.StepSizeSelect)
	case models.StepPayment:
		return w.move(models.StepShipping)
	}
	return fmt.Errorf("%w: cannot go back from %s", models.ErrValidationFailed, w.draft.Step)
}

// Confirm redeems the listing on chain. A failed transaction leaves the
// workflow in the payment step. After confirmation the size and address are
// handed to the persister and removed from the draft.
func (w *Workflow) Confirm(ctx context.Context) (txexec.Result, error) {
	w.mu.Lock()
	if w.confirming {
		w.mu.Unlock()
		return txexec.Result{}, fmt.Errorf("%w: confirmation in progress", models.ErrValidationFailed)
	}
	if err := w.requireStep(models.StepPayment); err != nil {
		w.mu.Unlock()
		return txexec.Result{}, err
	}
	if w.deps.Redeemer == nil {
		w.mu.Unlock()
		return txexec.Result{}, fmt.Errorf("redemption: no redeemer configured")
	}
	w.confirming = true
	draft := w.draft
	w.mu.Unlock()

	res, err := w.deps.Redeemer.Execute(ctx, txexec.ActionRedeem, txexec.Params{ListingID: draft.ListingID})

	w.mu.Lock()
	w.confirming = false
	if err != nil {
		w.mu.Unlock()
		w.deps.Log.Warn("redemption failed",
			zap.String("draft_id", draft.ID.String()),
			zap.Uint64("listing_id", draft.ListingID),
			zap.Error(err),
		)
		return res, err
	}

	w.pending = &models.RedemptionRecord{
		ID:        draft.ID,
		ListingID: draft.ListingID,
		Owner:     draft.Owner,
		Size:      draft.Size,
		Shipping:  draft.Shipping,
		TxHash:    res.Hash,
		CreatedAt: time.Now().UTC(),
	}
	w.result = res
	_ = w.move(models.StepConfirmed)
	w.mu.Unlock()

	w.deps.Log.Info("redemption confirmed",
		zap.String("draft_id", draft.ID.String()),
		zap.Uint64("listing_id", draft.ListingID),
		zap.String("tx_hash", res.Hash),
	)
	return res, w.Persist(ctx)
}

// Persist hands confirmed details to the persister and wipes them from the
// draft. It is a no-op once done and may be retried after a failure.
func (w *Workflow) Persist(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.pending == nil {
		return nil
	}
	if w.deps.Persister != nil {
		if err := w.deps.Persister.PersistRedemptionDetails(ctx, *w.pending); err != nil {
			w.deps.Log.Error("persist redemption details failed",
				zap.Uint64("listing_id", w.pending.ListingID),
				zap.Error(err),
			)
			return fmt.Errorf("persist redemption details: %w", err)
		}
	}
	w.pending = nil
	w.draft.Size = ""
	w.draft.Shipping = models.ShippingAddress{}
	w.touch()
	return nil
}

// Record returns the confirmed record while it still awaits persistence.
func (w *Workflow) Record() (models.RedemptionRecord, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.pending == nil {
		return models.RedemptionRecord{}, false
	}
	return *w.pending, true
}

func (w *Workflow) requireStep(step string) error {
	if w.draft.Step != step {
		return fmt.Errorf("%w: not allowed in step %s", models.ErrValidationFailed, w.draft.Step)
	}
	return nil
}

// move must be called with mu held.
func (w *Workflow) move(to string) error {
	if !models.IsValidStepTransition(w.draft.Step, to) {
		return fmt.Errorf("%w: cannot move from %s to %s", models.ErrValidationFailed, w.draft.Step, to)
	}
	w.draft.Step = to
	w.touch()
	w.deps.Metrics.ObserveRedemptionStep(to)
	return nil
}

func (w *Workflow) touch() {
	w.draft.UpdatedAt = time.Now().UTC()
}

// ValidateShipping checks required fields and the email format. Phone is
// optional.
func ValidateShipping(a models.ShippingAddress) error {
	required := []struct {
		name  string
		value string
	}{
		{"name", a.Name},
		{"street", a.Street},
		{"city", a.City},
		{"region", a.Region},
		{"postal_code", a.PostalCode},
		{"country", a.Country},
		{"email", a.Email},
	}
	var missing []string
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", models.ErrValidationFailed, strings.Join(missing, ", "))
	}
	if !emailPattern.MatchString(strings.TrimSpace(a.Email)) {
		return fmt.Errorf("%w: email %q is not a valid address", models.ErrValidationFailed, a.Email)
	}
	return nil
}

// trimShipping returns trimmed copies that do not alias the caller's buffers.
func trimShipping(a models.ShippingAddress) models.ShippingAddress {
	keep := func(v string) string { return strings.Clone(strings.TrimSpace(v)) }
	return models.ShippingAddress{
		Name:       keep(a.Name),
		Street:     keep(a.Street),
		City:       keep(a.City),
		Region:     keep(a.Region),
		PostalCode: keep(a.PostalCode),
		Country:    keep(a.Country),
		Email:      keep(a.Email),
		Phone:      keep(a.Phone),
	}
}
