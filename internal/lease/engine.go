// Package lease implements the lease lifecycle state machine.
//
// States: PENDING → ACTIVE → TERMINATED, or PENDING → TERMINATED.
// Transitions never move backward and TERMINATED is terminal. All
// authorization is by relationship — the tenant of this lease, the
// landlord of this lease's property — never by role.
package lease

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/leaselink/leaselink/internal/models"
	"github.com/leaselink/leaselink/internal/repository"
	"go.uber.org/zap"
)

type Engine struct {
	leases     repository.LeaseRepository
	properties repository.PropertyRepository
	users      repository.UserRepository
	logger     *zap.Logger

	// now is swappable so tests can pin the clock.
	now func() time.Time
}

func NewEngine(
	leases repository.LeaseRepository,
	properties repository.PropertyRepository,
	users repository.UserRepository,
	logger *zap.Logger,
) *Engine {
	return &Engine{
		leases:     leases,
		properties: properties,
		users:      users,
		logger:     logger,
		now:        time.Now,
	}
}

// Apply creates a new lease in PENDING for tenant on property, running
// today through one year from today. Any existing tenant may apply; no
// duplicate check is performed, so a tenant can hold several pending
// applications on the same property. That is the intended product
// behavior — landlords see every application and approve the one they
// want.
func (e *Engine) Apply(ctx context.Context, propertyID, tenantID uuid.UUID) (*models.Lease, error) {
	property, err := e.properties.GetByID(ctx, propertyID)
	if err != nil {
		return nil, err
	}
	if property == nil {
		return nil, fmt.Errorf("%w: property %s", models.ErrNotFound, propertyID)
	}

	exists, err := e.users.Exists(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: tenant %s", models.ErrNotFound, tenantID)
	}

	start := e.now()
	created, err := e.leases.Create(ctx, models.Lease{
		PropertyID: propertyID,
		TenantID:   tenantID,
		Status:     models.LeasePending,
		StartDate:  start,
		EndDate:    start.AddDate(1, 0, 0),
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("lease application created",
		zap.String("lease_id", created.ID.String()),
		zap.String("property_id", propertyID.String()),
		zap.String("tenant_id", tenantID.String()),
	)
	return created, nil
}

// Approve moves a PENDING lease to ACTIVE. Only the landlord who owns
// the lease's property may approve — being a landlord of some other
// property counts for nothing. A lease that already left PENDING cannot
// be approved: without this guard a TERMINATED lease could be
// resurrected to ACTIVE.
func (e *Engine) Approve(ctx context.Context, leaseID, landlordID uuid.UUID) (*models.Lease, error) {
	lease, err := e.requireLease(ctx, leaseID)
	if err != nil {
		return nil, err
	}
	if err := e.requireLandlord(ctx, lease, landlordID, "approve"); err != nil {
		return nil, err
	}

	result, won, err := e.leases.TransitionStatus(ctx, leaseID,
		[]models.LeaseStatus{models.LeasePending}, models.LeaseActive)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, fmt.Errorf("%w: lease %s", models.ErrNotFound, leaseID)
	}
	if !won {
		return nil, fmt.Errorf("%w: lease is %s, only a PENDING lease can be approved",
			models.ErrInvalidArgument, result.Status)
	}

	e.logger.Info("lease approved",
		zap.String("lease_id", leaseID.String()),
		zap.String("landlord_id", landlordID.String()),
	)
	return result, nil
}

// Terminate moves a lease to TERMINATED from any non-terminal state.
// Either party — the lease's tenant or the owning landlord — may
// terminate; anyone else is forbidden.
func (e *Engine) Terminate(ctx context.Context, leaseID, userID uuid.UUID) (*models.Lease, error) {
	lease, err := e.requireLease(ctx, leaseID)
	if err != nil {
		return nil, err
	}

	property, err := e.properties.GetByID(ctx, lease.PropertyID)
	if err != nil {
		return nil, err
	}
	if property == nil {
		return nil, fmt.Errorf("%w: property %s", models.ErrNotFound, lease.PropertyID)
	}

	isTenant := lease.TenantID == userID
	isLandlord := property.LandlordID == userID
	if !isTenant && !isLandlord {
		return nil, fmt.Errorf("%w: only the lease's tenant or the property's landlord can terminate it",
			models.ErrForbidden)
	}

	result, won, err := e.leases.TransitionStatus(ctx, leaseID,
		[]models.LeaseStatus{models.LeasePending, models.LeaseActive}, models.LeaseTerminated)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, fmt.Errorf("%w: lease %s", models.ErrNotFound, leaseID)
	}
	if !won {
		return nil, fmt.Errorf("%w: lease is already terminated", models.ErrInvalidArgument)
	}

	e.logger.Info("lease terminated",
		zap.String("lease_id", leaseID.String()),
		zap.String("user_id", userID.String()),
		zap.Bool("by_tenant", isTenant),
	)
	return result, nil
}

// Get returns a lease by id.
func (e *Engine) Get(ctx context.Context, leaseID uuid.UUID) (*models.Lease, error) {
	return e.requireLease(ctx, leaseID)
}

// ListByTenant returns a tenant's leases, newest first.
func (e *Engine) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]models.Lease, error) {
	exists, err := e.users.Exists(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: user %s", models.ErrNotFound, tenantID)
	}
	return e.leases.ListByTenant(ctx, tenantID)
}

// ListByProperty returns a property's leases, newest first.
func (e *Engine) ListByProperty(ctx context.Context, propertyID uuid.UUID) ([]models.Lease, error) {
	property, err := e.properties.GetByID(ctx, propertyID)
	if err != nil {
		return nil, err
	}
	if property == nil {
		return nil, fmt.Errorf("%w: property %s", models.ErrNotFound, propertyID)
	}
	return e.leases.ListByProperty(ctx, propertyID)
}

func (e *Engine) requireLease(ctx context.Context, leaseID uuid.UUID) (*models.Lease, error) {
	lease, err := e.leases.GetByID(ctx, leaseID)
	if err != nil {
		return nil, err
	}
	if lease == nil {
		return nil, fmt.Errorf("%w: lease %s", models.ErrNotFound, leaseID)
	}
	return lease, nil
}

// requireLandlord checks that userID owns the lease's property — the
// relationship predicate behind approve and terminate.
func (e *Engine) requireLandlord(ctx context.Context, lease *models.Lease, userID uuid.UUID, action string) error {
	property, err := e.properties.GetByID(ctx, lease.PropertyID)
	if err != nil {
		return err
	}
	if property == nil {
		return fmt.Errorf("%w: property %s", models.ErrNotFound, lease.PropertyID)
	}
	if property.LandlordID != userID {
		return fmt.Errorf("%w: only the property's landlord can %s this lease",
			models.ErrForbidden, action)
	}
	return nil
}
