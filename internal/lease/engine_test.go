package lease

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/leaselink/leaselink/internal/models"
	"github.com/leaselink/leaselink/internal/repository/memory"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fixture struct {
	engine     *Engine
	users      *memory.UserStore
	properties *memory.PropertyStore
	leases     *memory.LeaseStore

	landlord *models.User
	tenant   *models.User
	property *models.Property
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	users := memory.NewUserStore()
	properties := memory.NewPropertyStore()
	leases := memory.NewLeaseStore()

	landlord, err := users.Create(ctx, "Lena Landlord", "lena@example.com", "x", models.RoleLandlord, "")
	require.NoError(t, err)
	tenant, err := users.Create(ctx, "Tom Tenant", "tom@example.com", "x", models.RoleTenant, "")
	require.NoError(t, err)

	property, err := properties.Create(ctx, models.Property{
		Title:         "Sunny Two-Bed",
		Address:       "12 Elm Street",
		RentAmount:    1450,
		AvailableFrom: time.Now(),
		LandlordID:    landlord.ID,
	})
	require.NoError(t, err)

	return &fixture{
		engine:     NewEngine(leases, properties, users, zap.NewNop()),
		users:      users,
		properties: properties,
		leases:     leases,
		landlord:   landlord,
		tenant:     tenant,
		property:   property,
	}
}

func TestApplyCreatesPendingLeaseForOneYear(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.engine.Apply(ctx, f.property.ID, f.tenant.ID)
	require.NoError(t, err)

	require.Equal(t, models.LeasePending, created.Status)
	require.Equal(t, f.property.ID, created.PropertyID)
	require.Equal(t, f.tenant.ID, created.TenantID)
	require.Equal(t, created.StartDate.AddDate(1, 0, 0), created.EndDate)
}

func TestApplyRejectsMissingPropertyOrTenant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.Apply(ctx, uuid.New(), f.tenant.ID)
	require.ErrorIs(t, err, models.ErrNotFound)

	_, err = f.engine.Apply(ctx, f.property.ID, uuid.New())
	require.ErrorIs(t, err, models.ErrNotFound)
}

func TestApplyPerformsNoDuplicateCheck(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.engine.Apply(ctx, f.property.ID, f.tenant.ID)
	require.NoError(t, err)
	second, err := f.engine.Apply(ctx, f.property.ID, f.tenant.ID)
	require.NoError(t, err)
	require.NotEqual(t, first.ID, second.ID)

	leases, err := f.engine.ListByTenant(ctx, f.tenant.ID)
	require.NoError(t, err)
	require.Len(t, leases, 2)
}

func TestApproveByOwningLandlord(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.engine.Apply(ctx, f.property.ID, f.tenant.ID)
	require.NoError(t, err)

	approved, err := f.engine.Approve(ctx, created.ID, f.landlord.ID)
	require.NoError(t, err)
	require.Equal(t, models.LeaseActive, approved.Status)
}

func TestApproveByOtherLandlordForbidden(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// A perfectly valid landlord — of a different property. Ownership
	// of some property grants nothing on this one.
	other, err := f.users.Create(ctx, "Olga Other", "olga@example.com", "x", models.RoleLandlord, "")
	require.NoError(t, err)
	_, err = f.properties.Create(ctx, models.Property{
		Title:         "Riverside Loft",
		Address:       "3 Quay Road",
		RentAmount:    2100,
		AvailableFrom: time.Now(),
		LandlordID:    other.ID,
	})
	require.NoError(t, err)

	created, err := f.engine.Apply(ctx, f.property.ID, f.tenant.ID)
	require.NoError(t, err)

	_, err = f.engine.Approve(ctx, created.ID, other.ID)
	require.ErrorIs(t, err, models.ErrForbidden)

	current, err := f.engine.Get(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, models.LeasePending, current.Status)
}

func TestApproveMissingLease(t *testing.T) {
	f := newFixture(t)

	_, err := f.engine.Approve(context.Background(), uuid.New(), f.landlord.ID)
	require.ErrorIs(t, err, models.ErrNotFound)
}

func TestApproveGuardsNonPendingLease(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.engine.Apply(ctx, f.property.ID, f.tenant.ID)
	require.NoError(t, err)

	_, err = f.engine.Approve(ctx, created.ID, f.landlord.ID)
	require.NoError(t, err)

	// Approving an ACTIVE lease is rejected, not a silent no-op.
	_, err = f.engine.Approve(ctx, created.ID, f.landlord.ID)
	require.ErrorIs(t, err, models.ErrInvalidArgument)

	// A terminated lease must never come back to life via approve.
	_, err = f.engine.Terminate(ctx, created.ID, f.tenant.ID)
	require.NoError(t, err)
	_, err = f.engine.Approve(ctx, created.ID, f.landlord.ID)
	require.ErrorIs(t, err, models.ErrInvalidArgument)

	current, err := f.engine.Get(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, models.LeaseTerminated, current.Status)
}

func TestTerminateByTenantAndByLandlord(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	byTenant, err := f.engine.Apply(ctx, f.property.ID, f.tenant.ID)
	require.NoError(t, err)
	terminated, err := f.engine.Terminate(ctx, byTenant.ID, f.tenant.ID)
	require.NoError(t, err)
	require.Equal(t, models.LeaseTerminated, terminated.Status)

	byLandlord, err := f.engine.Apply(ctx, f.property.ID, f.tenant.ID)
	require.NoError(t, err)
	terminated, err = f.engine.Terminate(ctx, byLandlord.ID, f.landlord.ID)
	require.NoError(t, err)
	require.Equal(t, models.LeaseTerminated, terminated.Status)
}

func TestTerminateByThirdPartyForbidden(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	stranger, err := f.users.Create(ctx, "Sam Stranger", "sam@example.com", "x", models.RoleTenant, "")
	require.NoError(t, err)

	created, err := f.engine.Apply(ctx, f.property.ID, f.tenant.ID)
	require.NoError(t, err)

	_, err = f.engine.Terminate(ctx, created.ID, stranger.ID)
	require.ErrorIs(t, err, models.ErrForbidden)
}

func TestTerminateAlreadyTerminated(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.engine.Apply(ctx, f.property.ID, f.tenant.ID)
	require.NoError(t, err)
	_, err = f.engine.Terminate(ctx, created.ID, f.tenant.ID)
	require.NoError(t, err)

	_, err = f.engine.Terminate(ctx, created.ID, f.landlord.ID)
	require.ErrorIs(t, err, models.ErrInvalidArgument)
}

func TestStatusOnlyMovesForward(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.engine.Apply(ctx, f.property.ID, f.tenant.ID)
	require.NoError(t, err)

	seen := []models.LeaseStatus{created.Status}

	approved, err := f.engine.Approve(ctx, created.ID, f.landlord.ID)
	require.NoError(t, err)
	seen = append(seen, approved.Status)

	terminated, err := f.engine.Terminate(ctx, created.ID, f.landlord.ID)
	require.NoError(t, err)
	seen = append(seen, terminated.Status)

	require.Equal(t, []models.LeaseStatus{
		models.LeasePending, models.LeaseActive, models.LeaseTerminated,
	}, seen)
}
