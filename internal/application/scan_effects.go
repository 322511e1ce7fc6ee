package application

import (
	"context"
	"fmt"

	"github.com/wms-platform/inbound-service/internal/domain"
	apperrors "github.com/wms-platform/inbound-service/pkg/errors"
	"github.com/wms-platform/inbound-service/pkg/logging"
	"github.com/wms-platform/inbound-service/pkg/metrics"
)

// scanInput is what an effect sees of one attempt: freshly read task, receipt and pallet
type scanInput struct {
	task    *domain.Task
	receipt *domain.Receipt
	// pallet is nil when no pallet carries the scanned code
	pallet *domain.Pallet
	cmd    RecordScanCommand
}

// scanPlan lists everything an effect changed. The recorder commits it in one unit of work.
type scanPlan struct {
	pallet        *domain.Pallet
	movement      *domain.PalletMovement
	locations     []*domain.Location
	discrepancies []*domain.Discrepancy
	locationCode  string
}

// scanEffect applies the task-type specific part of a scan to the input entities
type scanEffect interface {
	apply(ctx context.Context, in *scanInput) (*scanPlan, error)
}

// receivingEffect fills a pallet at the receiving location and detects discrepancies
type receivingEffect struct {
	locations       domain.LocationRepository
	defaultLocation string
}

func (e *receivingEffect) apply(ctx context.Context, in *scanInput) (*scanPlan, error) {
	if in.cmd.Quantity <= 0 {
		return nil, apperrors.ErrValidation("receiving scans need a positive quantity")
	}
	line := in.receipt.Line(in.task.LineID)
	if line == nil {
		return nil, apperrors.ErrPreconditionFailed("receiving task is not bound to a line of its receipt")
	}

	code := in.cmd.LocationCode
	if code == "" {
		code = e.defaultLocation
	}
	location, err := e.locations.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if location == nil {
		return nil, apperrors.ErrNotFoundWithID("location", code)
	}

	pallet := in.pallet
	if pallet == nil {
		pallet = domain.NewReceivingPallet(in.cmd.PalletCode, in.receipt.ID, line)
	} else if !pallet.CanReceiveFor(line.ID) {
		return nil, apperrors.ErrPreconditionFailed(fmt.Sprintf("pallet %s is %s and cannot take stock for this line", pallet.Code, pallet.Status))
	}

	from := pallet.LocationID
	if err := pallet.Receive(in.receipt.ID, line, in.cmd.Quantity, location.ID, in.cmd.Lot, in.cmd.Expiry, in.cmd.Damaged); err != nil {
		return nil, err
	}
	if err := in.task.AddProgress(in.cmd.Quantity); err != nil {
		return nil, err
	}

	return &scanPlan{
		pallet:        pallet,
		movement:      domain.NewPalletMovement(pallet, domain.MovementReceive, from, location.ID, in.cmd.Quantity, in.task.ID, in.cmd.ScannedBy),
		discrepancies: detectReceivingDiscrepancies(in, line, pallet),
		locationCode:  location.Code,
	}, nil
}

func detectReceivingDiscrepancies(in *scanInput, line *domain.ReceiptLine, pallet *domain.Pallet) []*domain.Discrepancy {
	base := domain.DiscrepancySpec{
		ReceiptID:   in.receipt.ID,
		LineID:      line.ID,
		TaskID:      in.task.ID,
		PalletID:    pallet.ID,
		QtyExpected: line.QtyExpected,
		QtyActual:   in.task.QtyDone,
	}
	var found []*domain.Discrepancy

	if in.task.QtyDone > line.QtyExpected {
		spec := base
		spec.Type = domain.DiscrepancyOver
		spec.Description = fmt.Sprintf("received %d, expected %d", in.task.QtyDone, line.QtyExpected)
		found = append(found, domain.NewDiscrepancy(spec))
	}
	if line.ExpectedSSCC != "" && in.cmd.SSCC != "" && in.cmd.SSCC != line.ExpectedSSCC {
		spec := base
		spec.Type = domain.DiscrepancySSCCMismatch
		spec.Description = fmt.Sprintf("scanned SSCC %s, expected %s", in.cmd.SSCC, line.ExpectedSSCC)
		found = append(found, domain.NewDiscrepancy(spec))
	}
	if line.ExpectedLot != "" && in.cmd.Lot != "" && in.cmd.Lot != line.ExpectedLot {
		spec := base
		spec.Type = domain.DiscrepancyLotMismatch
		spec.Description = fmt.Sprintf("scanned lot %s, expected %s", in.cmd.Lot, line.ExpectedLot)
		found = append(found, domain.NewDiscrepancy(spec))
	}
	if in.cmd.Damaged {
		spec := base
		spec.Type = domain.DiscrepancyDamage
		spec.QtyActual = in.cmd.Quantity
		spec.Description = fmt.Sprintf("%d damaged on pallet %s", in.cmd.Quantity, pallet.Code)
		if in.cmd.DamageType != "" {
			spec.Description += ": " + in.cmd.DamageType
		}
		if in.cmd.DamageNote != "" {
			spec.Description += " (" + in.cmd.DamageNote + ")"
		}
		found = append(found, domain.NewDiscrepancy(spec))
	}
	return found
}

// placementEffect moves the task's pallet to its target location
type placementEffect struct {
	locations domain.LocationRepository
	pallets   domain.PalletRepository
	logger    *logging.Logger
	metrics   *metrics.Metrics
}

func (e *placementEffect) apply(ctx context.Context, in *scanInput) (*scanPlan, error) {
	pallet, err := requireTaskPallet(in)
	if err != nil {
		return nil, err
	}

	target, err := e.locations.FindByID(ctx, in.task.TargetLocationID)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return nil, apperrors.ErrPreconditionFailed("placement task has no valid target location")
	}
	if in.cmd.LocationCode != "" && in.cmd.LocationCode != target.Code {
		return nil, apperrors.ErrPreconditionFailed(fmt.Sprintf("scanned location %s, task targets %s", in.cmd.LocationCode, target.Code))
	}

	stored, err := e.pallets.CountAtLocation(ctx, target.ID)
	if err != nil {
		return nil, err
	}
	if stored+1 > target.MaxPallets {
		// No reservation is taken while planning, so two placements can race for the last slot.
		e.metrics.RecordLocationCapacityBreach(target.Zone)
		e.logger.Warn("Location capacity exceeded by placement",
			"locationCode", target.Code,
			"maxPallets", target.MaxPallets,
			"occupancy", stored+1,
			"palletCode", pallet.Code,
			"taskId", in.task.ID,
		)
	}

	from := pallet.LocationID
	source, err := vacateIfLast(ctx, e.locations, e.pallets, from)
	if err != nil {
		return nil, err
	}
	if err := pallet.Place(target.ID); err != nil {
		return nil, err
	}
	if remaining := in.task.QtyAssigned - in.task.QtyDone; remaining > 0 {
		if err := in.task.AddProgress(remaining); err != nil {
			return nil, err
		}
	}

	plan := &scanPlan{
		pallet:       pallet,
		movement:     domain.NewPalletMovement(pallet, domain.MovementPlace, from, target.ID, pallet.Quantity, in.task.ID, in.cmd.ScannedBy),
		locationCode: target.Code,
	}
	if target.Occupy() {
		plan.locations = append(plan.locations, target)
	}
	if source != nil {
		plan.locations = append(plan.locations, source)
	}
	return plan, nil
}

// shippingEffect picks quantity off the task's pallet
type shippingEffect struct {
	locations domain.LocationRepository
	pallets   domain.PalletRepository
}

func (e *shippingEffect) apply(ctx context.Context, in *scanInput) (*scanPlan, error) {
	pallet, err := requireTaskPallet(in)
	if err != nil {
		return nil, err
	}
	if in.cmd.Quantity <= 0 || in.cmd.Quantity > pallet.Quantity {
		return nil, apperrors.ErrPreconditionFailed(fmt.Sprintf("pick quantity %d is outside 1..%d for pallet %s", in.cmd.Quantity, pallet.Quantity, pallet.Code))
	}

	from := pallet.LocationID
	var source *domain.Location
	if in.cmd.Quantity == pallet.Quantity {
		if source, err = vacateIfLast(ctx, e.locations, e.pallets, from); err != nil {
			return nil, err
		}
	}
	if err := pallet.Pick(in.cmd.Quantity); err != nil {
		return nil, err
	}
	if err := in.task.AddProgress(in.cmd.Quantity); err != nil {
		return nil, err
	}

	plan := &scanPlan{
		pallet:   pallet,
		movement: domain.NewPalletMovement(pallet, domain.MovementPick, from, "", in.cmd.Quantity, in.task.ID, in.cmd.ScannedBy),
	}
	if source != nil {
		plan.locations = append(plan.locations, source)
	}
	return plan, nil
}

func requireTaskPallet(in *scanInput) (*domain.Pallet, error) {
	if in.pallet == nil {
		return nil, apperrors.ErrNotFoundWithID("pallet", in.cmd.PalletCode)
	}
	if in.pallet.ID != in.task.PalletID {
		return nil, apperrors.ErrPreconditionFailed(fmt.Sprintf("pallet %s does not belong to task %s", in.pallet.Code, in.task.ID))
	}
	return in.pallet, nil
}

// vacateIfLast frees an OCCUPIED location whose only pallet is about to leave. It returns the
// location to save, or nil when nothing changed.
func vacateIfLast(ctx context.Context, locations domain.LocationRepository, pallets domain.PalletRepository, locationID string) (*domain.Location, error) {
	if locationID == "" {
		return nil, nil
	}
	loc, err := locations.FindByID(ctx, locationID)
	if err != nil || loc == nil || loc.Status != domain.LocationStatusOccupied {
		return nil, err
	}
	n, err := pallets.CountAtLocation(ctx, locationID)
	if err != nil {
		return nil, err
	}
	if n > 1 || !loc.Vacate() {
		return nil, nil
	}
	return loc, nil
}
