package shipping

import "github.com/arjunmehra/stitchkart-backend/pkg/db/models"

// Step is one stage of the shipping saga. Steps run strictly in order and
// each one completes at most once per order.
type Step string

const (
	StepCreateOrder Step = "create_order"
	StepAssignAWB   Step = "assign_awb"
	StepBookPickup  Step = "book_pickup"
	StepDone        Step = "done"
)

// NextStep derives the next pending step from the progress flags. The flags
// are monotonic, so the first unset flag in saga order is always the one to
// run; everything before it is already done and everything after it is
// blocked on it.
func NextStep(progress *models.ShippingProgress) Step {
	switch {
	case progress == nil || !progress.AdhocOrderCreated:
		return StepCreateOrder
	case !progress.AWBAssigned:
		return StepAssignAWB
	case !progress.PickupGenerated:
		return StepBookPickup
	default:
		return StepDone
	}
}
