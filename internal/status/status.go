// Package status переводит статусы перевозчиков в канонический жизненный цикл отправления.
package status

import (
	"strings"

	"github.com/BearBump/ShipBox/internal/models"
)

type Category string

const (
	CategoryNeedsAction    Category = "needs_action"
	CategoryAwaitingPickup Category = "awaiting_pickup"
	CategoryInTransit      Category = "in_transit"
	CategoryDeliveryIssue  Category = "delivery_issue"
	CategoryProblem        Category = "problem"
	CategoryCritical       Category = "critical"
	CategoryCompleted      Category = "completed"
	CategoryClosed         Category = "closed"
	CategoryUnknown        Category = "unknown"
)

const unknownLabel = "Unknown status"

// Таблицы заполняются один раз и дальше только читаются.
var carrierStatuses = map[string]models.CanonicalStatus{
	"PENDING": models.StatusPending,
	"WAITING": models.StatusPending,

	"PAID":          models.StatusLabelCreated,
	"RELEASED":      models.StatusLabelCreated,
	"GENERATED":     models.StatusLabelCreated,
	"CREATED":       models.StatusLabelCreated,
	"LABEL_CREATED": models.StatusLabelCreated,
	"PRINTED":       models.StatusLabelCreated,

	"AWAITING_PICKUP":  models.StatusAwaitingPickup,
	"READY_FOR_PICKUP": models.StatusAwaitingPickup,

	"POSTED":    models.StatusPickedUp,
	"PICKED_UP": models.StatusPickedUp,
	"COLLECTED": models.StatusPickedUp,

	"SHIPPED":    models.StatusInTransit,
	"IN_TRANSIT": models.StatusInTransit,
	"IN TRANSIT": models.StatusInTransit,
	"TRANSIT":    models.StatusInTransit,

	"OUT_FOR_DELIVERY": models.StatusOutForDelivery,
	"OUT FOR DELIVERY": models.StatusOutForDelivery,

	"DELIVERY_ATTEMPT":   models.StatusDeliveryAttempt1,
	"DELIVERY_ATTEMPT_1": models.StatusDeliveryAttempt1,
	"FIRST_ATTEMPT":      models.StatusDeliveryAttempt1,
	"DELIVERY_ATTEMPT_2": models.StatusDeliveryAttempt2,
	"DELIVERY_ATTEMPT_3": models.StatusDeliveryAttempt3,

	"DELAYED": models.StatusDelayed,

	"ADDRESS_ERROR": models.StatusAddressError,
	"WRONG_ADDRESS": models.StatusAddressError,

	"UNDELIVERED":   models.StatusUndeliverable,
	"UNDELIVERABLE": models.StatusUndeliverable,

	"EXCEPTION": models.StatusException,
	"FAILURE":   models.StatusException,

	"DELIVERED": models.StatusDelivered,

	"RETURNING":        models.StatusReturning,
	"RETURN_TO_SENDER": models.StatusReturning,
	"RETURNED":         models.StatusReturned,

	"REJECTED": models.StatusRejected,
	"REFUSED":  models.StatusRejected,

	"CANCELED":  models.StatusCancelled,
	"CANCELLED": models.StatusCancelled,

	"LOST":    models.StatusLost,
	"DAMAGED": models.StatusDamaged,
}

var labels = map[models.CanonicalStatus]string{
	models.StatusPending:          "Pending",
	models.StatusLabelCreated:     "Label created",
	models.StatusAwaitingPickup:   "Awaiting pickup",
	models.StatusPickedUp:         "Picked up by carrier",
	models.StatusInTransit:        "In transit",
	models.StatusOutForDelivery:   "Out for delivery",
	models.StatusDeliveryAttempt1: "First delivery attempt failed",
	models.StatusDeliveryAttempt2: "Second delivery attempt failed",
	models.StatusDeliveryAttempt3: "Third delivery attempt failed",
	models.StatusDelayed:          "Delayed",
	models.StatusAddressError:     "Address problem",
	models.StatusUndeliverable:    "Undeliverable",
	models.StatusException:        "Delivery exception",
	models.StatusReturning:        "Returning to sender",
	models.StatusDelivered:        "Delivered",
	models.StatusReturned:         "Returned to sender",
	models.StatusRejected:         "Rejected by recipient",
	models.StatusCancelled:        "Cancelled",
	models.StatusLost:             "Lost",
	models.StatusDamaged:          "Damaged",
}

var categories = map[models.CanonicalStatus]Category{
	models.StatusPending:          CategoryNeedsAction,
	models.StatusLabelCreated:     CategoryNeedsAction,
	models.StatusAwaitingPickup:   CategoryAwaitingPickup,
	models.StatusPickedUp:         CategoryInTransit,
	models.StatusInTransit:        CategoryInTransit,
	models.StatusOutForDelivery:   CategoryInTransit,
	models.StatusDeliveryAttempt1: CategoryDeliveryIssue,
	models.StatusDeliveryAttempt2: CategoryDeliveryIssue,
	models.StatusDeliveryAttempt3: CategoryDeliveryIssue,
	models.StatusAddressError:     CategoryDeliveryIssue,
	models.StatusDelayed:          CategoryProblem,
	models.StatusException:        CategoryProblem,
	models.StatusUndeliverable:    CategoryProblem,
	models.StatusReturning:        CategoryProblem,
	models.StatusLost:             CategoryCritical,
	models.StatusDamaged:          CategoryCritical,
	models.StatusDelivered:        CategoryCompleted,
	models.StatusReturned:         CategoryClosed,
	models.StatusRejected:         CategoryClosed,
	models.StatusCancelled:        CategoryClosed,
}

var finalStatuses = map[models.CanonicalStatus]struct{}{
	models.StatusDelivered: {},
	models.StatusReturned:  {},
	models.StatusRejected:  {},
	models.StatusCancelled: {},
	models.StatusLost:      {},
}

var problemStatuses = map[models.CanonicalStatus]struct{}{
	models.StatusDelayed:          {},
	models.StatusException:        {},
	models.StatusAddressError:     {},
	models.StatusUndeliverable:    {},
	models.StatusLost:             {},
	models.StatusDamaged:          {},
	models.StatusDeliveryAttempt1: {},
	models.StatusDeliveryAttempt2: {},
	models.StatusDeliveryAttempt3: {},
}

// Normalize переводит токен перевозчика в канонический статус.
// Пустой токен даёт pending, нераспознанный даёт exception.
func Normalize(carrierStatus string) models.CanonicalStatus {
	token := strings.ToUpper(strings.TrimSpace(carrierStatus))
	if token == "" {
		return models.StatusPending
	}
	if st, ok := carrierStatuses[token]; ok {
		return st
	}
	return models.StatusException
}

func Translate(st models.CanonicalStatus) string {
	if l, ok := labels[st]; ok {
		return l
	}
	return unknownLabel
}

func IsFinal(st models.CanonicalStatus) bool {
	_, ok := finalStatuses[st]
	return ok
}

func IsProblem(st models.CanonicalStatus) bool {
	_, ok := problemStatuses[st]
	return ok
}

func CategoryOf(st models.CanonicalStatus) Category {
	if c, ok := categories[st]; ok {
		return c
	}
	return CategoryUnknown
}

// FinalStatuses возвращает финальные статусы в порядке models.AllStatuses.
func FinalStatuses() []models.CanonicalStatus {
	out := make([]models.CanonicalStatus, 0, len(finalStatuses))
	for _, st := range models.AllStatuses {
		if IsFinal(st) {
			out = append(out, st)
		}
	}
	return out
}
